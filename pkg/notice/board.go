// Package notice holds short-lived status messages that clear themselves.
package notice

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTimeout is how long a message stays visible.
const DefaultTimeout = 5 * time.Second

const (
	KindSuccess = "success"
	KindError   = "error"
)

// Message is one status line shown to a user.
type Message struct {
	Kind     string    `json:"kind"`
	Text     string    `json:"text"`
	PostedAt time.Time `json:"posted_at"`
}

// Clearer runs a callback once the timeout elapses. Scheduling again replaces
// the pending callback.
type Clearer struct {
	clock   clockwork.Clock
	timeout time.Duration

	mu      sync.Mutex
	pending clockwork.Timer
}

// NewClearer returns a Clearer; a non-positive timeout means DefaultTimeout.
func NewClearer(clock clockwork.Clock, timeout time.Duration) *Clearer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Clearer{clock: clock, timeout: timeout}
}

// Schedule arranges for clear to run after the timeout.
func (c *Clearer) Schedule(clear func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
	}
	c.pending = c.clock.AfterFunc(c.timeout, clear)
}

// Cancel drops the pending callback, if any.
func (c *Clearer) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

type entry struct {
	msg     Message
	clearer *Clearer
	seq     uint64
}

// Board keeps the latest message per key until it times out.
type Board struct {
	clock   clockwork.Clock
	timeout time.Duration

	mu      sync.Mutex
	seq     uint64
	entries map[string]*entry
}

func NewBoard(clock clockwork.Clock, timeout time.Duration) *Board {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Board{
		clock:   clock,
		timeout: timeout,
		entries: make(map[string]*entry),
	}
}

// Post replaces the message for key and restarts its timeout.
func (b *Board) Post(key, kind, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	seq := b.seq
	e, ok := b.entries[key]
	if !ok {
		e = &entry{clearer: NewClearer(b.clock, b.timeout)}
		b.entries[key] = e
	}
	e.msg = Message{Kind: kind, Text: text, PostedAt: b.clock.Now()}
	e.seq = seq
	e.clearer.Schedule(func() { b.expire(key, seq) })
}

// Get returns the current message for key.
func (b *Board) Get(key string) (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		return Message{}, false
	}
	return e.msg, true
}

// Clear removes the message for key right away.
func (b *Board) Clear(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[key]; ok {
		e.clearer.Cancel()
		delete(b.entries, key)
	}
}

// expire only removes the entry if it was not replaced in the meantime.
func (b *Board) expire(key string, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[key]; ok && e.seq == seq {
		delete(b.entries, key)
	}
}
