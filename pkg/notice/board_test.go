package notice

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearer_RunsAfterTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewClearer(clock, 0)
	var cleared atomic.Bool

	c.Schedule(func() { cleared.Store(true) })

	clock.Advance(4 * time.Second)
	assert.False(t, cleared.Load())

	clock.Advance(time.Second)
	assert.Eventually(t, cleared.Load, time.Second, 5*time.Millisecond)
}

func TestClearer_RescheduleReplaces(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewClearer(clock, time.Second)
	var first, second atomic.Bool

	c.Schedule(func() { first.Store(true) })
	c.Schedule(func() { second.Store(true) })

	clock.Advance(2 * time.Second)
	assert.Eventually(t, second.Load, time.Second, 5*time.Millisecond)
	assert.False(t, first.Load())
}

func TestBoard_PostExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBoard(clock, 5*time.Second)

	b.Post("u1", KindSuccess, "Profile updated successfully")
	msg, ok := b.Get("u1")
	require.True(t, ok)
	assert.Equal(t, KindSuccess, msg.Kind)
	assert.Equal(t, clock.Now(), msg.PostedAt)

	clock.Advance(5 * time.Second)
	assert.Eventually(t, func() bool {
		_, ok := b.Get("u1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestBoard_RepostKeepsNewestMessage(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBoard(clock, 5*time.Second)

	b.Post("u1", KindError, "first")
	clock.Advance(3 * time.Second)
	b.Post("u1", KindSuccess, "second")
	clock.Advance(3 * time.Second)

	msg, ok := b.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "second", msg.Text)

	b.Clear("u1")
	_, ok = b.Get("u1")
	assert.False(t, ok)
}
