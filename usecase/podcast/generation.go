package podcast

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/audiobrew/web/domain"
)

// SessionSaver persists a session after its generation state changed.
type SessionSaver interface {
	Save(ctx context.Context, session *domain.Session) error
}

// GenerationStatus is returned to the dashboard while it polls.
type GenerationStatus struct {
	IsActive            bool       `json:"isActive"`
	IsGenerating        bool       `json:"isGenerating"`
	StartTime           *time.Time `json:"startTime"`
	InitialPodcastCount int        `json:"initialPodcastCount"`
}

// Tracker keeps the podcast generation state on the user's session so it
// survives page navigation.
type Tracker struct {
	sessions SessionSaver
	clock    clockwork.Clock
	maxAge   time.Duration
}

func NewTracker(sessions SessionSaver, clock clockwork.Clock, maxAge time.Duration) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{sessions: sessions, clock: clock, maxAge: maxAge}
}

// Start records that a generation began while the user had initialCount podcasts.
func (t *Tracker) Start(ctx context.Context, session *domain.Session, initialCount int) (GenerationStatus, error) {
	session.Generation = domain.StartGeneration(initialCount, t.clock.Now())
	if err := t.sessions.Save(ctx, session); err != nil {
		return GenerationStatus{}, err
	}
	return statusOf(session.Generation), nil
}

// Stop resets the generation state.
func (t *Tracker) Stop(ctx context.Context, session *domain.Session) error {
	if session.Generation == nil {
		return nil
	}
	session.Generation = nil
	return t.sessions.Save(ctx, session)
}

// Status reports whether the generation is still running given the current
// podcast count. Once a new podcast shows up, or the generation is older than
// maxAge, tracking stops.
func (t *Tracker) Status(ctx context.Context, session *domain.Session, currentCount int) (GenerationStatus, error) {
	state := session.Generation
	if state == nil {
		return GenerationStatus{}, nil
	}
	active := state.IsActive(currentCount)
	if active && t.maxAge > 0 && state.StaleAfter(t.maxAge, t.clock.Now()) {
		active = false
	}
	if !active {
		if err := t.Stop(ctx, session); err != nil {
			return GenerationStatus{}, err
		}
		return GenerationStatus{}, nil
	}
	return statusOf(state), nil
}

func statusOf(state *domain.GenerationState) GenerationStatus {
	return GenerationStatus{
		IsActive:            true,
		IsGenerating:        state.IsGenerating,
		StartTime:           state.StartTime,
		InitialPodcastCount: state.InitialPodcastCount,
	}
}
