package repository

import (
	"context"
	"time"

	"github.com/audiobrew/web/domain"
)

// SessionRepository persists browser sessions. Get returns
// domain.ErrSessionNotFound for missing or expired records.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
	// Extend pushes the expiry of an existing session to ttl from now.
	Extend(ctx context.Context, id string, ttl time.Duration) error
}

// SessionPurger is implemented by stores that do not expire records on their own.
type SessionPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
