package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/infrastructure/boltdb"
	"github.com/audiobrew/web/internal/metrics"
	"github.com/audiobrew/web/repository"
)

// SessionRepository keeps sessions in a local BoltDB file. Expired records are
// hidden on read and removed by PurgeExpired.
type SessionRepository struct {
	store *boltdb.Store
	ttl   time.Duration
	now   func() time.Time
}

var (
	_ repository.SessionRepository = (*SessionRepository)(nil)
	_ repository.SessionPurger     = (*SessionRepository)(nil)
)

// NewSessionRepository creates a Bolt-backed session repository.
func NewSessionRepository(store *boltdb.Store, ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionRepository{store: store, ttl: ttl, now: time.Now}
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := r.store.Get(id)
	if err != nil {
		if errors.Is(err, boltdb.ErrNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		observe("get", err)
		return nil, err
	}
	observe("get", nil)

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	if session.IsExpired(r.now()) {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *SessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.now()
	}
	if session.ExpiresAt.Before(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	err = r.store.Put(session.ID, payload)
	observe("save", err)
	return err
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.store.Delete(id)
	observe("delete", err)
	return err
}

func (r *SessionRepository) Extend(ctx context.Context, id string, duration time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if duration <= 0 {
		duration = r.ttl
	}
	err := r.store.Update(id, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, domain.ErrSessionNotFound
		}
		var session domain.Session
		if err := json.Unmarshal(current, &session); err != nil {
			return nil, err
		}
		session.ExpiresAt = r.now().Add(duration)
		return json.Marshal(&session)
	})
	observe("extend", err)
	return err
}

// PurgeExpired deletes every session that expired before now.
func (r *SessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.store.DeleteWhere(func(_, value []byte) bool {
		var session domain.Session
		if err := json.Unmarshal(value, &session); err != nil {
			return true
		}
		return session.IsExpired(now)
	})
}

func observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SessionOpsTotal.WithLabelValues(op, status).Inc()
}
