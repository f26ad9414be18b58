package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/metrics"
	"github.com/audiobrew/web/repository"
)

type sessionRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewSessionRepository creates a Redis-backed session repository.
func NewSessionRepository(client *redislib.Client, ttl time.Duration) repository.SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &sessionRepository{
		client: client,
		prefix: "audiobrew:session:",
		ttl:    ttl,
	}
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	result, err := r.client.Get(ctx, r.key(id)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			observe("get", nil)
			return nil, domain.ErrSessionNotFound
		}
		observe("get", err)
		return nil, err
	}
	observe("get", nil)

	var session domain.Session
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.ExpiresAt.Before(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = r.ttl
	}

	err = r.client.Set(ctx, r.key(session.ID), payload, ttl).Err()
	observe("save", err)
	return err
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	err := r.client.Del(ctx, r.key(id)).Err()
	observe("delete", err)
	return err
}

// Extend rewrites the stored expiry together with the key TTL. SetXX keeps a
// session deleted in the meantime from coming back.
func (r *sessionRepository) Extend(ctx context.Context, id string, duration time.Duration) error {
	if duration <= 0 {
		duration = r.ttl
	}
	session, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	session.ExpiresAt = time.Now().Add(duration)
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ok, err := r.client.SetXX(ctx, r.key(id), payload, duration).Result()
	observe("extend", err)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepository) key(id string) string {
	return fmt.Sprintf("%s%s", r.prefix, id)
}

func observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SessionOpsTotal.WithLabelValues(op, status).Inc()
}
