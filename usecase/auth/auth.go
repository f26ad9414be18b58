package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/metrics"
	"github.com/audiobrew/web/internal/supabase"
	"github.com/audiobrew/web/pkg/logger"
	"github.com/audiobrew/web/repository"
)

const (
	invalidCredentials  = "invalid login credentials"
	msgAccountNotFound  = "This account doesn't exist"
	msgAuthUnavailable  = "Authentication service is unavailable"
	pendingSessionTTL   = 10 * time.Minute
	defaultSessionTTL   = 7 * 24 * time.Hour
	defaultRefreshSlack = 30 * time.Second
	extendInterval      = time.Minute
)

// Provider is the part of the Supabase client the session flows rely on.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*domain.TokenSet, error)
	SignUp(ctx context.Context, email, password string, data domain.UserMetadata) error
	RefreshSession(ctx context.Context, refreshToken string) (*domain.TokenSet, error)
	ExchangeCodeForSession(ctx context.Context, code, verifier string) (*domain.TokenSet, error)
	GetUser(ctx context.Context, accessToken string) (*domain.User, error)
	UpdateUserMetadata(ctx context.Context, accessToken string, data domain.UserMetadata) (*domain.User, error)
	SignOut(ctx context.Context, accessToken string) error
	AuthorizeURL(provider, redirectTo, verifier string) string
}

type Config struct {
	SessionTTL    time.Duration
	RefreshLeeway time.Duration
}

type UseCase struct {
	provider Provider
	sessions repository.SessionRepository
	clock    clockwork.Clock
	cfg      Config
	refresh  singleflight.Group
	logger   *zap.Logger
}

func New(provider Provider, sessions repository.SessionRepository, clock clockwork.Clock, cfg Config, log *zap.Logger) *UseCase {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.RefreshLeeway <= 0 {
		cfg.RefreshLeeway = defaultRefreshSlack
	}
	return &UseCase{
		provider: provider,
		sessions: sessions,
		clock:    clock,
		cfg:      cfg,
		logger:   log,
	}
}

// SafeGetSession loads the session behind sessionID and makes sure its user is
// still valid upstream. Anything short of a validated user yields (nil, nil);
// only store failures are returned as errors. A validated session gets a
// sliding expiry.
func (uc *UseCase) SafeGetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	log := logger.WithRequestID(ctx, uc.logger)

	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if session.IsPending() {
		return nil, nil
	}

	if session.TokenExpired(uc.clock.Now(), uc.cfg.RefreshLeeway) {
		session, err = uc.refreshSession(ctx, session)
		if err != nil {
			log.Info("session refresh failed", zap.String("session_id", sessionID), zap.Error(err))
			uc.discard(ctx, sessionID)
			return nil, nil
		}
	}

	user, err := uc.provider.GetUser(ctx, session.AccessToken)
	if err != nil {
		if _, ok := supabase.IsAPIError(err); ok {
			log.Info("session user rejected", zap.String("session_id", sessionID), zap.Error(err))
			uc.discard(ctx, sessionID)
		} else {
			log.Warn("session user lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, nil
	}

	session.User = user
	session.UserID = user.ID
	uc.slide(ctx, session)
	return session, nil
}

// slide moves a validated session's expiry to a full TTL from now. Stores are
// written at most once per extendInterval for a busy session.
func (uc *UseCase) slide(ctx context.Context, session *domain.Session) {
	now := uc.clock.Now()
	if session.ExpiresAt.After(now.Add(uc.cfg.SessionTTL - extendInterval)) {
		return
	}
	if err := uc.sessions.Extend(ctx, session.ID, uc.cfg.SessionTTL); err != nil {
		logger.WithRequestID(ctx, uc.logger).Warn("failed to extend session",
			zap.String("session_id", session.ID), zap.Error(err))
		return
	}
	session.ExpiresAt = now.Add(uc.cfg.SessionTTL)
}

func (uc *UseCase) refreshSession(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	out, err, _ := uc.refresh.Do(session.ID, func() (interface{}, error) {
		tokens, err := uc.provider.RefreshSession(ctx, session.RefreshToken)
		if err != nil {
			metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.TokenRefreshTotal.WithLabelValues("ok").Inc()

		refreshed := *session
		refreshed.Apply(tokens)
		if err := uc.sessions.Save(ctx, &refreshed); err != nil {
			return nil, err
		}
		return &refreshed, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers sharing one refresh must not share the struct.
	cp := *out.(*domain.Session)
	return &cp, nil
}

// Login runs the password grant and stores a new session.
func (uc *UseCase) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	tokens, err := uc.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		logger.WithRequestID(ctx, uc.logger).Info("login failed", zap.Error(err))
		return nil, domain.WrapError(domain.ErrCodeInvalid, loginMessage(err), err)
	}

	session := uc.newSession()
	session.Apply(tokens)
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func loginMessage(err error) string {
	apiErr, ok := supabase.IsAPIError(err)
	if !ok {
		return msgAuthUnavailable
	}
	if strings.Contains(strings.ToLower(apiErr.Message), invalidCredentials) {
		return msgAccountNotFound
	}
	return apiErr.Message
}

// Signup registers an account with its display name. Confirmation happens by
// email, so no session is created.
func (uc *UseCase) Signup(ctx context.Context, email, password, name string) error {
	err := uc.provider.SignUp(ctx, email, password, domain.UserMetadata{
		domain.MetaDisplayName: name,
	})
	if err != nil {
		logger.WithRequestID(ctx, uc.logger).Info("signup failed", zap.Error(err))
		return domain.WrapError(domain.ErrCodeInvalid, "signup failed", err)
	}
	return nil
}

// StartOAuth stores a pending session holding the PKCE verifier and returns
// the provider's authorize URL.
func (uc *UseCase) StartOAuth(ctx context.Context, provider, redirectTo string) (*domain.Session, string, error) {
	if provider == "" {
		return nil, "", domain.NewError(domain.ErrCodeInvalid, "provider is required")
	}
	session := uc.newSession()
	session.CodeVerifier = supabase.NewVerifier()
	session.ExpiresAt = session.CreatedAt.Add(pendingSessionTTL)
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, "", err
	}
	return session, uc.provider.AuthorizeURL(provider, redirectTo, session.CodeVerifier), nil
}

// AuthCallback finishes an OAuth sign in. Failures are logged and swallowed;
// the browser always lands on the dashboard and the guard sorts it out.
func (uc *UseCase) AuthCallback(ctx context.Context, sessionID, code string) *domain.Session {
	log := logger.WithRequestID(ctx, uc.logger)

	var session *domain.Session
	if code != "" {
		pending, err := uc.sessions.Get(ctx, sessionID)
		switch {
		case err != nil:
			log.Warn("oauth callback without pending session", zap.Error(err))
		case pending.CodeVerifier == "":
			log.Warn("oauth callback session has no verifier", zap.String("session_id", sessionID))
		default:
			tokens, err := uc.provider.ExchangeCodeForSession(ctx, code, pending.CodeVerifier)
			if err != nil {
				log.Warn("oauth code exchange failed", zap.Error(err))
				uc.discard(ctx, sessionID)
				return nil
			}
			pending.Apply(tokens)
			pending.ExpiresAt = uc.clock.Now().Add(uc.cfg.SessionTTL)
			if err := uc.sessions.Save(ctx, pending); err != nil {
				log.Error("failed to store oauth session", zap.Error(err))
				return nil
			}
			session = pending
		}
	}

	if session == nil {
		current, err := uc.SafeGetSession(ctx, sessionID)
		if err != nil || current == nil {
			return nil
		}
		session = current
	}

	if session.User.NeedsDisplayName() {
		name := session.User.FallbackDisplayName()
		if _, err := uc.UpdateMetadata(ctx, session, domain.UserMetadata{domain.MetaDisplayName: name}); err != nil {
			log.Warn("failed to seed display name", zap.String("user_id", session.UserID), zap.Error(err))
		}
	}
	return session
}

// Logout revokes the upstream session and forgets the local one.
func (uc *UseCase) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	session, err := uc.sessions.Get(ctx, sessionID)
	if err == nil && session.AccessToken != "" {
		if err := uc.provider.SignOut(ctx, session.AccessToken); err != nil {
			logger.WithRequestID(ctx, uc.logger).Info("upstream sign out failed", zap.Error(err))
		}
	}
	if err := uc.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	return nil
}

// UpdateMetadata patches user_metadata upstream and stores the returned user
// in the session.
func (uc *UseCase) UpdateMetadata(ctx context.Context, session *domain.Session, data domain.UserMetadata) (*domain.User, error) {
	if session == nil || session.AccessToken == "" {
		return nil, domain.ErrNotAuthenticated
	}
	user, err := uc.provider.UpdateUserMetadata(ctx, session.AccessToken, data)
	if err != nil {
		return nil, err
	}
	session.User = user
	if err := uc.Save(ctx, session); err != nil {
		logger.WithRequestID(ctx, uc.logger).Warn("failed to store updated user", zap.Error(err))
	}
	return user, nil
}

// Save persists changes made to a live session, e.g. generation tracking.
// Bearer sessions have no id and live only for the request.
func (uc *UseCase) Save(ctx context.Context, session *domain.Session) error {
	if session.ID == "" {
		return nil
	}
	return uc.sessions.Save(ctx, session)
}

// End removes a session without contacting the auth provider.
func (uc *UseCase) End(ctx context.Context, sessionID string) {
	uc.discard(ctx, sessionID)
}

func (uc *UseCase) newSession() *domain.Session {
	now := uc.clock.Now()
	return &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(uc.cfg.SessionTTL),
	}
}

func (uc *UseCase) discard(ctx context.Context, sessionID string) {
	if err := uc.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		logger.WithRequestID(ctx, uc.logger).Warn("failed to delete session", zap.String("session_id", sessionID), zap.Error(err))
	}
}
