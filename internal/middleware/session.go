package middleware

import (
	"context"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/supabase"
	"github.com/audiobrew/web/pkg/httpcontext"
	"github.com/audiobrew/web/pkg/logger"
)

const userValueSession = "middleware.session"

// SessionLoader resolves a session id into a validated session.
type SessionLoader interface {
	SafeGetSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// SessionFrom returns the session attached by Sessions.Load, or nil.
func SessionFrom(ctx *fasthttp.RequestCtx) *domain.Session {
	session, _ := ctx.UserValue(userValueSession).(*domain.Session)
	return session
}

// SetSession attaches session to the request.
func SetSession(ctx *fasthttp.RequestCtx, session *domain.Session) {
	ctx.SetUserValue(userValueSession, session)
}

// Sessions hydrates every page and API request with the caller's session.
type Sessions struct {
	loader  SessionLoader
	cookie  SessionCookie
	adapter *httpcontext.Adapter
	bearer  *supabase.ClaimsParser
	logger  *zap.Logger
}

func NewSessions(loader SessionLoader, cookie SessionCookie, adapter *httpcontext.Adapter, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}
	return &Sessions{loader: loader, cookie: cookie, adapter: adapter, logger: log}
}

// WithBearer also accepts signed access tokens in the Authorization header.
// The parser must verify signatures.
func (s *Sessions) WithBearer(parser *supabase.ClaimsParser) *Sessions {
	s.bearer = parser
	return s
}

func (s *Sessions) Load(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if skipSession(string(ctx.Path())) {
			next(ctx)
			return
		}

		var session *domain.Session
		if id := s.cookie.Read(ctx); id != "" {
			stdCtx, cancel := s.adapter.Attach(ctx)
			loaded, err := s.loader.SafeGetSession(stdCtx, id)
			cancel()
			if err != nil {
				logger.WithRequestID(stdCtx, s.logger).Error("session lookup failed", zap.Error(err))
			}
			if loaded != nil && loaded.ID == id && !loaded.ExpiresAt.IsZero() {
				// Keep the cookie in step with the sliding expiry.
				s.cookie.Write(ctx, id, loaded.ExpiresAt)
			}
			session = loaded
		}
		if session == nil && s.bearer != nil {
			session = BearerSession(s.bearer, ctx, s.logger)
		}
		if session != nil {
			SetSession(ctx, session)
		}
		next(ctx)
	}
}

// Guard keeps anonymous users out of the dashboard and signed in users off
// the auth page.
func Guard(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		session := SessionFrom(ctx)

		if session == nil && strings.HasPrefix(path, "/dashboard") {
			ctx.Redirect("/auth", fasthttp.StatusSeeOther)
			return
		}
		if session != nil && path == "/auth" {
			ctx.Redirect("/dashboard", fasthttp.StatusSeeOther)
			return
		}
		next(ctx)
	}
}

func skipSession(path string) bool {
	switch path {
	case "/health", "/metrics", "/favicon.ico":
		return true
	}
	return false
}
