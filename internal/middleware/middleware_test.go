package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/supabase"
)

const testCookie = "audiobrew-session"

type loaderFunc func(ctx context.Context, id string) (*domain.Session, error)

func (f loaderFunc) SafeGetSession(ctx context.Context, id string) (*domain.Session, error) {
	return f(ctx, id)
}

func newCtx(method, uri string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	ctx.Request.Header.SetHost("localhost")
	return ctx
}

func location(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Response.Header.Peek("Location"))
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		session    *domain.Session
		wantStatus int
		wantTarget string
	}{
		{name: "anonymous dashboard", path: "/dashboard", wantStatus: fasthttp.StatusSeeOther, wantTarget: "/auth"},
		{name: "anonymous nested dashboard", path: "/dashboard/profile", wantStatus: fasthttp.StatusSeeOther, wantTarget: "/auth"},
		{name: "signed in auth page", path: "/auth", session: &domain.Session{UserID: "u1"}, wantStatus: fasthttp.StatusSeeOther, wantTarget: "/dashboard"},
		{name: "signed in dashboard", path: "/dashboard", session: &domain.Session{UserID: "u1"}, wantStatus: fasthttp.StatusOK},
		{name: "anonymous auth page", path: "/auth", wantStatus: fasthttp.StatusOK},
		{name: "anonymous api", path: "/api/podcast/list", wantStatus: fasthttp.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newCtx(fasthttp.MethodGet, tt.path)
			if tt.session != nil {
				SetSession(ctx, tt.session)
			}
			called := false
			Guard(func(ctx *fasthttp.RequestCtx) { called = true })(ctx)

			assert.Equal(t, tt.wantStatus, ctx.Response.StatusCode())
			if tt.wantTarget == "" {
				assert.True(t, called)
				return
			}
			assert.False(t, called)
			assert.True(t, strings.HasSuffix(location(ctx), tt.wantTarget), location(ctx))
		})
	}
}

func TestSessions_LoadFromCookie(t *testing.T) {
	var gotID string
	loader := loaderFunc(func(_ context.Context, id string) (*domain.Session, error) {
		gotID = id
		return &domain.Session{ID: id, UserID: "u1"}, nil
	})
	sessions := NewSessions(loader, SessionCookie{Name: testCookie}, nil, nil)

	ctx := newCtx(fasthttp.MethodGet, "/api/session")
	ctx.Request.Header.SetCookie(testCookie, "sid-1")

	var seen *domain.Session
	sessions.Load(func(ctx *fasthttp.RequestCtx) { seen = SessionFrom(ctx) })(ctx)

	require.NotNil(t, seen)
	assert.Equal(t, "sid-1", gotID)
	assert.Equal(t, "u1", seen.UserID)
}

func TestSessions_RewritesCookieExpiry(t *testing.T) {
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	loader := loaderFunc(func(_ context.Context, id string) (*domain.Session, error) {
		return &domain.Session{ID: id, UserID: "u1", ExpiresAt: expires}, nil
	})
	sessions := NewSessions(loader, SessionCookie{Name: testCookie}, nil, nil)

	ctx := newCtx(fasthttp.MethodGet, "/api/session")
	ctx.Request.Header.SetCookie(testCookie, "sid-1")
	sessions.Load(func(*fasthttp.RequestCtx) {})(ctx)

	cookie := string(ctx.Response.Header.PeekCookie(testCookie))
	assert.Contains(t, cookie, testCookie+"=sid-1")
	assert.Contains(t, cookie, "expires=Wed, 02 Jan 2030 03:04:05 GMT")
}

func TestSessions_LoaderErrorLeavesRequestAnonymous(t *testing.T) {
	loader := loaderFunc(func(context.Context, string) (*domain.Session, error) {
		return nil, errors.New("store down")
	})
	sessions := NewSessions(loader, SessionCookie{Name: testCookie}, nil, nil)

	ctx := newCtx(fasthttp.MethodGet, "/dashboard")
	ctx.Request.Header.SetCookie(testCookie, "sid-1")

	called := false
	sessions.Load(func(ctx *fasthttp.RequestCtx) {
		called = true
		assert.Nil(t, SessionFrom(ctx))
	})(ctx)
	assert.True(t, called)
}

func TestSessions_SkipsHealth(t *testing.T) {
	loader := loaderFunc(func(context.Context, string) (*domain.Session, error) {
		t.Fatal("loader must not run for /health")
		return nil, nil
	})
	sessions := NewSessions(loader, SessionCookie{Name: testCookie}, nil, nil)

	ctx := newCtx(fasthttp.MethodGet, "/health")
	ctx.Request.Header.SetCookie(testCookie, "sid-1")
	sessions.Load(func(*fasthttp.RequestCtx) {})(ctx)
}

func signToken(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	claims := supabase.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-7",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:        "ada@example.com",
		UserMetadata: map[string]interface{}{"display_name": "ada"},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestSessions_BearerFallback(t *testing.T) {
	loader := loaderFunc(func(context.Context, string) (*domain.Session, error) { return nil, nil })
	sessions := NewSessions(loader, SessionCookie{Name: testCookie}, nil, nil).
		WithBearer(supabase.NewClaimsParser("secret"))

	ctx := newCtx(fasthttp.MethodGet, "/api/profile/notice")
	ctx.Request.Header.Set("Authorization", "Bearer "+signToken(t, "secret", time.Now().Add(time.Hour)))

	var seen *domain.Session
	sessions.Load(func(ctx *fasthttp.RequestCtx) { seen = SessionFrom(ctx) })(ctx)

	require.NotNil(t, seen)
	assert.Empty(t, seen.ID)
	assert.Equal(t, "user-7", seen.UserID)
	assert.Equal(t, "ada", seen.User.DisplayName())
}

func TestBearerSession_Rejects(t *testing.T) {
	parser := supabase.NewClaimsParser("secret")

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header"},
		{name: "wrong scheme", header: "Token " + signToken(t, "secret", time.Now().Add(time.Hour))},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other", time.Now().Add(time.Hour))},
		{name: "expired", header: "Bearer " + signToken(t, "secret", time.Now().Add(-time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newCtx(fasthttp.MethodGet, "/api/session")
			if tt.header != "" {
				ctx.Request.Header.Set("Authorization", tt.header)
			}
			assert.Nil(t, BearerSession(parser, ctx, zap.NewNop()))
		})
	}
}

func TestSessionCookie_WriteAndClear(t *testing.T) {
	cookie := SessionCookie{Name: testCookie, Secure: true}

	ctx := newCtx(fasthttp.MethodPost, "/login")
	cookie.Write(ctx, "sid-9", time.Now().Add(time.Hour))

	raw := string(ctx.Response.Header.PeekCookie(testCookie))
	assert.Contains(t, raw, testCookie+"=sid-9")
	assert.Contains(t, raw, "HttpOnly")
	assert.Contains(t, raw, "secure")
	assert.Contains(t, raw, "SameSite=Lax")
	assert.Contains(t, raw, "path=/")

	ctx = newCtx(fasthttp.MethodPost, "/logout")
	cookie.Clear(ctx)
	raw = string(ctx.Response.Header.PeekCookie(testCookie))
	assert.Contains(t, raw, testCookie+"=;")
	assert.Contains(t, raw, "expires=Tue, 10 Nov 2009")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, nil)
	handler := rl.Middleware(func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(fasthttp.StatusOK) })

	call := func(path, ip string) *fasthttp.RequestCtx {
		ctx := newCtx(fasthttp.MethodGet, path)
		ctx.Request.Header.Set("X-Forwarded-For", ip)
		handler(ctx)
		return ctx
	}

	assert.Equal(t, fasthttp.StatusOK, call("/api/podcast/list", "10.0.0.1").Response.StatusCode())

	limited := call("/api/podcast/list", "10.0.0.1")
	assert.Equal(t, fasthttp.StatusTooManyRequests, limited.Response.StatusCode())
	assert.JSONEq(t, `{"error":"Too many requests"}`, string(limited.Response.Body()))
	assert.Equal(t, "1", string(limited.Response.Header.Peek("Retry-After")))

	assert.Equal(t, fasthttp.StatusOK, call("/api/podcast/list", "10.0.0.2").Response.StatusCode(), "buckets are per client")
	assert.Equal(t, fasthttp.StatusOK, call("/dashboard", "10.0.0.1").Response.StatusCode(), "pages are not limited")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(10, 10, nil)
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	now = now.Add(5 * time.Minute)
	rl.allow("10.0.0.2")

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, rl.Cleanup())
	assert.Equal(t, 0, rl.Cleanup())
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return func(ctx *fasthttp.RequestCtx) {
				order = append(order, name)
				next(ctx)
			}
		}
	}

	h := Chain(func(*fasthttp.RequestCtx) { order = append(order, "handler") }, mw("first"), mw("second"))
	h(newCtx(fasthttp.MethodGet, "/"))

	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestObserve_SetsRequestID(t *testing.T) {
	ctx := newCtx(fasthttp.MethodGet, "/api/session")
	ctx.Request.Header.Set("X-Request-ID", "req-1")

	Observe(nil)(func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(fasthttp.StatusOK) })(ctx)

	assert.Equal(t, "req-1", string(ctx.Response.Header.Peek("X-Request-ID")))
}
