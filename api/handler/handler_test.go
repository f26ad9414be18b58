package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/middleware"
	"github.com/audiobrew/web/internal/upstream"
)

const testCookieName = "audiobrew-session"

var testCookie = middleware.SessionCookie{Name: testCookieName}

// fakeBackend answers upstream calls from a routing function and records them.
type fakeBackend struct {
	mu    sync.Mutex
	calls []upstream.Request
	route func(req upstream.Request) (*upstream.Response, error)
}

func newFakeBackend(route func(req upstream.Request) (*upstream.Response, error)) *fakeBackend {
	return &fakeBackend{route: route}
}

func (f *fakeBackend) Do(_ context.Context, req upstream.Request) (*upstream.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.route(req)
}

func (f *fakeBackend) Get(ctx context.Context, endpoint string, query url.Values) (*upstream.Response, error) {
	return f.Do(ctx, upstream.Request{Method: http.MethodGet, Endpoint: endpoint, Query: query})
}

func (f *fakeBackend) Delete(ctx context.Context, endpoint string, query url.Values) (*upstream.Response, error) {
	return f.Do(ctx, upstream.Request{Method: http.MethodDelete, Endpoint: endpoint, Query: query})
}

func (f *fakeBackend) Fetch(ctx context.Context, rawURL string) (*upstream.Response, error) {
	return f.Do(ctx, upstream.Request{Method: http.MethodGet, Endpoint: rawURL})
}

func (f *fakeBackend) requests() []upstream.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstream.Request(nil), f.calls...)
}

func jsonResponse(status int, body string) *upstream.Response {
	return &upstream.Response{Status: status, ContentType: "application/json", Body: []byte(body)}
}

func respondWith(resp *upstream.Response, err error) func(upstream.Request) (*upstream.Response, error) {
	return func(upstream.Request) (*upstream.Response, error) { return resp, err }
}

func newRequestCtx(method, uri string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	ctx.Request.Header.SetHost("localhost")
	return ctx
}

func withSession(ctx *fasthttp.RequestCtx, session *domain.Session) *fasthttp.RequestCtx {
	middleware.SetSession(ctx, session)
	return ctx
}

func withParam(ctx *fasthttp.RequestCtx, key, value string) *fasthttp.RequestCtx {
	ctx.SetUserValue(key, value)
	return ctx
}

func withJSON(ctx *fasthttp.RequestCtx, body string) *fasthttp.RequestCtx {
	ctx.Request.Header.SetContentType("application/json")
	ctx.Request.SetBodyString(body)
	return ctx
}

func redirectTarget(ctx *fasthttp.RequestCtx) string {
	loc := string(ctx.Response.Header.Peek("Location"))
	if u, err := url.Parse(loc); err == nil && u.Host != "" {
		return strings.TrimPrefix(loc, u.Scheme+"://"+u.Host)
	}
	return loc
}

func decodeEnvelope(t *testing.T, ctx *fasthttp.RequestCtx) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out))
	return out
}
