package middleware

import (
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/internal/metrics"
	"github.com/audiobrew/web/pkg/httpcontext"
)

// Observe assigns the request id, records request metrics and logs the
// request. It must wrap everything else.
func Observe(logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			reqID := httpcontext.RequestID(ctx)

			next(ctx)

			route := routeLabel(ctx)
			method := string(ctx.Method())
			status := ctx.Response.StatusCode()
			elapsed := time.Since(start)

			metrics.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())

			if skipSession(string(ctx.Path())) {
				return
			}
			logger.Info("request",
				zap.String("request_id", reqID),
				zap.String("method", method),
				zap.String("path", string(ctx.Path())),
				zap.Int("status", status),
				zap.Duration("duration", elapsed))
		}
	}
}

// Chain wraps h so that the first middleware runs first.
func Chain(h fasthttp.RequestHandler, mws ...func(fasthttp.RequestHandler) fasthttp.RequestHandler) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// routeLabel prefers the matched route pattern to keep label cardinality low.
func routeLabel(ctx *fasthttp.RequestCtx) string {
	if matched, ok := ctx.UserValue(router.MatchedRoutePathParam).(string); ok && matched != "" {
		return matched
	}
	return "unmatched"
}
