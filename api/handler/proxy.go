package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/upstream"
	"github.com/audiobrew/web/pkg/logger"
)

// Backend executes requests against the FastAPI backend.
type Backend interface {
	Do(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

// proxy relays a backend call and its outcome to the browser.
type proxy struct {
	baseHandler
	backend Backend
}

// relay forwards req. OK replies are sent back as 200 with the backend JSON,
// other statuses keep their code. Transport failures and OK replies that are
// not JSON become a 500 with failure as the message.
func (p proxy) relay(ctx *fasthttp.RequestCtx, req upstream.Request, failure string) (*upstream.Response, bool) {
	stdCtx, cancel := p.requestContext(ctx)
	defer cancel()

	resp, err := p.backend.Do(stdCtx, req)
	if err != nil {
		logger.WithRequestID(stdCtx, p.logger).Error(failure,
			zap.String("method", req.Method),
			zap.String("endpoint", req.Endpoint),
			zap.Error(err))
		p.writeProxyError(ctx, http.StatusInternalServerError, failure)
		return nil, false
	}

	if !resp.OK() {
		p.writeRaw(ctx, resp.Status, resp.ErrorBody())
		return resp, false
	}
	body := resp.JSONBody(nil)
	if body == nil {
		logger.WithRequestID(stdCtx, p.logger).Error(failure,
			zap.String("method", req.Method),
			zap.String("endpoint", req.Endpoint),
			zap.Int("status", resp.Status),
			zap.String("content_type", resp.ContentType),
			zap.String("reason", "response is not json"))
		p.writeProxyError(ctx, http.StatusInternalServerError, failure)
		return resp, false
	}
	p.writeRaw(ctx, http.StatusOK, body)
	return resp, true
}

// requireUserID reads the user_id query argument or answers 400.
func (p proxy) requireUserID(ctx *fasthttp.RequestCtx) (string, bool) {
	userID := queryArg(ctx, "user_id")
	if userID == "" {
		p.writeProxyError(ctx, http.StatusBadRequest, domain.ErrUserIDRequired.Message)
		return "", false
	}
	return userID, true
}
