package handler

import (
	"net/http"
	"net/url"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/internal/upstream"
	"github.com/audiobrew/web/pkg/httpcontext"
	"github.com/audiobrew/web/pkg/logger"
	gmailUC "github.com/audiobrew/web/usecase/gmail"
)

const (
	profilePage = "/dashboard/profile"

	msgGmailAuthFailed       = "Failed to initiate Gmail authentication"
	msgGmailEmailsFailed     = "Failed to fetch Gmail emails"
	msgGmailLabelsFailed     = "Failed to fetch Gmail labels"
	msgGmailDisconnectFailed = "Failed to disconnect Gmail"
	msgGmailStatusFailed     = "Failed to check Gmail connection status"
	msgCallbackMissing       = "Missing parameters in callback"
	msgCallbackConnectFailed = "Failed to connect Gmail"
	msgCallbackProcessFailed = "Failed to process Gmail connection"
)

type GmailHandler struct {
	proxy
	uc *gmailUC.UseCase
}

func NewGmailHandler(backend Backend, uc *gmailUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *GmailHandler {
	return &GmailHandler{
		proxy: proxy{baseHandler: newBaseHandler(adapter, logger), backend: backend},
		uc:    uc,
	}
}

// @Summary Start the Gmail OAuth flow
// @Tags gmail
// @Router /api/auth/gmail [get]
func (h *GmailHandler) Auth(ctx *fasthttp.RequestCtx) {
	userID, ok := h.requireUserID(ctx)
	if !ok {
		return
	}
	h.relay(ctx, upstream.Request{
		Method:   http.MethodGet,
		Endpoint: "/api/gmail/auth",
		Query:    url.Values{"user_id": {userID}},
	}, msgGmailAuthFailed)
}

// @Summary Finish the Gmail OAuth flow
// @Tags gmail
// @Router /api/auth/gmail/callback [get]
func (h *GmailHandler) Callback(ctx *fasthttp.RequestCtx) {
	code := queryArg(ctx, "code")
	state := queryArg(ctx, "state")
	if code == "" || state == "" {
		h.redirectToProfile(ctx, "gmail_error", msgCallbackMissing)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()
	log := logger.WithRequestID(stdCtx, h.logger)

	resp, err := h.backend.Do(stdCtx, upstream.Request{
		Method:          http.MethodGet,
		Endpoint:        "/api/auth/gmail/callback",
		Query:           url.Values{"code": {code}, "state": {state}},
		FollowRedirects: true,
	})
	if err != nil {
		log.Error("gmail callback failed", zap.Error(err))
		h.redirectToProfile(ctx, "gmail_error", msgCallbackProcessFailed)
		return
	}
	if !resp.OK() {
		log.Error("gmail callback rejected",
			zap.Int("status", resp.Status),
			zap.ByteString("body", resp.Body))
		h.redirectToProfile(ctx, "gmail_error", msgCallbackConnectFailed)
		return
	}
	h.redirectToProfile(ctx, "gmail_connected", "true")
}

func (h *GmailHandler) redirectToProfile(ctx *fasthttp.RequestCtx, key, value string) {
	// encodeURIComponent style: spaces become %20, not "+".
	h.redirect(ctx, profilePage+"?"+key+"="+url.PathEscape(value), http.StatusFound)
}

// @Summary List emails under a Gmail label
// @Tags gmail
// @Router /api/gmail/emails [get]
func (h *GmailHandler) Emails(ctx *fasthttp.RequestCtx) {
	userID, ok := h.requireUserID(ctx)
	if !ok {
		return
	}
	query := url.Values{"user_id": {userID}}
	if labelID := queryArg(ctx, "label_id"); labelID != "" {
		query.Set("label_id", labelID)
	}
	h.relay(ctx, upstream.Request{Method: http.MethodGet, Endpoint: "/api/gmail/emails", Query: query}, msgGmailEmailsFailed)
}

// @Summary List Gmail labels
// @Tags gmail
// @Router /api/gmail/labels [get]
func (h *GmailHandler) Labels(ctx *fasthttp.RequestCtx) {
	userID, ok := h.requireUserID(ctx)
	if !ok {
		return
	}
	h.relay(ctx, upstream.Request{
		Method:   http.MethodGet,
		Endpoint: "/api/gmail/labels",
		Query:    url.Values{"user_id": {userID}},
	}, msgGmailLabelsFailed)
}

// @Summary Disconnect Gmail
// @Tags gmail
// @Router /api/gmail/disconnect [delete]
func (h *GmailHandler) Disconnect(ctx *fasthttp.RequestCtx) {
	userID, ok := h.requireUserID(ctx)
	if !ok {
		return
	}
	h.relay(ctx, upstream.Request{
		Method:   http.MethodDelete,
		Endpoint: "/api/gmail/disconnect",
		Query:    url.Values{"user_id": {userID}},
	}, msgGmailDisconnectFailed)
}

// @Summary Gmail connection status as reported by the backend
// @Tags gmail
// @Router /api/gmail/status [get]
func (h *GmailHandler) Status(ctx *fasthttp.RequestCtx) {
	userID, ok := h.requireUserID(ctx)
	if !ok {
		return
	}
	h.relay(ctx, upstream.Request{
		Method:   http.MethodGet,
		Endpoint: "/api/gmail/status",
		Query:    url.Values{"user_id": {userID}},
	}, msgGmailStatusFailed)
}

// @Summary Gmail connection summary for the dashboard
// @Tags gmail
// @Router /api/gmail/connection [get]
func (h *GmailHandler) Connection(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()
	h.writeJSON(ctx, http.StatusOK, h.uc.CheckConnection(stdCtx, queryArg(ctx, "user_id")))
}

// @Summary Whether the AudioBrew label exists
// @Tags gmail
// @Router /api/gmail/label-status [get]
func (h *GmailHandler) LabelStatus(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()
	h.writeJSON(ctx, http.StatusOK, h.uc.CheckLabel(stdCtx, queryArg(ctx, "user_id")))
}
