package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/api/transport"
	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/middleware"
	"github.com/audiobrew/web/pkg/httpcontext"
)

// PageHandler serves the data pages load on the server.
type PageHandler struct {
	baseHandler
}

func NewPageHandler(adapter *httpcontext.Adapter, logger *zap.Logger) *PageHandler {
	return &PageHandler{baseHandler: newBaseHandler(adapter, logger)}
}

// @Summary Layout data shared by every page
// @Tags pages
// @Router /api/session [get]
func (h *PageHandler) Layout(ctx *fasthttp.RequestCtx) {
	h.writeJSON(ctx, http.StatusOK, transport.NewLayoutData(middleware.SessionFrom(ctx)))
}

// @Summary Profile page data
// @Tags pages
// @Router /dashboard/profile [get]
func (h *PageHandler) Profile(ctx *fasthttp.RequestCtx) {
	session := middleware.SessionFrom(ctx)
	if session == nil {
		h.writeProxyError(ctx, http.StatusUnauthorized, domain.ErrUnauthorized.Message)
		return
	}
	h.writeJSON(ctx, http.StatusOK, transport.ProfilePageData{User: session.User})
}
