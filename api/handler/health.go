package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/api/transport"
	"github.com/audiobrew/web/internal/infrastructure/monitor"
	"github.com/audiobrew/web/pkg/httpcontext"
)

// StatusReporter exposes the last dependency check.
type StatusReporter interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusReporter
}

func NewHealthHandler(mon StatusReporter, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp": status.LastCheck,
		"services": map[string]interface{}{
			"session_store": map[string]interface{}{
				"online": status.SessionStore,
				"kind":   status.StoreKind,
			},
			"backend": status.Backend,
		},
	}

	if status.SessionStore && status.Backend {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", payload))
}
