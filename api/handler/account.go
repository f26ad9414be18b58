package handler

import (
	"net/http"
	"net/url"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/middleware"
	"github.com/audiobrew/web/internal/upstream"
	"github.com/audiobrew/web/pkg/httpcontext"
	"github.com/audiobrew/web/pkg/notice"
	authUC "github.com/audiobrew/web/usecase/auth"
	profileUC "github.com/audiobrew/web/usecase/profile"
)

const msgAccountDeleteFailed = "Failed to delete account due to network error"

type AccountHandler struct {
	proxy
	profile *profileUC.UseCase
	auth    *authUC.UseCase
	cookie  middleware.SessionCookie
}

func NewAccountHandler(
	backend Backend,
	profile *profileUC.UseCase,
	auth *authUC.UseCase,
	cookie middleware.SessionCookie,
	adapter *httpcontext.Adapter,
	logger *zap.Logger,
) *AccountHandler {
	return &AccountHandler{
		proxy:   proxy{baseHandler: newBaseHandler(adapter, logger), backend: backend},
		profile: profile,
		auth:    auth,
		cookie:  cookie,
	}
}

// @Summary Delete a user on the backend
// @Tags account
// @Router /api/user/{user_id} [delete]
func (h *AccountHandler) DeleteUser(ctx *fasthttp.RequestCtx) {
	userID := pathParam(ctx, "user_id")
	if userID == "" {
		h.writeProxyError(ctx, http.StatusBadRequest, domain.ErrUserIDRequired.Message)
		return
	}
	h.relay(ctx, upstream.Request{
		Method:   http.MethodDelete,
		Endpoint: "/api/user/" + url.PathEscape(userID),
	}, msgAccountDeleteFailed)
}

// @Summary Delete the signed in user's account and end the session
// @Tags account
// @Success 200 {object} transport.Envelope
// @Router /api/account [delete]
func (h *AccountHandler) DeleteAccount(ctx *fasthttp.RequestCtx) {
	session := middleware.SessionFrom(ctx)
	if session == nil {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.profile.DeleteAccount(stdCtx, session.UserID); err != nil {
		h.profile.PostNotice(session, notice.KindError, domain.PublicMessage(err, msgInternal))
		h.respondError(ctx, err)
		return
	}
	h.auth.End(stdCtx, session.ID)
	h.cookie.Clear(ctx)
	h.respondSuccess(ctx, http.StatusOK, nil)
}
