package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/api/transport"
	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/middleware"
	"github.com/audiobrew/web/pkg/httpcontext"
	authUC "github.com/audiobrew/web/usecase/auth"
)

const (
	authPage      = "/auth"
	authErrorPage = "/auth/error"
)

type AuthHandler struct {
	baseHandler
	uc          *authUC.UseCase
	cookie      middleware.SessionCookie
	callbackURL string
}

func NewAuthHandler(uc *authUC.UseCase, cookie middleware.SessionCookie, callbackURL string, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		cookie:      cookie,
		callbackURL: callbackURL,
	}
}

// @Summary Sign in with email and password
// @Tags auth
// @Router /login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	form := transport.ParseLoginForm(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session, err := h.uc.Login(stdCtx, form.Email, form.Password)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeInvalid) {
			h.writeProxyError(ctx, http.StatusBadRequest, domain.PublicMessage(err, ""))
			return
		}
		h.respondError(ctx, err)
		return
	}
	h.cookie.Write(ctx, session.ID, session.ExpiresAt)
	h.redirect(ctx, dashboardPage, http.StatusSeeOther)
}

// @Summary Register a new account
// @Tags auth
// @Router /signup [post]
func (h *AuthHandler) Signup(ctx *fasthttp.RequestCtx) {
	form := transport.ParseSignupForm(ctx)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Signup(stdCtx, form.Email, form.Password, form.Name); err != nil {
		h.redirect(ctx, authErrorPage, http.StatusSeeOther)
		return
	}
	h.writeJSON(ctx, http.StatusOK, transport.SignupResponse{Success: true})
}

// @Summary Start an OAuth sign in
// @Tags auth
// @Router /auth/oauth [get]
func (h *AuthHandler) OAuth(ctx *fasthttp.RequestCtx) {
	provider := queryArg(ctx, "provider")
	if provider == "" {
		provider = "google"
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session, authorizeURL, err := h.uc.StartOAuth(stdCtx, provider, h.callbackURL)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.cookie.Write(ctx, session.ID, session.ExpiresAt)
	h.redirect(ctx, authorizeURL, http.StatusSeeOther)
}

// @Summary OAuth redirect target
// @Tags auth
// @Router /auth/callback [get]
func (h *AuthHandler) Callback(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session := h.uc.AuthCallback(stdCtx, h.cookie.Read(ctx), queryArg(ctx, "code"))
	if session != nil {
		h.cookie.Write(ctx, session.ID, session.ExpiresAt)
	}
	h.redirect(ctx, dashboardPage, http.StatusSeeOther)
}

// @Summary Sign out
// @Tags auth
// @Router /logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Logout(stdCtx, h.cookie.Read(ctx)); err != nil {
		h.logger.Warn("logout failed", zap.String("request_id", httpcontext.RequestID(ctx)), zap.Error(err))
	}
	h.cookie.Clear(ctx)
	h.redirect(ctx, authPage, http.StatusSeeOther)
}
