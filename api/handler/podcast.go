package handler

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/middleware"
	"github.com/audiobrew/web/internal/upstream"
	"github.com/audiobrew/web/pkg/httpcontext"
	"github.com/audiobrew/web/pkg/logger"
	"github.com/audiobrew/web/pkg/notice"
	podcastUC "github.com/audiobrew/web/usecase/podcast"
)

const (
	msgPodcastsFailed   = "Failed to fetch podcasts"
	msgPodcastFailed    = "Failed to fetch podcast"
	msgPodcastDelete    = "Failed to delete podcast"
	msgGenerateFailed   = "Failed to start podcast generation"
	msgPodcastDeleted   = "Podcast deleted"
	dashboardPage       = "/dashboard"
	feedContentType     = "application/rss+xml; charset=utf-8"
	scriptContentType   = "text/html; charset=utf-8"
	generateBodyMaxSize = 64 << 10
)

// Notices posts flash messages for the dashboard.
type Notices interface {
	PostNotice(session *domain.Session, kind, msg string)
}

type PodcastHandler struct {
	proxy
	uc        *podcastUC.UseCase
	tracker   *podcastUC.Tracker
	notices   Notices
	publicURL string
}

func NewPodcastHandler(
	backend Backend,
	uc *podcastUC.UseCase,
	tracker *podcastUC.Tracker,
	notices Notices,
	publicURL string,
	adapter *httpcontext.Adapter,
	logger *zap.Logger,
) *PodcastHandler {
	return &PodcastHandler{
		proxy:     proxy{baseHandler: newBaseHandler(adapter, logger), backend: backend},
		uc:        uc,
		tracker:   tracker,
		notices:   notices,
		publicURL: publicURL,
	}
}

// @Summary List the user's podcasts
// @Tags podcast
// @Router /api/podcast/list [get]
func (h *PodcastHandler) List(ctx *fasthttp.RequestCtx) {
	userID, ok := h.requireUserID(ctx)
	if !ok {
		return
	}
	h.relay(ctx, upstream.Request{
		Method:   http.MethodGet,
		Endpoint: "/api/podcast/list",
		Query:    url.Values{"user_id": {userID}},
	}, msgPodcastsFailed)
}

// @Summary Get one podcast
// @Tags podcast
// @Router /api/podcast/{id} [get]
func (h *PodcastHandler) Get(ctx *fasthttp.RequestCtx) {
	userID, ok := h.requireUserID(ctx)
	if !ok {
		return
	}
	h.relay(ctx, upstream.Request{
		Method:   http.MethodGet,
		Endpoint: podcastUC.Endpoint(pathParam(ctx, "id")),
		Query:    url.Values{"user_id": {userID}},
	}, msgPodcastFailed)
}

// @Summary Delete a podcast
// @Tags podcast
// @Router /api/podcast/{id} [delete]
func (h *PodcastHandler) Delete(ctx *fasthttp.RequestCtx) {
	userID, ok := h.requireUserID(ctx)
	if !ok {
		return
	}
	h.relay(ctx, upstream.Request{
		Method:   http.MethodDelete,
		Endpoint: podcastUC.Endpoint(pathParam(ctx, "id")),
		Query:    url.Values{"user_id": {userID}},
	}, msgPodcastDelete)
}

// @Summary Delete a podcast from the dashboard form
// @Tags podcast
// @Router /dashboard/podcast/{id}/delete [post]
func (h *PodcastHandler) DeleteAction(ctx *fasthttp.RequestCtx) {
	session := middleware.SessionFrom(ctx)
	if session == nil {
		h.redirect(ctx, "/auth", http.StatusSeeOther)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Delete(stdCtx, pathParam(ctx, "id"), session.UserID); err != nil {
		h.notices.PostNotice(session, notice.KindError, domain.PublicMessage(err, msgPodcastDelete))
	} else {
		h.notices.PostNotice(session, notice.KindSuccess, msgPodcastDeleted)
	}
	h.redirect(ctx, dashboardPage, http.StatusSeeOther)
}

// @Summary Start generating a podcast
// @Tags podcast
// @Router /api/podcast/generate [post]
func (h *PodcastHandler) Generate(ctx *fasthttp.RequestCtx) {
	if len(ctx.PostBody()) > generateBodyMaxSize {
		h.writeProxyError(ctx, http.StatusRequestEntityTooLarge, domain.ErrInvalidPayload.Message)
		return
	}
	var req domain.GenerateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.writeProxyError(ctx, http.StatusBadRequest, domain.ErrInvalidPayload.Message)
		return
	}
	if req.UserID == "" {
		h.writeProxyError(ctx, http.StatusBadRequest, domain.ErrUserIDRequired.Message)
		return
	}
	if req.EmailIDs == nil {
		req.EmailIDs = []string{}
	}

	_, ok := h.relay(ctx, upstream.Request{
		Method:   http.MethodPost,
		Endpoint: "/api/podcast/generate",
		JSON:     req,
	}, msgGenerateFailed)
	if !ok {
		return
	}

	session := middleware.SessionFrom(ctx)
	if session == nil || session.UserID != req.UserID {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	count, known := intArg(ctx, "initial_count")
	if !known {
		podcasts, err := h.uc.List(stdCtx, req.UserID)
		if err != nil {
			logger.WithRequestID(stdCtx, h.logger).Warn("cannot count podcasts for generation tracking", zap.Error(err))
			return
		}
		count = len(podcasts)
	}
	if _, err := h.tracker.Start(stdCtx, session, count); err != nil {
		logger.WithRequestID(stdCtx, h.logger).Warn("failed to track generation", zap.Error(err))
	}
}

// @Summary Poll podcast generation state
// @Tags podcast
// @Router /api/podcast/generation [get]
func (h *PodcastHandler) Generation(ctx *fasthttp.RequestCtx) {
	session := middleware.SessionFrom(ctx)
	if session == nil {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}
	count, ok := intArg(ctx, "count")
	if !ok {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "count is required"))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	status, err := h.tracker.Status(stdCtx, session, count)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, status)
}

// @Summary Stop tracking podcast generation
// @Tags podcast
// @Router /api/podcast/generation [delete]
func (h *PodcastHandler) StopGeneration(ctx *fasthttp.RequestCtx) {
	session := middleware.SessionFrom(ctx)
	if session == nil {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.tracker.Stop(stdCtx, session); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, podcastUC.GenerationStatus{})
}

// @Summary RSS feed of the user's podcasts
// @Tags podcast
// @Router /api/podcast/feed/{user_id} [get]
func (h *PodcastHandler) Feed(ctx *fasthttp.RequestCtx) {
	userID := pathParam(ctx, "user_id")

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	feedURL := h.publicURL + "/api/podcast/feed/" + url.PathEscape(userID)
	xml, err := h.uc.Feed(stdCtx, userID, feedURL)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.Response.Header.SetContentType(feedContentType)
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetBodyString(xml)
}

// @Summary Download a podcast's audio
// @Tags podcast
// @Router /api/podcast/{id}/download [get]
func (h *PodcastHandler) Download(ctx *fasthttp.RequestCtx) {
	p, ok := h.loadPodcast(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	audio, err := h.uc.Download(stdCtx, p)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.Response.Header.SetContentType(audio.ContentType)
	ctx.Response.Header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": audio.FileName}))
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetBody(audio.Body)
}

// @Summary Share payload for a podcast
// @Tags podcast
// @Router /api/podcast/{id}/share [get]
func (h *PodcastHandler) Share(ctx *fasthttp.RequestCtx) {
	p, ok := h.loadPodcast(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	payload, err := h.uc.Share(stdCtx, p)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, payload)
}

// @Summary Podcast script as HTML
// @Tags podcast
// @Router /api/podcast/{id}/script [get]
func (h *PodcastHandler) Script(ctx *fasthttp.RequestCtx) {
	p, ok := h.loadPodcast(ctx)
	if !ok {
		return
	}
	html, err := h.uc.Script(p)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.Response.Header.SetContentType(scriptContentType)
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetBody(html)
}

func (h *PodcastHandler) loadPodcast(ctx *fasthttp.RequestCtx) (*domain.Podcast, bool) {
	userID, ok := h.requireUserID(ctx)
	if !ok {
		return nil, false
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	p, err := h.uc.Get(stdCtx, pathParam(ctx, "id"), userID)
	if err != nil {
		h.respondError(ctx, err)
		return nil, false
	}
	return p, true
}

func intArg(ctx *fasthttp.RequestCtx, key string) (int, bool) {
	raw := queryArg(ctx, key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
