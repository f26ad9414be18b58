package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/api/transport"
	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/middleware"
	"github.com/audiobrew/web/pkg/httpcontext"
	profileUC "github.com/audiobrew/web/usecase/profile"
)

const imageField = "file"

type ProfileHandler struct {
	baseHandler
	uc *profileUC.UseCase
}

func NewProfileHandler(uc *profileUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Update the display name
// @Tags profile
// @Success 200 {object} transport.Envelope
// @Router /api/profile/display-name [put]
func (h *ProfileHandler) UpdateDisplayName(ctx *fasthttp.RequestCtx) {
	session, ok := h.requireSession(ctx)
	if !ok {
		return
	}

	var req transport.DisplayNameRequest
	if err := decodeJSON(ctx, &req); err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.uc.UpdateDisplayName(stdCtx, session, req.DisplayName)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, user.Public())
}

// @Summary Upload a profile picture
// @Tags profile
// @Success 200 {object} transport.Envelope
// @Router /api/profile/avatar [post]
func (h *ProfileHandler) UploadAvatar(ctx *fasthttp.RequestCtx) {
	img, err := readImage(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	// A missing session is reported by the use case after the file checks.
	publicURL, err := h.uc.UploadAvatar(stdCtx, middleware.SessionFrom(ctx), img)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.AvatarResponse{URL: publicURL})
}

// @Summary Preview a profile picture before upload
// @Tags profile
// @Success 200 {object} transport.Envelope
// @Router /api/profile/avatar/preview [post]
func (h *ProfileHandler) Preview(ctx *fasthttp.RequestCtx) {
	if _, ok := h.requireSession(ctx); !ok {
		return
	}
	img, err := readImage(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	preview, err := h.uc.Preview(img)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.PreviewResponse{Preview: preview})
}

// @Summary Resolve the profile picture to display
// @Tags profile
// @Success 200 {object} transport.Envelope
// @Router /api/profile/image [get]
func (h *ProfileHandler) Image(ctx *fasthttp.RequestCtx) {
	var user *domain.User
	if session := middleware.SessionFrom(ctx); session != nil {
		user = session.User
	}
	src := h.uc.ImageSrc(user, queryArg(ctx, "preview"))
	h.respondSuccess(ctx, http.StatusOK, transport.ImageSrcResponse{Src: src})
}

// @Summary Pending profile message
// @Tags profile
// @Success 200 {object} transport.Envelope
// @Router /api/profile/notice [get]
func (h *ProfileHandler) Notice(ctx *fasthttp.RequestCtx) {
	session, ok := h.requireSession(ctx)
	if !ok {
		return
	}
	msg, found := h.uc.Notice(session)
	if !found {
		h.respondSuccess(ctx, http.StatusOK, nil)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, msg)
}

func (h *ProfileHandler) requireSession(ctx *fasthttp.RequestCtx) (*domain.Session, bool) {
	session := middleware.SessionFrom(ctx)
	if session == nil {
		h.respondError(ctx, domain.ErrUnauthorized)
		return nil, false
	}
	return session, true
}

// readImage loads the multipart upload. Size limits are enforced by Validate,
// the server caps the body.
func readImage(ctx *fasthttp.RequestCtx) (*domain.ProfileImage, error) {
	fh, err := ctx.FormFile(imageField)
	if err != nil {
		if err == fasthttp.ErrMissingFile {
			return nil, domain.ErrNoProfileImage
		}
		return nil, domain.WrapError(domain.ErrCodeInvalid, domain.ErrNoProfileImage.Message, err)
	}
	data, err := readFileHeader(fh)
	if err != nil {
		return nil, err
	}
	return &domain.ProfileImage{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Data:        data,
	}, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, domain.MaxProfileImageSize+1))
}
