package podcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/upstream"
	"github.com/audiobrew/web/pkg/logger"
)

const (
	listEndpoint = "/api/podcast/list"
	audioType    = "audio/mpeg"

	msgListFailed        = "Failed to fetch podcasts"
	msgGetFailed         = "Failed to fetch podcast"
	msgDeleteFailed      = "Failed to delete podcast"
	msgDownloadMissing   = "Audio file is not available for download"
	msgDownloadFailed    = "Failed to download audio file"
	msgShareMissing      = "Audio file is not available for sharing"
	msgShareFailed       = "Failed to share audio file"
	msgScriptUnavailable = "Script is not available for this podcast"
)

// Backend is the part of the upstream client podcast actions need.
type Backend interface {
	Get(ctx context.Context, endpoint string, query url.Values) (*upstream.Response, error)
	Delete(ctx context.Context, endpoint string, query url.Values) (*upstream.Response, error)
	Fetch(ctx context.Context, rawURL string) (*upstream.Response, error)
}

type UseCase struct {
	backend  Backend
	renderer *ScriptRenderer
	clock    clockwork.Clock
	logger   *zap.Logger
}

func New(backend Backend, clock clockwork.Clock, log *zap.Logger) *UseCase {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UseCase{
		backend:  backend,
		renderer: NewScriptRenderer(),
		clock:    clock,
		logger:   log,
	}
}

// Endpoint returns the backend path of a single podcast.
func Endpoint(podcastID string) string {
	return "/api/podcast/" + url.PathEscape(podcastID)
}

// List returns the user's podcasts, newest first as the backend orders them.
func (uc *UseCase) List(ctx context.Context, userID string) ([]domain.Podcast, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	resp, err := uc.backend.Get(ctx, listEndpoint, url.Values{"user_id": {userID}})
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUpstream, msgListFailed, err)
	}
	if !resp.OK() {
		return nil, upstreamError(resp, msgListFailed)
	}
	podcasts, err := decodeList(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUpstream, msgListFailed, err)
	}
	return podcasts, nil
}

// The backend has answered both with a bare array and with {"podcasts": [...]}.
func decodeList(body []byte) ([]domain.Podcast, error) {
	var list []domain.Podcast
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Podcasts []domain.Podcast `json:"podcasts"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Podcasts, nil
}

// Get loads one podcast owned by userID.
func (uc *UseCase) Get(ctx context.Context, podcastID, userID string) (*domain.Podcast, error) {
	if userID == "" {
		return nil, domain.ErrUserIDRequired
	}
	resp, err := uc.backend.Get(ctx, Endpoint(podcastID), url.Values{"user_id": {userID}})
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUpstream, msgGetFailed, err)
	}
	if resp.Status == http.StatusNotFound {
		return nil, domain.ErrPodcastNotFound
	}
	if !resp.OK() {
		return nil, upstreamError(resp, msgGetFailed)
	}
	var p domain.Podcast
	if err := resp.Decode(&p); err != nil {
		return nil, domain.WrapError(domain.ErrCodeUpstream, msgGetFailed, err)
	}
	return &p, nil
}

// Delete removes a podcast. The error message is the backend's detail when it
// sends one.
func (uc *UseCase) Delete(ctx context.Context, podcastID, userID string) error {
	resp, err := uc.backend.Delete(ctx, Endpoint(podcastID), url.Values{"user_id": {userID}})
	if err != nil {
		logger.WithRequestID(ctx, uc.logger).Error("podcast delete failed",
			zap.String("podcast_id", podcastID), zap.Error(err))
		return domain.WrapError(domain.ErrCodeUpstream, msgDeleteFailed, err)
	}
	if !resp.OK() {
		return upstreamError(resp, msgDeleteFailed)
	}
	return nil
}

// Audio is a downloaded podcast file ready to be sent as an attachment.
type Audio struct {
	FileName    string
	ContentType string
	Body        []byte
}

// Download fetches the podcast's audio file.
func (uc *UseCase) Download(ctx context.Context, p *domain.Podcast) (*Audio, error) {
	if !p.HasAudio() {
		return nil, domain.NewError(domain.ErrCodeNotFound, msgDownloadMissing)
	}
	resp, err := uc.fetchAudio(ctx, p)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUpstream, msgDownloadFailed, err)
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = audioType
	}
	return &Audio{FileName: p.AudioFileName(), ContentType: contentType, Body: resp.Body}, nil
}

// Share checks the audio is reachable and returns what the share sheet needs.
func (uc *UseCase) Share(ctx context.Context, p *domain.Podcast) (*domain.SharePayload, error) {
	if !p.HasAudio() {
		return nil, domain.NewError(domain.ErrCodeNotFound, msgShareMissing)
	}
	if _, err := uc.fetchAudio(ctx, p); err != nil {
		return nil, domain.WrapError(domain.ErrCodeUpstream, msgShareFailed, err)
	}
	return &domain.SharePayload{
		Title:    p.Title,
		Text:     "Check out this podcast: " + p.Title,
		URL:      p.AudioURL,
		FileName: p.AudioFileName(),
	}, nil
}

func (uc *UseCase) fetchAudio(ctx context.Context, p *domain.Podcast) (*upstream.Response, error) {
	resp, err := uc.backend.Fetch(ctx, p.AudioURL)
	if err != nil {
		logger.WithRequestID(ctx, uc.logger).Error("audio fetch failed",
			zap.String("podcast_id", p.ID), zap.Error(err))
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("audio fetch returned %d", resp.Status)
	}
	return resp, nil
}

// Script renders the podcast's markdown script to HTML.
func (uc *UseCase) Script(p *domain.Podcast) ([]byte, error) {
	if p == nil || p.ScriptMarkdown == "" {
		return nil, domain.NewError(domain.ErrCodeNotFound, msgScriptUnavailable)
	}
	return uc.renderer.Render([]byte(p.ScriptMarkdown))
}

func upstreamError(resp *upstream.Response, fallback string) error {
	msg := resp.Detail()
	if msg == "" {
		msg = fallback
	}
	return domain.WrapError(domain.ErrCodeUpstream, msg, fmt.Errorf("backend returned %d", resp.Status))
}
