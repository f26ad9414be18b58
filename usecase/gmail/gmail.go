package gmail

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/upstream"
	"github.com/audiobrew/web/pkg/logger"
)

const (
	statusEndpoint = "/api/gmail/status"
	labelsEndpoint = "/api/gmail/labels"

	msgConnectionFailed  = "Failed to check Gmail connection"
	msgConnectionNetwork = "Network error while checking Gmail connection"
	msgLabelFailed       = "Failed to check AudioBrew label"
	msgLabelNetwork      = "Network error while checking AudioBrew label"
	credentialsNotFound  = "Gmail credentials not found"
)

// Backend is the subset of the upstream client used for Gmail checks.
type Backend interface {
	Get(ctx context.Context, endpoint string, query url.Values) (*upstream.Response, error)
}

type UseCase struct {
	backend Backend
	logger  *zap.Logger
}

func New(backend Backend, log *zap.Logger) *UseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &UseCase{backend: backend, logger: log}
}

// CheckConnection reports whether userID has linked Gmail. It never fails;
// problems are described in the Error field.
func (uc *UseCase) CheckConnection(ctx context.Context, userID string) domain.GmailConnectionStatus {
	if userID == "" {
		return domain.GmailConnectionStatus{Error: domain.ErrUserIDRequired.Message}
	}

	resp, err := uc.backend.Get(ctx, statusEndpoint, url.Values{"user_id": {userID}})
	if err != nil {
		logger.WithRequestID(ctx, uc.logger).Error("gmail status check failed", zap.Error(err))
		return domain.GmailConnectionStatus{Error: msgConnectionNetwork}
	}
	if !resp.OK() {
		return domain.GmailConnectionStatus{Error: msgConnectionFailed}
	}

	var payload struct {
		IsConnected bool   `json:"is_connected"`
		Email       string `json:"email"`
	}
	if err := resp.Decode(&payload); err != nil {
		logger.WithRequestID(ctx, uc.logger).Error("gmail status payload invalid", zap.Error(err))
		return domain.GmailConnectionStatus{Error: msgConnectionNetwork}
	}
	return domain.GmailConnectionStatus{IsConnected: payload.IsConnected, Email: payload.Email}
}

// CheckLabel reports whether the AudioBrew label exists in the user's mailbox.
func (uc *UseCase) CheckLabel(ctx context.Context, userID string) domain.AudioBrewLabelStatus {
	if userID == "" {
		return domain.AudioBrewLabelStatus{Error: domain.ErrUserIDRequired.Message}
	}
	log := logger.WithRequestID(ctx, uc.logger)

	resp, err := uc.backend.Get(ctx, labelsEndpoint, url.Values{"user_id": {userID}})
	if err != nil {
		log.Error("audiobrew label check failed", zap.Error(err))
		return domain.AudioBrewLabelStatus{Error: msgLabelNetwork}
	}

	if !resp.OK() {
		if resp.JSONBody(nil) == nil {
			log.Error("audiobrew label error payload invalid", zap.Int("status", resp.Status))
			return domain.AudioBrewLabelStatus{Error: msgLabelNetwork}
		}
		if resp.Status == 404 && resp.DetailContains(credentialsNotFound) {
			return domain.AudioBrewLabelStatus{Error: domain.LabelErrGmailNotConnected}
		}
		if detail := resp.Detail(); detail != "" {
			return domain.AudioBrewLabelStatus{Error: detail}
		}
		return domain.AudioBrewLabelStatus{Error: msgLabelFailed}
	}

	var payload struct {
		HasLabel bool `json:"has_audiobrew_label"`
	}
	if err := resp.Decode(&payload); err != nil {
		log.Error("audiobrew label payload invalid", zap.Error(err))
		return domain.AudioBrewLabelStatus{Error: msgLabelNetwork}
	}
	return domain.AudioBrewLabelStatus{HasLabel: payload.HasLabel}
}
