package profile

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/supabase"
	"github.com/audiobrew/web/internal/upstream"
	"github.com/audiobrew/web/pkg/imaging"
	"github.com/audiobrew/web/pkg/logger"
	"github.com/audiobrew/web/pkg/notice"
)

const (
	msgDisplayNameUpdated = "Username updated successfully"
	msgImageUpdated       = "Profile picture updated successfully"
	msgAccountNetwork     = "Failed to delete account due to network error"
	msgMetadataFailed     = "Failed to update profile. Please try again later."
)

// MetadataUpdater patches user metadata for a live session.
type MetadataUpdater interface {
	UpdateMetadata(ctx context.Context, session *domain.Session, data domain.UserMetadata) (*domain.User, error)
}

// Storage is the object storage used for profile pictures.
type Storage interface {
	Upload(ctx context.Context, accessToken, bucket, path, contentType string, data []byte) error
	PublicURL(bucket, path string) string
}

// AccountBackend deletes accounts on the backend.
type AccountBackend interface {
	Delete(ctx context.Context, endpoint string, query url.Values) (*upstream.Response, error)
}

type UseCase struct {
	users   MetadataUpdater
	storage Storage
	backend AccountBackend
	notices *notice.Board
	clock   clockwork.Clock
	logger  *zap.Logger
}

func New(users MetadataUpdater, storage Storage, backend AccountBackend, notices *notice.Board, clock clockwork.Clock, log *zap.Logger) *UseCase {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if notices == nil {
		notices = notice.NewBoard(clock, notice.DefaultTimeout)
	}
	return &UseCase{
		users:   users,
		storage: storage,
		backend: backend,
		notices: notices,
		clock:   clock,
		logger:  log,
	}
}

// UpdateDisplayName validates and stores a new display name.
func (uc *UseCase) UpdateDisplayName(ctx context.Context, session *domain.Session, name string) (*domain.User, error) {
	key := noticeKey(session)
	if err := domain.ValidateDisplayName(name); err != nil {
		uc.post(key, notice.KindError, domain.PublicMessage(err, ""))
		return nil, err
	}

	user, err := uc.users.UpdateMetadata(ctx, session, domain.UserMetadata{domain.MetaDisplayName: name})
	if err != nil {
		logger.WithRequestID(ctx, uc.logger).Error("display name update failed", zap.Error(err))
		err = metadataError(err)
		uc.post(key, notice.KindError, domain.PublicMessage(err, msgMetadataFailed))
		return nil, err
	}
	uc.post(key, notice.KindSuccess, msgDisplayNameUpdated)
	return user, nil
}

// UploadAvatar stores img in the profile picture bucket and points
// custom_avatar_url at it. It returns the public URL.
func (uc *UseCase) UploadAvatar(ctx context.Context, session *domain.Session, img *domain.ProfileImage) (string, error) {
	var userID, token string
	if session != nil {
		userID, token = session.UserID, session.AccessToken
	}
	key := noticeKey(session)
	if err := img.Validate(userID); err != nil {
		uc.post(key, notice.KindError, domain.PublicMessage(err, ""))
		return "", err
	}
	log := logger.WithRequestID(ctx, uc.logger)

	path := fmt.Sprintf("%s-%d.%s", userID, uc.clock.Now().UnixMilli(), img.Extension())
	if err := uc.storage.Upload(ctx, token, domain.ProfileImageBucket, path, img.ContentType, img.Data); err != nil {
		log.Warn("profile image upload failed", zap.String("path", path), zap.Error(err))
		uc.post(key, notice.KindError, domain.ErrProfileImageUpload.Message)
		return "", domain.WrapError(domain.ErrCodeUpstream, domain.ErrProfileImageUpload.Message, err)
	}

	publicURL := uc.storage.PublicURL(domain.ProfileImageBucket, path)
	if _, err := uc.users.UpdateMetadata(ctx, session, domain.UserMetadata{domain.MetaCustomAvatarURL: publicURL}); err != nil {
		log.Error("custom avatar update failed", zap.Error(err))
		err = metadataError(err)
		uc.post(key, notice.KindError, domain.PublicMessage(err, msgMetadataFailed))
		return "", err
	}
	uc.post(key, notice.KindSuccess, msgImageUpdated)
	return publicURL, nil
}

// Preview returns a small JPEG data URL of img for the upload form.
func (uc *UseCase) Preview(img *domain.ProfileImage) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", domain.ErrNoProfileImage
	}
	preview, err := imaging.Preview(img.Data)
	if err != nil {
		return "", domain.WrapError(domain.ErrCodeInvalid, imaging.ErrLoadImage.Error(), err)
	}
	return preview, nil
}

// ImageSrc resolves which picture to show for user.
func (uc *UseCase) ImageSrc(user *domain.User, preview string) string {
	return domain.ProfileImageSrc(user, preview)
}

// DeleteAccount asks the backend to remove userID and all its data.
func (uc *UseCase) DeleteAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUserIDRequired
	}
	resp, err := uc.backend.Delete(ctx, "/api/user/"+url.PathEscape(userID), nil)
	if err != nil {
		logger.WithRequestID(ctx, uc.logger).Error("account delete failed", zap.String("user_id", userID), zap.Error(err))
		return domain.WrapError(domain.ErrCodeUpstream, msgAccountNetwork, err)
	}
	if !resp.OK() {
		msg := resp.Detail()
		if msg == "" {
			msg = fmt.Sprintf("Failed to delete account (%d)", resp.Status)
		}
		return domain.WrapError(domain.ErrCodeUpstream, msg, fmt.Errorf("backend returned %d", resp.Status))
	}
	uc.notices.Clear(userID)
	return nil
}

// Notice returns the pending profile message for the session's user.
func (uc *UseCase) Notice(session *domain.Session) (notice.Message, bool) {
	return uc.notices.Get(noticeKey(session))
}

// PostNotice shows msg on the user's profile page until it times out.
func (uc *UseCase) PostNotice(session *domain.Session, kind, msg string) {
	uc.post(noticeKey(session), kind, msg)
}

func (uc *UseCase) post(key, kind, msg string) {
	if key == "" {
		return
	}
	uc.notices.Post(key, kind, msg)
}

func noticeKey(session *domain.Session) string {
	if session == nil {
		return ""
	}
	return session.UserID
}

// Auth provider errors carry their own message; anything else is hidden.
func metadataError(err error) error {
	if domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
		return err
	}
	msg := msgMetadataFailed
	if apiErr, ok := supabase.IsAPIError(err); ok && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return domain.WrapError(domain.ErrCodeUpstream, msg, err)
}
