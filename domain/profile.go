package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxDisplayNameLength = 20
	PlaceholderImage     = "/nopicture_placeholder.png"
	MaxProfileImageSize  = 5 * 1024 * 1024
	ProfileImageBucket   = "profilepic"
)

var (
	ErrDisplayNameEmpty   = NewError(ErrCodeInvalid, "Username cannot be empty")
	ErrDisplayNameTooLong = NewError(ErrCodeInvalid, "Username cannot exceed 20 characters")

	ErrNoProfileImage       = NewError(ErrCodeInvalid, "No profile image provided")
	ErrNotAuthenticated     = NewError(ErrCodeUnauthorized, "User not authenticated")
	ErrProfileImageType     = NewError(ErrCodeInvalid, "Please upload a JPEG, JPG, or PNG image file")
	ErrProfileImageTooLarge = NewError(ErrCodeInvalid, "Image size must be less than 5MB")
	ErrProfileImageUpload   = NewError(ErrCodeUpstream, "Failed to upload profile image. Please try again later.")
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

// ValidateDisplayName returns nil when name can be stored as display_name.
func ValidateDisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrDisplayNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return ErrDisplayNameTooLong
	}
	return nil
}

// ProfileImageSrc resolves which image the profile page shows.
func ProfileImageSrc(user *User, preview string) string {
	if preview != "" {
		return preview
	}
	if user == nil {
		return PlaceholderImage
	}
	if custom := user.UserMetadata.String(MetaCustomAvatarURL); !isBlank(custom) {
		return custom
	}
	if avatar := user.UserMetadata.String(MetaAvatarURL); !isBlank(avatar) {
		return avatar
	}
	return PlaceholderImage
}

// ProfileImage is an uploaded avatar before it reaches storage.
type ProfileImage struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// Validate applies the upload rules in the order the UI reports them.
func (img *ProfileImage) Validate(userID string) error {
	if img == nil || img.Size == 0 {
		return ErrNoProfileImage
	}
	if userID == "" {
		return ErrNotAuthenticated
	}
	if _, ok := allowedImageTypes[strings.ToLower(img.ContentType)]; !ok {
		return ErrProfileImageType
	}
	if img.Size > MaxProfileImageSize {
		return ErrProfileImageTooLarge
	}
	return nil
}

// Extension returns whatever follows the last dot in the file name.
func (img *ProfileImage) Extension() string {
	idx := strings.LastIndex(img.Name, ".")
	if idx < 0 {
		return img.Name
	}
	return img.Name[idx+1:]
}
