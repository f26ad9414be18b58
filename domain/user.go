package domain

import (
	"strings"
	"time"
)

// Metadata keys written or read by the web app.
const (
	MetaDisplayName     = "display_name"
	MetaAvatarURL       = "avatar_url"
	MetaCustomAvatarURL = "custom_avatar_url"
	MetaName            = "name"
	MetaFullName        = "full_name"
)

// UserMetadata is the free-form user_metadata map owned by the auth provider.
type UserMetadata map[string]interface{}

// String returns the value stored under key when it is a string.
func (m UserMetadata) String(key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// User is the auth provider's view of an account.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
	CreatedAt    time.Time    `json:"created_at,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at,omitempty"`
}

// DisplayName returns the display_name metadata entry.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	return u.UserMetadata.String(MetaDisplayName)
}

// FallbackDisplayName picks name, then full_name. Used to seed display_name
// after an OAuth sign in.
func (u *User) FallbackDisplayName() string {
	if u == nil {
		return ""
	}
	if name := u.UserMetadata.String(MetaName); name != "" {
		return name
	}
	return u.UserMetadata.String(MetaFullName)
}

// NeedsDisplayName reports whether display_name is missing but can be derived.
func (u *User) NeedsDisplayName() bool {
	return u != nil && u.DisplayName() == "" && u.FallbackDisplayName() != ""
}

// PublicUser is the trimmed user shape handed to page loads.
type PublicUser struct {
	ID           string             `json:"id"`
	Email        string             `json:"email"`
	UserMetadata PublicUserMetadata `json:"user_metadata"`
}

type PublicUserMetadata struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Public projects the user into the page load shape.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Email: u.Email,
		UserMetadata: PublicUserMetadata{
			DisplayName: u.UserMetadata.String(MetaDisplayName),
			AvatarURL:   u.UserMetadata.String(MetaAvatarURL),
		},
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
