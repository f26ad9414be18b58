package domain

import "time"

// Session is the server side record behind the browser session cookie.
// A session without an access token is a pending OAuth sign in.
type Session struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id,omitempty"`
	AccessToken    string           `json:"access_token,omitempty"`
	RefreshToken   string           `json:"refresh_token,omitempty"`
	TokenExpiresAt time.Time        `json:"token_expires_at,omitempty"`
	CodeVerifier   string           `json:"code_verifier,omitempty"`
	User           *User            `json:"user,omitempty"`
	Generation     *GenerationState `json:"generation,omitempty"`
	ExpiresAt      time.Time        `json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// IsPending reports whether the session still waits for an OAuth callback.
func (s *Session) IsPending() bool {
	return s != nil && s.AccessToken == ""
}

// TokenExpired reports whether the access token must be refreshed before use.
func (s *Session) TokenExpired(reference time.Time, leeway time.Duration) bool {
	if s == nil || s.TokenExpiresAt.IsZero() {
		return false
	}
	return !s.TokenExpiresAt.After(reference.Add(leeway))
}

// TokenSet is what the auth provider returns from any token grant.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user,omitempty"`
}

// Apply copies a fresh token set into the session.
func (s *Session) Apply(tokens *TokenSet) {
	if s == nil || tokens == nil {
		return
	}
	s.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		s.RefreshToken = tokens.RefreshToken
	}
	s.TokenExpiresAt = tokens.ExpiresAt
	s.CodeVerifier = ""
	if tokens.User != nil {
		s.User = tokens.User
		s.UserID = tokens.User.ID
	}
}
