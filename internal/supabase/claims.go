package supabase

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// AccessClaims are the claims Supabase puts in its access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	SessionID    string                 `json:"session_id"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

// ClaimsParser reads access tokens. Without a secret the signature is not
// checked and the claims only drive refresh scheduling; the user is still
// validated against /auth/v1/user.
type ClaimsParser struct {
	secret []byte
}

func NewClaimsParser(secret string) *ClaimsParser {
	p := &ClaimsParser{}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

var errNoExpiry = errors.New("access token has no exp claim")

// Parse returns the token's claims. Expired tokens are returned together with
// a validation error so the caller can still refresh.
func (p *ClaimsParser) Parse(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if p.secret == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, err
		}
		return claims, nil
	}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		var vErr *jwt.ValidationError
		if errors.As(err, &vErr) && vErr.Errors == jwt.ValidationErrorExpired {
			return claims, err
		}
		return nil, err
	}
	return claims, nil
}

// ExpiresAt returns the token's exp claim.
func (p *ClaimsParser) ExpiresAt(token string) (time.Time, error) {
	claims, err := p.Parse(token)
	if claims == nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}
