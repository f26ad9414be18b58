package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionTokenExpired(t *testing.T) {
	now := time.Now()
	s := &Session{TokenExpiresAt: now.Add(20 * time.Second)}

	assert.False(t, s.TokenExpired(now, 10*time.Second))
	assert.True(t, s.TokenExpired(now, 30*time.Second))
	assert.False(t, (&Session{}).TokenExpired(now, time.Minute))
}

func TestSessionApply(t *testing.T) {
	s := &Session{ID: "s1", RefreshToken: "old-refresh", CodeVerifier: "verifier"}
	exp := time.Now().Add(time.Hour)

	s.Apply(&TokenSet{
		AccessToken: "access",
		ExpiresAt:   exp,
		User:        &User{ID: "u1", Email: "a@b.c"},
	})

	assert.Equal(t, "access", s.AccessToken)
	assert.Equal(t, "old-refresh", s.RefreshToken)
	assert.Equal(t, exp, s.TokenExpiresAt)
	assert.Empty(t, s.CodeVerifier)
	assert.Equal(t, "u1", s.UserID)
	assert.False(t, s.IsPending())
}

func TestUserNeedsDisplayName(t *testing.T) {
	assert.True(t, (&User{UserMetadata: UserMetadata{MetaFullName: "Ada Lovelace"}}).NeedsDisplayName())
	assert.False(t, (&User{UserMetadata: UserMetadata{MetaDisplayName: "ada", MetaName: "Ada"}}).NeedsDisplayName())
	assert.False(t, (&User{UserMetadata: UserMetadata{}}).NeedsDisplayName())

	u := &User{UserMetadata: UserMetadata{MetaName: "Ada", MetaFullName: "Ada Lovelace"}}
	assert.Equal(t, "Ada", u.FallbackDisplayName())
}
