package middleware

import (
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/supabase"
)

// BearerSession builds a request scoped session from a Supabase access token
// sent as "Authorization: Bearer <jwt>". The session has no id and is never
// stored.
func BearerSession(parser *supabase.ClaimsParser, ctx *fasthttp.RequestCtx, logger *zap.Logger) *domain.Session {
	tokenString := extractToken(ctx)
	if tokenString == "" {
		return nil
	}

	claims, err := parser.Parse(tokenString)
	if err != nil || claims == nil || claims.Subject == "" {
		logger.Warn("invalid bearer token", zap.Error(err))
		return nil
	}

	session := &domain.Session{
		UserID:      claims.Subject,
		AccessToken: tokenString,
		User: &domain.User{
			ID:           claims.Subject,
			Email:        claims.Email,
			UserMetadata: domain.UserMetadata(claims.UserMetadata),
		},
	}
	if claims.ExpiresAt != nil {
		session.TokenExpiresAt = claims.ExpiresAt.Time
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
