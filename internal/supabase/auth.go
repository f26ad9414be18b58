package supabase

import (
	"context"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/oauth2"

	"github.com/audiobrew/web/domain"
)

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user"`
}

func (c *Client) tokenGrant(ctx context.Context, grant string, body interface{}) (*domain.TokenSet, error) {
	var out tokenResponse
	err := c.do(ctx, call{
		method:   fasthttp.MethodPost,
		path:     "/auth/v1/token?grant_type=" + url.QueryEscape(grant),
		jsonBody: body,
	}, &out)
	if err != nil {
		return nil, err
	}
	return c.toTokenSet(out), nil
}

func (c *Client) toTokenSet(out tokenResponse) *domain.TokenSet {
	tokens := &domain.TokenSet{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		User:         out.User,
	}
	switch {
	case out.ExpiresAt > 0:
		tokens.ExpiresAt = time.Unix(out.ExpiresAt, 0)
	case out.ExpiresIn > 0:
		tokens.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	default:
		if exp, err := c.claims.ExpiresAt(out.AccessToken); err == nil {
			tokens.ExpiresAt = exp
		}
	}
	return tokens
}

// SignInWithPassword runs the password grant.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.TokenSet, error) {
	return c.tokenGrant(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// RefreshSession trades a refresh token for a new token set.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.TokenSet, error) {
	return c.tokenGrant(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

// ExchangeCodeForSession completes a PKCE OAuth sign in.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*domain.TokenSet, error) {
	return c.tokenGrant(ctx, "pkce", map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	})
}

// SignUp registers a new account with initial user metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, data domain.UserMetadata) error {
	return c.do(ctx, call{
		method: fasthttp.MethodPost,
		path:   "/auth/v1/signup",
		jsonBody: map[string]interface{}{
			"email":    email,
			"password": password,
			"data":     data,
		},
	}, nil)
}

// GetUser validates the access token and returns the current user record.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, call{
		method: fasthttp.MethodGet,
		path:   "/auth/v1/user",
		bearer: accessToken,
	}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserMetadata merges data into user_metadata.
func (c *Client) UpdateUserMetadata(ctx context.Context, accessToken string, data domain.UserMetadata) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, call{
		method:   fasthttp.MethodPut,
		path:     "/auth/v1/user",
		bearer:   accessToken,
		jsonBody: map[string]interface{}{"data": data},
	}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut revokes the session's refresh tokens.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, call{
		method: fasthttp.MethodPost,
		path:   "/auth/v1/logout",
		bearer: accessToken,
	}, nil)
}

// NewVerifier returns a fresh PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthorizeURL builds the provider redirect for a PKCE sign in.
func (c *Client) AuthorizeURL(provider, redirectTo, verifier string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	q.Set("code_challenge_method", "s256")
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}
