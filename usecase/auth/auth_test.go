package auth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/supabase"
)

type memorySessions struct {
	mu       sync.Mutex
	items    map[string]domain.Session
	extended map[string]time.Duration
}

func newMemorySessions() *memorySessions {
	return &memorySessions{items: make(map[string]domain.Session), extended: make(map[string]time.Duration)}
}

func (m *memorySessions) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func (m *memorySessions) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.ID] = *s
	return nil
}

func (m *memorySessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memorySessions) Extend(_ context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrSessionNotFound
	}
	m.extended[id] = ttl
	return nil
}

func (m *memorySessions) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	return ok
}

type fakeProvider struct {
	signIn   func(email, password string) (*domain.TokenSet, error)
	refresh  func(token string) (*domain.TokenSet, error)
	exchange func(code, verifier string) (*domain.TokenSet, error)
	getUser  func(token string) (*domain.User, error)
	update   func(token string, data domain.UserMetadata) (*domain.User, error)

	signUpData   domain.UserMetadata
	signedOut    []string
	refreshCalls int
	mu           sync.Mutex
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*domain.TokenSet, error) {
	return f.signIn(email, password)
}

func (f *fakeProvider) SignUp(_ context.Context, _, _ string, data domain.UserMetadata) error {
	f.signUpData = data
	return nil
}

func (f *fakeProvider) RefreshSession(_ context.Context, token string) (*domain.TokenSet, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()
	return f.refresh(token)
}

func (f *fakeProvider) ExchangeCodeForSession(_ context.Context, code, verifier string) (*domain.TokenSet, error) {
	return f.exchange(code, verifier)
}

func (f *fakeProvider) GetUser(_ context.Context, token string) (*domain.User, error) {
	return f.getUser(token)
}

func (f *fakeProvider) UpdateUserMetadata(_ context.Context, token string, data domain.UserMetadata) (*domain.User, error) {
	return f.update(token, data)
}

func (f *fakeProvider) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

func (f *fakeProvider) AuthorizeURL(provider, redirectTo, verifier string) string {
	return "https://auth.test/authorize?" + url.Values{
		"provider":    {provider},
		"redirect_to": {redirectTo},
		"verifier":    {verifier},
	}.Encode()
}

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, provider *fakeProvider) (*UseCase, *memorySessions, *clockwork.FakeClock) {
	t.Helper()
	store := newMemorySessions()
	clock := clockwork.NewFakeClockAt(epoch)
	return New(provider, store, clock, Config{SessionTTL: time.Hour}, nil), store, clock
}

func liveSession(id string, tokenExpiry time.Time) *domain.Session {
	return &domain.Session{
		ID:             id,
		UserID:         "u1",
		AccessToken:    "at-old",
		RefreshToken:   "rt-old",
		TokenExpiresAt: tokenExpiry,
		CreatedAt:      epoch,
		ExpiresAt:      epoch.Add(time.Hour),
	}
}

func TestSafeGetSession_NoSession(t *testing.T) {
	uc, _, _ := setup(t, &fakeProvider{})

	s, err := uc.SafeGetSession(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = uc.SafeGetSession(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSafeGetSession_ReplacesUser(t *testing.T) {
	provider := &fakeProvider{
		getUser: func(token string) (*domain.User, error) {
			assert.Equal(t, "at-old", token)
			return &domain.User{ID: "u1", UserMetadata: domain.UserMetadata{"display_name": "fresh"}}, nil
		},
	}
	uc, store, _ := setup(t, provider)
	require.NoError(t, store.Save(context.Background(), liveSession("s1", epoch.Add(time.Hour))))

	s, err := uc.SafeGetSession(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "fresh", s.User.DisplayName())
	assert.Equal(t, 0, provider.refreshCalls)
}

func TestSafeGetSession_SlidesExpiry(t *testing.T) {
	provider := &fakeProvider{getUser: func(string) (*domain.User, error) {
		return &domain.User{ID: "u1"}, nil
	}}
	uc, store, clock := setup(t, provider)
	require.NoError(t, store.Save(context.Background(), liveSession("s1", epoch.Add(2*time.Hour))))

	// A session saved moments ago is left alone.
	s, err := uc.SafeGetSession(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Empty(t, store.extended)
	assert.Equal(t, epoch.Add(time.Hour), s.ExpiresAt)

	clock.Advance(10 * time.Minute)
	s, err = uc.SafeGetSession(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, time.Hour, store.extended["s1"])
	assert.Equal(t, epoch.Add(70*time.Minute), s.ExpiresAt)
}

func TestSafeGetSession_RefreshesExpiredToken(t *testing.T) {
	provider := &fakeProvider{
		refresh: func(token string) (*domain.TokenSet, error) {
			assert.Equal(t, "rt-old", token)
			return &domain.TokenSet{AccessToken: "at-new", RefreshToken: "rt-new", ExpiresAt: epoch.Add(time.Hour)}, nil
		},
		getUser: func(token string) (*domain.User, error) {
			assert.Equal(t, "at-new", token)
			return &domain.User{ID: "u1"}, nil
		},
	}
	uc, store, _ := setup(t, provider)
	require.NoError(t, store.Save(context.Background(), liveSession("s1", epoch.Add(-time.Minute))))

	s, err := uc.SafeGetSession(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "at-new", s.AccessToken)

	stored, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "rt-new", stored.RefreshToken)
	assert.Equal(t, 1, provider.refreshCalls)
}

func TestSafeGetSession_RefreshFailureDropsSession(t *testing.T) {
	provider := &fakeProvider{
		refresh: func(string) (*domain.TokenSet, error) {
			return nil, &supabase.APIError{Status: 400, Message: "Invalid Refresh Token"}
		},
	}
	uc, store, _ := setup(t, provider)
	require.NoError(t, store.Save(context.Background(), liveSession("s1", epoch.Add(-time.Minute))))

	s, err := uc.SafeGetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.False(t, store.has("s1"))
}

func TestSafeGetSession_ValidationFailure(t *testing.T) {
	rejected := &fakeProvider{getUser: func(string) (*domain.User, error) {
		return nil, &supabase.APIError{Status: 401, Message: "invalid JWT"}
	}}
	uc, store, _ := setup(t, rejected)
	require.NoError(t, store.Save(context.Background(), liveSession("s1", epoch.Add(time.Hour))))

	s, err := uc.SafeGetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.False(t, store.has("s1"))

	unreachable := &fakeProvider{getUser: func(string) (*domain.User, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}
	uc, store, _ = setup(t, unreachable)
	require.NoError(t, store.Save(context.Background(), liveSession("s2", epoch.Add(time.Hour))))

	s, err = uc.SafeGetSession(context.Background(), "s2")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.True(t, store.has("s2"))
}

func TestSafeGetSession_PendingIsNoSession(t *testing.T) {
	uc, store, _ := setup(t, &fakeProvider{})
	require.NoError(t, store.Save(context.Background(), &domain.Session{ID: "p1", CodeVerifier: "v", ExpiresAt: epoch.Add(time.Minute)}))

	s, err := uc.SafeGetSession(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestLogin(t *testing.T) {
	provider := &fakeProvider{
		signIn: func(email, _ string) (*domain.TokenSet, error) {
			if email == "ghost@example.org" {
				return nil, &supabase.APIError{Status: 400, Message: "Invalid login credentials"}
			}
			if email == "locked@example.org" {
				return nil, &supabase.APIError{Status: 400, Message: "Email not confirmed"}
			}
			return &domain.TokenSet{AccessToken: "at", RefreshToken: "rt", User: &domain.User{ID: "u1"}}, nil
		},
	}
	uc, store, _ := setup(t, provider)

	_, err := uc.Login(context.Background(), "ghost@example.org", "pw")
	assert.Equal(t, "This account doesn't exist", domain.PublicMessage(err, ""))

	_, err = uc.Login(context.Background(), "locked@example.org", "pw")
	assert.Equal(t, "Email not confirmed", domain.PublicMessage(err, ""))

	s, err := uc.Login(context.Background(), "ada@example.org", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, epoch.Add(time.Hour), s.ExpiresAt)
	assert.True(t, store.has(s.ID))
}

func TestSignupStoresDisplayName(t *testing.T) {
	provider := &fakeProvider{}
	uc, _, _ := setup(t, provider)

	require.NoError(t, uc.Signup(context.Background(), "ada@example.org", "pw", "Ada"))
	assert.Equal(t, "Ada", provider.signUpData.String(domain.MetaDisplayName))
}

func TestOAuthFlowSeedsDisplayName(t *testing.T) {
	var patched domain.UserMetadata
	provider := &fakeProvider{
		exchange: func(code, verifier string) (*domain.TokenSet, error) {
			assert.Equal(t, "code-1", code)
			assert.NotEmpty(t, verifier)
			return &domain.TokenSet{
				AccessToken: "at",
				User:        &domain.User{ID: "u1", UserMetadata: domain.UserMetadata{"full_name": "Ada Lovelace"}},
			}, nil
		},
		update: func(token string, data domain.UserMetadata) (*domain.User, error) {
			patched = data
			return &domain.User{ID: "u1", UserMetadata: domain.UserMetadata{"display_name": data.String("display_name")}}, nil
		},
	}
	uc, store, _ := setup(t, provider)

	pending, authorizeURL, err := uc.StartOAuth(context.Background(), "google", "http://localhost/auth/callback")
	require.NoError(t, err)
	assert.Contains(t, authorizeURL, "provider=google")
	assert.True(t, pending.IsPending())

	s := uc.AuthCallback(context.Background(), pending.ID, "code-1")
	require.NotNil(t, s)
	assert.Equal(t, "Ada Lovelace", patched.String("display_name"))

	stored, err := store.Get(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.CodeVerifier)
	assert.Equal(t, "Ada Lovelace", stored.User.DisplayName())
}

func TestAuthCallback_ExchangeFailure(t *testing.T) {
	provider := &fakeProvider{
		exchange: func(string, string) (*domain.TokenSet, error) {
			return nil, errors.New("boom")
		},
	}
	uc, store, _ := setup(t, provider)
	pending, _, err := uc.StartOAuth(context.Background(), "google", "")
	require.NoError(t, err)

	assert.Nil(t, uc.AuthCallback(context.Background(), pending.ID, "bad"))
	assert.False(t, store.has(pending.ID))
}

func TestLogout(t *testing.T) {
	provider := &fakeProvider{}
	uc, store, _ := setup(t, provider)
	require.NoError(t, store.Save(context.Background(), liveSession("s1", epoch.Add(time.Hour))))

	require.NoError(t, uc.Logout(context.Background(), "s1"))
	assert.False(t, store.has("s1"))
	assert.Equal(t, []string{"at-old"}, provider.signedOut)
	assert.NoError(t, uc.Logout(context.Background(), ""))
}

func TestUpdateMetadataRequiresSession(t *testing.T) {
	uc, _, _ := setup(t, &fakeProvider{})
	_, err := uc.UpdateMetadata(context.Background(), nil, domain.UserMetadata{})
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}
