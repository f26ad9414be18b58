package handler

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/audiobrew/web/domain"
	"github.com/audiobrew/web/internal/infrastructure/monitor"
	"github.com/audiobrew/web/internal/upstream"
	"github.com/audiobrew/web/pkg/notice"
	profileUC "github.com/audiobrew/web/usecase/profile"
)

type uploadedObject struct {
	token, bucket, path, contentType string
	size                             int
}

type memoryStorage struct {
	uploads []uploadedObject
	err     error
}

func (s *memoryStorage) Upload(_ context.Context, token, bucket, path, contentType string, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.uploads = append(s.uploads, uploadedObject{token: token, bucket: bucket, path: path, contentType: contentType, size: len(data)})
	return nil
}

func (s *memoryStorage) PublicURL(bucket, path string) string {
	return "https://storage.test/" + bucket + "/" + path
}

type profileFixture struct {
	sessions *memorySessions
	provider *stubProvider
	storage  *memoryStorage
	backend  *fakeBackend
	profile  *profileUC.UseCase
	handler  *ProfileHandler
	account  *AccountHandler
}

func newProfileFixture(route func(upstream.Request) (*upstream.Response, error)) *profileFixture {
	f := &profileFixture{
		sessions: newMemorySessions(),
		provider: &stubProvider{user: &domain.User{ID: "u1", Email: "ada@example.com"}},
		storage:  &memoryStorage{},
		backend:  newFakeBackend(route),
	}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	auth := newAuthUseCase(f.provider, f.sessions)
	f.profile = profileUC.New(auth, f.storage, f.backend, notice.NewBoard(clock, time.Minute), clock, nil)
	f.handler = NewProfileHandler(f.profile, nil, nil)
	f.account = NewAccountHandler(f.backend, f.profile, auth, testCookie, nil, nil)
	return f
}

func liveSession() *domain.Session {
	return &domain.Session{
		ID:          "sid",
		UserID:      "u1",
		AccessToken: "tok",
		User:        &domain.User{ID: "u1", Email: "ada@example.com"},
	}
}

func TestProfileHandler_UpdateDisplayNameRequiresSession(t *testing.T) {
	f := newProfileFixture(respondWith(nil, nil))
	ctx := withJSON(newRequestCtx(http.MethodPut, "/api/profile/display-name"), `{"display_name":"Ada"}`)

	f.handler.UpdateDisplayName(ctx)

	assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())
	body := decodeEnvelope(t, ctx)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestProfileHandler_UpdateDisplayName(t *testing.T) {
	f := newProfileFixture(respondWith(nil, nil))
	session := liveSession()
	require.NoError(t, f.sessions.Save(context.Background(), session))

	ctx := withSession(withJSON(newRequestCtx(http.MethodPut, "/api/profile/display-name"), `{"display_name":"Ada"}`), session)
	f.handler.UpdateDisplayName(ctx)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	data := decodeEnvelope(t, ctx)["data"].(map[string]interface{})
	meta := data["user_metadata"].(map[string]interface{})
	assert.Equal(t, "Ada", meta["display_name"])

	stored, err := f.sessions.Get(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.User.DisplayName())

	ctx = withSession(newRequestCtx(http.MethodGet, "/api/profile/notice"), session)
	f.handler.Notice(ctx)
	msg := decodeEnvelope(t, ctx)["data"].(map[string]interface{})
	assert.Equal(t, notice.KindSuccess, msg["kind"])
	assert.Equal(t, "Username updated successfully", msg["text"])
}

func TestProfileHandler_UpdateDisplayNameValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "empty", body: `{"display_name":"   "}`, wantMsg: "Username cannot be empty"},
		{name: "too long", body: `{"display_name":"abcdefghijklmnopqrstu"}`, wantMsg: "Username cannot exceed 20 characters"},
		{name: "not json", body: `display_name=Ada`, wantMsg: "invalid payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProfileFixture(respondWith(nil, nil))
			ctx := withSession(withJSON(newRequestCtx(http.MethodPut, "/api/profile/display-name"), tt.body), liveSession())

			f.handler.UpdateDisplayName(ctx)

			assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
			assert.Equal(t, tt.wantMsg, decodeEnvelope(t, ctx)["error"])
		})
	}
}

func multipartImage(t *testing.T, ctx *fasthttp.RequestCtx, name, contentType string, data []byte) *fasthttp.RequestCtx {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	ctx.Request.Header.SetContentType(w.FormDataContentType())
	ctx.Request.SetBody(body.Bytes())
	return ctx
}

func TestProfileHandler_UploadAvatar(t *testing.T) {
	f := newProfileFixture(respondWith(nil, nil))
	session := liveSession()
	require.NoError(t, f.sessions.Save(context.Background(), session))

	ctx := withSession(newRequestCtx(http.MethodPost, "/api/profile/avatar"), session)
	multipartImage(t, ctx, "me.png", "image/png", []byte("not really a png"))

	f.handler.UploadAvatar(ctx)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	require.Len(t, f.storage.uploads, 1)
	up := f.storage.uploads[0]
	assert.Equal(t, "profilepic", up.bucket)
	assert.Equal(t, "u1-1740830400000.png", up.path)
	assert.Equal(t, "image/png", up.contentType)
	assert.Equal(t, "tok", up.token)

	data := decodeEnvelope(t, ctx)["data"].(map[string]interface{})
	assert.Equal(t, "https://storage.test/profilepic/u1-1740830400000.png", data["url"])
	assert.Equal(t, "https://storage.test/profilepic/u1-1740830400000.png", session.User.UserMetadata.String(domain.MetaCustomAvatarURL))
}

func TestProfileHandler_UploadAvatarRejects(t *testing.T) {
	tests := []struct {
		name        string
		file        bool
		anonymous   bool
		contentType string
		storageErr  error
		wantStatus  int
		wantMsg     string
	}{
		{name: "no file", wantStatus: http.StatusBadRequest, wantMsg: "No profile image provided"},
		{name: "no file before session", anonymous: true, wantStatus: http.StatusBadRequest, wantMsg: "No profile image provided"},
		{name: "not signed in", file: true, anonymous: true, contentType: "image/png", wantStatus: http.StatusUnauthorized, wantMsg: "User not authenticated"},
		{name: "wrong type", file: true, contentType: "image/gif", wantStatus: http.StatusBadRequest, wantMsg: "Please upload a JPEG, JPG, or PNG image file"},
		{name: "storage down", file: true, contentType: "image/jpeg", storageErr: errors.New("503"), wantStatus: http.StatusBadGateway, wantMsg: "Failed to upload profile image. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProfileFixture(respondWith(nil, nil))
			f.storage.err = tt.storageErr
			ctx := newRequestCtx(http.MethodPost, "/api/profile/avatar")
			if !tt.anonymous {
				ctx = withSession(ctx, liveSession())
			}
			if tt.file {
				multipartImage(t, ctx, "me.jpg", tt.contentType, []byte("bytes"))
			}

			f.handler.UploadAvatar(ctx)

			assert.Equal(t, tt.wantStatus, ctx.Response.StatusCode())
			assert.Equal(t, tt.wantMsg, decodeEnvelope(t, ctx)["error"])
		})
	}
}

func TestProfileHandler_PreviewRequiresSession(t *testing.T) {
	f := newProfileFixture(respondWith(nil, nil))
	ctx := newRequestCtx(http.MethodPost, "/api/profile/avatar/preview")
	multipartImage(t, ctx, "me.png", "image/png", []byte("bytes"))

	f.handler.Preview(ctx)

	assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, "UNAUTHORIZED", decodeEnvelope(t, ctx)["code"])
}

func TestProfileHandler_Image(t *testing.T) {
	f := newProfileFixture(respondWith(nil, nil))

	ctx := newRequestCtx(http.MethodGet, "/api/profile/image")
	f.handler.Image(ctx)
	assert.JSONEq(t, `{"status":"success","data":{"src":"/nopicture_placeholder.png"}}`, string(ctx.Response.Body()))

	session := liveSession()
	session.User.UserMetadata = domain.UserMetadata{domain.MetaAvatarURL: "https://google.test/a.png"}
	ctx = withSession(newRequestCtx(http.MethodGet, "/api/profile/image"), session)
	f.handler.Image(ctx)
	assert.JSONEq(t, `{"status":"success","data":{"src":"https://google.test/a.png"}}`, string(ctx.Response.Body()))

	ctx = withSession(newRequestCtx(http.MethodGet, "/api/profile/image?preview=data:image/jpeg;base64,AAAA"), session)
	f.handler.Image(ctx)
	assert.JSONEq(t, `{"status":"success","data":{"src":"data:image/jpeg;base64,AAAA"}}`, string(ctx.Response.Body()))
}

func TestAccountHandler_DeleteUserProxies(t *testing.T) {
	f := newProfileFixture(respondWith(nil, errors.New("connection reset")))
	ctx := withParam(newRequestCtx(http.MethodDelete, "/api/user/u1"), "user_id", "u1")

	f.account.DeleteUser(ctx)

	assert.Equal(t, http.StatusInternalServerError, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"error":"Failed to delete account due to network error"}`, string(ctx.Response.Body()))
	require.Len(t, f.backend.requests(), 1)
	assert.Equal(t, "/api/user/u1", f.backend.requests()[0].Endpoint)
}

func TestAccountHandler_DeleteAccount(t *testing.T) {
	f := newProfileFixture(respondWith(jsonResponse(http.StatusOK, `{"message":"deleted"}`), nil))
	session := liveSession()
	require.NoError(t, f.sessions.Save(context.Background(), session))

	ctx := withSession(newRequestCtx(http.MethodDelete, "/api/account"), session)
	ctx.Request.Header.SetCookie(testCookieName, "sid")
	f.account.DeleteAccount(ctx)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.False(t, f.sessions.has("sid"))
	assert.Contains(t, string(ctx.Response.Header.PeekCookie(testCookieName)), "expires=Tue, 10 Nov 2009")
	require.Len(t, f.backend.requests(), 1)
	assert.Equal(t, http.MethodDelete, f.backend.requests()[0].Method)
	assert.Equal(t, "/api/user/u1", f.backend.requests()[0].Endpoint)
}

func TestAccountHandler_DeleteAccountFailureKeepsSession(t *testing.T) {
	f := newProfileFixture(respondWith(jsonResponse(http.StatusConflict, `{}`), nil))
	session := liveSession()
	require.NoError(t, f.sessions.Save(context.Background(), session))

	ctx := withSession(newRequestCtx(http.MethodDelete, "/api/account"), session)
	f.account.DeleteAccount(ctx)

	assert.Equal(t, http.StatusBadGateway, ctx.Response.StatusCode())
	assert.Equal(t, "Failed to delete account (409)", decodeEnvelope(t, ctx)["error"])
	assert.True(t, f.sessions.has("sid"))

	msg, ok := f.profile.Notice(session)
	require.True(t, ok)
	assert.Equal(t, notice.KindError, msg.Kind)
}

type staticStatus monitor.Status

func (s staticStatus) GetStatus() monitor.Status { return monitor.Status(s) }

func TestHealthHandler(t *testing.T) {
	healthy := NewHealthHandler(staticStatus{SessionStore: true, Backend: true, StoreKind: "bolt"}, nil, nil)
	ctx := newRequestCtx(http.MethodGet, "/health")
	healthy.Check(ctx)
	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	degraded := NewHealthHandler(staticStatus{SessionStore: true, StoreKind: "redis"}, nil, nil)
	ctx = newRequestCtx(http.MethodGet, "/health")
	degraded.Check(ctx)
	assert.Equal(t, http.StatusServiceUnavailable, ctx.Response.StatusCode())
	assert.Equal(t, "DEGRADED", decodeEnvelope(t, ctx)["code"])
}

func TestPageHandler_Layout(t *testing.T) {
	h := NewPageHandler(nil, nil)

	ctx := newRequestCtx(http.MethodGet, "/api/session")
	h.Layout(ctx)
	assert.JSONEq(t, `{"session":null,"cookies":[]}`, string(ctx.Response.Body()))

	session := liveSession()
	session.User.UserMetadata = domain.UserMetadata{domain.MetaDisplayName: "Ada", "secret": "x"}
	ctx = withSession(newRequestCtx(http.MethodGet, "/api/session"), session)
	h.Layout(ctx)
	assert.JSONEq(t, `{"session":{"user":{"id":"u1","email":"ada@example.com","user_metadata":{"display_name":"Ada","avatar_url":""}}},"cookies":[]}`,
		string(ctx.Response.Body()))
}
