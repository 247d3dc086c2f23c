package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"artify/internal/common"
	"artify/internal/config"
	"artify/internal/filestorage"
	"artify/internal/profile"
	"artify/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func setupAuthRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t, session.MemoryStoreOptions{})
	f.provider.Start(f.ctx)

	cfg := &config.Config{SignInPath: "/signin", FallbackPath: "/", AuthErrorPath: "/auth/error"}
	h := NewHandler(f.provider, profile.NewService(f.profiles, zap.NewNop()), nil, cfg, zap.NewNop())

	requireUser := func(c *gin.Context) {
		snap := f.provider.Snapshot()
		if snap.User == nil {
			common.RespondWithError(c, common.ErrUnauthorized)
			return
		}
		c.Set(common.UserIDKey, snap.User.ID)
		c.Next()
	}

	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"), requireUser)
	h.RegisterPages(router)
	return router, f
}

func do(router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHandler_SignInAndMe(t *testing.T) {
	router, _ := setupAuthRouter(t)

	w, env := do(router, http.MethodPost, "/api/v1/auth/sign-in", `{"email":"admin@artify.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(KindInvalidCredentials), env.Code)
	assert.Equal(t, ErrInvalidCredentials.Message, env.Message)

	w, env = do(router, http.MethodPost, "/api/v1/auth/sign-in", `{"email":"admin@artify.com","password":"admin123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var user User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, common.RoleAdmin, user.Role)

	w, env = do(router, http.MethodGet, "/api/v1/auth/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.True(t, snap.IsAdmin)
	assert.False(t, snap.IsLoading)

	w, _ = do(router, http.MethodPost, "/api/v1/auth/sign-out", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(router, http.MethodGet, "/api/v1/profile", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_SignInValidation(t *testing.T) {
	router, _ := setupAuthRouter(t)

	w, _ := do(router, http.MethodPost, "/api/v1/auth/sign-in", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = do(router, http.MethodPost, "/api/v1/auth/sign-in", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_SignUp(t *testing.T) {
	router, _ := setupAuthRouter(t)

	w, env := do(router, http.MethodPost, "/api/v1/auth/sign-up", `{"email":"new@artify.com","password":"painter1","role":"seller"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp SignUpResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.NotEmpty(t, resp.UserID)
	require.NotNil(t, resp.User)
	assert.Equal(t, common.RoleSeller, resp.User.Role)
	assert.False(t, resp.ConfirmationPending)

	w, env = do(router, http.MethodPost, "/api/v1/auth/sign-up", `{"email":"new@artify.com","password":"painter1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(KindEmailAlreadyInUse), env.Code)

	w, env = do(router, http.MethodPost, "/api/v1/auth/sign-up", `{"email":"boss@artify.com","password":"painter1","role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(KindRoleNotAllowed), env.Code)

	w, _ = do(router, http.MethodPost, "/api/v1/auth/sign-up", `{"email":"x@artify.com","password":"painter1","role":"curator"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandler_SignUpProfileFailureReportsIdentity(t *testing.T) {
	router, f := setupAuthRouter(t)
	f.profiles.failUpsert = assert.AnError

	w, env := do(router, http.MethodPost, "/api/v1/auth/sign-up", `{"email":"late@artify.com","password":"painter1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(KindProfileCreationFailed), env.Code)
	assert.Contains(t, string(env.Details), "user_id")
}

func TestHandler_ProfileAndBecomeArtist(t *testing.T) {
	router, f := setupAuthRouter(t)
	_, err := f.provider.SignIn(f.ctx, "user@artify.com", "user123")
	require.NoError(t, err)

	w, env := do(router, http.MethodPatch, "/api/v1/profile", `{"full_name":"Regular Buyer","website":"https://example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var user User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "Regular Buyer", user.FullName)

	w, env = do(router, http.MethodPost, "/api/v1/profile/become-artist", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.True(t, user.IsSeller())
	assert.True(t, f.provider.Snapshot().IsSeller)
}

func TestHandler_ResetAndUpdatePassword(t *testing.T) {
	router, f := setupAuthRouter(t)

	w, _ := do(router, http.MethodPost, "/api/v1/auth/reset-password", `{"email":"ghost@artify.com"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(router, http.MethodPost, "/api/v1/auth/update-password", `{"password":"secret99"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, err := f.provider.SignIn(f.ctx, "user@artify.com", "user123")
	require.NoError(t, err)
	w, _ = do(router, http.MethodPost, "/api/v1/auth/update-password", `{"password":"secret99"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err = f.provider.SignIn(f.ctx, "user@artify.com", "secret99")
	assert.NoError(t, err)
}

func TestHandler_CallbackAndErrorPage(t *testing.T) {
	router, _ := setupAuthRouter(t)

	tests := []struct {
		name     string
		query    string
		location string
	}{
		{"no error goes home", "", "/"},
		{"expired link", "error=access_denied&error_code=otp_expired&error_description=Email+link+is+invalid", "/auth/error?reason=expired"},
		{"denied", "error=access_denied", "/auth/error?reason=denied"},
		{"invalid", "error=invalid_request", "/auth/error?reason=invalid"},
		{"unknown", "error=server_error", "/auth/error?reason=unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(router, http.MethodGet, "/auth/callback?"+tt.query, "")
			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
		})
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/error?reason="+url.QueryEscape("expired"), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var page ErrorPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, "expired", page.Reason)
	assert.True(t, page.SignUp)
	assert.Equal(t, "/signin", page.RetryPath)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/error?reason=%3Cscript%3E", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, "unknown", page.Reason)
}

type stubAvatars struct {
	saved   []string
	deleted []string
}

func (s *stubAvatars) Save(fh *multipart.FileHeader) (string, error) {
	if fh.Header.Get("Content-Type") != "image/png" {
		return "", filestorage.ErrUnsupportedType
	}
	link := fmt.Sprintf("http://localhost/media/avatars/%d.png", len(s.saved))
	s.saved = append(s.saved, link)
	return link, nil
}

func (s *stubAvatars) Delete(link string) error {
	s.deleted = append(s.deleted, link)
	return nil
}

func uploadRequest(t *testing.T, contentType string) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="avatar"; filename="me"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("pixels"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/profile/avatar", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHandler_UploadAvatarReplacesPrevious(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t, session.MemoryStoreOptions{})
	f.provider.Start(f.ctx)
	_, err := f.provider.SignIn(f.ctx, "artist@artify.com", "artist123")
	require.NoError(t, err)

	avatars := &stubAvatars{}
	cfg := &config.Config{SignInPath: "/signin", FallbackPath: "/", AuthErrorPath: "/auth/error"}
	h := NewHandler(f.provider, profile.NewService(f.profiles, zap.NewNop()), avatars, cfg, zap.NewNop())
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"), func(c *gin.Context) {
		c.Set(common.UserIDKey, f.provider.Snapshot().User.ID)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "image/png"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, avatars.saved[0], f.provider.Snapshot().User.AvatarURL)
	assert.Empty(t, avatars.deleted)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "image/png"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, avatars.saved[1], f.provider.Snapshot().User.AvatarURL)
	assert.Equal(t, []string{avatars.saved[0]}, avatars.deleted)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "text/plain"))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, avatars.saved[1], f.provider.Snapshot().User.AvatarURL)
}
