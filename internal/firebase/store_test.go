package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"artify/internal/config"
	"artify/internal/platform/database"
	"artify/internal/session"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAdmin struct {
	mu        sync.Mutex
	verifyErr error
	revokeErr error
	claims    map[string]map[string]interface{}
	revoked   []string
}

func (f *fakeAdmin) VerifyIDTokenAndCheckRevoked(_ context.Context, idToken string) (*auth.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	c, err := readIDToken(idToken)
	if err != nil {
		return nil, err
	}
	return &auth.Token{UID: c.UserID}, nil
}

func (f *fakeAdmin) SetCustomUserClaims(_ context.Context, uid string, claims map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claims == nil {
		f.claims = map[string]map[string]interface{}{}
	}
	f.claims[uid] = claims
	return nil
}

func (f *fakeAdmin) RevokeRefreshTokens(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = append(f.revoked, uid)
	return nil
}

type account struct {
	uid      string
	password string
}

// identityToolkit fakes the Identity Toolkit and Secure Token endpoints.
type identityToolkit struct {
	t  *testing.T
	mu sync.Mutex

	accounts map[string]*account // by email
	refresh  map[string]string   // refresh token -> uid
	emails   map[string]string   // uid -> email
	tokenTTL time.Duration
	serial   int

	resetSent  []string
	verifySent int
	apiKeys    []string
}

func newIdentityToolkit(t *testing.T) (*identityToolkit, *httptest.Server) {
	it := &identityToolkit{
		t:        t,
		accounts: map[string]*account{"artist@artify.com": {uid: "seller-user-id", password: "artist123"}},
		refresh:  map[string]string{},
		emails:   map[string]string{"seller-user-id": "artist@artify.com"},
		tokenTTL: time.Hour,
	}
	srv := httptest.NewServer(http.HandlerFunc(it.serve))
	t.Cleanup(srv.Close)
	return it, srv
}

func (it *identityToolkit) fail(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"code": 400, "message": msg},
	})
}

func (it *identityToolkit) ok(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// mint must be called with it.mu held.
func (it *identityToolkit) mint(uid string) (idToken, refreshToken string) {
	it.serial++
	claims := jwt.MapClaims{
		"user_id": uid,
		"sub":     uid,
		"email":   it.emails[uid],
		"exp":     time.Now().Add(it.tokenTTL).Unix(),
		"n":       it.serial,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	assert.NoError(it.t, err)
	refreshToken = fmt.Sprintf("refresh-%s-%d", uid, it.serial)
	it.refresh[refreshToken] = uid
	return signed, refreshToken
}

func (it *identityToolkit) serve(w http.ResponseWriter, r *http.Request) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.apiKeys = append(it.apiKeys, r.URL.Query().Get("key"))

	if r.URL.Path == "/token" {
		if !assert.NoError(it.t, r.ParseForm()) {
			return
		}
		assert.Equal(it.t, "refresh_token", r.PostForm.Get("grant_type"))
		uid, ok := it.refresh[r.PostForm.Get("refresh_token")]
		if !ok {
			it.fail(w, "INVALID_REFRESH_TOKEN")
			return
		}
		id, rt := it.mint(uid)
		it.ok(w, map[string]string{"id_token": id, "refresh_token": rt, "expires_in": "3600", "user_id": uid})
		return
	}

	var body map[string]interface{}
	if !assert.NoError(it.t, json.NewDecoder(r.Body).Decode(&body)) {
		return
	}
	str := func(k string) string { s, _ := body[k].(string); return s }

	switch r.URL.Path {
	case "/accounts:signInWithPassword":
		acc, ok := it.accounts[str("email")]
		if !ok || acc.password != str("password") {
			it.fail(w, "INVALID_LOGIN_CREDENTIALS")
			return
		}
		id, rt := it.mint(acc.uid)
		it.ok(w, map[string]string{"idToken": id, "refreshToken": rt, "expiresIn": "3600", "localId": acc.uid, "email": str("email")})
	case "/accounts:signUp":
		if _, exists := it.accounts[str("email")]; exists {
			it.fail(w, "EMAIL_EXISTS")
			return
		}
		if len(str("password")) < 6 {
			it.fail(w, "WEAK_PASSWORD : Password should be at least 6 characters")
			return
		}
		uid := "uid-" + strings.Split(str("email"), "@")[0]
		it.accounts[str("email")] = &account{uid: uid, password: str("password")}
		it.emails[uid] = str("email")
		id, rt := it.mint(uid)
		it.ok(w, map[string]string{"idToken": id, "refreshToken": rt, "expiresIn": "3600", "localId": uid, "email": str("email")})
	case "/accounts:sendOobCode":
		switch str("requestType") {
		case "PASSWORD_RESET":
			if _, ok := it.accounts[str("email")]; !ok {
				it.fail(w, "EMAIL_NOT_FOUND")
				return
			}
			it.resetSent = append(it.resetSent, str("email"))
		case "VERIFY_EMAIL":
			it.verifySent++
		}
		it.ok(w, map[string]string{})
	case "/accounts:update":
		c, err := readIDToken(str("idToken"))
		if err != nil {
			it.fail(w, "INVALID_ID_TOKEN")
			return
		}
		if len(str("password")) < 6 {
			it.fail(w, "WEAK_PASSWORD : Password should be at least 6 characters")
			return
		}
		it.accounts[it.emails[c.UserID]].password = str("password")
		id, rt := it.mint(c.UserID)
		it.ok(w, map[string]string{"idToken": id, "refreshToken": rt, "expiresIn": "3600", "localId": c.UserID})
	default:
		http.NotFound(w, r)
	}
}

func (it *identityToolkit) revokeAll() {
	it.mu.Lock()
	it.refresh = map[string]string{}
	it.mu.Unlock()
}

func newTestStore(t *testing.T, srv *httptest.Server, admin *fakeAdmin, persist session.Persistence, confirm bool) *Store {
	t.Helper()
	return NewStore(NewAdminServiceWithClient(admin, zap.NewNop()), StoreOptions{
		APIKey:                   "test-key",
		AuthBaseURL:              srv.URL,
		TokenBaseURL:             srv.URL,
		RequireEmailConfirmation: confirm,
		Persistence:              persist,
	}, zap.NewNop())
}

func newPersistence(t *testing.T) session.Persistence {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", &config.Config{LogLevel: "silent"}, zap.NewNop())
	require.NoError(t, err)
	p, err := session.NewGormPersistence(db)
	require.NoError(t, err)
	return p
}

func recordEvents(s *Store) func() []session.EventType {
	var mu sync.Mutex
	var types []session.EventType
	s.OnSessionChange(func(ev session.Event) {
		mu.Lock()
		types = append(types, ev.Type)
		mu.Unlock()
	})
	return func() []session.EventType {
		mu.Lock()
		defer mu.Unlock()
		return append([]session.EventType(nil), types...)
	}
}

func TestStore_SignInAndOut(t *testing.T) {
	it, srv := newIdentityToolkit(t)
	admin := &fakeAdmin{}
	s := newTestStore(t, srv, admin, nil, false)
	events := recordEvents(s)
	ctx := context.Background()

	_, err := s.SignInWithPassword(ctx, "artist@artify.com", "wrong")
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)
	var se *session.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "INVALID_LOGIN_CREDENTIALS", se.Code)
	assert.Nil(t, s.Current())

	sess, err := s.SignInWithPassword(ctx, " Artist@Artify.com ", "artist123")
	require.NoError(t, err)
	assert.Equal(t, "seller-user-id", sess.UserID)
	assert.Equal(t, "artist@artify.com", sess.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)
	assert.Equal(t, sess.AccessToken, s.Current().AccessToken)

	require.NoError(t, s.SignOut(ctx))
	assert.Nil(t, s.Current())
	assert.Equal(t, []string{"seller-user-id"}, admin.revoked)
	assert.True(t, s.revoked.IsRevoked(sess.AccessToken))
	assert.NoError(t, s.SignOut(ctx), "signing out twice is a no-op")

	assert.Equal(t, []session.EventType{session.EventSignedIn, session.EventSignedOut}, events())
	for _, k := range it.apiKeys {
		assert.Equal(t, "test-key", k)
	}
}

func TestStore_SignOutKeepsSessionWhenRevocationFails(t *testing.T) {
	_, srv := newIdentityToolkit(t)
	admin := &fakeAdmin{revokeErr: errors.New("admin api down")}
	s := newTestStore(t, srv, admin, nil, false)
	ctx := context.Background()

	_, err := s.SignInWithPassword(ctx, "artist@artify.com", "artist123")
	require.NoError(t, err)
	assert.Error(t, s.SignOut(ctx))
	assert.NotNil(t, s.Current())
}

func TestStore_SignUp(t *testing.T) {
	_, srv := newIdentityToolkit(t)
	admin := &fakeAdmin{}
	s := newTestStore(t, srv, admin, nil, false)
	events := recordEvents(s)
	ctx := context.Background()

	ident, sess, err := s.SignUp(ctx, "painter@artify.com", "canvas1", map[string]string{session.MetaRole: "seller"})
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "uid-painter", ident.ID)
	assert.True(t, ident.EmailConfirmed)
	assert.Equal(t, "seller", sess.Metadata[session.MetaRole])
	assert.Equal(t, map[string]interface{}{"role": "seller"}, admin.claims["uid-painter"])
	assert.Equal(t, []session.EventType{session.EventSignedIn}, events())

	_, _, err = s.SignUp(ctx, "painter@artify.com", "canvas1", nil)
	assert.ErrorIs(t, err, session.ErrEmailExists)

	_, _, err = s.SignUp(ctx, "tiny@artify.com", "123", nil)
	assert.ErrorIs(t, err, session.ErrWeakPassword)
	var se *session.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "WEAK_PASSWORD", se.Code)
}

func TestStore_SignUpWithConfirmation(t *testing.T) {
	it, srv := newIdentityToolkit(t)
	s := newTestStore(t, srv, &fakeAdmin{}, nil, true)
	events := recordEvents(s)

	ident, sess, err := s.SignUp(context.Background(), "new@artify.com", "canvas1", nil)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.False(t, ident.EmailConfirmed)
	assert.Nil(t, s.Current())
	assert.Equal(t, 1, it.verifySent)
	assert.Empty(t, events())
}

func TestStore_ResetPasswordDoesNotEnumerate(t *testing.T) {
	it, srv := newIdentityToolkit(t)
	s := newTestStore(t, srv, &fakeAdmin{}, nil, false)
	ctx := context.Background()

	assert.NoError(t, s.ResetPasswordForEmail(ctx, "ghost@artify.com"))
	assert.NoError(t, s.ResetPasswordForEmail(ctx, "artist@artify.com"))
	assert.Equal(t, []string{"artist@artify.com"}, it.resetSent)
}

func TestStore_UpdatePasswordAndRefresh(t *testing.T) {
	_, srv := newIdentityToolkit(t)
	s := newTestStore(t, srv, &fakeAdmin{}, nil, false)
	events := recordEvents(s)
	ctx := context.Background()

	_, err := s.UpdatePassword(ctx, "secret99")
	assert.ErrorIs(t, err, session.ErrNoSession)
	_, err = s.Refresh(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)

	first, err := s.SignInWithPassword(ctx, "artist@artify.com", "artist123")
	require.NoError(t, err)

	_, err = s.UpdatePassword(ctx, "123")
	assert.ErrorIs(t, err, session.ErrWeakPassword)

	updated, err := s.UpdatePassword(ctx, "secret99")
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, updated.AccessToken)
	assert.Equal(t, "artist@artify.com", updated.Email)

	refreshed, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, updated.AccessToken, refreshed.AccessToken)
	assert.Equal(t, "artist@artify.com", refreshed.Email, "email carried over from the previous session")

	_, err = s.SignInWithPassword(ctx, "artist@artify.com", "secret99")
	require.NoError(t, err)

	assert.Equal(t, []session.EventType{
		session.EventSignedIn, session.EventUserUpdated, session.EventTokenRefreshed, session.EventSignedIn,
	}, events())
}

func TestStore_RejectedRefreshEndsSession(t *testing.T) {
	it, srv := newIdentityToolkit(t)
	s := newTestStore(t, srv, &fakeAdmin{}, nil, false)
	events := recordEvents(s)
	ctx := context.Background()

	_, err := s.SignInWithPassword(ctx, "artist@artify.com", "artist123")
	require.NoError(t, err)
	it.revokeAll()

	_, err = s.Refresh(ctx)
	assert.ErrorIs(t, err, session.ErrSessionExpired)
	assert.Nil(t, s.Current())
	assert.Equal(t, []session.EventType{session.EventSignedIn, session.EventSignedOut}, events())
}

func TestStore_RestoresPersistedSession(t *testing.T) {
	_, srv := newIdentityToolkit(t)
	persist := newPersistence(t)
	ctx := context.Background()

	first := newTestStore(t, srv, &fakeAdmin{}, persist, false)
	sess, err := first.SignInWithPassword(ctx, "artist@artify.com", "artist123")
	require.NoError(t, err)

	// A second process over the same database.
	second := newTestStore(t, srv, &fakeAdmin{}, persist, false)
	restored, err := second.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, sess.AccessToken, restored.AccessToken)
	assert.Equal(t, "seller-user-id", second.Current().UserID)
}

func TestStore_RestoreRefreshesExpiredOrRejectedSessions(t *testing.T) {
	it, srv := newIdentityToolkit(t)
	persist := newPersistence(t)
	ctx := context.Background()

	first := newTestStore(t, srv, &fakeAdmin{}, persist, false)
	sess, err := first.SignInWithPassword(ctx, "artist@artify.com", "artist123")
	require.NoError(t, err)

	// Expired: refreshed on restore.
	second := newTestStore(t, srv, &fakeAdmin{}, persist, false)
	second.now = func() time.Time { return sess.ExpiresAt.Add(time.Minute) }
	restored, err := second.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.NotEqual(t, sess.AccessToken, restored.AccessToken)

	// Rejected by the Admin SDK and unrefreshable: discarded.
	it.revokeAll()
	third := newTestStore(t, srv, &fakeAdmin{verifyErr: errors.New("id token revoked")}, persist, false)
	restored, err = third.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, restored)
	assert.Nil(t, third.Current())

	stored, err := persist.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestStore_UnconfirmedRestoreIsNotCurrent(t *testing.T) {
	_, srv := newIdentityToolkit(t)
	persist := newPersistence(t)
	ctx := context.Background()

	first := newTestStore(t, srv, &fakeAdmin{}, persist, false)
	sess, err := first.SignInWithPassword(ctx, "artist@artify.com", "artist123")
	require.NoError(t, err)

	// Expired and the token endpoint is unreachable.
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	second := newTestStore(t, dead, &fakeAdmin{}, persist, false)
	second.now = func() time.Time { return sess.ExpiresAt.Add(time.Minute) }

	restored, err := second.GetCurrentSession(ctx)
	require.Error(t, err)
	assert.Nil(t, restored)
	assert.Nil(t, second.Current())
	_, err = second.Refresh(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)

	// Persistence survives for a later retry.
	stored, err := persist.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, sess.AccessToken, stored.AccessToken)
}

func TestStore_NetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	s := newTestStore(t, srv, &fakeAdmin{}, nil, false)

	_, err := s.SignInWithPassword(context.Background(), "artist@artify.com", "artist123")
	var se *session.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "NETWORK_ERROR", se.Code)
	assert.NotErrorIs(t, err, session.ErrInvalidCredentials)
}

func TestErrorBodyCode(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"EMAIL_EXISTS", "EMAIL_EXISTS"},
		{"WEAK_PASSWORD : Password should be at least 6 characters", "WEAK_PASSWORD"},
		{"", ""},
	}
	for _, tt := range tests {
		var b errorBody
		b.Error.Message = tt.msg
		assert.Equal(t, tt.want, b.code())
	}
}
