// Package firebase implements the session store on top of Firebase
// Authentication: password flows over the Identity Toolkit REST API and
// token checks and revocation through the Admin SDK.
package firebase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"artify/internal/config"
	"artify/internal/platform/broadcast"
	"artify/internal/session"

	"go.uber.org/zap"
)

// StoreOptions configures a Store.
type StoreOptions struct {
	APIKey                   string
	AuthBaseURL              string
	TokenBaseURL             string
	RequestTimeout           time.Duration
	RequireEmailConfirmation bool
	Persistence              session.Persistence
}

// OptionsFromConfig maps the application config onto StoreOptions.
func OptionsFromConfig(cfg *config.Config, persist session.Persistence) StoreOptions {
	return StoreOptions{
		APIKey:                   cfg.FirebaseAPIKey,
		AuthBaseURL:              cfg.FirebaseAuthBaseURL,
		TokenBaseURL:             cfg.FirebaseTokenBaseURL,
		RequestTimeout:           cfg.ServerTimeout,
		RequireEmailConfirmation: cfg.RequireEmailConfirmation,
		Persistence:              persist,
	}
}

// Store is a session.Store backed by Firebase Authentication.
type Store struct {
	admin *AdminService
	rest  *restClient

	requireConfirmation bool
	persist             session.Persistence
	revoked             *session.Revocations
	events              *broadcast.Hub[session.Event]
	logger              *zap.Logger

	mu      sync.Mutex
	current *session.Session
	loaded  bool

	now func() time.Time
}

var _ session.Store = (*Store)(nil)

// NewStore creates a Store.
func NewStore(admin *AdminService, opts StoreOptions, logger *zap.Logger) *Store {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	persist := opts.Persistence
	if persist == nil {
		persist = session.NopPersistence{}
	}
	return &Store{
		admin:               admin,
		rest:                newRESTClient(opts.APIKey, opts.AuthBaseURL, opts.TokenBaseURL, opts.RequestTimeout),
		requireConfirmation: opts.RequireEmailConfirmation,
		persist:             persist,
		revoked:             session.NewRevocations(session.RevocationsConfig{DefaultExpiration: time.Hour, CleanupInterval: 10 * time.Minute}),
		events:              broadcast.NewHub[session.Event](logger),
		logger:              logger.Named("firebase_session_store"),
		now:                 time.Now,
	}
}

func (s *Store) OnSessionChange(fn func(session.Event)) func() {
	return s.events.Subscribe(fn)
}

func (s *Store) Current() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// GetCurrentSession restores the persisted session on first use. Expired
// sessions are refreshed; sessions the Admin SDK rejects get one refresh
// attempt and are discarded if that fails too.
func (s *Store) GetCurrentSession(ctx context.Context) (*session.Session, error) {
	s.mu.Lock()
	if !s.loaded {
		stored, err := s.persist.Load(ctx)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.loaded = true
		if stored != nil && !s.revoked.IsRevoked(stored.AccessToken) {
			s.current = stored
		}
	}
	cur := s.current.Clone()
	s.mu.Unlock()

	if cur == nil {
		return nil, nil
	}
	if cur.ExpiresAt.After(s.now()) {
		if _, err := s.admin.VerifyIDToken(ctx, cur.AccessToken); err == nil {
			return cur, nil
		}
		s.logger.Info("Stored session rejected; attempting refresh", zap.String("uid", cur.UserID))
	}

	refreshed, err := s.Refresh(ctx)
	if err != nil {
		if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrNoSession) {
			s.logger.Info("Stored session could not be refreshed; discarding", zap.String("uid", cur.UserID))
			return nil, nil
		}
		s.forget(cur)
		return nil, err
	}
	return refreshed, nil
}

// forget unsets a restored session that could not be confirmed, leaving
// persistence alone so the next GetCurrentSession retries the restore.
func (s *Store) forget(cur *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.AccessToken == cur.AccessToken {
		s.current = nil
		s.loaded = false
	}
}

func (s *Store) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	resp, err := s.rest.signInWithPassword(ctx, normalizeEmail(email), password)
	if err != nil {
		return nil, err
	}
	sess := s.sessionFrom(resp.IDToken, resp.RefreshToken, resp.ExpiresIn, resp.LocalID, resp.Email, nil)
	s.replace(ctx, sess, session.EventSignedIn)
	s.logger.Info("Signed in", zap.String("uid", sess.UserID))
	return sess.Clone(), nil
}

func (s *Store) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*session.Identity, *session.Session, error) {
	resp, err := s.rest.signUp(ctx, normalizeEmail(email), password)
	if err != nil {
		return nil, nil, err
	}
	meta := copyMeta(metadata)
	ident := &session.Identity{
		ID:             resp.LocalID,
		Email:          resp.Email,
		EmailConfirmed: !s.requireConfirmation,
		Metadata:       meta,
	}
	if role := meta[session.MetaRole]; role != "" {
		// The profile row stays authoritative; the claim is a convenience.
		if err := s.admin.SetRoleClaim(ctx, resp.LocalID, role); err != nil {
			s.logger.Warn("Continuing sign-up without role claim", zap.String("uid", resp.LocalID), zap.Error(err))
		}
	}

	if s.requireConfirmation {
		if err := s.rest.sendEmailVerification(ctx, resp.IDToken); err != nil {
			s.logger.Error("Failed to send verification email", zap.String("uid", resp.LocalID), zap.Error(err))
			return ident, nil, err
		}
		s.logger.Info("Sign-up awaiting email confirmation", zap.String("uid", resp.LocalID))
		return ident, nil, nil
	}

	sess := s.sessionFrom(resp.IDToken, resp.RefreshToken, resp.ExpiresIn, resp.LocalID, resp.Email, meta)
	s.replace(ctx, sess, session.EventSignedIn)
	return ident, sess.Clone(), nil
}

// SignOut revokes the user's refresh tokens first; the local session is
// only dropped once that succeeded.
func (s *Store) SignOut(ctx context.Context) error {
	cur := s.Current()
	if cur == nil {
		return nil
	}
	if err := s.admin.RevokeRefreshTokens(ctx, cur.UserID); err != nil {
		return &session.StoreError{Code: "REVOKE_FAILED", Cause: err}
	}
	s.revoked.Revoke(cur.AccessToken, cur.ExpiresAt)

	s.mu.Lock()
	if s.current == nil || s.current.UserID != cur.UserID {
		s.mu.Unlock()
		return nil
	}
	s.current = nil
	s.mu.Unlock()

	if err := s.persist.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear persisted session", zap.Error(err))
	}
	s.events.Publish(session.Event{Type: session.EventSignedOut})
	s.logger.Info("Signed out", zap.String("uid", cur.UserID))
	return nil
}

// ResetPasswordForEmail answers the same way whether or not the address
// has an account.
func (s *Store) ResetPasswordForEmail(ctx context.Context, email string) error {
	err := s.rest.sendPasswordReset(ctx, normalizeEmail(email))
	var se *session.StoreError
	if errors.As(err, &se) && se.Code == "EMAIL_NOT_FOUND" {
		return nil
	}
	return err
}

func (s *Store) UpdatePassword(ctx context.Context, newPassword string) (*session.Session, error) {
	cur := s.Current()
	if cur == nil {
		return nil, &session.StoreError{Code: "NO_SESSION", Kind: session.ErrNoSession}
	}
	resp, err := s.rest.updatePassword(ctx, cur.AccessToken, newPassword)
	if err != nil {
		return nil, err
	}
	email := resp.Email
	if email == "" {
		email = cur.Email
	}
	sess := s.sessionFrom(resp.IDToken, resp.RefreshToken, resp.ExpiresIn, cur.UserID, email, cur.Metadata)
	if !s.swap(ctx, cur, sess, session.EventUserUpdated) {
		return nil, &session.StoreError{Code: "NO_SESSION", Kind: session.ErrNoSession}
	}
	s.revoked.Revoke(cur.AccessToken, cur.ExpiresAt)
	return sess.Clone(), nil
}

// Refresh exchanges the refresh token for a new ID token. A rejected
// refresh token ends the session.
func (s *Store) Refresh(ctx context.Context) (*session.Session, error) {
	cur := s.Current()
	if cur == nil {
		return nil, &session.StoreError{Code: "NO_SESSION", Kind: session.ErrNoSession}
	}
	resp, err := s.rest.refresh(ctx, cur.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrUserDisabled) {
			s.logger.Info("Refresh token rejected; ending session", zap.String("uid", cur.UserID), zap.Error(err))
			s.drop(ctx, cur)
			if errors.Is(err, session.ErrUserDisabled) {
				return nil, &session.StoreError{Code: "USER_DISABLED", Kind: session.ErrSessionExpired, Cause: err}
			}
		}
		return nil, err
	}
	uid := resp.UserID
	if uid == "" {
		uid = cur.UserID
	}
	// The token endpoint does not echo the email.
	sess := s.sessionFrom(resp.IDToken, resp.RefreshToken, resp.ExpiresIn, uid, cur.Email, cur.Metadata)
	if !s.swap(ctx, cur, sess, session.EventTokenRefreshed) {
		return nil, &session.StoreError{Code: "NO_SESSION", Kind: session.ErrNoSession}
	}
	return sess.Clone(), nil
}

func (s *Store) sessionFrom(idToken, refreshToken, expiresIn, uid, email string, meta map[string]string) *session.Session {
	claims, err := readIDToken(idToken)
	if err != nil {
		s.logger.Debug("Could not read ID token claims", zap.Error(err))
		claims = nil
	}
	meta = copyMeta(meta)
	if claims != nil {
		if uid == "" {
			uid = claims.UserID
		}
		if email == "" {
			email = claims.Email
		}
		if claims.Role != "" {
			meta[session.MetaRole] = claims.Role
		}
	}
	return &session.Session{
		AccessToken:  idToken,
		RefreshToken: refreshToken,
		UserID:       uid,
		Email:        email,
		ExpiresAt:    expiry(claims, expiresIn, s.now()),
		Metadata:     meta,
	}
}

// replace installs sess as the current session unconditionally.
func (s *Store) replace(ctx context.Context, sess *session.Session, typ session.EventType) {
	s.mu.Lock()
	s.current = sess
	s.loaded = true
	s.mu.Unlock()
	s.save(ctx, sess)
	s.events.Publish(session.Event{Type: typ, Session: sess.Clone()})
}

// swap installs next only if prev is still current.
func (s *Store) swap(ctx context.Context, prev, next *session.Session, typ session.EventType) bool {
	s.mu.Lock()
	if s.current == nil || s.current.AccessToken != prev.AccessToken {
		s.mu.Unlock()
		return false
	}
	s.current = next
	s.mu.Unlock()
	s.save(ctx, next)
	s.events.Publish(session.Event{Type: typ, Session: next.Clone()})
	return true
}

func (s *Store) drop(ctx context.Context, prev *session.Session) {
	s.mu.Lock()
	if s.current == nil || s.current.AccessToken != prev.AccessToken {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.mu.Unlock()
	if err := s.persist.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear persisted session", zap.Error(err))
	}
	s.events.Publish(session.Event{Type: session.EventSignedOut})
}

func (s *Store) save(ctx context.Context, sess *session.Session) {
	if err := s.persist.Save(ctx, sess); err != nil {
		s.logger.Warn("Failed to persist session", zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
