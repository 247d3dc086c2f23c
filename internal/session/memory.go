package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"artify/internal/platform/broadcast"
	"artify/internal/platform/crypto"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Account is a credential record held by MemoryStore.
type Account struct {
	ID        string
	Email     string
	Password  string
	Confirmed bool
	Metadata  map[string]string
}

// DemoAccounts are the accounts a memory store is seeded with in demo mode.
func DemoAccounts() []Account {
	return []Account{
		{ID: "admin-user-id", Email: "admin@artify.com", Password: "admin123", Confirmed: true,
			Metadata: map[string]string{MetaRole: "admin", MetaUsername: "admin"}},
		{ID: "seller-user-id", Email: "artist@artify.com", Password: "artist123", Confirmed: true,
			Metadata: map[string]string{MetaRole: "seller", MetaUsername: "artistuser"}},
		{ID: "buyer-user-id", Email: "user@artify.com", Password: "user123", Confirmed: true,
			Metadata: map[string]string{MetaRole: "buyer", MetaUsername: "collector"}},
	}
}

// MemoryStoreOptions configures a MemoryStore.
type MemoryStoreOptions struct {
	Accounts                 []Account
	Persistence              Persistence
	RequireEmailConfirmation bool
	SessionTTL               time.Duration
	MinPasswordLength        int
}

// MemoryStore is a Store backed by an in-process account table. It serves
// the demo mode and tests.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account // keyed by lower-cased email
	current  *Session
	loaded   bool

	opts    MemoryStoreOptions
	persist Persistence
	revoked *Revocations
	events  *broadcast.Hub[Event]
	logger  *zap.Logger

	resetRequests []string
}

// NewMemoryStore builds a MemoryStore from opts.
func NewMemoryStore(opts MemoryStoreOptions, logger *zap.Logger) *MemoryStore {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 6
	}
	persist := opts.Persistence
	if persist == nil {
		persist = NopPersistence{}
	}
	s := &MemoryStore{
		accounts: make(map[string]*Account),
		opts:     opts,
		persist:  persist,
		revoked:  NewRevocations(RevocationsConfig{DefaultExpiration: opts.SessionTTL, CleanupInterval: 10 * time.Minute}),
		events:   broadcast.NewHub[Event](logger),
		logger:   logger.Named("memory_session_store"),
	}
	for _, a := range opts.Accounts {
		acc := a
		s.accounts[normalizeEmail(acc.Email)] = &acc
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *MemoryStore) OnSessionChange(fn func(Event)) func() {
	return s.events.Subscribe(fn)
}

func (s *MemoryStore) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

func (s *MemoryStore) GetCurrentSession(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	if !s.loaded {
		stored, err := s.persist.Load(ctx)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.loaded = true
		if stored != nil && s.accountByID(stored.UserID) != nil && !s.revoked.IsRevoked(stored.AccessToken) {
			s.current = stored
		}
	}
	cur := s.current
	s.mu.Unlock()

	if cur == nil {
		return nil, nil
	}
	if cur.Expired() {
		return s.Refresh(ctx)
	}
	return cur.Clone(), nil
}

func (s *MemoryStore) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	s.mu.Lock()
	acc, ok := s.accounts[normalizeEmail(email)]
	if !ok || acc.Password != password {
		s.mu.Unlock()
		return nil, &StoreError{Code: "INVALID_LOGIN_CREDENTIALS", Kind: ErrInvalidCredentials}
	}
	if !acc.Confirmed {
		s.mu.Unlock()
		return nil, &StoreError{Code: "EMAIL_NOT_CONFIRMED", Kind: ErrInvalidCredentials}
	}
	sess, err := s.issue(acc)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.current = sess
	s.mu.Unlock()

	s.save(ctx, sess)
	s.events.Publish(Event{Type: EventSignedIn, Session: sess.Clone()})
	return sess.Clone(), nil
}

func (s *MemoryStore) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*Identity, *Session, error) {
	key := normalizeEmail(email)
	s.mu.Lock()
	if _, exists := s.accounts[key]; exists {
		s.mu.Unlock()
		return nil, nil, &StoreError{Code: "EMAIL_EXISTS", Kind: ErrEmailExists}
	}
	if len(password) < s.opts.MinPasswordLength {
		s.mu.Unlock()
		return nil, nil, &StoreError{Code: "WEAK_PASSWORD", Kind: ErrWeakPassword}
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	acc := &Account{
		ID:        uuid.NewString(),
		Email:     key,
		Password:  password,
		Confirmed: !s.opts.RequireEmailConfirmation,
		Metadata:  meta,
	}
	s.accounts[key] = acc
	ident := &Identity{ID: acc.ID, Email: acc.Email, EmailConfirmed: acc.Confirmed, Metadata: meta}

	if !acc.Confirmed {
		s.mu.Unlock()
		s.logger.Info("Sign-up awaiting email confirmation", zap.String("uid", acc.ID))
		return ident, nil, nil
	}

	sess, err := s.issue(acc)
	if err != nil {
		s.mu.Unlock()
		return ident, nil, err
	}
	s.current = sess
	s.mu.Unlock()

	s.save(ctx, sess)
	s.events.Publish(Event{Type: EventSignedIn, Session: sess.Clone()})
	return ident, sess.Clone(), nil
}

func (s *MemoryStore) SignOut(ctx context.Context) error {
	s.mu.Lock()
	cur := s.current
	if cur == nil {
		s.mu.Unlock()
		return nil
	}
	s.revoked.Revoke(cur.AccessToken, cur.ExpiresAt)
	s.current = nil
	s.mu.Unlock()

	if err := s.persist.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear persisted session", zap.Error(err))
	}
	s.events.Publish(Event{Type: EventSignedOut})
	return nil
}

func (s *MemoryStore) ResetPasswordForEmail(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[normalizeEmail(email)]; ok {
		s.resetRequests = append(s.resetRequests, normalizeEmail(email))
	}
	return nil
}

// ResetRequests returns the addresses a reset was actually sent to.
func (s *MemoryStore) ResetRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.resetRequests...)
}

// ConfirmEmail marks a pending account as confirmed.
func (s *MemoryStore) ConfirmEmail(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[normalizeEmail(email)]
	if !ok {
		return false
	}
	acc.Confirmed = true
	return true
}

func (s *MemoryStore) UpdatePassword(ctx context.Context, newPassword string) (*Session, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, &StoreError{Code: "NO_SESSION", Kind: ErrNoSession}
	}
	if len(newPassword) < s.opts.MinPasswordLength {
		s.mu.Unlock()
		return nil, &StoreError{Code: "WEAK_PASSWORD", Kind: ErrWeakPassword}
	}
	acc := s.accountByID(s.current.UserID)
	if acc == nil {
		s.mu.Unlock()
		return nil, &StoreError{Code: "USER_NOT_FOUND", Kind: ErrNoSession}
	}
	acc.Password = newPassword
	old := s.current
	sess, err := s.issue(acc)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.revoked.Revoke(old.AccessToken, old.ExpiresAt)
	s.current = sess
	s.mu.Unlock()

	s.save(ctx, sess)
	s.events.Publish(Event{Type: EventUserUpdated, Session: sess.Clone()})
	return sess.Clone(), nil
}

func (s *MemoryStore) Refresh(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, &StoreError{Code: "NO_SESSION", Kind: ErrNoSession}
	}
	acc := s.accountByID(s.current.UserID)
	if acc == nil {
		s.current = nil
		s.mu.Unlock()
		return nil, &StoreError{Code: "USER_NOT_FOUND", Kind: ErrSessionExpired}
	}
	sess, err := s.issue(acc)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.current = sess
	s.mu.Unlock()

	s.save(ctx, sess)
	s.events.Publish(Event{Type: EventTokenRefreshed, Session: sess.Clone()})
	return sess.Clone(), nil
}

// issue must be called with s.mu held.
func (s *MemoryStore) issue(acc *Account) (*Session, error) {
	access, err := crypto.GenerateSecureRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := crypto.GenerateSecureRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	meta := make(map[string]string, len(acc.Metadata))
	for k, v := range acc.Metadata {
		meta[k] = v
	}
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       acc.ID,
		Email:        acc.Email,
		ExpiresAt:    time.Now().Add(s.opts.SessionTTL),
		Metadata:     meta,
	}, nil
}

// accountByID must be called with s.mu held.
func (s *MemoryStore) accountByID(id string) *Account {
	for _, a := range s.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *MemoryStore) save(ctx context.Context, sess *Session) {
	if err := s.persist.Save(ctx, sess); err != nil {
		s.logger.Warn("Failed to persist session", zap.Error(err))
	}
}
