// File: internal/auth/provider.go
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"artify/internal/common"
	"artify/internal/platform/broadcast"
	"artify/internal/profile"
	"artify/internal/session"

	"go.uber.org/zap"
)

// DefaultInitTimeout bounds the initial session check.
const DefaultInitTimeout = 10 * time.Second

// ErrClosed is wrapped by errors from operations on a closed Provider.
var ErrClosed = errors.New("auth provider is closed")

// ProfileStore is the part of the profile repository the provider uses.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*profile.Profile, error)
	Upsert(ctx context.Context, p *profile.Profile) error
	Update(ctx context.Context, id string, upd profile.Updates) (*profile.Profile, error)
}

// SignUpPolicy optionally gates sign-up, e.g. behind invitations.
type SignUpPolicy interface {
	// Authorize returns the role the new account will receive.
	Authorize(ctx context.Context, email, token string, requested common.Role) (common.Role, error)
	// Consume marks the grant used once the identity exists.
	Consume(ctx context.Context, email, token, identityID string) error
}

// Snapshot is a consistent read of the provider state.
type Snapshot struct {
	User      *User `json:"user"`
	IsLoading bool  `json:"is_loading"`
	IsAdmin   bool  `json:"is_admin"`
	IsSeller  bool  `json:"is_seller"`
	IsBuyer   bool  `json:"is_buyer"`
}

// SignUpRequest holds the sign-up input.
type SignUpRequest struct {
	Email       string
	Password    string
	Role        common.Role
	InviteToken string
}

// SignUpResult describes a created identity. Session and User are nil
// while email confirmation is pending.
type SignUpResult struct {
	Identity            *session.Identity
	Session             *session.Session
	User                *User
	ConfirmationPending bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithSignUpPolicy installs a sign-up gate.
func WithSignUpPolicy(policy SignUpPolicy) Option {
	return func(p *Provider) { p.policy = policy }
}

// WithInitTimeout bounds how long Start waits for the session store.
func WithInitTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.initTimeout = d
		}
	}
}

// Provider owns "who is signed in and in what role" for one process. It
// is the only component that asks the session store to create or destroy
// sessions.
type Provider struct {
	store    session.Store
	profiles ProfileStore
	policy   SignUpPolicy
	logger   *zap.Logger

	initTimeout time.Duration

	// base is cancelled by Close so continuations stop early.
	base   context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	user        *User
	sess        *session.Session
	initialized bool
	inflight    int
	gen         uint64
	started     bool
	closed      bool
	unsubscribe func()

	changes *broadcast.Hub[Snapshot]
}

// NewProvider creates a provider in the initial loading state. Call Start
// to restore the session.
func NewProvider(store session.Store, profiles ProfileStore, logger *zap.Logger, opts ...Option) *Provider {
	base, cancel := context.WithCancel(context.Background())
	p := &Provider{
		store:       store,
		profiles:    profiles,
		logger:      logger.Named("auth"),
		initTimeout: DefaultInitTimeout,
		base:        base,
		cancel:      cancel,
		changes:     broadcast.NewHub[Snapshot](logger),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start subscribes to session changes, then restores the current session.
// It returns once the state is settled or the init timeout elapsed; in
// both cases IsLoading is false afterwards. Errors are logged, never
// returned: a failed restore leaves the provider anonymous.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	unsubscribe := p.store.OnSessionChange(p.handleEvent)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		unsubscribe()
		return
	}
	p.unsubscribe = unsubscribe
	g := p.nextGenLocked()
	p.mu.Unlock()

	initCtx, cancel := context.WithTimeout(ctx, p.initTimeout)
	defer cancel()
	stop := context.AfterFunc(p.base, cancel)
	defer stop()

	type restored struct {
		sess *session.Session
		user *User
	}
	done := make(chan restored, 1)
	go func() {
		sess, err := p.store.GetCurrentSession(initCtx)
		if err != nil {
			p.logger.Warn("Initial session check failed; continuing signed out", zap.Error(err))
			done <- restored{}
			return
		}
		if sess == nil {
			done <- restored{}
			return
		}
		user, _ := p.buildUser(initCtx, sess)
		done <- restored{sess: sess, user: user}
	}()

	select {
	case r := <-done:
		if !p.commit(g, r.sess, r.user) {
			// A failed operation still takes a generation; keep the
			// restored identity if the store agrees nobody replaced it.
			p.reconcile(r.sess, r.user)
			p.settle()
		}
	case <-initCtx.Done():
		p.logger.Warn("Initial session check did not finish in time; continuing signed out",
			zap.Duration("timeout", p.initTimeout), zap.Error(initCtx.Err()))
		p.settle()
	}
}

// Close releases the session subscription. Later notifications and late
// results of in-flight operations are ignored.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	p.cancel()
}

// Snapshot returns the current state.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe registers fn for every state change.
func (p *Provider) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return p.changes.Subscribe(fn)
}

// SignIn verifies credentials with the session store and, on success,
// makes the derived User current.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, newError(ErrInvalidCredentials, nil)
	}
	g, ok := p.begin()
	if !ok {
		return nil, unknownError("Sign-in failed", ErrClosed)
	}
	defer p.end()

	sess, err := p.store.SignInWithPassword(ctx, email, password)
	if err != nil {
		p.logger.Info("Sign-in rejected", zap.String("email", email), zap.Error(err))
		return nil, classifySignIn(err)
	}
	user, _ := p.buildUser(ctx, sess)
	p.commit(g, sess, user)
	p.logger.Info("User signed in", zap.String("uid", user.ID), zap.String("role", user.Role.String()))
	return user, nil
}

// SignUp creates an identity and its profile. When the profile cannot be
// written the result is still returned, together with an error of kind
// KindProfileCreationFailed.
func (p *Provider) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	email := normalizeEmail(req.Email)
	role := req.Role
	if role == "" {
		role = common.DefaultRole
	}
	if !role.Valid() {
		return nil, newError(ErrRoleNotAllowed, nil)
	}
	if p.policy != nil {
		granted, err := p.policy.Authorize(ctx, email, req.InviteToken, role)
		if err != nil {
			return nil, newError(ErrInvitationInvalid, err)
		}
		role = granted
	} else if role == common.RoleAdmin {
		return nil, newError(ErrRoleNotAllowed, nil)
	}

	if _, ok := p.begin(); !ok {
		return nil, unknownError("Sign-up failed", ErrClosed)
	}
	defer p.end()

	meta := map[string]string{
		session.MetaRole:     role.String(),
		session.MetaUsername: profile.DeriveUsername(email),
	}
	ident, sess, err := p.store.SignUp(ctx, email, req.Password, meta)
	if err != nil {
		p.logger.Info("Sign-up rejected", zap.String("email", email), zap.Error(err))
		return nil, classifySignUp(err)
	}

	result := &SignUpResult{Identity: ident, Session: sess, ConfirmationPending: sess == nil}
	stored, profileErr := p.createProfile(ctx, ident.ID, email, role)

	if p.policy != nil {
		if err := p.policy.Consume(ctx, email, req.InviteToken, ident.ID); err != nil {
			p.logger.Error("Failed to consume sign-up grant", zap.String("uid", ident.ID), zap.Error(err))
		}
	}

	if sess != nil {
		result.User = NewUser(FieldsOf(sess), stored)
		p.applyIfCurrent(sess, result.User)
	}

	if profileErr != nil {
		p.logger.Error("Identity created without a profile; needs reconciliation",
			zap.String("uid", ident.ID), zap.String("email", email),
			zap.String("role", role.String()), zap.Error(profileErr))
		return result, newError(ErrProfileCreationFailed, profileErr)
	}
	p.logger.Info("User signed up", zap.String("uid", ident.ID), zap.String("role", role.String()),
		zap.Bool("confirmationPending", result.ConfirmationPending))
	return result, nil
}

// createProfile upserts the profile and reads it back. The sign-up only
// counts as complete once the stored row carries the requested role.
func (p *Provider) createProfile(ctx context.Context, id, email string, role common.Role) (*profile.Profile, error) {
	if err := p.profiles.Upsert(ctx, profile.NewForIdentity(id, email, role)); err != nil {
		return nil, err
	}
	stored, err := p.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.Role != role {
		return stored, errors.New("stored profile role does not match the requested role")
	}
	return stored, nil
}

// SignOut asks the session store to invalidate the session. Local state
// is cleared only after the store confirms. Signing out while signed out
// is a no-op.
func (p *Provider) SignOut(ctx context.Context) error {
	if _, ok := p.begin(); !ok {
		return unknownError("Sign-out failed", ErrClosed)
	}
	defer p.end()

	if err := p.store.SignOut(ctx); err != nil {
		p.logger.Error("Sign-out failed", zap.Error(err))
		return unknownError("Sign-out failed", err)
	}
	p.clearIfSignedOut()
	return nil
}

// ResetPassword requests a reset email. Unknown addresses succeed too.
func (p *Provider) ResetPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	err := p.store.ResetPasswordForEmail(ctx, email)
	if err == nil || errors.Is(err, session.ErrInvalidCredentials) {
		return nil
	}
	p.logger.Error("Password reset request failed", zap.Error(err))
	return unknownError("Password reset failed", err)
}

// UpdatePassword changes the signed-in user's password.
func (p *Provider) UpdatePassword(ctx context.Context, newPassword string) error {
	if _, ok := p.signedIn(); !ok {
		return newError(ErrUnauthenticated, nil)
	}
	if _, ok := p.begin(); !ok {
		return unknownError("Password update failed", ErrClosed)
	}
	defer p.end()

	if _, err := p.store.UpdatePassword(ctx, newPassword); err != nil {
		switch {
		case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionExpired):
			return newError(ErrUnauthenticated, err)
		case errors.Is(err, session.ErrWeakPassword):
			return newError(ErrWeakPassword, err)
		}
		return unknownError("Password update failed", err)
	}
	return nil
}

// UpdateProfile merges upd into the signed-in user's profile.
func (p *Provider) UpdateProfile(ctx context.Context, upd profile.Updates) (*User, error) {
	sess, ok := p.signedIn()
	if !ok {
		return nil, newError(ErrUnauthenticated, nil)
	}
	updated, err := p.profiles.Update(ctx, sess.UserID, upd)
	if err != nil {
		if apiErr, ok := common.IsAPIError(err); ok {
			return nil, apiErr
		}
		return nil, unknownError("Profile update failed", err)
	}
	user := NewUser(FieldsOf(sess), updated)
	p.applyIfCurrent(sess, user)
	return user, nil
}

// Refresh rebuilds the User from the current session and a fresh profile
// read, e.g. after a role change.
func (p *Provider) Refresh(ctx context.Context) (*User, error) {
	sess, ok := p.signedIn()
	if !ok {
		return nil, newError(ErrUnauthenticated, nil)
	}
	user, err := p.buildUser(ctx, sess)
	p.applyIfCurrent(sess, user)
	if err != nil {
		return user, newError(ErrProfileFetchFailed, err)
	}
	return user, nil
}

func (p *Provider) handleEvent(ev session.Event) {
	switch ev.Type {
	case session.EventSignedOut:
		p.clearIfSignedOut()
	case session.EventSignedIn, session.EventTokenRefreshed, session.EventUserUpdated:
		if ev.Session == nil {
			return
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		g := p.nextGenLocked()
		// Notifications can arrive out of order; the store's current
		// session is authoritative.
		cur := p.store.Current()
		p.mu.Unlock()
		if cur == nil || cur.UserID != ev.Session.UserID {
			p.logger.Debug("Ignoring stale session event", zap.String("type", string(ev.Type)))
			return
		}

		user, _ := p.buildUser(p.base, ev.Session)
		if !p.commit(g, cur, user) {
			p.reconcile(cur, user)
		}
	default:
		p.logger.Debug("Ignoring session event", zap.String("type", string(ev.Type)))
	}
}

// buildUser never fails to produce a User. The returned error reports a
// profile read failure other than not-found.
func (p *Provider) buildUser(ctx context.Context, sess *session.Session) (*User, error) {
	prof, err := p.profiles.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			p.logger.Warn("No profile for signed-in identity; using defaults", zap.String("uid", sess.UserID))
			return NewUser(FieldsOf(sess), nil), nil
		}
		p.logger.Error("Profile fetch failed; using defaults", zap.String("uid", sess.UserID), zap.Error(err))
		return NewUser(FieldsOf(sess), nil), err
	}
	return NewUser(FieldsOf(sess), prof), nil
}

func (p *Provider) nextGenLocked() uint64 {
	p.gen++
	return p.gen
}

// begin marks an operation in flight and returns its generation.
func (p *Provider) begin() (uint64, bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, false
	}
	g := p.nextGenLocked()
	p.inflight++
	notify := p.inflight == 1 && p.initialized
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if notify {
		p.changes.Publish(snap)
	}
	return g, true
}

func (p *Provider) end() {
	p.mu.Lock()
	p.inflight--
	if !p.started {
		// No restore is pending, so the outcome of this operation is authoritative.
		p.initialized = true
	}
	notify := p.inflight == 0 && !p.closed
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if notify {
		p.changes.Publish(snap)
	}
}

// commit applies a result only if no newer operation or notification
// started after generation g.
func (p *Provider) commit(g uint64, sess *session.Session, user *User) bool {
	p.mu.Lock()
	if p.closed || g != p.gen {
		p.mu.Unlock()
		return false
	}
	p.sess, p.user = sess, user
	p.initialized = true
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.changes.Publish(snap)
	return true
}

// applyIfCurrent applies user as the newest state when the session store
// still holds the same identity.
func (p *Provider) applyIfCurrent(sess *session.Session, user *User) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	cur := p.store.Current()
	if cur == nil || cur.UserID != sess.UserID {
		p.mu.Unlock()
		p.logger.Debug("Session changed underneath; dropping result", zap.String("uid", sess.UserID))
		return
	}
	p.nextGenLocked()
	p.sess, p.user = cur, user
	p.initialized = true
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.changes.Publish(snap)
}

// reconcile applies a result whose generation was superseded, provided the
// store still holds its identity and the provider does not show it yet.
func (p *Provider) reconcile(sess *session.Session, user *User) {
	if sess == nil || user == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	cur := p.store.Current()
	if cur == nil || cur.UserID != sess.UserID || (p.user != nil && p.user.ID == cur.UserID) {
		p.mu.Unlock()
		return
	}
	p.nextGenLocked()
	p.sess, p.user = cur, user
	p.initialized = true
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.changes.Publish(snap)
}

// signedIn returns the store's session when the provider shows the same
// identity. A session the provider has not adopted yet does not count.
func (p *Provider) signedIn() (*session.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.user == nil {
		return nil, false
	}
	cur := p.store.Current()
	if cur == nil || cur.UserID != p.user.ID {
		return nil, false
	}
	return cur, true
}

// clearIfSignedOut clears the state and supersedes every in-flight
// operation, unless the store already holds a newer session.
func (p *Provider) clearIfSignedOut() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.store.Current() != nil {
		p.mu.Unlock()
		return
	}
	p.nextGenLocked()
	p.sess, p.user = nil, nil
	p.initialized = true
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.changes.Publish(snap)
}

// settle ends the initial loading phase without changing the user.
func (p *Provider) settle() {
	p.mu.Lock()
	if p.closed || p.initialized {
		p.mu.Unlock()
		return
	}
	p.initialized = true
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.changes.Publish(snap)
}

func (p *Provider) snapshotLocked() Snapshot {
	u := p.user
	return Snapshot{
		User:      u,
		IsLoading: !p.initialized || p.inflight > 0,
		IsAdmin:   u.IsAdmin(),
		IsSeller:  u.IsSeller(),
		IsBuyer:   u.IsBuyer(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
