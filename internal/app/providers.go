// File: internal/app/providers.go
package app

import (
	"context"
	"fmt"
	"strings"

	"artify/internal/auth"
	"artify/internal/config"
	"artify/internal/filestorage"
	"artify/internal/firebase"
	"artify/internal/invitation"
	"artify/internal/jobs"
	"artify/internal/platform/database"
	"artify/internal/profile"
	"artify/internal/session"

	"go.uber.org/zap"
)

// Provider functions shared by the server injector and the CLI.

// ProvideProfileDB opens the profile database and migrates its tables.
func ProvideProfileDB(cfg *config.Config, logger *zap.Logger) (*database.ProfileDB, func(), error) {
	db, err := database.NewGORM(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { database.Close(db.DB, logger) }
	if err := profile.AutoMigrate(db.DB); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to migrate profiles: %w", err)
	}
	if err := invitation.AutoMigrate(db.DB); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to migrate invitations: %w", err)
	}
	return db, cleanup, nil
}

// ProvideSessionPersistence opens the local session database.
func ProvideSessionPersistence(cfg *config.Config, logger *zap.Logger) (session.Persistence, func(), error) {
	db, err := database.NewSessionGORM(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { database.Close(db.DB, logger) }
	persist, err := session.NewGormPersistence(db.DB)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return persist, cleanup, nil
}

// ProvideSessionStore picks the store named by SESSION_STORE.
func ProvideSessionStore(cfg *config.Config, persist session.Persistence, logger *zap.Logger) (session.Store, error) {
	switch cfg.SessionStore {
	case config.SessionStoreMemory:
		logger.Warn("Using the in-memory session store with demo accounts")
		return session.NewMemoryStore(session.MemoryStoreOptions{
			Accounts:                 session.DemoAccounts(),
			Persistence:              persist,
			RequireEmailConfirmation: cfg.RequireEmailConfirmation,
		}, logger), nil
	case config.SessionStoreFirebase:
		admin, err := firebase.NewAdminService(cfg, logger)
		if err != nil {
			return nil, err
		}
		return firebase.NewStore(admin, firebase.OptionsFromConfig(cfg, persist), logger), nil
	}
	return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
}

// ProvideProfileRepository builds the profile repository.
func ProvideProfileRepository(db *database.ProfileDB) profile.Repository {
	return profile.NewGORMRepository(db.DB)
}

// ProvideInvitationRepository builds the invitation repository.
func ProvideInvitationRepository(db *database.ProfileDB) invitation.Repository {
	return invitation.NewGORMRepository(db.DB)
}

// ProvideProfileService builds the profile service. In demo mode the demo
// profiles are seeded so the demo accounts have their roles.
func ProvideProfileService(cfg *config.Config, repo profile.Repository, logger *zap.Logger) (*profile.ServiceImplementation, error) {
	svc := profile.NewService(repo, logger)
	if cfg.SessionStore == config.SessionStoreMemory {
		if err := svc.SeedDemo(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to seed demo profiles: %w", err)
		}
	}
	return svc, nil
}

// ProvideAuthProvider builds the process-wide auth provider. With
// INVITE_ONLY set, sign-up goes through the invitation gate.
func ProvideAuthProvider(cfg *config.Config, store session.Store, profiles profile.Repository, invitations invitation.Repository, logger *zap.Logger) (*auth.Provider, func()) {
	opts := []auth.Option{auth.WithInitTimeout(cfg.AuthInitTimeout)}
	if cfg.InviteOnly {
		opts = append(opts, auth.WithSignUpPolicy(invitation.NewGate(invitations, logger)))
	}
	p := auth.NewProvider(store, profiles, logger, opts...)
	return p, p.Close
}

// ProvideInvitationService builds the invitation service.
func ProvideInvitationService(cfg *config.Config, repo invitation.Repository, logger *zap.Logger) *invitation.ServiceImplementation {
	return invitation.NewService(repo, cfg.PublicBaseURL, cfg.InvitationExpiryDays, logger)
}

// ProvideProfileHandler builds the profile handler. A role change for the
// signed-in user is pushed into the provider right away.
func ProvideProfileHandler(svc profile.Service, provider *auth.Provider, logger *zap.Logger) *profile.Handler {
	return profile.NewHandler(svc, logger, func(ctx context.Context, userID string) {
		if u := provider.Snapshot().User; u != nil && u.ID == userID {
			if _, err := provider.Refresh(ctx); err != nil {
				logger.Warn("Failed to refresh the signed-in user after a role change", zap.Error(err))
			}
		}
	})
}

// ProvideScheduler registers the periodic jobs.
func ProvideScheduler(cfg *config.Config, store session.Store, invitations *invitation.ServiceImplementation, logger *zap.Logger) (*jobs.Scheduler, error) {
	s := jobs.NewScheduler(logger, 0)
	if err := s.Schedule(cfg.SessionRefreshSchedule, jobs.NewSessionRefreshJob(store, cfg.SessionRefreshMargin, logger)); err != nil {
		return nil, err
	}
	if err := s.Schedule(cfg.InvitationPurgeSchedule, jobs.NewInvitationPurgeJob(invitations, logger)); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideAvatarStore opens the avatar directory served under /media.
func ProvideAvatarStore(cfg *config.Config, logger *zap.Logger) (*filestorage.AvatarStore, error) {
	return filestorage.NewAvatarStore(cfg.MediaPath, strings.TrimRight(cfg.PublicBaseURL, "/")+MediaRoute, cfg.MaxAvatarBytes, logger)
}
