// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"artify/internal/app"
	"artify/internal/auth"
	"artify/internal/config"
	"artify/internal/filestorage"
	"artify/internal/invitation"
	"artify/internal/profile"

	"github.com/google/wire"
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		// Platform Layer
		provideLogger,
		app.ProvideProfileDB,
		app.ProvideSessionPersistence,

		// Session and auth
		app.ProvideSessionStore,
		app.ProvideAuthProvider,
		app.ProvideAvatarStore,
		wire.Bind(new(auth.AvatarStore), new(*filestorage.AvatarStore)),
		auth.NewHandler,

		// Profiles
		app.ProvideProfileRepository,
		app.ProvideProfileService,
		wire.Bind(new(profile.Service), new(*profile.ServiceImplementation)),
		app.ProvideProfileHandler,

		// Invitations
		app.ProvideInvitationRepository,
		app.ProvideInvitationService,
		wire.Bind(new(invitation.Service), new(*invitation.ServiceImplementation)),
		invitation.NewHandler,

		// Jobs
		app.ProvideScheduler,

		// Application Layer
		app.NewServer,
	)
	return nil, nil, nil
}
