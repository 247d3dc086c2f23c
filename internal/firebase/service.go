package firebase

import (
	"context"
	"fmt"
	"path/filepath"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"artify/internal/config"
)

// AdminClient is the part of the Firebase Admin SDK the session store uses.
// *auth.Client satisfies it; tests substitute a fake.
type AdminClient interface {
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// AdminService wraps the Admin SDK auth client with logging.
type AdminService struct {
	authClient AdminClient
	logger     *zap.Logger
}

// NewAdminService initializes the Firebase Admin SDK from the service
// account key named in cfg.
func NewAdminService(cfg *config.Config, logger *zap.Logger) (*AdminService, error) {
	if cfg.FirebaseServiceAccountKeyPath == "" {
		logger.Error("Firebase service account key path is not configured.")
		return nil, fmt.Errorf("firebase service account key path is required")
	}

	cleanPath := filepath.Clean(cfg.FirebaseServiceAccountKeyPath)
	opt := option.WithCredentialsFile(cleanPath)

	var conf *firebase.Config
	if cfg.FirebaseProjectID != "" {
		conf = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}
	app, err := firebase.NewApp(context.Background(), conf, opt)
	if err != nil {
		logger.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err), zap.String("keyPath", cleanPath))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	authClient, err := app.Auth(context.Background())
	if err != nil {
		logger.Error("Failed to get Firebase Auth client", zap.Error(err))
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}

	logger.Info("Firebase Admin SDK initialized successfully.")
	return NewAdminServiceWithClient(authClient, logger), nil
}

// NewAdminServiceWithClient wraps an existing client.
func NewAdminServiceWithClient(client AdminClient, logger *zap.Logger) *AdminService {
	return &AdminService{authClient: client, logger: logger.Named("firebase_admin")}
}

// VerifyIDToken verifies a Firebase ID token and rejects revoked ones.
func (s *AdminService) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if idToken == "" {
		return nil, fmt.Errorf("ID token must not be empty")
	}
	token, err := s.authClient.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		s.logger.Warn("Firebase ID token verification failed", zap.Error(err))
		return nil, fmt.Errorf("failed to verify Firebase ID token: %w", err)
	}
	s.logger.Debug("Firebase ID token verified successfully", zap.String("uid", token.UID))
	return token, nil
}

// SetRoleClaim stores the role as a custom claim; it shows up in ID tokens
// minted after the next refresh.
func (s *AdminService) SetRoleClaim(ctx context.Context, uid, role string) error {
	if err := s.authClient.SetCustomUserClaims(ctx, uid, map[string]interface{}{"role": role}); err != nil {
		s.logger.Error("Failed to set role claim", zap.Error(err), zap.String("uid", uid))
		return fmt.Errorf("failed to set custom claims: %w", err)
	}
	return nil
}

// RevokeRefreshTokens revokes all refresh tokens for a given user.
func (s *AdminService) RevokeRefreshTokens(ctx context.Context, uid string) error {
	if err := s.authClient.RevokeRefreshTokens(ctx, uid); err != nil {
		s.logger.Error("Failed to revoke refresh tokens", zap.Error(err), zap.String("uid", uid))
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	s.logger.Info("Successfully revoked refresh tokens for user", zap.String("uid", uid))
	return nil
}
