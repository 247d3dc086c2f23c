// File: internal/invitation/service.go
package invitation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"artify/internal/common"
	"artify/internal/platform/crypto"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalid covers unknown tokens, a mismatched email and used invitations.
	ErrInvalid = errors.New("invitation is not valid for this email")
	ErrExpired = errors.New("invitation has expired")
)

const tokenBytes = 32

// Service defines the invitation use cases.
type Service interface {
	Create(ctx context.Context, createdBy string, req CreateRequest) (*Created, error)
	List(ctx context.Context, pq common.PaginationQuery) ([]Invitation, *common.Pagination, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	PurgeExpired(ctx context.Context) (int64, error)
	CountExpired(ctx context.Context) (int64, error)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo          Repository
	publicBaseURL string
	defaultExpiry time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewService creates a new invitation service. Links point at
// publicBaseURL; defaultExpiryDays applies when a request names none.
func NewService(repo Repository, publicBaseURL string, defaultExpiryDays int, logger *zap.Logger) *ServiceImplementation {
	if defaultExpiryDays <= 0 {
		defaultExpiryDays = 7
	}
	return &ServiceImplementation{
		repo:          repo,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		defaultExpiry: time.Duration(defaultExpiryDays) * 24 * time.Hour,
		logger:        logger.Named("invitation"),
		now:           time.Now,
	}
}

func (s *ServiceImplementation) Create(ctx context.Context, createdBy string, req CreateRequest) (*Created, error) {
	role := common.RoleOrDefault(common.Role(req.Role))
	expiry := s.defaultExpiry
	if req.ExpiryDays > 0 {
		expiry = time.Duration(req.ExpiryDays) * 24 * time.Hour
	}

	token, err := crypto.GenerateSecureRandomString(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invitation token: %w", err)
	}
	email := normalizeEmail(req.Email)
	inv := &Invitation{
		Email:     email,
		Role:      role,
		TokenHash: crypto.HashToken(token),
		CreatedBy: createdBy,
		ExpiresAt: s.now().Add(expiry),
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	s.logger.Info("Invitation created",
		zap.String("invitationID", inv.ID.String()),
		zap.String("role", role.String()),
		zap.String("createdBy", createdBy))
	return &Created{
		Invitation: inv,
		Token:      token,
		InviteLink: s.publicBaseURL + "/signup?" + q.Encode(),
	}, nil
}

func (s *ServiceImplementation) List(ctx context.Context, pq common.PaginationQuery) ([]Invitation, *common.Pagination, error) {
	invitations, total, err := s.repo.List(ctx, pq)
	if err != nil {
		s.logger.Error("Failed to list invitations", zap.Error(err))
		return nil, nil, err
	}
	return invitations, common.NewPagination(total, pq.Page, pq.Limit()), nil
}

func (s *ServiceImplementation) Revoke(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteUnused(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Invitation revoked", zap.String("invitationID", id.String()))
	return nil
}

func (s *ServiceImplementation) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

// CountExpired reports how many invitations PurgeExpired would remove.
func (s *ServiceImplementation) CountExpired(ctx context.Context) (int64, error) {
	return s.repo.CountExpired(ctx, s.now())
}

// Gate admits sign-ups that present a redeemable invitation. The role
// always comes from the invitation.
type Gate struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewGate creates a sign-up gate over repo.
func NewGate(repo Repository, logger *zap.Logger) *Gate {
	return &Gate{repo: repo, logger: logger.Named("invitation_gate"), now: time.Now}
}

// Authorize checks the token and email and returns the invited role.
func (g *Gate) Authorize(ctx context.Context, email, token string, requested common.Role) (common.Role, error) {
	inv, err := g.find(ctx, email, token)
	if err != nil {
		return "", err
	}
	if requested != "" && requested != inv.Role {
		g.logger.Info("Requested role overridden by invitation",
			zap.String("requested", requested.String()), zap.String("granted", inv.Role.String()))
	}
	return inv.Role, nil
}

// Consume marks the invitation used by identityID.
func (g *Gate) Consume(ctx context.Context, email, token, identityID string) error {
	inv, err := g.find(ctx, email, token)
	if err != nil {
		return err
	}
	if err := g.repo.MarkUsed(ctx, inv.ID, identityID, g.now()); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return ErrInvalid
		}
		return err
	}
	g.logger.Info("Invitation redeemed", zap.String("invitationID", inv.ID.String()), zap.String("uid", identityID))
	return nil
}

func (g *Gate) find(ctx context.Context, email, token string) (*Invitation, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalid
	}
	inv, err := g.repo.FindRedeemable(ctx, normalizeEmail(email), crypto.HashToken(token))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrInvalid
		}
		return nil, err
	}
	if inv.Expired(g.now()) {
		return nil, ErrExpired
	}
	return inv, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
