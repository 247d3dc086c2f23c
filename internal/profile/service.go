package profile

import (
	"context"
	"fmt"

	"artify/internal/common"

	"go.uber.org/zap"
)

// Service defines profile business operations.
type Service interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
	GetByUsername(ctx context.Context, username string) (*Profile, error)
	UpdateProfile(ctx context.Context, id string, upd Updates) (*Profile, error)
	BecomeArtist(ctx context.Context, id string) (*Profile, error)
	UpdateUserRole(ctx context.Context, id string, role common.Role) (*Profile, error)
	ListByRole(ctx context.Context, role common.Role, pq common.PaginationQuery) ([]Profile, *common.Pagination, error)
	SeedDemo(ctx context.Context) error
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo   Repository
	logger *zap.Logger
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new profile service.
func NewService(repo Repository, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{repo: repo, logger: logger}
}

func (s *ServiceImplementation) GetProfile(ctx context.Context, id string) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ServiceImplementation) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *ServiceImplementation) UpdateProfile(ctx context.Context, id string, upd Updates) (*Profile, error) {
	p, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		s.logger.Warn("Profile update failed", zap.String("userID", id), zap.Error(err))
		return nil, err
	}
	return p, nil
}

// BecomeArtist turns a buyer into a seller. Sellers are returned unchanged.
func (s *ServiceImplementation) BecomeArtist(ctx context.Context, id string) (*Profile, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Role {
	case common.RoleSeller:
		return current, nil
	case common.RoleAdmin:
		return nil, common.ErrConflict.WithDetails("Administrators cannot switch to a seller account.")
	}

	p, err := s.repo.SetRole(ctx, id, common.RoleSeller, true)
	if err != nil {
		return nil, fmt.Errorf("failed to promote user to seller: %w", err)
	}
	s.logger.Info("User became an artist", zap.String("userID", id))
	return p, nil
}

// UpdateUserRole is the administrative role change.
func (s *ServiceImplementation) UpdateUserRole(ctx context.Context, id string, role common.Role) (*Profile, error) {
	if !role.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown role %q.", role))
	}
	p, err := s.repo.SetRole(ctx, id, role, role == common.RoleSeller)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User role updated", zap.String("userID", id), zap.String("role", role.String()))
	return p, nil
}

func (s *ServiceImplementation) ListByRole(ctx context.Context, role common.Role, pq common.PaginationQuery) ([]Profile, *common.Pagination, error) {
	if role != "" && !role.Valid() {
		return nil, nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown role %q.", role))
	}
	profiles, total, err := s.repo.ListByRole(ctx, role, pq)
	if err != nil {
		return nil, nil, err
	}
	return profiles, common.NewPagination(total, pq.Page, pq.Limit()), nil
}

// SeedDemo upserts the demo profiles used together with the memory session store.
func (s *ServiceImplementation) SeedDemo(ctx context.Context) error {
	for _, p := range DemoProfiles() {
		p := p
		if err := s.repo.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed demo profile %s: %w", p.ID, err)
		}
	}
	s.logger.Info("Demo profiles seeded", zap.Int("count", len(DemoProfiles())))
	return nil
}
