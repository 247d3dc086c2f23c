package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"artify/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRepository is a mock type for the Repository type
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Upsert(ctx context.Context, p *Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Profile), args.Error(1)
}

func (m *MockRepository) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Profile), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, id string, upd Updates) (*Profile, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Profile), args.Error(1)
}

func (m *MockRepository) SetRole(ctx context.Context, id string, role common.Role, isArtist bool) (*Profile, error) {
	args := m.Called(ctx, id, role, isArtist)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Profile), args.Error(1)
}

func (m *MockRepository) ListByRole(ctx context.Context, role common.Role, pq common.PaginationQuery) ([]Profile, int64, error) {
	args := m.Called(ctx, role, pq)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]Profile), args.Get(1).(int64), args.Error(2)
}

func TestBecomeArtist(t *testing.T) {
	ctx := context.Background()

	t.Run("buyer is promoted", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, zap.NewNop())
		repo.On("GetByID", ctx, "u1").Return(&Profile{ID: "u1", Role: common.RoleBuyer}, nil)
		repo.On("SetRole", ctx, "u1", common.RoleSeller, true).Return(&Profile{ID: "u1", Role: common.RoleSeller, IsArtist: true}, nil)

		p, err := svc.BecomeArtist(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, common.RoleSeller, p.Role)
		repo.AssertExpectations(t)
	})

	t.Run("seller is unchanged", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, zap.NewNop())
		repo.On("GetByID", ctx, "u1").Return(&Profile{ID: "u1", Role: common.RoleSeller, IsArtist: true}, nil)

		_, err := svc.BecomeArtist(ctx, "u1")
		require.NoError(t, err)
		repo.AssertNotCalled(t, "SetRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("admin is refused", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, zap.NewNop())
		repo.On("GetByID", ctx, "u1").Return(&Profile{ID: "u1", Role: common.RoleAdmin}, nil)

		_, err := svc.BecomeArtist(ctx, "u1")
		assert.True(t, errors.Is(err, common.ErrConflict))
	})
}

func TestUpdateUserRole(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	svc := NewService(repo, zap.NewNop())

	_, err := svc.UpdateUserRole(ctx, "u1", "root")
	assert.True(t, errors.Is(err, common.ErrBadRequest))

	repo.On("SetRole", ctx, "u1", common.RoleAdmin, false).Return(&Profile{ID: "u1", Role: common.RoleAdmin}, nil)
	p, err := svc.UpdateUserRole(ctx, "u1", common.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, common.RoleAdmin, p.Role)
}

func TestSeedDemo(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.SeedDemo(ctx))
	require.NoError(t, svc.SeedDemo(ctx))

	admin, err := svc.GetProfile(ctx, "admin-user-id")
	require.NoError(t, err)
	assert.Equal(t, common.RoleAdmin, admin.Role)

	artist, err := svc.GetByUsername(ctx, "artistuser")
	require.NoError(t, err)
	assert.True(t, artist.IsArtist)
}

func setupHandler(t *testing.T) (*gin.Engine, *ServiceImplementation, *[]string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := NewService(NewGORMRepository(newTestDB(t)), zap.NewNop())
	require.NoError(t, svc.SeedDemo(context.Background()))

	var changed []string
	h := NewHandler(svc, zap.NewNop(), func(_ context.Context, id string) { changed = append(changed, id) })
	r := gin.New()
	allowAll := func(c *gin.Context) { c.Next() }
	h.RegisterRoutes(r.Group("/api/v1"), allowAll)
	return r, svc, &changed
}

func TestHandler_ListAndUpdateRole(t *testing.T) {
	r, _, changed := setupHandler(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users?role=buyer", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list common.PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Pagination.TotalItems)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/users/buyer-user-id/role", strings.NewReader(`{"role":"seller"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"buyer-user-id"}, *changed)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/admin/users/buyer-user-id/role", strings.NewReader(`{"role":"owner"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users?role=wizard", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetByUsername(t *testing.T) {
	r, _, _ := setupHandler(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/profiles/collector", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_type":"buyer"`)
	assert.NotContains(t, w.Body.String(), "buyer-user-id")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/profiles/nobody", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
