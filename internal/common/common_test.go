package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in    string
		want  Role
		valid bool
	}{
		{"admin", RoleAdmin, true},
		{" Seller ", RoleSeller, true},
		{"BUYER", RoleBuyer, true},
		{"artist", Role("artist"), false},
		{"", Role(""), false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, ok)
		})
	}
	assert.Equal(t, RoleBuyer, RoleOrDefault("superuser"))
	assert.Equal(t, RoleSeller, RoleOrDefault(RoleSeller))
}

func TestAPIError_WithDetailsDoesNotMutateSentinel(t *testing.T) {
	e := ErrNotFound.WithDetails("profile missing")

	assert.Nil(t, ErrNotFound.Details)
	assert.Equal(t, "profile missing", e.Details)
	assert.True(t, errors.Is(fmt.Errorf("wrap: %w", e), ErrNotFound))
	assert.False(t, errors.Is(e, ErrConflict))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(25, 2, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	empty := NewPagination(0, 1, 10)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
}

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3&page_size=500", nil)

	pq := GetPaginationParams(c)
	assert.Equal(t, 3, pq.Page)
	assert.Equal(t, MaxPageSize, pq.PageSize)
	assert.Equal(t, 200, pq.Offset())
}

func TestRespondWithError_HidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithError(c, errors.New("dial tcp 10.0.0.1:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
	assert.True(t, c.IsAborted())
}
