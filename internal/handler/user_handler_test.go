package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/service"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
)

type userServiceMock struct {
	filter      models.UserFilter
	updateReq   service.UpdateUserRequest
	actorID     string
	statsFor    string
	deactivated string
}

func (m *userServiceMock) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	m.filter = filter
	return []models.User{}, models.NewPagination(1, 10, 0), nil
}

func (m *userServiceMock) Get(ctx context.Context, id string) (*models.User, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
}

func (m *userServiceMock) Update(ctx context.Context, id string, req service.UpdateUserRequest, actorID string, meta service.SessionMeta) (*models.User, error) {
	m.updateReq, m.actorID = req, actorID
	if req.Role != nil {
		return nil, service.CheckUserMutation(&models.User{Role: models.RoleAdmin}, service.UserMutation{Role: *req.Role})
	}
	return &models.User{ID: id}, nil
}

func (m *userServiceMock) Deactivate(ctx context.Context, id, actorID string, meta service.SessionMeta) error {
	m.deactivated = id
	return nil
}

func (m *userServiceMock) Stats(ctx context.Context, actor service.Actor, userID string) (*models.UserStats, error) {
	m.statsFor = userID
	if actor.Role == models.RoleUser && userID != "" && userID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
	return &models.UserStats{Total: 2}, nil
}

func TestUserHandlerListFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/users?role=department_staff&is_active=true&department_id=d1&page_size=15", nil)
	withClaims(c, "admin", models.RoleAdmin)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.filter.Role)
	assert.Equal(t, models.RoleDepartmentStaff, *mockSvc.filter.Role)
	require.NotNil(t, mockSvc.filter.IsActive)
	assert.True(t, *mockSvc.filter.IsActive)
	assert.Equal(t, "d1", mockSvc.filter.DepartmentID)
	assert.Equal(t, 15, mockSvc.filter.PageSize)
}

func TestUserHandlerUpdateAndDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newGinContext(http.MethodPut, "/users/u2", []byte(`{"name":"Renamed"}`))
	c.Params = gin.Params{{Key: "id", Value: "u2"}}
	withClaims(c, "admin", models.RoleAdmin)
	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", mockSvc.actorID)

	c, w = newGinContext(http.MethodPut, "/users/root", []byte(`{"role":"user"}`))
	c.Params = gin.Params{{Key: "id", Value: "root"}}
	withClaims(c, "admin", models.RoleAdmin)
	handler.Update(c)
	require.Equal(t, http.StatusForbidden, w.Code)

	c, w = newGinContext(http.MethodDelete, "/users/u2", nil)
	c.Params = gin.Params{{Key: "id", Value: "u2"}}
	withClaims(c, "admin", models.RoleAdmin)
	handler.Delete(c)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u2", mockSvc.deactivated)

	c, w = newGinContext(http.MethodGet, "/users/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserHandlerStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/users/stats", nil)
	withClaims(c, "u1", models.RoleUser)
	handler.Stats(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mockSvc.statsFor)

	c, w = newGinContext(http.MethodGet, "/users/stats/u9", nil)
	c.Params = gin.Params{{Key: "id", Value: "u9"}}
	withClaims(c, "u1", models.RoleUser)
	handler.Stats(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
