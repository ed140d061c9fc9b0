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

type departmentServiceMock struct {
	filter  models.DepartmentFilter
	created service.DepartmentRequest
	added   []string
	removed []string
}

func (m *departmentServiceMock) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, error) {
	m.filter = filter
	return []models.Department{}, nil
}

func (m *departmentServiceMock) Get(ctx context.Context, id string) (*models.Department, error) {
	return &models.Department{ID: id}, nil
}

func (m *departmentServiceMock) Create(ctx context.Context, req service.DepartmentRequest) (*models.Department, error) {
	m.created = req
	if req.Name == "Roads" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "department name already exists")
	}
	return &models.Department{ID: "d1", Name: req.Name}, nil
}

func (m *departmentServiceMock) Update(ctx context.Context, id string, req service.DepartmentRequest) (*models.Department, error) {
	return &models.Department{ID: id, Name: req.Name}, nil
}

func (m *departmentServiceMock) AddStaff(ctx context.Context, departmentID string, req service.StaffRequest) (*models.Department, error) {
	m.added = append(m.added, req.UserID)
	return &models.Department{ID: departmentID}, nil
}

func (m *departmentServiceMock) RemoveStaff(ctx context.Context, departmentID string, req service.StaffRequest) (*models.Department, error) {
	m.removed = append(m.removed, req.UserID)
	return &models.Department{ID: departmentID}, nil
}

func (m *departmentServiceMock) Workload(ctx context.Context, departmentID string) (*models.DepartmentWorkload, error) {
	return &models.DepartmentWorkload{DepartmentID: departmentID}, nil
}

func TestDepartmentHandlerListAndCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &departmentServiceMock{}
	handler := NewDepartmentHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/departments?is_active=true&category=parks", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.filter.IsActive)
	assert.Equal(t, models.ComplaintCategory("parks"), mockSvc.filter.Category)

	c, w = newGinContext(http.MethodPost, "/departments", []byte(`{"name":"Parks","category":"parks","contact_email":"parks@city.gov"}`))
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "parks@city.gov", mockSvc.created.ContactEmail)

	c, w = newGinContext(http.MethodPost, "/departments", []byte(`{"name":"Roads","category":"infrastructure"}`))
	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDepartmentHandlerRoster(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &departmentServiceMock{}
	handler := NewDepartmentHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/departments/d1/staff", []byte(`{"user_id":"u1"}`))
	c.Params = gin.Params{{Key: "id", Value: "d1"}}
	handler.AddStaff(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodDelete, "/departments/d1/staff", []byte(`{"user_id":"u1"}`))
	c.Params = gin.Params{{Key: "id", Value: "d1"}}
	handler.RemoveStaff(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodPost, "/departments/d1/staff", []byte(`not json`))
	c.Params = gin.Params{{Key: "id", Value: "d1"}}
	handler.AddStaff(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, []string{"u1"}, mockSvc.added)
	assert.Equal(t, []string{"u1"}, mockSvc.removed)
}
