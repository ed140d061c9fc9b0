package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/repository"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
)

type memoryDepartments struct {
	depts  map[string]*models.Department
	roster map[string][]string
	users  map[string]*models.User
}

func newMemoryDepartments() *memoryDepartments {
	return &memoryDepartments{
		depts:  map[string]*models.Department{},
		roster: map[string][]string{},
		users: map[string]*models.User{
			"u1":   {ID: "u1", Name: "Dana", Email: "dana@city.gov", Role: models.RoleDepartmentStaff, IsActive: true},
			"head": {ID: "head", Name: "Head", Role: models.RoleDepartmentStaff, IsActive: true},
		},
	}
}

func (m *memoryDepartments) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, error) {
	var out []models.Department
	for _, d := range m.depts {
		if filter.Category != "" && d.Category != filter.Category {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (m *memoryDepartments) FindByID(ctx context.Context, id string) (*models.Department, error) {
	d, ok := m.depts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *d
	return &copy, nil
}

func (m *memoryDepartments) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for id, d := range m.depts {
		if id != excludeID && strings.EqualFold(d.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryDepartments) Create(ctx context.Context, dept *models.Department) error {
	dept.ID = "d" + string(rune('0'+len(m.depts)+1))
	copy := *dept
	m.depts[dept.ID] = &copy
	return nil
}

func (m *memoryDepartments) Update(ctx context.Context, dept *models.Department) error {
	copy := *dept
	m.depts[dept.ID] = &copy
	return nil
}

func (m *memoryDepartments) Staff(ctx context.Context, ids []string) (map[string][]models.UserInfo, error) {
	out := map[string][]models.UserInfo{}
	for _, id := range ids {
		for _, userID := range m.roster[id] {
			out[id] = append(out[id], models.NewUserInfo(m.users[userID]))
		}
	}
	return out, nil
}

func (m *memoryDepartments) AddStaff(ctx context.Context, departmentID, userID string) error {
	for _, existing := range m.roster[departmentID] {
		if existing == userID {
			return repository.ErrAlreadyMember
		}
	}
	m.roster[departmentID] = append(m.roster[departmentID], userID)
	return nil
}

func (m *memoryDepartments) RemoveStaff(ctx context.Context, departmentID, userID string) error {
	kept := m.roster[departmentID][:0]
	for _, existing := range m.roster[departmentID] {
		if existing != userID {
			kept = append(kept, existing)
		}
	}
	m.roster[departmentID] = kept
	return nil
}

func (m *memoryDepartments) Workload(ctx context.Context, departmentID string) (*models.DepartmentWorkload, error) {
	d, ok := m.depts[departmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.DepartmentWorkload{DepartmentID: d.ID, DepartmentName: d.Name, StaffCount: len(m.roster[d.ID]), ByStatus: map[string]int{}}, nil
}

type memoryUserLookup struct{ users map[string]*models.User }

func (m memoryUserLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func newDepartmentFixture() (*DepartmentService, *memoryDepartments) {
	repo := newMemoryDepartments()
	return NewDepartmentService(repo, memoryUserLookup{users: repo.users}, nil, zap.NewNop()), repo
}

func TestDepartmentCreate(t *testing.T) {
	svc, repo := newDepartmentFixture()
	ctx := context.Background()

	dept, err := svc.Create(ctx, DepartmentRequest{Name: "  Roads ", Category: models.CategoryInfrastructure, HeadID: strRef("head")})
	require.NoError(t, err)
	assert.Equal(t, "Roads", dept.Name)
	assert.True(t, dept.IsActive)
	assert.Equal(t, "head", *dept.HeadID)
	assert.NotNil(t, dept.Staff)
	assert.Len(t, repo.depts, 1)

	_, err = svc.Create(ctx, DepartmentRequest{Name: "roads", Category: models.CategoryInfrastructure})
	requireCode(t, err, appErrors.ErrConflict)

	_, err = svc.Create(ctx, DepartmentRequest{Name: "Weather", Category: "weather"})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, DepartmentRequest{Name: "Parks", Category: models.CategoryParks, ContactEmail: "not-an-email"})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, DepartmentRequest{Name: "Parks", Category: models.CategoryParks, HeadID: strRef("ghost")})
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestDepartmentUpdateKeepsOwnName(t *testing.T) {
	svc, _ := newDepartmentFixture()
	ctx := context.Background()
	dept, err := svc.Create(ctx, DepartmentRequest{Name: "Roads", Category: models.CategoryInfrastructure})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, dept.ID, DepartmentRequest{Name: "Roads", Category: models.CategoryTraffic, IsActive: boolRef(false)})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryTraffic, updated.Category)
	assert.False(t, updated.IsActive)

	_, err = svc.Update(ctx, "missing", DepartmentRequest{Name: "X", Category: models.CategoryOther})
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestDepartmentRoster(t *testing.T) {
	svc, _ := newDepartmentFixture()
	ctx := context.Background()
	dept, err := svc.Create(ctx, DepartmentRequest{Name: "Roads", Category: models.CategoryInfrastructure})
	require.NoError(t, err)

	withStaff, err := svc.AddStaff(ctx, dept.ID, StaffRequest{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, withStaff.Staff, 1)
	assert.Equal(t, "dana@city.gov", withStaff.Staff[0].Email)

	_, err = svc.AddStaff(ctx, dept.ID, StaffRequest{UserID: "u1"})
	requireCode(t, err, appErrors.ErrValidation)
	_, err = svc.AddStaff(ctx, dept.ID, StaffRequest{UserID: "ghost"})
	requireCode(t, err, appErrors.ErrNotFound)
	_, err = svc.AddStaff(ctx, "missing", StaffRequest{UserID: "u1"})
	requireCode(t, err, appErrors.ErrNotFound)
	_, err = svc.AddStaff(ctx, dept.ID, StaffRequest{})
	requireCode(t, err, appErrors.ErrValidation)

	workload, err := svc.Workload(ctx, dept.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, workload.StaffCount)

	emptied, err := svc.RemoveStaff(ctx, dept.ID, StaffRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.NotNil(t, emptied.Staff)
	assert.Empty(t, emptied.Staff)
}

func TestDepartmentList(t *testing.T) {
	svc, _ := newDepartmentFixture()
	ctx := context.Background()
	_, err := svc.Create(ctx, DepartmentRequest{Name: "Roads", Category: models.CategoryInfrastructure})
	require.NoError(t, err)
	_, err = svc.Create(ctx, DepartmentRequest{Name: "Parks", Category: models.CategoryParks})
	require.NoError(t, err)

	all, err := svc.List(ctx, models.DepartmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, d := range all {
		assert.NotNil(t, d.Staff)
	}

	parks, err := svc.List(ctx, models.DepartmentFilter{Category: models.CategoryParks})
	require.NoError(t, err)
	require.Len(t, parks, 1)
	assert.Equal(t, "Parks", parks[0].Name)

	_, err = svc.List(ctx, models.DepartmentFilter{Category: "weather"})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.Workload(ctx, "missing")
	requireCode(t, err, appErrors.ErrNotFound)
}
