package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/repository"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
)

type departmentRepository interface {
	List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, dept *models.Department) error
	Update(ctx context.Context, dept *models.Department) error
	Staff(ctx context.Context, departmentIDs []string) (map[string][]models.UserInfo, error)
	AddStaff(ctx context.Context, departmentID, userID string) error
	RemoveStaff(ctx context.Context, departmentID, userID string) error
	Workload(ctx context.Context, departmentID string) (*models.DepartmentWorkload, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// DepartmentRequest creates or edits a department.
type DepartmentRequest struct {
	Name         string                   `json:"name" validate:"required"`
	Description  string                   `json:"description"`
	Category     models.ComplaintCategory `json:"category" validate:"required"`
	HeadID       *string                  `json:"head_id"`
	IsActive     *bool                    `json:"is_active"`
	ContactEmail string                   `json:"contact_email" validate:"omitempty,email"`
	ContactPhone string                   `json:"contact_phone"`
}

// StaffRequest names the user joining or leaving a roster.
type StaffRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// DepartmentService manages departments and their staff rosters.
type DepartmentService struct {
	repo      departmentRepository
	users     userLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs the service.
func NewDepartmentService(repo departmentRepository, users userLookup, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DepartmentService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns departments with their staff.
func (s *DepartmentService) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid category filter")
	}
	departments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	if departments == nil {
		departments = []models.Department{}
	}
	ids := make([]string, len(departments))
	for i, d := range departments {
		ids[i] = d.ID
	}
	staff, err := s.repo.Staff(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department staff")
	}
	for i := range departments {
		departments[i].Staff = rosterOrEmpty(staff[departments[i].ID])
	}
	return departments, nil
}

// Get returns one department with its staff.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	dept, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "department not found", "failed to load department")
	}
	staff, err := s.repo.Staff(ctx, []string{dept.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department staff")
	}
	dept.Staff = rosterOrEmpty(staff[dept.ID])
	return dept, nil
}

// Create adds a department. Names are unique case-insensitively.
func (s *DepartmentService) Create(ctx context.Context, req DepartmentRequest) (*models.Department, error) {
	if err := s.validate(ctx, req, ""); err != nil {
		return nil, err
	}
	dept := &models.Department{IsActive: true}
	applyDepartment(dept, req)
	if err := s.repo.Create(ctx, dept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	dept.Staff = []models.UserInfo{}
	return dept, nil
}

// Update replaces a department's editable fields.
func (s *DepartmentService) Update(ctx context.Context, id string, req DepartmentRequest) (*models.Department, error) {
	dept, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "department not found", "failed to load department")
	}
	if err := s.validate(ctx, req, id); err != nil {
		return nil, err
	}
	applyDepartment(dept, req)
	if err := s.repo.Update(ctx, dept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return s.Get(ctx, id)
}

// AddStaff puts a user on the roster. The user's role is left unchanged.
func (s *DepartmentService) AddStaff(ctx context.Context, departmentID string, req StaffRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	if _, err := s.repo.FindByID(ctx, departmentID); err != nil {
		return nil, notFoundOr(err, "department not found", "failed to load department")
	}
	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	if err := s.repo.AddStaff(ctx, departmentID, req.UserID); err != nil {
		if errors.Is(err, repository.ErrAlreadyMember) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "user already in department")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add staff")
	}
	return s.Get(ctx, departmentID)
}

// RemoveStaff takes a user off the roster.
func (s *DepartmentService) RemoveStaff(ctx context.Context, departmentID string, req StaffRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	if _, err := s.repo.FindByID(ctx, departmentID); err != nil {
		return nil, notFoundOr(err, "department not found", "failed to load department")
	}
	if err := s.repo.RemoveStaff(ctx, departmentID, req.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove staff")
	}
	return s.Get(ctx, departmentID)
}

// Workload counts the complaints routed to a department.
func (s *DepartmentService) Workload(ctx context.Context, departmentID string) (*models.DepartmentWorkload, error) {
	workload, err := s.repo.Workload(ctx, departmentID)
	if err != nil {
		return nil, notFoundOr(err, "department not found", "failed to load workload")
	}
	return workload, nil
}

func (s *DepartmentService) validate(ctx context.Context, req DepartmentRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	if !req.Category.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "invalid category")
	}
	if strings.TrimSpace(req.Name) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	exists, err := s.repo.ExistsByName(ctx, strings.TrimSpace(req.Name), excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "department already exists")
	}
	if req.HeadID != nil && *req.HeadID != "" {
		if _, err := s.users.FindByID(ctx, *req.HeadID); err != nil {
			return notFoundOr(err, "department head not found", "failed to load department head")
		}
	}
	return nil
}

func applyDepartment(dept *models.Department, req DepartmentRequest) {
	dept.Name = strings.TrimSpace(req.Name)
	dept.Description = strings.TrimSpace(req.Description)
	dept.Category = req.Category
	dept.ContactEmail = strings.TrimSpace(req.ContactEmail)
	dept.ContactPhone = strings.TrimSpace(req.ContactPhone)
	dept.HeadID = nil
	if req.HeadID != nil && *req.HeadID != "" {
		head := *req.HeadID
		dept.HeadID = &head
	}
	if req.IsActive != nil {
		dept.IsActive = *req.IsActive
	}
}

func rosterOrEmpty(staff []models.UserInfo) []models.UserInfo {
	if staff == nil {
		return []models.UserInfo{}
	}
	return staff
}
