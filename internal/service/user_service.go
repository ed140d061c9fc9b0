package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type complaintCounter interface {
	CountByStatusForUser(ctx context.Context, userID string) ([]models.CountByKey, error)
}

// UserMutation describes a requested change to an account's role or state.
type UserMutation struct {
	Role       models.UserRole
	Deactivate bool
}

// CheckUserMutation enforces the admin account policy. current is nil for new
// accounts. The admin role is never granted here, and an existing admin can
// neither lose the role nor be deactivated.
func CheckUserMutation(current *models.User, change UserMutation) error {
	isAdmin := current != nil && current.Role == models.RoleAdmin
	if isAdmin {
		if change.Role != "" && change.Role != models.RoleAdmin {
			return appErrors.Clone(appErrors.ErrForbidden, "admin role cannot be changed")
		}
		if change.Deactivate {
			return appErrors.Clone(appErrors.ErrForbidden, "admin users cannot be deactivated")
		}
		return nil
	}
	if change.Role == models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role cannot be assigned")
	}
	return nil
}

// UpdateUserRequest is an admin edit of another account. Department membership
// is managed through the department staff endpoints.
type UpdateUserRequest struct {
	Name     *string          `json:"name"`
	Role     *models.UserRole `json:"role"`
	Phone    *string          `json:"phone"`
	Address  *string          `json:"address"`
	IsActive *bool            `json:"is_active"`
}

// AdminSeed holds the bootstrap admin credentials.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// UserService handles user administration workflows.
type UserService struct {
	repo       userRepository
	complaints complaintCounter
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, complaints complaintCounter, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, complaints: complaints, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid role filter")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a single user.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	return user, nil
}

// Update applies an admin edit after the admin policy check.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta SessionMeta) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}

	change := UserMutation{Deactivate: req.IsActive != nil && !*req.IsActive}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid role")
		}
		change.Role = *req.Role
	}
	if err := CheckUserMutation(user, change); err != nil {
		return nil, err
	}

	before := *user
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "name cannot be empty")
		}
		user.Name = name
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		user.Address = strings.TrimSpace(*req.Address)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	s.audit(ctx, actorID, models.AuditActionUserUpdate, user.ID, &before, user, meta)
	return user, nil
}

// Deactivate disables an account instead of deleting it.
func (s *UserService) Deactivate(ctx context.Context, id, actorID string, meta SessionMeta) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "user not found", "failed to load user")
	}
	if err := CheckUserMutation(user, UserMutation{Deactivate: true}); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	s.audit(ctx, actorID, models.AuditActionUserDeactivate, id, user, nil, meta)
	return nil
}

// Stats summarises a user's complaints. Citizens may only read their own.
func (s *UserService) Stats(ctx context.Context, actor Actor, userID string) (*models.UserStats, error) {
	if userID == "" {
		userID = actor.ID
	}
	if actor.Role == models.RoleUser && userID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
	counts, err := s.complaints.CountByStatusForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch stats")
	}

	stats := &models.UserStats{ByStatus: make(map[string]int, len(counts))}
	for _, c := range counts {
		stats.ByStatus[c.Key] = c.Count
		stats.Total += c.Count
		switch models.ComplaintStatus(c.Key) {
		case models.StatusResolved:
			stats.Resolved += c.Count
		case models.StatusSubmitted, models.StatusReviewed, models.StatusAssigned, models.StatusInProgress:
			stats.Pending += c.Count
		}
	}
	return stats, nil
}

// SeedAdmin makes sure the configured admin account exists and is active. An
// existing account with the same email is promoted.
func (s *UserService) SeedAdmin(ctx context.Context, seed AdminSeed) error {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" || seed.Password == "" {
		s.logger.Warn("admin credentials not configured, skipping admin seed")
		return nil
	}
	name := strings.TrimSpace(seed.Name)
	if name == "" {
		name = "System Administrator"
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up admin")
	}

	if existing != nil {
		if existing.Role == models.RoleAdmin && existing.IsActive {
			s.logger.Info("admin account already present", zap.String("email", email))
			return nil
		}
		existing.Role = models.RoleAdmin
		existing.IsActive = true
		if err := s.repo.Update(ctx, existing); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote admin")
		}
		s.logger.Info("promoted existing account to admin", zap.String("email", email))
		s.audit(ctx, existing.ID, models.AuditActionAdminSeed, existing.ID, nil, existing, SessionMeta{})
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash admin password")
	}
	admin := &models.User{Name: name, Email: email, PasswordHash: string(hash), Role: models.RoleAdmin, IsActive: true}
	if err := s.repo.Create(ctx, admin); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admin")
	}
	s.logger.Info("admin account created", zap.String("email", email))
	s.audit(ctx, admin.ID, models.AuditActionAdminSeed, admin.ID, nil, admin, SessionMeta{})
	return nil
}

func (s *UserService) audit(ctx context.Context, actorID, action, resourceID string, before, after *models.User, meta SessionMeta) {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "user",
		ResourceID: &resourceID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}
