package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-complaints-api/internal/assistant"
	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/realtime"
	"github.com/noah-isme/civic-complaints-api/internal/repository"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
)

const defaultResolutionSummary = "Complaint resolved successfully."

type complaintStore interface {
	Create(ctx context.Context, c *models.Complaint, entry models.TimelineEntry) error
	SaveTransition(ctx context.Context, c *models.Complaint, entry *models.TimelineEntry, resolution []models.ComplaintFile) error
	FindByID(ctx context.Context, id string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
	Locations(ctx context.Context, q models.LocationQuery) ([]models.ComplaintLocation, error)
}

type complaintDepartments interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
	FindActiveByCategory(ctx context.Context, category models.ComplaintCategory) (*models.Department, error)
}

type complaintUsers interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type fileUploader interface {
	StoreAll(ctx context.Context, prefix string, files []*multipart.FileHeader) ([]StoredFile, error)
	Discard(ctx context.Context, files []StoredFile)
}

// CreateComplaintRequest is the citizen's filing payload. Category and
// priority are optional; when either is missing the assistant proposes them.
type CreateComplaintRequest struct {
	Title       string                   `json:"title" form:"title" validate:"required"`
	Description string                   `json:"description" form:"description" validate:"required"`
	Category    models.ComplaintCategory `json:"category" form:"category"`
	Priority    models.ComplaintPriority `json:"priority" form:"priority"`
	Latitude    *float64                 `json:"latitude" form:"latitude"`
	Longitude   *float64                 `json:"longitude" form:"longitude"`
	Address     string                   `json:"address" form:"address"`
}

// AssignRequest routes a complaint to a department and/or staff member.
type AssignRequest struct {
	DepartmentID string `json:"department_id"`
	StaffID      string `json:"staff_id"`
}

// UpdateStatusRequest requests a status change.
type UpdateStatusRequest struct {
	Status  models.ComplaintStatus `json:"status" validate:"required"`
	Comment string                 `json:"comment"`
}

// FeedbackRequest rates a resolved complaint.
type FeedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// ComplaintService is the complaint lifecycle engine. Every mutation persists
// the complaint together with its timeline entry and then publishes a
// lifecycle event whose side effects never fail the operation.
type ComplaintService struct {
	store       complaintStore
	departments complaintDepartments
	users       complaintUsers
	assistant   assistant.Categorizer
	uploads     fileUploader
	events      EventPublisher
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewComplaintService wires the engine.
func NewComplaintService(store complaintStore, departments complaintDepartments, users complaintUsers, categorizer assistant.Categorizer,
	uploads fileUploader, events EventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ComplaintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if categorizer == nil {
		categorizer = assistant.Static{}
	}
	return &ComplaintService{
		store:       store,
		departments: departments,
		users:       users,
		assistant:   categorizer,
		uploads:     uploads,
		events:      events,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Create files a new complaint owned by the actor.
func (s *ComplaintService) Create(ctx context.Context, actor Actor, req CreateComplaintRequest, files []*multipart.FileHeader) (*models.Complaint, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "title and description are required")
	}
	if req.Category != "" && !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", req.Category))
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", req.Priority))
	}

	c := &models.Complaint{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Status:      models.StatusSubmitted,
		UserID:      actor.ID,
		Location:    models.Location{Address: strings.TrimSpace(req.Address)},
	}
	if req.Latitude != nil && req.Longitude != nil {
		c.Latitude, c.Longitude = *req.Latitude, *req.Longitude
	}
	if c.Category == "" || c.Priority == "" {
		s.categorize(ctx, c)
	}

	stored, err := s.storeFiles(ctx, "complaints", files)
	if err != nil {
		return nil, err
	}
	c.Attachments = complaintFiles(models.FileKindAttachment, stored)

	entry := models.TimelineEntry{Status: models.StatusSubmitted, UpdatedBy: actor.ID, Comment: "Complaint submitted"}
	if err := s.store.Create(ctx, c, entry); err != nil {
		s.discard(ctx, stored)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create complaint")
	}

	s.metrics.RecordTransition("create", string(c.Status))
	s.publish(ctx, LifecycleEvent{Kind: EventFiled, Complaint: *c, Actor: actor})
	return c, nil
}

// categorize fills missing category/priority from the assistant. Assistant
// failures fall back to defaults without department routing.
func (s *ComplaintService) categorize(ctx context.Context, c *models.Complaint) {
	result, err := s.assistant.Categorize(ctx, c.Title, c.Description)
	if err != nil {
		s.logger.Warn("categorization assistant failed, using defaults", zap.Error(err))
		result = assistant.Result{Category: assistant.DefaultCategory, Priority: assistant.DefaultPriority}
	}
	aiCategory, aiPriority := string(result.Category), string(result.Priority)
	c.AICategory, c.AIPriority = &aiCategory, &aiPriority
	if c.Category == "" {
		c.Category = result.Category
	}
	if c.Priority == "" {
		c.Priority = result.Priority
	}
	if err != nil || s.departments == nil {
		return
	}

	dept, err := s.departments.FindActiveByCategory(ctx, result.Category)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to route complaint to department", zap.String("category", string(result.Category)), zap.Error(err))
		}
		return
	}
	deptID := dept.ID
	c.AssignedDepartmentID = &deptID
	c.AIAssignedDepartmentID = &deptID
}

// Get returns a complaint. Citizens may only read their own.
func (s *ComplaintService) Get(ctx context.Context, actor Actor, id string) (*models.Complaint, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleUser && c.UserID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
	return c, nil
}

// List returns complaints visible to the actor. Citizens see their own,
// staff see those assigned to them, admins may filter by owner or staff.
func (s *ComplaintService) List(ctx context.Context, actor Actor, filter models.ComplaintFilter) ([]models.Complaint, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleUser:
		filter.UserID = actor.ID
		filter.StaffID = ""
	case models.RoleDepartmentStaff:
		filter.StaffID = actor.ID
		filter.UserID = ""
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}

	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Locations returns map markers near a point or, without one, every complaint
// with coordinates.
func (s *ComplaintService) Locations(ctx context.Context, q models.LocationQuery) ([]models.ComplaintLocation, error) {
	if q.RadiusM <= 0 {
		q.RadiusM = 50000
	}
	items, err := s.store.Locations(ctx, q)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint locations")
	}
	return items, nil
}

// Assign routes a complaint. Complaints still awaiting triage move to assigned.
func (s *ComplaintService) Assign(ctx context.Context, actor Actor, id string, req AssignRequest) (*models.Complaint, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can assign complaints")
	}
	req.DepartmentID = strings.TrimSpace(req.DepartmentID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.DepartmentID == "" && req.StaffID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department_id or staff_id is required")
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrComplaintFinalized, "")
	}
	if req.DepartmentID != "" {
		if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
			return nil, notFoundOr(err, "department not found", "failed to load department")
		}
		deptID := req.DepartmentID
		c.AssignedDepartmentID = &deptID
	}
	if req.StaffID != "" {
		member, err := s.users.FindByID(ctx, req.StaffID)
		if err != nil {
			return nil, notFoundOr(err, "staff member not found", "failed to load staff member")
		}
		if member.Role != models.RoleDepartmentStaff {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assigned user is not department staff")
		}
		if c.AssignedDepartmentID != nil && *c.AssignedDepartmentID != "" {
			if member.DepartmentID == nil || *member.DepartmentID != *c.AssignedDepartmentID {
				return nil, appErrors.Clone(appErrors.ErrValidation, "staff member does not belong to the assigned department")
			}
		}
		staffID := req.StaffID
		c.AssignedStaffID = &staffID
	}

	var entry *models.TimelineEntry
	if c.Status == models.StatusSubmitted || c.Status == models.StatusReviewed {
		c.Status = models.StatusAssigned
		comment := "Complaint assigned to department"
		if req.StaffID != "" {
			comment = "Complaint assigned to staff"
		}
		entry = &models.TimelineEntry{Status: models.StatusAssigned, UpdatedBy: actor.ID, Comment: comment}
	}

	if err := s.save(ctx, c, entry, nil); err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(req)
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionComplaintAssign,
		Resource:   "complaints",
		ResourceID: &c.ID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record assignment audit log", zap.Error(err))
	}

	s.metrics.RecordTransition("assign", string(c.Status))
	s.publish(ctx, LifecycleEvent{Kind: EventAssigned, Complaint: *c, Actor: actor, StaffAssigned: req.StaffID != ""})
	return c, nil
}

// UpdateStatus moves a complaint to the requested status under role gating.
func (s *ComplaintService) UpdateStatus(ctx context.Context, actor Actor, id string, req UpdateStatusRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status is required")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrComplaintFinalized, "")
	}

	switch actor.Role {
	case models.RoleUser:
		if c.UserID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
		}
		if req.Status != models.StatusSubmitted {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "users can only submit complaints")
		}
	case models.RoleDepartmentStaff:
		if !isAssignedStaff(c, actor.ID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to this complaint")
		}
		if req.Status != models.StatusInProgress && req.Status != models.StatusResolved {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid status for staff, allowed: in_progress, resolved")
		}
	case models.RoleAdmin:
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}

	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		comment = fmt.Sprintf("Status updated to %s", req.Status)
	}
	c.Status = req.Status
	entry := &models.TimelineEntry{Status: req.Status, UpdatedBy: actor.ID, Comment: comment}
	if err := s.save(ctx, c, entry, nil); err != nil {
		return nil, err
	}

	s.metrics.RecordTransition("update_status", string(c.Status))
	s.publish(ctx, LifecycleEvent{Kind: EventStatusChanged, Complaint: *c, Actor: actor, Status: req.Status})
	return c, nil
}

// Resolve closes out the work on a complaint with written details and at
// least one evidence file.
func (s *ComplaintService) Resolve(ctx context.Context, actor Actor, id string, details string, files []*multipart.FileHeader) (*models.Complaint, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleDepartmentStaff:
		if !isAssignedStaff(c, actor.ID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to this complaint")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "users cannot resolve complaints")
	}
	if c.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrComplaintFinalized, "")
	}
	details = strings.TrimSpace(details)
	if details == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resolution details are required")
	}
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one resolution file is required to resolve a complaint")
	}

	stored, err := s.storeFiles(ctx, "resolutions", files)
	if err != nil {
		return nil, err
	}

	summary := s.summarize(ctx, c, details)
	c.Status = models.StatusResolved
	c.ResolutionSummary = &summary
	entry := &models.TimelineEntry{Status: models.StatusResolved, UpdatedBy: actor.ID, Comment: details}
	if err := s.save(ctx, c, entry, complaintFiles(models.FileKindResolution, stored)); err != nil {
		s.discard(ctx, stored)
		return nil, err
	}

	s.metrics.RecordTransition("resolve", string(c.Status))
	s.publish(ctx, LifecycleEvent{Kind: EventResolved, Complaint: *c, Actor: actor})
	return c, nil
}

func (s *ComplaintService) summarize(ctx context.Context, c *models.Complaint, details string) string {
	summary, err := s.assistant.Summarize(ctx, c.Title, c.Description, details)
	if err != nil {
		s.logger.Warn("resolution summary failed, using details", zap.String("complaint_id", c.ID), zap.Error(err))
	}
	summary = strings.TrimSpace(summary)
	if err != nil || summary == "" {
		summary = details
	}
	if summary == "" {
		summary = defaultResolutionSummary
	}
	return summary
}

// SubmitFeedback records the owner's rating once and closes the complaint.
func (s *ComplaintService) SubmitFeedback(ctx context.Context, actor Actor, id string, req FeedbackRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rating must be between 1 and 5")
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
	if c.Feedback != nil {
		return nil, appErrors.Clone(appErrors.ErrComplaintFinalized, "feedback has already been submitted")
	}
	if c.Status != models.StatusResolved {
		return nil, appErrors.Clone(appErrors.ErrValidation, "complaint must be resolved before feedback")
	}

	c.Feedback = &models.Feedback{Rating: req.Rating, Comment: strings.TrimSpace(req.Comment), SubmittedAt: time.Now().UTC()}
	c.Status = models.StatusClosed
	entry := &models.TimelineEntry{Status: models.StatusClosed, UpdatedBy: actor.ID, Comment: "Feedback submitted"}
	if err := s.save(ctx, c, entry, nil); err != nil {
		return nil, err
	}

	s.metrics.RecordTransition("feedback", string(c.Status))
	s.publish(ctx, LifecycleEvent{Kind: EventFeedback, Complaint: *c, Actor: actor})
	return c, nil
}

// CanFollow decides whether a realtime connection may join a complaint room.
func (s *ComplaintService) CanFollow(ctx context.Context, id realtime.Identity, complaintID string) (bool, error) {
	if id.Role != models.RoleUser {
		return true, nil
	}
	c, err := s.store.FindByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return c.UserID == id.UserID, nil
}

func (s *ComplaintService) load(ctx context.Context, id string) (*models.Complaint, error) {
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "complaint not found", "failed to load complaint")
	}
	return c, nil
}

func (s *ComplaintService) save(ctx context.Context, c *models.Complaint, entry *models.TimelineEntry, resolution []models.ComplaintFile) error {
	if err := s.store.SaveTransition(ctx, c, entry, resolution); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return appErrors.Clone(appErrors.ErrConflict, "complaint was modified concurrently, reload and retry")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save complaint")
	}
	return nil
}

func (s *ComplaintService) storeFiles(ctx context.Context, prefix string, files []*multipart.FileHeader) ([]StoredFile, error) {
	if len(files) == 0 || s.uploads == nil {
		return nil, nil
	}
	return s.uploads.StoreAll(ctx, prefix, files)
}

func (s *ComplaintService) discard(ctx context.Context, files []StoredFile) {
	if len(files) > 0 && s.uploads != nil {
		s.uploads.Discard(context.WithoutCancel(ctx), files)
	}
}

func (s *ComplaintService) publish(ctx context.Context, evt LifecycleEvent) {
	if s.events != nil {
		s.events.Publish(ctx, evt)
	}
}

func isAssignedStaff(c *models.Complaint, userID string) bool {
	return c.AssignedStaffID != nil && *c.AssignedStaffID == userID
}

func complaintFiles(kind models.FileKind, stored []StoredFile) []models.ComplaintFile {
	files := make([]models.ComplaintFile, 0, len(stored))
	for i, f := range stored {
		files = append(files, models.ComplaintFile{
			Kind:         kind,
			Position:     i,
			Filename:     f.Key,
			Path:         f.URL,
			OriginalName: f.OriginalName,
			MimeType:     f.MimeType,
			Size:         f.Size,
		})
	}
	return files
}

// notFoundOr maps sql.ErrNoRows to NOT_FOUND and anything else to an internal error.
func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
