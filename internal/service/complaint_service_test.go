package service

import (
	"context"
	"database/sql"
	"errors"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-complaints-api/internal/assistant"
	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/realtime"
	"github.com/noah-isme/civic-complaints-api/internal/repository"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
)

type fakeComplaintStore struct {
	complaints map[string]*models.Complaint
	nextID     int
	saveErr    error
	listFilter models.ComplaintFilter
}

func newFakeComplaintStore() *fakeComplaintStore {
	return &fakeComplaintStore{complaints: map[string]*models.Complaint{}}
}

func (f *fakeComplaintStore) Create(ctx context.Context, c *models.Complaint, entry models.TimelineEntry) error {
	f.nextID++
	c.ID = "c" + string(rune('0'+f.nextID))
	c.Version = 1
	c.Timeline = []models.TimelineEntry{entry}
	f.complaints[c.ID] = cloneComplaint(c)
	return nil
}

func (f *fakeComplaintStore) SaveTransition(ctx context.Context, c *models.Complaint, entry *models.TimelineEntry, resolution []models.ComplaintFile) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	current, ok := f.complaints[c.ID]
	if !ok || current.Version != c.Version {
		return repository.ErrStaleVersion
	}
	c.Version++
	if resolution != nil {
		c.ResolutionImages = resolution
	}
	if entry != nil {
		c.Timeline = append(c.Timeline, *entry)
	}
	f.complaints[c.ID] = cloneComplaint(c)
	return nil
}

func (f *fakeComplaintStore) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	c, ok := f.complaints[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneComplaint(c), nil
}

func (f *fakeComplaintStore) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	f.listFilter = filter
	var out []models.Complaint
	for _, c := range f.complaints {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeComplaintStore) Locations(ctx context.Context, q models.LocationQuery) ([]models.ComplaintLocation, error) {
	return []models.ComplaintLocation{}, nil
}

func cloneComplaint(c *models.Complaint) *models.Complaint {
	copy := *c
	copy.Timeline = append([]models.TimelineEntry(nil), c.Timeline...)
	copy.Attachments = append([]models.ComplaintFile(nil), c.Attachments...)
	copy.ResolutionImages = append([]models.ComplaintFile(nil), c.ResolutionImages...)
	return &copy
}

type fakeDepartments struct {
	byID       map[string]*models.Department
	byCategory map[models.ComplaintCategory]*models.Department
	lookups    int
}

func (f *fakeDepartments) FindByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := f.byID[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeDepartments) FindActiveByCategory(ctx context.Context, category models.ComplaintCategory) (*models.Department, error) {
	f.lookups++
	if d, ok := f.byCategory[category]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

type fakeComplaintUsers struct {
	users     map[string]*models.User
	auditLogs []*models.AuditLog
}

func (f *fakeComplaintUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeComplaintUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.auditLogs = append(f.auditLogs, log)
	return nil
}

type countingCategorizer struct {
	result      assistant.Result
	err         error
	summary     string
	summaryErr  error
	categorizeN int
	summarizeN  int
}

func (c *countingCategorizer) Categorize(ctx context.Context, title, description string) (assistant.Result, error) {
	c.categorizeN++
	return c.result, c.err
}

func (c *countingCategorizer) Summarize(ctx context.Context, title, description, details string) (string, error) {
	c.summarizeN++
	return c.summary, c.summaryErr
}

type fakeUploader struct {
	stored    []StoredFile
	discarded []StoredFile
	err       error
}

func (f *fakeUploader) StoreAll(ctx context.Context, prefix string, files []*multipart.FileHeader) ([]StoredFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]StoredFile, 0, len(files))
	for _, fh := range files {
		key := prefix + "/" + fh.Filename
		out = append(out, StoredFile{Key: key, URL: "/uploads/" + key, OriginalName: fh.Filename, MimeType: "image/jpeg", Size: fh.Size})
	}
	f.stored = append(f.stored, out...)
	return out, nil
}

func (f *fakeUploader) Discard(ctx context.Context, files []StoredFile) {
	f.discarded = append(f.discarded, files...)
}

type recordingPublisher struct {
	events []LifecycleEvent
}

func (r *recordingPublisher) Publish(ctx context.Context, evt LifecycleEvent) {
	r.events = append(r.events, evt)
}

func (r *recordingPublisher) kinds() []EventKind {
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type complaintFixture struct {
	svc         *ComplaintService
	store       *fakeComplaintStore
	departments *fakeDepartments
	users       *fakeComplaintUsers
	categorizer *countingCategorizer
	uploads     *fakeUploader
	events      *recordingPublisher
}

var (
	citizen = Actor{ID: "citizen", Role: models.RoleUser, Name: "Citizen"}
	other   = Actor{ID: "neighbour", Role: models.RoleUser, Name: "Neighbour"}
	staff   = Actor{ID: "staff", Role: models.RoleDepartmentStaff, Name: "Staff"}
	staff2  = Actor{ID: "staff2", Role: models.RoleDepartmentStaff, Name: "Other Staff"}
	admin   = Actor{ID: "admin", Role: models.RoleAdmin, Name: "Admin"}
)

func newComplaintFixture() *complaintFixture {
	roads := &models.Department{ID: "dept-roads", Name: "Roads", Category: models.CategoryInfrastructure, IsActive: true}
	parks := &models.Department{ID: "dept-parks", Name: "Parks", Category: models.CategoryParks, IsActive: true}
	roadsID, parksID := roads.ID, parks.ID
	f := &complaintFixture{
		store: newFakeComplaintStore(),
		departments: &fakeDepartments{
			byID:       map[string]*models.Department{roads.ID: roads, parks.ID: parks},
			byCategory: map[models.ComplaintCategory]*models.Department{models.CategoryInfrastructure: roads},
		},
		users: &fakeComplaintUsers{users: map[string]*models.User{
			"staff":     {ID: "staff", Role: models.RoleDepartmentStaff, DepartmentID: &roadsID},
			"staff2":    {ID: "staff2", Role: models.RoleDepartmentStaff, DepartmentID: &roadsID},
			"gardener":  {ID: "gardener", Role: models.RoleDepartmentStaff, DepartmentID: &parksID},
			"unplaced":  {ID: "unplaced", Role: models.RoleDepartmentStaff},
			"citizen":   {ID: "citizen", Role: models.RoleUser},
			"reviewer2": {ID: "reviewer2", Role: models.RoleAdmin},
		}},
		categorizer: &countingCategorizer{
			result:  assistant.Result{Category: models.CategoryInfrastructure, Priority: models.PriorityHigh},
			summary: "Pothole filled and resurfaced.",
		},
		uploads: &fakeUploader{},
		events:  &recordingPublisher{},
	}
	f.svc = NewComplaintService(f.store, f.departments, f.users, f.categorizer, f.uploads, f.events, nil, nil, zap.NewNop())
	return f
}

func files(names ...string) []*multipart.FileHeader {
	out := make([]*multipart.FileHeader, len(names))
	for i, n := range names {
		out[i] = &multipart.FileHeader{Filename: n, Size: 128}
	}
	return out
}

func requireCode(t *testing.T, err error, want *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want.Code, appErrors.FromError(err).Code)
}

func (f *complaintFixture) file(t *testing.T) *models.Complaint {
	t.Helper()
	c, err := f.svc.Create(context.Background(), citizen, CreateComplaintRequest{Title: "Pothole", Description: "Deep pothole on Main St"}, nil)
	require.NoError(t, err)
	return c
}

func TestComplaintLifecycleEndToEnd(t *testing.T) {
	f := newComplaintFixture()
	ctx := context.Background()

	c, err := f.svc.Create(ctx, citizen, CreateComplaintRequest{Title: "  Pothole ", Description: "Deep pothole on Main St"}, files("hole.jpg"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, c.Status)
	assert.Equal(t, "Pothole", c.Title)
	assert.Equal(t, models.CategoryInfrastructure, c.Category)
	assert.Equal(t, models.PriorityHigh, c.Priority)
	require.NotNil(t, c.AssignedDepartmentID)
	assert.Equal(t, "dept-roads", *c.AssignedDepartmentID)
	assert.Equal(t, "dept-roads", *c.AIAssignedDepartmentID)
	require.Len(t, c.Attachments, 1)
	assert.Equal(t, "complaints/hole.jpg", c.Attachments[0].Filename)
	require.Len(t, c.Timeline, 1)
	assert.Equal(t, "Complaint submitted", c.Timeline[0].Comment)

	c, err = f.svc.Assign(ctx, admin, c.ID, AssignRequest{StaffID: "staff"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, c.Status)
	assert.Equal(t, "Complaint assigned to staff", c.Timeline[1].Comment)
	require.Len(t, f.users.auditLogs, 1)

	c, err = f.svc.UpdateStatus(ctx, staff, c.ID, UpdateStatusRequest{Status: models.StatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, "Status updated to in_progress", c.Timeline[2].Comment)

	c, err = f.svc.Resolve(ctx, staff, c.ID, "Filled the pothole", files("after.jpg"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, c.Status)
	require.NotNil(t, c.ResolutionSummary)
	assert.Equal(t, "Pothole filled and resurfaced.", *c.ResolutionSummary)
	require.Len(t, c.ResolutionImages, 1)
	assert.Equal(t, models.FileKindResolution, c.ResolutionImages[0].Kind)

	c, err = f.svc.SubmitFeedback(ctx, citizen, c.ID, FeedbackRequest{Rating: 5, Comment: "Thanks"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, c.Status)
	require.NotNil(t, c.Feedback)
	assert.Equal(t, 5, c.Feedback.Rating)

	assert.Len(t, c.Timeline, 5)
	assert.Equal(t, []EventKind{EventFiled, EventAssigned, EventStatusChanged, EventResolved, EventFeedback}, f.events.kinds())
	assert.True(t, f.events.events[1].StaffAssigned)
}

func TestComplaintCreateUsesAssistantOnlyWhenFieldsMissing(t *testing.T) {
	cases := []struct {
		name     string
		category models.ComplaintCategory
		priority models.ComplaintPriority
		invoked  bool
	}{
		{"both omitted", "", "", true},
		{"category omitted", "", models.PriorityLow, true},
		{"priority omitted", models.CategoryParks, "", true},
		{"both provided", models.CategoryParks, models.PriorityLow, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newComplaintFixture()
			c, err := f.svc.Create(context.Background(), citizen, CreateComplaintRequest{
				Title: "Broken bench", Description: "Bench in park is broken", Category: tc.category, Priority: tc.priority,
			}, nil)
			require.NoError(t, err)
			if tc.invoked {
				assert.Equal(t, 1, f.categorizer.categorizeN)
				require.NotNil(t, c.AICategory)
			} else {
				assert.Zero(t, f.categorizer.categorizeN)
				assert.Nil(t, c.AICategory)
				assert.Nil(t, c.AssignedDepartmentID)
			}
			if tc.category != "" {
				assert.Equal(t, tc.category, c.Category)
			}
			if tc.priority != "" {
				assert.Equal(t, tc.priority, c.Priority)
			}
		})
	}
}

func TestComplaintCreateAssistantFailureFallsBack(t *testing.T) {
	f := newComplaintFixture()
	f.categorizer.err = errors.New("upstream timeout")

	c, err := f.svc.Create(context.Background(), citizen, CreateComplaintRequest{Title: "Noise", Description: "Loud music"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, c.Category)
	assert.Equal(t, models.PriorityMedium, c.Priority)
	assert.Nil(t, c.AssignedDepartmentID)
	assert.Zero(t, f.departments.lookups)
}

func TestComplaintCreateValidation(t *testing.T) {
	f := newComplaintFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, citizen, CreateComplaintRequest{Title: "   ", Description: "x"}, nil)
	requireCode(t, err, appErrors.ErrValidation)

	_, err = f.svc.Create(ctx, citizen, CreateComplaintRequest{Title: "x", Description: "y", Category: "weather"}, nil)
	requireCode(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.events.events)
}

func TestComplaintTerminalGuard(t *testing.T) {
	f := newComplaintFixture()
	ctx := context.Background()
	c := f.file(t)
	_, err := f.svc.Resolve(ctx, admin, c.ID, "Done", files("proof.jpg"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, admin, c.ID, UpdateStatusRequest{Status: models.StatusInProgress})
	requireCode(t, err, appErrors.ErrComplaintFinalized)
	_, err = f.svc.Assign(ctx, admin, c.ID, AssignRequest{StaffID: "staff"})
	requireCode(t, err, appErrors.ErrComplaintFinalized)
	_, err = f.svc.Resolve(ctx, admin, c.ID, "Again", files("proof.jpg"))
	requireCode(t, err, appErrors.ErrComplaintFinalized)
	assert.NotEqual(t, appErrors.ErrValidation.Code, appErrors.ErrComplaintFinalized.Code)

	stored, _ := f.store.FindByID(ctx, c.ID)
	assert.Len(t, stored.Timeline, 2)
}

func TestComplaintStaffGating(t *testing.T) {
	f := newComplaintFixture()
	ctx := context.Background()
	c := f.file(t)
	_, err := f.svc.Assign(ctx, admin, c.ID, AssignRequest{StaffID: "staff"})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, staff2, c.ID, UpdateStatusRequest{Status: models.StatusInProgress})
	requireCode(t, err, appErrors.ErrForbidden)
	_, err = f.svc.UpdateStatus(ctx, staff, c.ID, UpdateStatusRequest{Status: models.StatusClosed})
	requireCode(t, err, appErrors.ErrValidation)
	_, err = f.svc.Resolve(ctx, staff2, c.ID, "Done", files("proof.jpg"))
	requireCode(t, err, appErrors.ErrForbidden)
	_, err = f.svc.Resolve(ctx, citizen, c.ID, "Done", files("proof.jpg"))
	requireCode(t, err, appErrors.ErrForbidden)
	_, err = f.svc.Assign(ctx, staff, c.ID, AssignRequest{StaffID: "staff2"})
	requireCode(t, err, appErrors.ErrForbidden)

	updated, err := f.svc.UpdateStatus(ctx, staff, c.ID, UpdateStatusRequest{Status: models.StatusResolved, Comment: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", updated.Timeline[len(updated.Timeline)-1].Comment)
}

func TestComplaintUserStatusGating(t *testing.T) {
	f := newComplaintFixture()
	ctx := context.Background()
	c := f.file(t)

	_, err := f.svc.UpdateStatus(ctx, citizen, c.ID, UpdateStatusRequest{Status: models.StatusInProgress})
	requireCode(t, err, appErrors.ErrForbidden)
	_, err = f.svc.UpdateStatus(ctx, other, c.ID, UpdateStatusRequest{Status: models.StatusSubmitted})
	requireCode(t, err, appErrors.ErrForbidden)
	_, err = f.svc.UpdateStatus(ctx, admin, c.ID, UpdateStatusRequest{Status: "archived"})
	requireCode(t, err, appErrors.ErrValidation)

	updated, err := f.svc.UpdateStatus(ctx, citizen, c.ID, UpdateStatusRequest{Status: models.StatusSubmitted})
	require.NoError(t, err)
	assert.Len(t, updated.Timeline, 2)

	updated, err = f.svc.UpdateStatus(ctx, admin, c.ID, UpdateStatusRequest{Status: models.StatusReviewed})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, updated.Status)
}

func TestComplaintAssignDepartmentOnlyAndAfterProgress(t *testing.T) {
	f := newComplaintFixture()
	ctx := context.Background()
	c := f.file(t)

	c, err := f.svc.Assign(ctx, admin, c.ID, AssignRequest{DepartmentID: "dept-roads"})
	require.NoError(t, err)
	assert.Equal(t, "Complaint assigned to department", c.Timeline[1].Comment)
	assert.False(t, f.events.events[len(f.events.events)-1].StaffAssigned)

	_, err = f.svc.UpdateStatus(ctx, admin, c.ID, UpdateStatusRequest{Status: models.StatusInProgress})
	require.NoError(t, err)
	c, err = f.svc.Assign(ctx, admin, c.ID, AssignRequest{StaffID: "staff"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, c.Status)
	assert.Len(t, c.Timeline, 3)

	_, err = f.svc.Assign(ctx, admin, c.ID, AssignRequest{StaffID: "ghost"})
	requireCode(t, err, appErrors.ErrNotFound)
	_, err = f.svc.Assign(ctx, admin, c.ID, AssignRequest{})
	requireCode(t, err, appErrors.ErrValidation)
}

func TestComplaintAssignRejectsIneligibleStaff(t *testing.T) {
	f := newComplaintFixture()
	ctx := context.Background()
	c := f.file(t)
	require.Equal(t, "dept-roads", *c.AssignedDepartmentID)

	for _, id := range []string{"citizen", "reviewer2"} {
		_, err := f.svc.Assign(ctx, admin, c.ID, AssignRequest{StaffID: id})
		requireCode(t, err, appErrors.ErrValidation)
	}
	_, err := f.svc.Assign(ctx, admin, c.ID, AssignRequest{StaffID: "gardener"})
	requireCode(t, err, appErrors.ErrValidation)
	_, err = f.svc.Assign(ctx, admin, c.ID, AssignRequest{StaffID: "unplaced"})
	requireCode(t, err, appErrors.ErrValidation)
	_, err = f.svc.Assign(ctx, admin, c.ID, AssignRequest{DepartmentID: "dept-roads", StaffID: "gardener"})
	requireCode(t, err, appErrors.ErrValidation)

	stored, _ := f.store.FindByID(ctx, c.ID)
	assert.Nil(t, stored.AssignedStaffID)
	assert.Equal(t, models.StatusSubmitted, stored.Status)
	assert.Empty(t, f.users.auditLogs)

	updated, err := f.svc.Assign(ctx, admin, c.ID, AssignRequest{DepartmentID: "dept-parks", StaffID: "gardener"})
	require.NoError(t, err)
	assert.Equal(t, "dept-parks", *updated.AssignedDepartmentID)
	assert.Equal(t, "gardener", *updated.AssignedStaffID)
}

func TestComplaintResolveRequiresEvidence(t *testing.T) {
	f := newComplaintFixture()
	ctx := context.Background()
	c := f.file(t)

	_, err := f.svc.Resolve(ctx, admin, c.ID, "Fixed", nil)
	requireCode(t, err, appErrors.ErrValidation)
	_, err = f.svc.Resolve(ctx, admin, c.ID, "   ", files("proof.jpg"))
	requireCode(t, err, appErrors.ErrValidation)

	stored, _ := f.store.FindByID(ctx, c.ID)
	assert.Equal(t, models.StatusSubmitted, stored.Status)
	assert.Empty(t, f.uploads.stored)
}

func TestComplaintResolveSummaryFallback(t *testing.T) {
	f := newComplaintFixture()
	f.categorizer.summaryErr = errors.New("unavailable")
	c := f.file(t)

	resolved, err := f.svc.Resolve(context.Background(), admin, c.ID, "Replaced the lamp", files("lamp.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "Replaced the lamp", *resolved.ResolutionSummary)
}

func TestComplaintFeedbackRules(t *testing.T) {
	f := newComplaintFixture()
	ctx := context.Background()
	c := f.file(t)

	_, err := f.svc.SubmitFeedback(ctx, citizen, c.ID, FeedbackRequest{Rating: 4})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = f.svc.Resolve(ctx, admin, c.ID, "Fixed", files("proof.jpg"))
	require.NoError(t, err)

	_, err = f.svc.SubmitFeedback(ctx, citizen, c.ID, FeedbackRequest{Rating: 6})
	requireCode(t, err, appErrors.ErrValidation)
	_, err = f.svc.SubmitFeedback(ctx, other, c.ID, FeedbackRequest{Rating: 4})
	requireCode(t, err, appErrors.ErrForbidden)

	_, err = f.svc.SubmitFeedback(ctx, citizen, c.ID, FeedbackRequest{Rating: 4})
	require.NoError(t, err)
	_, err = f.svc.SubmitFeedback(ctx, citizen, c.ID, FeedbackRequest{Rating: 5})
	requireCode(t, err, appErrors.ErrComplaintFinalized)
}

func TestComplaintStaleVersionIsConflict(t *testing.T) {
	f := newComplaintFixture()
	c := f.file(t)
	f.store.saveErr = repository.ErrStaleVersion

	_, err := f.svc.UpdateStatus(context.Background(), admin, c.ID, UpdateStatusRequest{Status: models.StatusInProgress})
	requireCode(t, err, appErrors.ErrConflict)
	assert.Len(t, f.events.events, 1)
}

func TestComplaintGetAndListScoping(t *testing.T) {
	f := newComplaintFixture()
	ctx := context.Background()
	c := f.file(t)

	_, err := f.svc.Get(ctx, other, c.ID)
	requireCode(t, err, appErrors.ErrForbidden)
	_, err = f.svc.Get(ctx, staff, c.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, admin, "missing")
	requireCode(t, err, appErrors.ErrNotFound)

	_, pagination, err := f.svc.List(ctx, citizen, models.ComplaintFilter{UserID: "someone", StaffID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "citizen", f.store.listFilter.UserID)
	assert.Empty(t, f.store.listFilter.StaffID)
	assert.Equal(t, 10, pagination.PageSize)

	_, _, err = f.svc.List(ctx, staff, models.ComplaintFilter{})
	require.NoError(t, err)
	assert.Equal(t, "staff", f.store.listFilter.StaffID)

	_, pagination, err = f.svc.List(ctx, admin, models.ComplaintFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, models.MaxPageSize, pagination.PageSize)

	_, _, err = f.svc.List(ctx, admin, models.ComplaintFilter{Status: "nope"})
	requireCode(t, err, appErrors.ErrValidation)
}

func TestComplaintCanFollow(t *testing.T) {
	f := newComplaintFixture()
	ctx := context.Background()
	c := f.file(t)

	ok, err := f.svc.CanFollow(ctx, realtime.Identity{UserID: "citizen", Role: models.RoleUser}, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.CanFollow(ctx, realtime.Identity{UserID: "neighbour", Role: models.RoleUser}, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.CanFollow(ctx, realtime.Identity{UserID: "citizen", Role: models.RoleUser}, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.CanFollow(ctx, realtime.Identity{UserID: "staff", Role: models.RoleDepartmentStaff}, "missing")
	require.NoError(t, err)
	assert.True(t, ok)
}
