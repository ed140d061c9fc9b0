package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-complaints-api/internal/models"
)

const complaintColumns = `id, title, description, category, priority, status, user_id, assigned_department_id, assigned_staff_id,
longitude, latitude, address, ai_category, ai_priority, ai_assigned_department_id, resolution_summary, feedback, version, created_at, updated_at`

const maxLocationResults = 1000

var complaintSorts = map[string]string{
	"created_at":  "created_at ASC",
	"-created_at": "created_at DESC",
	"updated_at":  "updated_at ASC",
	"-updated_at": "updated_at DESC",
	"priority":    "CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END ASC, created_at DESC",
	"status":      "status ASC, created_at DESC",
}

// ComplaintRepository persists complaints with their files and timeline.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository constructs the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts the complaint, its attachments and the initial timeline entry
// in one transaction.
func (r *ComplaintRepository) Create(ctx context.Context, c *models.Complaint, entry models.TimelineEntry) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Version == 0 {
		c.Version = 1
	}

	const insert = `INSERT INTO complaints (id, title, description, category, priority, status, user_id, assigned_department_id, assigned_staff_id,
longitude, latitude, address, ai_category, ai_priority, ai_assigned_department_id, resolution_summary, feedback, version, created_at, updated_at)
VALUES (:id, :title, :description, :category, :priority, :status, :user_id, :assigned_department_id, :assigned_staff_id,
:longitude, :latitude, :address, :ai_category, :ai_priority, :ai_assigned_department_id, :resolution_summary, :feedback, :version, :created_at, :updated_at)`

	err := withTx(ctx, r.db, "create complaint", func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insert, c); err != nil {
			return fmt.Errorf("insert complaint: %w", err)
		}
		if err := insertFiles(ctx, tx, c.ID, models.FileKindAttachment, c.Attachments); err != nil {
			return err
		}
		return insertTimeline(ctx, tx, c.ID, &entry, now)
	})
	if err != nil {
		return err
	}
	c.Timeline = []models.TimelineEntry{entry}
	return nil
}

// SaveTransition writes the mutated complaint guarded by its version. When
// resolution is non-nil the complaint's resolution files are replaced. When
// entry is non-nil it is appended to the timeline in the same transaction.
// A concurrent writer causes ErrStaleVersion.
func (r *ComplaintRepository) SaveTransition(ctx context.Context, c *models.Complaint, entry *models.TimelineEntry, resolution []models.ComplaintFile) error {
	now := time.Now().UTC()
	const update = `UPDATE complaints SET status = $3, assigned_department_id = $4, assigned_staff_id = $5, resolution_summary = $6,
feedback = $7, version = version + 1, updated_at = $8 WHERE id = $1 AND version = $2`

	err := withTx(ctx, r.db, "save complaint transition", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, update, c.ID, c.Version, c.Status, c.AssignedDepartmentID, c.AssignedStaffID,
			c.ResolutionSummary, c.Feedback, now)
		if err != nil {
			return fmt.Errorf("update complaint: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update complaint rows: %w", err)
		}
		if affected == 0 {
			return ErrStaleVersion
		}
		if resolution != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM complaint_files WHERE complaint_id = $1 AND kind = $2`, c.ID, models.FileKindResolution); err != nil {
				return fmt.Errorf("clear resolution files: %w", err)
			}
			if err := insertFiles(ctx, tx, c.ID, models.FileKindResolution, resolution); err != nil {
				return err
			}
		}
		if entry != nil {
			return insertTimeline(ctx, tx, c.ID, entry, now)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.Version++
	c.UpdatedAt = now
	if resolution != nil {
		c.ResolutionImages = resolution
	}
	if entry != nil {
		c.Timeline = append(c.Timeline, *entry)
	}
	return nil
}

// FindByID loads a complaint with its files and ordered timeline.
func (r *ComplaintRepository) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	const query = `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`
	var c models.Complaint
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find complaint: %w", err)
	}

	var files []models.ComplaintFile
	const filesQuery = `SELECT id, complaint_id, kind, position, filename, storage_path, original_name, mime_type, size, created_at
FROM complaint_files WHERE complaint_id = $1 ORDER BY kind, position`
	if err := r.db.SelectContext(ctx, &files, filesQuery, id); err != nil {
		return nil, fmt.Errorf("load complaint files: %w", err)
	}
	c.Attachments = []models.ComplaintFile{}
	c.ResolutionImages = []models.ComplaintFile{}
	for _, f := range files {
		if f.Kind == models.FileKindResolution {
			c.ResolutionImages = append(c.ResolutionImages, f)
		} else {
			c.Attachments = append(c.Attachments, f)
		}
	}

	const timelineQuery = `SELECT id, complaint_id, status, updated_by, comment, created_at FROM complaint_timeline WHERE complaint_id = $1 ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &c.Timeline, timelineQuery, id); err != nil {
		return nil, fmt.Errorf("load complaint timeline: %w", err)
	}
	return &c, nil
}

// List returns complaint rows matching the filter and the total count. Files
// and timelines are not loaded.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	where := sq.And{}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": filter.Status})
	}
	if filter.Category != "" {
		where = append(where, sq.Eq{"category": filter.Category})
	}
	if filter.Priority != "" {
		where = append(where, sq.Eq{"priority": filter.Priority})
	}
	if filter.UserID != "" {
		where = append(where, sq.Eq{"user_id": filter.UserID})
	}
	if filter.DepartmentID != "" {
		where = append(where, sq.Eq{"assigned_department_id": filter.DepartmentID})
	}
	if filter.StaffID != "" {
		where = append(where, sq.Eq{"assigned_staff_id": filter.StaffID})
	}
	if filter.Search != "" {
		term := "%" + strings.ToLower(filter.Search) + "%"
		where = append(where, sq.Or{sq.Like{"LOWER(title)": term}, sq.Like{"LOWER(description)": term}})
	}

	order, ok := complaintSorts[filter.Sort]
	if !ok {
		order = complaintSorts["-created_at"]
	}
	page, size := normalisePage(filter.Page, filter.PageSize, 10)
	list := psql.Select(complaintColumns).From("complaints").Where(where).
		OrderBy(order).Limit(uint64(size)).Offset(uint64((page - 1) * size))

	var complaints []models.Complaint
	if err := selectBuilt(ctx, r.db, &complaints, list, "list complaints"); err != nil {
		return nil, 0, err
	}
	var total int
	if err := getBuilt(ctx, r.db, &total, psql.Select("COUNT(*)").From("complaints").Where(where), "count complaints"); err != nil {
		return nil, 0, err
	}
	return complaints, total, nil
}

// Locations returns map markers. With a center the result is limited to the
// radius and ordered by distance; otherwise every complaint with non-zero
// coordinates is returned.
func (r *ComplaintRepository) Locations(ctx context.Context, q models.LocationQuery) ([]models.ComplaintLocation, error) {
	limit := q.Limit
	if limit <= 0 || limit > maxLocationResults {
		limit = maxLocationResults
	}

	var (
		query string
		args  []any
	)
	if q.Latitude != nil && q.Longitude != nil {
		query = `SELECT id, title, category, priority, status, latitude, longitude, address, created_at, distance_m FROM (
SELECT id, title, category, priority, status, latitude, longitude, address, created_at,
6371000 * 2 * ASIN(LEAST(1, SQRT(POWER(SIN(RADIANS(latitude - $1) / 2), 2) + COS(RADIANS($1)) * COS(RADIANS(latitude)) * POWER(SIN(RADIANS(longitude - $2) / 2), 2)))) AS distance_m
FROM complaints) nearby WHERE distance_m <= $3 ORDER BY distance_m ASC LIMIT $4`
		args = []any{*q.Latitude, *q.Longitude, q.RadiusM, limit}
	} else {
		query = `SELECT id, title, category, priority, status, latitude, longitude, address, created_at, NULL::double precision AS distance_m
FROM complaints WHERE latitude <> 0 AND longitude <> 0 ORDER BY created_at DESC LIMIT $1`
		args = []any{limit}
	}

	var locations []models.ComplaintLocation
	if err := r.db.SelectContext(ctx, &locations, query, args...); err != nil {
		return nil, fmt.Errorf("list complaint locations: %w", err)
	}
	return locations, nil
}

// CountByStatusForUser groups a user's complaints by status.
func (r *ComplaintRepository) CountByStatusForUser(ctx context.Context, userID string) ([]models.CountByKey, error) {
	const query = `SELECT status AS key, COUNT(*) AS count FROM complaints WHERE user_id = $1 GROUP BY status ORDER BY status`
	var counts []models.CountByKey
	if err := r.db.SelectContext(ctx, &counts, query, userID); err != nil {
		return nil, fmt.Errorf("count user complaints: %w", err)
	}
	return counts, nil
}

func insertFiles(ctx context.Context, tx *sqlx.Tx, complaintID string, kind models.FileKind, files []models.ComplaintFile) error {
	const query = `INSERT INTO complaint_files (id, complaint_id, kind, position, filename, storage_path, original_name, mime_type, size, created_at)
VALUES (:id, :complaint_id, :kind, :position, :filename, :storage_path, :original_name, :mime_type, :size, :created_at)`
	now := time.Now().UTC()
	for i := range files {
		if files[i].ID == "" {
			files[i].ID = uuid.NewString()
		}
		files[i].ComplaintID = complaintID
		files[i].Kind = kind
		files[i].Position = i
		files[i].CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, files[i]); err != nil {
			return fmt.Errorf("insert complaint file: %w", err)
		}
	}
	return nil
}

func insertTimeline(ctx context.Context, tx *sqlx.Tx, complaintID string, entry *models.TimelineEntry, at time.Time) error {
	entry.ComplaintID = complaintID
	entry.CreatedAt = at
	const query = `INSERT INTO complaint_timeline (complaint_id, status, updated_by, comment, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := tx.QueryRowxContext(ctx, query, complaintID, entry.Status, entry.UpdatedBy, entry.Comment, at).Scan(&entry.ID); err != nil {
		return fmt.Errorf("insert timeline entry: %w", err)
	}
	return nil
}
