package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-complaints-api/internal/models"
)

const departmentColumns = `id, name, description, category, head_id, is_active, contact_email, contact_phone, created_at, updated_at`

// ErrAlreadyMember is returned when a user is already on a department roster.
var ErrAlreadyMember = errors.New("user already in department")

// DepartmentRepository persists departments and their staff rosters.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns departments sorted by name.
func (r *DepartmentRepository) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, error) {
	query := psql.Select(departmentColumns).From("departments").OrderBy("name ASC")
	if filter.IsActive != nil {
		query = query.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if filter.Category != "" {
		query = query.Where(sq.Eq{"category": filter.Category})
	}
	var departments []models.Department
	if err := selectBuilt(ctx, r.db, &departments, query, "list departments"); err != nil {
		return nil, err
	}
	return departments, nil
}

// FindByID returns a department by id.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT ` + departmentColumns + ` FROM departments WHERE id = $1`
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &dept, nil
}

// FindActiveByCategory returns the first active department for a category.
func (r *DepartmentRepository) FindActiveByCategory(ctx context.Context, category models.ComplaintCategory) (*models.Department, error) {
	const query = `SELECT ` + departmentColumns + ` FROM departments WHERE category = $1 AND is_active = TRUE ORDER BY created_at ASC LIMIT 1`
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find department by category: %w", err)
	}
	return &dept, nil
}

// ExistsByName reports whether a department with the name exists, excluding excludeID.
func (r *DepartmentRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM departments WHERE LOWER(name) = LOWER($1) AND ($2 = '' OR id::text <> $2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check department name: %w", err)
	}
	return exists, nil
}

// Create inserts a department.
func (r *DepartmentRepository) Create(ctx context.Context, dept *models.Department) error {
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	dept.CreatedAt, dept.UpdatedAt = now, now
	const query = `INSERT INTO departments (id, name, description, category, head_id, is_active, contact_email, contact_phone, created_at, updated_at)
VALUES (:id, :name, :description, :category, :head_id, :is_active, :contact_email, :contact_phone, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dept); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update persists department fields.
func (r *DepartmentRepository) Update(ctx context.Context, dept *models.Department) error {
	dept.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET name = :name, description = :description, category = :category, head_id = :head_id,
is_active = :is_active, contact_email = :contact_email, contact_phone = :contact_phone, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, dept); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

// Staff returns the roster of each department keyed by department id.
func (r *DepartmentRepository) Staff(ctx context.Context, departmentIDs []string) (map[string][]models.UserInfo, error) {
	result := make(map[string][]models.UserInfo, len(departmentIDs))
	if len(departmentIDs) == 0 {
		return result, nil
	}
	query := psql.Select("ds.department_id", "u.id", "u.name", "u.email", "u.role", "u.avatar").
		From("department_staff ds").
		Join("users u ON u.id = ds.user_id").
		Where(sq.Eq{"ds.department_id": departmentIDs}).
		OrderBy("u.name ASC")
	var rows []struct {
		DepartmentID string          `db:"department_id"`
		ID           string          `db:"id"`
		Name         string          `db:"name"`
		Email        string          `db:"email"`
		Role         models.UserRole `db:"role"`
		Avatar       *string         `db:"avatar"`
	}
	if err := selectBuilt(ctx, r.db, &rows, query, "list department staff"); err != nil {
		return nil, err
	}
	for _, row := range rows {
		deptID := row.DepartmentID
		result[deptID] = append(result[deptID], models.UserInfo{
			ID: row.ID, Name: row.Name, Email: row.Email, Role: row.Role, DepartmentID: &deptID, Avatar: row.Avatar,
		})
	}
	return result, nil
}

// AddStaff adds userID to the roster, removes them from any other roster and
// sets the user's department back-reference in one transaction.
func (r *DepartmentRepository) AddStaff(ctx context.Context, departmentID, userID string) error {
	return withTx(ctx, r.db, "add department staff", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO department_staff (department_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, departmentID, userID)
		if err != nil {
			return fmt.Errorf("insert department staff: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrAlreadyMember
		}
		// A user belongs to one department; moving drops the old membership.
		if _, err := tx.ExecContext(ctx, `DELETE FROM department_staff WHERE user_id = $1 AND department_id <> $2`, userID, departmentID); err != nil {
			return fmt.Errorf("drop previous department staff: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET department_id = $2, updated_at = NOW() WHERE id = $1`, userID, departmentID); err != nil {
			return fmt.Errorf("link user department: %w", err)
		}
		return nil
	})
}

// RemoveStaff removes userID from the roster and clears the back-reference
// in one transaction.
func (r *DepartmentRepository) RemoveStaff(ctx context.Context, departmentID, userID string) error {
	return withTx(ctx, r.db, "remove department staff", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM department_staff WHERE department_id = $1 AND user_id = $2`, departmentID, userID); err != nil {
			return fmt.Errorf("delete department staff: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET department_id = NULL, updated_at = NOW() WHERE id = $1 AND department_id = $2`, userID, departmentID); err != nil {
			return fmt.Errorf("unlink user department: %w", err)
		}
		return nil
	})
}

// Workload counts complaints per status for the department.
func (r *DepartmentRepository) Workload(ctx context.Context, departmentID string) (*models.DepartmentWorkload, error) {
	dept, err := r.FindByID(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	workload := &models.DepartmentWorkload{DepartmentID: dept.ID, DepartmentName: dept.Name, ByStatus: map[string]int{}}

	var counts []models.CountByKey
	const byStatus = `SELECT status AS key, COUNT(*) AS count FROM complaints WHERE assigned_department_id = $1 GROUP BY status`
	if err := r.db.SelectContext(ctx, &counts, byStatus, departmentID); err != nil {
		return nil, fmt.Errorf("count department workload: %w", err)
	}
	for _, c := range counts {
		workload.ByStatus[c.Key] = c.Count
		workload.Total += c.Count
	}

	const staff = `SELECT COUNT(*) FROM department_staff WHERE department_id = $1`
	if err := r.db.GetContext(ctx, &workload.StaffCount, staff, departmentID); err != nil {
		return nil, fmt.Errorf("count department staff: %w", err)
	}
	return workload, nil
}
