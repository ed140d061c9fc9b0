package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-complaints-api/internal/models"
)

var groupableColumns = map[string]bool{"category": true, "priority": true, "status": true}

// ComplaintTotals are headline dashboard counters.
type ComplaintTotals struct {
	Total      int `db:"total"`
	Recent     int `db:"recent"`
	Unresolved int `db:"unresolved"`
}

// AnalyticsRepository exposes read-optimised queries for analytics endpoints.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Totals counts all complaints, those created since the cutoff and those not yet resolved or closed.
func (r *AnalyticsRepository) Totals(ctx context.Context, since time.Time) (ComplaintTotals, error) {
	const query = `SELECT COUNT(*) AS total,
COUNT(*) FILTER (WHERE created_at >= $1) AS recent,
COUNT(*) FILTER (WHERE status NOT IN ('resolved', 'closed')) AS unresolved
FROM complaints`
	var totals ComplaintTotals
	if err := r.db.GetContext(ctx, &totals, query, since); err != nil {
		return ComplaintTotals{}, fmt.Errorf("query complaint totals: %w", err)
	}
	return totals, nil
}

// CountBy groups complaints by one of category, priority or status.
func (r *AnalyticsRepository) CountBy(ctx context.Context, column string) ([]models.CountByKey, error) {
	if !groupableColumns[column] {
		return nil, fmt.Errorf("count complaints by %q: unsupported column", column)
	}
	query := fmt.Sprintf(`SELECT %[1]s AS key, COUNT(*) AS count FROM complaints GROUP BY %[1]s ORDER BY count DESC, key ASC`, column)
	var counts []models.CountByKey
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count complaints by %s: %w", column, err)
	}
	return counts, nil
}

// DepartmentWorkloads summarises every department's complaint load.
func (r *AnalyticsRepository) DepartmentWorkloads(ctx context.Context) ([]models.DepartmentWorkload, error) {
	const totals = `SELECT d.id AS department_id, d.name AS department_name,
COUNT(DISTINCT c.id) AS total,
(SELECT COUNT(*) FROM department_staff ds WHERE ds.department_id = d.id) AS staff_count
FROM departments d LEFT JOIN complaints c ON c.assigned_department_id = d.id
GROUP BY d.id, d.name ORDER BY d.name`
	var workloads []models.DepartmentWorkload
	if err := r.db.SelectContext(ctx, &workloads, totals); err != nil {
		return nil, fmt.Errorf("query department workloads: %w", err)
	}

	const byStatus = `SELECT assigned_department_id AS department_id, status, COUNT(*) AS count
FROM complaints WHERE assigned_department_id IS NOT NULL GROUP BY assigned_department_id, status`
	var rows []struct {
		DepartmentID string `db:"department_id"`
		Status       string `db:"status"`
		Count        int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, byStatus); err != nil {
		return nil, fmt.Errorf("query department status counts: %w", err)
	}
	index := make(map[string]int, len(workloads))
	for i := range workloads {
		workloads[i].ByStatus = map[string]int{}
		index[workloads[i].DepartmentID] = i
	}
	for _, row := range rows {
		if i, ok := index[row.DepartmentID]; ok {
			workloads[i].ByStatus[row.Status] = row.Count
		}
	}
	return workloads, nil
}

// Trend returns one point per day for the last days days, including empty days.
func (r *AnalyticsRepository) Trend(ctx context.Context, days int) ([]models.TrendPoint, error) {
	const query = `SELECT d::date AS day,
(SELECT COUNT(*) FROM complaints c WHERE c.created_at >= d AND c.created_at < d + INTERVAL '1 day') AS created,
(SELECT COUNT(*) FROM complaint_timeline t WHERE t.status = 'resolved' AND t.created_at >= d AND t.created_at < d + INTERVAL '1 day') AS resolved
FROM generate_series(date_trunc('day', NOW()) - ($1 - 1) * INTERVAL '1 day', date_trunc('day', NOW()), INTERVAL '1 day') AS d
ORDER BY day`
	var points []models.TrendPoint
	if err := r.db.SelectContext(ctx, &points, query, days); err != nil {
		return nil, fmt.Errorf("query complaint trend: %w", err)
	}
	return points, nil
}
