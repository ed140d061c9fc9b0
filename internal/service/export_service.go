package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/pkg/export"
	"github.com/noah-isme/civic-complaints-api/pkg/storage"
)

type analyticsSource interface {
	Dashboard(ctx context.Context) (*models.DashboardStats, bool, error)
	Trend(ctx context.Context, days int) (*models.Trend, bool, error)
	Departments(ctx context.Context) ([]models.DepartmentWorkload, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders analytics datasets and stores them behind signed URLs.
type ExportService struct {
	analytics analyticsSource
	storage   fileStorage
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(analytics analyticsSource, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{analytics: analytics, storage: files, signer: signer, logger: logger, cfg: cfg, now: time.Now}
}

// Generate builds the dataset for job, renders it and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	format, err := export.ParseFormat(string(job.Params.Format))
	if err != nil {
		return nil, err
	}
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, err
	}
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, fmt.Errorf("render %s report: %w", format, err)
	}

	relPath, err := s.storage.Save(s.buildFilename(job, renderer.Extension()), payload)
	if err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, fmt.Errorf("sign report url: %w", err)
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob, ext string) string {
	return fmt.Sprintf("%s_%s.%s", strings.ToLower(string(job.Type)), s.now().UTC().Format("20060102_150405"), ext)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	switch job.Type {
	case models.ReportTypeDashboard:
		return s.dashboardDataset(ctx)
	case models.ReportTypeTrend:
		return s.trendDataset(ctx, job.Params.Days)
	case models.ReportTypeDepartments:
		return s.departmentDataset(ctx)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) dashboardDataset(ctx context.Context) (export.Dataset, error) {
	stats, _, err := s.analytics.Dashboard(ctx)
	if err != nil {
		return export.Dataset{}, err
	}
	rows := [][]string{
		{"total", "all", strconv.Itoa(stats.Total)},
		{"total", "last_7_days", strconv.Itoa(stats.Recent)},
		{"total", "unresolved", strconv.Itoa(stats.Unresolved)},
	}
	groups := []struct {
		name   string
		counts []models.CountByKey
	}{
		{"category", stats.ByCategory},
		{"priority", stats.ByPriority},
		{"status", stats.ByStatus},
	}
	for _, g := range groups {
		for _, c := range g.counts {
			rows = append(rows, []string{g.name, c.Key, strconv.Itoa(c.Count)})
		}
	}
	return export.Dataset{
		Title:       "Complaint Dashboard",
		Headers:     []string{"Group", "Key", "Count"},
		Rows:        rows,
		GeneratedAt: stats.GeneratedAt,
	}, nil
}

func (s *ExportService) trendDataset(ctx context.Context, days int) (export.Dataset, error) {
	trend, _, err := s.analytics.Trend(ctx, days)
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([][]string, 0, len(trend.Points))
	for _, p := range trend.Points {
		rows = append(rows, []string{p.Day.UTC().Format("2006-01-02"), strconv.Itoa(p.Created), strconv.Itoa(p.Resolved)})
	}
	return export.Dataset{
		Title:       fmt.Sprintf("Complaint Trend (%d days)", trend.Days),
		Headers:     []string{"Day", "Created", "Resolved"},
		Rows:        rows,
		GeneratedAt: trend.GeneratedAt,
	}, nil
}

func (s *ExportService) departmentDataset(ctx context.Context) (export.Dataset, error) {
	workloads, err := s.analytics.Departments(ctx)
	if err != nil {
		return export.Dataset{}, err
	}
	statuses := []models.ComplaintStatus{
		models.StatusSubmitted, models.StatusAssigned, models.StatusInProgress, models.StatusResolved, models.StatusClosed,
	}
	headers := []string{"Department", "Staff", "Total"}
	for _, st := range statuses {
		headers = append(headers, string(st))
	}
	rows := make([][]string, 0, len(workloads))
	for _, w := range workloads {
		row := []string{w.DepartmentName, strconv.Itoa(w.StaffCount), strconv.Itoa(w.Total)}
		for _, st := range statuses {
			row = append(row, strconv.Itoa(w.ByStatus[string(st)]))
		}
		rows = append(rows, row)
	}
	return export.Dataset{
		Title:       "Department Workload",
		Headers:     headers,
		Rows:        rows,
		GeneratedAt: s.now().UTC(),
	}, nil
}
