package models

import (
	"database/sql/driver"
	"time"
)

// ReportType enumerates supported asynchronous analytics exports.
type ReportType string

const (
	ReportTypeDashboard   ReportType = "dashboard"
	ReportTypeTrend       ReportType = "trend"
	ReportTypeDepartments ReportType = "departments"
)

// Valid reports whether t is a supported export type.
func (t ReportType) Valid() bool {
	return t == ReportTypeDashboard || t == ReportTypeTrend || t == ReportTypeDepartments
}

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob persisted background job metadata.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ReportJobParams stores request-scoped options persisted as JSONB.
type ReportJobParams struct {
	Format ReportFormat `json:"format"`
	Days   int          `json:"days,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p ReportJobParams) Value() (driver.Value, error) {
	return jsonValue(p, "report job params")
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ReportJobParams) Scan(value any) error {
	*p = ReportJobParams{}
	_, err := scanJSON(value, p, "report job params")
	return err
}
