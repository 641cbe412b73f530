// Package export composes the organize pipeline with the database and
// filesystem to perform idempotent, batched export of progress reports
// into a hierarchical JSON file tree.
package export

import (
	"time"

	"github.com/intellego-platform/report-exporter/internal/model"
	"github.com/intellego-platform/report-exporter/internal/organize"
)

// DefaultBasePath is the root of the exported file tree.
const DefaultBasePath = "data/student-reports"

// exportVersion is stamped into every exported file's metadata.
const exportVersion = "2.0.0"

// DateRange bounds the submittedAt timestamps of exported reports.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Config controls one export run.
type Config struct {
	BasePath          string
	BatchSize         int
	OverwriteExisting bool
	CreateBackup      bool
	ValidateData      bool
	IncludeAnswers    bool
	DateRange         *DateRange
	FilterBySubject   []string
	FilterBySede      []string
}

// DefaultConfig returns the standard run configuration: validate and
// include answers, never overwrite, no backups.
func DefaultConfig() Config {
	return Config{
		BasePath:       DefaultBasePath,
		BatchSize:      organize.DefaultBatchSize,
		ValidateData:   true,
		IncludeAnswers: true,
	}
}

func (c Config) withDefaults() Config {
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if c.BatchSize <= 0 {
		c.BatchSize = organize.DefaultBatchSize
	}
	return c
}

// Result is the outcome of an export run. ExportAll never returns a Go
// error; hard failures are reported here with Success set to false.
type Result struct {
	Success               bool                              `json:"success"`
	RunID                 string                            `json:"runId"`
	Metrics               model.ProcessingMetrics           `json:"metrics"`
	ExportedFiles         []string                          `json:"exportedFiles"`
	Errors                []*organize.DataOrganizationError `json:"errors"`
	Warnings              []string                          `json:"warnings"`
	TotalReportsProcessed int                               `json:"totalReportsProcessed"`
	TotalFilesCreated     int                               `json:"totalFilesCreated"`
	SkippedReports        int                               `json:"skippedReports"`
}

// Statistics summarizes what a run would export, without touching the
// filesystem.
type Statistics struct {
	TotalStudents    int            `json:"totalStudents"`
	TotalReports     int            `json:"totalReports"`
	ReportsBySubject map[string]int `json:"reportsBySubject"`
	ReportsBySede    map[string]int `json:"reportsBySede"`
	EstimatedFiles   int            `json:"estimatedFiles"`
}
