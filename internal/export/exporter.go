package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/intellego-platform/report-exporter/internal/model"
	"github.com/intellego-platform/report-exporter/internal/organize"
	"github.com/intellego-platform/report-exporter/internal/store"
)

// Operation tags carried by DataOrganizationError values.
const (
	opExportAll     = "export-all-reports"
	opFetchStudents = "fetch-all-students"
	opFetchReports  = "fetch-all-reports"
	opOrganize      = "organize-report-data"
	opExportFiles   = "export-organized-reports"
	opExportSingle  = "export-single-report"
	opStatistics    = "get-export-statistics"
	opEnsureDir     = "ensure-directory-exists"
	opBackupFile    = "backup-existing-file"
	opWriteFile     = "write-json-file"
)

// Skip reasons tracked during organization. The public SkippedReports
// total stays arithmetic; these only feed per-reason warning lines.
const (
	skipMissingStudent = "missing-student"
	skipInvalidData    = "invalid-data"
	skipInvalidPath    = "invalid-path"
)

var backupStampReplacer = strings.NewReplacer(":", "-", ".", "-")

// Exporter composes the organize pipeline with the database and a
// filesystem to export reports as hierarchical JSON files.
type Exporter struct {
	store *store.Store
	fs    afero.Fs
}

// New creates an Exporter writing to the OS filesystem.
func New(st *store.Store) *Exporter {
	return &Exporter{store: st, fs: afero.NewOsFs()}
}

// NewWithFs creates an Exporter writing to the given filesystem. Tests
// use an in-memory filesystem.
func NewWithFs(st *store.Store, fsys afero.Fs) *Exporter {
	return &Exporter{store: st, fs: fsys}
}

// ExportAll runs the full export pipeline: fetch students and reports,
// organize them into hierarchical paths, and write one JSON file per
// report. Single-record failures are recorded and skipped; only
// stage-level hard failures (no students, nothing organized, fetch
// errors) produce Success=false. ExportAll never returns a Go error.
func (e *Exporter) ExportAll(ctx context.Context, cfg Config) Result {
	cfg = cfg.withDefaults()
	monitor := organize.NewMonitor(opExportAll)
	monitor.Start()

	res := Result{RunID: uuid.NewString()}
	slog.Info("starting export run",
		"run_id", res.RunID,
		"base_path", cfg.BasePath,
		"batch_size", cfg.BatchSize,
		"overwrite", cfg.OverwriteExisting,
		"backup", cfg.CreateBackup,
	)

	students, err := e.fetchStudents(ctx)
	if err != nil {
		monitor.AddError()
		return e.failRun(res, monitor, organize.WrapError(opExportAll, "failed to fetch students from database", err, nil))
	}
	if len(students) == 0 {
		monitor.AddError()
		return e.failRun(res, monitor, organize.NewError(opExportAll, "no students found in database", nil))
	}
	monitor.AddRecord()

	reports, err := e.fetchReports(ctx, cfg)
	if err != nil {
		monitor.AddError()
		return e.failRun(res, monitor, organize.WrapError(opExportAll, "failed to fetch reports from database", err, nil))
	}
	if len(reports) == 0 {
		res.Success = true
		res.Warnings = append(res.Warnings, "no reports found matching the specified criteria")
		res.Metrics = monitor.Finish()
		slog.Info("no reports matched the export criteria", "run_id", res.RunID)
		return res
	}
	res.TotalReportsProcessed = len(reports)
	monitor.AddRecord()

	org := e.organizeReports(ctx, students, reports, cfg)
	res.SkippedReports = res.TotalReportsProcessed - len(org.organized)
	res.Errors = append(res.Errors, org.errors...)
	res.Warnings = append(res.Warnings, org.warnings...)
	monitor.AddRecord()

	if len(org.organized) == 0 {
		monitor.AddError()
		return e.failRun(res, monitor, organize.NewError(opExportAll, "no valid reports found after data organization", nil))
	}

	wr := e.writeFiles(ctx, org.organized, cfg)
	res.ExportedFiles = wr.exported
	res.Errors = append(res.Errors, wr.errors...)
	res.TotalFilesCreated = len(wr.exported)
	monitor.AddRecord()

	res.Success = true
	res.Metrics = monitor.Finish()
	slog.Info("export run completed",
		"run_id", res.RunID,
		"reports_processed", res.TotalReportsProcessed,
		"files_created", res.TotalFilesCreated,
		"skipped_reports", res.SkippedReports,
		"errors", len(res.Errors),
		"duration", res.Metrics.Duration,
	)
	return res
}

// ExportReport exports a single report by ID, reusing the organize and
// write stages with a singleton input. Useful for testing and manual
// retries.
func (e *Exporter) ExportReport(ctx context.Context, reportID string, cfg Config) Result {
	cfg = cfg.withDefaults()
	monitor := organize.NewMonitor(opExportSingle)
	monitor.Start()

	res := Result{RunID: uuid.NewString()}
	slog.Info("exporting single report", "run_id", res.RunID, "report_id", reportID)

	report, student, err := e.store.ReportWithStudent(ctx, reportID)
	if err != nil {
		monitor.AddError()
		msg := "failed to fetch report"
		if errors.Is(err, sql.ErrNoRows) {
			msg = "report not found"
		}
		return e.failRun(res, monitor, organize.WrapError(opExportSingle, msg, err, reportID))
	}
	monitor.AddRecord()
	res.TotalReportsProcessed = 1

	org := e.organizeReports(ctx, []model.Student{student}, []model.Report{report}, cfg)
	res.Errors = append(res.Errors, org.errors...)
	res.Warnings = append(res.Warnings, org.warnings...)
	res.SkippedReports = res.TotalReportsProcessed - len(org.organized)
	if len(org.organized) == 0 {
		monitor.AddError()
		return e.failRun(res, monitor, organize.NewError(opExportSingle, fmt.Sprintf("failed to organize report %s", reportID), reportID))
	}

	wr := e.writeFiles(ctx, org.organized, cfg)
	res.ExportedFiles = wr.exported
	res.Errors = append(res.Errors, wr.errors...)
	res.TotalFilesCreated = len(wr.exported)

	res.Success = true
	res.Metrics = monitor.Finish()
	return res
}

// Statistics tabulates what an export run would produce, by subject and
// by sede, without writing anything.
func (e *Exporter) Statistics(ctx context.Context, cfg Config) (Statistics, error) {
	cfg = cfg.withDefaults()

	students, err := e.store.ActiveStudents(ctx)
	if err != nil {
		return Statistics{}, organize.WrapError(opStatistics, "failed to fetch students from database", err, nil)
	}
	reports, err := e.store.Reports(ctx, reportFilter(cfg), false)
	if err != nil {
		return Statistics{}, organize.WrapError(opStatistics, "failed to fetch reports from database", err, nil)
	}

	stats := Statistics{
		TotalStudents:    len(students),
		TotalReports:     len(reports),
		ReportsBySubject: make(map[string]int),
		ReportsBySede:    make(map[string]int),
		EstimatedFiles:   len(reports),
	}

	studentMap := make(map[string]model.Student, len(students))
	for _, st := range students {
		studentMap[st.ID] = st
	}
	for _, r := range reports {
		subject := r.Subject
		if subject == "" {
			subject = "unknown"
		}
		stats.ReportsBySubject[subject]++

		sede := "unknown"
		if st, ok := studentMap[r.UserID]; ok && st.Sede != "" {
			sede = st.Sede
		}
		stats.ReportsBySede[sede]++
	}
	return stats, nil
}

func (e *Exporter) failRun(res Result, monitor *organize.Monitor, err *organize.DataOrganizationError) Result {
	res.Success = false
	res.Errors = append(res.Errors, err)
	res.Metrics = monitor.Finish()
	slog.Error("export run failed", "run_id", res.RunID, "error", err)
	return res
}

func (e *Exporter) fetchStudents(ctx context.Context) ([]model.Student, error) {
	monitor := organize.NewMonitor(opFetchStudents)
	monitor.Start()

	students, err := e.store.ActiveStudents(ctx)
	if err != nil {
		monitor.AddError()
		return nil, err
	}
	for range students {
		monitor.AddRecord()
	}
	m := monitor.Finish()
	slog.Info("fetched students", "count", len(students), "duration", m.Duration)
	return students, nil
}

func (e *Exporter) fetchReports(ctx context.Context, cfg Config) ([]model.Report, error) {
	monitor := organize.NewMonitor(opFetchReports)
	monitor.Start()

	reports, err := e.store.Reports(ctx, reportFilter(cfg), cfg.IncludeAnswers)
	if err != nil {
		monitor.AddError()
		return nil, err
	}
	for range reports {
		monitor.AddRecord()
	}
	m := monitor.Finish()
	slog.Info("fetched reports", "count", len(reports), "with_answers", cfg.IncludeAnswers, "duration", m.Duration)
	return reports, nil
}

func reportFilter(cfg Config) store.ReportFilter {
	filter := store.ReportFilter{
		Subjects: cfg.FilterBySubject,
		Sedes:    cfg.FilterBySede,
	}
	if cfg.DateRange != nil {
		start := cfg.DateRange.Start
		end := cfg.DateRange.End
		filter.Start = &start
		filter.End = &end
	}
	return filter
}

type organizeOutcome struct {
	report     *model.OrganizedReport
	err        *organize.DataOrganizationError
	warnings   []string
	skipReason string
}

type organizeResult struct {
	organized []model.OrganizedReport
	errors    []*organize.DataOrganizationError
	warnings  []string
}

// organizeReports joins reports with students, validates both, derives
// hierarchical paths through a per-run cache, and emits organized
// reports. Individual records that fail are skipped with a recorded
// error; the stage itself only aborts on context cancellation.
func (e *Exporter) organizeReports(ctx context.Context, students []model.Student, reports []model.Report, cfg Config) organizeResult {
	monitor := organize.NewMonitor(opOrganize)
	monitor.Start()

	studentMap := make(map[string]model.Student, len(students))
	for _, st := range students {
		studentMap[st.ID] = st
	}
	cache := organize.NewPathCache()

	outcomes, err := organize.ProcessBatches(ctx, reports, cfg.BatchSize,
		func(_ context.Context, batch []model.Report) ([]organizeOutcome, error) {
			out := make([]organizeOutcome, 0, len(batch))
			for _, report := range batch {
				out = append(out, organizeOne(report, studentMap, cache, cfg, monitor))
			}
			return out, nil
		})

	var result organizeResult
	if err != nil {
		// Batches only fail on context cancellation; per-record problems
		// are carried in the outcomes.
		result.errors = append(result.errors, organize.WrapError(opOrganize, "organization aborted", err, nil))
		return result
	}

	skipCounts := make(map[string]int)
	for _, o := range outcomes {
		if o.err != nil {
			result.errors = append(result.errors, o.err)
		}
		result.warnings = append(result.warnings, o.warnings...)
		if o.skipReason != "" {
			skipCounts[o.skipReason]++
			continue
		}
		if o.report != nil {
			result.organized = append(result.organized, *o.report)
		}
	}
	for _, reason := range []string{skipMissingStudent, skipInvalidData, skipInvalidPath} {
		if n := skipCounts[reason]; n > 0 {
			result.warnings = append(result.warnings, fmt.Sprintf("skipped %d report(s): %s", n, reason))
		}
	}

	m := monitor.Finish()
	slog.Info("organized reports",
		"organized", len(result.organized),
		"skipped", len(reports)-len(result.organized),
		"path_cache_entries", cache.Len(),
		"duration", m.Duration,
	)
	return result
}

func organizeOne(report model.Report, studentMap map[string]model.Student, cache *organize.PathCache, cfg Config, monitor *organize.Monitor) organizeOutcome {
	monitor.AddRecord()

	student, ok := studentMap[report.UserID]
	if !ok {
		monitor.AddError()
		return organizeOutcome{
			err: organize.NewError(opOrganize,
				fmt.Sprintf("student not found for report %s (userId %s)", report.ID, report.UserID), report.ID),
			skipReason: skipMissingStudent,
		}
	}

	var warnings []string
	if cfg.ValidateData {
		sv := organize.ValidateStudent(&student)
		rv := organize.ValidateReport(&report)
		if !sv.IsValid || !rv.IsValid {
			monitor.AddError()
			details := append(append([]string{}, sv.Errors...), rv.Errors...)
			return organizeOutcome{
				err: organize.NewError(opOrganize,
					fmt.Sprintf("invalid data for report %s: %s", report.ID, strings.Join(details, "; ")), report.ID),
				skipReason: skipInvalidData,
			}
		}
		for _, w := range sv.Warnings {
			monitor.AddWarning()
			warnings = append(warnings, fmt.Sprintf("student %s: %s", student.StudentID, w))
		}
		for _, w := range rv.Warnings {
			monitor.AddWarning()
			warnings = append(warnings, fmt.Sprintf("report %s: %s", report.ID, w))
		}
	}

	reportDate, err := organize.ParseTimestamp(report.SubmittedAt)
	if err != nil {
		monitor.AddError()
		return organizeOutcome{
			warnings: warnings,
			err: organize.WrapError(opOrganize,
				fmt.Sprintf("report %s has an unusable submittedAt", report.ID), err, report.ID),
			skipReason: skipInvalidData,
		}
	}

	hp := cache.Get(student, report.Subject, reportDate)
	pv := organize.ValidatePath(hp)
	if !pv.IsValid {
		monitor.AddError()
		return organizeOutcome{
			warnings: warnings,
			err: organize.NewError(opOrganize,
				fmt.Sprintf("invalid hierarchical path for report %s: %s", report.ID, strings.Join(pv.Errors, "; ")), report.ID),
			skipReason: skipInvalidPath,
		}
	}
	for _, w := range pv.Warnings {
		monitor.AddWarning()
		warnings = append(warnings, fmt.Sprintf("report %s: %s", report.ID, w))
	}

	fileName := organize.FileName(reportDate, report.Subject)
	fullPath := path.Join(organize.FilePath(hp), fileName)

	return organizeOutcome{
		report: &model.OrganizedReport{
			Student:  student,
			Report:   report,
			Path:     hp,
			FileName: fileName,
			FullPath: fullPath,
		},
		warnings: warnings,
	}
}

type writeOutcome struct {
	path    string
	skipped bool
	err     *organize.DataOrganizationError
}

type writeResult struct {
	exported []string
	errors   []*organize.DataOrganizationError
}

// writeFiles writes one JSON file per organized report. Each record is
// isolated: a failed write is recorded and the run moves on. Existing
// files are skipped unless OverwriteExisting is set; a skip is neither a
// success nor an error.
func (e *Exporter) writeFiles(ctx context.Context, organized []model.OrganizedReport, cfg Config) writeResult {
	monitor := organize.NewMonitor(opExportFiles)
	monitor.Start()

	outcomes, err := organize.ProcessBatches(ctx, organized, cfg.BatchSize,
		func(_ context.Context, batch []model.OrganizedReport) ([]writeOutcome, error) {
			out := make([]writeOutcome, 0, len(batch))
			for _, r := range batch {
				monitor.AddRecord()
				exported, skipped, werr := e.writeOne(r, cfg)
				if werr != nil {
					monitor.AddError()
				}
				out = append(out, writeOutcome{path: exported, skipped: skipped, err: werr})
			}
			return out, nil
		})

	var result writeResult
	if err != nil {
		result.errors = append(result.errors, organize.WrapError(opExportFiles, "file export aborted", err, nil))
		return result
	}

	skipped := 0
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			result.errors = append(result.errors, o.err)
		case o.skipped:
			skipped++
		default:
			result.exported = append(result.exported, o.path)
		}
	}

	m := monitor.Finish()
	slog.Info("exported files",
		"files_created", len(result.exported),
		"existing_skipped", skipped,
		"errors", len(result.errors),
		"duration", m.Duration,
	)
	return result
}

// writeOne performs the per-record export sequence: ensure the directory,
// honor skip/backup semantics, and write the pretty-printed JSON.
func (e *Exporter) writeOne(r model.OrganizedReport, cfg Config) (string, bool, *organize.DataOrganizationError) {
	fullFile := filepath.Join(cfg.BasePath, filepath.FromSlash(r.FullPath))
	dir := filepath.Dir(fullFile)

	// MkdirAll is idempotent, so concurrent records creating the same
	// directory cannot race into an error.
	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return "", false, organize.WrapError(opEnsureDir, fmt.Sprintf("failed to create directory %s", dir), err, r.FullPath)
	}

	exists, err := afero.Exists(e.fs, fullFile)
	if err != nil {
		return "", false, organize.WrapError(opWriteFile, fmt.Sprintf("failed to stat %s", fullFile), err, r.FullPath)
	}
	if exists && !cfg.OverwriteExisting {
		slog.Debug("skipping existing file", "path", r.FullPath)
		return "", true, nil
	}

	if cfg.CreateBackup && exists {
		if err := e.backupFile(fullFile); err != nil {
			return "", false, organize.WrapError(opBackupFile, fmt.Sprintf("failed to back up %s", fullFile), err, r.FullPath)
		}
	}

	data, err := json.MarshalIndent(buildExportJSON(r, time.Now().UTC()), "", "  ")
	if err != nil {
		return "", false, organize.WrapError(opWriteFile, fmt.Sprintf("failed to encode %s", r.FullPath), err, r.FullPath)
	}
	if err := afero.WriteFile(e.fs, fullFile, data, 0o644); err != nil {
		return "", false, organize.WrapError(opWriteFile, fmt.Sprintf("failed to write %s", fullFile), err, r.FullPath)
	}
	return fullFile, false, nil
}

// backupFile copies an existing file to "{path}.backup-{stamp}" where the
// stamp is the current UTC instant with colons and dots replaced by
// hyphens.
func (e *Exporter) backupFile(filePath string) error {
	stamp := backupStampReplacer.Replace(time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	data, err := afero.ReadFile(e.fs, filePath)
	if err != nil {
		return err
	}
	backupPath := filePath + ".backup-" + stamp
	if err := afero.WriteFile(e.fs, backupPath, data, 0o644); err != nil {
		return err
	}
	slog.Debug("backed up existing file", "path", filePath, "backup", backupPath)
	return nil
}

// buildExportJSON creates the on-disk representation of one organized
// report. Apart from the export date, the output is fully determined by
// the student and report inputs.
func buildExportJSON(r model.OrganizedReport, exportDate time.Time) model.ExportedReportJSON {
	answers := make([]model.AnswerExport, 0, len(r.Report.Answers))
	for _, a := range r.Report.Answers {
		answers = append(answers, model.AnswerExport{QuestionID: a.QuestionID, Answer: a.Answer})
	}

	return model.ExportedReportJSON{
		Metadata: model.ExportMetadata{
			ExportDate:       exportDate.Format(time.RFC3339),
			Version:          exportVersion,
			HierarchicalPath: organize.FilePath(r.Path),
			Student: model.StudentExport{
				ID:           r.Student.ID,
				Name:         r.Student.Name,
				Email:        r.Student.Email,
				StudentID:    r.Student.StudentID,
				Sede:         r.Student.Sede,
				AcademicYear: r.Student.AcademicYear,
				Division:     r.Student.Division,
				Curso:        r.Path.Curso,
			},
			Report: model.ReportExport{
				ID:          r.Report.ID,
				Subject:     r.Report.Subject,
				WeekStart:   r.Report.WeekStart,
				WeekEnd:     r.Report.WeekEnd,
				SubmittedAt: r.Report.SubmittedAt,
				Semana:      r.Path.Semana,
			},
		},
		Data: model.ExportData{Answers: answers},
	}
}
