package export

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/intellego-platform/report-exporter/internal/model"
	"github.com/intellego-platform/report-exporter/internal/store"
)

func newTestExporter(t *testing.T) (*Exporter, *store.Store, afero.Fs) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("newTestExporter: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	fs := afero.NewMemMapFs()
	return NewWithFs(s, fs), s, fs
}

func seedStudent(t *testing.T, s *store.Store) string {
	t.Helper()
	id, err := s.InsertStudent(context.Background(), model.Student{
		Name:         "Mercedes Di Bernardo",
		Email:        "mercedes@intellego.edu.ar",
		StudentID:    "EST-2025-008",
		Sede:         "Colegiales",
		AcademicYear: "5to Año",
		Division:     "D",
		Subjects:     []string{"Física"},
	})
	if err != nil {
		t.Fatalf("seedStudent: %v", err)
	}
	return id
}

func seedReport(t *testing.T, s *store.Store, userID, subject, submittedAt string) string {
	t.Helper()
	id, err := s.InsertReport(context.Background(), model.Report{
		UserID:      userID,
		Subject:     subject,
		WeekStart:   "2025-07-21T00:00:00.000Z",
		WeekEnd:     "2025-07-27T23:59:59.000Z",
		SubmittedAt: submittedAt,
		Answers: []model.Answer{
			{QuestionID: "q1", Answer: "Aprendí cinemática"},
			{QuestionID: "q2", Answer: "Me costó el último ejercicio"},
		},
	})
	if err != nil {
		t.Fatalf("seedReport: %v", err)
	}
	return id
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BasePath = "exports"
	return cfg
}

const mercedesPath = "colegiales/5to-ano/fisica/d-5to-ano/EST-2025-008_mercedes-di-bernardo/julio-semana-4/2025-07-28_fisica_reporte.json"

func TestExportAll(t *testing.T) {
	e, s, fs := newTestExporter(t)
	userID := seedStudent(t, s)
	reportID := seedReport(t, s, userID, "Física", "2025-07-28T15:30:00.000Z")

	res := e.ExportAll(context.Background(), testConfig())
	if !res.Success {
		t.Fatalf("ExportAll failed: %+v", res.Errors)
	}
	if res.TotalReportsProcessed != 1 || res.TotalFilesCreated != 1 || res.SkippedReports != 0 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if res.RunID == "" {
		t.Error("expected a run ID")
	}

	wantFile := filepath.Join("exports", filepath.FromSlash(mercedesPath))
	exists, err := afero.Exists(fs, wantFile)
	if err != nil || !exists {
		t.Fatalf("expected file at %s (exists=%v err=%v)", wantFile, exists, err)
	}

	data, err := afero.ReadFile(fs, wantFile)
	if err != nil {
		t.Fatalf("read exported file: %v", err)
	}
	var exported model.ExportedReportJSON
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("unmarshal exported file: %v", err)
	}
	if exported.Metadata.Version != "2.0.0" {
		t.Errorf("version = %q, want 2.0.0", exported.Metadata.Version)
	}
	if exported.Metadata.HierarchicalPath != "colegiales/5to-ano/fisica/d-5to-ano/EST-2025-008_mercedes-di-bernardo/julio-semana-4" {
		t.Errorf("hierarchicalPath = %q", exported.Metadata.HierarchicalPath)
	}
	if exported.Metadata.Student.StudentID != "EST-2025-008" {
		t.Errorf("student ID = %q", exported.Metadata.Student.StudentID)
	}
	if exported.Metadata.Student.Curso != "d-5to-ano" {
		t.Errorf("curso = %q", exported.Metadata.Student.Curso)
	}
	if exported.Metadata.Report.ID != reportID {
		t.Errorf("report ID = %q, want %q", exported.Metadata.Report.ID, reportID)
	}
	if exported.Metadata.Report.Semana != "julio-semana-4" {
		t.Errorf("semana = %q", exported.Metadata.Report.Semana)
	}
	if len(exported.Data.Answers) != 2 || exported.Data.Answers[0].QuestionID != "q1" {
		t.Errorf("unexpected answers: %+v", exported.Data.Answers)
	}

	// Pretty-printed with two-space indentation.
	if !strings.Contains(string(data), "\n  \"metadata\"") {
		t.Error("exported JSON is not indented")
	}
}

func TestExportAllSkipsExistingFiles(t *testing.T) {
	e, s, fs := newTestExporter(t)
	userID := seedStudent(t, s)
	seedReport(t, s, userID, "Física", "2025-07-28T15:30:00.000Z")

	first := e.ExportAll(context.Background(), testConfig())
	if !first.Success || first.TotalFilesCreated != 1 {
		t.Fatalf("first run: %+v", first)
	}
	wantFile := filepath.Join("exports", filepath.FromSlash(mercedesPath))
	before, err := afero.ReadFile(fs, wantFile)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}

	second := e.ExportAll(context.Background(), testConfig())
	if !second.Success {
		t.Fatalf("second run failed: %+v", second.Errors)
	}
	if second.TotalFilesCreated != 0 || len(second.Errors) != 0 {
		t.Errorf("skip is neither success nor error: %+v", second)
	}

	after, err := afero.ReadFile(fs, wantFile)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(before) != string(after) {
		t.Error("existing file was modified despite skip semantics")
	}
}

func TestExportAllOverwriteWithBackup(t *testing.T) {
	e, s, fs := newTestExporter(t)
	userID := seedStudent(t, s)
	seedReport(t, s, userID, "Física", "2025-07-28T15:30:00.000Z")

	cfg := testConfig()
	if res := e.ExportAll(context.Background(), cfg); !res.Success {
		t.Fatalf("first run: %+v", res.Errors)
	}

	cfg.OverwriteExisting = true
	cfg.CreateBackup = true
	res := e.ExportAll(context.Background(), cfg)
	if !res.Success || res.TotalFilesCreated != 1 {
		t.Fatalf("overwrite run: %+v", res)
	}

	dir := filepath.Dir(filepath.Join("exports", filepath.FromSlash(mercedesPath)))
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	backups := 0
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".backup-") {
			backups++
		}
	}
	if backups != 1 {
		t.Errorf("expected 1 backup file, got %d", backups)
	}
}

func TestExportAllIsolatesRecordFailures(t *testing.T) {
	e, s, _ := newTestExporter(t)
	userID := seedStudent(t, s)
	seedReport(t, s, userID, "Física", "2025-07-28T15:30:00.000Z")
	seedReport(t, s, userID, "Química", "not-a-date")

	res := e.ExportAll(context.Background(), testConfig())
	if !res.Success {
		t.Fatalf("one bad record must not fail the run: %+v", res.Errors)
	}
	if res.TotalReportsProcessed != 2 {
		t.Errorf("processed = %d, want 2", res.TotalReportsProcessed)
	}
	if res.TotalFilesCreated != 1 {
		t.Errorf("files created = %d, want 1", res.TotalFilesCreated)
	}
	if res.SkippedReports != 1 {
		t.Errorf("skipped = %d, want 1", res.SkippedReports)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(res.Errors))
	}
	if res.Errors[0].Op != "organize-report-data" {
		t.Errorf("error op = %q", res.Errors[0].Op)
	}
}

func TestExportAllSkipsReportWithoutStudent(t *testing.T) {
	e, s, _ := newTestExporter(t)
	userID := seedStudent(t, s)
	seedReport(t, s, userID, "Física", "2025-07-28T15:30:00.000Z")
	seedReport(t, s, "ghost-user", "Química", "2025-07-28T16:30:00.000Z")

	res := e.ExportAll(context.Background(), testConfig())
	if !res.Success {
		t.Fatalf("run failed: %+v", res.Errors)
	}
	if res.SkippedReports != 1 || res.TotalFilesCreated != 1 {
		t.Errorf("unexpected counts: %+v", res)
	}
	if len(res.Errors) != 1 {
		t.Errorf("expected the orphaned report's error to be recorded, got %d", len(res.Errors))
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "missing-student") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a missing-student warning, got %v", res.Warnings)
	}
}

func TestExportAllNoStudents(t *testing.T) {
	e, _, _ := newTestExporter(t)

	res := e.ExportAll(context.Background(), testConfig())
	if res.Success {
		t.Fatal("empty student table must fail the run")
	}
	if len(res.Errors) != 1 || res.Errors[0].Op != "export-all-reports" {
		t.Fatalf("unexpected errors: %+v", res.Errors)
	}
}

func TestExportAllNoReports(t *testing.T) {
	e, s, _ := newTestExporter(t)
	seedStudent(t, s)

	res := e.ExportAll(context.Background(), testConfig())
	if !res.Success {
		t.Fatalf("zero reports is a successful no-op: %+v", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "no reports found") {
		t.Errorf("expected a no-reports warning, got %v", res.Warnings)
	}
	if res.TotalFilesCreated != 0 {
		t.Errorf("files created = %d, want 0", res.TotalFilesCreated)
	}
}

func TestExportAllValidationSkipsInvalidData(t *testing.T) {
	e, s, _ := newTestExporter(t)
	userID, err := s.InsertStudent(context.Background(), model.Student{
		// Missing email fails validation.
		Name:         "Bruno Díaz",
		StudentID:    "EST-2025-002",
		Sede:         "Congreso",
		AcademicYear: "4to Año",
		Division:     "B",
	})
	if err != nil {
		t.Fatalf("InsertStudent: %v", err)
	}
	seedReport(t, s, userID, "Física", "2025-07-28T15:30:00.000Z")

	res := e.ExportAll(context.Background(), testConfig())
	if res.Success {
		t.Fatal("nothing organized should fail the run")
	}

	// With validation off, the same data exports fine.
	cfg := testConfig()
	cfg.ValidateData = false
	res = e.ExportAll(context.Background(), cfg)
	if !res.Success || res.TotalFilesCreated != 1 {
		t.Fatalf("validation-off run: %+v", res)
	}
}

func TestExportAllSubjectFilter(t *testing.T) {
	e, s, _ := newTestExporter(t)
	userID := seedStudent(t, s)
	seedReport(t, s, userID, "Física", "2025-07-28T15:30:00.000Z")
	seedReport(t, s, userID, "Química", "2025-07-28T16:30:00.000Z")

	cfg := testConfig()
	cfg.FilterBySubject = []string{"Física"}
	res := e.ExportAll(context.Background(), cfg)
	if !res.Success {
		t.Fatalf("run failed: %+v", res.Errors)
	}
	if res.TotalReportsProcessed != 1 || res.TotalFilesCreated != 1 {
		t.Errorf("filter not applied: %+v", res)
	}
}

func TestExportReport(t *testing.T) {
	e, s, fs := newTestExporter(t)
	userID := seedStudent(t, s)
	reportID := seedReport(t, s, userID, "Física", "2025-07-28T15:30:00.000Z")

	res := e.ExportReport(context.Background(), reportID, testConfig())
	if !res.Success || res.TotalFilesCreated != 1 {
		t.Fatalf("ExportReport: %+v", res)
	}

	wantFile := filepath.Join("exports", filepath.FromSlash(mercedesPath))
	exists, err := afero.Exists(fs, wantFile)
	if err != nil || !exists {
		t.Fatalf("expected file at %s", wantFile)
	}
}

func TestExportReportNotFound(t *testing.T) {
	e, s, _ := newTestExporter(t)
	seedStudent(t, s)

	res := e.ExportReport(context.Background(), "missing", testConfig())
	if res.Success {
		t.Fatal("missing report must fail")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Message, "not found") {
		t.Fatalf("unexpected errors: %+v", res.Errors)
	}
}

func TestStatistics(t *testing.T) {
	e, s, _ := newTestExporter(t)
	userID := seedStudent(t, s)
	seedReport(t, s, userID, "Física", "2025-07-28T15:30:00.000Z")
	seedReport(t, s, userID, "Física", "2025-07-21T15:30:00.000Z")
	seedReport(t, s, userID, "Química", "2025-07-28T16:30:00.000Z")

	stats, err := e.Statistics(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalStudents != 1 || stats.TotalReports != 3 || stats.EstimatedFiles != 3 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if stats.ReportsBySubject["Física"] != 2 || stats.ReportsBySubject["Química"] != 1 {
		t.Errorf("unexpected subject counts: %v", stats.ReportsBySubject)
	}
	if stats.ReportsBySede["Colegiales"] != 3 {
		t.Errorf("unexpected sede counts: %v", stats.ReportsBySede)
	}
}

func TestStatisticsSubjectFilter(t *testing.T) {
	e, s, _ := newTestExporter(t)
	userID := seedStudent(t, s)
	seedReport(t, s, userID, "Física", "2025-07-28T15:30:00.000Z")
	seedReport(t, s, userID, "Química", "2025-07-28T16:30:00.000Z")

	cfg := testConfig()
	cfg.FilterBySubject = []string{"Química"}
	stats, err := e.Statistics(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalReports != 1 || stats.ReportsBySubject["Química"] != 1 {
		t.Errorf("filter not applied: %+v", stats)
	}
}
