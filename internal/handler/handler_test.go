package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"

	"github.com/intellego-platform/report-exporter/internal/export"
	"github.com/intellego-platform/report-exporter/internal/model"
	"github.com/intellego-platform/report-exporter/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("newTestServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	h := New(export.NewWithFs(s, afero.NewMemMapFs()))
	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, s
}

func seedStudentAndReport(t *testing.T, s *store.Store) string {
	t.Helper()
	ctx := context.Background()
	userID, err := s.InsertStudent(ctx, model.Student{
		Name:         "Mercedes Di Bernardo",
		Email:        "mercedes@intellego.edu.ar",
		StudentID:    "EST-2025-008",
		Sede:         "Colegiales",
		AcademicYear: "5to Año",
		Division:     "D",
	})
	if err != nil {
		t.Fatalf("InsertStudent: %v", err)
	}
	reportID, err := s.InsertReport(ctx, model.Report{
		UserID:      userID,
		Subject:     "Física",
		WeekStart:   "2025-07-21T00:00:00Z",
		WeekEnd:     "2025-07-27T23:59:59Z",
		SubmittedAt: "2025-07-28T15:30:00Z",
		Answers:     []model.Answer{{QuestionID: "q1", Answer: "respuesta"}},
	})
	if err != nil {
		t.Fatalf("InsertReport: %v", err)
	}
	return reportID
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestExportAllEndpoint(t *testing.T) {
	srv, s := newTestServer(t)
	seedStudentAndReport(t, s)

	resp, err := http.Post(srv.URL+"/api/export", "application/json", strings.NewReader(`{"basePath":"exports"}`))
	if err != nil {
		t.Fatalf("POST /api/export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var res export.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !res.Success || res.TotalFilesCreated != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExportAllEndpointEmptyBody(t *testing.T) {
	srv, s := newTestServer(t)
	seedStudentAndReport(t, s)

	// No body means default configuration.
	resp, err := http.Post(srv.URL+"/api/export", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestExportAllEndpointFailure(t *testing.T) {
	srv, _ := newTestServer(t)

	// Empty database: no students is a hard failure.
	resp, err := http.Post(srv.URL+"/api/export", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}

	var res export.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Success {
		t.Error("expected Success=false")
	}
}

func TestExportAllEndpointBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/export", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("POST /api/export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestExportReportEndpoint(t *testing.T) {
	srv, s := newTestServer(t)
	reportID := seedStudentAndReport(t, s)

	resp, err := http.Post(srv.URL+"/api/export/reports/"+reportID, "application/json", nil)
	if err != nil {
		t.Fatalf("POST export report: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var res export.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !res.Success || res.TotalFilesCreated != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExportReportEndpointNotFound(t *testing.T) {
	srv, s := newTestServer(t)
	seedStudentAndReport(t, s)

	resp, err := http.Post(srv.URL+"/api/export/reports/missing", "application/json", nil)
	if err != nil {
		t.Fatalf("POST export report: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	srv, s := newTestServer(t)
	seedStudentAndReport(t, s)

	resp, err := http.Get(srv.URL + "/api/export/statistics")
	if err != nil {
		t.Fatalf("GET statistics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats export.Statistics
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.TotalStudents != 1 || stats.TotalReports != 1 {
		t.Errorf("unexpected statistics: %+v", stats)
	}
}

func TestStatisticsEndpointFilters(t *testing.T) {
	srv, s := newTestServer(t)
	seedStudentAndReport(t, s)

	resp, err := http.Get(srv.URL + "/api/export/statistics?subject=Química")
	if err != nil {
		t.Fatalf("GET statistics: %v", err)
	}
	defer resp.Body.Close()

	var stats export.Statistics
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.TotalReports != 0 {
		t.Errorf("subject filter not applied: %+v", stats)
	}
}

func TestStatisticsEndpointBadDate(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/export/statistics?from=28-07-2025")
	if err != nil {
		t.Fatalf("GET statistics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
