// Package handler exposes the export engine over HTTP for instructor
// tooling: triggering full or single-report exports and reading dry-run
// statistics.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/intellego-platform/report-exporter/internal/export"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	exporter *export.Exporter
}

// New creates a new Handler.
func New(e *export.Exporter) *Handler {
	return &Handler{exporter: e}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/export", h.handleExportAll)
	r.Post("/api/export/reports/{reportID}", h.handleExportReport)
	r.Get("/api/export/statistics", h.handleStatistics)
	r.Get("/healthz", h.handleHealth)
}

// exportRequest is the JSON body for export endpoints. Pointer fields
// distinguish "not provided" from zero values so defaults apply.
type exportRequest struct {
	BasePath          *string           `json:"basePath"`
	BatchSize         *int              `json:"batchSize"`
	OverwriteExisting *bool             `json:"overwriteExisting"`
	CreateBackup      *bool             `json:"createBackup"`
	ValidateData      *bool             `json:"validateData"`
	IncludeAnswers    *bool             `json:"includeAnswers"`
	DateRange         *export.DateRange `json:"dateRange"`
	FilterBySubject   []string          `json:"filterBySubject"`
	FilterBySede      []string          `json:"filterBySede"`
}

func (req *exportRequest) config() export.Config {
	cfg := export.DefaultConfig()
	if req.BasePath != nil {
		cfg.BasePath = *req.BasePath
	}
	if req.BatchSize != nil {
		cfg.BatchSize = *req.BatchSize
	}
	if req.OverwriteExisting != nil {
		cfg.OverwriteExisting = *req.OverwriteExisting
	}
	if req.CreateBackup != nil {
		cfg.CreateBackup = *req.CreateBackup
	}
	if req.ValidateData != nil {
		cfg.ValidateData = *req.ValidateData
	}
	if req.IncludeAnswers != nil {
		cfg.IncludeAnswers = *req.IncludeAnswers
	}
	cfg.DateRange = req.DateRange
	cfg.FilterBySubject = req.FilterBySubject
	cfg.FilterBySede = req.FilterBySede
	return cfg
}

func (h *Handler) handleExportAll(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res := h.exporter.ExportAll(r.Context(), req.config())
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

func (h *Handler) handleExportReport(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportID")
	if reportID == "" {
		http.Error(w, "report ID is required", http.StatusBadRequest)
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res := h.exporter.ExportReport(r.Context(), reportID, req.config())
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	cfg := export.DefaultConfig()
	q := r.URL.Query()
	cfg.FilterBySubject = q["subject"]
	cfg.FilterBySede = q["sede"]

	if from := q.Get("from"); from != "" {
		start, err := time.Parse("2006-01-02", from)
		if err != nil {
			http.Error(w, "invalid from date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		to := start
		if raw := q.Get("to"); raw != "" {
			to, err = time.Parse("2006-01-02", raw)
			if err != nil {
				http.Error(w, "invalid to date, expected YYYY-MM-DD", http.StatusBadRequest)
				return
			}
		}
		cfg.DateRange = &export.DateRange{Start: start, End: to.Add(24*time.Hour - time.Second)}
	}

	stats, err := h.exporter.Statistics(r.Context(), cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
