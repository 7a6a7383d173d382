package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/yegors/birdnest/internal/monitor"
	"github.com/yegors/birdnest/internal/report"
	"github.com/yegors/birdnest/internal/storage/sqlite"
	"github.com/yegors/birdnest/pkg/logger"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// StatusSource reports the monitor status
type StatusSource interface {
	Status() monitor.Status
}

// ReportSource returns the latest published report
type ReportSource interface {
	Latest() (*report.Report, time.Time)
}

// HistorySource returns archived sightings for a drone
type HistorySource interface {
	History(ctx context.Context, serial string, limit int) ([]*sqlite.SightingRecord, error)
}

// Handler serves the API endpoints
type Handler struct {
	status     StatusSource
	reports    ReportSource
	history    HistorySource
	websocket  http.HandlerFunc
	reportPath string
	logger     *logger.Logger
}

// NewHandler creates a new API handler. history and websocket may be nil when
// those features are disabled.
func NewHandler(status StatusSource, reports ReportSource, history HistorySource, websocket http.HandlerFunc, reportPath string, logger *logger.Logger) *Handler {
	return &Handler{
		status:     status,
		reports:    reports,
		history:    history,
		websocket:  websocket,
		reportPath: reportPath,
		logger:     logger.Named("api-handler"),
	}
}

// GetViolations returns the latest report as a JSON array
func (h *Handler) GetViolations(w http.ResponseWriter, r *http.Request) {
	rep, publishedAt := h.reports.Latest()
	if rep == nil {
		rep = &report.Report{}
	} else {
		w.Header().Set("Last-Modified", publishedAt.UTC().Format(http.TimeFormat))
	}
	h.writeJSON(w, http.StatusOK, rep)
}

// GetViolationHistory returns archived sightings of one drone
func (h *Handler) GetViolationHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	serial := chi.URLParam(r, "id")
	records, err := h.history.History(r.Context(), serial, limit)
	if err != nil {
		h.logger.Error("Failed to query history", logger.String("serial", serial), logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	if records == nil {
		records = []*sqlite.SightingRecord{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"serial":    serial,
		"count":     len(records),
		"sightings": records,
	})
}

// HandleWebSocket streams reports to the client
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.websocket == nil {
		h.writeError(w, http.StatusNotFound, "websocket is disabled")
		return
	}
	h.websocket(w, r)
}

type statusResponse struct {
	monitor.Status
	LastSuccessAgo string `json:"last_success_ago,omitempty"`
}

// GetStatus returns the monitor status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.status.Status()
	resp := statusResponse{Status: status}
	if !status.LastSuccessAt.IsZero() {
		resp.LastSuccessAgo = humanize.Time(status.LastSuccessAt)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetHealth is ready once a cycle has succeeded and the latest one did not fail
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := h.status.Status()
	if status.LastSuccessAt.IsZero() || status.LastError != "" {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  status.LastError,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ServeReportFile serves the published report file
func (h *Handler) ServeReportFile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, h.reportPath)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write response", logger.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
