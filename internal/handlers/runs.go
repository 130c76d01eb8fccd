package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

const maxRunLimit = 500

// RunRepository defines the interface for stored decision runs
type RunRepository interface {
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
}

// RunHandler handles HTTP requests for stored decision runs
type RunHandler struct {
	repo RunRepository
}

func NewRunHandler(repo RunRepository) *RunHandler {
	return &RunHandler{repo: repo}
}

// ListRunsResponse is the JSON response for GET /api/runs
type ListRunsResponse struct {
	Runs  []models.RunSummary `json:"runs"`
	Count int                 `json:"count"`
}

// RunResponse is the JSON response for GET /api/runs/{runId}
type RunResponse struct {
	*models.Run
	CriticalCount int `json:"criticalCount"`
}

// ListRuns handles GET /api/runs
// Query params: limit (optional, default 50, max 500)
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunLimit {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "limit must be an integer between 1 and 500",
			})
			return
		}
		limit = n
	}

	runs, err := h.repo.ListRuns(ctx, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	writeJSON(w, http.StatusOK, ListRunsResponse{Runs: runs, Count: len(runs)})
}

// GetRun handles GET /api/runs/{runId}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	runID := chi.URLParam(r, "runId")
	if runID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "runId parameter is required"})
		return
	}

	run, err := h.repo.GetRun(ctx, runID)
	if errors.Is(err, models.ErrRunNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "Run not found",
			Details: map[string]interface{}{"runId": runID},
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve run", err)
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{Run: run, CriticalCount: run.CriticalCount()})
}
