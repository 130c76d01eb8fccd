package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
	"github.com/Kartikesh07/RailSetuBackend/internal/report"
)

// ReportHandler serves freshly generated live reports
type ReportHandler struct {
	reporter *report.Reporter
}

func NewReportHandler(r *report.Reporter) *ReportHandler {
	return &ReportHandler{reporter: r}
}

// GetLiveReport handles GET /api/live_report
// Responds 503 with a placeholder report while the engine is not ready.
func (h *ReportHandler) GetLiveReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	rep, err := h.reporter.Generate(ctx)
	if errors.Is(err, engine.ErrNotReady) {
		writeJSON(w, http.StatusServiceUnavailable, report.Placeholder(h.reporter.Engine().Section().Name()))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate live report", err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, rep)
}
