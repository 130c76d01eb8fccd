package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Kartikesh07/RailSetuBackend/internal/metrics"
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

// DelayRepository defines the interface for delay statistics
type DelayRepository interface {
	GetHourlyDelayStats(ctx context.Context, hours int) ([]models.DelayHourlyStat, error)
}

// DelayHandler handles HTTP requests for delay statistics
type DelayHandler struct {
	repo DelayRepository
}

func NewDelayHandler(repo DelayRepository) *DelayHandler {
	return &DelayHandler{repo: repo}
}

// DelaySummary pools every hourly bucket of the requested period
type DelaySummary struct {
	ObservationCount int     `json:"observationCount"`
	MeanDelayMinutes float64 `json:"meanDelayMinutes"`
	StdDevMinutes    float64 `json:"stdDevMinutes"`
	MaxDelayMinutes  float64 `json:"maxDelayMinutes"`
}

// DelayStatsResponse is the response for GET /api/delays/stats
type DelayStatsResponse struct {
	Summary     DelaySummary             `json:"summary"`
	HourlyStats []models.DelayHourlyStat `json:"hourlyStats"`
	PeriodHours int                      `json:"periodHours"`
	LastChecked time.Time                `json:"lastChecked"`
}

// GetDelayStats handles GET /api/delays/stats
// Query params: period (optional, default "24h")
func (h *DelayHandler) GetDelayStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Support formats like "24h", "48h", "168h" (1 week)
	hours := 24
	if periodStr := r.URL.Query().Get("period"); periodStr != "" {
		if len(periodStr) > 1 && periodStr[len(periodStr)-1] == 'h' {
			if h, err := strconv.Atoi(periodStr[:len(periodStr)-1]); err == nil && h > 0 && h <= 720 {
				hours = h
			}
		}
	}

	stats, err := h.repo.GetHourlyDelayStats(ctx, hours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get hourly delay stats", err)
		return
	}

	writeJSON(w, http.StatusOK, DelayStatsResponse{
		Summary:     summarise(stats),
		HourlyStats: stats,
		PeriodHours: hours,
		LastChecked: time.Now().UTC(),
	})
}

func summarise(stats []models.DelayHourlyStat) DelaySummary {
	var pooled metrics.Running
	var maxDelay float64
	for _, s := range stats {
		pooled.Merge(*metrics.Resume(s.MeanDelayMinutes, s.StdDevMinutes, s.ObservationCount))
		if s.MaxDelayMinutes > maxDelay {
			maxDelay = s.MaxDelayMinutes
		}
	}
	return DelaySummary{
		ObservationCount: pooled.Count,
		MeanDelayMinutes: metrics.Round2(pooled.Mean),
		StdDevMinutes:    metrics.Round2(pooled.StdDev()),
		MaxDelayMinutes:  maxDelay,
	}
}
