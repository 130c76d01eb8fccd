package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
)

// Pinger is a store whose connectivity can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports store connectivity and engine readiness
type HealthHandler struct {
	engine *engine.Engine
	stores map[string]Pinger
}

// NewHealthHandler checks every named store on each request
func NewHealthHandler(e *engine.Engine, stores map[string]Pinger) *HealthHandler {
	return &HealthHandler{engine: e, stores: stores}
}

// HealthResponse is the JSON response for GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Databases map[string]string `json:"databases"`
	Engine    EngineHealth      `json:"engine"`
	Timestamp time.Time         `json:"timestamp"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// EngineHealth describes the decision policy in use
type EngineHealth struct {
	Ready  bool   `json:"ready"`
	Policy string `json:"policy"`
}

// GetHealth handles GET /health
// Responds 503 when any store is unreachable; an unready engine only degrades status.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Databases: make(map[string]string, len(h.stores)),
		Engine:    EngineHealth{Ready: h.engine.Ready()},
		Timestamp: time.Now().UTC(),
	}
	if p := h.engine.Policy(); p != nil {
		resp.Engine.Policy = p.Name()
	}

	status := http.StatusOK
	for name, store := range h.stores {
		if err := store.Ping(ctx); err != nil {
			resp.Databases[name] = "disconnected"
			if resp.Errors == nil {
				resp.Errors = map[string]string{}
			}
			resp.Errors[name] = err.Error()
			resp.Status = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Databases[name] = "connected"
	}
	if status == http.StatusOK && !resp.Engine.Ready {
		resp.Status = "degraded"
	}

	writeJSON(w, status, resp)
}
