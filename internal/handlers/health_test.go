package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Kartikesh07/RailSetuBackend/internal/approx"
	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
	"github.com/Kartikesh07/RailSetuBackend/internal/scenario"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthy(context.Context) error { return nil }

func TestGetHealth(t *testing.T) {
	sec := scenario.SolapurWadiSection()
	simulation := engine.New(sec, engine.NewSimulationPolicy())
	untrained := engine.New(sec, engine.NewModelPolicy(approx.NewForest(5)))

	tests := []struct {
		name       string
		engine     *engine.Engine
		stores     map[string]Pinger
		wantCode   int
		wantStatus string
		wantPolicy string
	}{
		{
			name:       "all connected",
			engine:     simulation,
			stores:     map[string]Pinger{"sqlite": pingFunc(healthy), "postgres": pingFunc(healthy)},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantPolicy: "simulation",
		},
		{
			name:       "model not trained",
			engine:     untrained,
			stores:     map[string]Pinger{"sqlite": pingFunc(healthy)},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
			wantPolicy: "model",
		},
		{
			name:   "store down",
			engine: untrained,
			stores: map[string]Pinger{
				"sqlite":   pingFunc(healthy),
				"postgres": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "error",
			wantPolicy: "model",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(tc.engine, tc.stores)
			rec := httptest.NewRecorder()
			h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			expectStatus(t, rec, tc.wantCode)

			var resp HealthResponse
			decodeBody(t, rec, &resp)
			if resp.Status != tc.wantStatus || resp.Engine.Policy != tc.wantPolicy {
				t.Errorf("status %q policy %q, want %q %q", resp.Status, resp.Engine.Policy, tc.wantStatus, tc.wantPolicy)
			}
			if len(resp.Databases) != len(tc.stores) {
				t.Errorf("Databases = %v", resp.Databases)
			}
			if tc.wantCode == http.StatusServiceUnavailable {
				if resp.Databases["postgres"] != "disconnected" || resp.Errors["postgres"] != "connection refused" {
					t.Errorf("response = %+v", resp)
				}
				if resp.Databases["sqlite"] != "connected" {
					t.Errorf("sqlite = %q, want connected", resp.Databases["sqlite"])
				}
			}
		})
	}
}
