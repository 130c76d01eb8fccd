package handlers

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/report"
)

//go:embed snapshot.schema.json
var snapshotSchemaJSON string

const (
	snapshotSchemaURL = "https://railsetu.dev/schemas/snapshot.schema.json"
	maxSnapshotBytes  = 4 << 20
)

func compileSnapshotSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(snapshotSchemaURL, strings.NewReader(snapshotSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(snapshotSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// DecisionHandler decides for snapshots posted by clients
type DecisionHandler struct {
	engine *engine.Engine
	stores []report.RunStore
	schema *jsonschema.Schema
}

// NewDecisionHandler creates a handler; runs are saved to every store
func NewDecisionHandler(e *engine.Engine, stores ...report.RunStore) (*DecisionHandler, error) {
	schema, err := compileSnapshotSchema()
	if err != nil {
		return nil, err
	}
	return &DecisionHandler{engine: e, stores: stores, schema: schema}, nil
}

// DecisionsResponse is the JSON response for POST /api/decisions
type DecisionsResponse struct {
	RunID         string                   `json:"runId,omitempty"`
	Decisions     map[string]engine.Result `json:"decisions"`
	Order         []string                 `json:"order"`
	CriticalCount int                      `json:"criticalCount"`
	Rejected      []*engine.RecordError    `json:"rejected"`
	Metrics       engine.SectionMetrics    `json:"metrics"`
}

// MetricsResponse is the JSON response for POST /api/metrics
type MetricsResponse struct {
	Section   string                `json:"section"`
	Metrics   engine.SectionMetrics `json:"metrics"`
	Timestamp time.Time             `json:"timestamp"`
}

// PostDecisions handles POST /api/decisions
// Invalid records are dropped and listed under "rejected"; the rest are decided.
func (h *DecisionHandler) PostDecisions(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.decodeSnapshot(w, r)
	if !ok {
		return
	}

	rep, err := h.engine.Decide(r.Context(), snap)
	if errors.Is(err, engine.ErrNotReady) {
		writeError(w, http.StatusServiceUnavailable, "Decision engine is not ready", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to decide", err)
		return
	}

	sec := h.engine.Section()
	metrics := engine.Throughput(sec, snap.Schedules, snap.Positions)
	resp := DecisionsResponse{
		Decisions: rep.Decisions,
		Order:     rep.Order,
		Rejected:  rep.Rejected,
		Metrics:   metrics,
	}
	if resp.Rejected == nil {
		resp.Rejected = []*engine.RecordError{}
	}
	for _, res := range rep.Decisions {
		if res.Decision != models.Proceed {
			resp.CriticalCount++
		}
	}

	if len(h.stores) > 0 {
		run, err := report.NewRun(models.SourceAPI, sec.Name(), time.Now().UTC(), rep, metrics)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to record run", err)
			return
		}
		resp.RunID = report.SaveAll(r.Context(), h.stores, run)
	}

	writeJSON(w, http.StatusOK, resp)
}

// PostMetrics handles POST /api/metrics
func (h *DecisionHandler) PostMetrics(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.decodeSnapshot(w, r)
	if !ok {
		return
	}

	sec := h.engine.Section()
	writeJSON(w, http.StatusOK, MetricsResponse{
		Section:   sec.Name(),
		Metrics:   engine.Throughput(sec, snap.Schedules, snap.Positions),
		Timestamp: time.Now().UTC(),
	})
}

// decodeSnapshot validates the body against the snapshot schema, then
// decodes it strictly. On failure it writes the 400 response itself.
func (h *DecisionHandler) decodeSnapshot(w http.ResponseWriter, r *http.Request) (engine.Snapshot, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", err)
		return engine.Snapshot{}, false
	}

	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Request body is not valid JSON", err)
		return engine.Snapshot{}, false
	}
	if err := h.schema.Validate(payload); err != nil {
		writeError(w, http.StatusBadRequest, "Snapshot does not match schema", err)
		return engine.Snapshot{}, false
	}

	var snap engine.Snapshot
	if err := strictUnmarshal(body, &snap); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid snapshot", err)
		return engine.Snapshot{}, false
	}
	if snap.Now.IsZero() {
		snap.Now = time.Now().UTC()
	}
	return snap, true
}

func strictUnmarshal(data []byte, target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return err
	}
	var extra interface{}
	if err := dec.Decode(&extra); err != io.EOF {
		return fmt.Errorf("unexpected trailing JSON payload")
	}
	return nil
}
