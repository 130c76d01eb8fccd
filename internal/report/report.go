package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Kartikesh07/RailSetuBackend/internal/db"
	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/google/uuid"
)

// RunStore persists decision runs
type RunStore interface {
	SaveRun(ctx context.Context, run *models.Run) (string, error)
}

// DelayRecorder folds delay observations into hourly statistics
type DelayRecorder interface {
	UpdateDelayStats(ctx context.Context, at time.Time, observations []db.DelayObservation) error
}

// TrainView is one train of a live report: its schedule joined with its position
type TrainView struct {
	TrainNumber        string             `json:"trainNumber"`
	TrainName          string             `json:"trainName"`
	TrainType          models.TrainType   `json:"trainType"`
	Priority           models.Priority    `json:"priority"`
	Origin             string             `json:"origin"`
	Destination        string             `json:"destination"`
	ScheduledDeparture time.Time          `json:"scheduledDeparture"`
	ScheduledArrival   time.Time          `json:"scheduledArrival"`
	CurrentKm          float64            `json:"currentKm"`
	CurrentStation     *string            `json:"currentStation"`
	Speed              float64            `json:"speed"`
	Status             models.TrainStatus `json:"status"`
	DelayMinutes       float64            `json:"delayMinutes"`
	Stops              []models.Stop      `json:"stops"`
}

// StationView is the station list entry of a live report
type StationView struct {
	Code string  `json:"code"`
	Name string  `json:"name"`
	Km   float64 `json:"km"`
}

// LiveReport is the payload of GET /api/live_report and of each streamed report
type LiveReport struct {
	Timestamp     time.Time                `json:"timestamp"`
	Section       string                   `json:"section"`
	RunID         string                   `json:"runId,omitempty"`
	Metrics       engine.SectionMetrics    `json:"metrics"`
	Decisions     map[string]engine.Result `json:"decisions"`
	CriticalCount int                      `json:"criticalCount"`
	Rejected      []*engine.RecordError    `json:"rejected,omitempty"`
	Trains        []TrainView              `json:"trains"`
	Stations      []StationView            `json:"stations"`
}

// Placeholder is served while the engine cannot decide yet
func Placeholder(section string) *LiveReport {
	return &LiveReport{
		Timestamp: time.Now().UTC(),
		Section:   section + " (Model Not Trained)",
		Decisions: map[string]engine.Result{},
		Trains:    []TrainView{},
		Stations:  []StationView{},
	}
}

// Reporter builds live reports: it pulls a snapshot from its source, decides,
// and records the outcome in every configured store.
type Reporter struct {
	engine *engine.Engine
	source Source
	stores []RunStore
	delays DelayRecorder
}

// Option configures a Reporter
type Option func(*Reporter)

// WithRunStores persists every report to each store; the first store's run ID is reported
func WithRunStores(stores ...RunStore) Option {
	return func(r *Reporter) {
		r.stores = append(r.stores, stores...)
	}
}

// WithDelayRecorder records the delay of every active train
func WithDelayRecorder(d DelayRecorder) Option {
	return func(r *Reporter) {
		r.delays = d
	}
}

func NewReporter(e *engine.Engine, src Source, opts ...Option) *Reporter {
	r := &Reporter{engine: e, source: src}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the engine reports are decided with
func (r *Reporter) Engine() *engine.Engine {
	return r.engine
}

// Generate builds one live report. It returns engine.ErrNotReady before
// touching the source when the engine cannot decide.
func (r *Reporter) Generate(ctx context.Context) (*LiveReport, error) {
	if !r.engine.Ready() {
		return nil, engine.ErrNotReady
	}

	snap, err := r.source.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	decided, err := r.engine.Decide(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to decide: %w", err)
	}

	sec := r.engine.Section()
	rep := &LiveReport{
		Timestamp: time.Now().UTC(),
		Section:   sec.Name(),
		Metrics:   engine.Throughput(sec, snap.Schedules, snap.Positions),
		Decisions: decided.Decisions,
		Rejected:  decided.Rejected,
		Trains:    trainViews(snap),
		Stations:  make([]StationView, 0, len(sec.Stations())),
	}
	for _, res := range decided.Decisions {
		if res.Decision != models.Proceed {
			rep.CriticalCount++
		}
	}
	for _, st := range sec.Stations() {
		rep.Stations = append(rep.Stations, StationView{Code: st.Code, Name: st.Name, Km: st.KmFromStart})
	}

	run, err := NewRun(r.source.Name(), sec.Name(), rep.Timestamp, decided, rep.Metrics)
	if err != nil {
		return nil, err
	}
	rep.RunID = SaveAll(ctx, r.stores, run)

	if r.delays != nil {
		if err := r.delays.UpdateDelayStats(ctx, rep.Timestamp, Observations(snap, decided.Rejected)); err != nil {
			// Non-fatal: the report is still served
			log.Printf("Report: failed to update delay stats: %v", err)
		}
	}

	log.Printf("Report: %d decisions, %d critical, %d rejected", len(rep.Decisions), rep.CriticalCount, len(rep.Rejected))
	return rep, nil
}

// NewRun converts an engine report into a storable run, results in snapshot order
func NewRun(source, section string, at time.Time, rep *engine.Report, metrics engine.SectionMetrics) (*models.Run, error) {
	data, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metrics: %w", err)
	}

	run := &models.Run{
		CreatedAt:     at,
		Source:        source,
		Section:       section,
		Metrics:       data,
		RejectedCount: len(rep.Rejected),
		Results:       make([]models.RunResult, 0, len(rep.Order)),
	}
	for _, number := range rep.Order {
		res := rep.Decisions[number]
		run.Results = append(run.Results, models.RunResult{
			TrainNumber: number,
			Decision:    res.Decision,
			Confidence:  res.Confidence,
			Reasoning:   res.Reasoning,
			HoldTarget:  res.HoldTarget,
		})
	}
	return run, nil
}

// SaveAll stores run in every store under one ID, minted here when run.ID
// is empty, and returns the ID reported by the first store that succeeded.
// Store failures are logged and do not stop the others.
func SaveAll(ctx context.Context, stores []RunStore, run *models.Run) string {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	runID := ""
	for _, s := range stores {
		id, err := s.SaveRun(ctx, run)
		if err != nil {
			log.Printf("Report: failed to save run: %v", err)
			continue
		}
		if runID == "" {
			runID = id
		}
	}
	return runID
}

// Observations returns one delay observation per active train with a known
// schedule. Trains the engine rejected are left out.
func Observations(snap engine.Snapshot, rejected []*engine.RecordError) []db.DelayObservation {
	skip := make(map[string]bool, len(rejected))
	for _, re := range rejected {
		skip[re.TrainNumber] = true
	}
	priority := make(map[string]models.Priority, len(snap.Schedules))
	for _, s := range snap.Schedules {
		if _, ok := priority[s.TrainNumber]; !ok {
			priority[s.TrainNumber] = s.Priority
		}
	}

	var out []db.DelayObservation
	for _, p := range snap.Positions {
		pr, ok := priority[p.TrainNumber]
		if !ok || skip[p.TrainNumber] || !p.Status.Active() {
			continue
		}
		out = append(out, db.DelayObservation{Priority: pr, DelayMinutes: p.DelayMinutes})
	}
	return out
}

func trainViews(snap engine.Snapshot) []TrainView {
	byNumber := make(map[string]models.TrainPosition, len(snap.Positions))
	for _, p := range snap.Positions {
		byNumber[p.TrainNumber] = p
	}

	views := []TrainView{}
	for _, s := range snap.Schedules {
		p, ok := byNumber[s.TrainNumber]
		if !ok {
			continue
		}
		stops := s.Stops
		if stops == nil {
			stops = []models.Stop{}
		}
		views = append(views, TrainView{
			TrainNumber:        s.TrainNumber,
			TrainName:          s.TrainName,
			TrainType:          s.TrainType,
			Priority:           s.Priority,
			Origin:             s.Origin,
			Destination:        s.Destination,
			ScheduledDeparture: s.ScheduledDeparture,
			ScheduledArrival:   s.ScheduledArrival,
			CurrentKm:          p.CurrentKm,
			CurrentStation:     p.CurrentStation,
			Speed:              p.Speed,
			Status:             p.Status,
			DelayMinutes:       p.DelayMinutes,
			Stops:              stops,
		})
	}
	return views
}
