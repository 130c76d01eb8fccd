package engine

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/section"
)

// Result is the final recommendation for one train
type Result struct {
	Decision   models.Decision `json:"decision"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
	HoldTarget string          `json:"holdTarget,omitempty"`
}

// Report is the outcome of one decisioning call.
// Order lists the decided trains in snapshot order.
type Report struct {
	Decisions map[string]Result `json:"decisions"`
	Order     []string          `json:"order"`
	Rejected  []*RecordError    `json:"rejected,omitempty"`
}

// Engine turns snapshots of one corridor into arbitrated decisions.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	section *section.Section
	policy  Policy
	workers int
}

// Option configures an Engine
type Option func(*Engine)

// WithWorkers bounds how many trains are evaluated in parallel
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates an engine for sec using policy p
func New(sec *section.Section, p Policy, opts ...Option) *Engine {
	e := &Engine{
		section: sec,
		policy:  p,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Section returns the corridor this engine decides for
func (e *Engine) Section() *section.Section {
	return e.section
}

// Policy returns the configured action-selection policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Ready reports whether Decide can currently produce decisions
func (e *Engine) Ready() bool {
	return e.policy != nil && e.policy.Ready()
}

// Decide recommends an action for every eligible train in snap.
// It returns ErrNotReady when the policy cannot decide yet; a snapshot with
// no eligible trains yields an empty report and no error.
func (e *Engine) Decide(ctx context.Context, snap Snapshot) (*Report, error) {
	if !e.Ready() {
		return nil, ErrNotReady
	}

	st := prepare(e.section, snap)
	if len(st.rejected) > 0 {
		log.Printf("Engine: rejected %d of %d position records", len(st.rejected), len(snap.Positions))
	}

	features := st.extract()
	report := &Report{
		Decisions: make(map[string]Result, len(features)),
		Order:     make([]string, 0, len(features)),
		Rejected:  st.rejected,
	}
	if len(features) == 0 {
		return report, nil
	}

	results := make([]Result, len(features))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range features {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f := features[i]
			choice, err := decide(gctx, e.policy, st, f)
			if err != nil {
				return fmt.Errorf("decide train %s: %w", f.TrainNumber, err)
			}
			reasoning, hold := explain(f, choice.Decision, features)
			results[i] = Result{
				Decision:   choice.Decision,
				Confidence: choice.Confidence,
				Reasoning:  reasoning,
				HoldTarget: hold,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw := make(map[string]Result, len(features))
	for i, f := range features {
		raw[f.TrainNumber] = results[i]
		report.Order = append(report.Order, f.TrainNumber)
	}
	report.Decisions = Arbitrate(report.Order, raw)

	return report, nil
}
