package engine

import (
	"context"
	"fmt"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

// Short-circuit guard: a high-priority train running close to time is given
// priority without simulation.
const (
	priorityGuard      = models.PriorityHigh
	delayGuardMinutes  = 10.0
	ruleConfidence     = 1.0
	overrideConfidence = 0.99
)

// simulatedCandidates are the actions scored by simulation, in tie-break order
var simulatedCandidates = []models.Decision{
	models.Proceed,
	models.ReduceSpeed,
	models.StopAtStation,
	models.HoldOrReroute,
}

// Classifier is the approximator contract: it maps a feature vector to one
// of the five decisions plus a per-class probability.
type Classifier interface {
	Ready() bool
	Classify(v Vector) (models.Decision, [models.NumDecisions]float64, error)
}

// Choice is a policy's verdict for one train
type Choice struct {
	Decision   models.Decision
	Confidence float64
}

// Policy selects an action for a train not covered by the priority rule.
// Implementations live in this package; use NewSimulationPolicy or NewModelPolicy.
type Policy interface {
	Name() string
	Ready() bool
	choose(ctx context.Context, st *state, f Features) (Choice, error)
}

// shortCircuit reports whether the priority rule decides for this train
func shortCircuit(f Features) bool {
	return f.Priority >= priorityGuard && f.DelayMinutes < delayGuardMinutes
}

// decide applies the priority rule and falls back to the policy
func decide(ctx context.Context, p Policy, st *state, f Features) (Choice, error) {
	if shortCircuit(f) {
		return Choice{Decision: models.GivePriority, Confidence: ruleConfidence}, nil
	}
	return p.choose(ctx, st, f)
}

// SimulationPolicy scores every candidate action with the kinematic simulator
type SimulationPolicy struct{}

// NewSimulationPolicy returns the simulator-backed policy, which is always ready
func NewSimulationPolicy() *SimulationPolicy {
	return &SimulationPolicy{}
}

func (*SimulationPolicy) Name() string { return "simulation" }
func (*SimulationPolicy) Ready() bool  { return true }

func (*SimulationPolicy) choose(ctx context.Context, st *state, f Features) (Choice, error) {
	costs, err := st.candidateCosts(ctx, f.TrainNumber)
	if err != nil {
		return Choice{}, err
	}

	best := 0
	for i := range costs {
		if costs[i] < costs[best] {
			best = i
		}
	}
	return Choice{
		Decision:   simulatedCandidates[best],
		Confidence: costShare(costs, best),
	}, nil
}

// candidateCosts simulates each candidate on its own scratch copy
func (st *state) candidateCosts(ctx context.Context, trainNumber string) ([]float64, error) {
	costs := make([]float64, len(simulatedCandidates))
	for i, action := range simulatedCandidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cost, err := st.simulate(trainNumber, action, nil)
		if err != nil {
			return nil, fmt.Errorf("simulate %s for train %s: %w", action, trainNumber, err)
		}
		costs[i] = cost
	}
	return costs, nil
}

// costShare turns costs into a confidence in the chosen candidate:
// its share of the inverse costs. Equal costs give 1/len(costs).
func costShare(costs []float64, chosen int) float64 {
	sum := 0.0
	for _, c := range costs {
		sum += 1 / (1 + c)
	}
	return (1 / (1 + costs[chosen])) / sum
}

// ModelPolicy delegates to an external approximator
type ModelPolicy struct {
	classifier Classifier
}

// NewModelPolicy wraps c; the policy is ready once c is
func NewModelPolicy(c Classifier) *ModelPolicy {
	return &ModelPolicy{classifier: c}
}

func (*ModelPolicy) Name() string { return "model" }

func (m *ModelPolicy) Ready() bool {
	return m.classifier != nil && m.classifier.Ready()
}

func (m *ModelPolicy) choose(_ context.Context, _ *state, f Features) (Choice, error) {
	if !m.Ready() {
		return Choice{}, ErrNotReady
	}
	d, proba, err := m.classifier.Classify(f.Vector())
	if err != nil {
		return Choice{}, fmt.Errorf("classify train %s: %w", f.TrainNumber, err)
	}
	if !d.Valid() {
		return Choice{}, fmt.Errorf("classifier returned invalid decision %d for train %s", int(d), f.TrainNumber)
	}
	return Choice{Decision: d, Confidence: proba[d]}, nil
}
