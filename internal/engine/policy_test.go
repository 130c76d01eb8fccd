package engine

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

type stubClassifier struct {
	ready    bool
	decision models.Decision
	proba    [models.NumDecisions]float64
	err      error
	calls    atomic.Int32
}

func (s *stubClassifier) Ready() bool { return s.ready }

func (s *stubClassifier) Classify(Vector) (models.Decision, [models.NumDecisions]float64, error) {
	s.calls.Add(1)
	return s.decision, s.proba, s.err
}

// countingPolicy records how often the fallback policy is consulted
type countingPolicy struct {
	calls atomic.Int32
}

func (*countingPolicy) Name() string { return "counting" }
func (*countingPolicy) Ready() bool  { return true }

func (c *countingPolicy) choose(context.Context, *state, Features) (Choice, error) {
	c.calls.Add(1)
	return Choice{Decision: models.Proceed, Confidence: 0.5}, nil
}

func TestPriorityRuleOverridesPolicy(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	st := prepare(testSection(t), Snapshot{Now: testNow})

	for i := 0; i < 500; i++ {
		f := Features{
			TrainNumber:           "P",
			Priority:              models.Priority(3 + r.Intn(2)),
			TrainTypeEncoded:      1 + r.Intn(4),
			CurrentSpeed:          r.Float64() * 110,
			DelayMinutes:          r.Float64() * 9.999,
			DistanceToDestination: r.Float64() * 200,
			TrainsAhead:           r.Intn(10),
			SingleLineConflict:    r.Intn(2),
			PlatformAvailability:  r.Float64(),
			TimeOfDay:             r.Intn(24),
			TrainFrequency:        r.Intn(20),
			TimeToNextBottleneck:  r.Float64() * NoETA,
			DownstreamCongestion:  r.Float64() * 3,
			ConflictingTrainETA:   r.Float64() * NoETA,
		}

		p := &countingPolicy{}
		got, err := decide(context.Background(), p, st, f)
		if err != nil {
			t.Fatalf("decide: %v", err)
		}
		if got.Decision != models.GivePriority || got.Confidence != 1.0 {
			t.Fatalf("features %+v: got %+v, want GivePriority at 1.0", f, got)
		}
		if n := p.calls.Load(); n != 0 {
			t.Fatalf("policy consulted %d times for a guarded train", n)
		}
	}
}

func TestPolicyConsultedOutsideGuard(t *testing.T) {
	st := prepare(testSection(t), Snapshot{Now: testNow})
	tests := []struct {
		name     string
		priority models.Priority
		delay    float64
	}{
		{"high priority late", models.PriorityHigh, 10},
		{"critical very late", models.PriorityCritical, 45},
		{"medium on time", models.PriorityMedium, 0},
		{"low on time", models.PriorityLow, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &countingPolicy{}
			got, err := decide(context.Background(), p, st, Features{Priority: tc.priority, DelayMinutes: tc.delay})
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if p.calls.Load() != 1 || got.Decision != models.Proceed {
				t.Errorf("got %+v after %d policy calls, want policy decision", got, p.calls.Load())
			}
		})
	}
}

func TestHighPriorityOnTimeSkipsSimulation(t *testing.T) {
	p := &countingPolicy{}
	eng := New(testSection(t), p)
	snap := Snapshot{
		Now:       testNow,
		Schedules: []models.TrainSchedule{schedule("A", models.PriorityHigh, "AAA")},
		Positions: []models.TrainPosition{position("A", 20, 70, models.StatusRunning, 5)},
	}

	report, err := eng.Decide(context.Background(), snap)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got := report.Decisions["A"]; got.Decision != models.GivePriority || got.Confidence != 1.0 {
		t.Errorf("A = %+v, want GivePriority at 1.0", got)
	}
	if p.calls.Load() != 0 {
		t.Errorf("policy consulted %d times", p.calls.Load())
	}
}

func TestSimulationPolicyPicksCheapestAction(t *testing.T) {
	sec := testSection(t)
	snap := Snapshot{
		Now:       testNow,
		Schedules: []models.TrainSchedule{schedule("1", models.PriorityLow, "AAA")},
		Positions: []models.TrainPosition{position("1", 10, 80, models.StatusRunning, 20)},
	}
	st := prepare(sec, snap)
	f := st.extract()[0]

	got, err := NewSimulationPolicy().choose(context.Background(), st, f)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if got.Decision != models.Proceed {
		t.Errorf("decision = %v, want Proceed for an unobstructed train at line speed", got.Decision)
	}

	costs, err := st.candidateCosts(context.Background(), "1")
	if err != nil {
		t.Fatalf("candidateCosts: %v", err)
	}
	want := []float64{0, 2.4, 6, 6}
	for i := range want {
		if math.Abs(costs[i]-want[i]) > 1e-9 {
			t.Errorf("cost of %v = %v, want %v", simulatedCandidates[i], costs[i], want[i])
		}
	}
	if math.Abs(got.Confidence-costShare(costs, 0)) > 1e-12 {
		t.Errorf("confidence = %v, want %v", got.Confidence, costShare(costs, 0))
	}
}

func TestSimulationPolicyTiesKeepEnumerationOrder(t *testing.T) {
	sec := testSection(t)
	// A stopped train accrues the same delay under every candidate
	snap := Snapshot{
		Now:       testNow,
		Schedules: []models.TrainSchedule{schedule("1", models.PriorityLow, "AAA")},
		Positions: []models.TrainPosition{position("1", 10, 0, models.StatusStopped, 20)},
	}
	st := prepare(sec, snap)

	got, err := NewSimulationPolicy().choose(context.Background(), st, st.extract()[0])
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if got.Decision != models.Proceed {
		t.Errorf("decision = %v, want Proceed on a full tie", got.Decision)
	}
	if math.Abs(got.Confidence-0.25) > 1e-12 {
		t.Errorf("confidence = %v, want 0.25 on a four-way tie", got.Confidence)
	}
}

func TestCostShare(t *testing.T) {
	costs := []float64{0, 1, 3, 3}
	total := 1 + 0.5 + 0.25 + 0.25
	for i, c := range costs {
		want := (1 / (1 + c)) / total
		if got := costShare(costs, i); math.Abs(got-want) > 1e-12 {
			t.Errorf("costShare(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestModelPolicy(t *testing.T) {
	f := Features{TrainNumber: "7", Priority: models.PriorityLow}

	t.Run("nil classifier", func(t *testing.T) {
		p := NewModelPolicy(nil)
		if p.Ready() {
			t.Fatal("nil classifier should not be ready")
		}
		if _, err := p.choose(context.Background(), nil, f); !errors.Is(err, ErrNotReady) {
			t.Errorf("choose error = %v, want ErrNotReady", err)
		}
	})

	t.Run("classifier error", func(t *testing.T) {
		boom := errors.New("boom")
		p := NewModelPolicy(&stubClassifier{ready: true, err: boom})
		if _, err := p.choose(context.Background(), nil, f); !errors.Is(err, boom) {
			t.Errorf("choose error = %v, want wrapped classifier error", err)
		}
	})

	t.Run("invalid decision", func(t *testing.T) {
		p := NewModelPolicy(&stubClassifier{ready: true, decision: models.Decision(9)})
		if _, err := p.choose(context.Background(), nil, f); err == nil {
			t.Error("choose should reject an out-of-range decision")
		}
	})

	t.Run("class probability as confidence", func(t *testing.T) {
		p := NewModelPolicy(&stubClassifier{
			ready:    true,
			decision: models.StopAtStation,
			proba:    [models.NumDecisions]float64{0.1, 0.1, 0.6, 0.1, 0.1},
		})
		got, err := p.choose(context.Background(), nil, f)
		if err != nil {
			t.Fatalf("choose: %v", err)
		}
		if got != (Choice{Decision: models.StopAtStation, Confidence: 0.6}) {
			t.Errorf("choose = %+v", got)
		}
	})
}
