package engine

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

func twoTrainSnapshot() Snapshot {
	return Snapshot{
		Now: testNow,
		Schedules: []models.TrainSchedule{
			schedule("L", models.PriorityMedium, "AAA"),
			schedule("F", models.PriorityMedium, "AAA"),
		},
		Positions: []models.TrainPosition{
			position("L", 100, 80, models.StatusRunning, 0),
			position("F", 96, 80, models.StatusRunning, 0),
		},
	}
}

func traceOf(t *testing.T, row StepTrace, number string) TrainTrace {
	t.Helper()
	for _, tr := range row.Trains {
		if tr.TrainNumber == number {
			return tr
		}
	}
	t.Fatalf("train %s missing from step %d", number, row.Minute)
	return TrainTrace{}
}

func TestHeadwayCapsFollower(t *testing.T) {
	_, steps, err := Trace(testSection(t), twoTrainSnapshot(), "F", models.Proceed)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if len(steps) != HorizonMinutes/StepMinutes {
		t.Fatalf("got %d steps, want %d", len(steps), HorizonMinutes/StepMinutes)
	}

	first := steps[0]
	if first.Minute != StepMinutes {
		t.Errorf("first step minute = %d, want %d", first.Minute, StepMinutes)
	}

	follower := traceOf(t, first, "F")
	if follower.EffectiveSpeed != 20 {
		t.Errorf("follower effective speed = %v, want 20", follower.EffectiveSpeed)
	}
	if math.Abs(follower.Km-(96+20.0*5/60)) > 1e-9 {
		t.Errorf("follower km = %v, want 97.667", follower.Km)
	}

	leader := traceOf(t, first, "L")
	if leader.EffectiveSpeed != 80 {
		t.Errorf("leader effective speed = %v, want 80", leader.EffectiveSpeed)
	}
	if math.Abs(leader.Km-(100+80.0*5/60)) > 1e-9 {
		t.Errorf("leader km = %v, want 106.667", leader.Km)
	}
}

func TestHeadwayIgnoresOpposingAndDistantTrains(t *testing.T) {
	snap := twoTrainSnapshot()
	snap.Schedules[0].Origin, snap.Schedules[0].Destination = "DDD", "AAA"

	_, steps, err := Trace(testSection(t), snap, "F", models.Proceed)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if got := traceOf(t, steps[0], "F").EffectiveSpeed; got != 80 {
		t.Errorf("follower behind an opposing train capped to %v", got)
	}

	snap = twoTrainSnapshot()
	snap.Positions[1].CurrentKm = 94
	_, steps, err = Trace(testSection(t), snap, "F", models.Proceed)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if got := traceOf(t, steps[0], "F").EffectiveSpeed; got != 80 {
		t.Errorf("follower 6 km behind capped to %v", got)
	}
}

func TestHeadwayHoldsAtEveryStep(t *testing.T) {
	sec := testSection(t)
	r := rand.New(rand.NewSource(3))

	for round := 0; round < 40; round++ {
		// Same direction, started low enough that nobody reaches the terminus
		snap := Snapshot{Now: testNow}
		nominal := map[string]float64{}
		prev := map[string]float64{}
		for i := 0; i < 8; i++ {
			number := string(rune('a' + i))
			snap.Schedules = append(snap.Schedules, schedule(number, models.Priority(1+r.Intn(4)), "AAA"))
			p := position(number, r.Float64()*60, r.Float64()*100, models.StatusRunning, 0)
			snap.Positions = append(snap.Positions, p)
			nominal[number] = p.Speed
			prev[number] = p.CurrentKm
		}
		target := snap.Positions[r.Intn(len(snap.Positions))].TrainNumber

		_, steps, err := Trace(sec, snap, target, models.Proceed)
		if err != nil {
			t.Fatalf("Trace: %v", err)
		}

		for _, row := range steps {
			order := make([]TrainTrace, len(row.Trains))
			copy(order, row.Trains)
			sort.SliceStable(order, func(i, j int) bool { return prev[order[i].TrainNumber] < prev[order[j].TrainNumber] })

			for i := 0; i+1 < len(order); i++ {
				follower, leader := order[i], order[i+1]
				gap := prev[leader.TrainNumber] - prev[follower.TrainNumber]
				if gap >= HeadwayKm {
					continue
				}
				limit := math.Min(FollowSpeedCapKmh, FollowSpeedFactor*nominal[leader.TrainNumber])
				if follower.EffectiveSpeed > limit+1e-9 {
					t.Fatalf("round %d minute %d: %s at %.2f km/h within %.2f km of %s (limit %.2f)",
						round, row.Minute, follower.TrainNumber, follower.EffectiveSpeed, gap, leader.TrainNumber, limit)
				}
			}
			for _, tr := range row.Trains {
				if tr.EffectiveSpeed > nominal[tr.TrainNumber]+1e-9 {
					t.Fatalf("%s exceeded its own speed", tr.TrainNumber)
				}
				prev[tr.TrainNumber] = tr.Km
			}
		}
	}
}

func TestSimulateIsDeterministic(t *testing.T) {
	sec := testSection(t)
	r := rand.New(rand.NewSource(5))

	for round := 0; round < 20; round++ {
		snap := randomSnapshot(r, 10)
		target := snap.Positions[r.Intn(len(snap.Positions))].TrainNumber

		for _, action := range simulatedCandidates {
			first, err := Simulate(sec, snap, target, action)
			if err != nil {
				t.Fatalf("Simulate: %v", err)
			}
			for i := 0; i < 3; i++ {
				again, err := Simulate(sec, snap, target, action)
				if err != nil {
					t.Fatalf("Simulate: %v", err)
				}
				if math.Float64bits(again) != math.Float64bits(first) {
					t.Fatalf("round %d %v: cost %v then %v", round, action, first, again)
				}
			}
		}
	}
}

func TestSimulateCosts(t *testing.T) {
	sec := testSection(t)
	tests := []struct {
		name     string
		priority models.Priority
		speed    float64
		status   models.TrainStatus
		action   models.Decision
		want     float64
	}{
		{"line speed proceeds free", models.PriorityLow, 80, models.StatusRunning, models.Proceed, 0},
		{"faster than nominal accrues nothing", models.PriorityLow, 100, models.StatusRunning, models.Proceed, 0},
		{"reduce speed", models.PriorityLow, 80, models.StatusRunning, models.ReduceSpeed, 6 * 0.4},
		{"stop weighted low", models.PriorityLow, 80, models.StatusRunning, models.StopAtStation, 6},
		{"hold weighted medium", models.PriorityMedium, 80, models.StatusRunning, models.HoldOrReroute, 6 * 1.5},
		{"stop weighted high", models.PriorityHigh, 80, models.StatusRunning, models.StopAtStation, 6 * 2.5},
		{"stop weighted critical", models.PriorityCritical, 80, models.StatusRunning, models.StopAtStation, 6 * 4},
		{"stopped train has no residual speed", models.PriorityLow, 50, models.StatusStopped, models.Proceed, 6},
		{"half speed", models.PriorityLow, 40, models.StatusDelayed, models.Proceed, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := Snapshot{
				Now:       testNow,
				Schedules: []models.TrainSchedule{schedule("1", tc.priority, "AAA")},
				Positions: []models.TrainPosition{position("1", 10, tc.speed, tc.status, 0)},
			}
			got, err := Simulate(sec, snap, "1", tc.action)
			if err != nil {
				t.Fatalf("Simulate: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("cost = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSimulateClampsToCorridor(t *testing.T) {
	snap := Snapshot{
		Now: testNow,
		Schedules: []models.TrainSchedule{
			schedule("up", models.PriorityLow, "AAA"),
			schedule("down", models.PriorityLow, "DDD"),
		},
		Positions: []models.TrainPosition{
			position("up", 195, 100, models.StatusRunning, 0),
			position("down", 3, 100, models.StatusRunning, 0),
		},
	}
	_, steps, err := Trace(testSection(t), snap, "up", models.Proceed)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	last := steps[len(steps)-1]
	if km := traceOf(t, last, "up").Km; km != 200 {
		t.Errorf("up train ended at %v, want 200", km)
	}
	if km := traceOf(t, last, "down").Km; km != 0 {
		t.Errorf("down train ended at %v, want 0", km)
	}
}

func TestSimulateErrors(t *testing.T) {
	sec := testSection(t)
	snap := twoTrainSnapshot()

	if _, err := Simulate(sec, snap, "F", models.GivePriority); !errors.Is(err, ErrUnsimulatedAction) {
		t.Errorf("GivePriority error = %v, want ErrUnsimulatedAction", err)
	}
	if _, err := Simulate(sec, snap, "nope", models.Proceed); !errors.Is(err, ErrUnknownTrain) {
		t.Errorf("unknown train error = %v, want ErrUnknownTrain", err)
	}
	if _, err := Simulate(sec, snap, "F", models.Decision(42)); err == nil {
		t.Error("out-of-range action should fail")
	}
}

func TestSimulateLeavesSnapshotUntouched(t *testing.T) {
	snap := twoTrainSnapshot()
	snap.Positions[1].Status = models.StatusStopped
	want := Snapshot{
		Now:       snap.Now,
		Schedules: append([]models.TrainSchedule(nil), snap.Schedules...),
		Positions: append([]models.TrainPosition(nil), snap.Positions...),
	}

	if _, err := Simulate(testSection(t), snap, "F", models.ReduceSpeed); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("snapshot mutated (-want +got):\n%s", diff)
	}
}
