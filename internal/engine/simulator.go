package engine

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/section"
)

// Simulation constants. Speeds are km/h, distances km, times minutes.
const (
	HorizonMinutes    = 30
	StepMinutes       = 5
	HeadwayKm         = 6.0
	FollowSpeedFactor = 0.8
	FollowSpeedCapKmh = 20.0
	NominalSpeedKmh   = 80.0
	ReduceSpeedFactor = 0.6
)

// simTrain is one train in a simulation's private scratch state
type simTrain struct {
	number string
	order  int // snapshot order, breaks km ties
	dir    int
	km     float64
	speed  float64
	weight float64
	delay  float64
}

// StepTrace records the state of every simulated train after one step
type StepTrace struct {
	Minute int          `json:"minute"`
	Trains []TrainTrace `json:"trains"`
}

// TrainTrace is one train's effective speed during a step and km after it
type TrainTrace struct {
	TrainNumber    string  `json:"trainNumber"`
	Km             float64 `json:"km"`
	EffectiveSpeed float64 `json:"effectiveSpeed"`
	DelayMinutes   float64 `json:"delayMinutes"`
}

// Simulate scores action applied to target: the priority-weighted delay
// accrued by all trains over the horizon. Lower is better.
func Simulate(sec *section.Section, snap Snapshot, target string, action models.Decision) (float64, error) {
	return prepare(sec, snap).simulate(target, action, nil)
}

// Trace runs the same simulation and returns the per-step state
func Trace(sec *section.Section, snap Snapshot, target string, action models.Decision) (float64, []StepTrace, error) {
	var steps []StepTrace
	cost, err := prepare(sec, snap).simulate(target, action, func(minute int, trains []simTrain, effective []float64) {
		row := StepTrace{Minute: minute, Trains: make([]TrainTrace, len(trains))}
		for i, t := range trains {
			row.Trains[i] = TrainTrace{TrainNumber: t.number, Km: t.km, EffectiveSpeed: effective[i], DelayMinutes: t.delay}
		}
		steps = append(steps, row)
	})
	return cost, steps, err
}

// scratch copies the accepted positions into a fresh simulation state
func (st *state) scratch() []simTrain {
	trains := make([]simTrain, len(st.positions))
	for i := range st.positions {
		p := &st.positions[i]
		trains[i] = simTrain{
			number: p.TrainNumber,
			order:  i,
			dir:    st.direction(p),
			km:     p.CurrentKm,
			speed:  p.Speed,
			weight: st.schedule(p.TrainNumber).Priority.Weight(),
			delay:  p.DelayMinutes,
		}
	}
	return trains
}

// applyAction sets the target's simulated speed for the whole horizon
func applyAction(t *simTrain, action models.Decision) error {
	switch action {
	case models.Proceed:
	case models.ReduceSpeed:
		t.speed *= ReduceSpeedFactor
	case models.StopAtStation, models.HoldOrReroute:
		t.speed = 0
	case models.GivePriority:
		return fmt.Errorf("%w: %s", ErrUnsimulatedAction, action)
	default:
		return fmt.Errorf("unknown decision %d", int(action))
	}
	return nil
}

type stepObserver func(minute int, trains []simTrain, effective []float64)

func (st *state) simulate(target string, action models.Decision, observe stepObserver) (float64, error) {
	trains := st.scratch()

	idx := slices.IndexFunc(trains, func(t simTrain) bool { return t.number == target })
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTrain, target)
	}
	if err := applyAction(&trains[idx], action); err != nil {
		return 0, err
	}

	total := 0.0
	effective := make([]float64, len(trains))
	for minute := StepMinutes; minute <= HorizonMinutes; minute += StepMinutes {
		total += st.step(trains, effective)
		if observe != nil {
			observe(minute, trains, effective)
		}
	}
	return total, nil
}

// step advances every train by one time step and returns the weighted delay
// accrued. Effective speeds are all derived from the state at the start of
// the step, so the result does not depend on evaluation order.
func (st *state) step(trains []simTrain, effective []float64) float64 {
	slices.SortFunc(trains, func(a, b simTrain) int {
		if c := cmp.Compare(a.km, b.km); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	for i := range trains {
		effective[i] = followingSpeed(trains, i)
	}

	hours := float64(StepMinutes) / 60
	total := 0.0
	for i := range trains {
		t := &trains[i]
		v := effective[i]
		t.km = st.section.Clamp(t.km + float64(t.dir)*v*hours)

		if v < NominalSpeedKmh {
			inc := (1 - v/NominalSpeedKmh) * (float64(StepMinutes) / 5)
			t.delay += inc
			total += inc * t.weight
		}
	}
	return total
}

// followingSpeed applies the headway cap: the train immediately ahead in the
// travel direction, if it runs the same way and is closer than the headway,
// limits this train's speed.
func followingSpeed(trains []simTrain, i int) float64 {
	t := trains[i]
	j := i + t.dir
	if j < 0 || j >= len(trains) {
		return t.speed
	}
	leader := trains[j]
	if leader.dir != t.dir || math.Abs(leader.km-t.km) >= HeadwayKm {
		return t.speed
	}
	return math.Min(t.speed, math.Min(FollowSpeedFactor*leader.speed, FollowSpeedCapKmh))
}
