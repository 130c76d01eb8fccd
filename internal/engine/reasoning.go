package engine

import (
	"fmt"
	"math"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

const (
	slowTrainLookaheadKm = 25.0
	overtakeLookaheadKm  = 40.0
)

// explain produces the operator-facing justification for decision d.
// For GivePriority it also returns the train that should be held, if any.
func explain(f Features, d models.Decision, all []Features) (reasoning, holdTarget string) {
	switch d {
	case models.Proceed:
		return fmt.Sprintf("Path clear with low downstream congestion (%.1f). Proceeding to maintain schedule.", f.DownstreamCongestion), ""

	case models.ReduceSpeed:
		if ahead, dist, ok := closestAhead(f, all, slowTrainLookaheadKm, nil); ok {
			return fmt.Sprintf("Reduce speed: Approaching slower train %s which is %.1fkm ahead.", ahead.TrainNumber, dist), ""
		}
		return fmt.Sprintf("Reduce speed due to high downstream congestion (%.1f) requiring caution.", f.DownstreamCongestion), ""

	case models.StopAtStation:
		if f.ConflictingTrainETA < conflictHorizonMinutes {
			if opposing, ok := nearestConflict(f, all); ok {
				return fmt.Sprintf("CRITICAL: Stop at next station to resolve head-on conflict with train %s at an upcoming single-line section.", opposing.TrainNumber), ""
			}
		}
		return fmt.Sprintf("Stop at next station to regulate flow before bottleneck (in %.0f min) which has high traffic.", f.TimeToNextBottleneck), ""

	case models.GivePriority:
		lower := func(o Features) bool { return o.Priority < f.Priority }
		if hold, _, ok := closestAhead(f, all, overtakeLookaheadKm, lower); ok {
			return fmt.Sprintf("Give Priority: High-priority train on schedule. Action: Train %s should be held at its next stop to allow for an overtake.", hold.TrainNumber), hold.TrainNumber
		}
		return fmt.Sprintf("Give Priority: High-priority train (Level %d) proceeding on a clear path.", int(f.Priority)), ""

	case models.HoldOrReroute:
		return fmt.Sprintf("Hold/Reroute: Heavy delay (%.0f min) and high section traffic. Holding to stabilize network and prevent cascading delays.", f.DelayMinutes), ""
	}
	return "Decision based on optimizing overall section throughput.", ""
}

// closestAhead finds the nearest same-direction train strictly ahead of f and
// closer than limit km, optionally filtered. Ties keep snapshot order.
func closestAhead(f Features, all []Features, limit float64, keep func(Features) bool) (Features, float64, bool) {
	var best Features
	bestDist := math.Inf(1)
	found := false
	for _, o := range all {
		if o.TrainNumber == f.TrainNumber || o.Direction != f.Direction {
			continue
		}
		if keep != nil && !keep(o) {
			continue
		}
		d := (o.CurrentKm - f.CurrentKm) * float64(f.Direction)
		if d <= 0 || d >= limit {
			continue
		}
		if d < bestDist {
			best, bestDist, found = o, d, true
		}
	}
	return best, bestDist, found
}

// nearestConflict finds the opposing train whose conflict ETA is closest to f's
func nearestConflict(f Features, all []Features) (Features, bool) {
	var best Features
	bestDiff := math.Inf(1)
	found := false
	for _, o := range all {
		if o.Direction == f.Direction {
			continue
		}
		if diff := math.Abs(o.ConflictingTrainETA - f.ConflictingTrainETA); diff < bestDiff {
			best, bestDiff, found = o, diff, true
		}
	}
	return best, found
}

func overrideReasoning(prioritised string) string {
	return fmt.Sprintf("Holding at station to allow high-priority train %s to overtake as per section coordination.", prioritised)
}
