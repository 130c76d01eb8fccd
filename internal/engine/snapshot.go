package engine

import (
	"fmt"
	"time"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/section"
)

// Snapshot is the caller-owned input of one decisioning call.
// The engine never mutates it.
type Snapshot struct {
	Schedules []models.TrainSchedule `json:"schedules"`
	Positions []models.TrainPosition `json:"positions"`
	Now       time.Time              `json:"now"`
}

// state is the validated, engine-owned view of a Snapshot
type state struct {
	section   *section.Section
	now       time.Time
	schedules []models.TrainSchedule           // as supplied, used for departure frequency
	byNumber  map[string]*models.TrainSchedule // first valid schedule per train number
	positions []models.TrainPosition           // accepted records, private copies
	rejected  []*RecordError
}

// prepare validates every position against the schedules and the corridor.
// Offending records are dropped and reported; the rest of the batch survives.
func prepare(sec *section.Section, snap Snapshot) *state {
	st := &state{
		section:   sec,
		now:       snap.Now,
		schedules: snap.Schedules,
		byNumber:  make(map[string]*models.TrainSchedule, len(snap.Schedules)),
		positions: make([]models.TrainPosition, 0, len(snap.Positions)),
	}

	// Why each unusable schedule failed, reported against its position
	invalid := make(map[string]error)
	for i := range snap.Schedules {
		s := &snap.Schedules[i]
		if err := s.Validate(); err != nil {
			if _, seen := invalid[s.TrainNumber]; !seen {
				invalid[s.TrainNumber] = err
			}
			continue
		}
		if _, dup := st.byNumber[s.TrainNumber]; !dup {
			st.byNumber[s.TrainNumber] = s
		}
	}

	seen := make(map[string]bool, len(snap.Positions))
	for _, p := range snap.Positions {
		if err := p.Validate(); err != nil {
			st.reject(p.TrainNumber, err.Error())
			continue
		}
		sched, ok := st.byNumber[p.TrainNumber]
		if !ok {
			if err, bad := invalid[p.TrainNumber]; bad {
				st.reject(p.TrainNumber, "invalid schedule: "+err.Error())
			} else {
				st.reject(p.TrainNumber, "no matching schedule in snapshot")
			}
			continue
		}
		if !sec.Contains(p.CurrentKm) {
			st.reject(p.TrainNumber, fmt.Sprintf("km %.2f outside corridor [0, %.2f]", p.CurrentKm, sec.Length()))
			continue
		}
		if seen[p.TrainNumber] {
			st.reject(p.TrainNumber, "duplicate position record")
			continue
		}
		seen[p.TrainNumber] = true

		// Private copy: direction always comes from the schedule, and a
		// stopped train never carries residual speed.
		p.Origin = sched.Origin
		if p.Status == models.StatusStopped {
			p.Speed = 0
		}
		if p.CurrentStation != nil {
			code := *p.CurrentStation
			p.CurrentStation = &code
		}
		st.positions = append(st.positions, p)
	}

	return st
}

func (st *state) reject(trainNumber, reason string) {
	st.rejected = append(st.rejected, &RecordError{TrainNumber: trainNumber, Reason: reason})
}

func (st *state) schedule(trainNumber string) *models.TrainSchedule {
	return st.byNumber[trainNumber]
}

func (st *state) direction(p *models.TrainPosition) int {
	return st.section.Direction(p.Origin)
}
