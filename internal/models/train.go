package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TrainType is the service class of a train
type TrainType string

const (
	TrainPassenger TrainType = "passenger"
	TrainExpress   TrainType = "express"
	TrainFreight   TrainType = "freight"
	TrainSuperfast TrainType = "superfast"
)

// Encoded returns the ordinal used by the feature vector (freight < passenger < express < superfast)
func (t TrainType) Encoded() int {
	switch t {
	case TrainFreight:
		return 1
	case TrainPassenger:
		return 2
	case TrainExpress:
		return 3
	case TrainSuperfast:
		return 4
	}
	return 0
}

// Valid reports whether t is a known train type
func (t TrainType) Valid() bool {
	return t.Encoded() != 0
}

// Priority orders trains by operational importance
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityMedium   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// Weight is the multiplier applied to this train's delay in simulation cost
func (p Priority) Weight() float64 {
	switch p {
	case PriorityCritical:
		return 4.0
	case PriorityHigh:
		return 2.5
	case PriorityMedium:
		return 1.5
	}
	return 1.0
}

// Valid reports whether p is within low..critical
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// TrainStatus is the live operating state reported for a train
type TrainStatus string

const (
	StatusScheduled TrainStatus = "scheduled"
	StatusRunning   TrainStatus = "running"
	StatusDelayed   TrainStatus = "delayed"
	StatusStopped   TrainStatus = "stopped"
	StatusCompleted TrainStatus = "completed"
)

// Active reports whether a train in this status needs a control decision.
// Trains not yet departed or already finished are excluded.
func (s TrainStatus) Active() bool {
	return s == StatusRunning || s == StatusDelayed || s == StatusStopped
}

// Valid reports whether s is a known status
func (s TrainStatus) Valid() bool {
	return s.Active() || s == StatusScheduled || s == StatusCompleted
}

// Stop is one intermediate call in a schedule
type Stop struct {
	StationCode   string    `json:"stationCode"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	DepartureTime time.Time `json:"departureTime"`
}

// TrainSchedule is the timetable entry for one train
type TrainSchedule struct {
	TrainNumber        string    `json:"trainNumber"`
	TrainName          string    `json:"trainName"`
	TrainType          TrainType `json:"trainType"`
	Priority           Priority  `json:"priority"`
	Origin             string    `json:"origin"`
	Destination        string    `json:"destination"`
	ScheduledDeparture time.Time `json:"scheduledDeparture"`
	ScheduledArrival   time.Time `json:"scheduledArrival"`
	Stops              []Stop    `json:"stops"`
}

// Validate checks the schedule fields that the engine relies on
func (s *TrainSchedule) Validate() error {
	if s.TrainNumber == "" {
		return errors.New("train_number is required")
	}
	if !s.TrainType.Valid() {
		return fmt.Errorf("unknown train type %q", s.TrainType)
	}
	if !s.Priority.Valid() {
		return fmt.Errorf("priority %d out of range: must be between 1 and 4", int(s.Priority))
	}
	if s.Origin == "" || s.Destination == "" {
		return errors.New("origin and destination are required")
	}
	return nil
}

// TrainPosition is the live state of one train at snapshot time
type TrainPosition struct {
	TrainNumber    string      `json:"trainNumber"`
	CurrentStation *string     `json:"currentStation"`
	CurrentKm      float64     `json:"currentKm"`
	Speed          float64     `json:"speed"` // km/h
	Status         TrainStatus `json:"status"`
	DelayMinutes   float64     `json:"delayMinutes"`
	LastUpdated    time.Time   `json:"lastUpdated"`

	// Copy of the schedule's origin so direction is known without a lookup
	Origin string `json:"origin"`
}

// Validate checks the position fields that do not depend on the corridor
func (p *TrainPosition) Validate() error {
	if p.TrainNumber == "" {
		return errors.New("train_number is required")
	}
	if p.Speed < 0 {
		return fmt.Errorf("speed %.2f is negative", p.Speed)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("unknown status %q", p.Status)
	}
	return nil
}

// Decision is one of the five control actions the engine can recommend
type Decision int

const (
	Proceed Decision = iota
	ReduceSpeed
	StopAtStation
	GivePriority
	HoldOrReroute
)

// NumDecisions is the size of the decision enumeration
const NumDecisions = 5

// AllDecisions lists every decision in enumeration order
func AllDecisions() []Decision {
	return []Decision{Proceed, ReduceSpeed, StopAtStation, GivePriority, HoldOrReroute}
}

// Valid reports whether d is a member of the enumeration
func (d Decision) Valid() bool {
	return d >= Proceed && d <= HoldOrReroute
}

// Label is the operator-facing name of the decision
func (d Decision) Label() string {
	switch d {
	case Proceed:
		return "Proceed normally"
	case ReduceSpeed:
		return "Reduce speed"
	case StopAtStation:
		return "Stop at next station"
	case GivePriority:
		return "Give priority"
	case HoldOrReroute:
		return "Hold/Reroute"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

func (d Decision) String() string {
	return d.Label()
}

// ParseDecision maps an operator-facing label back to its decision
func ParseDecision(label string) (Decision, error) {
	for _, d := range AllDecisions() {
		if d.Label() == label {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown decision %q", label)
}

func (d Decision) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid decision %d", int(d))
	}
	return json.Marshal(d.Label())
}

func (d *Decision) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseDecision(label)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
