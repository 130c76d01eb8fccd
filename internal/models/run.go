package models

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrRunNotFound is returned when a stored decision run does not exist
	ErrRunNotFound = errors.New("decision run not found")

	// ErrNoModel is returned when no fitted approximator has been stored
	ErrNoModel = errors.New("no stored approximator model")
)

// Run sources
const (
	SourceLive = "live"
	SourceAPI  = "api"
	SourceFeed = "feed"
)

// RunResult is one train's stored decision
type RunResult struct {
	TrainNumber string   `json:"trainNumber"`
	Decision    Decision `json:"decision"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	HoldTarget  string   `json:"holdTarget,omitempty"`
}

// Run is one persisted decisioning call with its results in snapshot order
type Run struct {
	ID            string          `json:"runId"`
	CreatedAt     time.Time       `json:"createdAt"`
	Source        string          `json:"source"`
	Section       string          `json:"section"`
	Metrics       json.RawMessage `json:"metrics,omitempty"`
	RejectedCount int             `json:"rejectedCount"`
	Results       []RunResult     `json:"results"`
}

// CriticalCount is the number of results that are not Proceed
func (r *Run) CriticalCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Decision != Proceed {
			n++
		}
	}
	return n
}

// RunSummary is a stored run without its per-train results
type RunSummary struct {
	ID            string    `json:"runId"`
	CreatedAt     time.Time `json:"createdAt"`
	Source        string    `json:"source"`
	Section       string    `json:"section"`
	TrainCount    int       `json:"trainCount"`
	CriticalCount int       `json:"criticalCount"`
}

// StoredModel is a persisted approximator fit
type StoredModel struct {
	ID          string          `json:"modelId"`
	CreatedAt   time.Time       `json:"createdAt"`
	SampleCount int             `json:"sampleCount"`
	Params      json.RawMessage `json:"params"`
}

// DelayHourlyStat is hourly delay data for one priority class
type DelayHourlyStat struct {
	Priority         Priority `json:"priority"`
	HourBucket       string   `json:"hourBucket"`
	ObservationCount int      `json:"observationCount"`
	MeanDelayMinutes float64  `json:"meanDelayMinutes"`
	StdDevMinutes    float64  `json:"stdDevMinutes"`
	OnTimePercent    float64  `json:"onTimePercent"`
	MaxDelayMinutes  float64  `json:"maxDelayMinutes"`
}
