package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when decisioning is requested before the
	// configured policy can produce decisions (e.g. an untrained approximator).
	// It is distinct from an empty result, which means no train needs a decision.
	ErrNotReady = errors.New("decision policy is not ready")

	// ErrInvalidSnapshot marks a snapshot record that was rejected.
	// It is always wrapped by a *RecordError naming the record.
	ErrInvalidSnapshot = errors.New("invalid snapshot record")

	// ErrUnsimulatedAction is returned when the simulator is asked to score
	// an action that is decided by rule rather than by simulation.
	ErrUnsimulatedAction = errors.New("action is not simulated")

	// ErrUnknownTrain is returned when a simulation targets a train that is
	// not part of the snapshot.
	ErrUnknownTrain = errors.New("train not in snapshot")
)

// RecordError describes one position record dropped from a snapshot
type RecordError struct {
	TrainNumber string `json:"trainNumber"`
	Reason      string `json:"reason"`
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: train %s: %s", ErrInvalidSnapshot, e.TrainNumber, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrInvalidSnapshot
}
