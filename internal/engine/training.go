package engine

import (
	"context"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/section"
)

// Sample is one labelled training example for an approximator
type Sample struct {
	TrainNumber string          `json:"trainNumber"`
	Vector      Vector          `json:"vector"`
	Label       models.Decision `json:"label"`
}

// Label runs the priority rule and the simulation policy over every eligible
// train in snap and returns the resulting training samples in snapshot order.
// Arbitration is not applied: labels reflect each train's own best action.
func Label(ctx context.Context, sec *section.Section, snap Snapshot) ([]Sample, error) {
	st := prepare(sec, snap)
	features := st.extract()

	policy := NewSimulationPolicy()
	samples := make([]Sample, 0, len(features))
	for _, f := range features {
		choice, err := decide(ctx, policy, st, f)
		if err != nil {
			return nil, err
		}
		samples = append(samples, Sample{
			TrainNumber: f.TrainNumber,
			Vector:      f.Vector(),
			Label:       choice.Decision,
		})
	}
	return samples, nil
}
