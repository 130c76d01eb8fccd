package approx

import (
	"fmt"

	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
)

// Params is the serialisable state of a fitted Forest. Trees are regrown
// from the stored training set on load.
type Params struct {
	Trees   int             `json:"trees"`
	Samples []engine.Sample `json:"samples"`
}

// Params exports the fitted state for persistence
func (f *Forest) Params() (Params, error) {
	if !f.Ready() {
		return Params{}, ErrNotFitted
	}
	return Params{
		Trees:   f.trees,
		Samples: append([]engine.Sample(nil), f.samples...),
	}, nil
}

// FromParams regrows a forest from persisted state
func FromParams(p Params) (*Forest, error) {
	if len(p.Samples) == 0 {
		return nil, ErrNoSamples
	}
	if p.Trees < 1 {
		return nil, fmt.Errorf("forest size %d must be positive", p.Trees)
	}

	f := NewForest(p.Trees)
	if err := f.Fit(p.Samples); err != nil {
		return nil, err
	}
	return f, nil
}
