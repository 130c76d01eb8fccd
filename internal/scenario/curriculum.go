package scenario

import (
	"context"
	"fmt"

	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
)

// Batch is a number of scenarios of one kind
type Batch struct {
	Kind  Kind `json:"kind"`
	Count int  `json:"count"`
}

// Curriculum is the ordered mix of scenarios used to build a training set
type Curriculum []Batch

// DefaultCurriculum weights the harder scenario kinds first
func DefaultCurriculum() Curriculum {
	return Curriculum{
		{Kind: BottleneckConflict, Count: 200},
		{Kind: MajorDisruption, Count: 150},
		{Kind: HighDensity, Count: 150},
	}
}

// Total returns the number of scenarios in the curriculum
func (c Curriculum) Total() int {
	n := 0
	for _, b := range c {
		n += b.Count
	}
	return n
}

// Run generates every scenario in order and hands it to fn with its
// 1-based position in the curriculum.
func (c Curriculum) Run(ctx context.Context, g *Generator, trains int, fn func(seq int, kind Kind, snap engine.Snapshot) error) error {
	seq := 0
	for _, b := range c {
		for i := 0; i < b.Count; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			seq++
			snap, err := g.Generate(b.Kind, trains)
			if err != nil {
				return fmt.Errorf("generate %s scenario %d: %w", b.Kind, seq, err)
			}
			if err := fn(seq, b.Kind, snap); err != nil {
				return err
			}
		}
	}
	return nil
}
