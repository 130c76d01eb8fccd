package approx

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/ensemble"

	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

// DefaultTrees is the forest size used when none is configured
const DefaultTrees = 150

const classAttribute = "decision"

var (
	ErrNoSamples = errors.New("no training samples")
	ErrNotFitted = errors.New("approximator has not been fitted")
)

// Forest is a random forest over the feature vector. Each member is a
// bagged golearn tree grown on a random feature subset, so the share of
// members voting for a class is that class's probability.
type Forest struct {
	trees    int
	features int

	mu      sync.Mutex // golearn prediction grids share attribute state
	attrs   []base.Attribute
	class   *base.CategoricalAttribute
	members []*ensemble.RandomForest
	samples []engine.Sample
}

// NewForest returns an unfitted forest; trees <= 0 selects DefaultTrees
func NewForest(trees int) *Forest {
	if trees <= 0 {
		trees = DefaultTrees
	}
	return &Forest{
		trees:    trees,
		features: int(math.Round(math.Sqrt(engine.NumFeatures))),
	}
}

// Trees returns the number of forest members
func (f *Forest) Trees() int { return f.trees }

// Size returns the number of training samples
func (f *Forest) Size() int { return len(f.samples) }

// Ready reports whether the forest has been fitted
func (f *Forest) Ready() bool {
	return f != nil && len(f.members) > 0
}

// Fit grows every member on the class-balanced training set
func (f *Forest) Fit(samples []engine.Sample) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}
	for _, s := range samples {
		if !s.Label.Valid() {
			return fmt.Errorf("sample for train %s has invalid label %d", s.TrainNumber, int(s.Label))
		}
	}

	attrs := make([]base.Attribute, engine.NumFeatures)
	for i, name := range engine.FeatureNames {
		attrs[i] = base.NewFloatAttribute(name)
	}
	class := base.NewCategoricalAttribute()
	class.SetName(classAttribute)

	balanced := balance(samples)
	grid, specs, classSpec, err := newGrid(attrs, class, len(balanced))
	if err != nil {
		return err
	}
	for row, s := range balanced {
		for i, x := range s.Vector {
			grid.Set(specs[i], row, base.PackFloatToBytes(x))
		}
		grid.Set(classSpec, row, class.GetSysValFromString(classLabel(s.Label)))
	}

	members := make([]*ensemble.RandomForest, f.trees)
	for i := range members {
		m := ensemble.NewRandomForest(1, f.features)
		if err := m.Fit(grid); err != nil {
			return fmt.Errorf("fit tree %d: %w", i, err)
		}
		members[i] = m
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrs, f.class, f.members = attrs, class, members
	f.samples = append([]engine.Sample(nil), samples...)
	return nil
}

// Classify returns the majority vote of the forest and every class's vote
// share. Vote ties go to the lowest ordinal.
func (f *Forest) Classify(v engine.Vector) (models.Decision, [models.NumDecisions]float64, error) {
	var proba [models.NumDecisions]float64
	if !f.Ready() {
		return 0, proba, ErrNotFitted
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	grid, specs, _, err := newGrid(f.attrs, f.class, 1)
	if err != nil {
		return 0, proba, err
	}
	for i, x := range v {
		grid.Set(specs[i], 0, base.PackFloatToBytes(x))
	}

	for i, m := range f.members {
		pred, err := m.Predict(grid)
		if err != nil {
			return 0, proba, fmt.Errorf("tree %d: %w", i, err)
		}
		d, err := parseClassLabel(base.GetClass(pred, 0))
		if err != nil {
			return 0, proba, fmt.Errorf("tree %d: %w", i, err)
		}
		proba[d]++
	}

	best := models.Proceed
	for _, d := range models.AllDecisions() {
		proba[d] /= float64(len(f.members))
		if proba[d] > proba[best] {
			best = d
		}
	}
	return best, proba, nil
}

// newGrid lays out the feature attributes and the class attribute for rows rows
func newGrid(attrs []base.Attribute, class *base.CategoricalAttribute, rows int) (*base.DenseInstances, []base.AttributeSpec, base.AttributeSpec, error) {
	grid := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, len(attrs))
	for i, a := range attrs {
		specs[i] = grid.AddAttribute(a)
	}
	classSpec := grid.AddAttribute(class)
	if err := grid.AddClassAttribute(class); err != nil {
		return nil, nil, base.AttributeSpec{}, fmt.Errorf("class attribute: %w", err)
	}
	if err := grid.Extend(rows); err != nil {
		return nil, nil, base.AttributeSpec{}, fmt.Errorf("allocate %d rows: %w", rows, err)
	}
	return grid, specs, classSpec, nil
}

// balance oversamples every class up to the size of the largest one,
// cycling through its samples in order.
func balance(samples []engine.Sample) []engine.Sample {
	var byClass [models.NumDecisions][]engine.Sample
	largest := 0
	for _, s := range samples {
		byClass[s.Label] = append(byClass[s.Label], s)
		largest = max(largest, len(byClass[s.Label]))
	}

	out := make([]engine.Sample, 0, largest*models.NumDecisions)
	for _, group := range byClass {
		if len(group) == 0 {
			continue
		}
		for i := 0; i < largest; i++ {
			out = append(out, group[i%len(group)])
		}
	}
	return out
}

func classLabel(d models.Decision) string {
	return strconv.Itoa(int(d))
}

func parseClassLabel(s string) (models.Decision, error) {
	n, err := strconv.Atoi(s)
	if err != nil || !models.Decision(n).Valid() {
		return 0, fmt.Errorf("unknown class %q", s)
	}
	return models.Decision(n), nil
}
