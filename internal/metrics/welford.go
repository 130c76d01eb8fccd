package metrics

import "math"

// Running holds streaming mean and variance (Welford's online algorithm).
// The zero value is an empty accumulator.
type Running struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"` // sum of squared deviations from the mean
}

// Resume rebuilds an accumulator from persisted mean, population stddev and count
func Resume(mean, stddev float64, count int) *Running {
	if count <= 0 {
		return &Running{}
	}
	return &Running{
		Count: count,
		Mean:  mean,
		M2:    stddev * stddev * float64(count),
	}
}

// Add records one observation
func (r *Running) Add(x float64) {
	r.Count++
	delta := x - r.Mean
	r.Mean += delta / float64(r.Count)
	r.M2 += delta * (x - r.Mean)
}

// Merge folds another accumulator into r (Chan et al. parallel update)
func (r *Running) Merge(o Running) {
	if o.Count == 0 {
		return
	}
	if r.Count == 0 {
		*r = o
		return
	}
	n := r.Count + o.Count
	delta := o.Mean - r.Mean
	r.Mean += delta * float64(o.Count) / float64(n)
	r.M2 += o.M2 + delta*delta*float64(r.Count)*float64(o.Count)/float64(n)
	r.Count = n
}

// StdDev returns the population standard deviation, 0 below two observations
func (r *Running) StdDev() float64 {
	if r.Count < 2 {
		return 0
	}
	return math.Sqrt(r.M2 / float64(r.Count))
}

// Round2 rounds to two decimals for reporting
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
