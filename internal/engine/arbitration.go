package engine

import "github.com/Kartikesh07/RailSetuBackend/internal/models"

type override struct {
	target      string
	prioritised string
}

// Arbitrate enforces hold directives issued by GivePriority decisions.
// Every nomination is collected in order before any is applied, so an
// overridden result never issues a further override. When several trains
// nominate the same target, the last one in order wins. Targets absent
// from results are ignored. The input map is not modified.
func Arbitrate(order []string, results map[string]Result) map[string]Result {
	var overrides []override
	for _, number := range order {
		r, ok := results[number]
		if !ok || r.HoldTarget == "" || r.HoldTarget == number {
			continue
		}
		if _, present := results[r.HoldTarget]; !present {
			continue
		}
		overrides = append(overrides, override{target: r.HoldTarget, prioritised: number})
	}

	out := make(map[string]Result, len(results))
	for k, v := range results {
		out[k] = v
	}
	for _, o := range overrides {
		out[o.target] = Result{
			Decision:   models.HoldOrReroute,
			Confidence: overrideConfidence,
			Reasoning:  overrideReasoning(o.prioritised),
		}
	}
	return out
}
