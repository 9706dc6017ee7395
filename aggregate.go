package vrc

import "sort"

// Aggregate classifies results against the pass threshold and orders them by
// severity: errored records first (stable among themselves), then Similarity
// records ascending by percentage, most divergent first. The input slice is
// not mutated; only the returned container carries the new order.
func Aggregate(results []Result, passPercentage float64) Summary {
	ordered := make([]Result, len(results))
	copy(ordered, results)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		aErr := a.Outcome.Kind != OutcomeSimilarity
		bErr := b.Outcome.Kind != OutcomeSimilarity
		if aErr != bErr {
			return aErr
		}
		if !aErr {
			return a.Outcome.Percentage < b.Outcome.Percentage
		}
		return false
	})

	sum := Summary{Results: ordered}
	for _, r := range ordered {
		switch r.Status(passPercentage) {
		case StatusPassed:
			sum.Passed++
		case StatusFailed:
			sum.Failed++
		case StatusErrored:
			sum.Errored++
		}
	}
	return sum
}
