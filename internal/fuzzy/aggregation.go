package fuzzy

import "fmt"

// Aggregation combines plan scores into a single ranking value.
type Aggregation func(scores []float64) float64

// Sum adds all scores.
func Sum(scores []float64) float64 {
	var s float64
	for _, x := range scores {
		s += x
	}
	return s
}

// Max returns the largest score, 0 for no scores.
func Max(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	m := scores[0]
	for _, x := range scores[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// Average returns the arithmetic mean, 0 for no scores.
func Average(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	return Sum(scores) / float64(len(scores))
}

// Product multiplies all scores, 1 for no scores.
func Product(scores []float64) float64 {
	p := 1.0
	for _, x := range scores {
		p *= x
	}
	return p
}

// ParseAggregation maps a configuration name onto an Aggregation.
func ParseAggregation(name string) (Aggregation, error) {
	switch name {
	case "", "sum":
		return Sum, nil
	case "max":
		return Max, nil
	case "mean", "average":
		return Average, nil
	case "product":
		return Product, nil
	}
	return nil, fmt.Errorf("unknown aggregation %q", name)
}
