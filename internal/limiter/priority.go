package limiter

import "strings"

// Priority classifies a request for token-cost weighting.
type Priority string

const (
	PriorityHigh   Priority = "high"   // user-facing
	PriorityMedium Priority = "medium" // background updates
	PriorityLow    Priority = "low"    // bulk operations
)

const defaultWeight = 0.5

var priorityWeights = map[Priority]float64{
	PriorityHigh:   1.0,
	PriorityMedium: 0.7,
	PriorityLow:    0.4,
}

// ParsePriority normalizes s. An empty string maps to medium; unknown values
// are kept as-is and weighted like any other unknown priority.
func ParsePriority(s string) Priority {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityMedium
	}
	return Priority(s)
}

// Weight returns the priority weight in (0, 1].
func Weight(p Priority) float64 {
	if w, ok := priorityWeights[p]; ok {
		return w
	}
	return defaultWeight
}

// Cost returns the number of tokens a request at priority p consumes.
func Cost(p Priority) float64 {
	return 1.0 / Weight(p)
}
