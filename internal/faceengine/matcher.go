package faceengine

import "gonum.org/v1/gonum/floats"

// DefaultTolerance is the largest distance still counted as the same person.
const DefaultTolerance = 0.6

// Match is the outcome of comparing a known embedding with a candidate.
type Match struct {
	Matched  bool
	Distance float64
	// Confidence is 1 - Distance, set only when Matched.
	Confidence float64
}

// Matcher compares embeddings using Euclidean distance and a fixed tolerance.
type Matcher struct {
	Tolerance float64
}

// NewMatcher returns a Matcher, falling back to DefaultTolerance for non-positive values.
func NewMatcher(tolerance float64) Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return Matcher{Tolerance: tolerance}
}

// Distance returns the Euclidean distance between two embeddings.
func Distance(a, b Embedding) float64 {
	return floats.Distance(a.Float64s(), b.Float64s(), 2)
}

// Compare decides whether candidate matches known.
func (m Matcher) Compare(known, candidate Embedding) Match {
	distance := Distance(known, candidate)
	if distance > m.Tolerance {
		return Match{Distance: distance}
	}
	return Match{Matched: true, Distance: distance, Confidence: 1 - distance}
}
