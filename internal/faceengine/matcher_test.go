package faceengine

import (
	"math"
	"testing"
)

func embeddingWith(index int, value float32) Embedding {
	var e Embedding
	e[index] = value
	return e
}

func TestCompareIdenticalEmbeddings(t *testing.T) {
	m := NewMatcher(0)
	e := embeddingWith(3, 0.25)

	match := m.Compare(e, e)
	if !match.Matched {
		t.Fatal("expected identical embeddings to match")
	}
	if match.Distance != 0 {
		t.Fatalf("expected zero distance, got %f", match.Distance)
	}
	if match.Confidence != 1 {
		t.Fatalf("expected confidence 1, got %f", match.Confidence)
	}
}

func TestCompareAtToleranceBoundaryMatches(t *testing.T) {
	m := Matcher{Tolerance: 0.5}
	known := Embedding{}
	candidate := embeddingWith(0, 0.5)

	match := m.Compare(known, candidate)
	if !match.Matched {
		t.Fatalf("expected distance equal to tolerance to match, got %+v", match)
	}
	if math.Abs(match.Confidence-0.5) > 1e-9 {
		t.Fatalf("unexpected confidence: %f", match.Confidence)
	}
}

func TestCompareBeyondToleranceHasNoConfidence(t *testing.T) {
	m := NewMatcher(DefaultTolerance)
	known := embeddingWith(0, 0.4)
	candidate := embeddingWith(1, 0.6)

	match := m.Compare(known, candidate)
	if match.Matched {
		t.Fatalf("expected no match, got %+v", match)
	}
	if math.Abs(match.Distance-math.Sqrt(0.16+0.36)) > 1e-6 {
		t.Fatalf("unexpected distance: %f", match.Distance)
	}
	if match.Confidence != 0 {
		t.Fatalf("expected no confidence, got %f", match.Confidence)
	}
}

func TestEmbeddingFromSliceRejectsWrongLength(t *testing.T) {
	if _, err := EmbeddingFromSlice(make([]float64, 12)); err == nil {
		t.Fatal("expected error for short embedding")
	}
	values := make([]float64, Dimensions)
	values[Dimensions-1] = 0.75
	e, err := EmbeddingFromSlice(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e[Dimensions-1] != 0.75 {
		t.Fatalf("unexpected last value: %f", e[Dimensions-1])
	}
}
