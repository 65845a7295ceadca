// Package faceengine defines the boundary to the face recognition library:
// a locator/embedder that turns pixels into per-face embeddings, and a
// matcher that decides whether two embeddings belong to the same person.
package faceengine

import (
	"context"
	"fmt"
	"image"
)

// Dimensions is the length of every embedding produced by an Engine.
const Dimensions = 128

// Embedding is a face descriptor. It is an array so copies never alias.
type Embedding [Dimensions]float32

// EmbeddingFromSlice copies values into an Embedding, rejecting any other length.
func EmbeddingFromSlice(values []float64) (Embedding, error) {
	var e Embedding
	if len(values) != Dimensions {
		return e, fmt.Errorf("embedding has %d values, want %d", len(values), Dimensions)
	}
	for i, v := range values {
		e[i] = float32(v)
	}
	return e, nil
}

// Float64s widens the embedding for numeric routines.
func (e Embedding) Float64s() []float64 {
	out := make([]float64, Dimensions)
	for i, v := range e {
		out[i] = float64(v)
	}
	return out
}

// Face is one detected face.
type Face struct {
	Box       image.Rectangle
	Embedding Embedding
}

// Engine locates faces in an RGB image and embeds each of them.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) ([]Face, error)
}
