//go:build nodlib

package dlib

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"

	"github.com/example/faceauth/internal/faceengine"
)

// ErrDisabled is returned by New in builds made with the nodlib tag.
var ErrDisabled = errors.New("binary built without dlib support; use FACE_ENGINE=grpc")

// Engine is a placeholder so callers compile without cgo.
type Engine struct{}

// New always fails in nodlib builds.
func New(modelsDir string, cnn bool, logger *zap.Logger) (*Engine, error) {
	return nil, ErrDisabled
}

// Recognize always fails in nodlib builds.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]faceengine.Face, error) {
	return nil, ErrDisabled
}

// Close is a no-op.
func (e *Engine) Close() {}
