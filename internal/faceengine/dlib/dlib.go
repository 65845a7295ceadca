//go:build !nodlib

// Package dlib runs face detection and embedding in-process through the
// go-face bindings. It needs cgo and the dlib shape predictor, resnet and
// (for the CNN detector) mmod models in the models directory.
package dlib

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	face "github.com/Kagami/go-face"
	"go.uber.org/zap"

	"github.com/example/faceauth/internal/faceengine"
	"github.com/example/faceauth/internal/imaging"
)

// Engine wraps a go-face recognizer. The recognizer is not safe for
// concurrent use, so calls are serialised.
type Engine struct {
	mu     sync.Mutex
	rec    *face.Recognizer
	cnn    bool
	logger *zap.Logger
}

// New loads the models from modelsDir. cnn selects the slower but more
// accurate CNN detector instead of HOG.
func New(modelsDir string, cnn bool, logger *zap.Logger) (*Engine, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load face models from %s: %w", modelsDir, err)
	}
	logger.Info("face recognizer loaded", zap.String("models_dir", modelsDir), zap.Bool("cnn", cnn))
	return &Engine{rec: rec, cnn: cnn, logger: logger.Named("dlib")}, nil
}

// Recognize implements faceengine.Engine.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]faceengine.Face, error) {
	frame, err := imaging.EncodeJPEG(img)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	var found []face.Face
	if e.cnn {
		found, err = e.rec.RecognizeCNN(frame)
	} else {
		found, err = e.rec.Recognize(frame)
	}
	e.mu.Unlock()
	if err != nil {
		var loadErr face.ImageLoadError
		if errors.As(err, &loadErr) {
			return nil, &imaging.DecodeError{Err: loadErr}
		}
		return nil, err
	}

	faces := make([]faceengine.Face, 0, len(found))
	for _, f := range found {
		faces = append(faces, faceengine.Face{
			Box:       f.Rectangle,
			Embedding: faceengine.Embedding(f.Descriptor),
		})
	}
	e.logger.Debug("frame recognized", zap.Int("faces", len(faces)))
	return faces, nil
}

// Close releases the dlib models.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.Close()
}
