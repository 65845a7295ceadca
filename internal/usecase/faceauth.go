package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/faceauth/internal/faceengine"
	"github.com/example/faceauth/internal/imaging"
	"github.com/example/faceauth/internal/logging"
	"github.com/example/faceauth/internal/repository"
	"github.com/example/faceauth/internal/store"
)

// AttemptRecorder persists the audit trail. A nil recorder disables auditing.
type AttemptRecorder interface {
	SaveLog(ctx context.Context, log *repository.AttemptLog) error
}

// RegisterResult is returned by a successful registration.
type RegisterResult struct {
	EmbeddingID string
}

// VerifyResult is the comparator outcome for a verification.
type VerifyResult struct {
	Match faceengine.Match
}

// DetectResult lists the faces found in an image.
type DetectResult struct {
	Boxes []image.Rectangle
}

// FaceAuthUseCase encapsulates the register, verify and detect flows.
type FaceAuthUseCase struct {
	store    store.EmbeddingStore
	engine   faceengine.Engine
	matcher  faceengine.Matcher
	recorder AttemptRecorder
	logger   *zap.Logger
	newID    func() string
}

// NewFaceAuthUseCase constructs a new use case instance. recorder may be nil.
func NewFaceAuthUseCase(s store.EmbeddingStore, engine faceengine.Engine, matcher faceengine.Matcher, recorder AttemptRecorder, logger *zap.Logger) *FaceAuthUseCase {
	return &FaceAuthUseCase{
		store:    s,
		engine:   engine,
		matcher:  matcher,
		recorder: recorder,
		logger:   logger.Named("faceauth_usecase"),
		newID:    uuid.NewString,
	}
}

// Register embeds the single face in imageBytes and stores it under a fresh identifier.
func (uc *FaceAuthUseCase) Register(ctx context.Context, imageBytes []byte) (*RegisterResult, error) {
	requestID := logging.RequestIDFromContext(ctx)
	opLogger := logging.WithOperation(uc.logger, "usecase.register", requestID)
	attempt := uc.newAttempt(requestID, repository.OperationRegister, imageBytes)

	result, err := uc.register(ctx, requestID, imageBytes)
	if err != nil {
		uc.logOutcome(opLogger, err)
		attempt.Message = err.Error()
	} else {
		opLogger.Info("face registered", zap.String("embedding_id", result.EmbeddingID))
		attempt.Success = true
		attempt.EmbeddingID = result.EmbeddingID
	}
	uc.record(ctx, opLogger, attempt)
	return result, err
}

func (uc *FaceAuthUseCase) register(ctx context.Context, requestID string, imageBytes []byte) (*RegisterResult, error) {
	if len(imageBytes) == 0 {
		return nil, ErrNoImage
	}

	face, err := uc.singleFace(ctx, requestID, imageBytes)
	if err != nil {
		return nil, err
	}

	id := uc.newID()
	if err := uc.store.Put(ctx, id, face.Embedding); err != nil {
		return nil, logging.NewOperationError("usecase.store_put", requestID, err)
	}
	return &RegisterResult{EmbeddingID: id}, nil
}

// Verify compares the single face in imageBytes with the embedding stored under embeddingID.
// A no-match is not an error; it is reported through VerifyResult.Match.
func (uc *FaceAuthUseCase) Verify(ctx context.Context, embeddingID string, imageBytes []byte) (*VerifyResult, error) {
	requestID := logging.RequestIDFromContext(ctx)
	opLogger := logging.WithOperation(uc.logger, "usecase.verify", requestID)
	attempt := uc.newAttempt(requestID, repository.OperationVerify, imageBytes)
	attempt.EmbeddingID = embeddingID

	result, err := uc.verify(ctx, requestID, embeddingID, imageBytes)
	switch {
	case err != nil:
		uc.logOutcome(opLogger, err)
		attempt.Message = err.Error()
	case result.Match.Matched:
		opLogger.Info("face verified", zap.Float64("distance", result.Match.Distance))
		attempt.Success = true
		attempt.Distance = &result.Match.Distance
		attempt.Confidence = &result.Match.Confidence
	default:
		opLogger.Info("face did not match", zap.Float64("distance", result.Match.Distance))
		attempt.Distance = &result.Match.Distance
		attempt.Message = "no match"
	}
	uc.record(ctx, opLogger, attempt)
	return result, err
}

func (uc *FaceAuthUseCase) verify(ctx context.Context, requestID, embeddingID string, imageBytes []byte) (*VerifyResult, error) {
	if len(imageBytes) == 0 {
		return nil, ErrNoImage
	}
	embeddingID = strings.TrimSpace(embeddingID)
	if embeddingID == "" {
		return nil, ErrNoIdentifier
	}

	known, err := uc.store.Get(ctx, embeddingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownIdentifier
		}
		return nil, logging.NewOperationError("usecase.store_get", requestID, err)
	}

	face, err := uc.singleFace(ctx, requestID, imageBytes)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Match: uc.matcher.Compare(known, face.Embedding)}, nil
}

// Detect reports every face box found in imageBytes.
func (uc *FaceAuthUseCase) Detect(ctx context.Context, imageBytes []byte) (*DetectResult, error) {
	requestID := logging.RequestIDFromContext(ctx)
	opLogger := logging.WithOperation(uc.logger, "usecase.detect", requestID)
	attempt := uc.newAttempt(requestID, repository.OperationDetect, imageBytes)

	result, err := uc.detect(ctx, requestID, imageBytes)
	if err != nil {
		uc.logOutcome(opLogger, err)
		attempt.Message = err.Error()
	} else {
		attempt.Success = len(result.Boxes) > 0
	}
	uc.record(ctx, opLogger, attempt)
	return result, err
}

func (uc *FaceAuthUseCase) detect(ctx context.Context, requestID string, imageBytes []byte) (*DetectResult, error) {
	if len(imageBytes) == 0 {
		return nil, ErrNoImage
	}
	faces, err := uc.recognize(ctx, requestID, imageBytes)
	if err != nil {
		return nil, err
	}
	boxes := make([]image.Rectangle, 0, len(faces))
	for _, f := range faces {
		boxes = append(boxes, f.Box)
	}
	return &DetectResult{Boxes: boxes}, nil
}

func (uc *FaceAuthUseCase) singleFace(ctx context.Context, requestID string, imageBytes []byte) (faceengine.Face, error) {
	faces, err := uc.recognize(ctx, requestID, imageBytes)
	if err != nil {
		return faceengine.Face{}, err
	}
	switch len(faces) {
	case 0:
		return faceengine.Face{}, ErrNoFaceDetected
	case 1:
		return faces[0], nil
	default:
		return faceengine.Face{}, ErrMultipleFacesDetected
	}
}

func (uc *FaceAuthUseCase) recognize(ctx context.Context, requestID string, imageBytes []byte) ([]faceengine.Face, error) {
	img, err := imaging.Decode(imageBytes)
	if err != nil {
		return nil, err
	}
	faces, err := uc.engine.Recognize(ctx, img)
	if err != nil {
		var decodeErr *imaging.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, err
		}
		return nil, logging.NewOperationError("usecase.recognize", requestID, err)
	}
	return faces, nil
}

func (uc *FaceAuthUseCase) newAttempt(requestID, operation string, imageBytes []byte) *repository.AttemptLog {
	attempt := &repository.AttemptLog{
		RequestID: requestID,
		Operation: operation,
		CreatedAt: time.Now().UTC(),
	}
	if uc.recorder != nil && len(imageBytes) > 0 {
		sum := sha1.Sum(imageBytes)
		attempt.ImageSHA1 = hex.EncodeToString(sum[:])
	}
	return attempt
}

func (uc *FaceAuthUseCase) record(ctx context.Context, opLogger *zap.Logger, attempt *repository.AttemptLog) {
	if uc.recorder == nil {
		return
	}
	// Audit failures never change the response the caller gets.
	if err := uc.recorder.SaveLog(ctx, attempt); err != nil {
		opLogger.Warn("failed to persist attempt log", zap.Error(err))
	}
}

func (uc *FaceAuthUseCase) logOutcome(opLogger *zap.Logger, err error) {
	var opErr *logging.OperationError
	if errors.As(err, &opErr) {
		opLogger.Error("processing failed", zap.Error(err))
		return
	}
	opLogger.Info("request rejected", zap.String("reason", err.Error()))
}
