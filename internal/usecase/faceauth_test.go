package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/example/faceauth/internal/faceengine"
	"github.com/example/faceauth/internal/imaging"
	"github.com/example/faceauth/internal/logging"
	"github.com/example/faceauth/internal/repository"
	"github.com/example/faceauth/internal/store"
)

// pixelEngine derives its answer from the top-left pixel: green is the number
// of faces, red scaled to [0,1] is the first embedding component.
type pixelEngine struct {
	calls int
	err   error
}

func (e *pixelEngine) Recognize(ctx context.Context, img image.Image) ([]faceengine.Face, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	r, g, _, _ := img.At(0, 0).RGBA()
	faces := make([]faceengine.Face, int(g>>8))
	for i := range faces {
		faces[i].Box = image.Rect(i*10, 0, i*10+8, 8)
		faces[i].Embedding[0] = float32(r>>8) / 255
	}
	return faces, nil
}

type stubRecorder struct {
	logs    []*repository.AttemptLog
	saveErr error
}

func (s *stubRecorder) SaveLog(ctx context.Context, log *repository.AttemptLog) error {
	s.logs = append(s.logs, log)
	return s.saveErr
}

type failingStore struct {
	err error
}

func (s failingStore) Put(ctx context.Context, id string, e faceengine.Embedding) error { return s.err }
func (s failingStore) Get(ctx context.Context, id string) (faceengine.Embedding, error) {
	return faceengine.Embedding{}, s.err
}

func facePNG(t *testing.T, person uint8, faces uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: person, G: faces, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestUseCase(engine faceengine.Engine, s store.EmbeddingStore, recorder AttemptRecorder) *FaceAuthUseCase {
	return NewFaceAuthUseCase(s, engine, faceengine.NewMatcher(faceengine.DefaultTolerance), recorder, zap.NewNop())
}

func TestRegisterThenVerifySameImage(t *testing.T) {
	s := store.NewMemoryStore()
	uc := newTestUseCase(&pixelEngine{}, s, nil)
	img := facePNG(t, 100, 1)

	reg, err := uc.Register(context.Background(), img)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.EmbeddingID == "" {
		t.Fatal("expected non-empty embedding id")
	}
	if s.Len() != 1 {
		t.Fatalf("expected one stored embedding, got %d", s.Len())
	}

	res, err := uc.Verify(context.Background(), reg.EmbeddingID, img)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Match.Matched {
		t.Fatalf("expected match, got %+v", res.Match)
	}
	if math.Abs(res.Match.Confidence-1) > 1e-9 {
		t.Fatalf("expected confidence close to 1, got %f", res.Match.Confidence)
	}
}

func TestVerifyDifferentPersonFails(t *testing.T) {
	uc := newTestUseCase(&pixelEngine{}, store.NewMemoryStore(), nil)

	reg, err := uc.Register(context.Background(), facePNG(t, 0, 1))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := uc.Verify(context.Background(), reg.EmbeddingID, facePNG(t, 255, 1))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Match.Matched {
		t.Fatalf("expected no match, got %+v", res.Match)
	}
	if res.Match.Confidence != 0 {
		t.Fatalf("expected no confidence, got %f", res.Match.Confidence)
	}
}

func TestRegisterRejectsFaceCountWithoutMutatingStore(t *testing.T) {
	cases := map[string]struct {
		faces uint8
		want  error
	}{
		"no face":        {faces: 0, want: ErrNoFaceDetected},
		"multiple faces": {faces: 2, want: ErrMultipleFacesDetected},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := store.NewMemoryStore()
			uc := newTestUseCase(&pixelEngine{}, s, nil)

			_, err := uc.Register(context.Background(), facePNG(t, 50, tc.faces))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if s.Len() != 0 {
				t.Fatalf("expected empty store, got %d entries", s.Len())
			}
		})
	}
}

func TestRegisterRejectsMissingAndUndecodableImages(t *testing.T) {
	engine := &pixelEngine{}
	uc := newTestUseCase(engine, store.NewMemoryStore(), nil)

	if _, err := uc.Register(context.Background(), nil); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}

	_, err := uc.Register(context.Background(), []byte("definitely not an image"))
	var decodeErr *imaging.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if engine.calls != 0 {
		t.Fatalf("expected engine not to run, got %d calls", engine.calls)
	}
}

func TestVerifyUnknownIdentifierSkipsDetection(t *testing.T) {
	engine := &pixelEngine{}
	uc := newTestUseCase(engine, store.NewMemoryStore(), nil)

	_, err := uc.Verify(context.Background(), "does-not-exist", facePNG(t, 10, 1))
	if !errors.Is(err, ErrUnknownIdentifier) {
		t.Fatalf("expected ErrUnknownIdentifier, got %v", err)
	}
	if engine.calls != 0 {
		t.Fatalf("expected detection to be skipped, got %d calls", engine.calls)
	}
}

func TestVerifyChecksInputsInOrder(t *testing.T) {
	uc := newTestUseCase(&pixelEngine{}, store.NewMemoryStore(), nil)

	if _, err := uc.Verify(context.Background(), "", nil); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage first, got %v", err)
	}
	if _, err := uc.Verify(context.Background(), "  ", facePNG(t, 1, 1)); !errors.Is(err, ErrNoIdentifier) {
		t.Fatalf("expected ErrNoIdentifier, got %v", err)
	}
}

func TestEngineFailureIsOperationError(t *testing.T) {
	engine := &pixelEngine{err: errors.New("engine offline")}
	uc := newTestUseCase(engine, store.NewMemoryStore(), nil)
	ctx := logging.ContextWithRequestID(context.Background(), "req-3")

	_, err := uc.Register(ctx, facePNG(t, 1, 1))
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "usecase.recognize" || opErr.RequestID != "req-3" {
		t.Fatalf("unexpected operation error: %+v", opErr)
	}
}

func TestStoreFailureIsOperationError(t *testing.T) {
	uc := newTestUseCase(&pixelEngine{}, failingStore{err: errors.New("redis down")}, nil)

	_, err := uc.Verify(context.Background(), "id", facePNG(t, 1, 1))
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) || opErr.Operation != "usecase.store_get" {
		t.Fatalf("expected store_get OperationError, got %v", err)
	}
}

func TestDetectReportsBoxes(t *testing.T) {
	uc := newTestUseCase(&pixelEngine{}, store.NewMemoryStore(), nil)

	res, err := uc.Detect(context.Background(), facePNG(t, 1, 2))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(res.Boxes) != 2 {
		t.Fatalf("expected 2 boxes, got %d", len(res.Boxes))
	}

	res, err = uc.Detect(context.Background(), facePNG(t, 1, 0))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(res.Boxes) != 0 {
		t.Fatalf("expected no boxes, got %d", len(res.Boxes))
	}
}

func TestAttemptsAreRecorded(t *testing.T) {
	recorder := &stubRecorder{saveErr: errors.New("db down")}
	uc := newTestUseCase(&pixelEngine{}, store.NewMemoryStore(), recorder)
	img := facePNG(t, 30, 1)

	reg, err := uc.Register(context.Background(), img)
	if err != nil {
		t.Fatalf("audit failure must not fail registration: %v", err)
	}
	if _, err := uc.Verify(context.Background(), reg.EmbeddingID, facePNG(t, 250, 1)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if len(recorder.logs) != 2 {
		t.Fatalf("expected 2 attempt logs, got %d", len(recorder.logs))
	}
	first, second := recorder.logs[0], recorder.logs[1]
	if first.Operation != repository.OperationRegister || !first.Success || first.EmbeddingID != reg.EmbeddingID {
		t.Fatalf("unexpected register log: %+v", first)
	}
	if first.ImageSHA1 == "" {
		t.Fatal("expected image hash to be recorded")
	}
	if second.Operation != repository.OperationVerify || second.Success || second.Distance == nil || second.Confidence != nil {
		t.Fatalf("unexpected verify log: %+v", second)
	}
}
