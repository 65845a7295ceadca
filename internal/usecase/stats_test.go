package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/example/faceauth/internal/repository"
	"github.com/example/faceauth/internal/store"
)

type aggregatingRecorder struct {
	stubRecorder
	aggregates map[string]*repository.OperationAggregate
	err        error
}

func (a *aggregatingRecorder) AggregateOperation(ctx context.Context, operation string) (*repository.OperationAggregate, error) {
	if a.err != nil {
		return nil, a.err
	}
	if agg, ok := a.aggregates[operation]; ok {
		return agg, nil
	}
	return &repository.OperationAggregate{}, nil
}

func TestGetStatsSummary(t *testing.T) {
	recorder := &aggregatingRecorder{aggregates: map[string]*repository.OperationAggregate{
		repository.OperationRegister: {TotalCount: 4, SuccessCount: 3},
		repository.OperationVerify:   {TotalCount: 10, SuccessCount: 5, AverageConfidence: 0.71},
	}}
	uc := newTestUseCase(&pixelEngine{}, store.NewMemoryStore(), recorder)

	if !uc.StatsAvailable() {
		t.Fatal("expected stats to be available")
	}
	summary, err := uc.GetStatsSummary(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if summary.Register.SuccessRate != 0.75 {
		t.Fatalf("unexpected register success rate: %f", summary.Register.SuccessRate)
	}
	if summary.Verify.SuccessRate != 0.5 || summary.AverageConfidence != 0.71 {
		t.Fatalf("unexpected verify stats: %+v", summary)
	}
	if summary.Detect.TotalRequests != 0 || summary.Detect.SuccessRate != 0 {
		t.Fatalf("unexpected detect stats: %+v", summary.Detect)
	}
}

func TestGetStatsSummaryWithoutAuditLog(t *testing.T) {
	uc := newTestUseCase(&pixelEngine{}, store.NewMemoryStore(), nil)
	if uc.StatsAvailable() {
		t.Fatal("expected stats to be unavailable")
	}
	if _, err := uc.GetStatsSummary(context.Background()); !errors.Is(err, ErrStatsUnavailable) {
		t.Fatalf("expected ErrStatsUnavailable, got %v", err)
	}
}
