package usecase

import (
	"context"
	"errors"

	"github.com/example/faceauth/internal/repository"
)

// ErrStatsUnavailable is returned when no audit log is configured.
var ErrStatsUnavailable = errors.New("attempt statistics require the audit log")

// OperationAggregator is implemented by recorders that can summarise their logs.
type OperationAggregator interface {
	AggregateOperation(ctx context.Context, operation string) (*repository.OperationAggregate, error)
}

// OperationStats represents aggregated insights for one operation.
type OperationStats struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	SuccessRate        float64 `json:"success_rate"`
}

// StatsSummary groups the per-operation statistics.
type StatsSummary struct {
	Register          OperationStats `json:"register"`
	Verify            OperationStats `json:"verify"`
	Detect            OperationStats `json:"detect"`
	AverageConfidence float64        `json:"average_verify_confidence"`
}

// StatsAvailable reports whether GetStatsSummary can succeed.
func (uc *FaceAuthUseCase) StatsAvailable() bool {
	_, ok := uc.recorder.(OperationAggregator)
	return ok
}

// GetStatsSummary aggregates attempt statistics from the audit log.
func (uc *FaceAuthUseCase) GetStatsSummary(ctx context.Context) (*StatsSummary, error) {
	aggregator, ok := uc.recorder.(OperationAggregator)
	if !ok {
		return nil, ErrStatsUnavailable
	}

	summary := &StatsSummary{}
	targets := []struct {
		operation string
		dst       *OperationStats
	}{
		{repository.OperationRegister, &summary.Register},
		{repository.OperationVerify, &summary.Verify},
		{repository.OperationDetect, &summary.Detect},
	}
	for _, target := range targets {
		agg, err := aggregator.AggregateOperation(ctx, target.operation)
		if err != nil {
			return nil, err
		}
		*target.dst = OperationStats{
			TotalRequests:      agg.TotalCount,
			SuccessfulRequests: agg.SuccessCount,
		}
		if agg.TotalCount > 0 {
			target.dst.SuccessRate = float64(agg.SuccessCount) / float64(agg.TotalCount)
		}
		if target.operation == repository.OperationVerify {
			summary.AverageConfidence = agg.AverageConfidence
		}
	}
	return summary, nil
}
