package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/faceauth/internal/logging"
)

// Operations recorded in the audit log.
const (
	OperationRegister = "register"
	OperationVerify   = "verify"
	OperationDetect   = "detect"
)

// AttemptLog represents one persisted register, verify or detect attempt.
type AttemptLog struct {
	ID          uint      `gorm:"primaryKey"`
	RequestID   string    `gorm:"column:request_id;index;size:64"`
	Operation   string    `gorm:"column:operation;index;size:16"`
	EmbeddingID string    `gorm:"column:embedding_id;index;size:64"`
	Success     bool      `gorm:"column:success"`
	Distance    *float64  `gorm:"column:distance"`
	Confidence  *float64  `gorm:"column:confidence"`
	Message     string    `gorm:"column:message;type:text"`
	ImageSHA1   string    `gorm:"column:image_sha1;size:40"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (AttemptLog) TableName() string {
	return "face_attempt_logs"
}

// OperationAggregate summarises the attempts of one operation.
type OperationAggregate struct {
	TotalCount        int64
	SuccessCount      int64
	AverageConfidence float64
}

// AttemptRepository provides persistence APIs for attempt logs.
type AttemptRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewAttemptRepository creates a new repository instance.
func NewAttemptRepository(db *gorm.DB, logger *zap.Logger) *AttemptRepository {
	return &AttemptRepository{
		db:             db,
		logger:         logger.Named("attempt_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *AttemptRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&AttemptLog{})
}

// SaveLog persists an attempt log entry.
func (r *AttemptRepository) SaveLog(ctx context.Context, log *AttemptLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// AggregateOperation summarises every attempt of the given operation.
func (r *AttemptRepository) AggregateOperation(ctx context.Context, operation string) (*OperationAggregate, error) {
	var agg OperationAggregate
	err := r.executeWithRetry(ctx, "repository.aggregate", "", func() error {
		return r.db.WithContext(ctx).
			Model(&AttemptLog{}).
			Where("operation = ?", operation).
			Select(`COUNT(*) AS total_count,
				COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS success_count,
				COALESCE(AVG(confidence), 0) AS average_confidence`).
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *AttemptRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}
		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var temporary interface{ Temporary() bool }
	return errors.As(err, &temporary) && temporary.Temporary()
}
