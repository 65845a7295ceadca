package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/faceauth/internal/faceengine"
	"github.com/example/faceauth/internal/logging"
)

// DefaultKeyPrefix namespaces embedding keys in a shared Redis.
const DefaultKeyPrefix = "faceauth:embedding:"

const encodedSize = faceengine.Dimensions * 4

// RedisStore shares embeddings between several front ends. Keys carry no
// expiry; clearing them is left to whoever operates the Redis instance.
type RedisStore struct {
	cache          Cache
	prefix         string
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewRedisStore constructs a RedisStore on top of cache.
func NewRedisStore(cache Cache, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{
		cache:          cache,
		prefix:         prefix,
		logger:         logger.Named("redis_store"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Put stores embedding under id. Existing keys are left untouched.
func (s *RedisStore) Put(ctx context.Context, id string, embedding faceengine.Embedding) error {
	requestID := logging.RequestIDFromContext(ctx)
	var stored bool
	err := s.withRetry(ctx, requestID, "store.redis.put", func() error {
		ok, err := s.cache.SetNX(ctx, s.prefix+id, encodeEmbedding(embedding), 0)
		stored = ok
		return err
	})
	if err != nil {
		return err
	}
	if !stored {
		return ErrExists
	}
	return nil
}

// Get loads the embedding stored under id.
func (s *RedisStore) Get(ctx context.Context, id string) (faceengine.Embedding, error) {
	requestID := logging.RequestIDFromContext(ctx)
	var raw string
	err := s.withRetry(ctx, requestID, "store.redis.get", func() error {
		value, err := s.cache.Get(ctx, s.prefix+id)
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		raw = value
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return faceengine.Embedding{}, ErrNotFound
		}
		return faceengine.Embedding{}, err
	}
	return decodeEmbedding(raw)
}

func (s *RedisStore) withRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	backoff := s.initialBackoff
	opLogger := logging.WithOperation(s.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= s.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}

		if !IsTransient(err) || attempt == s.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}

func encodeEmbedding(e faceengine.Embedding) []byte {
	buf := make([]byte, encodedSize)
	for i, v := range e {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(raw string) (faceengine.Embedding, error) {
	var e faceengine.Embedding
	if len(raw) != encodedSize {
		return e, fmt.Errorf("stored embedding has %d bytes, want %d", len(raw), encodedSize)
	}
	buf := []byte(raw)
	for i := range e {
		e[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return e, nil
}
