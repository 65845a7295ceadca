// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/faceauth/internal/faceengine"
	"github.com/example/faceauth/internal/store"
)

// Engine backends.
const (
	EngineDlib = "dlib"
	EngineGRPC = "grpc"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds every setting of the service.
type Config struct {
	Port            string
	Engine          string
	ModelsDir       string
	CNNDetector     bool
	EngineAddr      string
	EngineListen    string
	MatchTolerance  float64
	Store           string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisKeyPrefix  string
	DatabaseDSN     string
	MaxUploadBytes  int64
	CORSOrigins     []string
	LogLevel        string
	LogFile         string
	ShutdownTimeout time.Duration
}

// Load reads an optional .env file (ENV_FILE, default ".env") and then the
// process environment. Variables already set in the environment win.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "5000"),
		Engine:         strings.ToLower(getEnv("FACE_ENGINE", EngineDlib)),
		ModelsDir:      getEnv("FACE_MODELS_DIR", "models"),
		EngineAddr:     getEnv("FACE_ENGINE_ADDR", "localhost:50051"),
		EngineListen:   getEnv("FACE_ENGINE_LISTEN", ":50051"),
		Store:          strings.ToLower(getEnv("EMBEDDING_STORE", StoreMemory)),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", store.DefaultKeyPrefix),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		CORSOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        os.Getenv("LOG_FILE"),
	}

	switch detector := strings.ToLower(getEnv("FACE_DETECTOR", "hog")); detector {
	case "hog":
	case "cnn":
		cfg.CNNDetector = true
	default:
		return nil, fmt.Errorf("FACE_DETECTOR: unknown detector %q", detector)
	}

	var err error
	if cfg.MatchTolerance, err = strconv.ParseFloat(getEnv("MATCH_TOLERANCE", "0.6"), 64); err != nil {
		return nil, fmt.Errorf("MATCH_TOLERANCE: %w", err)
	}
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	if cfg.MaxUploadBytes, err = strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "10485760"), 10, 64); err != nil {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be caught while parsing.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineDlib, EngineGRPC:
	default:
		return fmt.Errorf("FACE_ENGINE: unknown engine %q", c.Engine)
	}
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("EMBEDDING_STORE: unknown store %q", c.Store)
	}
	if c.MatchTolerance <= 0 {
		return fmt.Errorf("MATCH_TOLERANCE must be positive, got %v", c.MatchTolerance)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// AuditEnabled reports whether attempts are written to PostgreSQL.
func (c *Config) AuditEnabled() bool {
	return c.DatabaseDSN != ""
}

// Tolerance returns the match tolerance, defaulting when unset.
func (c *Config) Tolerance() float64 {
	if c.MatchTolerance <= 0 {
		return faceengine.DefaultTolerance
	}
	return c.MatchTolerance
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
