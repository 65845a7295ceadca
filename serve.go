package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/faceauth/internal/config"
	"github.com/example/faceauth/internal/faceengine"
	"github.com/example/faceauth/internal/faceengine/dlib"
	"github.com/example/faceauth/internal/grpcengine"
	"github.com/example/faceauth/internal/handlers"
	"github.com/example/faceauth/internal/middleware"
	"github.com/example/faceauth/internal/repository"
	"github.com/example/faceauth/internal/store"
	"github.com/example/faceauth/internal/usecase"
)

type serveFlags struct {
	port       string
	engine     string
	engineAddr string
	modelsDir  string
	store      string
	tolerance  float64
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			flags.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.port, "port", "", "HTTP port (overrides PORT)")
	fs.StringVar(&flags.engine, "engine", "", "face engine: dlib or grpc (overrides FACE_ENGINE)")
	fs.StringVar(&flags.engineAddr, "engine-addr", "", "remote engine address (overrides FACE_ENGINE_ADDR)")
	fs.StringVar(&flags.modelsDir, "models-dir", "", "dlib models directory (overrides FACE_MODELS_DIR)")
	fs.StringVar(&flags.store, "store", "", "embedding store: memory or redis (overrides EMBEDDING_STORE)")
	fs.Float64Var(&flags.tolerance, "tolerance", 0, "match tolerance (overrides MATCH_TOLERANCE)")
	return cmd
}

// apply copies explicitly set flags over the environment configuration.
func (f *serveFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("engine") {
		cfg.Engine = f.engine
	}
	if fs.Changed("engine-addr") {
		cfg.EngineAddr = f.engineAddr
	}
	if fs.Changed("models-dir") {
		cfg.ModelsDir = f.modelsDir
	}
	if fs.Changed("store") {
		cfg.Store = f.store
	}
	if fs.Changed("tolerance") {
		cfg.MatchTolerance = f.tolerance
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	startupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	engine, closeEngine, err := initEngine(startupCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	embeddings, err := initStore(startupCtx, cfg, logger)
	if err != nil {
		return err
	}

	var recorder usecase.AttemptRecorder
	if cfg.AuditEnabled() {
		repo, err := initAuditLog(startupCtx, cfg.DatabaseDSN, logger)
		if err != nil {
			return err
		}
		recorder = repo
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	uc := usecase.NewFaceAuthUseCase(embeddings, engine, faceengine.NewMatcher(cfg.Tolerance()), recorder, logger)
	router := newRouter(uc, cfg, logger)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("faceauth API listening",
		zap.String("addr", server.Addr),
		zap.String("engine", cfg.Engine),
		zap.String("store", cfg.Store),
		zap.Bool("audit", cfg.AuditEnabled()),
	)
	return serveHTTPServerWithOptions(server, cfg.ShutdownTimeout, logger, nil, ctx.Done())
}

func newRouter(uc *usecase.FaceAuthUseCase, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes
	router.Use(
		middleware.RequestID(),
		middleware.AccessLog(logger),
		middleware.Recovery(logger),
		middleware.CORS(cfg.CORSOrigins),
	)
	handlers.RegisterRoutes(router, uc, handlers.Options{MaxUploadSize: cfg.MaxUploadBytes})
	return router
}

func initEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (faceengine.Engine, func(), error) {
	switch cfg.Engine {
	case config.EngineGRPC:
		client, conn, err := grpcengine.Dial(ctx, cfg.EngineAddr, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to face engine at %s: %w", cfg.EngineAddr, err)
		}
		return client, func() { conn.Close() }, nil
	default:
		engine, err := dlib.New(cfg.ModelsDir, cfg.CNNDetector, logger)
		if err != nil {
			return nil, nil, err
		}
		return engine, engine.Close, nil
	}
}

func initStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.EmbeddingStore, error) {
	if cfg.Store != config.StoreRedis {
		return store.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return store.NewRedisStore(store.NewRedisCache(client), cfg.RedisKeyPrefix, logger), nil
}

func initAuditLog(ctx context.Context, dsn string, logger *zap.Logger) (*repository.AttemptRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access db handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	repo := repository.NewAttemptRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		return nil, fmt.Errorf("auto migrate failed: %w", err)
	}
	return repo, nil
}
