package main

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/example/faceauth/internal/faceengine/dlib"
	"github.com/example/faceauth/internal/grpcengine"
)

func newEngineCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Serve the local dlib face engine over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if cmd.Flags().Changed("listen") {
				cfg.EngineListen = listen
			}

			engine, err := dlib.New(cfg.ModelsDir, cfg.CNNDetector, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			lis, err := net.Listen("tcp", cfg.EngineListen)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.EngineListen, err)
			}

			server := grpc.NewServer()
			grpcengine.Register(server, engine, logger)

			logger.Info("face engine listening", zap.String("addr", lis.Addr().String()))
			return serveGRPC(cmd.Context(), server, lis, logger)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "gRPC listen address (overrides FACE_ENGINE_LISTEN)")
	return cmd
}

// serveGRPC runs server until ctx is cancelled, then drains in-flight calls.
func serveGRPC(ctx context.Context, server *grpc.Server, lis net.Listener, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("stopping face engine")
		server.GracefulStop()
		return <-errCh
	}
}
