package grpcengine

import (
	"context"
	"errors"
	"image"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/faceauth/internal/faceengine"
	"github.com/example/faceauth/internal/imaging"
	"github.com/example/faceauth/internal/logging"
)

// Dial returns a ready-to-use faceengine.Engine backed by a remote engine.
func Dial(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)
	conn, err := grpc.DialContext(dialCtx, addr, opts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcengine.dial", "", err)
		logger.Error("failed to dial face engine", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewClient(conn, logger), conn, nil
}

// Client calls a remote face engine.
type Client struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface, logger *zap.Logger) *Client {
	return &Client{conn: conn, logger: logger.Named("grpc_engine_client")}
}

// Recognize implements faceengine.Engine.
func (c *Client) Recognize(ctx context.Context, img image.Image) ([]faceengine.Face, error) {
	requestID := logging.RequestIDFromContext(ctx)
	frame, err := imaging.EncodeJPEG(img)
	if err != nil {
		return nil, logging.NewOperationError("grpcengine.encode_frame", requestID, err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, recognizeMethod, wrapperspb.Bytes(frame), resp); err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.InvalidArgument {
			return nil, &imaging.DecodeError{Err: errors.New(st.Message())}
		}
		wrapped := logging.NewOperationError("grpcengine.recognize", requestID, err)
		c.logger.Error("face engine call failed", zap.Error(wrapped))
		return nil, wrapped
	}

	faces, err := decodeFaces(resp)
	if err != nil {
		return nil, logging.NewOperationError("grpcengine.decode_response", requestID, err)
	}
	return faces, nil
}
