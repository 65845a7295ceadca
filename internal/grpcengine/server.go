package grpcengine

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/faceauth/internal/faceengine"
	"github.com/example/faceauth/internal/imaging"
)

type server struct {
	engine faceengine.Engine
	logger *zap.Logger
}

// Register exposes engine on s under ServiceName.
func Register(s *grpc.Server, engine faceengine.Engine, logger *zap.Logger) {
	impl := &server{engine: engine, logger: logger.Named("grpc_engine_server")}
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "Recognize",
			Handler:    impl.recognizeHandler,
		}},
		Metadata: "faceengine/v1/face_engine.proto",
	}, impl)
}

func (s *server) recognizeHandler(_ interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := &wrapperspb.BytesValue{}
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return s.recognize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: recognizeMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.recognize(ctx, req.(*wrapperspb.BytesValue))
	})
}

func (s *server) recognize(ctx context.Context, in *wrapperspb.BytesValue) (interface{}, error) {
	img, err := imaging.Decode(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	faces, err := s.engine.Recognize(ctx, img)
	if err != nil {
		var decodeErr *imaging.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.logger.Error("recognize failed", zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}

	out, err := encodeFaces(faces)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.logger.Debug("recognized frame", zap.Int("faces", len(faces)))
	return out, nil
}
