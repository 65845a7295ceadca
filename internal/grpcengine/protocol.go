// Package grpcengine moves face recognition across a gRPC boundary so the
// HTTP front end can run without cgo while a separate process holds the
// dlib models. Messages are well-known protobuf types: the request is a
// BytesValue carrying a JPEG frame, the response a Struct of the form
//
//	{"faces": [{"box": [minX, minY, maxX, maxY], "embedding": [128 numbers]}]}
package grpcengine

import (
	"fmt"
	"image"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/faceauth/internal/faceengine"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName     = "faceengine.v1.FaceEngine"
	recognizeMethod = "/" + ServiceName + "/Recognize"
)

func encodeFaces(faces []faceengine.Face) (*structpb.Struct, error) {
	list := make([]interface{}, 0, len(faces))
	for _, f := range faces {
		embedding := make([]interface{}, faceengine.Dimensions)
		for i, v := range f.Embedding {
			embedding[i] = float64(v)
		}
		list = append(list, map[string]interface{}{
			"box":       []interface{}{f.Box.Min.X, f.Box.Min.Y, f.Box.Max.X, f.Box.Max.Y},
			"embedding": embedding,
		})
	}
	return structpb.NewStruct(map[string]interface{}{"faces": list})
}

func decodeFaces(msg *structpb.Struct) ([]faceengine.Face, error) {
	values := msg.GetFields()["faces"].GetListValue().GetValues()
	faces := make([]faceengine.Face, 0, len(values))
	for i, v := range values {
		fields := v.GetStructValue().GetFields()

		box := numbers(fields["box"])
		if len(box) != 4 {
			return nil, fmt.Errorf("face %d: box has %d values, want 4", i, len(box))
		}
		embedding, err := faceengine.EmbeddingFromSlice(numbers(fields["embedding"]))
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		faces = append(faces, faceengine.Face{
			Box:       image.Rect(int(box[0]), int(box[1]), int(box[2]), int(box[3])),
			Embedding: embedding,
		})
	}
	return faces, nil
}

func numbers(v *structpb.Value) []float64 {
	items := v.GetListValue().GetValues()
	out := make([]float64, len(items))
	for i, item := range items {
		out[i] = item.GetNumberValue()
	}
	return out
}
