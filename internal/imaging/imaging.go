// Package imaging turns uploaded bytes into RGB pixel arrays the face
// engines can consume.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is used when re-encoding frames for engines that take JPEG input.
const JPEGQuality = 95

var (
	// ErrEmpty is returned for a zero-length payload.
	ErrEmpty = errors.New("empty image payload")
	// ErrUnsupportedType is returned when the payload is not an image at all.
	ErrUnsupportedType = errors.New("unsupported image type")
)

// DecodeError reports bytes that could not be turned into an image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid image data: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode sniffs and decodes data, returning the pixels in RGBA channel order.
func Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: ErrEmpty}
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, &DecodeError{Err: errors.New("image has no pixels")}
	}
	return ToRGBA(img), nil
}

// ToRGBA copies img into a zero-origin RGBA buffer. Decoders hand back
// YCbCr, paletted or grey images; engines expect plain RGB.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// EncodeJPEG serialises img for engines that only read JPEG frames.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
