package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 10, B: 30, A: 255})
		}
	}
	return img
}

func TestDecodePNGReturnsRGBA(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
		t.Fatalf("unexpected bounds: %v", img.Bounds())
	}
	r, g, b, _ := img.At(3, 3).RGBA()
	if r>>8 != 200 || g>>8 != 10 || b>>8 != 30 {
		t.Fatalf("unexpected pixel: %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestDecodeJPEGAndGIF(t *testing.T) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, testImage(), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	var gf bytes.Buffer
	if err := gif.Encode(&gf, testImage(), nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}

	for name, data := range map[string][]byte{"jpeg": jpg.Bytes(), "gif": gf.Bytes()} {
		if _, err := Decode(data); err != nil {
			t.Fatalf("%s: expected decode to succeed, got %v", name, err)
		}
	}
}

func TestDecodeRejectsNonImages(t *testing.T) {
	_, err := Decode([]byte("hello, this is plain text"))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestDecodeRejectsTruncatedImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()/2]

	_, err := Decode(truncated)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeRejectsEmpty(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestToRGBANormalisesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 10, 10))
	dst := ToRGBA(src)
	if dst.Bounds().Min != (image.Point{}) {
		t.Fatalf("expected zero origin, got %v", dst.Bounds())
	}
	if dst.Bounds().Dx() != 5 {
		t.Fatalf("unexpected width: %d", dst.Bounds().Dx())
	}
}

func TestEncodeJPEGRoundTrip(t *testing.T) {
	data, err := EncodeJPEG(testImage())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(data); err != nil {
		t.Fatalf("expected re-encoded frame to decode, got %v", err)
	}
}
