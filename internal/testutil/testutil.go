package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"reflect"
	"testing"
)

func Assert(t *testing.T, expected interface{}, value interface{}, msg string) {
	t.Helper()

	if !reflect.DeepEqual(expected, value) {
		t.Fatalf("%s: expected %v (%T) got %v (%T)", msg, expected, expected, value, value)
	}
}

func IsNil(t *testing.T, err error, msg string) {
	t.Helper()

	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

func IsNotNil(t *testing.T, err error, msg string) {
	t.Helper()

	if err == nil {
		t.Fatalf("%s: expected an error", msg)
	}
}

// Gradient builds a w x h image with a horizontal and vertical color ramp so
// that encoders produce non-trivial output.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x ^ y) & 0xff),
				A: 0xff,
			})
		}
	}

	return img
}

func PNG(t *testing.T, w, h int) []byte {
	t.Helper()

	buf := bytes.Buffer{}
	IsNil(t, png.Encode(&buf, Gradient(w, h)), "png encode")

	return buf.Bytes()
}

func JPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	buf := bytes.Buffer{}
	IsNil(t, jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 95}), "jpeg encode")

	return buf.Bytes()
}
