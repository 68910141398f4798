package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/seventv/image-resizer/internal/testutil"
	"github.com/seventv/image-resizer/task"
)

func TestRasterizeJPEG(t *testing.T) {
	t.Parallel()

	src := NewSource(testutil.PNG(t, 100, 100))

	payload, err := Rasterize(context.Background(), src, 50, 50, task.FormatJPEG, 0.8)
	testutil.IsNil(t, err, "rasterize")

	testutil.Assert(t, true, payload.Len() > 0, "payload is not empty")
	testutil.Assert(t, task.FormatJPEG, payload.Format, "payload is tagged jpeg")
	testutil.Assert(t, 0.8, payload.Quality, "payload quality")

	img, err := jpeg.Decode(bytes.NewReader(payload.Bytes()))
	testutil.IsNil(t, err, "payload decodes as jpeg")
	testutil.Assert(t, image.Rect(0, 0, 50, 50), img.Bounds(), "payload size")
}

func TestRasterizeStretchesWithoutCropping(t *testing.T) {
	t.Parallel()

	src := NewSource(testutil.PNG(t, 200, 100))

	payload, err := Rasterize(context.Background(), src, 30, 90, task.FormatPNG, 0.5)
	testutil.IsNil(t, err, "rasterize")

	img, err := png.Decode(bytes.NewReader(payload.Bytes()))
	testutil.IsNil(t, err, "payload decodes as png")
	testutil.Assert(t, image.Rect(0, 0, 30, 90), img.Bounds(), "exact target size")

	// the corner pixels stay opaque, so nothing was letterboxed
	for _, p := range []image.Point{{0, 0}, {29, 0}, {0, 89}, {29, 89}} {
		_, _, _, a := img.At(p.X, p.Y).RGBA()
		testutil.Assert(t, uint32(0xffff), a, "corner alpha")
	}
}

func TestRasterizeWEBP(t *testing.T) {
	t.Parallel()

	src := NewSource(testutil.JPEG(t, 64, 48))

	payload, err := Rasterize(context.Background(), src, 32, 24, task.FormatWEBP, 0.7)
	testutil.IsNil(t, err, "rasterize")
	testutil.Assert(t, "RIFF", string(payload.Bytes()[:4]), "riff header")
	testutil.Assert(t, "WEBP", string(payload.Bytes()[8:12]), "webp fourcc")
}

func TestRasterizeSmoothsInsteadOfNearestNeighbour(t *testing.T) {
	t.Parallel()

	// a 2x1 black/white image scaled up must produce intermediate greys
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 0xff})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})

	payload, err := Rasterize(context.Background(), FromImage(img), 16, 1, task.FormatPNG, 1)
	testutil.IsNil(t, err, "rasterize")

	out, err := png.Decode(bytes.NewReader(payload.Bytes()))
	testutil.IsNil(t, err, "decode")

	greys := 0
	for x := 0; x < 16; x++ {
		r, _, _, _ := out.At(x, 0).RGBA()
		if r > 0x0fff && r < 0xf000 {
			greys++
		}
	}
	testutil.Assert(t, true, greys > 0, "interpolated pixels present")
}

func TestRasterizeDecodeError(t *testing.T) {
	t.Parallel()

	src := NewSource([]byte("this is not an image"))

	payload, err := Rasterize(context.Background(), src, 10, 10, task.FormatJPEG, 0.8)
	testutil.Assert(t, true, errors.Is(err, ErrDecode), "decode error")
	testutil.Assert(t, true, payload == nil, "no partial result")

	// decoding is single-shot, the same error comes back again
	_, err = src.Wait(context.Background())
	testutil.Assert(t, true, errors.Is(err, ErrDecode), "decode error is kept")
}

func TestRasterizeInvalidDimension(t *testing.T) {
	t.Parallel()

	src := FromImage(testutil.Gradient(10, 10))

	_, err := Rasterize(context.Background(), src, 0, 10, task.FormatJPEG, 0.8)
	testutil.Assert(t, true, errors.Is(err, ErrInvalidDimension), "zero width")

	_, err = Rasterize(context.Background(), src, 10, -1, task.FormatJPEG, 0.8)
	testutil.Assert(t, true, errors.Is(err, ErrInvalidDimension), "negative height")
}

func TestRasterizeSurfaceUnavailable(t *testing.T) {
	t.Parallel()

	src := FromImage(testutil.Gradient(10, 10))

	r := New(50)
	_, err := r.Rasterize(context.Background(), src, 10, 10, task.FormatJPEG, 0.8)
	testutil.Assert(t, true, errors.Is(err, ErrSurfaceUnavailable), "surface over the pixel limit")

	r = &Rasterizer{Allocate: func(width, height int) (draw.Image, error) {
		return nil, nil
	}}
	_, err = r.Rasterize(context.Background(), src, 10, 10, task.FormatJPEG, 0.8)
	testutil.Assert(t, true, errors.Is(err, ErrSurfaceUnavailable), "allocator returned nothing")

	r = &Rasterizer{Allocate: func(width, height int) (draw.Image, error) {
		return nil, ErrSurfaceUnavailable
	}}
	payload, err := r.Rasterize(context.Background(), src, 10, 10, task.FormatJPEG, 0.8)
	testutil.Assert(t, true, errors.Is(err, ErrSurfaceUnavailable), "allocator failure is surfaced")
	testutil.Assert(t, true, payload == nil, "no partial result")
}

func TestRasterizeUnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, err := Rasterize(context.Background(), FromImage(testutil.Gradient(4, 4)), 2, 2, task.Format(99), 0.8)
	testutil.Assert(t, true, errors.Is(err, ErrUnsupportedFormat), "unknown format")
}

func TestRasterizeHonoursContext(t *testing.T) {
	t.Parallel()

	src := &Source{done: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
	defer cancel()

	_, err := Rasterize(ctx, src, 10, 10, task.FormatJPEG, 0.8)
	testutil.Assert(t, true, errors.Is(err, context.DeadlineExceeded), "waiting on decode respects ctx")
}

func TestQualityAffectsJPEGSize(t *testing.T) {
	t.Parallel()

	src := FromImage(testutil.Gradient(128, 128))

	low, err := Rasterize(context.Background(), src, 128, 128, task.FormatJPEG, 0.1)
	testutil.IsNil(t, err, "low quality")
	high, err := Rasterize(context.Background(), src, 128, 128, task.FormatJPEG, 1)
	testutil.IsNil(t, err, "high quality")

	testutil.Assert(t, true, low.Len() < high.Len(), "lower quality is smaller")
}

func TestPayloadDataURL(t *testing.T) {
	t.Parallel()

	p := NewPayload([]byte{0xde, 0xad, 0xbe, 0xef}, task.FormatPNG, 1, 1, 1)

	testutil.Assert(t, "data:image/png;base64,", p.DataURLPrefix(), "prefix")
	testutil.Assert(t, "data:image/png;base64,3q2+7w==", p.DataURL(), "data url")
	testutil.Assert(t, 128, len(p.SHA3()), "sha3-512 hex digest")
	other := NewPayload([]byte{0xde, 0xad}, task.FormatPNG, 1, 1, 1)
	testutil.Assert(t, true, p.SHA3() != other.SHA3(), "digest depends on content")
}

func TestSourceDimensions(t *testing.T) {
	t.Parallel()

	dims, err := NewSource(testutil.JPEG(t, 33, 17)).Dimensions(context.Background())
	testutil.IsNil(t, err, "dimensions")
	testutil.Assert(t, task.Dimensions{Width: 33, Height: 17}, dims, "natural size")
}
