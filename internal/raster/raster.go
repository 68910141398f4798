// Package raster draws a decoded image onto a fixed size surface and encodes
// the result.
package raster

import (
	"context"
	"fmt"

	"github.com/seventv/image-resizer/task"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

type Rasterizer struct {
	Allocate SurfaceAllocator
	// Scaler defaults to draw.CatmullRom, the smoothest kernel x/image offers.
	Scaler draw.Scaler
}

func New(maxPixels int64) *Rasterizer {
	return &Rasterizer{
		Allocate: NewSurfaceAllocator(maxPixels),
		Scaler:   draw.CatmullRom,
	}
}

var defaultRasterizer = New(DefaultMaxPixels)

// Rasterize runs the default Rasterizer.
func Rasterize(ctx context.Context, src *Source, width, height int, format task.Format, quality float64) (*Payload, error) {
	return defaultRasterizer.Rasterize(ctx, src, width, height, format, quality)
}

// Rasterize waits for src to decode, stretches it over a width x height
// surface and encodes that surface. It returns either a complete payload or
// an error, never both.
func (r *Rasterizer) Rasterize(ctx context.Context, src *Source, width, height int, format task.Format, quality float64) (*Payload, error) {
	img, err := src.Wait(ctx)
	if err != nil {
		return nil, err
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimension, width, height)
	}

	allocate := r.Allocate
	if allocate == nil {
		allocate = NewSurfaceAllocator(DefaultMaxPixels)
	}

	surface, err := allocate(width, height)
	if err != nil {
		return nil, err
	}
	if surface == nil {
		return nil, fmt.Errorf("%w: allocator returned no surface", ErrSurfaceUnavailable)
	}

	scaler := r.Scaler
	if scaler == nil {
		scaler = draw.CatmullRom
	}

	scaler.Scale(surface, surface.Bounds(), img, img.Bounds(), draw.Src, nil)

	quality = task.ClampQuality(quality)

	data, err := Encode(surface, format, quality)
	if err != nil {
		return nil, err
	}

	zap.S().Debugw("rasterized",
		"width", width,
		"height", height,
		"format", format.String(),
		"quality", quality,
		"size", len(data),
	)

	return NewPayload(data, format, quality, width, height), nil
}
