package raster

import (
	"fmt"
	"image"
	"image/draw"
	"math"
)

// DefaultMaxPixels caps a single surface at 100 megapixels.
const DefaultMaxPixels = 100_000_000

// SurfaceAllocator hands out a drawable surface of exactly width x height.
type SurfaceAllocator func(width, height int) (draw.Image, error)

// NewSurfaceAllocator returns an allocator that refuses surfaces larger than
// maxPixels. A non-positive maxPixels means DefaultMaxPixels.
func NewSurfaceAllocator(maxPixels int64) SurfaceAllocator {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	return func(width, height int) (surface draw.Image, err error) {
		if width <= 0 || height <= 0 {
			return nil, fmt.Errorf("%w: %dx%d", ErrSurfaceUnavailable, width, height)
		}
		if int64(width) > math.MaxInt32 || int64(height) > math.MaxInt32 || int64(width)*int64(height) > maxPixels {
			return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrSurfaceUnavailable, width, height, maxPixels)
		}

		defer func() {
			if pnk := recover(); pnk != nil {
				surface = nil
				err = fmt.Errorf("%w: panic at runtime: %v", ErrSurfaceUnavailable, pnk)
			}
		}()

		return image.NewNRGBA(image.Rect(0, 0, width, height)), nil
	}
}
