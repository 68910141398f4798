package raster

import "errors"

var (
	// ErrDecode means the source bytes could not be decoded into an image.
	ErrDecode = errors.New("decode error")
	// ErrSurfaceUnavailable means no drawing surface could be acquired.
	ErrSurfaceUnavailable = errors.New("surface unavailable")
	// ErrInvalidDimension means a zero or negative target size reached the pipeline.
	ErrInvalidDimension = errors.New("invalid dimension")

	ErrUnsupportedFormat = errors.New("unsupported format")
)
