// Package dimension maps a user's size edit onto a full set of resize options.
// Everything here is a pure transform over task.Options.
package dimension

import (
	"fmt"
	"math"

	"github.com/seventv/image-resizer/internal/raster"
	"github.com/seventv/image-resizer/task"
)

// MaxAxis is the largest width or height an edit resolves to. The surface
// allocator refuses anything larger on a single axis.
const MaxAxis = math.MaxInt32

// Initial returns the options a freshly loaded image starts with.
func Initial(original task.Dimensions) task.Options {
	opts := task.Options{
		Width:               original.Width,
		Height:              original.Height,
		Mode:                task.ModePixels,
		Quality:             task.DefaultQuality,
		Format:              task.FormatJPEG,
		MaintainAspectRatio: true,
	}
	opts.Percentage = percentageOf(original, opts.Width)

	return opts
}

// Resolve applies value to axis and returns the updated options. Negative
// width/height edits are ignored and percentage edits are clamped, so it never
// fails.
func Resolve(original task.Dimensions, opts task.Options, axis task.Axis, value float64) task.Options {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return opts
	}

	switch axis {
	case task.AxisWidth:
		if value < 0 {
			return opts
		}
		opts.Width = clampAxis(value)
		if opts.MaintainAspectRatio && original.Width != 0 {
			opts.Height = clampAxis(value * float64(original.Height) / float64(original.Width))
		}
	case task.AxisHeight:
		if value < 0 {
			return opts
		}
		opts.Height = clampAxis(value)
		if opts.MaintainAspectRatio && original.Height != 0 {
			opts.Width = clampAxis(value * float64(original.Width) / float64(original.Height))
		}
	case task.AxisPercentage:
		p := ClampPercentage(value)
		opts.Width = scale(original.Width, p)
		opts.Height = scale(original.Height, p)
	default:
		return opts
	}

	opts.Percentage = percentageOf(original, opts.Width)

	return opts
}

// ClampPercentage rounds p and keeps it inside [task.MinPercentage, task.MaxPercentage].
func ClampPercentage(p float64) int {
	if p != p || p < task.MinPercentage {
		return task.MinPercentage
	}
	if p > task.MaxPercentage {
		return task.MaxPercentage
	}

	return round(p)
}

// scale never takes a non-empty axis below one pixel, so a tiny original
// resolves to 1 where round(W*p/100) alone would give 0.
func scale(original int, p int) int {
	v := round(float64(original) * float64(p) / 100)
	if v == 0 && original > 0 {
		return 1
	}

	return v
}

func percentageOf(original task.Dimensions, width int) int {
	if original.Width == 0 {
		return 0
	}

	return round(float64(width) / float64(original.Width) * 100)
}

// clampAxis saturates v into [0, MaxAxis] before converting, as a float
// outside the int range does not convert.
func clampAxis(v float64) int {
	if v <= 0 {
		return 0
	}
	if v >= MaxAxis {
		return MaxAxis
	}

	return round(v)
}

func round(v float64) int {
	return int(math.Round(v))
}

// Validate reports raster.ErrInvalidDimension for options the pipeline must
// never see.
func Validate(opts task.Options) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", raster.ErrInvalidDimension, opts.Width, opts.Height)
	}

	return nil
}
