package dimension

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/seventv/image-resizer/internal/raster"
	"github.com/seventv/image-resizer/internal/testutil"
	"github.com/seventv/image-resizer/task"
)

func TestResolveScenarios(t *testing.T) {
	t.Parallel()

	type testCase struct {
		Name     string
		Original task.Dimensions
		Mode     task.Mode
		Lock     bool
		Axis     task.Axis
		Value    float64
		Width    int
		Height   int
		Percent  int
	}

	cases := []testCase{
		{"locked width", task.Dimensions{Width: 2000, Height: 1000}, task.ModePixels, true, task.AxisWidth, 1000, 1000, 500, 50},
		{"locked height", task.Dimensions{Width: 2000, Height: 1000}, task.ModePixels, true, task.AxisHeight, 250, 500, 250, 25},
		{"unlocked width", task.Dimensions{Width: 2000, Height: 1000}, task.ModePixels, false, task.AxisWidth, 1000, 1000, 1000, 50},
		{"percentage", task.Dimensions{Width: 800, Height: 600}, task.ModePercentage, true, task.AxisPercentage, 25, 200, 150, 25},
		{"percentage unlocked", task.Dimensions{Width: 800, Height: 600}, task.ModePercentage, false, task.AxisPercentage, 25, 200, 150, 25},
		{"percentage clamped high", task.Dimensions{Width: 10, Height: 20}, task.ModePercentage, true, task.AxisPercentage, 900, 50, 100, 500},
		{"percentage clamped low", task.Dimensions{Width: 1000, Height: 200}, task.ModePercentage, true, task.AxisPercentage, -4, 10, 2, 1},
		{"zero width original", task.Dimensions{Width: 0, Height: 100}, task.ModePixels, true, task.AxisWidth, 50, 50, 100, 0},
		{"huge locked width", task.Dimensions{Width: 2000, Height: 1000}, task.ModePixels, true, task.AxisWidth, 1e19, MaxAxis, MaxAxis, 107374182},
		{"huge unlocked height", task.Dimensions{Width: 2000, Height: 1000}, task.ModePixels, false, task.AxisHeight, 1e300, 2000, MaxAxis, 100},
		{"huge percentage", task.Dimensions{Width: 10, Height: 20}, task.ModePercentage, true, task.AxisPercentage, 1e19, 50, 100, 500},
		{"huge negative percentage", task.Dimensions{Width: 1000, Height: 200}, task.ModePercentage, true, task.AxisPercentage, -1e19, 10, 2, 1},
	}

	for _, c := range cases {
		c := c
		t.Run(c.Name, func(t *testing.T) {
			t.Parallel()

			opts := Initial(c.Original)
			opts.Mode = c.Mode
			opts.MaintainAspectRatio = c.Lock

			out := Resolve(c.Original, opts, c.Axis, c.Value)
			testutil.Assert(t, c.Width, out.Width, "width")
			testutil.Assert(t, c.Height, out.Height, "height")
			testutil.Assert(t, c.Percent, out.Percentage, "percentage")
		})
	}
}

func TestResolveIgnoresNegativeEdits(t *testing.T) {
	t.Parallel()

	original := task.Dimensions{Width: 640, Height: 480}
	opts := Initial(original)

	testutil.Assert(t, opts, Resolve(original, opts, task.AxisWidth, -1), "negative width")
	testutil.Assert(t, opts, Resolve(original, opts, task.AxisHeight, -20), "negative height")
	testutil.Assert(t, opts, Resolve(original, opts, task.AxisWidth, math.NaN()), "nan width")
	testutil.Assert(t, opts, Resolve(original, opts, task.AxisWidth, -1e19), "huge negative width")
	testutil.Assert(t, opts, Resolve(original, opts, task.AxisHeight, -math.MaxFloat64), "huge negative height")

	for _, v := range []float64{1e10, 1e19, 1e300, math.MaxFloat64} {
		for _, axis := range []task.Axis{task.AxisWidth, task.AxisHeight} {
			out := Resolve(original, opts, axis, v)
			testutil.Assert(t, true, out.Width > 0 && out.Width <= MaxAxis, "width stays in range")
			testutil.Assert(t, true, out.Height > 0 && out.Height <= MaxAxis, "height stays in range")
			testutil.Assert(t, true, out.Percentage > 0, "percentage stays positive")
		}
	}
}

func TestResolveLockedRatio(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		w := rnd.Intn(4000) + 1
		h := rnd.Intn(4000) + 1
		original := task.Dimensions{Width: w, Height: h}

		minDim := w
		if h < minDim {
			minDim = h
		}

		// rounding the derived axis costs at most half a pixel, so the bound
		// holds once the edited width is at least min(W,H)/2
		newWidth := minDim + rnd.Intn(4*w)

		out := Resolve(original, Initial(original), task.AxisWidth, float64(newWidth))
		diff := math.Abs(float64(out.Height)/float64(out.Width) - float64(h)/float64(w))
		if diff > 1/float64(minDim) {
			t.Fatalf("%dx%d -> width %d gave %dx%d (ratio diff %f)", w, h, newWidth, out.Width, out.Height, diff)
		}
	}
}

func TestResolvePercentageIgnoresLock(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		original := task.Dimensions{Width: rnd.Intn(3000) + 200, Height: rnd.Intn(3000) + 200}
		p := rnd.Intn(500) + 1

		for _, lock := range []bool{true, false} {
			opts := Initial(original)
			opts.MaintainAspectRatio = lock
			out := Resolve(original, opts, task.AxisPercentage, float64(p))

			testutil.Assert(t, int(math.Round(float64(original.Width)*float64(p)/100)), out.Width, "width")
			testutil.Assert(t, int(math.Round(float64(original.Height)*float64(p)/100)), out.Height, "height")
		}
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	t.Parallel()

	original := task.Dimensions{Width: 1234, Height: 567}
	opts := Initial(original)

	a := Resolve(original, opts, task.AxisWidth, 400)
	b := Resolve(original, opts, task.AxisWidth, 400)
	testutil.Assert(t, a, b, "same input same output")
	testutil.Assert(t, a, Resolve(original, a, task.AxisWidth, 400), "re-applying is a no-op")
}

func TestResolveNeverReachesZeroForTinyImages(t *testing.T) {
	t.Parallel()

	original := task.Dimensions{Width: 3, Height: 1}
	out := Resolve(original, Initial(original), task.AxisPercentage, 1)

	testutil.Assert(t, 1, out.Width, "width")
	testutil.Assert(t, 1, out.Height, "height")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testutil.IsNil(t, Validate(task.Options{Width: 1, Height: 1}), "1x1 is valid")

	err := Validate(task.Options{Width: 0, Height: 10})
	testutil.Assert(t, true, errors.Is(err, raster.ErrInvalidDimension), "zero width is invalid")
}

func TestClampPercentage(t *testing.T) {
	t.Parallel()

	cases := map[float64]int{
		0:              task.MinPercentage,
		0.4:            task.MinPercentage,
		49.5:           50,
		600:            task.MaxPercentage,
		1e19:           task.MaxPercentage,
		math.Inf(1):    task.MaxPercentage,
		-1e19:          task.MinPercentage,
		math.MaxInt64:  task.MaxPercentage,
		-math.MaxInt64: task.MinPercentage,
	}

	for in, expected := range cases {
		testutil.Assert(t, expected, ClampPercentage(in), "clamp")
	}

	testutil.Assert(t, task.MinPercentage, ClampPercentage(math.NaN()), "nan")
}
