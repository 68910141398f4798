package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/chai2010/webp"
	"github.com/seventv/image-resizer/task"
)

// Encode writes img in the requested format. Quality is clamped into
// [task.MinQuality, task.MaxQuality] and ignored by PNG.
func Encode(img image.Image, format task.Format, quality float64) ([]byte, error) {
	quality = task.ClampQuality(quality)
	buf := bytes.Buffer{}

	var err error
	switch format {
	case task.FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality(quality)})
	case task.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	case task.FormatWEBP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality * 100)})
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed at encode %v: %w", format, err)
	}

	return buf.Bytes(), nil
}

func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}

	return v
}
