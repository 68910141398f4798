// Package savings estimates how many bytes, and how much CO2, a re-encoded
// image saves against its original.
package savings

import (
	"math"
	"strings"

	"github.com/seventv/image-resizer/internal/raster"
	"github.com/seventv/image-resizer/task"
)

// CO2GramsPerMB is the grams of CO2 attributed to transferring one megabyte:
// 0.81 kWh per GB at a grid intensity of 442 gCO2/kWh.
const CO2GramsPerMB = 0.81 * 442 / 1024

const bytesPerMB = 1024 * 1024

type Estimator struct {
	CO2GramsPerMB float64
}

var Default = Estimator{CO2GramsPerMB: CO2GramsPerMB}

func Estimate(originalBytes int64, p *raster.Payload) task.Estimate {
	return Default.Estimate(originalBytes, p)
}

func Exact(originalBytes int64, p *raster.Payload) task.Estimate {
	return Default.Exact(originalBytes, p)
}

// Estimate derives the new size from the payload's data URL: base64 grows
// binary data by 4/3, so the body length is scaled back by 3/4. Without a
// payload the original size is reported unchanged.
func (e Estimator) Estimate(originalBytes int64, p *raster.Payload) task.Estimate {
	newBytes := originalBytes
	if p != nil {
		newBytes = EstimateDataURL(p.DataURL())
	}

	return e.compute(originalBytes, newBytes)
}

// Exact is Estimate with the real encoded length instead of the data URL heuristic.
func (e Estimator) Exact(originalBytes int64, p *raster.Payload) task.Estimate {
	newBytes := originalBytes
	if p != nil {
		newBytes = int64(p.Len())
	}

	return e.compute(originalBytes, newBytes)
}

// EstimateDataURL backs the base64 expansion out of a data URL.
func EstimateDataURL(dataURL string) int64 {
	body := dataURL
	if i := strings.IndexByte(dataURL, ','); i >= 0 {
		body = dataURL[i+1:]
	}

	return int64(math.Round(float64(len(body)) * 3 / 4))
}

func (e Estimator) compute(originalBytes, newBytes int64) task.Estimate {
	if originalBytes < 0 {
		originalBytes = 0
	}

	saved := originalBytes - newBytes
	if saved < 0 {
		saved = 0
	}

	est := task.Estimate{
		EstimatedNewBytes: newBytes,
		SavedBytes:        saved,
		SavedCO2Grams:     float64(saved) / bytesPerMB * e.CO2GramsPerMB,
	}

	if originalBytes != 0 {
		est.PercentOfOriginal = int(math.Round(float64(newBytes) / float64(originalBytes) * 100))
	}

	return est
}
