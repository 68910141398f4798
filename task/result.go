package task

import "fmt"

type ResultState int32

const (
	_ ResultState = iota
	ResultStateSuccess
	ResultStateFailed
)

func (r ResultState) String() string {
	switch r {
	case ResultStateSuccess:
		return "SUCCESS"
	case ResultStateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN TYPE %d", r)
	}
}

// Estimate is derived from the original size and the latest encoded payload.
type Estimate struct {
	EstimatedNewBytes int64   `json:"estimated_new_bytes"`
	SavedBytes        int64   `json:"saved_bytes"`
	SavedCO2Grams     float64 `json:"saved_co2_grams"`
	PercentOfOriginal int     `json:"percent_of_original"`
}

type Analysis struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	EcoTip      string   `json:"eco_tip"`
	Fallback    bool     `json:"fallback"`
}

// FallbackAnalysis is returned whenever the analysis service cannot answer.
func FallbackAnalysis() Analysis {
	return Analysis{
		Description: "AI analysis unavailable: this description is a placeholder.",
		Keywords:    []string{"image"},
		EcoTip:      "Smaller images load faster and use less energy. Resize to the size you actually display.",
		Fallback:    true,
	}
}
