package detection

import (
	"sort"
	"strings"
)

// PredictionSummary is the reading produced by one inference pass.
type PredictionSummary struct {
	// Value is the digit labels ordered left to right. Empty when no digit
	// survived suppression.
	Value string `json:"value"`

	// Type is the label of the most confident gauge-type detection, or ""
	// when the pass found none.
	Type string `json:"type,omitempty"`

	DigitCount int `json:"digit_count"`

	// AvgConfidence is the mean digit confidence; type detections never
	// contribute.
	AvgConfidence float64 `json:"avg_confidence"`
}

// EmptySummary is the sentinel reading of a skipped or failed pass.
func EmptySummary() PredictionSummary {
	return PredictionSummary{}
}

// HasType reports whether the pass detected a gauge type.
func (s PredictionSummary) HasType() bool {
	return s.Type != ""
}

// Assemble turns suppressed detections into a reading.
func Assemble(detections []BoxDetection) PredictionSummary {
	digits := DigitDetections(detections)

	var typeLabel string
	bestType := -1.0
	for _, d := range detections {
		if IsType(d.Label) && d.Confidence > bestType {
			typeLabel, bestType = d.Label, d.Confidence
		}
	}

	if len(digits) == 0 {
		return PredictionSummary{Type: typeLabel}
	}

	var sb strings.Builder
	var sum float64
	for _, d := range digits {
		sb.WriteString(d.Label)
		sum += d.Confidence
	}

	return PredictionSummary{
		Value:         sb.String(),
		Type:          typeLabel,
		DigitCount:    len(digits),
		AvgConfidence: sum / float64(len(digits)),
	}
}

// DigitDetections returns the digit detections sorted left to right by X1.
func DigitDetections(detections []BoxDetection) []BoxDetection {
	digits := make([]BoxDetection, 0, len(detections))
	for _, d := range detections {
		if IsDigit(d.Label) {
			digits = append(digits, d)
		}
	}
	sort.SliceStable(digits, func(i, j int) bool {
		return digits[i].Box.X1 < digits[j].Box.X1
	})
	return digits
}
