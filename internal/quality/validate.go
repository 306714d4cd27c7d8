// Package quality grades readings and photographs.
//
// Nothing here changes a reading. Validate attaches warnings a caller can show
// next to the digits, and Assess scores whether a photograph is worth reading
// at all.
package quality

import (
	"fmt"
	"math"

	"github.com/ironsheep/odometer-mcp/internal/detection"
)

// Confidence bands.
const (
	BandHigh    = "high"
	BandLow     = "low"
	BandVeryLow = "very_low"
	BandNone    = "none"
)

const (
	veryLowConfidence = 0.3
	lowConfidence     = 0.5

	// Odometers show between four and seven digits.
	minDigits = 4
	maxDigits = 7

	// alignmentTolerance is the allowed spread of digit centers as a fraction
	// of the mean digit height.
	alignmentTolerance = 0.5
)

// AlignmentResult describes how well digit boxes sit on one row.
type AlignmentResult struct {
	Aligned        bool    `json:"aligned"`
	VerticalSpread float64 `json:"vertical_spread"`
	Tolerance      float64 `json:"tolerance"`
	AverageY       float64 `json:"average_y"`
}

// Validation is the advisory verdict on one reading.
type Validation struct {
	Detected       bool             `json:"detected"`
	ConfidenceBand string           `json:"confidence_band"`
	Warnings       []string         `json:"warnings,omitempty"`
	Alignment      *AlignmentResult `json:"alignment,omitempty"`
}

// ConfidenceBand buckets a mean digit confidence.
func ConfidenceBand(confidence float64) string {
	switch {
	case confidence < veryLowConfidence:
		return BandVeryLow
	case confidence < lowConfidence:
		return BandLow
	default:
		return BandHigh
	}
}

// Validate checks a reading's value and confidence, and, when the digit boxes
// are given, whether they form a single row.
func Validate(value string, confidence float64, digits []detection.BoxDetection) Validation {
	if value == "" {
		return Validation{
			Detected:       false,
			ConfidenceBand: BandNone,
			Warnings: []string{
				"no odometer digits detected; retake the photo in focus, with enough light and the odometer clearly visible",
			},
		}
	}

	v := Validation{
		Detected:       true,
		ConfidenceBand: ConfidenceBand(confidence),
	}

	switch v.ConfidenceBand {
	case BandVeryLow:
		v.Warnings = append(v.Warnings, fmt.Sprintf("model is very unsure of this reading (confidence %.1f%%)", confidence*100))
	case BandLow:
		v.Warnings = append(v.Warnings, fmt.Sprintf("low confidence reading (confidence %.1f%%); check the digits", confidence*100))
	}

	if n := len(value); n < minDigits {
		v.Warnings = append(v.Warnings, fmt.Sprintf("only %d digits detected; odometers usually show %d to %d", n, minDigits, maxDigits))
	} else if n > maxDigits {
		v.Warnings = append(v.Warnings, fmt.Sprintf("%d digits detected; odometers usually show %d to %d", n, minDigits, maxDigits))
	}

	if len(digits) > 0 {
		v.Alignment = CheckAlignment(digits)
		if !v.Alignment.Aligned {
			v.Warnings = append(v.Warnings, "detected digits do not sit on one row and may be out of order")
		}
	}

	return v
}

// CheckAlignment measures the spread of digit box centers around their mean
// height. A single digit is always aligned.
func CheckAlignment(digits []detection.BoxDetection) *AlignmentResult {
	if len(digits) < 2 {
		result := &AlignmentResult{Aligned: true}
		if len(digits) == 1 {
			result.AverageY = round2(digits[0].Box.CenterY())
		}
		return result
	}

	var sumY, sumH float64
	for _, d := range digits {
		sumY += d.Box.CenterY()
		sumH += d.Box.Height()
	}
	n := float64(len(digits))
	avgY := sumY / n

	var variance float64
	for _, d := range digits {
		dy := d.Box.CenterY() - avgY
		variance += dy * dy
	}
	spread := math.Sqrt(variance / n)
	tolerance := alignmentTolerance * sumH / n

	return &AlignmentResult{
		Aligned:        spread <= tolerance,
		VerticalSpread: round2(spread),
		Tolerance:      round2(tolerance),
		AverageY:       round2(avgY),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
