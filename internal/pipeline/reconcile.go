package pipeline

import "github.com/ironsheep/odometer-mcp/internal/detection"

// Provenance records which pass produced the chosen reading.
type Provenance string

const (
	ProvenanceOriginal Provenance = "Original"
	ProvenanceCropped  Provenance = "Cropped"
)

// Reconcile picks between the full-frame and center-crop readings.
//
// The first rule that separates them wins: more digits; then, for equal
// non-zero digit counts, the only one that detected a gauge type; then the
// strictly higher average confidence. Otherwise the full frame is kept.
func Reconcile(full, crop detection.PredictionSummary) (detection.PredictionSummary, Provenance) {
	switch {
	case crop.DigitCount > full.DigitCount:
		return crop, ProvenanceCropped
	case full.DigitCount > crop.DigitCount:
		return full, ProvenanceOriginal
	}

	if full.DigitCount > 0 && full.HasType() != crop.HasType() {
		if crop.HasType() {
			return crop, ProvenanceCropped
		}
		return full, ProvenanceOriginal
	}

	if crop.AvgConfidence > full.AvgConfidence {
		return crop, ProvenanceCropped
	}
	return full, ProvenanceOriginal
}
