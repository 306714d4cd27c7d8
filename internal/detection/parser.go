package detection

import (
	"errors"
	"fmt"
)

// ErrOutputShape is returned when a raw model output does not match the
// parser's label list.
var ErrOutputShape = errors.New("unexpected model output shape")

// DefaultConfThreshold is the minimum class score an anchor must exceed.
const DefaultConfThreshold = 0.3

// RawOutput is a model output of logical shape [1, Channels, Anchors].
//
// Data is channel-major: the value of channel c for anchor a lives at
// Data[c*Anchors+a]. Channels 0-3 hold the box center x, center y, width and
// height; the remaining channels hold one score per class.
type RawOutput struct {
	Data     []float32
	Channels int
	Anchors  int
}

// At returns channel c of anchor a.
func (o *RawOutput) At(c, a int) float32 {
	return o.Data[c*o.Anchors+a]
}

// Parser thresholds and decodes raw model output into labeled boxes.
type Parser struct {
	Labels        []string
	ConfThreshold float64
}

// NewParser returns a parser for DefaultLabels with the given threshold.
func NewParser(confThreshold float64) *Parser {
	return &Parser{
		Labels:        DefaultLabels,
		ConfThreshold: confThreshold,
	}
}

// Parse emits one detection per anchor whose best class score is strictly
// above the threshold. Anchors at or below the threshold are dropped.
func (p *Parser) Parse(raw *RawOutput) ([]BoxDetection, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil output", ErrOutputShape)
	}
	want := 4 + len(p.Labels)
	if raw.Channels != want {
		return nil, fmt.Errorf("%w: %d channels, want %d", ErrOutputShape, raw.Channels, want)
	}
	if raw.Anchors < 0 || len(raw.Data) != raw.Channels*raw.Anchors {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrOutputShape, len(raw.Data), raw.Channels, raw.Anchors)
	}

	detections := make([]BoxDetection, 0)
	for a := 0; a < raw.Anchors; a++ {
		best := -1
		var bestScore float32
		for k := range p.Labels {
			score := raw.At(4+k, a)
			if best < 0 || score > bestScore {
				best, bestScore = k, score
			}
		}
		if best < 0 || float64(bestScore) <= p.ConfThreshold {
			continue
		}

		detections = append(detections, BoxDetection{
			Box: BoxFromCenter(
				float64(raw.At(0, a)),
				float64(raw.At(1, a)),
				float64(raw.At(2, a)),
				float64(raw.At(3, a)),
			),
			Confidence: float64(bestScore),
			Label:      p.Labels[best],
		})
	}

	return detections, nil
}
