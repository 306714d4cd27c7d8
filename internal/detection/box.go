package detection

import "math"

// Box is an axis-aligned rectangle in model-input pixel space.
// (X1, Y1) is the top-left corner and (X2, Y2) the bottom-right corner.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// BoxFromCenter converts YOLO center form (cx, cy, w, h) to corners.
func BoxFromCenter(cx, cy, w, h float64) Box {
	return Box{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

// Width returns the horizontal extent, or 0 for an inverted box.
func (b Box) Width() float64 {
	return math.Max(0, b.X2-b.X1)
}

// Height returns the vertical extent, or 0 for an inverted box.
func (b Box) Height() float64 {
	return math.Max(0, b.Y2-b.Y1)
}

// Area returns Width * Height.
func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// CenterY returns the vertical center of the box.
func (b Box) CenterY() float64 {
	return (b.Y1 + b.Y2) / 2
}

// IoU returns the intersection-over-union of two boxes: 1 for identical
// non-degenerate boxes, 0 for disjoint boxes and 0 when the union is empty.
func IoU(a, b Box) float64 {
	inter := Box{
		X1: math.Max(a.X1, b.X1),
		Y1: math.Max(a.Y1, b.Y1),
		X2: math.Min(a.X2, b.X2),
		Y2: math.Min(a.Y2, b.Y2),
	}.Area()

	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// BoxDetection is one labeled box emitted by the parser.
type BoxDetection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
}

// Gauge type labels. Everything else the model emits is a single digit.
const (
	LabelAnalog  = "analog"
	LabelDigital = "digital"
)

// DefaultLabels is the class order of the odometer model's output channels.
var DefaultLabels = []string{
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
	LabelAnalog, LabelDigital,
}

// IsDigit reports whether label is a single numeral "0" through "9".
func IsDigit(label string) bool {
	return len(label) == 1 && label[0] >= '0' && label[0] <= '9'
}

// IsType reports whether label names a gauge style.
func IsType(label string) bool {
	return label == LabelAnalog || label == LabelDigital
}
