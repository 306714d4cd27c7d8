package pipeline

import (
	"errors"
	"fmt"

	"github.com/ironsheep/odometer-mcp/internal/detection"
	"github.com/ironsheep/odometer-mcp/internal/detector"
	"github.com/ironsheep/odometer-mcp/internal/imaging"
)

var (
	// ErrModelUnavailable means no detector is loaded. No pass runs.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrInvalidInput means the source image is nil or has no pixels.
	ErrInvalidInput = errors.New("invalid input image")

	// ErrPassMemoryExhausted marks a pass that could not allocate its tensor
	// or whose inference failed.
	ErrPassMemoryExhausted = errors.New("pass memory exhausted")

	// ErrPassUnexpected marks any other pass failure, including panics.
	ErrPassUnexpected = errors.New("pass failed unexpectedly")
)

// PassKind names one of the two inference passes.
type PassKind string

const (
	PassFull PassKind = "full"
	PassCrop PassKind = "crop"
)

// PassStatus is how a pass ended.
type PassStatus int

const (
	// PassOK means the pass ran and produced a summary.
	PassOK PassStatus = iota
	// PassSkipped means the pass was not attempted.
	PassSkipped
	// PassDegraded means the pass failed and contributes the empty summary.
	PassDegraded
	// PassFatal means the pass failed and the whole run fails with it.
	PassFatal
)

func (s PassStatus) String() string {
	switch s {
	case PassOK:
		return "ok"
	case PassSkipped:
		return "skipped"
	case PassDegraded:
		return "degraded"
	case PassFatal:
		return "fatal"
	default:
		return fmt.Sprintf("PassStatus(%d)", int(s))
	}
}

// MarshalText renders the status by name in JSON reports.
func (s PassStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PassOutcome is the explicit result of one pass. Reconciliation only ever
// sees Summary, which is the empty summary unless Status is PassOK.
type PassOutcome struct {
	Pass       PassKind                    `json:"pass"`
	Status     PassStatus                  `json:"status"`
	Summary    detection.PredictionSummary `json:"summary"`
	Detections []detection.BoxDetection    `json:"detections,omitempty"`

	// SourceBoxes are Detections mapped back onto the photograph, in the
	// same order.
	SourceBoxes []detection.Box `json:"source_boxes,omitempty"`

	Cause error `json:"-"`
}

// canvasFrame maps canvas points of one pass back to the source.
type canvasFrame interface {
	ToSource(x, y float64) (float64, float64)
}

// Failure returns the failure message, or "" for passes that did not fail.
func (o PassOutcome) Failure() string {
	if o.Cause == nil {
		return ""
	}
	return o.Cause.Error()
}

func newOutcome(pass PassKind) PassOutcome {
	return PassOutcome{Pass: pass, Status: PassOK, Summary: detection.EmptySummary()}
}

func (o *PassOutcome) succeed(dets []detection.BoxDetection, frame canvasFrame) {
	o.Status = PassOK
	o.Detections = dets
	o.SourceBoxes = make([]detection.Box, len(dets))
	for i, d := range dets {
		x1, y1 := frame.ToSource(d.Box.X1, d.Box.Y1)
		x2, y2 := frame.ToSource(d.Box.X2, d.Box.Y2)
		o.SourceBoxes[i] = detection.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
	}
	o.Summary = detection.Assemble(dets)
	o.Cause = nil
}

func (o *PassOutcome) degrade(cause error) {
	o.Status = PassDegraded
	o.Detections = nil
	o.SourceBoxes = nil
	o.Summary = detection.EmptySummary()
	o.Cause = cause
}

// classify maps a pass error onto the pass taxonomy.
func classify(err error) error {
	if errors.Is(err, imaging.ErrAllocation) || errors.Is(err, detector.ErrInference) {
		return fmt.Errorf("%w: %w", ErrPassMemoryExhausted, err)
	}
	return fmt.Errorf("%w: %w", ErrPassUnexpected, err)
}

// recoverPass must be deferred directly so recover sees the panic.
func recoverPass(o *PassOutcome) {
	if r := recover(); r != nil {
		o.degrade(fmt.Errorf("%w: panic: %v", ErrPassUnexpected, r))
	}
}
