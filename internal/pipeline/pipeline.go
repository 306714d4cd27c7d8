// Package pipeline turns one photograph into an odometer reading.
//
// A run makes two sequential inference passes over the same read-only source:
// a letterboxed full frame and, when the aspect ratio allows it, a center
// crop. Each pass owns its canvas and tensor and releases them before the next
// pass starts. The two readings are then reconciled into one Result.
//
// The full-frame pass is mandatory: if it fails the run fails. A failing crop
// pass degrades to the empty reading and the run continues.
package pipeline

import (
	"fmt"
	"image"
	"log"

	"github.com/ironsheep/odometer-mcp/internal/config"
	"github.com/ironsheep/odometer-mcp/internal/detection"
	"github.com/ironsheep/odometer-mcp/internal/detector"
	"github.com/ironsheep/odometer-mcp/internal/imaging"
)

// Options tunes a Pipeline.
type Options struct {
	ConfThreshold float64
	IoUThreshold  float64
	CrossClassNMS bool
	CropMarginPx  int
	Aspect        imaging.AspectWindow

	// Labels is the class order of the model output. Nil means
	// detection.DefaultLabels.
	Labels []string

	// Logger receives pass outcomes. Nil means log.Default().
	Logger *log.Logger
	Debug  bool
}

// DefaultOptions mirrors config.DefaultConfig.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// OptionsFromConfig copies the pipeline settings out of cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ConfThreshold: cfg.ConfThreshold,
		IoUThreshold:  cfg.IoUThreshold,
		CrossClassNMS: cfg.CrossClassNMS,
		CropMarginPx:  cfg.CropMarginPx,
		Aspect:        imaging.AspectWindow{Min: cfg.MinAspect, Max: cfg.MaxAspect},
		Debug:         cfg.Debug,
	}
}

// Result is the reading returned to callers.
type Result struct {
	Value string `json:"value"`

	// Type is nil when neither chosen pass detected a gauge type.
	Type *string `json:"type"`

	Confidence      float64    `json:"confidence"`
	DetectionMethod Provenance `json:"detectionMethod"`
}

// NewResult builds a Result from the reconciled summary.
func NewResult(s detection.PredictionSummary, p Provenance) Result {
	r := Result{
		Value:           s.Value,
		Confidence:      s.AvgConfidence,
		DetectionMethod: p,
	}
	if s.HasType() {
		t := s.Type
		r.Type = &t
	}
	return r
}

// Report is a Result together with both pass outcomes.
type Report struct {
	Result Result      `json:"result"`
	Full   PassOutcome `json:"full"`
	Crop   PassOutcome `json:"crop"`
}

// Chosen returns the outcome of the pass the Result was taken from.
func (r *Report) Chosen() PassOutcome {
	if r.Result.DetectionMethod == ProvenanceCropped {
		return r.Crop
	}
	return r.Full
}

// CanvasObserver sees each pass's model canvas and its surviving detections
// while the pass still owns the canvas. It must not retain the canvas.
type CanvasObserver func(pass PassKind, canvas image.Image, dets []detection.BoxDetection)

// Pipeline runs the two-pass reading over a shared detector.
type Pipeline struct {
	det    detector.Detector
	parser *detection.Parser
	opts   Options
	logger *log.Logger
}

// New creates a Pipeline. det may be nil, in which case every run fails with
// ErrModelUnavailable.
func New(det detector.Detector, opts Options) *Pipeline {
	parser := detection.NewParser(opts.ConfThreshold)
	if opts.Labels != nil {
		parser.Labels = opts.Labels
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		det:    det,
		parser: parser,
		opts:   opts,
		logger: logger,
	}
}

// Available reports whether a detector is loaded.
func (p *Pipeline) Available() bool {
	return p != nil && p.det != nil
}

// InputSize is the model canvas edge, or 0 without a detector.
func (p *Pipeline) InputSize() int {
	if !p.Available() {
		return 0
	}
	return p.det.InputSize()
}

// Run reads the odometer in img.
func (p *Pipeline) Run(img image.Image) (*Result, error) {
	report, err := p.Inspect(img, nil)
	if err != nil {
		return nil, err
	}
	return &report.Result, nil
}

// Inspect runs both passes and returns their outcomes alongside the Result.
// observe may be nil.
func (p *Pipeline) Inspect(img image.Image, observe CanvasObserver) (*Report, error) {
	if !p.Available() {
		return nil, ErrModelUnavailable
	}
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidInput)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: image is %dx%d", ErrInvalidInput, bounds.Dx(), bounds.Dy())
	}
	size := p.det.InputSize()
	if size <= 0 {
		return nil, fmt.Errorf("%w: detector input size %d", ErrModelUnavailable, size)
	}

	full := p.fullPass(img, size, observe)
	if full.Status != PassOK {
		full.Status = PassFatal
		p.logger.Printf("full-frame pass failed: %v", full.Cause)
		return nil, fmt.Errorf("full-frame pass: %w", full.Cause)
	}
	p.debugf("full-frame pass: %q type=%q digits=%d conf=%.3f",
		full.Summary.Value, full.Summary.Type, full.Summary.DigitCount, full.Summary.AvgConfidence)

	crop := p.cropPass(img, size, observe)
	switch crop.Status {
	case PassSkipped:
		p.debugf("crop pass skipped: %dx%d outside aspect window", bounds.Dx(), bounds.Dy())
	case PassDegraded:
		p.logger.Printf("crop pass degraded: %v", crop.Cause)
	default:
		p.debugf("crop pass: %q type=%q digits=%d conf=%.3f",
			crop.Summary.Value, crop.Summary.Type, crop.Summary.DigitCount, crop.Summary.AvgConfidence)
	}

	chosen, provenance := Reconcile(full.Summary, crop.Summary)
	p.debugf("chose %s reading %q", provenance, chosen.Value)

	return &Report{
		Result: NewResult(chosen, provenance),
		Full:   full,
		Crop:   crop,
	}, nil
}

func (p *Pipeline) fullPass(img image.Image, size int, observe CanvasObserver) (out PassOutcome) {
	out = newOutcome(PassFull)
	defer recoverPass(&out)

	geom, err := imaging.Letterbox(img, size)
	if err != nil {
		out.degrade(classify(err))
		return out
	}
	defer geom.Release()

	dets, err := p.detect(geom.Canvas)
	if err != nil {
		out.degrade(classify(err))
		return out
	}
	if observe != nil {
		observe(PassFull, geom.Canvas, dets)
	}
	out.succeed(dets, geom)
	return out
}

func (p *Pipeline) cropPass(img image.Image, size int, observe CanvasObserver) (out PassOutcome) {
	out = newOutcome(PassCrop)
	bounds := img.Bounds()
	if !p.opts.Aspect.Admits(bounds.Dx(), bounds.Dy()) {
		out.Status = PassSkipped
		return out
	}
	defer recoverPass(&out)

	frame, err := imaging.CenterCropWithMargin(img, size, size, p.opts.CropMarginPx, p.opts.Aspect)
	if err != nil {
		out.degrade(classify(err))
		return out
	}
	defer frame.Release()

	dets, err := p.detect(frame.Canvas)
	if err != nil {
		out.degrade(classify(err))
		return out
	}
	if observe != nil {
		observe(PassCrop, frame.Canvas, dets)
	}
	out.succeed(dets, frame)
	return out
}

// detect encodes one canvas, runs the model and returns the detections that
// survive suppression. The tensor is released before detect returns.
func (p *Pipeline) detect(canvas image.Image) ([]detection.BoxDetection, error) {
	tensor, err := imaging.EncodeTensor(canvas)
	if err != nil {
		return nil, err
	}
	defer tensor.Release()

	raw, err := p.det.Infer(tensor)
	if err != nil {
		return nil, err
	}
	dets, err := p.parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	if p.opts.CrossClassNMS {
		return detection.Suppress(dets, p.opts.IoUThreshold), nil
	}
	return detection.SuppressByLabel(dets, p.opts.IoUThreshold), nil
}

func (p *Pipeline) debugf(format string, args ...interface{}) {
	if p.opts.Debug {
		p.logger.Printf(format, args...)
	}
}
