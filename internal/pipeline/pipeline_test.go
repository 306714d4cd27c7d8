package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"log"
	"math"
	"strings"
	"testing"

	"github.com/ironsheep/odometer-mcp/internal/detection"
	"github.com/ironsheep/odometer-mcp/internal/detector"
	"github.com/ironsheep/odometer-mcp/internal/imaging"
)

const testInputSize = 64

// step scripts one inference call of a scripted detector.
type step struct {
	out   *detection.RawOutput
	err   error
	panic string
}

func scripted(t *testing.T, steps ...step) *detector.MockDetector {
	t.Helper()
	m := detector.NewMockDetector(testInputSize)
	call := 0
	m.SetFunc(func(*imaging.Tensor) (*detection.RawOutput, error) {
		if call >= len(steps) {
			t.Errorf("unexpected inference call %d", call+1)
			return reading("", 0), nil
		}
		s := steps[call]
		call++
		if s.panic != "" {
			panic(s.panic)
		}
		return s.out, s.err
	})
	return m
}

func reading(digits string, score float32) *detection.RawOutput {
	return detector.BuildOutput(len(detection.DefaultLabels), detector.DigitAnchors(digits, 100, 200, score))
}

func typedReading(digits string, score float32, typeClass int, typeScore float32) *detection.RawOutput {
	anchors := detector.DigitAnchors(digits, 100, 200, score)
	anchors = append(anchors, detector.Anchor{CX: 600, CY: 600, W: 20, H: 20, Class: typeClass, Score: typeScore})
	return detector.BuildOutput(len(detection.DefaultLabels), anchors)
}

func quietOptions() Options {
	opts := DefaultOptions()
	opts.Logger = log.New(io.Discard, "", 0)
	return opts
}

func photo(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8(x % 256), uint8(y % 256), uint8((x + y) % 256), 255})
		}
	}
	return img
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestRun_ModelUnavailable(t *testing.T) {
	p := New(nil, quietOptions())
	if p.Available() {
		t.Error("Available() = true without a detector")
	}
	_, err := p.Run(photo(40, 30))
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("got %v, want ErrModelUnavailable", err)
	}
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
	}{
		{"nil image", nil},
		{"zero width", image.NewNRGBA(image.Rect(0, 0, 0, 10))},
		{"zero height", image.NewNRGBA(image.Rect(0, 0, 10, 0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := detector.NewMockDetector(testInputSize)
			_, err := New(m, quietOptions()).Run(tt.img)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
			if m.Calls() != 0 {
				t.Errorf("detector called %d times", m.Calls())
			}
		})
	}
}

func TestRun_AspectGuardSkipsCrop(t *testing.T) {
	m := scripted(t, step{out: reading("1234", 0.9)})
	p := New(m, quietOptions())

	report, err := p.Inspect(photo(400, 200), nil)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if m.Calls() != 1 {
		t.Errorf("inference calls = %d, want 1", m.Calls())
	}
	if report.Crop.Status != PassSkipped {
		t.Errorf("crop status = %s, want skipped", report.Crop.Status)
	}
	if report.Crop.Summary != detection.EmptySummary() {
		t.Errorf("crop summary = %+v, want empty", report.Crop.Summary)
	}
	if report.Result.Value != "1234" || report.Result.DetectionMethod != ProvenanceOriginal {
		t.Errorf("result = %+v", report.Result)
	}
}

func TestRun_Reconciliation(t *testing.T) {
	tests := []struct {
		name      string
		full      *detection.RawOutput
		crop      *detection.RawOutput
		wantValue string
		wantType  string
		wantConf  float64
		wantProv  Provenance
	}{
		{
			name:      "crop has more digits",
			full:      reading("12345", 0.95),
			crop:      reading("123456", 0.4),
			wantValue: "123456",
			wantConf:  float64(float32(0.4)),
			wantProv:  ProvenanceCropped,
		},
		{
			name:      "tie broken by confidence",
			full:      reading("1234", 0.6),
			crop:      reading("1234", 0.8),
			wantValue: "1234",
			wantConf:  float64(float32(0.8)),
			wantProv:  ProvenanceCropped,
		},
		{
			name:      "type detected on full frame",
			full:      typedReading("5678", 0.5, 11, 0.9),
			crop:      reading("5678", 0.9),
			wantValue: "5678",
			wantType:  detection.LabelDigital,
			wantConf:  float64(float32(0.5)),
			wantProv:  ProvenanceOriginal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := scripted(t, step{out: tt.full}, step{out: tt.crop})
			result, err := New(m, quietOptions()).Run(photo(320, 240))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if result.Value != tt.wantValue {
				t.Errorf("value = %q, want %q", result.Value, tt.wantValue)
			}
			if result.DetectionMethod != tt.wantProv {
				t.Errorf("method = %s, want %s", result.DetectionMethod, tt.wantProv)
			}
			if !approx(result.Confidence, tt.wantConf) {
				t.Errorf("confidence = %v, want %v", result.Confidence, tt.wantConf)
			}
			gotType := ""
			if result.Type != nil {
				gotType = *result.Type
			}
			if gotType != tt.wantType {
				t.Errorf("type = %q, want %q", gotType, tt.wantType)
			}
		})
	}
}

func TestRun_CropFailureDegrades(t *testing.T) {
	tests := []struct {
		name    string
		crop    step
		wantErr error
	}{
		{"inference error", step{err: detector.ErrInference}, ErrPassMemoryExhausted},
		{"allocation error", step{err: imaging.ErrAllocation}, ErrPassMemoryExhausted},
		{"unexpected error", step{err: errors.New("boom")}, ErrPassUnexpected},
		{"bad output shape", step{out: &detection.RawOutput{Channels: 3, Anchors: 1, Data: []float32{1, 2, 3}}}, ErrPassUnexpected},
		{"panic", step{panic: "interpreter crashed"}, ErrPassUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := scripted(t, step{out: reading("9876", 0.7)}, tt.crop)
			report, err := New(m, quietOptions()).Inspect(photo(320, 240), nil)
			if err != nil {
				t.Fatalf("Inspect: %v", err)
			}
			if report.Crop.Status != PassDegraded {
				t.Errorf("crop status = %s, want degraded", report.Crop.Status)
			}
			if !errors.Is(report.Crop.Cause, tt.wantErr) {
				t.Errorf("crop cause = %v, want %v", report.Crop.Cause, tt.wantErr)
			}
			if report.Crop.Summary != detection.EmptySummary() {
				t.Errorf("crop summary = %+v, want empty", report.Crop.Summary)
			}
			if report.Result.Value != "9876" || report.Result.DetectionMethod != ProvenanceOriginal {
				t.Errorf("result = %+v", report.Result)
			}
		})
	}
}

func TestRun_FullFailureIsFatal(t *testing.T) {
	tests := []struct {
		name    string
		full    step
		wantErr error
	}{
		{"inference error", step{err: detector.ErrInference}, ErrPassMemoryExhausted},
		{"unexpected error", step{err: errors.New("boom")}, ErrPassUnexpected},
		{"panic", step{panic: "segfault"}, ErrPassUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := scripted(t, tt.full)
			_, err := New(m, quietOptions()).Run(photo(320, 240))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if m.Calls() != 1 {
				t.Errorf("inference calls = %d, want 1", m.Calls())
			}
		})
	}
}

func TestRun_ReleasesTensors(t *testing.T) {
	tests := []struct {
		name  string
		steps []step
	}{
		{"success", []step{{out: reading("12", 0.9)}, {out: reading("12", 0.9)}}},
		{"crop error", []step{{out: reading("12", 0.9)}, {err: detector.ErrInference}}},
		{"crop panic", []step{{out: reading("12", 0.9)}, {panic: "boom"}}},
		{"full panic", []step{{panic: "boom"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen []*imaging.Tensor
			call := 0
			m := detector.NewMockDetector(testInputSize)
			m.SetFunc(func(tensor *imaging.Tensor) (*detection.RawOutput, error) {
				seen = append(seen, tensor)
				if len(tensor.Data) != testInputSize*testInputSize*3 {
					t.Errorf("tensor has %d values", len(tensor.Data))
				}
				s := tt.steps[call]
				call++
				if s.panic != "" {
					panic(s.panic)
				}
				return s.out, s.err
			})

			_, _ = New(m, quietOptions()).Run(photo(320, 240))

			if len(seen) != len(tt.steps) {
				t.Fatalf("saw %d tensors, want %d", len(seen), len(tt.steps))
			}
			for i, tensor := range seen {
				if tensor.Data != nil {
					t.Errorf("tensor %d not released", i)
				}
			}
		})
	}
}

func TestRun_NoDigits(t *testing.T) {
	m := scripted(t, step{out: reading("", 0)}, step{out: reading("", 0)})
	result, err := New(m, quietOptions()).Run(photo(320, 240))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Value != "" || result.Type != nil || result.Confidence != 0 {
		t.Errorf("result = %+v, want empty reading", result)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"type":null`) {
		t.Errorf("JSON %s does not carry a null type", data)
	}
	if !strings.Contains(string(data), `"detectionMethod":"Original"`) {
		t.Errorf("JSON %s missing detection method", data)
	}
}

func TestRun_DoesNotMutateSource(t *testing.T) {
	img := photo(300, 240)
	before := append([]byte(nil), img.Pix...)

	m := scripted(t, step{out: reading("1", 0.9)}, step{out: reading("1", 0.9)})
	if _, err := New(m, quietOptions()).Run(img); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.Equal(before, img.Pix) {
		t.Error("source pixels changed")
	}
}

func TestInspect_ObserverSeesBothCanvases(t *testing.T) {
	m := scripted(t, step{out: reading("12", 0.9)}, step{out: reading("345", 0.8)})

	var passes []PassKind
	observe := func(pass PassKind, canvas image.Image, dets []detection.BoxDetection) {
		passes = append(passes, pass)
		b := canvas.Bounds()
		if b.Dx() != testInputSize || b.Dy() != testInputSize {
			t.Errorf("%s canvas is %dx%d", pass, b.Dx(), b.Dy())
		}
		if len(dets) == 0 {
			t.Errorf("%s pass reported no detections", pass)
		}
	}

	report, err := New(m, quietOptions()).Inspect(photo(320, 240), observe)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(passes) != 2 || passes[0] != PassFull || passes[1] != PassCrop {
		t.Errorf("passes = %v, want [full crop]", passes)
	}
	if len(report.Crop.Detections) != 3 {
		t.Errorf("crop detections = %d, want 3", len(report.Crop.Detections))
	}
	if report.Result.DetectionMethod != ProvenanceCropped {
		t.Errorf("method = %s, want Cropped", report.Result.DetectionMethod)
	}
}

func TestRun_PerLabelSuppression(t *testing.T) {
	// A digit sitting on top of a type box suppresses it only with cross-class NMS.
	anchors := []detector.Anchor{
		{CX: 50, CY: 50, W: 20, H: 20, Class: 7, Score: 0.9},
		{CX: 50, CY: 50, W: 20, H: 20, Class: 10, Score: 0.8},
	}
	raw := detector.BuildOutput(len(detection.DefaultLabels), anchors)

	tests := []struct {
		name       string
		crossClass bool
		wantType   bool
	}{
		{"cross class", true, false},
		{"per label", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := quietOptions()
			opts.CrossClassNMS = tt.crossClass
			m := scripted(t, step{out: raw})
			result, err := New(m, opts).Run(photo(400, 100))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if (result.Type != nil) != tt.wantType {
				t.Errorf("type = %v, want present=%v", result.Type, tt.wantType)
			}
			if result.Value != "7" {
				t.Errorf("value = %q, want 7", result.Value)
			}
		})
	}
}

func TestPassStatus_JSON(t *testing.T) {
	data, err := json.Marshal(PassOutcome{Pass: PassCrop, Status: PassSkipped})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"status":"skipped"`) {
		t.Errorf("JSON = %s", data)
	}
}

func TestInspect_SourceBoxes(t *testing.T) {
	// One digit box at canvas (6,16)-(14,24) on both passes.
	out := detector.BuildOutput(len(detection.DefaultLabels), []detector.Anchor{
		{CX: 10, CY: 20, W: 8, H: 8, Class: 1, Score: 0.9},
	})
	m := scripted(t, step{out: out}, step{out: out})

	// 128x96 letterboxes at scale 0.5 with 8 px of padding on top; the crop
	// region is (2,0)-(126,96) stretched to 64x64.
	report, err := New(m, quietOptions()).Inspect(photo(128, 96), nil)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	tests := []struct {
		name string
		got  []detection.Box
		want detection.Box
	}{
		{"full", report.Full.SourceBoxes, detection.Box{X1: 12, Y1: 16, X2: 28, Y2: 32}},
		{"crop", report.Crop.SourceBoxes, detection.Box{X1: 13.625, Y1: 24, X2: 29.125, Y2: 36}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.got) != 1 {
				t.Fatalf("got %d source boxes, want 1", len(tt.got))
			}
			b := tt.got[0]
			if !approx(b.X1, tt.want.X1) || !approx(b.Y1, tt.want.Y1) ||
				!approx(b.X2, tt.want.X2) || !approx(b.Y2, tt.want.Y2) {
				t.Errorf("got %+v, want %+v", b, tt.want)
			}
		})
	}
}

func TestInspect_DegradedCropHasNoSourceBoxes(t *testing.T) {
	m := scripted(t, step{out: reading("12", 0.9)}, step{err: detector.ErrInference})
	report, err := New(m, quietOptions()).Inspect(photo(320, 240), nil)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(report.Full.SourceBoxes) != 2 {
		t.Errorf("full source boxes = %d, want 2", len(report.Full.SourceBoxes))
	}
	if report.Crop.Status != PassDegraded || report.Crop.SourceBoxes != nil {
		t.Errorf("crop = %+v", report.Crop)
	}
}
