// Package detector wraps the object-detection model behind a small interface.
//
// A Detector accepts a normalized [1,S,S,3] tensor and returns the raw
// [1,C,A] output of the model. Two backends are available behind build tags:
// TensorFlow Lite ("tflite", github.com/mattn/go-tflite) and OpenCV DNN with an
// ONNX export ("opencv", gocv.io/x/gocv). Builds without either tag can still
// run the pipeline against MockDetector.
package detector

import (
	"errors"
	"fmt"
	"os"

	"github.com/ironsheep/odometer-mcp/internal/detection"
	"github.com/ironsheep/odometer-mcp/internal/imaging"
)

var (
	// ErrModelLoad is returned when a model cannot be parsed or initialized.
	ErrModelLoad = errors.New("model load failed")

	// ErrInference is returned when a loaded model fails to run.
	ErrInference = errors.New("inference failed")

	// ErrBackendUnavailable is wrapped into ErrModelLoad when the requested
	// backend was not compiled into the binary.
	ErrBackendUnavailable = errors.New("detector backend not compiled in")
)

// Detector runs the detection model on one tensor at a time.
type Detector interface {
	// Infer runs the model. The tensor's Size must equal InputSize.
	Infer(t *imaging.Tensor) (*detection.RawOutput, error)

	// InputSize is the square input edge the model expects.
	InputSize() int

	// Close releases the model.
	Close() error
}

// Options selects and tunes a backend.
type Options struct {
	// Backend is "tflite" or "opencv".
	Backend string

	// InputSize is used by backends that cannot read it from the model.
	InputSize int

	// NumThreads caps interpreter threads; zero means one per CPU.
	NumThreads int
}

// Load initializes a detector from model bytes.
func Load(modelBytes []byte, opts Options) (Detector, error) {
	if len(modelBytes) == 0 {
		return nil, fmt.Errorf("%w: empty model", ErrModelLoad)
	}
	switch opts.Backend {
	case "tflite":
		return newTFLite(modelBytes, opts)
	case "opencv":
		return newOpenCV(modelBytes, opts)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrModelLoad, opts.Backend)
	}
}

// LoadFile reads a model file and calls Load.
func LoadFile(path string, opts Options) (Detector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	return Load(data, opts)
}

// channelMajor returns a [dim1 x dim2] output as channel-major RawOutput.
// Exports differ in whether anchors or channels come first; the channel axis
// is always the shorter one.
func channelMajor(data []float32, dim1, dim2 int) *detection.RawOutput {
	if dim1 <= dim2 {
		out := make([]float32, len(data))
		copy(out, data)
		return &detection.RawOutput{Data: out, Channels: dim1, Anchors: dim2}
	}

	channels, anchors := dim2, dim1
	out := make([]float32, len(data))
	for a := 0; a < anchors; a++ {
		for c := 0; c < channels; c++ {
			out[c*anchors+a] = data[a*channels+c]
		}
	}
	return &detection.RawOutput{Data: out, Channels: channels, Anchors: anchors}
}
