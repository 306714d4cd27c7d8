//go:build tflite

package detector

import (
	"fmt"
	"runtime"

	"github.com/ironsheep/odometer-mcp/internal/detection"
	"github.com/ironsheep/odometer-mcp/internal/imaging"
	"github.com/mattn/go-tflite"
)

// tfliteDetector runs a TensorFlow Lite model through the C API.
type tfliteDetector struct {
	model  *tflite.Model
	interp *tflite.Interpreter
	size   int
}

func newTFLite(modelBytes []byte, opts Options) (Detector, error) {
	model := tflite.NewModel(modelBytes)
	if model == nil {
		return nil, fmt.Errorf("%w: cannot parse TFLite model", ErrModelLoad)
	}

	options := tflite.NewInterpreterOptions()
	defer options.Delete()
	threads := opts.NumThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	options.SetNumThread(threads)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		model.Delete()
		return nil, fmt.Errorf("%w: cannot create interpreter", ErrModelLoad)
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: allocate tensors: status %d", ErrModelLoad, status)
	}

	input := interp.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 || input.Dim(3) != 3 || input.Dim(1) != input.Dim(2) {
		interp.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: model input is not [1,S,S,3]", ErrModelLoad)
	}
	if input.Type() != tflite.Float32 {
		interp.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: model input type %v, want float32", ErrModelLoad, input.Type())
	}

	return &tfliteDetector{
		model:  model,
		interp: interp,
		size:   input.Dim(1),
	}, nil
}

func (d *tfliteDetector) Infer(t *imaging.Tensor) (*detection.RawOutput, error) {
	if t == nil || t.Size != d.size {
		return nil, fmt.Errorf("%w: tensor size does not match model input %d", ErrInference, d.size)
	}

	input := d.interp.GetInputTensor(0)
	if n := copy(input.Float32s(), t.Data); n != len(t.Data) {
		return nil, fmt.Errorf("%w: copied %d of %d input values", ErrInference, n, len(t.Data))
	}
	if status := d.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("%w: invoke: status %d", ErrInference, status)
	}

	output := d.interp.GetOutputTensor(0)
	if output == nil || output.NumDims() != 3 {
		return nil, fmt.Errorf("%w: model output is not [1,C,A]", ErrInference)
	}
	return channelMajor(output.Float32s(), output.Dim(1), output.Dim(2)), nil
}

func (d *tfliteDetector) InputSize() int {
	return d.size
}

func (d *tfliteDetector) Close() error {
	d.interp.Delete()
	d.model.Delete()
	return nil
}
