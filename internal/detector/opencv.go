//go:build opencv

package detector

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/ironsheep/odometer-mcp/internal/detection"
	"github.com/ironsheep/odometer-mcp/internal/imaging"
	"gocv.io/x/gocv"
)

// opencvDetector runs an ONNX export of the model through OpenCV's DNN module.
type opencvDetector struct {
	net  gocv.Net
	size int
}

func newOpenCV(modelBytes []byte, opts Options) (Detector, error) {
	if opts.InputSize <= 0 {
		return nil, fmt.Errorf("%w: opencv backend needs an input size", ErrModelLoad)
	}
	net, err := gocv.ReadNetFromONNXBytes(modelBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("%w: empty network", ErrModelLoad)
	}
	return &opencvDetector{net: net, size: opts.InputSize}, nil
}

func (d *opencvDetector) Infer(t *imaging.Tensor) (*detection.RawOutput, error) {
	if t == nil || t.Size != d.size {
		return nil, fmt.Errorf("%w: tensor size does not match model input %d", ErrInference, d.size)
	}

	// The tensor is already normalized HWC float32; BlobFromImage only
	// reorders it to the NCHW layout ONNX exports expect.
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&t.Data[0])), len(t.Data)*4)
	img, err := gocv.NewMatFromBytes(t.Size, t.Size, gocv.MatTypeCV32FC3, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	defer img.Close()

	blob := gocv.BlobFromImage(img, 1.0, image.Pt(d.size, d.size), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("%w: model output has %d dims, want 3", ErrInference, len(dims))
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return channelMajor(data, dims[1], dims[2]), nil
}

func (d *opencvDetector) InputSize() int {
	return d.size
}

func (d *opencvDetector) Close() error {
	return d.net.Close()
}
