package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
)

// ErrAllocation is returned when a tensor would exceed MaxTensorElements.
var ErrAllocation = errors.New("tensor allocation refused")

// MaxTensorElements bounds the float32 buffer of a single tensor.
const MaxTensorElements = 3 * 2048 * 2048

// Tensor is a model input of logical shape [1, Size, Size, 3].
//
// Data is row-major with interleaved R, G, B channels, each the 8-bit channel
// value divided by 255. The backing buffer is pooled; call Release when the
// inference pass that owns the tensor ends.
type Tensor struct {
	Data []float32
	Size int

	buf *[]float32
}

var tensorPool sync.Pool

// Shape returns the logical NHWC shape.
func (t *Tensor) Shape() [4]int {
	return [4]int{1, t.Size, t.Size, 3}
}

// At returns the value of channel c (0=R, 1=G, 2=B) of pixel (x, y).
func (t *Tensor) At(x, y, c int) float32 {
	return t.Data[(y*t.Size+x)*3+c]
}

// Release returns the backing buffer to the pool. The tensor must not be
// used afterwards. Calling Release more than once is a no-op.
func (t *Tensor) Release() {
	if t == nil || t.buf == nil {
		return
	}
	tensorPool.Put(t.buf)
	t.buf = nil
	t.Data = nil
}

func getTensorBuffer(n int) *[]float32 {
	if v, ok := tensorPool.Get().(*[]float32); ok && cap(*v) >= n {
		*v = (*v)[:n]
		return v
	}
	buf := make([]float32, n)
	return &buf
}

// EncodeTensor converts a square canvas into a normalized float tensor.
func EncodeTensor(canvas image.Image) (*Tensor, error) {
	if canvas == nil {
		return nil, fmt.Errorf("%w: nil canvas", ErrInvalidGeometry)
	}
	bounds := canvas.Bounds()
	size := bounds.Dx()
	if size <= 0 || bounds.Dy() != size {
		return nil, fmt.Errorf("%w: canvas %dx%d is not square", ErrInvalidGeometry, bounds.Dx(), bounds.Dy())
	}
	n := size * size * 3
	if n > MaxTensorElements {
		return nil, fmt.Errorf("%w: %d elements", ErrAllocation, n)
	}

	buf := getTensorBuffer(n)
	data := *buf

	if src, ok := canvas.(*image.NRGBA); ok {
		i := 0
		for y := 0; y < size; y++ {
			row := src.Pix[(y+bounds.Min.Y-src.Rect.Min.Y)*src.Stride+(bounds.Min.X-src.Rect.Min.X)*4:]
			for x := 0; x < size; x++ {
				p := row[x*4 : x*4+3 : x*4+3]
				data[i] = float32(p[0]) / 255.0
				data[i+1] = float32(p[1]) / 255.0
				data[i+2] = float32(p[2]) / 255.0
				i += 3
			}
		}
	} else {
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := color.NRGBAModel.Convert(canvas.At(x, y)).(color.NRGBA)
				data[i] = float32(c.R) / 255.0
				data[i+1] = float32(c.G) / 255.0
				data[i+2] = float32(c.B) / 255.0
				i += 3
			}
		}
	}

	return &Tensor{Data: data, Size: size, buf: buf}, nil
}
