package imaging

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrAspectOutOfRange signals that the source is too wide or too tall for a
// center crop. No crop geometry is computed when it is returned.
var ErrAspectOutOfRange = errors.New("aspect ratio outside crop window")

// AspectWindow is the inclusive width/height ratio range a center crop accepts.
type AspectWindow struct {
	Min float64
	Max float64
}

// DefaultAspectWindow returns the [0.6, 1.7] window the model was tuned on.
func DefaultAspectWindow() AspectWindow {
	return AspectWindow{Min: 0.6, Max: 1.7}
}

// Admits reports whether a width x height source falls inside the window.
func (w AspectWindow) Admits(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	ratio := float64(width) / float64(height)
	return ratio >= w.Min && ratio <= w.Max
}

// CropRect returns the centered region of a width x height source that a
// crop of desiredW x desiredH occupies. An axis smaller than the desired size
// falls back to the full source extent on that axis.
func CropRect(width, height, desiredW, desiredH int) image.Rectangle {
	left, cropW := centerSpan(width, desiredW)
	top, cropH := centerSpan(height, desiredH)
	return image.Rect(left, top, left+cropW, top+cropH)
}

func centerSpan(size, desired int) (origin, span int) {
	if desired > size {
		return 0, size
	}
	return (size - desired) / 2, desired
}

// CropFrame is a center-crop model canvas plus the source region it shows.
// Like FrameGeometry it belongs to a single pass; call Release when done.
type CropFrame struct {
	Canvas *image.NRGBA

	// Region is the cropped rectangle in source coordinates.
	Region image.Rectangle

	// ScaleX and ScaleY are canvas pixels per source pixel on each axis.
	ScaleX float64
	ScaleY float64
}

// Release drops the canvas so its pixels can be collected.
func (f *CropFrame) Release() {
	if f != nil {
		f.Canvas = nil
	}
}

// ToSource maps a canvas point back into source image coordinates.
func (f *CropFrame) ToSource(x, y float64) (float64, float64) {
	return float64(f.Region.Min.X) + x/f.ScaleX, float64(f.Region.Min.Y) + y/f.ScaleY
}

// CenterCropWithMargin cuts a (targetW+marginPx) x (targetH+marginPx) region
// from the middle of img and resizes it to exactly targetW x targetH.
//
// The final resize does not preserve aspect ratio: when an axis falls back to
// the full source extent the crop is stretched on that axis. Sources whose
// aspect ratio lies outside window yield ErrAspectOutOfRange.
func CenterCropWithMargin(img image.Image, targetW, targetH, marginPx int, window AspectWindow) (*CropFrame, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidGeometry)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: source is %dx%d", ErrInvalidGeometry, width, height)
	}
	if !window.Admits(width, height) {
		return nil, fmt.Errorf("%w: %dx%d not in [%g, %g]", ErrAspectOutOfRange,
			width, height, window.Min, window.Max)
	}
	if targetW <= 0 || targetH <= 0 || marginPx < 0 {
		return nil, fmt.Errorf("%w: target %dx%d margin %d", ErrInvalidGeometry, targetW, targetH, marginPx)
	}

	rect := CropRect(width, height, targetW+marginPx, targetH+marginPx).Add(bounds.Min)
	cropped := imaging.Crop(img, rect)
	return &CropFrame{
		Canvas: imaging.Resize(cropped, targetW, targetH, imaging.Linear),
		Region: rect,
		ScaleX: float64(targetW) / float64(rect.Dx()),
		ScaleY: float64(targetH) / float64(rect.Dy()),
	}, nil
}
