package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// ErrInvalidGeometry is returned when a source image or target size cannot
// produce a canvas (nil image, zero width or height, non-positive target).
var ErrInvalidGeometry = errors.New("invalid geometry")

// FrameGeometry is a square model canvas plus the transform that produced it.
//
// A point (x, y) of the source maps to (x*Scale+PadX, y*Scale+PadY) on the
// canvas. The geometry belongs to a single inference pass; call Release once
// the pass no longer needs the canvas.
type FrameGeometry struct {
	Canvas     *image.NRGBA
	Scale      float64
	PadX       int
	PadY       int
	NewWidth   int
	NewHeight  int
	TargetSize int
}

// Release drops the canvas so its pixels can be collected.
func (g *FrameGeometry) Release() {
	if g != nil {
		g.Canvas = nil
	}
}

// ToSource maps a canvas point back into source image coordinates.
func (g *FrameGeometry) ToSource(x, y float64) (float64, float64) {
	return (x - float64(g.PadX)) / g.Scale, (y - float64(g.PadY)) / g.Scale
}

// Letterbox resizes img to fit a targetSize x targetSize canvas without
// changing its aspect ratio. The resized image is centered on a black canvas.
//
// For a 1000x500 source and targetSize 640 the scale is 0.64, the resized
// image is 640x320 and it sits 160 pixels below the canvas top.
func Letterbox(img image.Image, targetSize int) (*FrameGeometry, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidGeometry)
	}
	if targetSize <= 0 {
		return nil, fmt.Errorf("%w: target size %d", ErrInvalidGeometry, targetSize)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: source is %dx%d", ErrInvalidGeometry, width, height)
	}

	scale := math.Min(float64(targetSize)/float64(width), float64(targetSize)/float64(height))
	newWidth := clamp(int(math.Round(float64(width)*scale)), 1, targetSize)
	newHeight := clamp(int(math.Round(float64(height)*scale)), 1, targetSize)
	padX := (targetSize - newWidth) / 2
	padY := (targetSize - newHeight) / 2

	resized := imaging.Resize(img, newWidth, newHeight, imaging.Linear)
	canvas := imaging.New(targetSize, targetSize, color.Black)
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return &FrameGeometry{
		Canvas:     canvas,
		Scale:      scale,
		PadX:       padX,
		PadY:       padY,
		NewWidth:   newWidth,
		NewHeight:  newHeight,
		TargetSize: targetSize,
	}, nil
}

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
