package quality

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// ErrEmptyImage is returned by Assess for nil or zero-sized images.
var ErrEmptyImage = errors.New("empty image")

// assessDim is the longest side images are reduced to before scoring.
const assessDim = 256

const (
	darkThreshold   = 0.2
	brightThreshold = 0.9
	flatThreshold   = 0.05
	blurThreshold   = 0.03
)

// Assessment scores a photograph. All scores are in [0, 1].
type Assessment struct {
	// Brightness is the mean CIE L* lightness.
	Brightness float64 `json:"brightness"`

	// Contrast is the standard deviation of L*.
	Contrast float64 `json:"contrast"`

	// Sharpness is the mean Sobel edge magnitude.
	Sharpness float64 `json:"sharpness"`

	Warnings []string `json:"warnings,omitempty"`
}

// Assess scores brightness, contrast and sharpness of img.
func Assess(img image.Image) (*Assessment, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}

	var small image.Image = img
	if b.Dx() > assessDim || b.Dy() > assessDim {
		small = imaging.Fit(img, assessDim, assessDim, imaging.Box)
	}

	brightness, contrast := lightness(small)
	sharpness := edgeStrength(small)

	a := &Assessment{
		Brightness: round3(brightness),
		Contrast:   round3(contrast),
		Sharpness:  round3(sharpness),
	}
	if brightness < darkThreshold {
		a.Warnings = append(a.Warnings, "image is too dark")
	} else if brightness > brightThreshold {
		a.Warnings = append(a.Warnings, "image is overexposed")
	}
	if contrast < flatThreshold {
		a.Warnings = append(a.Warnings, "image has very little contrast")
	}
	if sharpness < blurThreshold {
		a.Warnings = append(a.Warnings, "image looks blurry")
	}
	return a, nil
}

// lightness returns the mean and standard deviation of L* over opaque pixels.
func lightness(img image.Image) (mean, stddev float64) {
	b := img.Bounds()
	var sum, sumSq float64
	var n int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			l, _, _ := c.Lab()
			sum += l
			sumSq += l * l
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return clamp01(mean), math.Sqrt(variance)
}

// edgeStrength is the mean Sobel response of the grayscale image.
func edgeStrength(img image.Image) float64 {
	var edges image.Image = effect.Sobel(effect.Grayscale(img))
	b := edges.Bounds()
	if b.Empty() {
		return 0
	}
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(edges.At(x, y)).(color.Gray)
			sum += float64(g.Y)
		}
	}
	return sum / float64(b.Dx()*b.Dy()) / 255
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
