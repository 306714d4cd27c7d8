package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
)

// LabeledRect is a box to draw on a canvas together with a short caption.
type LabeledRect struct {
	Rect  image.Rectangle
	Label string
}

// AnnotateResult contains an annotated canvas encoded as base64 PNG.
type AnnotateResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Boxes       int    `json:"boxes"`
}

var (
	digitBoxColor = color.RGBA{0, 255, 0, 255}
	typeBoxColor  = color.RGBA{255, 160, 0, 255}
	labelFg       = color.RGBA{255, 255, 255, 255}
	labelBg       = color.RGBA{0, 0, 0, 200}
)

// Annotate draws each rectangle outline with its caption in the top-left
// corner. Single-character captions are treated as digits and drawn green;
// longer captions are gauge types and drawn orange with their first letter.
func Annotate(canvas image.Image, boxes []LabeledRect) (*AnnotateResult, error) {
	if canvas == nil {
		return nil, fmt.Errorf("%w: nil canvas", ErrInvalidGeometry)
	}
	bounds := canvas.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, canvas, bounds.Min, draw.Src)

	for _, b := range boxes {
		c := digitBoxColor
		caption := b.Label
		if len([]rune(caption)) > 1 {
			c = typeBoxColor
			caption = string([]rune(caption)[0])
		}
		drawRect(result, b.Rect, c)
		drawLabel(result, b.Rect.Min.X+2, b.Rect.Min.Y+2, caption, labelFg, labelBg)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &AnnotateResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Boxes:       len(boxes),
	}, nil
}

// RectFromCorners rounds float corner coordinates to a pixel rectangle.
func RectFromCorners(x1, y1, x2, y2 float64) image.Rectangle {
	return image.Rect(
		int(math.Round(x1)), int(math.Round(y1)),
		int(math.Round(x2)), int(math.Round(y2)),
	)
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Canon().Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// drawLabel draws a caption with a 3x5 pixel font.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		'a': {"010", "101", "111", "101", "101"},
		'd': {"110", "101", "101", "101", "110"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			px, py := x+dx, y+dy
			if image.Pt(px, py).In(bounds) {
				img.Set(px, py, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					px, py := cx+col, y+row
					if image.Pt(px, py).In(bounds) {
						img.Set(px, py, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}
