package ocr

import (
	"errors"
	"image"
	"strings"
	"unicode"
)

var (
	// ErrUnavailable is returned when the binary was built without Tesseract.
	ErrUnavailable = errors.New("tesseract not available in this build")

	// ErrEmptyRegion is returned when a region to read lies outside the image.
	ErrEmptyRegion = errors.New("region does not overlap the image")
)

// DefaultLanguage is the Tesseract language used for digits.
const DefaultLanguage = "eng"

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Word is one recognized token.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

// DigitRead is what Tesseract saw on a canvas.
type DigitRead struct {
	// Digits is every digit of Raw in reading order.
	Digits string `json:"digits"`
	Raw    string `json:"raw"`

	// Confidence is the mean word confidence in [0, 1].
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// Agreement compares a model reading with an OCR read.
type Agreement struct {
	Reading  string `json:"reading"`
	OCR      string `json:"ocr"`
	Match    bool   `json:"match"`
	Distance int    `json:"distance"`
}

// Info describes the OCR subsystem.
type Info struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Backend   string `json:"backend"`
	Error     string `json:"error,omitempty"`
}

// offset moves word bounds from region coordinates into image coordinates.
func (r *DigitRead) offset(origin image.Point) {
	for i := range r.Words {
		r.Words[i].Bounds.X1 += origin.X
		r.Words[i].Bounds.Y1 += origin.Y
		r.Words[i].Bounds.X2 += origin.X
		r.Words[i].Bounds.Y2 += origin.Y
	}
}

// RowRegion is the smallest rectangle holding every box, grown by pad on each
// side and clipped to within. It is empty when boxes is.
func RowRegion(boxes []image.Rectangle, pad int, within image.Rectangle) image.Rectangle {
	var row image.Rectangle
	for _, b := range boxes {
		row = row.Union(b.Canon())
	}
	if row.Empty() {
		return image.Rectangle{}
	}
	return row.Inset(-pad).Intersect(within)
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Compare reports whether the OCR digits agree with reading, and the edit
// distance between them.
func Compare(reading, ocrDigits string) Agreement {
	d := levenshtein(reading, ocrDigits)
	return Agreement{
		Reading:  reading,
		OCR:      ocrDigits,
		Match:    d == 0 && reading != "",
		Distance: d,
	}
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func meanConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
