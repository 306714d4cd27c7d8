package detector

import (
	"sync"
	"time"

	"github.com/ironsheep/odometer-mcp/internal/detection"
	"github.com/ironsheep/odometer-mcp/internal/imaging"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the inference results.
type MockDetector struct {
	mu          sync.Mutex
	size        int
	output      *detection.RawOutput
	err         error
	fn          func(t *imaging.Tensor) (*detection.RawOutput, error)
	delay       time.Duration
	calls       int
	inFlight    int
	maxInFlight int
	closed      bool
}

// NewMockDetector creates a MockDetector with the given input size.
func NewMockDetector(size int) *MockDetector {
	return &MockDetector{size: size}
}

// SetOutput sets the output returned by Infer.
func (m *MockDetector) SetOutput(out *detection.RawOutput) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = out
}

// SetError sets the error returned by Infer.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetFunc makes Infer delegate to fn, taking precedence over SetOutput and
// SetError. The function runs outside the mock's lock.
func (m *MockDetector) SetFunc(fn func(t *imaging.Tensor) (*detection.RawOutput, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
}

// SetDelay makes every Infer call sleep for d.
func (m *MockDetector) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Infer returns the pre-configured output or error.
func (m *MockDetector) Infer(t *imaging.Tensor) (*detection.RawOutput, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	fn, out, err, delay := m.fn, m.output, m.err, m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fn != nil {
		return fn(t)
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		return &detection.RawOutput{Channels: 4 + len(detection.DefaultLabels)}, nil
	}
	return out, nil
}

// InputSize returns the size passed to NewMockDetector.
func (m *MockDetector) InputSize() int {
	return m.size
}

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Infer ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MaxInFlight returns the largest number of concurrent Infer calls observed.
func (m *MockDetector) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Anchor describes one model anchor for BuildOutput.
type Anchor struct {
	CX, CY, W, H float32
	Class        int
	Score        float32
}

// BuildOutput lays anchors out channel-major for a model with numClasses
// classes, the way the odometer model emits them.
func BuildOutput(numClasses int, anchors []Anchor) *detection.RawOutput {
	n := len(anchors)
	channels := 4 + numClasses
	data := make([]float32, channels*n)
	for a, an := range anchors {
		data[0*n+a] = an.CX
		data[1*n+a] = an.CY
		data[2*n+a] = an.W
		data[3*n+a] = an.H
		if an.Class >= 0 && an.Class < numClasses {
			data[(4+an.Class)*n+a] = an.Score
		}
	}
	return &detection.RawOutput{Data: data, Channels: channels, Anchors: n}
}

// DigitAnchors returns anchors for a row of digits read left to right, each
// 30 pixels wide and spaced 40 pixels apart starting at x0, all with score.
func DigitAnchors(digits string, x0, y float32, score float32) []Anchor {
	anchors := make([]Anchor, 0, len(digits))
	for i, ch := range digits {
		anchors = append(anchors, Anchor{
			CX:    x0 + float32(i)*40 + 15,
			CY:    y,
			W:     30,
			H:     50,
			Class: int(ch - '0'),
			Score: score,
		})
	}
	return anchors
}
