package detector

import (
	"fmt"
	"sync"

	"github.com/ironsheep/odometer-mcp/internal/detection"
	"github.com/ironsheep/odometer-mcp/internal/imaging"
)

// Guarded owns a Detector and allows at most one inference at a time.
//
// Interpreter handles are not safe for concurrent use. Every caller goes
// through the same Guarded value instead of locking at each call site.
type Guarded struct {
	mu     sync.Mutex
	inner  Detector
	closed bool
}

// NewGuarded takes ownership of d.
func NewGuarded(d Detector) *Guarded {
	return &Guarded{inner: d}
}

// Infer runs the wrapped detector under the lock.
func (g *Guarded) Infer(t *imaging.Tensor) (*detection.RawOutput, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, fmt.Errorf("%w: detector closed", ErrInference)
	}
	return g.inner.Infer(t)
}

// InputSize returns the wrapped detector's input size.
func (g *Guarded) InputSize() int {
	return g.inner.InputSize()
}

// Close waits for any in-flight inference, then closes the wrapped detector.
// Later calls return nil.
func (g *Guarded) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	return g.inner.Close()
}
