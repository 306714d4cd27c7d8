//go:build !tflite

package detector

import "fmt"

func newTFLite(_ []byte, _ Options) (Detector, error) {
	return nil, fmt.Errorf("%w: %w: rebuild with -tags tflite", ErrModelLoad, ErrBackendUnavailable)
}
