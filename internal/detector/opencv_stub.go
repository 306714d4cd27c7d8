//go:build !opencv

package detector

import "fmt"

func newOpenCV(_ []byte, _ Options) (Detector, error) {
	return nil, fmt.Errorf("%w: %w: rebuild with -tags opencv", ErrModelLoad, ErrBackendUnavailable)
}
