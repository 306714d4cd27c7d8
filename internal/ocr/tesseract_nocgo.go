//go:build !cgo || !linux

package ocr

import "image"

// ReadDigits is unavailable without cgo on linux.
func ReadDigits(_ image.Image, _ string) (*DigitRead, error) {
	return nil, ErrUnavailable
}

// ReadDigitsInRegion is unavailable without cgo on linux.
func ReadDigitsInRegion(_ image.Image, _ image.Rectangle, _ string) (*DigitRead, error) {
	return nil, ErrUnavailable
}

// GetInfo reports the subsystem as unavailable.
func GetInfo() Info {
	return Info{
		Available: false,
		Backend:   "none",
		Error:     ErrUnavailable.Error(),
	}
}
