// Package ocr cross-checks odometer readings with Tesseract.
//
// The detection model is the source of truth for a reading. OCR runs on the
// same model canvas with a digit-only whitelist in single-line mode and only
// reports whether it agrees; it never replaces the model's digits.
//
// # Prerequisites
//
// Tesseract and its language data must be installed, and the binary must be
// built with cgo enabled:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng libtesseract-dev
//   - macOS: brew install tesseract
//
// Without cgo, ReadDigits returns ErrUnavailable and Info reports the
// subsystem as unavailable.
package ocr
