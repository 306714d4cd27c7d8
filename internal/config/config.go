// Package config holds the tunable settings of the odometer reader.
//
// Values come from DefaultConfig and may be overridden through environment
// variables prefixed with ODOMETER_MCP_. The server reads its configuration
// once at startup; nothing is reloaded while it runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is prepended to every environment variable read by FromEnv.
const EnvPrefix = "ODOMETER_MCP_"

// Config describes the detection pipeline and the server around it.
type Config struct {
	// ModelPath is the detection model file loaded at startup.
	ModelPath string

	// Backend selects the detector implementation: "tflite" or "opencv".
	Backend string

	// InputSize is the square model input edge in pixels.
	InputSize int

	// ConfThreshold drops anchors whose best class score is not above it.
	ConfThreshold float64

	// IoUThreshold is the overlap above which NMS discards a box.
	IoUThreshold float64

	// CrossClassNMS lets a box suppress overlapping boxes of any label.
	CrossClassNMS bool

	// CropMarginPx is added to the model input size when cutting the center crop.
	CropMarginPx int

	// MinAspect and MaxAspect bound the width/height ratio for which the
	// center crop pass runs.
	MinAspect float64
	MaxAspect float64

	// MaxDecodeDim caps the longer side of decoded photographs.
	MaxDecodeDim int

	// CacheSize is how many decoded photographs the server keeps in memory.
	CacheSize int

	// HistoryLimit is how many readings odometer_history returns by default.
	HistoryLimit int

	// Debug enables verbose logging.
	Debug bool
}

// DefaultConfig returns the settings the detection model was tuned with.
func DefaultConfig() Config {
	return Config{
		Backend:       "tflite",
		InputSize:     640,
		ConfThreshold: 0.3,
		IoUThreshold:  0.5,
		CrossClassNMS: true,
		CropMarginPx:  60,
		MinAspect:     0.6,
		MaxAspect:     1.7,
		MaxDecodeDim:  1600,
		CacheSize:     4,
		HistoryLimit:  5,
	}
}

// FromEnv starts from DefaultConfig and applies any ODOMETER_MCP_* overrides.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()

	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get("MODEL_PATH"); ok {
		cfg.ModelPath = v
	}
	if v, ok := get("BACKEND"); ok {
		cfg.Backend = strings.ToLower(v)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Debug = strings.EqualFold(v, "debug")
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"INPUT_SIZE", &cfg.InputSize},
		{"CROP_MARGIN", &cfg.CropMarginPx},
		{"MAX_DECODE_DIM", &cfg.MaxDecodeDim},
		{"CACHE_SIZE", &cfg.CacheSize},
		{"HISTORY_LIMIT", &cfg.HistoryLimit},
	}
	for _, f := range ints {
		v, ok := get(f.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, f.name, v, err)
		}
		*f.dst = n
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"CONF_THRESHOLD", &cfg.ConfThreshold},
		{"IOU_THRESHOLD", &cfg.IoUThreshold},
		{"MIN_ASPECT", &cfg.MinAspect},
		{"MAX_ASPECT", &cfg.MaxAspect},
	}
	for _, f := range floats {
		v, ok := get(f.name)
		if !ok {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, f.name, v, err)
		}
		*f.dst = x
	}

	if v, ok := get("CROSS_CLASS_NMS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %sCROSS_CLASS_NMS %q: %w", EnvPrefix, v, err)
		}
		cfg.CrossClassNMS = b
	}

	return cfg, cfg.Validate()
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch {
	case c.InputSize <= 0:
		return fmt.Errorf("input size must be positive, got %d", c.InputSize)
	case c.ConfThreshold < 0 || c.ConfThreshold >= 1:
		return fmt.Errorf("confidence threshold must be in [0,1), got %g", c.ConfThreshold)
	case c.IoUThreshold <= 0 || c.IoUThreshold > 1:
		return fmt.Errorf("IoU threshold must be in (0,1], got %g", c.IoUThreshold)
	case c.CropMarginPx < 0:
		return fmt.Errorf("crop margin must not be negative, got %d", c.CropMarginPx)
	case c.MinAspect <= 0 || c.MaxAspect < c.MinAspect:
		return fmt.Errorf("invalid aspect window [%g, %g]", c.MinAspect, c.MaxAspect)
	case c.MaxDecodeDim < 0:
		return fmt.Errorf("max decode dimension must not be negative, got %d", c.MaxDecodeDim)
	case c.CacheSize <= 0:
		return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
	case c.HistoryLimit <= 0:
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	switch c.Backend {
	case "tflite", "opencv":
	default:
		return fmt.Errorf("unknown detector backend %q", c.Backend)
	}
	return nil
}
