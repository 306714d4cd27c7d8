package detector

import (
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ironsheep/odometer-mcp/internal/detection"
	"github.com/ironsheep/odometer-mcp/internal/imaging"
)

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		model   []byte
		backend string
	}{
		{"empty model", nil, "tflite"},
		{"unknown backend", []byte{1, 2, 3}, "coreml"},
		{"blank backend", []byte{1, 2, 3}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Load(tt.model, Options{Backend: tt.backend})
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrModelLoad) {
				t.Errorf("error %v does not wrap ErrModelLoad", err)
			}
			if d != nil {
				t.Error("expected nil detector on error")
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.tflite"), Options{Backend: "tflite"})
	if !errors.Is(err, ErrModelLoad) {
		t.Errorf("expected ErrModelLoad, got %v", err)
	}
}

func TestChannelMajor(t *testing.T) {
	t.Run("already channel major", func(t *testing.T) {
		// 2 channels x 3 anchors
		data := []float32{1, 2, 3, 4, 5, 6}
		out := channelMajor(data, 2, 3)
		if out.Channels != 2 || out.Anchors != 3 {
			t.Fatalf("shape = %dx%d, want 2x3", out.Channels, out.Anchors)
		}
		if out.At(1, 0) != 4 {
			t.Errorf("At(1,0) = %v, want 4", out.At(1, 0))
		}
		data[0] = 99
		if out.At(0, 0) != 1 {
			t.Error("output aliases the input buffer")
		}
	})

	t.Run("anchor major is transposed", func(t *testing.T) {
		// 3 anchors x 2 channels
		data := []float32{1, 4, 2, 5, 3, 6}
		out := channelMajor(data, 3, 2)
		if out.Channels != 2 || out.Anchors != 3 {
			t.Fatalf("shape = %dx%d, want 2x3", out.Channels, out.Anchors)
		}
		want := []float32{1, 2, 3, 4, 5, 6}
		for i, v := range want {
			if out.Data[i] != v {
				t.Errorf("Data[%d] = %v, want %v", i, out.Data[i], v)
			}
		}
	})
}

func TestGuarded_SerializesInference(t *testing.T) {
	mock := NewMockDetector(32)
	mock.SetDelay(5 * time.Millisecond)
	g := NewGuarded(mock)

	tensor, err := imaging.EncodeTensor(image.NewNRGBA(image.Rect(0, 0, 32, 32)))
	if err != nil {
		t.Fatalf("EncodeTensor: %v", err)
	}
	defer tensor.Release()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Infer(tensor); err != nil {
				t.Errorf("Infer: %v", err)
			}
		}()
	}
	wg.Wait()

	if mock.Calls() != 8 {
		t.Errorf("calls = %d, want 8", mock.Calls())
	}
	if mock.MaxInFlight() != 1 {
		t.Errorf("max in flight = %d, want 1", mock.MaxInFlight())
	}
}

func TestGuarded_Close(t *testing.T) {
	mock := NewMockDetector(32)
	g := NewGuarded(mock)

	if g.InputSize() != 32 {
		t.Errorf("InputSize = %d, want 32", g.InputSize())
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !mock.Closed() {
		t.Error("inner detector not closed")
	}
	if err := g.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	_, err := g.Infer(nil)
	if !errors.Is(err, ErrInference) {
		t.Errorf("Infer after Close: got %v, want ErrInference", err)
	}
	if mock.Calls() != 0 {
		t.Error("closed guard still reached the detector")
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("default output is empty", func(t *testing.T) {
		m := NewMockDetector(64)
		out, err := m.Infer(nil)
		if err != nil {
			t.Fatalf("Infer: %v", err)
		}
		if out.Anchors != 0 || out.Channels != 16 {
			t.Errorf("shape = %dx%d, want 16x0", out.Channels, out.Anchors)
		}
	})

	t.Run("error", func(t *testing.T) {
		m := NewMockDetector(64)
		m.SetError(ErrInference)
		if _, err := m.Infer(nil); !errors.Is(err, ErrInference) {
			t.Errorf("got %v, want ErrInference", err)
		}
	})

	t.Run("func wins", func(t *testing.T) {
		m := NewMockDetector(64)
		m.SetError(ErrInference)
		m.SetFunc(func(*imaging.Tensor) (*detection.RawOutput, error) {
			return &detection.RawOutput{Channels: 16, Anchors: 0}, nil
		})
		if _, err := m.Infer(nil); err != nil {
			t.Errorf("Infer: %v", err)
		}
	})
}

func TestBuildOutput_ParsesBack(t *testing.T) {
	raw := BuildOutput(len(detection.DefaultLabels), DigitAnchors("507", 100, 200, 0.9))
	dets, err := detection.NewParser(detection.DefaultConfThreshold).Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	summary := detection.Assemble(detection.Suppress(dets, detection.DefaultIoUThreshold))
	if summary.Value != "507" {
		t.Errorf("Value = %q, want 507", summary.Value)
	}
}
