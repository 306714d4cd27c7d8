package detection

import (
	"math"
	"testing"
)

func TestAssemble_OrdersByX1(t *testing.T) {
	got := Assemble([]BoxDetection{
		det("3", 0.9, 50, 0, 60, 20),
		det("1", 0.9, 10, 0, 20, 20),
		det("2", 0.9, 30, 0, 40, 20),
	})

	if got.Value != "123" {
		t.Errorf("Value: got %q, want 123", got.Value)
	}
	if got.DigitCount != 3 {
		t.Errorf("DigitCount: got %d, want 3", got.DigitCount)
	}
}

func TestAssemble_MeanConfidence(t *testing.T) {
	got := Assemble([]BoxDetection{
		det("1", 0.9, 0, 0, 10, 10),
		det("2", 0.7, 20, 0, 30, 10),
		det("3", 0.5, 40, 0, 50, 10),
		det("analog", 0.99, 0, 0, 60, 10),
	})

	if math.Abs(got.AvgConfidence-0.7) > 1e-6 {
		t.Errorf("AvgConfidence: got %v, want 0.7", got.AvgConfidence)
	}
	if got.Type != "analog" {
		t.Errorf("Type: got %q, want analog", got.Type)
	}
	if got.DigitCount != 3 {
		t.Errorf("DigitCount: got %d, want 3", got.DigitCount)
	}
}

func TestAssemble_MostConfidentType(t *testing.T) {
	got := Assemble([]BoxDetection{
		det("analog", 0.4, 0, 0, 10, 10),
		det("digital", 0.8, 100, 100, 110, 110),
		det("5", 0.6, 20, 0, 30, 10),
	})

	if got.Type != "digital" {
		t.Errorf("Type: got %q, want digital", got.Type)
	}
	if !got.HasType() {
		t.Error("HasType should be true")
	}
}

func TestAssemble_NoDigits(t *testing.T) {
	got := Assemble([]BoxDetection{det("digital", 0.8, 0, 0, 10, 10)})

	want := PredictionSummary{Type: "digital"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestAssemble_Empty(t *testing.T) {
	got := Assemble(nil)
	if got != EmptySummary() {
		t.Errorf("got %+v, want empty summary", got)
	}
	if got.HasType() {
		t.Error("empty summary should have no type")
	}
}

func TestDigitDetections_StableForEqualX1(t *testing.T) {
	got := DigitDetections([]BoxDetection{
		det("7", 0.9, 10, 0, 20, 10),
		det("analog", 0.9, 0, 0, 5, 5),
		det("1", 0.5, 10, 30, 20, 40),
	})

	if len(got) != 2 {
		t.Fatalf("got %d digits, want 2", len(got))
	}
	if got[0].Label != "7" || got[1].Label != "1" {
		t.Errorf("got %q %q, want input order preserved for ties", got[0].Label, got[1].Label)
	}
}
