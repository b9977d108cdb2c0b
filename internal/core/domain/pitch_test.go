package domain

import (
	"math"
	"testing"
)

func TestLabel_NoteNumbersAreDistinct(t *testing.T) {
	seen := make(map[uint8]Label, LabelCount)
	for _, l := range AllLabels() {
		n := l.NoteNumber()
		if prev, ok := seen[n]; ok {
			t.Fatalf("labels %s and %s share note number %d", prev, l, n)
		}
		seen[n] = l
	}
	if len(seen) != LabelCount {
		t.Fatalf("expected %d note numbers, got %d", LabelCount, len(seen))
	}
}

func TestLabel_NoteNumberFollowsFormula(t *testing.T) {
	for _, l := range AllLabels() {
		exact := 69 + 12*math.Log2(l.Frequency()/440)
		if diff := math.Abs(float64(l.NoteNumber()) - exact); diff > 0.5 {
			t.Fatalf("%s: note %d is %.3f semitones from %.3f", l, l.NoteNumber(), diff, exact)
		}
	}
}

func TestLabel_NoteNumbersAscendChromatically(t *testing.T) {
	first := Label(0).NoteNumber()
	for i, l := range AllLabels() {
		if got, want := l.NoteNumber(), first+uint8(i); got != want {
			t.Fatalf("%s: got note %d, want %d", l, got, want)
		}
	}
}

func TestLabel_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		wantHz   float64
		wantNote uint8
	}{
		{name: "C1", wantHz: 32, wantNote: 24},
		{name: "C#3", wantHz: 138, wantNote: 49},
		{name: "A4", wantHz: 440, wantNote: 69},
		{name: "A#4", wantHz: 466, wantNote: 70},
		{name: "B5", wantHz: 987, wantNote: 83},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, ok := ParseLabel(tc.name)
			if !ok {
				t.Fatalf("ParseLabel(%q) failed", tc.name)
			}
			if l.String() != tc.name {
				t.Fatalf("String: got %q, want %q", l.String(), tc.name)
			}
			if l.Frequency() != tc.wantHz {
				t.Fatalf("Frequency: got %v, want %v", l.Frequency(), tc.wantHz)
			}
			if l.NoteNumber() != tc.wantNote {
				t.Fatalf("NoteNumber: got %d, want %d", l.NoteNumber(), tc.wantNote)
			}
		})
	}
}

func TestLabelAt_Bounds(t *testing.T) {
	if _, ok := LabelAt(-1); ok {
		t.Fatalf("expected index -1 to be rejected")
	}
	if _, ok := LabelAt(LabelCount); ok {
		t.Fatalf("expected index %d to be rejected", LabelCount)
	}
	l, ok := LabelAt(45)
	if !ok || l != DefaultLabel || l.String() != "A4" {
		t.Fatalf("LabelAt(45): got %v ok=%v, want A4", l, ok)
	}
}

func TestLabel_InvalidFallsBackToDefault(t *testing.T) {
	bad := Label(99)
	if bad.Valid() {
		t.Fatalf("expected Label(99) to be invalid")
	}
	if bad.NoteNumber() != DefaultLabel.NoteNumber() {
		t.Fatalf("invalid label note: got %d, want %d", bad.NoteNumber(), DefaultLabel.NoteNumber())
	}
}
