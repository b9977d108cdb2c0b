package domain

import (
	"fmt"
	"math"
)

// Label is one of the 60 pitch classes the classifier can emit, C1 through B5.
// Its integer value is the classifier's output index.
type Label int

// LabelCount is the size of the classifier vocabulary.
const LabelCount = 60

// DefaultLabel is used when a prediction carries no usable signal.
const DefaultLabel = Label(45) // A4

var semitoneNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// referenceHz holds the recognizer's reference frequency per label, in index order.
var referenceHz = [LabelCount]float64{
	32, 34, 36, 38, 41, 43, 46, 49, 52, 55, 58, 61,
	65, 69, 73, 77, 82, 87, 92, 98, 104, 110, 116, 123,
	130, 138, 146, 155, 164, 174, 185, 196, 208, 220, 233, 246,
	261, 277, 293, 311, 329, 349, 369, 392, 415, 440, 466, 493,
	523, 554, 587, 622, 659, 698, 739, 784, 830, 880, 932, 987,
}

var (
	labelNames   [LabelCount]string
	noteNumbers  [LabelCount]uint8
	labelsByName = make(map[string]Label, LabelCount)
)

func init() {
	for i := 0; i < LabelCount; i++ {
		name := fmt.Sprintf("%s%d", semitoneNames[i%12], i/12+1)
		labelNames[i] = name
		labelsByName[name] = Label(i)
		noteNumbers[i] = NoteNumberForFrequency(referenceHz[i])
	}
}

// NoteNumberForFrequency maps a frequency to the nearest MIDI note number
// using midi = 69 + 12*log2(freq/440).
func NoteNumberForFrequency(freq float64) uint8 {
	n := math.Round(69 + 12*math.Log2(freq/440))
	if n < 0 {
		return 0
	}
	if n > 127 {
		return 127
	}
	return uint8(n)
}

// LabelAt returns the label for a classifier output index.
func LabelAt(index int) (Label, bool) {
	if index < 0 || index >= LabelCount {
		return 0, false
	}
	return Label(index), true
}

// ParseLabel resolves a canonical name such as "C#3".
func ParseLabel(name string) (Label, bool) {
	l, ok := labelsByName[name]
	return l, ok
}

// AllLabels returns the vocabulary in index order.
func AllLabels() []Label {
	out := make([]Label, LabelCount)
	for i := range out {
		out[i] = Label(i)
	}
	return out
}

func (l Label) Valid() bool {
	return l >= 0 && int(l) < LabelCount
}

func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// Frequency returns the reference frequency in Hz.
func (l Label) Frequency() float64 {
	if !l.Valid() {
		return referenceHz[DefaultLabel]
	}
	return referenceHz[l]
}

// NoteNumber returns the MIDI note number derived from the reference frequency.
func (l Label) NoteNumber() uint8 {
	if !l.Valid() {
		return noteNumbers[DefaultLabel]
	}
	return noteNumbers[l]
}

// Classification is the classifier's verdict for one glyph.
type Classification struct {
	Label      Label
	Confidence float64
	// Fallback is set when the prediction was degenerate and DefaultLabel was substituted.
	Fallback bool
}
