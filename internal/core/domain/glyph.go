package domain

import "sort"

// GlyphBox is a detected glyph in normalized [0,1] image coordinates.
type GlyphBox struct {
	XMin  float64
	YMin  float64
	XMax  float64
	YMax  float64
	Score float64
}

// Clamp returns the box with every coordinate limited to [0,1] and min <= max.
func (b GlyphBox) Clamp() GlyphBox {
	b.XMin, b.XMax = clampPair(b.XMin, b.XMax)
	b.YMin, b.YMax = clampPair(b.YMin, b.YMax)
	return b
}

func clampPair(lo, hi float64) (float64, float64) {
	lo, hi = clamp01(lo), clamp01(hi)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SortBoxes orders boxes for reading: left to right by XMin, ties by YMin.
// The sort is stable so identical boxes keep detector order.
func SortBoxes(boxes []GlyphBox) {
	sort.SliceStable(boxes, func(i, j int) bool {
		if boxes[i].XMin != boxes[j].XMin {
			return boxes[i].XMin < boxes[j].XMin
		}
		return boxes[i].YMin < boxes[j].YMin
	})
}
