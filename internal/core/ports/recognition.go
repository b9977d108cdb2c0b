package ports

import (
	"context"
	"image"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

// GlyphDetector finds note glyphs on a decoded score image.
type GlyphDetector interface {
	// Detect returns every box whose score is strictly above threshold, in
	// no particular order. A box scoring exactly threshold is dropped.
	Detect(ctx context.Context, img image.Image, threshold float64) ([]domain.GlyphBox, error)
}

// PitchClassifier labels a batch of fixed-size grayscale glyph tiles in one call.
type PitchClassifier interface {
	Classify(ctx context.Context, tiles []*image.Gray) ([]domain.Classification, error)
}

// ModelProbe reports whether a backing model can serve requests.
type ModelProbe interface {
	Ready(ctx context.Context) error
}
