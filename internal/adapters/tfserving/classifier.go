package tfserving

import (
	"context"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

// Classifier implements ports.PitchClassifier. The model takes
// [N][h][w][1] grayscale tiles scaled to [0,1] and returns one
// distribution over the label vocabulary per tile.
type Classifier struct {
	client *Client
	model  string
	log    *zap.Logger
}

func NewClassifier(client *Client, model string, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{client: client, model: model, log: log}
}

// Classify sends every tile in a single request. A low-confidence row still
// yields a label; only transport or shape problems are errors.
func (c *Classifier) Classify(ctx context.Context, tiles []*image.Gray) ([]domain.Classification, error) {
	if len(tiles) == 0 {
		return []domain.Classification{}, nil
	}

	instances := make([][][][1]float32, len(tiles))
	for i, t := range tiles {
		instances[i] = grayInstance(t)
	}

	var rows [][]float64
	if err := c.client.predict(ctx, c.model, instances, &rows); err != nil {
		return nil, fmt.Errorf("tfserving: classify: %v: %w", err, domain.ErrClassificationModel)
	}
	if len(rows) != len(tiles) {
		return nil, fmt.Errorf("tfserving: classify: got %d rows for %d tiles: %w", len(rows), len(tiles), domain.ErrClassificationModel)
	}

	out := make([]domain.Classification, len(rows))
	for i, row := range rows {
		if len(row) != domain.LabelCount {
			return nil, fmt.Errorf("tfserving: classify: row %d has %d classes, want %d: %w", i, len(row), domain.LabelCount, domain.ErrClassificationModel)
		}
		cl, ok := argmax(row)
		if !ok {
			c.log.Warn("degenerate classifier output, using default label",
				zap.Int("tile", i),
				zap.Stringer("label", domain.DefaultLabel),
			)
		}
		out[i] = cl
	}
	return out, nil
}

// Ready implements ports.ModelProbe.
func (c *Classifier) Ready(ctx context.Context) error {
	if err := c.client.ready(ctx, c.model); err != nil {
		return fmt.Errorf("tfserving: classifier: %v: %w", err, domain.ErrClassificationModel)
	}
	return nil
}

// argmax picks the highest class. ok is false when the row carries no
// information (NaN/Inf values or a flat distribution).
func argmax(row []float64) (domain.Classification, bool) {
	fallback := domain.Classification{Label: domain.DefaultLabel, Fallback: true}
	if len(row) == 0 {
		return fallback, false
	}
	best, lo := 0, row[0]
	for i, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fallback, false
		}
		if v > row[best] {
			best = i
		}
		if v < lo {
			lo = v
		}
	}
	if row[best] == lo {
		return fallback, false
	}
	label, ok := domain.LabelAt(best)
	if !ok {
		return fallback, false
	}
	return domain.Classification{Label: label, Confidence: row[best]}, true
}

func grayInstance(t *image.Gray) [][][1]float32 {
	b := t.Bounds()
	rows := make([][][1]float32, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := make([][1]float32, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			row[x] = [1]float32{float32(t.Pix[y*t.Stride+x]) / 255}
		}
		rows[y] = row
	}
	return rows
}
