package tfserving

import (
	"context"
	"fmt"
	"image"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
	"github.com/ewilliams-labs/notesynth/internal/vision"
)

// Detector implements ports.GlyphDetector against an object detection model
// exported with the standard detection_boxes/detection_scores outputs.
type Detector struct {
	client *Client
	model  string
}

type detection struct {
	Boxes         [][]float64 `json:"detection_boxes"`
	Scores        []float64   `json:"detection_scores"`
	NumDetections float64     `json:"num_detections"`
}

func NewDetector(client *Client, model string) *Detector {
	return &Detector{client: client, model: model}
}

func (d *Detector) Detect(ctx context.Context, img image.Image, threshold float64) ([]domain.GlyphBox, error) {
	instance := rgbInstance(vision.Fit(img, vision.DetectorInputSize, vision.DetectorInputSize))

	var preds []detection
	if err := d.client.predict(ctx, d.model, [][][][3]uint8{instance}, &preds); err != nil {
		return nil, fmt.Errorf("tfserving: detect: %v: %w", err, domain.ErrDetectionModel)
	}
	if len(preds) != 1 {
		return nil, fmt.Errorf("tfserving: detect: got %d predictions for 1 instance: %w", len(preds), domain.ErrDetectionModel)
	}

	p := preds[0]
	n := len(p.Boxes)
	if len(p.Scores) < n {
		n = len(p.Scores)
	}
	if p.NumDetections > 0 && int(p.NumDetections) < n {
		n = int(p.NumDetections)
	}

	boxes := make([]domain.GlyphBox, 0, n)
	for i := 0; i < n; i++ {
		if p.Scores[i] <= threshold {
			continue
		}
		b := p.Boxes[i]
		if len(b) != 4 {
			return nil, fmt.Errorf("tfserving: detect: box %d has %d coordinates: %w", i, len(b), domain.ErrDetectionModel)
		}
		// model order is [ymin, xmin, ymax, xmax]
		boxes = append(boxes, domain.GlyphBox{
			YMin:  b[0],
			XMin:  b[1],
			YMax:  b[2],
			XMax:  b[3],
			Score: p.Scores[i],
		}.Clamp())
	}
	return boxes, nil
}

// Ready implements ports.ModelProbe.
func (d *Detector) Ready(ctx context.Context) error {
	if err := d.client.ready(ctx, d.model); err != nil {
		return fmt.Errorf("tfserving: detector: %v: %w", err, domain.ErrDetectionModel)
	}
	return nil
}

func rgbInstance(img *image.RGBA) [][][3]uint8 {
	b := img.Bounds()
	rows := make([][][3]uint8, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := make([][3]uint8, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			o := y*img.Stride + x*4
			row[x] = [3]uint8{img.Pix[o], img.Pix[o+1], img.Pix[o+2]}
		}
		rows[y] = row
	}
	return rows
}
