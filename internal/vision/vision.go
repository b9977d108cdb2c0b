// Package vision decodes score images and cuts them into classifier-sized glyph tiles.
package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

// Fixed model input sizes.
const (
	DetectorInputSize = 320
	TileSize          = 128
)

// Decode parses an uploaded image. Any failure wraps domain.ErrInputDecode.
func Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vision: decode image: %v: %w", err, domain.ErrInputDecode)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("vision: %s image has no pixels: %w", format, domain.ErrInputDecode)
	}
	return img, nil
}

// Fit scales img to exactly w x h RGBA pixels, ignoring aspect ratio.
func Fit(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Crop cuts one grayscale tile per box, size x size pixels, in reading order.
// boxes is sorted in place with domain.SortBoxes. Zero boxes yields an empty slice.
func Crop(img image.Image, boxes []domain.GlyphBox, size int) []*image.Gray {
	domain.SortBoxes(boxes)
	tiles := make([]*image.Gray, 0, len(boxes))
	for _, b := range boxes {
		sr := pixelRect(img.Bounds(), b.Clamp())
		tile := image.NewGray(image.Rect(0, 0, size, size))
		draw.BiLinear.Scale(tile, tile.Bounds(), img, sr, draw.Src, nil)
		tiles = append(tiles, tile)
	}
	return tiles
}

// pixelRect maps a normalized box onto bounds, keeping at least one pixel.
func pixelRect(bounds image.Rectangle, b domain.GlyphBox) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	x1, x2 := span(b.XMin, b.XMax, w)
	y1, y2 := span(b.YMin, b.YMax, h)
	return image.Rect(x1, y1, x2, y2).Add(bounds.Min)
}

func span(lo, hi float64, extent int) (int, int) {
	a, b := int(lo*float64(extent)), int(hi*float64(extent))
	if a >= extent {
		a = extent - 1
	}
	if b <= a {
		b = a + 1
	}
	if b > extent {
		b = extent
	}
	return a, b
}
