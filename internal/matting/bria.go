package matting

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// MaskPredictor runs a matting network on a square RGB input.
type MaskPredictor interface {
	// InputSize is the edge length of the square the network expects.
	InputSize() int
	// Predict returns InputSize×InputSize raw matte scores in row-major order.
	Predict(ctx context.Context, input *image.RGBA) ([]float32, error)
	Close() error
}

// BriaSegmenter letterboxes each image into the predictor's square input,
// scales the predicted matte back to the original size and uses it as alpha.
type BriaSegmenter struct {
	predictor MaskPredictor
}

// NewBriaSegmenter wraps predictor.
func NewBriaSegmenter(predictor MaskPredictor) *BriaSegmenter {
	return &BriaSegmenter{predictor: predictor}
}

// Segment implements Segmenter.
func (b *BriaSegmenter) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	if b.predictor == nil {
		return nil, errors.New("bria segmenter: no predictor")
	}
	size := b.predictor.InputSize()
	if size <= 0 {
		return nil, fmt.Errorf("bria segmenter: invalid input size %d", size)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.New("bria segmenter: empty image")
	}

	canvas, content := Letterbox(img, size)
	scores, err := b.predictor.Predict(ctx, canvas)
	if err != nil {
		return nil, fmt.Errorf("predict matte: %w", err)
	}
	if len(scores) != size*size {
		return nil, fmt.Errorf("predict matte: got %d values, want %d", len(scores), size*size)
	}

	matte := NormalizeMatte(scores, size, size)
	crop := matte.SubImage(content)
	alpha := image.NewAlpha(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.BiLinear.Scale(alpha, alpha.Bounds(), crop, content, draw.Src, nil)
	return Compose(img, alpha), nil
}

// Letterbox scales img to fit inside a size×size black canvas preserving its
// aspect ratio and centres it. It returns the canvas and the rectangle the
// image occupies within it.
func Letterbox(img image.Image, size int) (*image.RGBA, image.Rectangle) {
	bounds := img.Bounds()
	ratio := math.Min(float64(size)/float64(bounds.Dx()), float64(size)/float64(bounds.Dy()))
	w := max(int(float64(bounds.Dx())*ratio), 1)
	h := max(int(float64(bounds.Dy())*ratio), 1)
	x0 := (size - w) / 2
	y0 := (size - h) / 2
	content := image.Rect(x0, y0, x0+w, y0+h)

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.BiLinear.Scale(canvas, content, img, bounds, draw.Src, nil)
	return canvas, content
}

// NormalizeMatte min-max scales raw scores into an 8-bit matte. A constant
// prediction carries no separation and yields a fully opaque matte.
func NormalizeMatte(scores []float32, w, h int) *image.Alpha {
	matte := image.NewAlpha(image.Rect(0, 0, w, h))
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range scores {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	for i, v := range scores {
		if span <= 0 || math.IsNaN(float64(span)) {
			matte.Pix[i] = 0xff
			continue
		}
		matte.Pix[i] = uint8(math.Round(float64((v - lo) / span * 255)))
	}
	return matte
}

// Compose pastes img onto a transparent canvas through alpha. alpha must have
// the same dimensions as img.
func Compose(img image.Image, alpha *image.Alpha) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.DrawMask(out, out.Bounds(), img, bounds.Min, alpha, image.Point{}, draw.Src)
	return out
}
