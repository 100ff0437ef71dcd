package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	// Registered formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// DefaultMaxPixels rejects images larger than 64 megapixels.
const DefaultMaxPixels = 64 << 20

var (
	// ErrEmpty is returned for empty input.
	ErrEmpty = errors.New("decoder: empty input")
	// ErrTooLarge is returned when the encoded dimensions exceed the pixel limit.
	ErrTooLarge = errors.New("decoder: image too large")
)

// Option configures an ImageDecoder.
type Option func(*ImageDecoder)

// WithInterpolation sets the filter used when down-sampling.
func WithInterpolation(fn resize.InterpolationFunction) Option {
	return func(d *ImageDecoder) {
		d.interp = fn
	}
}

// WithMaxPixels sets the largest accepted width*height. Zero disables the check.
func WithMaxPixels(n int64) Option {
	return func(d *ImageDecoder) {
		d.maxPixels = n
	}
}

// ImageDecoder decodes PNG, JPEG and GIF data and down-samples it by an
// integer factor so that it still covers the requested size.
type ImageDecoder struct {
	interp    resize.InterpolationFunction
	maxPixels int64
}

// New creates a decoder.
func New(optFns ...Option) *ImageDecoder {
	d := &ImageDecoder{
		interp:    resize.Bilinear,
		maxPixels: DefaultMaxPixels,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(d)
		}
	}
	return d
}

// Decode decodes data. With a positive width and height the result is
// shrunk by SampleSize; otherwise it keeps its encoded size.
func (d *ImageDecoder) Decode(data []byte, width, height int) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	if d.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > d.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	if width <= 0 || height <= 0 {
		return img, nil
	}

	sample := SampleSize(cfg.Width, cfg.Height, width, height)
	if sample <= 1 {
		return img, nil
	}
	return resize.Resize(uint(cfg.Width/sample), uint(cfg.Height/sample), img, d.interp), nil
}

// SampleSize returns the integer factor to shrink a srcW x srcH image by
// for a reqW x reqH target. It starts from the smaller of the rounded
// width and height ratios and grows while the result still has more than
// twice the requested pixels.
func SampleSize(srcW, srcH, reqW, reqH int) int {
	if reqW <= 0 || reqH <= 0 || (srcW <= reqW && srcH <= reqH) {
		return 1
	}
	hRatio := int(math.Round(float64(srcH) / float64(reqH)))
	wRatio := int(math.Round(float64(srcW) / float64(reqW)))
	sample := min(hRatio, wRatio)
	if sample < 1 {
		sample = 1
	}

	total := float64(srcW) * float64(srcH)
	limit := float64(reqW) * float64(reqH) * 2
	for total/float64(sample*sample) > limit {
		sample++
	}
	return sample
}
