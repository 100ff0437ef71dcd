package decoder

import (
	"image/color"
	"testing"

	"github.com/nfnt/resize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imgcache/testutil"
)

func TestSampleSize(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, reqW, reqH int
		want                   int
	}{
		{"SmallerThanTarget", 100, 100, 200, 200, 1},
		{"Equal", 200, 200, 200, 200, 1},
		{"Half", 400, 400, 200, 200, 2},
		{"RoundsRatio", 500, 500, 200, 200, 3},
		{"UsesSmallerRatio", 800, 200, 200, 200, 2},
		{"GrowsForPixelBudget", 1000, 1000, 100, 100, 10},
		{"NoTarget", 1000, 1000, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SampleSize(tt.srcW, tt.srcH, tt.reqW, tt.reqH))
		})
	}
}

func TestDecode(t *testing.T) {
	d := New()

	t.Run("FullSize", func(t *testing.T) {
		img, err := d.Decode(testutil.SolidPNG(64, 32, color.White), 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 64, img.Bounds().Dx())
		assert.Equal(t, 32, img.Bounds().Dy())
	})

	t.Run("DownSampled", func(t *testing.T) {
		img, err := d.Decode(testutil.SolidPNG(400, 400, color.Black), 200, 200)
		require.NoError(t, err)
		assert.Equal(t, 200, img.Bounds().Dx())
		assert.Equal(t, 200, img.Bounds().Dy())
	})

	t.Run("JPEG", func(t *testing.T) {
		data := testutil.JPEG(testutil.NewRNG(1).Image(40, 40))
		img, err := d.Decode(data, 10, 10)
		require.NoError(t, err)
		assert.Equal(t, 10, img.Bounds().Dx())
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := d.Decode(nil, 0, 0)
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := d.Decode([]byte("not an image"), 0, 0)
		assert.Error(t, err)
	})

	t.Run("TooLarge", func(t *testing.T) {
		small := New(WithMaxPixels(100), WithInterpolation(resize.NearestNeighbor))
		_, err := small.Decode(testutil.SolidPNG(20, 20, color.White), 0, 0)
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}
