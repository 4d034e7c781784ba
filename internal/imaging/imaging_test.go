package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestDownscale(t *testing.T) {
	tests := []struct {
		name             string
		width, height    int
		maxWidth         int
		expectW, expectH int
	}{
		{"wide image is scaled", 1600, 900, 800, 800, 450},
		{"rounds height", 1000, 333, 800, 800, 266},
		{"narrow image keeps size", 400, 300, 800, 400, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Downscale(makePNG(t, tt.width, tt.height), tt.maxWidth, 80)
			w, h := dims(t, out)
			assert.Equal(t, tt.expectW, w)
			assert.Equal(t, tt.expectH, h)
		})
	}
}

func TestDownscaleUndecodable(t *testing.T) {
	in := []byte("not an image")
	assert.Equal(t, in, Downscale(in, 800, 80))
	assert.Empty(t, Downscale(nil, 800, 80))
}

func TestDownscaleDataURL(t *testing.T) {
	in := []byte(DataURL(makePNG(t, 1200, 600)))
	w, h := dims(t, Downscale(in, 800, 80))
	assert.Equal(t, 800, w)
	assert.Equal(t, 400, h)
}

func TestCrop(t *testing.T) {
	src := makePNG(t, 200, 100)

	t.Run("default crop", func(t *testing.T) {
		out, err := Crop(src, DefaultCrop)
		require.NoError(t, err)
		w, h := dims(t, out)
		assert.Equal(t, 160, w)
		assert.Equal(t, 50, h)
	})

	t.Run("zero rect keeps whole image", func(t *testing.T) {
		out, err := Crop(src, Rect{})
		require.NoError(t, err)
		w, h := dims(t, out)
		assert.Equal(t, 200, w)
		assert.Equal(t, 100, h)
	})

	t.Run("clamped to bounds", func(t *testing.T) {
		out, err := Crop(src, Rect{X: 50, Y: 50, Width: 100, Height: 100})
		require.NoError(t, err)
		w, h := dims(t, out)
		assert.Equal(t, 100, w)
		assert.Equal(t, 50, h)
	})

	t.Run("no area", func(t *testing.T) {
		_, err := Crop(src, Rect{X: 10, Y: 10, Width: -5, Height: 20})
		assert.ErrorIs(t, err, ErrInvalidRect)
	})
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(nil))
	assert.True(t, IsBlank(makePNG(t, 1, 1)))
	assert.True(t, IsBlank([]byte(DataURL(makePNG(t, 1, 1)))))
	assert.False(t, IsBlank(makePNG(t, 10, 10)))
}

func TestDecodeDataURL(t *testing.T) {
	raw := makePNG(t, 3, 3)
	got, err := DecodeDataURL(DataURL(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = DecodeDataURL("data:image/png;base64")
	assert.Error(t, err)
}
