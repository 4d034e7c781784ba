package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxWidth = 800
	DefaultQuality  = 80
	CropQuality     = 95
)

// ErrInvalidRect is returned for crop rectangles with no area
var ErrInvalidRect = errors.New("invalid crop rectangle")

// DecodeDataURL strips a "data:image/...;base64," prefix and decodes the
// payload. Input without the prefix is returned as-is.
func DecodeDataURL(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return []byte(s), nil
	}
	idx := strings.Index(s, ",")
	if idx < 0 {
		return nil, fmt.Errorf("malformed data URL")
	}
	data, err := base64.StdEncoding.DecodeString(s[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return data, nil
}

// DataURL encodes JPEG bytes as a data URL
func DataURL(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode decodes jpeg, png, gif and webp images, raw or as a data URL
func Decode(data []byte) (image.Image, string, error) {
	if bytes.HasPrefix(data, []byte("data:")) {
		raw, err := DecodeDataURL(string(data))
		if err != nil {
			return nil, "", err
		}
		data = raw
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Downscale limits the image width to maxWidth, preserving the aspect ratio,
// and re-encodes it as JPEG. Input that cannot be decoded is returned unchanged.
func Downscale(data []byte, maxWidth, quality int) []byte {
	if len(data) == 0 {
		return data
	}
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 {
		quality = DefaultQuality
	}

	img, _, err := Decode(data)
	if err != nil {
		return data
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width > maxWidth {
		height = int(math.Round(float64(height) * float64(maxWidth) / float64(width)))
		width = maxWidth
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	out, err := encodeJPEG(dst, quality)
	if err != nil {
		return data
	}
	return out
}

// Rect is a crop rectangle in percent of the image dimensions
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultCrop is the initial crop selection: 80% x 50%, centered horizontally
var DefaultCrop = Rect{X: 10, Y: 25, Width: 80, Height: 50}

// IsZero reports whether no crop was selected
func (r Rect) IsZero() bool {
	return r == Rect{}
}

// Crop cuts the percent rectangle out of the image and returns it as JPEG.
// A zero rect yields the whole image.
func Crop(data []byte, r Rect) ([]byte, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if r.IsZero() {
		return encodeJPEG(img, CropQuality)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return nil, ErrInvalidRect
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	x0 := clamp(int(math.Round(r.X/100*w)), 0, b.Dx())
	y0 := clamp(int(math.Round(r.Y/100*h)), 0, b.Dy())
	x1 := clamp(int(math.Round((r.X+r.Width)/100*w)), 0, b.Dx())
	y1 := clamp(int(math.Round((r.Y+r.Height)/100*h)), 0, b.Dy())
	if x1 <= x0 || y1 <= y0 {
		return nil, ErrInvalidRect
	}

	dst := image.NewRGBA(image.Rect(0, 0, x1-x0, y1-y0))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(b.Min.X+x0, b.Min.Y+y0), draw.Src)
	return encodeJPEG(dst, CropQuality)
}

// IsBlank reports whether data is missing or a 1x1 placeholder image
func IsBlank(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	if bytes.HasPrefix(data, []byte("data:")) {
		raw, err := DecodeDataURL(string(data))
		if err != nil {
			return true
		}
		data = raw
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return cfg.Width <= 1 && cfg.Height <= 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
