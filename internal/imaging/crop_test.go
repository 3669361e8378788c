package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePreview(t *testing.T, encoded string) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestWorkingSize(t *testing.T) {
	tests := []struct {
		name   string
		size   image.Point
		height int
		want   image.Point
	}{
		{"landscape", image.Pt(400, 300), 200, image.Pt(267, 200)},
		{"portrait", image.Pt(300, 600), 200, image.Pt(100, 200)},
		{"disabled", image.Pt(300, 600), 0, image.Pt(300, 600)},
		{"very tall", image.Pt(1, 1000), 200, image.Pt(1, 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WorkingSize(tt.size, tt.height))
		})
	}
}

func TestResizeToHeight(t *testing.T) {
	img := solidImage(400, 300, color.RGBA{10, 20, 30, 255})

	resized := ResizeToHeight(img, 200)
	assert.Equal(t, WorkingSize(img.Bounds().Size(), 200), resized.Bounds().Size())
	assert.Equal(t, image.Point{}, resized.Bounds().Min)

	same := ResizeToHeight(img, 300)
	assert.Equal(t, img.Bounds(), same.Bounds())
}

func TestCrop(t *testing.T) {
	img := blockImage(100, 100, image.Rect(0, 0, 50, 50), color.RGBA{255, 0, 0, 255})

	result, err := Crop(img, image.Rect(0, 0, 50, 50), 1.0)
	require.NoError(t, err)
	assert.Equal(t, 50, result.Width)
	assert.Equal(t, 50, result.Height)
	assert.Equal(t, "image/png", result.MimeType)

	r, g, b, _ := decodePreview(t, result.ImageBase64).At(25, 25).RGBA()
	assert.Equal(t, []uint32{255, 0, 0}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestCrop_WithScale(t *testing.T) {
	img := solidImage(100, 100, color.White)

	up, err := Crop(img, image.Rect(0, 0, 50, 50), 2.0)
	require.NoError(t, err)
	assert.Equal(t, 100, up.Width)

	down, err := Crop(img, image.Rect(0, 0, 100, 100), 0.5)
	require.NoError(t, err)
	assert.Equal(t, 50, down.Height)
}

func TestCrop_Invalid(t *testing.T) {
	img := solidImage(100, 100, color.White)

	_, err := Crop(img, image.Rect(50, 50, 150, 150), 1.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside image bounds")

	_, err = Crop(img, image.Rect(10, 10, 10, 20), 1.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid crop region")
}
