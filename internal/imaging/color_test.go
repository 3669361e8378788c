package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDominantColors(t *testing.T) {
	// Left three quarters red, right quarter near-white
	img := image.NewRGBA(image.Rect(0, 0, 40, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{255, 0, 0, 255}
			if x >= 30 {
				c = color.RGBA{250, 250, 250, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	colors, err := DominantColors(img, img.Bounds(), 5)
	require.NoError(t, err)
	require.Len(t, colors, 2)

	assert.Equal(t, "#f00000", colors[0].Hex)
	assert.InDelta(t, 75.0, colors[0].Percentage, 1e-9)
	assert.Equal(t, 0, colors[0].Hue)
	assert.Equal(t, 100, colors[0].Saturation)

	assert.Equal(t, "#f0f0f0", colors[1].Hex, "quantised to the 16-step bucket")
	assert.InDelta(t, 25.0, colors[1].Percentage, 1e-9)
	assert.Equal(t, 0, colors[1].Saturation)

	top, err := DominantColors(img, img.Bounds(), 1)
	require.NoError(t, err)
	assert.Equal(t, colors[:1], top)

	sub, err := DominantColors(img, image.Rect(30, 0, 40, 10), 3)
	require.NoError(t, err)
	require.Len(t, sub, 1)
	assert.InDelta(t, 100.0, sub[0].Percentage, 1e-9)
}

func TestDominantColors_TieOrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 0, 0, 255})

	colors, err := DominantColors(img, img.Bounds(), 2)
	require.NoError(t, err)
	require.Len(t, colors, 2)
	assert.Equal(t, "#000000", colors[0].Hex)
	assert.Equal(t, "#0000f0", colors[1].Hex)
}

func TestDominantColors_Invalid(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))

	_, err := DominantColors(img, image.Rect(5, 5, 15, 15), 3)
	assert.Error(t, err)

	_, err = DominantColors(img, image.Rect(5, 5, 5, 8), 3)
	assert.Error(t, err)

	_, err = DominantColors(img, img.Bounds(), 0)
	assert.Error(t, err)
}
