package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDomain(t *testing.T) {
	for _, d := range AllDomains {
		got, err := ParseDomain(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	got, err := ParseDomain("  LAB ")
	require.NoError(t, err)
	assert.Equal(t, DomainLab, got)

	_, err = ParseDomain("cmyk")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Domain(42).String())
}

func TestConvertPixel(t *testing.T) {
	tests := []struct {
		name    string
		domain  Domain
		r, g, b uint8
		want    [3]uint8
	}{
		{"bgr swaps channels", DomainBGR, 10, 20, 30, [3]uint8{30, 20, 10}},
		{"hsv pure red", DomainHSV, 255, 0, 0, [3]uint8{0, 255, 255}},
		{"hsv pure blue", DomainHSV, 0, 0, 255, [3]uint8{120, 255, 255}},
		{"lab white", DomainLab, 255, 255, 255, [3]uint8{255, 128, 128}},
		{"lab black", DomainLab, 0, 0, 0, [3]uint8{0, 128, 128}},
		{"intensity gray", DomainIntensity, 100, 100, 100, [3]uint8{100, 100, 100}},
		{"rgi", DomainRGI, 200, 100, 0, [3]uint8{200, 100, 118}},
		{"ycrcb gray", DomainYCrCb, 128, 128, 128, [3]uint8{128, 128, 128}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c0, c1, c2 := convertPixel(tt.domain, tt.r, tt.g, tt.b)
			got := [3]uint8{c0, c1, c2}
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1, "channel %d", i)
			}
		})
	}
}

func TestConvertDomains(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 25, 15))
	for y := 5; y < 15; y++ {
		for x := 5; x < 25; x++ {
			src.Set(x, y, color.RGBA{200, 50, 25, 255})
		}
	}

	images := ConvertDomains(src, AllDomains)
	require.Len(t, images, len(AllDomains))
	for i, di := range images {
		assert.Equal(t, AllDomains[i], di.Domain)
		assert.Equal(t, image.Rect(0, 0, 20, 10), di.Img.Bounds())
		if di.Domain == DomainIntensity {
			assert.Equal(t, 1, di.Channels)
		} else {
			assert.Equal(t, 3, di.Channels)
		}
	}
}
