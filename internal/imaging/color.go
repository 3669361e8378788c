package imaging

import (
	"cmp"
	"image"
	"slices"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// ColorFrequency is one quantised colour of a region and its share of the
// region's pixels.
type ColorFrequency struct {
	Hex        string  `json:"hex"`        // Quantised colour "#RRGGBB"
	Percentage float64 `json:"percentage"` // Share of pixels, 0-100
	Hue        int     `json:"hue"`        // HSL hue, 0-360
	Saturation int     `json:"saturation"` // HSL saturation, 0-100
	Lightness  int     `json:"lightness"`  // HSL lightness, 0-100
}

// quantStep groups colours whose components differ by less than 16.
const quantStep = 16

// DominantColors returns the count most common colours of img within r,
// most common first. Ties are broken by hex so the order is stable.
//
// Each component is quantised to (v / 16) * 16 before counting, so #F0F0F0
// and #FAFAFA fall into the same bucket.
func DominantColors(img image.Image, r image.Rectangle, count int) ([]ColorFrequency, error) {
	if r.Empty() || !r.In(img.Bounds()) {
		return nil, errors.Errorf("color region %v is empty or outside image bounds %v", r, img.Bounds())
	}
	if count < 1 {
		return nil, errors.Errorf("color count must be at least 1, got %d", count)
	}

	counts := make(map[uint32]int)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			key := quantize(cr)<<16 | quantize(cg)<<8 | quantize(cb)
			counts[key]++
		}
	}

	total := float64(r.Dx() * r.Dy())
	colors := make([]ColorFrequency, 0, len(counts))
	for key, n := range counts {
		c := colorful.Color{
			R: float64(key>>16&0xFF) / 255,
			G: float64(key>>8&0xFF) / 255,
			B: float64(key&0xFF) / 255,
		}
		h, s, l := c.Hsl()
		colors = append(colors, ColorFrequency{
			Hex:        c.Hex(),
			Percentage: float64(n) / total * 100,
			Hue:        int(h),
			Saturation: int(s * 100),
			Lightness:  int(l * 100),
		})
	}

	slices.SortFunc(colors, func(a, b ColorFrequency) int {
		if c := cmp.Compare(b.Percentage, a.Percentage); c != 0 {
			return c
		}
		return cmp.Compare(a.Hex, b.Hex)
	})
	if len(colors) > count {
		colors = colors[:count]
	}
	return colors, nil
}

// quantize maps a 16-bit colour component to its 8-bit bucket.
func quantize(v uint32) uint32 {
	return (v >> 8) / quantStep * quantStep
}
