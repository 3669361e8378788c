package regions

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/salient-regions/internal/geometry"
	"github.com/ironsheep/salient-regions/internal/imaging"
)

const entropyBins = 257

// binWeights is a Gaussian over the histogram bins centred on the middle
// bin, with the sigma OpenCV derives for a kernel of that size.
var binWeights = func() []float64 {
	sigma := 0.3*((entropyBins-1)*0.5-1) + 0.8
	center := float64(entropyBins-1) / 2
	w := make([]float64, entropyBins)
	for i := range w {
		d := float64(i) - center
		w[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(w), w)
	return w
}()

// SpatialEntropy is the Gaussian-weighted entropy of the gradient magnitude
// histogram of gray inside r. Pixels inside mask are left out of the
// histogram, which lets callers measure an annulus.
//
// An empty patch or a patch without gradient has entropy 0.
func SpatialEntropy(gray *imaging.Plane, r, mask image.Rectangle) float64 {
	r = r.Intersect(gray.Bounds())
	if r.Empty() {
		return 0
	}

	mag := gray.SubPlane(r).Blur3().ScharrMagnitude()
	mask = mask.Sub(r.Min)
	vals := make([]float64, 0, len(mag.Pix))
	for y := 0; y < mag.Height; y++ {
		for x := 0; x < mag.Width; x++ {
			if !image.Pt(x, y).In(mask) {
				vals = append(vals, mag.At(x, y))
			}
		}
	}
	if len(vals) == 0 {
		return 0
	}

	lo, hi := floats.Min(vals), floats.Max(vals)
	hist := make([]float64, entropyBins)
	for _, v := range vals {
		bin := 0
		if hi > lo {
			bin = int(math.Round((v - lo) / (hi - lo) * 255))
		}
		hist[bin]++
	}
	floats.Scale(1/float64(len(vals)), hist)

	var e float64
	for i, p := range hist {
		if p == 0 {
			continue
		}
		e -= binWeights[i] * p * math.Log(p)
	}
	return math.Abs(e)
}

// texture holds the spatial entropies measured around a box: the box itself,
// the box shrunk and grown by a quarter of its size per side, and the ring
// between the grown box and the box.
type texture struct {
	Inner, Box, Outer, Around float64
}

func measureTexture(gray *imaging.Plane, box image.Rectangle) texture {
	dx, dy := box.Dx()/4, box.Dy()/4
	outer := geometry.Clamp(geometry.Grow(box, dx, dy), gray.Bounds())
	inner := geometry.Grow(box, -dx, -dy)
	if inner.Empty() {
		inner = box
	}

	return texture{
		Inner:  SpatialEntropy(gray, inner, image.Rectangle{}),
		Box:    SpatialEntropy(gray, box, image.Rectangle{}),
		Outer:  SpatialEntropy(gray, outer, image.Rectangle{}),
		Around: SpatialEntropy(gray, outer, box),
	}
}

// ratios returns inner/box, box/outer and inner/outer. The ring entropy is
// reported for logging only.
func (t texture) ratios() (a, b, c float64) {
	return safeRatio(t.Inner, t.Box), safeRatio(t.Box, t.Outer), safeRatio(t.Inner, t.Outer)
}

// entropyRatios compares the texture of box with its inner and outer boxes.
func entropyRatios(gray *imaging.Plane, box image.Rectangle) (a, b, c float64) {
	return measureTexture(gray, box).ratios()
}

// maxRatio caps a ratio whose denominator is zero.
const maxRatio = 10

func safeRatio(num, den float64) float64 {
	switch {
	case num == 0 && den == 0:
		return 1
	case den == 0:
		return maxRatio
	}
	return math.Min(num/den, maxRatio)
}

// disagreement sums the pairwise differences of the three entropy ratios.
func disagreement(a, b, c float64) float64 {
	return math.Abs(a-b) + math.Abs(a-c) + math.Abs(b-c)
}
