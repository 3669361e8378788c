// Package saliency computes and queries per-pixel visual saliency maps.
//
// A Map holds one intensity per pixel in the range 0-255 plus integral
// images so that the sum over any box costs four lookups. Two producers are
// provided: a frequency-tuned method working in CIE-Lab ("fine") and the
// spectral residual method ("spectral").
package saliency

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/salient-regions/internal/imaging"
)

// Map is a read-only saliency map.
type Map struct {
	width    int
	height   int
	pix      []float64
	integral []float64 // (width+1) x (height+1), zero first row and column
}

// NewMap wraps the values of p. p must not be modified afterwards.
func NewMap(p *imaging.Plane) *Map {
	m := &Map{width: p.Width, height: p.Height, pix: p.Pix}
	m.buildIntegral()
	return m
}

// FromGray builds a map from an 8-bit image.
func FromGray(g *image.Gray) *Map {
	return NewMap(imaging.PlaneFromGray(g))
}

func (m *Map) buildIntegral() {
	stride := m.width + 1
	m.integral = make([]float64, stride*(m.height+1))
	for y := 0; y < m.height; y++ {
		var row float64
		for x := 0; x < m.width; x++ {
			row += m.pix[y*m.width+x]
			m.integral[(y+1)*stride+x+1] = m.integral[y*stride+x+1] + row
		}
	}
}

// Width returns the map width.
func (m *Map) Width() int { return m.width }

// Height returns the map height.
func (m *Map) Height() int { return m.height }

// Bounds returns the map rectangle anchored at the origin.
func (m *Map) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// At returns the saliency of pixel (x, y).
func (m *Map) At(x, y int) float64 {
	return m.pix[y*m.width+x]
}

// Sum returns the total saliency inside r.
//
// Sum panics if r is not inside the map: callers clamp boxes first.
func (m *Map) Sum(r image.Rectangle) float64 {
	m.mustContain(r)
	if r.Empty() {
		return 0
	}
	stride := m.width + 1
	return m.integral[r.Max.Y*stride+r.Max.X] -
		m.integral[r.Min.Y*stride+r.Max.X] -
		m.integral[r.Max.Y*stride+r.Min.X] +
		m.integral[r.Min.Y*stride+r.Min.X]
}

// MeanStd returns the population mean and standard deviation inside r by a
// direct scan of its pixels.
//
// MeanStd panics if r is empty or not inside the map.
func (m *Map) MeanStd(r image.Rectangle) (mean, std float64) {
	m.mustContain(r)
	if r.Empty() {
		panic(fmt.Sprintf("saliency: statistics of empty box %v", r))
	}
	values := make([]float64, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		values = append(values, m.pix[y*m.width+r.Min.X:y*m.width+r.Max.X]...)
	}
	return stat.PopMeanStdDev(values, nil)
}

// GlobalMeanStd returns the mean and standard deviation of the whole map.
func (m *Map) GlobalMeanStd() (mean, std float64) {
	if len(m.pix) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(m.pix, nil)
}

// Equalize returns a histogram-equalised copy of the map.
func (m *Map) Equalize() *Map {
	var hist [256]int
	for _, v := range m.pix {
		hist[level(v)]++
	}

	var cdf [256]int
	total := 0
	for i, c := range hist {
		total += c
		cdf[i] = total
	}

	cdfMin := 0
	for _, c := range cdf {
		if c > 0 {
			cdfMin = c
			break
		}
	}

	out := imaging.NewPlane(m.width, m.height)
	denom := float64(total - cdfMin)
	for i, v := range m.pix {
		if denom <= 0 {
			out.Pix[i] = v
			continue
		}
		out.Pix[i] = math.Round(float64(cdf[level(v)]-cdfMin) / denom * 255)
	}
	return NewMap(out)
}

// ToGray renders the map as an 8-bit image.
func (m *Map) ToGray() *image.Gray {
	return (&imaging.Plane{Width: m.width, Height: m.height, Pix: m.pix}).ToGray()
}

func (m *Map) mustContain(r image.Rectangle) {
	if !r.Empty() && !r.In(m.Bounds()) {
		panic(fmt.Sprintf("saliency: box %v outside map %v", r, m.Bounds()))
	}
}

func level(v float64) int {
	l := int(math.Round(v))
	if l < 0 {
		return 0
	}
	if l > 255 {
		return 255
	}
	return l
}
