package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
)

// Plane is a single-channel float image stored row-major.
//
// Planes carry intermediate values (grayscale intensity, gradient magnitude,
// saliency) that do not fit an 8-bit image without loss.
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// NewPlane allocates a zeroed width x height plane.
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// At returns the value at (x, y).
func (p *Plane) At(x, y int) float64 {
	return p.Pix[y*p.Width+x]
}

// Set stores v at (x, y).
func (p *Plane) Set(x, y int, v float64) {
	p.Pix[y*p.Width+x] = v
}

// Bounds returns the plane rectangle anchored at the origin.
func (p *Plane) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}

// GrayPlane converts img to luminance in the range 0-255.
func GrayPlane(img image.Image) *Plane {
	gray := effect.Grayscale(img)
	b := gray.Bounds()
	p := NewPlane(b.Dx(), b.Dy())
	for y := 0; y < p.Height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+p.Width]
		for x, v := range row {
			p.Pix[y*p.Width+x] = float64(v)
		}
	}
	return p
}

// SubPlane copies the part of p inside r. r is clamped to the plane.
func (p *Plane) SubPlane(r image.Rectangle) *Plane {
	r = r.Intersect(p.Bounds())
	out := NewPlane(r.Dx(), r.Dy())
	for y := 0; y < out.Height; y++ {
		copy(out.Pix[y*out.Width:(y+1)*out.Width], p.Pix[(y+r.Min.Y)*p.Width+r.Min.X:])
	}
	return out
}

// Fill sets every pixel inside r to v.
func (p *Plane) Fill(r image.Rectangle, v float64) {
	r = r.Intersect(p.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			p.Pix[y*p.Width+x] = v
		}
	}
}

// Blur5 applies a 5x5 Gaussian blur (sigma about 1.4) with replicated borders.
//
//	1  4  7  4  1
//	4 16 26 16  4
//	7 26 41 26  7
//	4 16 26 16  4
//	1  4  7  4  1
func (p *Plane) Blur5() *Plane {
	kernel := [5][5]float64{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}
	const kernelSum = 273.0

	out := NewPlane(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			var sum float64
			for ky := -2; ky <= 2; ky++ {
				py := clamp(y+ky, 0, p.Height-1)
				for kx := -2; kx <= 2; kx++ {
					px := clamp(x+kx, 0, p.Width-1)
					sum += p.Pix[py*p.Width+px] * kernel[ky+2][kx+2]
				}
			}
			out.Pix[y*p.Width+x] = sum / kernelSum
		}
	}
	return out
}

// Blur3 applies a 3x3 Gaussian blur (1-2-1 separable) with replicated borders.
func (p *Plane) Blur3() *Plane {
	kernel := [3]float64{1, 2, 1}
	out := NewPlane(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			var sum float64
			for ky := -1; ky <= 1; ky++ {
				py := clamp(y+ky, 0, p.Height-1)
				for kx := -1; kx <= 1; kx++ {
					px := clamp(x+kx, 0, p.Width-1)
					sum += p.Pix[py*p.Width+px] * kernel[ky+1] * kernel[kx+1]
				}
			}
			out.Pix[y*p.Width+x] = sum / 16
		}
	}
	return out
}

// ScharrMagnitude returns sqrt(Gx² + Gy²) using the 3x3 Scharr operators.
func (p *Plane) ScharrMagnitude() *Plane {
	scharrX := [3][3]float64{
		{-3, 0, 3},
		{-10, 0, 10},
		{-3, 0, 3},
	}
	scharrY := [3][3]float64{
		{-3, -10, -3},
		{0, 0, 0},
		{3, 10, 3},
	}

	out := NewPlane(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				py := clamp(y+ky, 0, p.Height-1)
				for kx := -1; kx <= 1; kx++ {
					px := clamp(x+kx, 0, p.Width-1)
					v := p.Pix[py*p.Width+px]
					gx += v * scharrX[ky+1][kx+1]
					gy += v * scharrY[ky+1][kx+1]
				}
			}
			out.Pix[y*p.Width+x] = math.Sqrt(gx*gx + gy*gy)
		}
	}
	return out
}

// Normalize linearly maps the plane's [min, max] onto [lo, hi] in place.
// A constant plane is set to lo.
func (p *Plane) Normalize(lo, hi float64) {
	if len(p.Pix) == 0 {
		return
	}
	minV, maxV := p.Pix[0], p.Pix[0]
	for _, v := range p.Pix {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	span := maxV - minV
	for i, v := range p.Pix {
		if span == 0 {
			p.Pix[i] = lo
			continue
		}
		p.Pix[i] = lo + (v-minV)/span*(hi-lo)
	}
}

// ToGray converts the plane to an 8-bit image, rounding and clamping to 0-255.
func (p *Plane) ToGray() *image.Gray {
	g := image.NewGray(p.Bounds())
	for i, v := range p.Pix {
		g.Pix[i] = uint8(clamp(int(math.Round(v)), 0, 255))
	}
	return g
}

// PlaneFromGray copies an 8-bit image into a plane.
func PlaneFromGray(g *image.Gray) *Plane {
	b := g.Bounds()
	p := NewPlane(b.Dx(), b.Dy())
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			p.Pix[y*p.Width+x] = float64(g.GrayAt(x+b.Min.X, y+b.Min.Y).Y)
		}
	}
	return p
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
