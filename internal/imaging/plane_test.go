package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantPlane(w, h int, v float64) *Plane {
	p := NewPlane(w, h)
	for i := range p.Pix {
		p.Pix[i] = v
	}
	return p
}

func TestBlur_PreservesConstant(t *testing.T) {
	p := constantPlane(9, 7, 42)
	for _, blurred := range []*Plane{p.Blur5(), p.Blur3()} {
		for _, v := range blurred.Pix {
			assert.InDelta(t, 42, v, 1e-9)
		}
	}
}

func TestBlur5_SpreadsSpot(t *testing.T) {
	p := NewPlane(11, 11)
	p.Set(5, 5, 273)

	blurred := p.Blur5()
	assert.InDelta(t, 41, blurred.At(5, 5), 1e-9)
	assert.InDelta(t, 26, blurred.At(6, 5), 1e-9)
	assert.InDelta(t, 1, blurred.At(7, 7), 1e-9)
	assert.Zero(t, blurred.At(0, 0))
}

func TestScharrMagnitude(t *testing.T) {
	p := NewPlane(10, 10)
	p.Fill(image.Rect(5, 0, 10, 10), 100)

	mag := p.ScharrMagnitude()
	assert.Zero(t, mag.At(1, 5), "flat area has no gradient")
	assert.InDelta(t, 1600, mag.At(4, 5), 1e-9)
	assert.InDelta(t, 1600, mag.At(5, 5), 1e-9)
}

func TestNormalize(t *testing.T) {
	p := NewPlane(3, 1)
	copy(p.Pix, []float64{2, 4, 6})
	p.Normalize(0, 255)
	assert.Equal(t, []float64{0, 127.5, 255}, p.Pix)

	flat := constantPlane(2, 2, 7)
	flat.Normalize(0, 1)
	assert.Equal(t, []float64{0, 0, 0, 0}, flat.Pix)
}

func TestSubPlaneAndGray(t *testing.T) {
	p := NewPlane(6, 4)
	for i := range p.Pix {
		p.Pix[i] = float64(i)
	}

	sub := p.SubPlane(image.Rect(2, 1, 5, 3))
	require.Equal(t, 3, sub.Width)
	require.Equal(t, 2, sub.Height)
	assert.Equal(t, []float64{8, 9, 10, 14, 15, 16}, sub.Pix)

	clipped := p.SubPlane(image.Rect(4, 2, 10, 10))
	assert.Equal(t, 2, clipped.Width)
	assert.Equal(t, 2, clipped.Height)

	g := p.ToGray()
	back := PlaneFromGray(g)
	assert.Equal(t, p.Pix, back.Pix)
}

func TestGrayPlane(t *testing.T) {
	img := solidImage(4, 3, color.RGBA{100, 100, 100, 255})
	p := GrayPlane(img)
	require.Equal(t, 4, p.Width)
	require.Equal(t, 3, p.Height)
	for _, v := range p.Pix {
		assert.InDelta(t, 100, v, 1)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, clamp(-5, 0, 10))
	assert.Equal(t, 10, clamp(15, 0, 10))
	assert.Equal(t, 5, clamp(5, 0, 10))
}
