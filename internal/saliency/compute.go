package saliency

import (
	"image"
	"math"
	"math/cmplx"
	"strings"

	"github.com/anthonynsimon/bild/blur"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/ironsheep/salient-regions/internal/imaging"
)

// Method selects how a saliency map is computed.
type Method string

const (
	// MethodFine is frequency-tuned saliency: distance of each blurred pixel
	// from the mean image colour in CIE-Lab.
	MethodFine Method = "fine"

	// MethodSpectral is spectral residual saliency on a downscaled
	// grayscale copy, rescaled to the image size.
	MethodSpectral Method = "spectral"
)

// spectralWidth is the working width of the spectral residual method.
const spectralWidth = 64

// ParseMethod maps a case-insensitive method name to a Method.
func ParseMethod(name string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(name))) {
	case MethodFine:
		return MethodFine, nil
	case MethodSpectral:
		return MethodSpectral, nil
	}
	return "", errors.Errorf("unknown saliency method %q", name)
}

// Compute builds the saliency map of img with the given method.
func Compute(img image.Image, method Method) (*Map, error) {
	if img.Bounds().Empty() {
		return nil, errors.New("failed to compute saliency: empty image")
	}
	switch method {
	case MethodFine:
		return FrequencyTuned(img), nil
	case MethodSpectral:
		return SpectralResidual(img), nil
	}
	return nil, errors.Errorf("unknown saliency method %q", method)
}

// FrequencyTuned computes |mean(Lab) - blurred Lab(x, y)| per pixel and
// normalises the result to 0-255.
func FrequencyTuned(img image.Image) *Map {
	blurred := blur.Gaussian(img, 1.0)
	b := blurred.Bounds()
	w, h := b.Dx(), b.Dy()

	labs := make([][3]float64, w*h)
	var mean [3]float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := blurred.PixOffset(x+b.Min.X, y+b.Min.Y)
			c := colorful.Color{
				R: float64(blurred.Pix[i]) / 255,
				G: float64(blurred.Pix[i+1]) / 255,
				B: float64(blurred.Pix[i+2]) / 255,
			}
			l, a, bb := c.Lab()
			labs[y*w+x] = [3]float64{l, a, bb}
			mean[0] += l
			mean[1] += a
			mean[2] += bb
		}
	}
	n := float64(w * h)
	for i := range mean {
		mean[i] /= n
	}

	out := imaging.NewPlane(w, h)
	for i, lab := range labs {
		dl, da, db := lab[0]-mean[0], lab[1]-mean[1], lab[2]-mean[2]
		out.Pix[i] = math.Sqrt(dl*dl + da*da + db*db)
	}
	out.Normalize(0, 255)
	return NewMap(out)
}

// SpectralResidual computes the spectral residual saliency of img.
//
// The grayscale image is reduced to spectralWidth columns. The log
// amplitude spectrum minus its 3x3 local mean is recombined with the
// original phase, transformed back, squared, smoothed and normalised.
func SpectralResidual(img image.Image) *Map {
	b := img.Bounds()
	sw := min(spectralWidth, b.Dx())
	sh := max(1, int(float64(b.Dy())*float64(sw)/float64(b.Dx())+0.5))

	gray := imaging.GrayPlane(img).ToGray()
	reduced := image.NewGray(image.Rect(0, 0, sw, sh))
	draw.BiLinear.Scale(reduced, reduced.Bounds(), gray, gray.Bounds(), draw.Src, nil)
	plane := imaging.PlaneFromGray(reduced)

	spectrum := make([]complex128, sw*sh)
	for i, v := range plane.Pix {
		spectrum[i] = complex(v, 0)
	}
	fft2(spectrum, sw, sh, false)

	logAmp := imaging.NewPlane(sw, sh)
	for i, c := range spectrum {
		logAmp.Pix[i] = math.Log(cmplx.Abs(c) + 1e-9)
	}
	avg := boxMean3(logAmp)
	for i, c := range spectrum {
		residual := logAmp.Pix[i] - avg.Pix[i]
		spectrum[i] = cmplx.Rect(math.Exp(residual), cmplx.Phase(c))
	}
	fft2(spectrum, sw, sh, true)

	sal := imaging.NewPlane(sw, sh)
	for i, c := range spectrum {
		a := cmplx.Abs(c)
		sal.Pix[i] = a * a
	}
	sal = sal.Blur5()
	sal.Normalize(0, 255)

	full := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	reducedSal := sal.ToGray()
	draw.BiLinear.Scale(full, full.Bounds(), reducedSal, reducedSal.Bounds(), draw.Src, nil)
	return FromGray(full)
}

// fft2 transforms data (w x h, row-major) in place. The inverse is scaled by
// 1/(w*h).
func fft2(data []complex128, w, h int, inverse bool) {
	rowFFT := fourier.NewCmplxFFT(w)
	row := make([]complex128, w)
	for y := 0; y < h; y++ {
		copy(row, data[y*w:(y+1)*w])
		if inverse {
			rowFFT.Sequence(data[y*w:(y+1)*w], row)
		} else {
			rowFFT.Coefficients(data[y*w:(y+1)*w], row)
		}
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	out := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = data[y*w+x]
		}
		if inverse {
			colFFT.Sequence(out, col)
		} else {
			colFFT.Coefficients(out, col)
		}
		for y := 0; y < h; y++ {
			data[y*w+x] = out[y]
		}
	}

	if inverse {
		scale := complex(1/float64(w*h), 0)
		for i := range data {
			data[i] *= scale
		}
	}
}

// boxMean3 returns the 3x3 mean of p with replicated borders.
func boxMean3(p *imaging.Plane) *imaging.Plane {
	out := imaging.NewPlane(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			var sum float64
			for dy := -1; dy <= 1; dy++ {
				yy := min(max(y+dy, 0), p.Height-1)
				for dx := -1; dx <= 1; dx++ {
					xx := min(max(x+dx, 0), p.Width-1)
					sum += p.At(xx, yy)
				}
			}
			out.Set(x, y, sum/9)
		}
	}
	return out
}
