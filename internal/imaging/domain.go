package imaging

import (
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Domain identifies one colour representation of an image.
//
// Each domain is segmented independently; proposals that agree across
// domains are the most trustworthy.
type Domain int

const (
	DomainBGR Domain = iota
	DomainHSV
	DomainLab
	DomainIntensity
	DomainRGI
	DomainYCrCb
)

// AllDomains lists every supported domain in canonical order.
var AllDomains = []Domain{DomainBGR, DomainHSV, DomainLab, DomainIntensity, DomainRGI, DomainYCrCb}

var domainNames = map[Domain]string{
	DomainBGR:       "bgr",
	DomainHSV:       "hsv",
	DomainLab:       "lab",
	DomainIntensity: "intensity",
	DomainRGI:       "rgi",
	DomainYCrCb:     "ycrcb",
}

func (d Domain) String() string {
	if name, ok := domainNames[d]; ok {
		return name
	}
	return "unknown"
}

// ParseDomain maps a case-insensitive name such as "lab" to its Domain.
func ParseDomain(name string) (Domain, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d, n := range domainNames {
		if n == name {
			return d, nil
		}
	}
	return 0, errors.Errorf("unknown colour domain %q", name)
}

// DomainImage is an 8-bit image expressed in one colour domain.
//
// Channel values live in the R, G and B slots of Img; only the first
// Channels slots are meaningful (Intensity has one channel).
type DomainImage struct {
	Domain   Domain
	Img      *image.RGBA
	Channels int
}

// ConvertDomain converts img into domain d using the usual 8-bit encodings:
// HSV hue is halved to fit 0-180, Lab is scaled to L*255/100 with a and b
// offset by 128, YCrCb follows ITU-R BT.601.
func ConvertDomain(img image.Image, d Domain) *DomainImage {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	channels := 3
	if d == DomainIntensity {
		channels = 1
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(x+b.Min.X, y+b.Min.Y).RGBA()
			r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(bl>>8)
			c0, c1, c2 := convertPixel(d, r8, g8, b8)
			i := out.PixOffset(x, y)
			out.Pix[i+0] = c0
			out.Pix[i+1] = c1
			out.Pix[i+2] = c2
			out.Pix[i+3] = 255
		}
	}

	return &DomainImage{Domain: d, Img: out, Channels: channels}
}

// ConvertDomains converts img into each of the given domains.
func ConvertDomains(img image.Image, domains []Domain) []*DomainImage {
	out := make([]*DomainImage, 0, len(domains))
	for _, d := range domains {
		out = append(out, ConvertDomain(img, d))
	}
	return out
}

func convertPixel(d Domain, r, g, b uint8) (uint8, uint8, uint8) {
	switch d {
	case DomainBGR:
		return b, g, r
	case DomainHSV:
		h, s, v := rgbColor(r, g, b).Hsv()
		return to8(h / 2), to8(s * 255), to8(v * 255)
	case DomainLab:
		l, a, bb := rgbColor(r, g, b).Lab()
		return to8(l * 255), to8(a*100 + 128), to8(bb*100 + 128)
	case DomainIntensity:
		gray := luminance(r, g, b)
		return gray, gray, gray
	case DomainRGI:
		return r, g, luminance(r, g, b)
	case DomainYCrCb:
		yy, cb, cr := color.RGBToYCbCr(r, g, b)
		return yy, cr, cb
	}
	return r, g, b
}

func rgbColor(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// luminance uses ITU-R BT.601 weights.
func luminance(r, g, b uint8) uint8 {
	return to8(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
}

func to8(v float64) uint8 {
	return uint8(clamp(int(math.Round(v)), 0, 255))
}
