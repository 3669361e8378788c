package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// AnnotateResult contains the image with region boxes drawn on it.
type AnnotateResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	BoxCount    int    `json:"box_count"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Annotate draws each box as an outline of the given thickness and labels it
// with its 1-based rank in boxes. colorHex accepts "#RRGGBB" or "#RRGGBBAA";
// an unparseable colour falls back to opaque red.
func Annotate(img image.Image, boxes []image.Rectangle, colorHex string, thickness int) (*AnnotateResult, error) {
	bounds := img.Bounds()

	boxColor, err := parseHexColor(colorHex)
	if err != nil {
		boxColor = color.RGBA{255, 0, 0, 255}
	}
	if thickness < 1 {
		thickness = 1
	}

	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	labelColor := color.RGBA{255, 255, 255, 255}
	for i, box := range boxes {
		drawOutline(result, box, boxColor, thickness)
		drawLabel(result, box.Min.X+thickness, box.Min.Y+thickness, strconv.Itoa(i+1), labelColor, boxColor)
	}

	encoded, err := EncodePNGBase64(result)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode image")
	}

	return &AnnotateResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		BoxCount:    len(boxes),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// drawOutline draws the inside border of r, clipped to the image.
func drawOutline(img *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	t := thickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(r), src, image.Point{}, draw.Over)
	}
}

// drawLabel renders text with a filled background whose top-left is (x, y).
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	metrics := face.Metrics()
	height := metrics.Height.Ceil()

	bgRect := image.Rect(x, y, x+width+2, y+height).Intersect(img.Bounds())
	draw.Draw(img, bgRect, image.NewUniform(bg), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x+1, y+metrics.Ascent.Ceil()),
	}
	d.DrawString(text)
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, errors.New("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, errors.New("invalid hex color length")
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}
