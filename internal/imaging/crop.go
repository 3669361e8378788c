package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// CropResult contains a cropped region preview.
type CropResult struct {
	X1          int    `json:"x1"`
	Y1          int    `json:"y1"`
	X2          int    `json:"x2"`
	Y2          int    `json:"y2"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// WorkingSize returns the size of an image resized to height, keeping the
// aspect ratio. A non-positive height leaves the size unchanged.
func WorkingSize(size image.Point, height int) image.Point {
	if height <= 0 || size.Y == 0 {
		return size
	}
	w := int(float64(size.X)*float64(height)/float64(size.Y) + 0.5)
	if w < 1 {
		w = 1
	}
	return image.Pt(w, height)
}

// ResizeToHeight scales img to the given height, preserving aspect ratio.
//
// The result is always anchored at the origin. A non-positive height returns
// an unscaled copy.
func ResizeToHeight(img image.Image, height int) *image.NRGBA {
	if height <= 0 || height == img.Bounds().Dy() {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, 0, height, imaging.Linear)
}

// Crop extracts r from img, optionally scaling the preview by scale.
func Crop(img image.Image, r image.Rectangle, scale float64) (*CropResult, error) {
	bounds := img.Bounds()
	if !r.In(bounds) {
		return nil, errors.Errorf("crop region %v outside image bounds %v", r, bounds)
	}
	if r.Empty() {
		return nil, errors.New("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	cropped := imaging.Crop(img, r)

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	encoded, err := EncodePNGBase64(cropped)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode cropped image")
	}

	return &CropResult{
		X1:          r.Min.X,
		Y1:          r.Min.Y,
		X2:          r.Max.X,
		Y2:          r.Max.Y,
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// EncodePNGBase64 encodes img as a base64 PNG string.
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
