// Package segmentation produces per-pixel segment label maps.
//
// A LabelMap assigns every pixel of a working-resolution image an integer
// segment id in [0, Count). The graph-based segmenter in this package builds
// one map per (domain, k) combination; externally produced maps can be
// validated with NewLabelMap before they are handed to proposal extraction.
package segmentation

import (
	"github.com/pkg/errors"
)

// LabelMap is a Width x Height grid of segment ids stored row-major.
//
// Ids are contiguous: every value in [0, Count) labels at least one pixel.
type LabelMap struct {
	Width  int
	Height int
	Count  int
	Labels []int
}

// NewLabelMap validates labels and wraps them in a LabelMap.
//
// It returns an error when the slice length does not match the dimensions,
// when an id is negative, or when the ids are not contiguous from zero.
func NewLabelMap(width, height int, labels []int) (*LabelMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid label map size %dx%d", width, height)
	}
	if len(labels) != width*height {
		return nil, errors.Errorf("label map has %d entries, want %d", len(labels), width*height)
	}

	maxID := -1
	for i, id := range labels {
		if id < 0 {
			return nil, errors.Errorf("negative segment id %d at pixel %d", id, i)
		}
		if id > maxID {
			maxID = id
		}
	}

	seen := make([]bool, maxID+1)
	for _, id := range labels {
		seen[id] = true
	}
	for id, ok := range seen {
		if !ok {
			return nil, errors.Errorf("segment ids are not contiguous: id %d is missing (max %d)", id, maxID)
		}
	}

	return &LabelMap{Width: width, Height: height, Count: maxID + 1, Labels: labels}, nil
}

// At returns the segment id of pixel (x, y).
func (m *LabelMap) At(x, y int) int {
	return m.Labels[y*m.Width+x]
}
