package proposal

import (
	"fmt"
	"image"

	"github.com/ironsheep/salient-regions/internal/segmentation"
)

// ExtractParams controls which segments become proposals.
type ExtractParams struct {
	// MaxRegionSize is the largest segment, as a fraction of the image area,
	// that can become a proposal.
	MaxRegionSize float64

	// BorderMargin is the width in pixels of the frame along the image edges.
	// Segments with any pixel inside the frame are discarded.
	BorderMargin int

	// MinSideFraction rejects boxes narrower or shorter than this fraction
	// of the image width or height.
	MinSideFraction float64

	// MinFillRatio rejects boxes whose segment covers less than this
	// fraction of the box.
	MinFillRatio float64
}

// DefaultExtractParams returns the standard extraction thresholds.
func DefaultExtractParams() ExtractParams {
	return ExtractParams{
		MaxRegionSize:   0.5,
		BorderMargin:    3,
		MinSideFraction: 0.02,
		MinFillRatio:    0.15,
	}
}

// LabelSet is one label map together with the domain and level it came from.
type LabelSet struct {
	Domain int
	Level  int
	Map    *segmentation.LabelMap
}

// segmentStats accumulates what extraction needs to know about a segment
// without storing its points.
type segmentStats struct {
	count     int
	bounds    image.Rectangle
	discarded bool
}

// Extract converts one label map into proposals.
//
// A segment is dropped if it touches the border frame or holds more than
// MaxRegionSize of the image. Surviving segments become their bounding box,
// which must be wide and tall enough and sufficiently filled. Each proposal is
// scored with LevelWeight(level).
//
// Extract panics if a label is outside [0, Count): label maps are validated
// once by segmentation.NewLabelMap.
func Extract(lm *segmentation.LabelMap, domain, level int, params ExtractParams) []Proposal {
	w, h := lm.Width, lm.Height
	maxPoints := params.MaxRegionSize * float64(w*h)
	margin := params.BorderMargin

	stats := make([]segmentStats, lm.Count)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			id := lm.Labels[y*w+x]
			if id < 0 || id >= lm.Count {
				panic(fmt.Sprintf("proposal: segment id %d at (%d,%d) outside [0,%d)", id, x, y, lm.Count))
			}
			s := &stats[id]
			if s.discarded {
				continue
			}
			if x < margin || x >= w-margin || y < margin || y >= h-margin {
				s.discarded = true
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if s.count == 0 {
				s.bounds = px
			} else {
				s.bounds = s.bounds.Union(px)
			}
			s.count++
			if float64(s.count) > maxPoints {
				s.discarded = true
			}
		}
	}

	minW := params.MinSideFraction * float64(w)
	minH := params.MinSideFraction * float64(h)
	weight := LevelWeight(level)

	var out []Proposal
	for i := range stats {
		s := &stats[i]
		if s.discarded || s.count == 0 {
			continue
		}
		bw, bh := s.bounds.Dx(), s.bounds.Dy()
		if float64(bw) < minW || float64(bh) < minH {
			continue
		}
		if float64(s.count)/float64(bw*bh) < params.MinFillRatio {
			continue
		}
		out = append(out, Proposal{
			Box:      s.bounds,
			Score:    weight,
			Domain:   domain,
			SegLevel: level,
			Status:   StatusValid,
		})
	}
	return out
}

// GenerateProposals extracts proposals from every label set and returns them
// sorted by (level asc, area asc), the order MergeWithinLevel expects.
func GenerateProposals(sets []LabelSet, params ExtractParams) []Proposal {
	var out []Proposal
	for _, set := range sets {
		out = append(out, Extract(set.Map, set.Domain, set.Level, params)...)
	}
	sortByLevelArea(out)
	return out
}
