// Package regions prunes and refines candidate boxes using a saliency map.
//
// An Analyzer wraps each candidate in a Region, derives saliency statistics
// for the box and its surroundings, and runs a fixed sequence of steps that
// merge nested regions, reject non-salient ones, reconcile overlaps, reject
// regions whose texture matches their neighbourhood, snap box edges to
// saliency transitions with LineDescriptors and finally cap the number of
// survivors.
//
// A region that leaves the alive state keeps the status code recording why,
// so callers and debug logs can explain every rejection.
package regions

import (
	"fmt"
	"image"

	"github.com/ironsheep/salient-regions/internal/geometry"
	"github.com/ironsheep/salient-regions/internal/saliency"
)

// Status records whether a region is alive and, if not, why it died.
type Status int

const (
	StatusMerged            Status = 0
	StatusAlive             Status = 1
	StatusRejectedGlobal    Status = -1
	StatusRejectedLocal     Status = -2
	StatusReconciledAway    Status = -5
	StatusIndistinguishable Status = -6
	StatusCapacityPruned    Status = -7
)

func (s Status) String() string {
	switch s {
	case StatusMerged:
		return "merged"
	case StatusAlive:
		return "alive"
	case StatusRejectedGlobal:
		return "rejected-global"
	case StatusRejectedLocal:
		return "rejected-local"
	case StatusReconciledAway:
		return "reconciled-away"
	case StatusIndistinguishable:
		return "indistinguishable"
	case StatusCapacityPruned:
		return "capacity-pruned"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Stats are the saliency statistics of a box.
type Stats struct {
	// AvgSal and StdSal describe the box itself.
	AvgSal float64
	StdSal float64

	// Sum and Pixels are the total saliency and pixel count of the box.
	Sum    float64
	Pixels int

	// AvgSalSurroundings is the mean over the double box minus the box.
	AvgSalSurroundings float64

	// StdChange is (AvgSal - AvgSalSurroundings) in units of the global
	// standard deviation.
	StdChange float64
}

// ComputeStats derives the statistics of box on m.
//
// When the double box adds no pixels (a box covering the whole map) the
// surroundings fall back to globalMean. A zero globalStd yields StdChange 0.
// ComputeStats panics if box is empty or outside m.
func ComputeStats(m *saliency.Map, box image.Rectangle, globalMean, globalStd float64) Stats {
	if box.Empty() {
		panic(fmt.Sprintf("regions: statistics of degenerate box %v", box))
	}
	avg, std := m.MeanStd(box)
	s := Stats{
		AvgSal: avg,
		StdSal: std,
		Sum:    m.Sum(box),
		Pixels: geometry.Area(box),
	}

	double := geometry.DoubleBox(box, m.Bounds())
	n := geometry.Area(double) - s.Pixels
	if n > 0 {
		s.AvgSalSurroundings = (m.Sum(double) - s.Sum) / float64(n)
	} else {
		s.AvgSalSurroundings = globalMean
	}

	if globalStd > 0 {
		s.StdChange = (s.AvgSal - s.AvgSalSurroundings) / globalStd
	}
	return s
}

// Region is one candidate box under analysis.
type Region struct {
	Box         image.Rectangle
	Score       float64
	Status      Status
	Stats       Stats
	Descriptors [4]*LineDescriptor
}

// Alive reports whether the region is still a candidate.
func (r *Region) Alive() bool {
	return r.Status == StatusAlive
}

// Area returns the pixel area of the region's box.
func (r *Region) Area() int {
	return geometry.Area(r.Box)
}
