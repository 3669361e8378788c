// Package proposal converts segmentation label maps into candidate object
// boxes and collapses redundant candidates.
//
// # Pipeline
//
// GenerateProposals extracts one Proposal per acceptable segment of every
// (domain, level) label map. A Merger then runs three passes, each of which
// mutates proposals in place, filters out the tombstoned ones and re-sorts:
//
//  1. MergeWithinLevel collapses near-duplicates of the same granularity.
//  2. MergeBetweenLevels joins boxes that reappear at another granularity;
//     survivors are tagged LevelAcrossLevels.
//  3. MergeCommonInDomain confirms finest-level boxes that have a match at
//     every granularity of their domain; survivors are tagged LevelCommon.
//
// Significant returns the proposals tagged by pass 2 or 3 with scores
// normalised by the Merger's accumulated total.
//
// # Ownership
//
// Proposals are plain values held in slices; indices act as stable handles
// during a pass. An invalid proposal is never used as a merge source or
// target and is dropped at the end of the pass that invalidated it.
package proposal

import (
	"cmp"
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/ironsheep/salient-regions/internal/geometry"
)

// Status is the lifecycle state of a Proposal.
type Status int

const (
	// StatusInvalid marks a proposal absorbed by another one.
	StatusInvalid Status = iota
	// StatusValid is a proposal that has not absorbed anything.
	StatusValid
	// StatusMerged is a proposal that absorbed at least one other.
	StatusMerged
)

func (s Status) String() string {
	switch s {
	case StatusInvalid:
		return "invalid"
	case StatusValid:
		return "valid"
	case StatusMerged:
		return "merged"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

const (
	// DomainMixed is the domain of a proposal built from several domains.
	DomainMixed = -1

	// LevelAcrossLevels tags a proposal merged across segmentation levels.
	LevelAcrossLevels = -1

	// LevelCommon tags a proposal confirmed at every level of its domain.
	LevelCommon = -2
)

// Proposal is a candidate bounding box with a confidence score.
type Proposal struct {
	Box      image.Rectangle `json:"box"`
	Score    float64         `json:"score"`
	Domain   int             `json:"domain"`
	SegLevel int             `json:"seg_level"`
	Status   Status          `json:"status"`
}

// Alive reports whether the proposal has not been absorbed.
func (p *Proposal) Alive() bool {
	return p.Status != StatusInvalid
}

// absorb merges other into p. The box becomes the bounding union, scores are
// summed and other is tombstoned.
func (p *Proposal) absorb(other *Proposal) {
	p.Box = geometry.Union(p.Box, other.Box)
	p.Score += other.Score
	if p.Domain != other.Domain {
		p.Domain = DomainMixed
	}
	p.Status = StatusMerged
	other.Status = StatusInvalid
}

// LevelWeight is the initial score of a proposal extracted at level.
// Finer levels (higher index) weigh more: 1/(1+e^(-(level+1)/4)).
func LevelWeight(level int) float64 {
	return 1 / (1 + math.Exp(-float64(level+1)/4))
}

// TotalScore sums the scores of the alive proposals.
func TotalScore(ps []Proposal) float64 {
	var sum float64
	for i := range ps {
		if ps[i].Alive() {
			sum += ps[i].Score
		}
	}
	return sum
}

// Boxes returns the boxes of ps in order.
func Boxes(ps []Proposal) []image.Rectangle {
	out := make([]image.Rectangle, len(ps))
	for i := range ps {
		out[i] = ps[i].Box
	}
	return out
}

// Resize maps every box from a from-sized image onto a to-sized image.
func Resize(ps []Proposal, from, to image.Point) []Proposal {
	out := slices.Clone(ps)
	for i := range out {
		out[i].Box = geometry.Scale(out[i].Box, from, to)
	}
	return out
}

// filterAlive drops tombstoned proposals, keeping order.
func filterAlive(ps []Proposal) []Proposal {
	return slices.DeleteFunc(ps, func(p Proposal) bool { return !p.Alive() })
}

// compareBoxes orders boxes top-to-bottom then left-to-right; used to make
// every sort total.
func compareBoxes(a, b image.Rectangle) int {
	return cmp.Or(
		cmp.Compare(a.Min.Y, b.Min.Y),
		cmp.Compare(a.Min.X, b.Min.X),
		cmp.Compare(a.Max.Y, b.Max.Y),
		cmp.Compare(a.Max.X, b.Max.X),
	)
}

// sortByLevelArea orders by (level asc, area asc).
func sortByLevelArea(ps []Proposal) {
	slices.SortStableFunc(ps, func(a, b Proposal) int {
		return cmp.Or(
			cmp.Compare(a.SegLevel, b.SegLevel),
			cmp.Compare(geometry.Area(a.Box), geometry.Area(b.Box)),
			cmp.Compare(a.Domain, b.Domain),
			compareBoxes(a.Box, b.Box),
		)
	})
}

// sortByLevelScore orders by (level asc, score desc).
func sortByLevelScore(ps []Proposal) {
	slices.SortStableFunc(ps, func(a, b Proposal) int {
		return cmp.Or(
			cmp.Compare(a.SegLevel, b.SegLevel),
			cmp.Compare(b.Score, a.Score),
		)
	})
}

// sortByDomainLevel orders by (domain asc, level asc, score desc).
func sortByDomainLevel(ps []Proposal) {
	slices.SortStableFunc(ps, func(a, b Proposal) int {
		return cmp.Or(
			cmp.Compare(a.Domain, b.Domain),
			cmp.Compare(a.SegLevel, b.SegLevel),
			cmp.Compare(b.Score, a.Score),
		)
	})
}

// partitions returns the [start, end) index ranges of consecutive runs of
// equal key.
func partitions(ps []Proposal, key func(*Proposal) int) [][2]int {
	var out [][2]int
	start := 0
	for i := 1; i <= len(ps); i++ {
		if i == len(ps) || key(&ps[i]) != key(&ps[start]) {
			out = append(out, [2]int{start, i})
			start = i
		}
	}
	return out
}
