package proposal

import (
	"cmp"
	"image"
	"log/slog"
	"slices"

	"github.com/ironsheep/salient-regions/internal/geometry"
)

// MergeRule decides whether two boxes describe the same object.
type MergeRule struct {
	// IOU is the minimum intersection over bounding union.
	IOU float64

	// Diff is the largest tolerated area(union) - area(intersection), as a
	// fraction of the image area.
	Diff float64
}

// DefaultMergeRule returns τ_iou = 0.95 and τ_diff = 0.005.
func DefaultMergeRule() MergeRule {
	return MergeRule{IOU: 0.95, Diff: 0.005}
}

// Merger carries the per-image state shared by the merge passes.
//
// A Merger belongs to a single image; use one per pipeline run.
type Merger struct {
	imageArea        int
	levels           int
	totalMergeScores float64
	logger           *slog.Logger
}

// NewMerger returns a merger for an image of the given size whose label
// maps were produced at the given number of segmentation levels. A nil
// logger discards output.
func NewMerger(size image.Point, levels int, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Merger{imageArea: size.X * size.Y, levels: levels, logger: logger}
}

// ImageArea returns the pixel area the diff rule is relative to.
func (m *Merger) ImageArea() int {
	return m.imageArea
}

// TotalMergeScores returns the normaliser accumulated by MergeCommonInDomain.
func (m *Merger) TotalMergeScores() float64 {
	return m.totalMergeScores
}

// CanMerge reports whether a and b satisfy rule on this image.
func (m *Merger) CanMerge(a, b image.Rectangle, rule MergeRule) bool {
	if geometry.IOU(a, b) >= rule.IOU {
		return true
	}
	return float64(geometry.UnionMinusIntersection(a, b)) <= rule.Diff*float64(m.imageArea)
}

// MergeWithinLevel collapses proposals of the same level until no pair in
// any level can merge.
//
// Input must be sorted by (level asc, area asc) as GenerateProposals returns
// it. The earlier proposal of a merging pair survives and keeps scanning with
// its grown box. The result is filtered and sorted by (level asc, score desc).
func (m *Merger) MergeWithinLevel(ps []Proposal, rule MergeRule) []Proposal {
	merges := 0
	for _, part := range partitions(ps, func(p *Proposal) int { return p.SegLevel }) {
		for changed := true; changed; {
			changed = false
			for i := part[0]; i < part[1]; i++ {
				if !ps[i].Alive() {
					continue
				}
				for j := i + 1; j < part[1]; j++ {
					if !ps[j].Alive() {
						continue
					}
					if m.CanMerge(ps[i].Box, ps[j].Box, rule) {
						ps[i].absorb(&ps[j])
						merges++
						changed = true
					}
				}
			}
		}
	}

	ps = filterAlive(ps)
	sortByLevelScore(ps)
	m.logger.Debug("merged within level", "merges", merges, "remaining", len(ps))
	return ps
}

// MergeBetweenLevels merges proposals that reappear at other levels.
//
// Input must be sorted by (level asc, score desc). Within each level, sources
// are visited in score order and the visit stops at the first score below
// minScore. A source absorbs every matching proposal of another level that
// has not itself been merged across levels; it is then tagged
// LevelAcrossLevels and can no longer be a target.
func (m *Merger) MergeBetweenLevels(ps []Proposal, minScore float64, rule MergeRule) []Proposal {
	parts := partitions(ps, func(p *Proposal) int { return p.SegLevel })
	merges := 0

	for pi, part := range parts {
		for i := part[0]; i < part[1]; i++ {
			src := &ps[i]
			if src.Score < minScore {
				break
			}
			if !src.Alive() {
				continue
			}
			for pj, other := range parts {
				if pj == pi {
					continue
				}
				for j := other[0]; j < other[1]; j++ {
					dst := &ps[j]
					if !dst.Alive() || dst.SegLevel < 0 {
						continue
					}
					if m.CanMerge(src.Box, dst.Box, rule) {
						src.absorb(dst)
						src.SegLevel = LevelAcrossLevels
						merges++
					}
				}
			}
		}
	}

	ps = filterAlive(ps)
	sortByLevelScore(ps)
	m.logger.Debug("merged between levels", "merges", merges, "remaining", len(ps))
	return ps
}

// MergeCommonInDomain confirms level-0 proposals that have a match at every
// other level of their domain.
//
// A candidate matches an anchor when it contains the anchor's centre and
// satisfies rule. The first match per level, in score order, is absorbed. A
// confirmed anchor keeps its box, is tagged LevelCommon and its final score
// is added to TotalMergeScores. The result is sorted by (domain asc,
// level asc, score desc).
func (m *Merger) MergeCommonInDomain(ps []Proposal, rule MergeRule) []Proposal {
	sortByDomainLevel(ps)
	confirmed := 0

	for _, part := range partitions(ps, func(p *Proposal) int { return p.Domain }) {
		for i := part[0]; i < part[1]; i++ {
			anchor := &ps[i]
			if !anchor.Alive() || anchor.SegLevel != 0 {
				continue
			}
			center := geometry.Center(anchor.Box)

			matches := make([]int, 0, m.levels)
			for level := 1; level < m.levels; level++ {
				match := -1
				for j := part[0]; j < part[1]; j++ {
					c := &ps[j]
					if j == i || !c.Alive() || c.SegLevel != level {
						continue
					}
					if geometry.ContainsPoint(c.Box, center) && m.CanMerge(anchor.Box, c.Box, rule) {
						match = j
						break
					}
				}
				if match < 0 {
					break
				}
				matches = append(matches, match)
			}
			if len(matches) != max(m.levels-1, 0) {
				continue
			}

			for _, j := range matches {
				anchor.Score += ps[j].Score
				ps[j].Status = StatusInvalid
			}
			anchor.SegLevel = LevelCommon
			anchor.Status = StatusMerged
			m.totalMergeScores += anchor.Score
			confirmed++
		}
	}

	ps = filterAlive(ps)
	m.logger.Debug("merged common in domain",
		"confirmed", confirmed, "remaining", len(ps), "total_merge_scores", m.totalMergeScores)
	return ps
}

// Significant returns copies of the proposals merged across levels or
// confirmed in their domain, with Score divided by TotalMergeScores.
//
// When no anchor was confirmed the normaliser falls back to the sum of the
// significant scores. The result is ordered by normalised score descending.
func (m *Merger) Significant(ps []Proposal) []Proposal {
	out := make([]Proposal, 0, len(ps))
	var sum float64
	for i := range ps {
		if ps[i].Alive() && ps[i].SegLevel < 0 {
			out = append(out, ps[i])
			sum += ps[i].Score
		}
	}

	norm := m.totalMergeScores
	if norm == 0 {
		norm = sum
	}
	if norm > 0 {
		for i := range out {
			out[i].Score /= norm
		}
	}

	slices.SortStableFunc(out, func(a, b Proposal) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), compareBoxes(a.Box, b.Box))
	})
	return out
}

// MergeAll runs the three passes in order and returns the significant
// proposals.
func (m *Merger) MergeAll(ps []Proposal, within MergeRule, minScore float64, between, common MergeRule) []Proposal {
	ps = m.MergeWithinLevel(ps, within)
	ps = m.MergeBetweenLevels(ps, minScore, between)
	ps = m.MergeCommonInDomain(ps, common)
	return m.Significant(ps)
}
