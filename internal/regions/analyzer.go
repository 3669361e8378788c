package regions

import (
	"cmp"
	"image"
	"log/slog"
	"math"
	"slices"

	"github.com/ironsheep/salient-regions/internal/geometry"
	"github.com/ironsheep/salient-regions/internal/imaging"
	"github.com/ironsheep/salient-regions/internal/proposal"
	"github.com/ironsheep/salient-regions/internal/saliency"
)

// KeepOrder selects which regions KeepBestRegions retains.
type KeepOrder string

const (
	// KeepLeastDisagreement drops the regions whose entropy ratios disagree
	// the most.
	KeepLeastDisagreement KeepOrder = "least-disagreement"

	// KeepMostDisagreement drops the regions whose entropy ratios disagree
	// the least.
	KeepMostDisagreement KeepOrder = "most-disagreement"
)

// Options holds the analyzer thresholds.
type Options struct {
	ForceMergeThreshold    float64
	ContainmentThreshold   float64
	SubRegionKeepMargin    float64
	LocalStdThreshold      float64
	OverlapThreshold       float64
	DominanceRatio         float64
	AbsorbWeight           float64
	ReconciledWeight       float64
	ReconcileEdgeTolerance int
	DistinguishTolerance   float64
	MaxExpansion           float64
	Keep                   int
	KeepOrder              KeepOrder
}

// DefaultOptions returns the standard analyzer thresholds.
func DefaultOptions() Options {
	return Options{
		ForceMergeThreshold:    0.5,
		ContainmentThreshold:   0.95,
		SubRegionKeepMargin:    0.5,
		LocalStdThreshold:      0.2,
		OverlapThreshold:       0.5,
		DominanceRatio:         3,
		AbsorbWeight:           0.5,
		ReconciledWeight:       0.75,
		ReconcileEdgeTolerance: 2,
		DistinguishTolerance:   0.12,
		MaxExpansion:           0.3,
		Keep:                   7,
		KeepOrder:              KeepLeastDisagreement,
	}
}

// Analyzer runs the saliency-driven pruning and refinement of regions.
//
// Statistics come from statsMap; reconciliation profiles come from
// profileMap (usually the unequalised map). gray is the grayscale image used
// for texture entropy. All three share the same size.
type Analyzer struct {
	statsMap   *saliency.Map
	profileMap *saliency.Map
	gray       *imaging.Plane
	globalMean float64
	globalStd  float64
	opts       Options
	regions    []Region
	logger     *slog.Logger
}

// NewAnalyzer creates an analyzer. A nil profileMap reuses statsMap and a
// nil logger discards output.
func NewAnalyzer(statsMap, profileMap *saliency.Map, gray *imaging.Plane, opts Options, logger *slog.Logger) *Analyzer {
	if profileMap == nil {
		profileMap = statsMap
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	mean, std := statsMap.GlobalMeanStd()
	return &Analyzer{
		statsMap:   statsMap,
		profileMap: profileMap,
		gray:       gray,
		globalMean: mean,
		globalStd:  std,
		opts:       opts,
		logger:     logger,
	}
}

// AddProposals turns proposals into alive regions. Boxes are clamped to the
// map; proposals left without area are skipped.
func (a *Analyzer) AddProposals(ps []proposal.Proposal) {
	for _, p := range ps {
		a.addRegion(p.Box, p.Score)
	}
}

func (a *Analyzer) addRegion(box image.Rectangle, score float64) bool {
	box = geometry.Clamp(box, a.statsMap.Bounds())
	if box.Empty() {
		return false
	}
	a.regions = append(a.regions, Region{
		Box:    box,
		Score:  score,
		Status: StatusAlive,
		Stats:  ComputeStats(a.statsMap, box, a.globalMean, a.globalStd),
	})
	return true
}

// Regions returns every region, dead or alive.
func (a *Analyzer) Regions() []Region {
	return a.regions
}

// RegionsSurviving returns the boxes of the alive regions.
func (a *Analyzer) RegionsSurviving() []image.Rectangle {
	var out []image.Rectangle
	for i := range a.regions {
		if a.regions[i].Alive() {
			out = append(out, a.regions[i].Box)
		}
	}
	return out
}

// Run applies every step in order and returns the surviving boxes.
func (a *Analyzer) Run() []image.Rectangle {
	a.logger.Debug("analyzing regions", "regions", a.aliveCount(),
		"global_mean", a.globalMean, "global_std", a.globalStd)

	a.TryMergingSubRegions(a.opts.ForceMergeThreshold)
	a.logStep("merge sub-regions")
	a.EnsureSaliencyOfRegions()
	a.logStep("ensure saliency")
	a.ReconcileOverlappingRegions(a.opts.OverlapThreshold)
	a.logStep("reconcile overlaps")
	a.EnsureDistinguishabilityOfRegions()
	a.logStep("ensure distinguishability")
	a.ComputeDescriptorsAndResizeRegions()
	a.logStep("resize")
	a.KeepBestRegions(a.opts.Keep)
	a.logStep("keep best")

	return a.RegionsSurviving()
}

func (a *Analyzer) logStep(step string) {
	a.logger.Debug("analyzer step", "step", step, "alive", a.aliveCount())
}

func (a *Analyzer) aliveCount() int {
	n := 0
	for i := range a.regions {
		if a.regions[i].Alive() {
			n++
		}
	}
	return n
}

func (a *Analyzer) kill(r *Region, s Status) {
	r.Status = s
	a.logger.Debug("region rejected", "box", r.Box.String(), "status", s.String(), "score", r.Score)
}

func (a *Analyzer) recompute(r *Region) {
	r.Stats = ComputeStats(a.statsMap, r.Box, a.globalMean, a.globalStd)
}

// TryMergingSubRegions resolves regions nested inside larger ones.
//
// A region at least ContainmentThreshold inside a larger one is force-merged
// when it covers more than forceThresh of the larger box; otherwise it is
// dropped only if the ring between the two is more salient than it is.
func (a *Analyzer) TryMergingSubRegions(forceThresh float64) {
	slices.SortStableFunc(a.regions, func(r1, r2 Region) int {
		return cmp.Or(cmp.Compare(r2.Area(), r1.Area()), compareBoxes(r1.Box, r2.Box))
	})

	for i := range a.regions {
		big := &a.regions[i]
		for j := i + 1; j < len(a.regions) && big.Alive(); j++ {
			sub := &a.regions[j]
			if !sub.Alive() {
				continue
			}
			if geometry.ContainedFraction(big.Box, sub.Box) < a.opts.ContainmentThreshold {
				continue
			}
			if float64(sub.Area())/float64(big.Area()) > forceThresh {
				a.forceMergeWithSubRegion(big, sub)
			} else {
				a.tryMergeWithSubRegion(big, sub)
			}
		}
	}
}

// ringAverage is the mean saliency of big minus sub.
func ringAverage(big, sub *Region) float64 {
	n := big.Stats.Pixels - sub.Stats.Pixels
	if n <= 0 {
		return big.Stats.AvgSal
	}
	return (big.Stats.Sum - sub.Stats.Sum) / float64(n)
}

func (a *Analyzer) forceMergeWithSubRegion(big, sub *Region) {
	ring := ringAverage(big, sub)
	if sub.Stats.AvgSal > ring+a.opts.SubRegionKeepMargin*a.globalStd {
		sub.Score += big.Score * a.opts.AbsorbWeight
		a.kill(big, StatusMerged)
		return
	}
	big.Score += sub.Score * a.opts.AbsorbWeight
	a.kill(sub, StatusMerged)
}

func (a *Analyzer) tryMergeWithSubRegion(big, sub *Region) {
	if ringAverage(big, sub) > sub.Stats.AvgSal {
		big.Score += sub.Score * a.opts.AbsorbWeight
		a.kill(sub, StatusMerged)
	}
}

// EnsureSaliencyOfRegions rejects regions darker than the map on average
// and regions that do not stand out from their surroundings. The local bar
// is lowered for regions whose score exceeds an even share 1/N by more than
// half of it.
func (a *Analyzer) EnsureSaliencyOfRegions() {
	n := a.aliveCount()
	if n == 0 {
		return
	}
	for i := range a.regions {
		r := &a.regions[i]
		if !r.Alive() {
			continue
		}
		if r.Stats.AvgSal < a.globalMean {
			a.kill(r, StatusRejectedGlobal)
			continue
		}
		expected := math.Max(0, a.opts.LocalStdThreshold-(r.Score-0.5/float64(n)))
		if r.Stats.StdChange < expected {
			a.kill(r, StatusRejectedLocal)
		}
	}
}

// ReconcileOverlappingRegions resolves pairs of non-nested regions that
// share more than thresh of the smaller box. A region scoring DominanceRatio
// times the other absorbs it; otherwise both are replaced by a box whose
// sides are refined between the two. Runs until nothing changes.
func (a *Analyzer) ReconcileOverlappingRegions(thresh float64) {
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(a.regions); i++ {
			if !a.regions[i].Alive() {
				continue
			}
			for j := i + 1; j < len(a.regions); j++ {
				r1, r2 := &a.regions[i], &a.regions[j]
				if !r2.Alive() || !a.overlapping(r1, r2, thresh) {
					continue
				}
				changed = true

				if r1.Score >= a.opts.DominanceRatio*r2.Score {
					r1.Score += r2.Score * a.opts.AbsorbWeight
					a.kill(r2, StatusReconciledAway)
					continue
				}
				if r2.Score >= a.opts.DominanceRatio*r1.Score {
					r2.Score += r1.Score * a.opts.AbsorbWeight
					a.kill(r1, StatusReconciledAway)
					break
				}

				box := a.reconciledBox(r1.Box, r2.Box)
				score := a.opts.ReconciledWeight * (r1.Score + r2.Score)
				a.kill(r1, StatusReconciledAway)
				a.kill(r2, StatusReconciledAway)
				if a.addRegion(box, score) {
					a.logger.Debug("region reconciled", "box", box.String(), "score", score)
				}
				break
			}
		}
	}
}

// overlapping reports whether two regions overlap by more than thresh of the
// smaller one without one being nested in the other.
func (a *Analyzer) overlapping(r1, r2 *Region, thresh float64) bool {
	inter := geometry.IntersectionArea(r1.Box, r2.Box)
	if inter == 0 {
		return false
	}
	if geometry.ContainedFraction(r1.Box, r2.Box) >= a.opts.ContainmentThreshold ||
		geometry.ContainedFraction(r2.Box, r1.Box) >= a.opts.ContainmentThreshold {
		return false
	}
	smaller := min(r1.Area(), r2.Area())
	return float64(inter) > thresh*float64(smaller)
}

// reconciledBox resolves each side of b1 against b2. Nearby edges are
// averaged; distant ones are placed by a line descriptor on b1 that reaches
// past b2's edge. Top and bottom use the reconciled horizontal extent.
func (a *Analyzer) reconciledBox(b1, b2 image.Rectangle) image.Rectangle {
	out := b1
	for _, s := range []Side{SideLeft, SideRight, SideTop, SideBottom} {
		base := b1
		if !sideSpecs[s].vertical {
			base.Min.X, base.Max.X = out.Min.X, out.Max.X
		}
		out = s.WithEdge(out, a.reconcileEdge(base, b2, s))
	}
	return geometry.Clamp(out.Canon(), a.statsMap.Bounds())
}

func (a *Analyzer) reconcileEdge(b1, b2 image.Rectangle, s Side) int {
	e1, e2 := s.Edge(b1), s.Edge(b2)
	diff := e2 - e1
	if abs(diff) <= a.opts.ReconcileEdgeTolerance || b1.Empty() {
		return (e1 + e2) / 2
	}

	const margin = 2
	outward, inward := margin, margin
	if diff*sideSpecs[s].outward > 0 {
		outward += abs(diff)
	} else {
		inward += abs(diff)
	}
	d := NewLineDescriptor(a.profileMap, b1, s, outward, inward)
	return e1 + d.ComputeOptimalChange()
}

// EnsureDistinguishabilityOfRegions rejects regions whose texture entropy
// matches that of their inner core and their neighbourhood. A lone region
// is always kept.
func (a *Analyzer) EnsureDistinguishabilityOfRegions() {
	if a.aliveCount() <= 1 {
		return
	}
	tol := a.opts.DistinguishTolerance
	for i := range a.regions {
		r := &a.regions[i]
		if !r.Alive() {
			continue
		}
		tex := measureTexture(a.gray, r.Box)
		ra, rb, rc := tex.ratios()
		a.logger.Debug("region texture", "box", r.Box.String(),
			"inner_box", ra, "box_outer", rb, "inner_outer", rc, "around_box", safeRatio(tex.Around, tex.Box))
		if math.Abs(ra-rb) < tol && math.Abs(ra-rc) < tol && math.Abs(rb-rc) < tol {
			a.kill(r, StatusIndistinguishable)
		}
	}
}

// ComputeDescriptorsAndResizeRegions snaps the edges of every alive region
// to nearby saliency transitions, dominant axis first, and recomputes its
// statistics.
func (a *Analyzer) ComputeDescriptorsAndResizeRegions() {
	bounds := a.statsMap.Bounds()
	for i := range a.regions {
		r := &a.regions[i]
		if !r.Alive() {
			continue
		}

		order := []Side{SideTop, SideBottom, SideLeft, SideRight}
		if r.Box.Dx() > r.Box.Dy() {
			order = []Side{SideLeft, SideRight, SideTop, SideBottom}
		}

		for _, s := range order {
			size := r.Box.Dy()
			if sideSpecs[s].vertical {
				size = r.Box.Dx()
			}
			expansion := int(a.opts.MaxExpansion * float64(size))

			d := NewLineDescriptor(a.statsMap, r.Box, s, expansion, expansion)
			r.Descriptors[s] = d
			change := d.ComputeOptimalChange()
			if change == 0 {
				continue
			}
			resized := s.WithEdge(r.Box, s.Edge(r.Box)+change)
			if resized.Empty() || !resized.In(bounds) {
				continue
			}
			r.Box = resized
		}
		a.recompute(r)
	}
}

// KeepBestRegions prunes alive regions down to keep by entropy-ratio
// disagreement. Ties are broken by larger area, then position.
func (a *Analyzer) KeepBestRegions(keep int) {
	type ranked struct {
		idx   int
		score float64
	}
	var alive []ranked
	for i := range a.regions {
		if a.regions[i].Alive() {
			ra, rb, rc := entropyRatios(a.gray, a.regions[i].Box)
			alive = append(alive, ranked{idx: i, score: disagreement(ra, rb, rc)})
		}
	}
	if len(alive) <= keep {
		return
	}

	sign := 1
	if a.opts.KeepOrder == KeepMostDisagreement {
		sign = -1
	}
	slices.SortStableFunc(alive, func(x, y ranked) int {
		rx, ry := &a.regions[x.idx], &a.regions[y.idx]
		return cmp.Or(
			sign*cmp.Compare(x.score, y.score),
			cmp.Compare(ry.Area(), rx.Area()),
			compareBoxes(rx.Box, ry.Box),
		)
	})

	for _, r := range alive[max(keep, 0):] {
		a.kill(&a.regions[r.idx], StatusCapacityPruned)
	}
}

func compareBoxes(a, b image.Rectangle) int {
	return cmp.Or(
		cmp.Compare(a.Min.Y, b.Min.Y),
		cmp.Compare(a.Min.X, b.Min.X),
		cmp.Compare(a.Max.Y, b.Max.Y),
		cmp.Compare(a.Max.X, b.Max.X),
	)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
