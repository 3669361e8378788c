package regions

import (
	"image"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/salient-regions/internal/geometry"
	"github.com/ironsheep/salient-regions/internal/imaging"
	"github.com/ironsheep/salient-regions/internal/proposal"
	"github.com/ironsheep/salient-regions/internal/saliency"
)

func newTestAnalyzer(t *testing.T, m *saliency.Map, gray *imaging.Plane, boxes map[image.Rectangle]float64) *Analyzer {
	t.Helper()
	if gray == nil {
		gray = flatPlane(m.Width(), m.Height(), 128)
	}
	a := NewAnalyzer(m, nil, gray, DefaultOptions(), nil)
	a.AddProposals(proposalsFor(boxes))
	require.Len(t, a.Regions(), len(boxes))
	return a
}

// proposalsFor returns proposals in a fixed order so region indexes are stable.
func proposalsFor(boxes map[image.Rectangle]float64) []proposal.Proposal {
	var ps []proposal.Proposal
	for box, score := range boxes {
		ps = append(ps, proposal.Proposal{Box: box, Score: score, Status: proposal.StatusValid})
	}
	slices.SortFunc(ps, func(a, b proposal.Proposal) int { return compareBoxes(a.Box, b.Box) })
	return ps
}

// Framed boxes are flat inside a checkerboard frame; quiet boxes sit in a
// flat neighbourhood. Framed boxes score a disagreement of 2, quiet ones 0.
var (
	framedA = image.Rect(10, 10, 40, 40)
	framedB = image.Rect(60, 10, 90, 40)
	quietC  = image.Rect(10, 70, 25, 85)
	quietD  = image.Rect(40, 70, 55, 85)
	quietE  = image.Rect(70, 70, 85, 85)
)

func texturedScene() *imaging.Plane {
	gray := flatPlane(120, 120, 90)
	fillChecker(gray, image.Rect(5, 5, 45, 45), 4, 40, 200)
	fillChecker(gray, image.Rect(55, 5, 95, 45), 4, 40, 200)
	gray.Fill(framedA, 90)
	gray.Fill(framedB, 90)
	return gray
}

func regionAt(t *testing.T, a *Analyzer, box image.Rectangle) Region {
	t.Helper()
	for _, r := range a.Regions() {
		if r.Box == box {
			return r
		}
	}
	require.Failf(t, "region not found", "no region with box %v", box)
	return Region{}
}

func TestAddProposals_ClampsAndSkips(t *testing.T) {
	m := mapWithBlocks(50, 50, nil)
	a := NewAnalyzer(m, nil, flatPlane(50, 50, 0), DefaultOptions(), nil)

	a.AddProposals([]proposal.Proposal{
		{Box: image.Rect(40, 40, 70, 70), Score: 0.5},
		{Box: image.Rect(60, 60, 70, 70), Score: 0.5},
		{Box: image.Rect(-1, 10, 20, 51), Score: 0.3},
	})

	require.Len(t, a.Regions(), 2)
	assert.Equal(t, image.Rect(40, 40, 50, 50), a.Regions()[0].Box)
	assert.Equal(t, image.Rect(0, 10, 20, 50), a.Regions()[1].Box, "a one-pixel overshoot is trimmed")
	for _, r := range a.Regions() {
		assert.True(t, r.Alive())
		assert.Equal(t, geometry.Area(r.Box), r.Stats.Pixels)
	}
}

func TestTryMergingSubRegions(t *testing.T) {
	big := image.Rect(20, 20, 60, 60)
	sub := image.Rect(22, 22, 58, 58)

	t.Run("force merge into the larger region", func(t *testing.T) {
		m := mapWithBlocks(80, 80, map[image.Rectangle]float64{big: 255})
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{big: 1, sub: 0.4})

		a.TryMergingSubRegions(0.5)

		assert.Equal(t, StatusAlive, regionAt(t, a, big).Status)
		assert.InDelta(t, 1.2, regionAt(t, a, big).Score, 1e-9)
		assert.Equal(t, StatusMerged, regionAt(t, a, sub).Status)
	})

	t.Run("force merge keeps a salient core", func(t *testing.T) {
		m := mapWithBlocks(80, 80, map[image.Rectangle]float64{sub: 255})
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{big: 1, sub: 0.4})

		a.TryMergingSubRegions(0.5)

		assert.Equal(t, StatusMerged, regionAt(t, a, big).Status)
		assert.Equal(t, StatusAlive, regionAt(t, a, sub).Status)
		assert.InDelta(t, 0.9, regionAt(t, a, sub).Score, 1e-9)
	})

	outer := image.Rect(10, 10, 70, 70)

	t.Run("small salient sub-region survives", func(t *testing.T) {
		m := mapWithBlocks(80, 80, map[image.Rectangle]float64{image.Rect(25, 25, 55, 55): 255})
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{outer: 1, sub: 0.4})

		a.TryMergingSubRegions(0.5)

		assert.Equal(t, StatusAlive, regionAt(t, a, outer).Status)
		assert.Equal(t, StatusAlive, regionAt(t, a, sub).Status)
	})

	t.Run("small dark sub-region is absorbed", func(t *testing.T) {
		p := imaging.NewPlane(80, 80)
		p.Fill(outer, 255)
		p.Fill(sub, 0)
		a := newTestAnalyzer(t, saliency.NewMap(p), nil, map[image.Rectangle]float64{outer: 1, sub: 0.4})

		a.TryMergingSubRegions(0.5)

		assert.Equal(t, StatusAlive, regionAt(t, a, outer).Status)
		assert.InDelta(t, 1.2, regionAt(t, a, outer).Score, 1e-9)
		assert.Equal(t, StatusMerged, regionAt(t, a, sub).Status)
	})
}

func TestEnsureSaliencyOfRegions(t *testing.T) {
	t.Run("salient block is kept", func(t *testing.T) {
		m := mapWithBlocks(80, 80, map[image.Rectangle]float64{image.Rect(30, 30, 50, 50): 255})
		box := image.Rect(20, 20, 60, 60)
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{box: 0.3})

		a.EnsureSaliencyOfRegions()

		assert.Equal(t, StatusAlive, regionAt(t, a, box).Status)
	})

	t.Run("dark and blended regions are rejected", func(t *testing.T) {
		m := mapWithBlocks(80, 80, map[image.Rectangle]float64{image.Rect(0, 0, 80, 40): 255})
		blended := image.Rect(20, 5, 40, 25)
		dark := image.Rect(5, 50, 25, 70)
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{blended: 0.1, dark: 0.1})

		a.EnsureSaliencyOfRegions()

		assert.Equal(t, StatusRejectedLocal, regionAt(t, a, blended).Status)
		assert.Equal(t, StatusRejectedGlobal, regionAt(t, a, dark).Status)
	})
}

func TestReconcileOverlappingRegions(t *testing.T) {
	left := image.Rect(20, 20, 60, 60)
	right := image.Rect(30, 20, 70, 60)

	t.Run("disjoint regions are untouched", func(t *testing.T) {
		m := mapWithBlocks(100, 100, nil)
		b1, b2 := image.Rect(0, 0, 30, 30), image.Rect(50, 50, 90, 90)
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{b1: 0.5, b2: 0.5})

		a.ReconcileOverlappingRegions(0.5)

		require.Len(t, a.Regions(), 2)
		assert.Equal(t, []image.Rectangle{b1, b2}, a.RegionsSurviving())
	})

	t.Run("nested regions are not reconciled", func(t *testing.T) {
		m := mapWithBlocks(100, 100, nil)
		outer, inner := image.Rect(0, 0, 60, 60), image.Rect(10, 10, 40, 40)
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{outer: 0.5, inner: 0.5})

		a.ReconcileOverlappingRegions(0.5)

		assert.Len(t, a.RegionsSurviving(), 2)
	})

	t.Run("dominant region absorbs the other", func(t *testing.T) {
		m := mapWithBlocks(80, 80, nil)
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{left: 3, right: 0.5})

		a.ReconcileOverlappingRegions(0.5)

		require.Len(t, a.Regions(), 2)
		assert.Equal(t, StatusAlive, regionAt(t, a, left).Status)
		assert.InDelta(t, 3.25, regionAt(t, a, left).Score, 1e-9)
		assert.Equal(t, StatusReconciledAway, regionAt(t, a, right).Status)
	})

	t.Run("comparable regions are replaced", func(t *testing.T) {
		m := mapWithBlocks(80, 80, nil)
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{left: 1, right: 1})

		a.ReconcileOverlappingRegions(0.5)

		require.Len(t, a.Regions(), 3)
		assert.Equal(t, StatusReconciledAway, a.Regions()[0].Status)
		assert.Equal(t, StatusReconciledAway, a.Regions()[1].Status)
		created := a.Regions()[2]
		assert.True(t, created.Alive())
		assert.InDelta(t, 1.5, created.Score, 1e-9)
		assert.Equal(t, left, created.Box, "a flat profile leaves the first box's edges")
	})

	t.Run("replacement edge follows saliency", func(t *testing.T) {
		m := mapWithBlocks(80, 80, map[image.Rectangle]float64{image.Rect(20, 20, 64, 60): 255})
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{left: 1, right: 1})

		a.ReconcileOverlappingRegions(0.5)

		surviving := a.RegionsSurviving()
		require.Len(t, surviving, 1)
		assert.Equal(t, image.Rect(20, 20, 65, 60), surviving[0])
	})
}

func TestEnsureDistinguishabilityOfRegions(t *testing.T) {
	m := mapWithBlocks(80, 80, nil)
	b1, b2 := image.Rect(5, 5, 30, 30), image.Rect(40, 40, 70, 70)

	t.Run("lone region is kept", func(t *testing.T) {
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{b1: 1})
		a.EnsureDistinguishabilityOfRegions()
		assert.True(t, a.Regions()[0].Alive())
	})

	t.Run("featureless regions are rejected", func(t *testing.T) {
		a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{b1: 1, b2: 1})
		a.EnsureDistinguishabilityOfRegions()
		assert.Equal(t, StatusIndistinguishable, regionAt(t, a, b1).Status)
		assert.Equal(t, StatusIndistinguishable, regionAt(t, a, b2).Status)
	})

	t.Run("region set apart from its neighbourhood survives", func(t *testing.T) {
		gray := texturedScene()
		a := newTestAnalyzer(t, mapWithBlocks(120, 120, nil), gray, map[image.Rectangle]float64{framedA: 1, quietC: 1})
		a.EnsureDistinguishabilityOfRegions()
		assert.Equal(t, StatusAlive, regionAt(t, a, framedA).Status)
		assert.Equal(t, StatusIndistinguishable, regionAt(t, a, quietC).Status)
	})
}

func TestComputeDescriptorsAndResizeRegions(t *testing.T) {
	block := image.Rect(20, 20, 60, 60)
	m := mapWithBlocks(80, 80, map[image.Rectangle]float64{block: 255})
	inside := image.Rect(22, 22, 58, 58)
	a := newTestAnalyzer(t, m, nil, map[image.Rectangle]float64{inside: 1})

	a.ComputeDescriptorsAndResizeRegions()

	r := a.Regions()[0]
	assert.Equal(t, block, r.Box, "every edge snaps out to the block")
	for s, d := range r.Descriptors {
		assert.NotNil(t, d, "descriptor for %s", Side(s))
	}
	assert.Equal(t, geometry.Area(block), r.Stats.Pixels, "statistics follow the resized box")
	assert.InDelta(t, 255.0, r.Stats.AvgSal, 1e-9)
}

func TestKeepBestRegions(t *testing.T) {
	boxes := map[image.Rectangle]float64{
		image.Rect(0, 0, 10, 10):   0.2,
		image.Rect(20, 0, 35, 15):  0.2,
		image.Rect(40, 0, 60, 20):  0.2,
		image.Rect(0, 30, 25, 55):  0.2,
		image.Rect(30, 30, 60, 60): 0.2,
	}
	want := []image.Rectangle{
		image.Rect(40, 0, 60, 20),
		image.Rect(0, 30, 25, 55),
		image.Rect(30, 30, 60, 60),
	}
	m := mapWithBlocks(80, 80, nil)

	run := func(reverse bool) []image.Rectangle {
		a := NewAnalyzer(m, nil, flatPlane(80, 80, 90), DefaultOptions(), nil)
		ps := proposalsFor(boxes)
		if reverse {
			slices.Reverse(ps)
		}
		a.AddProposals(ps)
		a.KeepBestRegions(3)
		got := a.RegionsSurviving()
		slices.SortFunc(got, compareBoxes)
		return got
	}

	first := run(false)
	assert.Len(t, first, 3)
	assert.Equal(t, want, first)
	assert.Equal(t, first, run(true))

	t.Run("keep above the alive count prunes nothing", func(t *testing.T) {
		a := newTestAnalyzer(t, m, nil, boxes)
		a.KeepBestRegions(7)
		assert.Len(t, a.RegionsSurviving(), 5)
	})
}

func TestKeepBestRegions_RanksByDisagreement(t *testing.T) {
	gray := texturedScene()
	boxes := map[image.Rectangle]float64{framedA: 0.2, framedB: 0.2, quietC: 0.2, quietD: 0.2, quietE: 0.2}
	for box := range boxes {
		want := 0.0
		if box == framedA || box == framedB {
			want = 2.0
		}
		require.Equal(t, want, disagreement(entropyRatios(gray, box)), "disagreement of %v", box)
	}
	m := mapWithBlocks(120, 120, nil)

	run := func(order KeepOrder, keep int, reverse bool) []image.Rectangle {
		opts := DefaultOptions()
		opts.KeepOrder = order
		a := NewAnalyzer(m, nil, gray, opts, nil)
		ps := proposalsFor(boxes)
		if reverse {
			slices.Reverse(ps)
		}
		a.AddProposals(ps)
		a.KeepBestRegions(keep)
		for _, r := range a.Regions() {
			if !r.Alive() {
				assert.Equal(t, StatusCapacityPruned, r.Status)
			}
		}
		got := a.RegionsSurviving()
		slices.SortFunc(got, compareBoxes)
		return got
	}

	for _, reverse := range []bool{false, true} {
		assert.Equal(t, []image.Rectangle{quietC, quietD, quietE}, run(KeepLeastDisagreement, 3, reverse),
			"the larger framed boxes disagree most and are dropped")
		assert.Equal(t, []image.Rectangle{framedA, framedB}, run(KeepMostDisagreement, 2, reverse))
	}
}

func TestRun(t *testing.T) {
	blockA := image.Rect(20, 20, 50, 50)
	blockB := image.Rect(70, 40, 100, 80)
	p := planeWithBlocks(120, 100, map[image.Rectangle]float64{blockA: 255, blockB: 200})
	m := saliency.NewMap(p)

	dark := image.Rect(5, 80, 25, 95)
	a := NewAnalyzer(m, nil, p, DefaultOptions(), nil)
	a.AddProposals(proposalsFor(map[image.Rectangle]float64{
		image.Rect(18, 18, 52, 52):  0.4,
		image.Rect(68, 38, 102, 82): 0.4,
		dark:                        0.2,
	}))

	got := a.Run()

	require.Len(t, got, 2)
	for _, block := range []image.Rectangle{blockA, blockB} {
		best := 0.0
		for _, box := range got {
			best = max(best, geometry.IOU(box, block))
		}
		assert.Greater(t, best, 0.8, "block %v", block)
	}
	assert.Equal(t, StatusRejectedGlobal, regionAt(t, a, dark).Status)
}
