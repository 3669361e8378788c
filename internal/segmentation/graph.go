package segmentation

import (
	"cmp"
	"math"
	"slices"

	"github.com/anthonynsimon/bild/blur"

	"github.com/ironsheep/salient-regions/internal/imaging"
)

// edge connects pixels a and b (row-major indices) with a colour distance.
type edge struct {
	a, b int
	w    float64
}

// buildGraph smooths the domain image and returns its 8-connected edges
// sorted by ascending weight. Each neighbour pair appears once.
func buildGraph(di *imaging.DomainImage, sigma float64) []edge {
	smoothed := blur.Gaussian(di.Img, sigma)
	b := smoothed.Bounds()
	width, height := b.Dx(), b.Dy()

	diff := func(x1, y1, x2, y2 int) float64 {
		i := smoothed.PixOffset(x1+b.Min.X, y1+b.Min.Y)
		j := smoothed.PixOffset(x2+b.Min.X, y2+b.Min.Y)
		var sum float64
		for c := 0; c < di.Channels; c++ {
			d := float64(smoothed.Pix[i+c]) - float64(smoothed.Pix[j+c])
			sum += d * d
		}
		return math.Sqrt(sum)
	}

	edges := make([]edge, 0, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := y*width + x
			if x < width-1 {
				edges = append(edges, edge{p, p + 1, diff(x, y, x+1, y)})
			}
			if y < height-1 {
				edges = append(edges, edge{p, p + width, diff(x, y, x, y+1)})
			}
			if x < width-1 && y < height-1 {
				edges = append(edges, edge{p, p + width + 1, diff(x, y, x+1, y+1)})
			}
			if x < width-1 && y > 0 {
				edges = append(edges, edge{p, p - width + 1, diff(x, y, x+1, y-1)})
			}
		}
	}

	slices.SortStableFunc(edges, func(e1, e2 edge) int {
		return cmp.Compare(e1.w, e2.w)
	})
	return edges
}

// forest is a disjoint-set over pixels with union by rank and path halving.
type forest struct {
	parent []int
	rank   []int
	size   []int
}

func newForest(n int) *forest {
	f := &forest{parent: make([]int, n), rank: make([]int, n), size: make([]int, n)}
	for i := range f.parent {
		f.parent[i] = i
		f.size[i] = 1
	}
	return f
}

func (f *forest) find(x int) int {
	for f.parent[x] != x {
		f.parent[x] = f.parent[f.parent[x]]
		x = f.parent[x]
	}
	return x
}

func (f *forest) join(a, b int) int {
	if f.rank[a] < f.rank[b] {
		a, b = b, a
	}
	f.parent[b] = a
	f.size[a] += f.size[b]
	if f.rank[a] == f.rank[b] {
		f.rank[a]++
	}
	return a
}

// segmentGraph runs the Felzenszwalb-Huttenlocher merge over pre-sorted
// edges. k scales the per-component threshold; components smaller than
// minSize are absorbed by a neighbour afterwards.
func segmentGraph(width, height int, edges []edge, k float64, minSize int) *LabelMap {
	n := width * height
	f := newForest(n)
	threshold := make([]float64, n)
	for i := range threshold {
		threshold[i] = k
	}

	for _, e := range edges {
		a, b := f.find(e.a), f.find(e.b)
		if a == b {
			continue
		}
		if e.w <= threshold[a] && e.w <= threshold[b] {
			root := f.join(a, b)
			threshold[root] = e.w + k/float64(f.size[root])
		}
	}

	for _, e := range edges {
		a, b := f.find(e.a), f.find(e.b)
		if a != b && (f.size[a] < minSize || f.size[b] < minSize) {
			f.join(a, b)
		}
	}

	ids := make(map[int]int)
	labels := make([]int, n)
	for p := 0; p < n; p++ {
		root := f.find(p)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		labels[p] = id
	}

	return &LabelMap{Width: width, Height: height, Count: len(ids), Labels: labels}
}
