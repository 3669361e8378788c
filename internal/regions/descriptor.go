package regions

import (
	"image"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/salient-regions/internal/saliency"
)

// Side names one edge of a box.
type Side int

const (
	SideLeft Side = iota
	SideTop
	SideRight
	SideBottom
)

// sideSpec describes how a side moves. Offsets are expressed in the edge's
// own coordinate, so a change is simply added to it.
type sideSpec struct {
	name string
	// vertical is true for sides whose coordinate is an x value.
	vertical bool
	// outward is the sign of a change that grows the box.
	outward int
}

var sideSpecs = [4]sideSpec{
	SideLeft:   {name: "left", vertical: true, outward: -1},
	SideTop:    {name: "top", vertical: false, outward: -1},
	SideRight:  {name: "right", vertical: true, outward: +1},
	SideBottom: {name: "bottom", vertical: false, outward: +1},
}

func (s Side) String() string {
	return sideSpecs[s].name
}

// Edge returns the coordinate of side s of box.
func (s Side) Edge(box image.Rectangle) int {
	switch s {
	case SideLeft:
		return box.Min.X
	case SideTop:
		return box.Min.Y
	case SideRight:
		return box.Max.X
	}
	return box.Max.Y
}

// WithEdge returns box with side s moved to pos.
func (s Side) WithEdge(box image.Rectangle, pos int) image.Rectangle {
	switch s {
	case SideLeft:
		box.Min.X = pos
	case SideTop:
		box.Min.Y = pos
	case SideRight:
		box.Max.X = pos
	default:
		box.Max.Y = pos
	}
	return box
}

// strip returns the part of box between the edge at pos and the opposite
// side.
func (s Side) strip(box image.Rectangle, pos int) image.Rectangle {
	return s.WithEdge(box, pos)
}

// LineDescriptor is the cumulative saliency profile of one box edge.
//
// Data[i] is the saliency summed over the strip between the edge placed at
// offset Min+i and the opposite side of the box. Derivative and
// SecondDerivative are central differences of Data and Derivative; their end
// samples are 0.
type LineDescriptor struct {
	Side       Side
	Min        int
	Max        int
	EdgeLength int

	Data             []float64
	Derivative       []float64
	SecondDerivative []float64
}

// NewLineDescriptor profiles side s of box on m.
//
// The edge sweeps up to outward samples away from the box and inward samples
// into it. The range is clipped so that the edge stays inside the map and
// the strip keeps at least one row or column.
func NewLineDescriptor(m *saliency.Map, box image.Rectangle, s Side, outward, inward int) *LineDescriptor {
	spec := sideSpecs[s]
	edge := s.Edge(box)

	lo, hi := -inward, outward
	if spec.outward < 0 {
		lo, hi = -outward, inward
	}

	limit := m.Bounds()
	var mapLo, mapHi, near, far int
	if spec.vertical {
		mapLo, mapHi = limit.Min.X, limit.Max.X
		near, far = box.Min.X, box.Max.X
	} else {
		mapLo, mapHi = limit.Min.Y, limit.Max.Y
		near, far = box.Min.Y, box.Max.Y
	}
	if spec.outward < 0 {
		lo = max(lo, mapLo-edge)
		hi = min(hi, far-1-edge)
	} else {
		lo = max(lo, near+1-edge)
		hi = min(hi, mapHi-edge)
	}

	d := &LineDescriptor{Side: s, Min: lo, Max: hi}
	if spec.vertical {
		d.EdgeLength = box.Dy()
	} else {
		d.EdgeLength = box.Dx()
	}
	if hi < lo {
		return d
	}

	d.Data = make([]float64, hi-lo+1)
	for k := lo; k <= hi; k++ {
		d.Data[k-lo] = m.Sum(s.strip(box, edge+k))
	}
	d.derive()
	return d
}

// NewLineDescriptorFromProfile builds a descriptor over an existing profile
// whose first sample sits at offset min.
func NewLineDescriptorFromProfile(data []float64, min, edgeLength int) *LineDescriptor {
	d := &LineDescriptor{
		Min:        min,
		Max:        min + len(data) - 1,
		EdgeLength: edgeLength,
		Data:       append([]float64(nil), data...),
	}
	d.derive()
	return d
}

func (d *LineDescriptor) derive() {
	n := len(d.Data)
	d.Derivative = make([]float64, n)
	d.SecondDerivative = make([]float64, n)
	length := float64(max(d.EdgeLength, 1))
	for i := 1; i < n-1; i++ {
		diff := d.Data[i+1] - d.Data[i-1]
		if diff < 0 {
			diff = -diff
		}
		d.Derivative[i] = diff / (2 * length)
	}
	for i := 1; i < n-1; i++ {
		d.SecondDerivative[i] = d.Derivative[i+1] - d.Derivative[i-1]
	}
}

// Valid reports whether the profile spans at least two samples on each side
// of the original edge.
func (d *LineDescriptor) Valid() bool {
	return len(d.Data) > 0 && d.Min <= -2 && d.Max >= 2
}

// HasPointOfInflection reports whether the second derivative changes sign
// inside the profile. Zero samples are skipped.
func (d *LineDescriptor) HasPointOfInflection() bool {
	prev := 0
	for i := 1; i < len(d.SecondDerivative)-1; i++ {
		v := d.SecondDerivative[i]
		sign := 0
		if v > 0 {
			sign = 1
		} else if v < 0 {
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if prev != 0 && sign != prev {
			return true
		}
		prev = sign
	}
	return false
}

// ComputeOptimalChange returns the signed change to apply to the edge.
//
// Without a point of inflection, or on a profile that is too short, the
// change is 0. Otherwise the walk starts at the strongest derivative and
// heads toward the end of the profile with more saliency while the
// derivative stays at or above its mean over the interior samples; the first
// offset that fails, or the last offset of the range, is returned.
func (d *LineDescriptor) ComputeOptimalChange() int {
	if !d.Valid() || !d.HasPointOfInflection() {
		return 0
	}

	n := len(d.Derivative)
	peak := floats.MaxIdx(d.Derivative)
	mean := floats.Sum(d.Derivative[1:n-1]) / float64(n-2)

	step := 1
	if d.Data[n-1] < d.Data[0] {
		step = -1
	}

	i := peak
	for i >= 0 && i < n && d.Derivative[i] >= mean {
		i += step
	}
	i = min(max(i, 0), n-1)
	return d.Min + i
}
