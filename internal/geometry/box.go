// Package geometry provides the axis-aligned box arithmetic shared by the
// proposal merger and the saliency analyzer.
//
// Boxes are plain image.Rectangle values: Min is inclusive, Max is exclusive,
// so a box covers Dx()*Dy() pixels. The "union" of two boxes is always the
// bounding union (the smallest rectangle containing both), never the set union.
package geometry

import (
	"image"
)

// Area returns the number of pixels covered by r. Empty rectangles have area 0.
func Area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// IntersectionArea returns the pixel area shared by a and b.
func IntersectionArea(a, b image.Rectangle) int {
	return Area(a.Intersect(b))
}

// Union returns the bounding union of a and b.
func Union(a, b image.Rectangle) image.Rectangle {
	return a.Union(b)
}

// IOU returns area(a ∩ b) / area(bounding union of a and b).
//
// Returns 0 when both boxes are empty.
func IOU(a, b image.Rectangle) float64 {
	u := Area(Union(a, b))
	if u == 0 {
		return 0
	}
	return float64(IntersectionArea(a, b)) / float64(u)
}

// UnionMinusIntersection returns area(bounding union) - area(intersection).
//
// This is the absolute number of pixels by which two boxes disagree, used to
// rescue near-identical large boxes whose IOU is depressed by a few pixels.
func UnionMinusIntersection(a, b image.Rectangle) int {
	return Area(Union(a, b)) - IntersectionArea(a, b)
}

// Center returns the integer center of r.
func Center(r image.Rectangle) image.Point {
	return image.Point{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

// ContainsPoint reports whether p lies inside r.
func ContainsPoint(r image.Rectangle, p image.Point) bool {
	return p.In(r)
}

// ContainedFraction returns the fraction of inner's area that lies inside outer.
func ContainedFraction(outer, inner image.Rectangle) float64 {
	a := Area(inner)
	if a == 0 {
		return 0
	}
	return float64(IntersectionArea(outer, inner)) / float64(a)
}

// Grow expands r by dx on the left and right and dy on the top and bottom.
// Negative values shrink it; the result may be empty.
func Grow(r image.Rectangle, dx, dy int) image.Rectangle {
	return image.Rect(r.Min.X-dx, r.Min.Y-dy, r.Max.X+dx, r.Max.Y+dy)
}

// Clamp restricts r to bounds.
func Clamp(r, bounds image.Rectangle) image.Rectangle {
	return r.Intersect(bounds)
}

// DoubleBox returns r grown by half its width on each horizontal side and half
// its height on each vertical side, clamped to bounds.
func DoubleBox(r, bounds image.Rectangle) image.Rectangle {
	return Clamp(Grow(r, r.Dx()/2, r.Dy()/2), bounds)
}

// Scale maps r from a from-sized image onto a to-sized image.
func Scale(r image.Rectangle, from, to image.Point) image.Rectangle {
	if from.X == 0 || from.Y == 0 {
		return r
	}
	sx := float64(to.X) / float64(from.X)
	sy := float64(to.Y) / float64(from.Y)
	return image.Rect(
		int(float64(r.Min.X)*sx),
		int(float64(r.Min.Y)*sy),
		int(float64(r.Max.X)*sx),
		int(float64(r.Max.Y)*sy),
	)
}
