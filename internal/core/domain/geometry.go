package domain

import "math"

// BBox is an axis-aligned rectangle in page points with a top-left origin.
// X0 < X1 and Y0 < Y1 for a non-empty box.
type BBox struct {
	X0, Y0, X1, Y1 float64
}

// Width returns the horizontal extent.
func (b BBox) Width() float64 { return b.X1 - b.X0 }

// Height returns the vertical extent.
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// Area returns the box area, zero for degenerate boxes.
func (b BBox) Area() float64 {
	if b.X1 <= b.X0 || b.Y1 <= b.Y0 {
		return 0
	}
	return b.Width() * b.Height()
}

// IsEmpty reports whether the box has no area.
func (b BBox) IsEmpty() bool {
	return b.Area() == 0
}

// Center returns the centre point.
func (b BBox) Center() (x, y float64) {
	return (b.X0 + b.X1) / 2, (b.Y0 + b.Y1) / 2
}

// Union returns the smallest box containing both boxes.
// An empty receiver is treated as the identity.
func (b BBox) Union(o BBox) BBox {
	if b == (BBox{}) {
		return o
	}
	if o == (BBox{}) {
		return b
	}
	return BBox{
		X0: math.Min(b.X0, o.X0),
		Y0: math.Min(b.Y0, o.Y0),
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
	}
}

// Intersect returns the overlapping region, or the zero box.
func (b BBox) Intersect(o BBox) BBox {
	r := BBox{
		X0: math.Max(b.X0, o.X0),
		Y0: math.Max(b.Y0, o.Y0),
		X1: math.Min(b.X1, o.X1),
		Y1: math.Min(b.Y1, o.Y1),
	}
	if r.X1 <= r.X0 || r.Y1 <= r.Y0 {
		return BBox{}
	}
	return r
}

// Overlaps reports whether the boxes share a region of positive area.
func (b BBox) Overlaps(o BBox) bool {
	return !b.Intersect(o).IsEmpty()
}

// Contains reports whether the point lies inside the box (edges inclusive).
func (b BBox) Contains(x, y float64) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Y0 && y <= b.Y1
}

// IoU returns intersection over union.
func (b BBox) IoU(o BBox) float64 {
	inter := b.Intersect(o).Area()
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Expand grows the box by d on every side.
func (b BBox) Expand(d float64) BBox {
	return BBox{X0: b.X0 - d, Y0: b.Y0 - d, X1: b.X1 + d, Y1: b.Y1 + d}
}

// Scale multiplies every coordinate by f (points to pixels and back).
func (b BBox) Scale(f float64) BBox {
	return BBox{X0: b.X0 * f, Y0: b.Y0 * f, X1: b.X1 * f, Y1: b.Y1 * f}
}

// CenterDistance is the Euclidean distance between the centres of two boxes.
func (b BBox) CenterDistance(o BBox) float64 {
	ax, ay := b.Center()
	bx, by := o.Center()
	return math.Hypot(ax-bx, ay-by)
}

// EdgeDistance is the shortest distance between two boxes, zero when they touch or overlap.
func (b BBox) EdgeDistance(o BBox) float64 {
	dx := math.Max(0, math.Max(b.X0-o.X1, o.X0-b.X1))
	dy := math.Max(0, math.Max(b.Y0-o.Y1, o.Y0-b.Y1))
	return math.Hypot(dx, dy)
}

// VerticalGap returns the empty vertical distance between two boxes, zero if they overlap vertically.
func (b BBox) VerticalGap(o BBox) float64 {
	switch {
	case o.Y0 >= b.Y1:
		return o.Y0 - b.Y1
	case b.Y0 >= o.Y1:
		return b.Y0 - o.Y1
	default:
		return 0
	}
}
