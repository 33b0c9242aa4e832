package model

import "gonum.org/v1/gonum/spatial/r2"

// Point is a location in the plane.
type Point = r2.Vec

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Distance returns the euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return r2.Norm(r2.Sub(b, a))
}

// PositionTolerance is the maximum distance at which two points are
// considered the same position.
const PositionTolerance = 1e-9

// SamePosition reports whether a and b are within PositionTolerance.
func SamePosition(a, b Point) bool {
	return Distance(a, b) <= PositionTolerance
}

// Towards returns the point reached after moving dist from a towards b. The
// target is returned when dist covers the whole segment.
func Towards(a, b Point, dist float64) Point {
	total := Distance(a, b)
	if dist >= total || total == 0 {
		return b
	}
	return r2.Add(a, r2.Scale(dist/total, r2.Sub(b, a)))
}
