// Package geom provides the small amount of 3D math the navigator needs.
//
// The frame is Y-up with +Z forward and +X to the right. Every angle and
// distance used for guidance is taken on the horizontal (XZ) plane so that
// device tilt never changes an instruction.
package geom

import (
	"fmt"
	"math"
)

// Vec3 is a point or direction in 3D space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Common directions.
var (
	Up      = Vec3{Y: 1}
	Forward = Vec3{Z: 1}
	Right   = Vec3{X: 1}
)

// V is shorthand for Vec3{x, y, z}.
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Length returns the Euclidean length of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// SqrDistance returns the squared Euclidean distance between v and o.
func (v Vec3) SqrDistance(o Vec3) float64 {
	d := v.Sub(o)
	return d.Dot(d)
}

// Distance returns the Euclidean distance between v and o.
func (v Vec3) Distance(o Vec3) float64 {
	return math.Sqrt(v.SqrDistance(o))
}

// Flat projects v onto the horizontal plane (Y = 0).
func (v Vec3) Flat() Vec3 {
	return Vec3{X: v.X, Z: v.Z}
}

// FlatDistance is the distance between v and o ignoring height.
func (v Vec3) FlatDistance(o Vec3) float64 {
	return v.Flat().Distance(o.Flat())
}

// Normalized returns v scaled to unit length, or the zero vector when v is
// (nearly) zero.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l < epsilon {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// IsZero reports whether v has (nearly) zero length.
func (v Vec3) IsZero() bool {
	return v.Length() < epsilon
}

// ApproxEqual reports whether every component of v is within tol of o.
func (v Vec3) ApproxEqual(o Vec3, tol float64) bool {
	return math.Abs(v.X-o.X) <= tol &&
		math.Abs(v.Y-o.Y) <= tol &&
		math.Abs(v.Z-o.Z) <= tol
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z)
}

const epsilon = 1e-9

// SignedYaw returns the signed horizontal angle in radians that rotates
// from onto to around the up axis. Positive is clockwise seen from above,
// i.e. +Z towards +X. The result is in (-π, π]. Zero is returned when
// either vector has no horizontal component.
func SignedYaw(from, to Vec3) float64 {
	f := from.Flat().Normalized()
	t := to.Flat().Normalized()
	if f.IsZero() || t.IsZero() {
		return 0
	}
	cross := f.Z*t.X - f.X*t.Z
	dot := f.X*t.X + f.Z*t.Z
	return math.Atan2(cross, dot)
}

// RotateYaw rotates v around the up axis by yaw radians using the same
// convention as SignedYaw, so RotateYaw(a, SignedYaw(a, b)) points along b.
func RotateYaw(v Vec3, yaw float64) Vec3 {
	s, c := math.Sincos(yaw)
	return Vec3{
		X: v.X*c + v.Z*s,
		Y: v.Y,
		Z: -v.X*s + v.Z*c,
	}
}

// Degrees converts radians to degrees.
func Degrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}

// Radians converts degrees to radians.
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}
