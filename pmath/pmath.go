// Package pmath provides the small amount of vector and layout math shared
// between the CPU and GPU halves of the placement pipeline. All types are
// layout-compatible with their WGSL counterparts.
package pmath

import (
	"structs"

	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
)

// Epsilon is the tolerance used when comparing accumulated float32
// quantities, such as density scale sums.
const Epsilon = 1e-6

type Vec2 struct {
	_ structs.HostLayout

	X float32
	Y float32
}

func V2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Mul returns the componentwise product of v and o.
func (v Vec2) Mul(o Vec2) Vec2 {
	return Vec2{X: v.X * o.X, Y: v.Y * o.Y}
}

func (v Vec2) Scale(f float32) Vec2 {
	return Vec2{X: v.X * f, Y: v.Y * f}
}

func (v Vec2) Hypot() float32 {
	return math32.Hypot(v.X, v.Y)
}

// Distance returns the Euclidean distance between v and o.
func (v Vec2) Distance(o Vec2) float32 {
	return v.Sub(o).Hypot()
}

type Vec3 struct {
	_ structs.HostLayout

	X float32
	Y float32
	Z float32
}

func V3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// XZ returns the horizontal components of v. World positions store height in
// Y; placement bounds and distances are measured on the XZ plane.
func (v Vec3) XZ() Vec2 {
	return Vec2{X: v.X, Y: v.Z}
}

func AlignUp[T constraints.Integer](x, alignment T) T {
	r := x % alignment
	if r == 0 {
		return x
	}
	return x + alignment - r
}

func CeilDiv[T constraints.Integer](x, y T) T {
	return (x + y - 1) / y
}

// Clamp01 clamps x to the unit interval.
func Clamp01(x float32) float32 {
	return min(max(x, 0), 1)
}

// Mix linearly interpolates between a and b, matching WGSL's mix builtin so
// that CPU texture sampling reproduces the GPU result.
func Mix(a, b, t float32) float32 {
	return a + (b-a)*t
}

func Floor32(x float32) float32 {
	return math32.Floor(x)
}
