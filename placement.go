// Package placement computes non-overlapping point distributions over a
// rectangular region of a heightmapped world. Density maps express the local
// placement probability per class; a per-layer footprint sets the minimum
// separation between any two placed points.
//
// The package itself is backend-free: it describes the work as a
// [Recording], a typed stream of GPU commands. The
// engine/wgpu_engine package executes recordings on a wgpu device, or on CPU
// reference kernels, and exposes the user-facing pipeline.
package placement

import (
	"errors"
	"fmt"
	"structs"

	"honnef.co/go/placement/pmath"
)

// InvalidClassIndex marks a candidate that has not been assigned to any
// class, or an element slot that holds no element. It is the only sentinel
// shared between host and shader code.
const InvalidClassIndex = ^uint32(0)

// Element is a single placed point. Its layout matches the std430 layout of
// the shader-side Candidate struct: a vec3 position with the class index
// packed into the fourth 32-bit lane, 16 bytes total.
type Element struct {
	_ structs.HostLayout

	Position   pmath.Vec3
	ClassIndex uint32
}

// WorldData describes the world a placement is computed in. Scale maps the
// heightmap's UV square onto world space: a texel at (u, v) corresponds to
// the world position (u*Scale.X, height*Scale.Y, v*Scale.Z).
type WorldData struct {
	Scale     pmath.Vec3
	Heightmap Texture
}

// DensityMap weighs one class. The texture's red channel is the per-location
// placement probability, scaled by Scale.
type DensityMap struct {
	Texture Texture
	Scale   float32
}

// LayerData configures a single placement layer. Footprint is the minimum
// distance between any two placed points, in world units. The density map
// scales must sum to at most one; the remainder is the probability that a
// candidate is rejected.
type LayerData struct {
	Footprint   float32
	DensityMaps []DensityMap
}

// InvalidArgumentError reports a malformed input to the pipeline or to the
// disk distribution generator.
type InvalidArgumentError struct {
	Arg    string
	Reason string
}

func (err *InvalidArgumentError) Error() string {
	return fmt.Sprintf("placement: invalid %s: %s", err.Arg, err.Reason)
}

func invalidArg(arg, reason string) error {
	return &InvalidArgumentError{Arg: arg, Reason: reason}
}

// ErrExhaustedAttempts is returned by [DiskDistributionGenerator.Generate]
// when no new point could be placed within the attempt budget.
var ErrExhaustedAttempts = errors.New("placement: exhausted attempts without placing a point")

// Validate checks the world description. The heightmap must be a non-empty
// RGBA8 texture and the horizontal scale (X and Z) must be positive; the
// vertical scale Y is not checked.
func (w *WorldData) Validate() error {
	if !(w.Scale.X > 0) || !(w.Scale.Z > 0) {
		return invalidArg("world scale", "horizontal extents must be positive")
	}
	if err := w.Heightmap.validate(); err != nil {
		return invalidArg("heightmap", err.Error())
	}
	return nil
}

// Validate checks the layer description against the constraints in the data
// model: a strictly positive footprint and density scales in [0, 1] summing
// to at most one.
func (l *LayerData) Validate() error {
	if !(l.Footprint > 0) {
		// Also rejects NaN.
		return invalidArg("footprint", "must be strictly positive")
	}
	var sum float32
	for i, dm := range l.DensityMaps {
		if dm.Scale < 0 || dm.Scale > 1 {
			return invalidArg("density map scale", fmt.Sprintf("scale %g of class %d outside [0, 1]", dm.Scale, i))
		}
		if err := dm.Texture.validate(); err != nil {
			return invalidArg("density map", fmt.Sprintf("class %d: %s", i, err.Error()))
		}
		sum += dm.Scale
	}
	if sum > 1+pmath.Epsilon {
		return invalidArg("density map scale", fmt.Sprintf("scales sum to %g, exceeding 1", sum))
	}
	return nil
}
