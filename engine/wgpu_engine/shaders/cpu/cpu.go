// Package cpu provides CPU implementations of the placement kernels.
//
// The kernels replicate the WGSL compute shaders workgroup by workgroup
// instead of using more CPU-friendly formulations. They serve as a reference
// implementation and as a software fallback for hosts without a GPU; being
// bit-compatible with the WGSL sources, they also make the pipeline testable
// without a device.
package cpu

import (
	"fmt"
	"unsafe"

	"honnef.co/go/safeish"

	"honnef.co/go/placement"
	"honnef.co/go/placement/pmath"
)

const wgSide = 8
const compactWG = 64

// Binding is one bound resource: a Buffer or an Image.
type Binding interface {
	isBinding()
}

// Buffer is raw storage shared with the kernels, aliasing the engine's copy
// of the buffer.
type Buffer []byte

func (Buffer) isBinding() {}

// Image is an RGBA8 texture in host memory.
type Image struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

func (Image) isBinding() {}

func (img Image) texture() placement.Texture {
	return placement.Texture{Width: img.Width, Height: img.Height, Pixels: img.Pixels}
}

// Kernel executes one dispatch of wgCount workgroups over the bound
// resources.
type Kernel func(wgCount [3]uint32, resources []Binding)

func fromBytes[E any, T *E](b Binding) T {
	buf := b.(Buffer)
	if uintptr(len(buf)) < unsafe.Sizeof(*new(E)) {
		panic(fmt.Sprintf(
			"buffer of size %d cannot represent object of size %d", len(buf), unsafe.Sizeof(*new(E))))
	}
	return safeish.Cast[T](&buf[0])
}

func sliceFromBytes[T any](b Binding) []T {
	return safeish.SliceCast[[]T](b.(Buffer))
}

// Generation emits one candidate per invocation of the 8x8 workgroup grid,
// stamping the stencil across the region and sampling the heightmap.
func Generation(wgCount [3]uint32, resources []Binding) {
	cfg := fromBytes[placement.GenerationConfig](resources[0])
	stencil := sliceFromBytes[pmath.Vec2](resources[1])
	heightmap := resources[2].(Image).texture()
	candidates := sliceFromBytes[placement.Element](resources[3])
	worldUVs := sliceFromBytes[pmath.Vec2](resources[4])
	densities := sliceFromBytes[float32](resources[5])

	nx := wgCount[0]
	for gy := uint32(0); gy < wgCount[1]*wgSide; gy++ {
		for gx := uint32(0); gx < nx*wgSide; gx++ {
			idx := gy*(nx*wgSide) + gx
			lx, ly := gx%wgSide, gy%wgSide
			wx, wy := gx/wgSide, gy/wgSide
			slot := ly*wgSide + lx
			if slot >= cfg.StencilCount {
				candidates[idx] = placement.Element{
					Position:   pmath.V3(3.40282e38, 3.40282e38, 3.40282e38),
					ClassIndex: placement.InvalidClassIndex,
				}
				worldUVs[idx] = pmath.Vec2{}
				densities[idx] = 0
				continue
			}
			xz := cfg.LowerBound.
				Add(pmath.V2(float32(wx), float32(wy)).Mul(cfg.StencilBounds)).
				Add(stencil[slot])
			uv := pmath.V2(xz.X/cfg.WorldScale.X, xz.Y/cfg.WorldScale.Z)
			height := heightmap.SampleRed(uv.X, uv.Y) * cfg.WorldScale.Y
			candidates[idx] = placement.Element{
				Position:   pmath.V3(xz.X, height, xz.Y),
				ClassIndex: placement.InvalidClassIndex,
			}
			worldUVs[idx] = uv
			densities[idx] = 0
		}
	}
}

// Evaluation assigns unassigned in-bounds candidates to the configured class
// when the position hash falls inside the class's slice of the cumulative
// density.
func Evaluation(wgCount [3]uint32, resources []Binding) {
	cfg := fromBytes[placement.EvaluationConfig](resources[0])
	densityMap := resources[1].(Image).texture()
	candidates := sliceFromBytes[placement.Element](resources[2])
	worldUVs := sliceFromBytes[pmath.Vec2](resources[3])
	densities := sliceFromBytes[float32](resources[4])

	nx := wgCount[0]
	for gy := uint32(0); gy < wgCount[1]*wgSide; gy++ {
		for gx := uint32(0); gx < nx*wgSide; gx++ {
			idx := gy*(nx*wgSide) + gx
			if candidates[idx].ClassIndex != placement.InvalidClassIndex {
				continue
			}
			pos := candidates[idx].Position
			if pos.X < cfg.LowerBound.X || pos.Z < cfg.LowerBound.Y ||
				pos.X >= cfg.UpperBound.X || pos.Z >= cfg.UpperBound.Y {
				continue
			}
			uv := worldUVs[idx]
			r := placement.HashPosition(uv.X, uv.Y)
			d := densityMap.SampleRed(uv.X, uv.Y)
			acc := densities[idx]
			next := acc + d*cfg.ClassScale
			if r >= acc && r < next {
				candidates[idx].ClassIndex = cfg.ClassIndex
			}
			densities[idx] = next
		}
	}
}

// Indexation computes, per workgroup of 64, a prefix sum over the mask of
// candidates matching the configured class, reserves a contiguous range of
// output slots from the class's counter, and writes each matching
// candidate's slot into the index buffer. Non-matching candidates get the
// invalid sentinel.
func Indexation(wgCount [3]uint32, resources []Binding) {
	cfg := fromBytes[placement.CompactionConfig](resources[0])
	candidates := sliceFromBytes[placement.Element](resources[1])
	indices := sliceFromBytes[uint32](resources[2])
	counts := sliceFromBytes[uint32](resources[3])

	var prefix [compactWG]uint32
	numGroups := wgCount[0] * wgCount[1]
	for wg := uint32(0); wg < numGroups; wg++ {
		for li := uint32(0); li < compactWG; li++ {
			gid := wg*compactWG + li
			valid := uint32(0)
			if gid < cfg.CandidateCount && candidates[gid].ClassIndex == cfg.ClassIndex {
				valid = 1
			}
			prefix[li] = valid
		}
		for li := uint32(1); li < compactWG; li++ {
			prefix[li] += prefix[li-1]
		}
		wgBase := counts[cfg.ClassIndex]
		counts[cfg.ClassIndex] += prefix[compactWG-1]
		for li := uint32(0); li < compactWG; li++ {
			gid := wg*compactWG + li
			if gid >= cfg.CandidateCount {
				continue
			}
			if candidates[gid].ClassIndex == cfg.ClassIndex {
				indices[gid] = wgBase + prefix[li] - 1
			} else {
				indices[gid] = placement.InvalidClassIndex
			}
		}
	}
}

// Copy gathers candidates with a valid index into the class's output range.
func Copy(wgCount [3]uint32, resources []Binding) {
	cfg := fromBytes[placement.CompactionConfig](resources[0])
	candidates := sliceFromBytes[placement.Element](resources[1])
	indices := sliceFromBytes[uint32](resources[2])
	output := sliceFromBytes[placement.Element](resources[3])

	numGroups := wgCount[0] * wgCount[1]
	for gid := uint32(0); gid < numGroups*compactWG; gid++ {
		if gid >= cfg.CandidateCount {
			break
		}
		ix := indices[gid]
		if ix != placement.InvalidClassIndex {
			output[cfg.BaseOffset+ix] = candidates[gid]
		}
	}
}
