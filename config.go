package placement

import (
	"structs"
	"unsafe"

	"honnef.co/go/placement/pmath"
)

// The generation and evaluation kernels run in 8x8 workgroups, one
// invocation per stencil slot.
const (
	workGroupSide   = 8
	StencilCapacity = workGroupSide * workGroupSide
)

// The indexation and copy kernels run in linear workgroups of 64.
const compactWorkgroupSize = 64

// maxWorkgroupsPerDim caps a single dispatch axis. Large candidate counts
// are linearized onto a 2D grid so each axis stays within device limits.
const maxWorkgroupsPerDim = 32768

type WorkgroupCount [3]uint32

// GenerationConfig is the generation kernel's uniform data. Must be kept in
// sync with GenConfig in the WGSL source.
type GenerationConfig struct {
	_ structs.HostLayout

	WorldScale    pmath.Vec3
	StencilCount  uint32
	LowerBound    pmath.Vec2
	StencilBounds pmath.Vec2
}

// EvaluationConfig is the evaluation kernel's uniform data, uploaded once
// per class. Must be kept in sync with EvalConfig in the WGSL source.
type EvaluationConfig struct {
	_ structs.HostLayout

	LowerBound pmath.Vec2
	UpperBound pmath.Vec2
	ClassIndex uint32
	ClassScale float32
	_          [2]uint32
}

// CompactionConfig is the uniform shared by the indexation and copy kernels
// for one class. BaseOffset partitions the output buffer into per-class
// ranges; WorkgroupsX linearizes the 2D dispatch grid back into a candidate
// index. Must be kept in sync with CompactConfig in the WGSL source.
type CompactionConfig struct {
	_ structs.HostLayout

	CandidateCount uint32
	ClassIndex     uint32
	BaseOffset     uint32
	WorkgroupsX    uint32
}

// BufferSize records the element count of a typed GPU buffer.
type BufferSize[T any] uint32

func NewBufferSize[T any](n uint32) BufferSize[T] {
	return BufferSize[T](max(n, 1))
}

func (s BufferSize[T]) SizeInBytes() uint64 {
	return uint64(s) * uint64(unsafe.Sizeof(*new(T)))
}

type BufferSizes struct {
	Candidates BufferSize[Element]
	WorldUVs   BufferSize[pmath.Vec2]
	Densities  BufferSize[float32]
	Indices    BufferSize[uint32]
	Counts     BufferSize[uint32]
	Output     BufferSize[Element]
}

// PlacementConfig derives, from a placement request, everything the planner
// needs: dispatch sizes, buffer sizes and the kernel uniforms.
type PlacementConfig struct {
	Generation GenerationConfig
	LowerBound pmath.Vec2
	UpperBound pmath.Vec2
	NumClasses uint32

	// GenerationWorkgroups tiles the region with the stencil, one 8x8
	// workgroup per tile. Candidate indices are laid out row-major over the
	// resulting invocation grid.
	GenerationWorkgroups WorkgroupCount
	CompactionWorkgroups WorkgroupCount
	CandidateCount       uint32

	BufferSizes BufferSizes
}

// NewPlacementConfig computes the configuration for placing layer within
// [lower, upper) of world using the given stencil. A region that is empty on
// either axis yields a zero CandidateCount.
func NewPlacementConfig(world *WorldData, layer *LayerData, stencil DiskDistribution, lower, upper pmath.Vec2) *PlacementConfig {
	numClasses := uint32(len(layer.DensityMaps))
	cfg := &PlacementConfig{
		Generation: GenerationConfig{
			WorldScale:    world.Scale,
			StencilCount:  uint32(len(stencil.Positions)),
			LowerBound:    lower,
			StencilBounds: stencil.Bounds,
		},
		LowerBound: lower,
		UpperBound: upper,
		NumClasses: numClasses,
	}

	size := upper.Sub(lower)
	if size.X > 0 && size.Y > 0 {
		nx := ceilDivFloat(size.X, stencil.Bounds.X)
		ny := ceilDivFloat(size.Y, stencil.Bounds.Y)
		cfg.GenerationWorkgroups = WorkgroupCount{nx, ny, 1}
		cfg.CandidateCount = nx * ny * StencilCapacity
	}

	compactGroups := max(pmath.CeilDiv(cfg.CandidateCount, compactWorkgroupSize), 1)
	wx := min(compactGroups, uint32(maxWorkgroupsPerDim))
	wy := pmath.CeilDiv(compactGroups, wx)
	cfg.CompactionWorkgroups = WorkgroupCount{wx, wy, 1}

	cfg.BufferSizes = BufferSizes{
		Candidates: NewBufferSize[Element](cfg.CandidateCount),
		WorldUVs:   NewBufferSize[pmath.Vec2](cfg.CandidateCount),
		Densities:  NewBufferSize[float32](cfg.CandidateCount),
		Indices:    NewBufferSize[uint32](cfg.CandidateCount),
		Counts:     NewBufferSize[uint32](numClasses),
		Output:     NewBufferSize[Element](cfg.CandidateCount * numClasses),
	}
	return cfg
}

// CompactionFor returns the per-class uniform for the indexation and copy
// dispatches.
func (cfg *PlacementConfig) CompactionFor(class uint32) CompactionConfig {
	return CompactionConfig{
		CandidateCount: cfg.CandidateCount,
		ClassIndex:     class,
		BaseOffset:     class * cfg.CandidateCount,
		WorkgroupsX:    cfg.CompactionWorkgroups[0],
	}
}

// EvaluationFor returns the per-class uniform for the evaluation dispatch.
func (cfg *PlacementConfig) EvaluationFor(class uint32, scale float32) EvaluationConfig {
	return EvaluationConfig{
		LowerBound: cfg.LowerBound,
		UpperBound: cfg.UpperBound,
		ClassIndex: class,
		ClassScale: scale,
	}
}

func ceilDivFloat(x, y float32) uint32 {
	n := x / y
	f := pmath.Floor32(n)
	if n > f {
		f++
	}
	return uint32(f)
}
