package wgpu_engine

import (
	"honnef.co/go/wgpu"

	"honnef.co/go/placement"
	"honnef.co/go/placement/pmath"
)

// Options configures a Pipeline.
type Options struct {
	// UseCPU runs every kernel on the CPU reference implementation instead
	// of the device. The device and queue may then be nil.
	UseCPU bool

	// StencilSeed seeds the disk distribution that the generation kernel
	// stamps across the placement region. Placements are a pure function of
	// their inputs and this seed.
	StencilSeed uint32

	// StencilGridSize overrides the acceleration grid of the stencil
	// generator. The zero value selects the 8x8 default.
	StencilGridSize [2]int

	// MaxAttempts overrides the stencil generator's per-point attempt
	// budget. The zero value selects a budget suited for saturation.
	MaxAttempts int

	// Profiler, when non-nil, collects per-stage spans for every
	// ComputePlacement call.
	Profiler *Profiler
}

// saturationAttempts is the default per-point budget when saturating the
// stencil. Saturation quality, not throughput, is what matters here: the
// stencil is built once per pipeline.
const saturationAttempts = 1000

// Pipeline owns the four compiled placement kernels and the unit-footprint
// stencil. Kernels are compiled once at construction; each ComputePlacement
// call records and submits one command stream.
type Pipeline struct {
	eng         *Engine
	kernels     placement.FullKernels
	unitStencil placement.DiskDistribution
	prof        *Profiler
}

// New creates a pipeline on dev. With opts.UseCPU, dev may be nil and all
// work runs on the CPU reference kernels.
func New(dev *wgpu.Device, opts *Options) (*Pipeline, error) {
	if opts == nil {
		opts = &Options{}
	}
	gridW, gridH := opts.StencilGridSize[0], opts.StencilGridSize[1]
	if gridW == 0 && gridH == 0 {
		gridW, gridH = 8, 8
	}
	gen, err := placement.NewDiskDistributionGenerator(1, gridW, gridH)
	if err != nil {
		return nil, err
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = saturationAttempts
	}
	gen.SetMaxAttempts(maxAttempts)
	gen.SetSeed(opts.StencilSeed)
	gen.Saturate()
	stencil := gen.Distribution()
	if len(stencil.Positions) > placement.StencilCapacity {
		stencil.Positions = stencil.Positions[:placement.StencilCapacity]
	}

	eng := newEngine(dev, opts.UseCPU)
	kernels := eng.newFullKernels()
	return &Pipeline{
		eng:         eng,
		kernels:     kernels,
		unitStencil: stencil,
		prof:        opts.Profiler,
	}, nil
}

// Stencil returns the unit-footprint disk distribution used by the
// generation kernel, scaled by footprint per layer.
func (p *Pipeline) Stencil() placement.DiskDistribution {
	return p.unitStencil
}

// ComputePlacement computes a placement of layer over [lower, upper) of
// world. The command stream is submitted before returning, but the call does
// not wait for GPU completion; the Result blocks on its first read. A region
// that is empty on either axis yields an empty Result.
func (p *Pipeline) ComputePlacement(queue *wgpu.Queue, world placement.WorldData, layer placement.LayerData, lower, upper pmath.Vec2) (*Result, error) {
	pg := p.prof.Begin("compute placement")
	defer pg.End()

	if err := world.Validate(); err != nil {
		return nil, err
	}
	if err := layer.Validate(); err != nil {
		return nil, err
	}

	stencil := p.unitStencil.Scale(layer.Footprint)
	cfg := placement.NewPlacementConfig(&world, &layer, stencil, lower, upper)
	if cfg.CandidateCount == 0 || cfg.NumClasses == 0 {
		return &Result{numClasses: int(cfg.NumClasses)}, nil
	}

	rpg := pg.Nest("record")
	recording, buffers := placement.RecordPlacement(&p.kernels, cfg, &world, &layer, stencil)
	rpg.End()

	spg := pg.Nest("submit")
	p.eng.RunRecording(queue, recording, "compute placement")
	spg.End()

	return &Result{
		eng:            p.eng,
		buffers:        buffers,
		numClasses:     int(cfg.NumClasses),
		candidateCount: cfg.CandidateCount,
	}, nil
}
