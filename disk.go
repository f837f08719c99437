package placement

import (
	"fmt"
	"math"
	"math/rand"

	"honnef.co/go/curve"

	"honnef.co/go/placement/pmath"
)

// DiskDistribution is a finite set of 2D positions inside a rectangular tile
// that respects a minimum separation under toroidal wrapping. Repeating the
// tile over the plane therefore yields a globally collision-free point set,
// which is what lets the generation kernel stamp it per workgroup without
// any cross-workgroup collision checks.
type DiskDistribution struct {
	Positions []pmath.Vec2
	Bounds    pmath.Vec2
}

// Scale returns the distribution scaled by f. A unit-footprint distribution
// scaled by a layer's footprint is that layer's stencil.
func (d DiskDistribution) Scale(f float32) DiskDistribution {
	positions := make([]pmath.Vec2, len(d.Positions))
	for i, p := range d.Positions {
		positions[i] = p.Scale(f)
	}
	return DiskDistribution{
		Positions: positions,
		Bounds:    d.Bounds.Scale(f),
	}
}

// DefaultMaxAttempts is the per-point attempt budget of a freshly
// constructed generator.
const DefaultMaxAttempts = 100

// DiskDistributionGenerator produces toroidally tileable Poisson-disk
// distributions by dart throwing over an acceleration grid. Cells have a
// diagonal equal to the footprint, so each cell holds at most one point and a
// candidate can only collide with points in its 5x5 cell neighborhood (a
// colliding point may lie up to two cells away along one axis).
//
// The generator is deterministic: the same seed yields the same sequence of
// points. Distances are computed in float64 and positions truncated to
// float32 on output.
type DiskDistributionGenerator struct {
	footprint   float64
	gridWidth   int
	gridHeight  int
	bounds      curve.Vec2
	cellSize    float64
	maxAttempts int

	rng       *rand.Rand
	positions []curve.Vec2
	// One point index per cell, -1 when empty.
	grid []int32
}

// NewDiskDistributionGenerator constructs a generator for the given minimum
// separation and acceleration grid. The tile bounds are
// gridSize*footprint/sqrt2 per axis. The initial seed is zero.
func NewDiskDistributionGenerator(footprint float32, gridWidth, gridHeight int) (*DiskDistributionGenerator, error) {
	if !(footprint > 0) {
		return nil, invalidArg("footprint", "must be strictly positive")
	}
	if gridWidth < 1 || gridHeight < 1 {
		return nil, invalidArg("grid size", fmt.Sprintf("(%d, %d) has an empty axis", gridWidth, gridHeight))
	}
	g := &DiskDistributionGenerator{
		footprint:   float64(footprint),
		gridWidth:   gridWidth,
		gridHeight:  gridHeight,
		cellSize:    float64(footprint) / math.Sqrt2,
		maxAttempts: DefaultMaxAttempts,
		grid:        make([]int32, gridWidth*gridHeight),
	}
	g.bounds = curve.Vec2{X: float64(gridWidth) * g.cellSize, Y: float64(gridHeight) * g.cellSize}
	g.SetSeed(0)
	return g, nil
}

// SetSeed resets the generator: the accumulated distribution is discarded
// and the PRNG restarts from seed.
func (g *DiskDistributionGenerator) SetSeed(seed uint32) {
	g.rng = rand.New(rand.NewSource(int64(seed)))
	g.positions = g.positions[:0]
	for i := range g.grid {
		g.grid[i] = -1
	}
}

// SetMaxAttempts sets the per-point attempt budget used by Generate.
func (g *DiskDistributionGenerator) SetMaxAttempts(n int) {
	g.maxAttempts = n
}

// Bounds returns the tile dimensions.
func (g *DiskDistributionGenerator) Bounds() pmath.Vec2 {
	return pmath.V2(float32(g.bounds.X), float32(g.bounds.Y))
}

// Positions returns the accumulated points.
func (g *DiskDistributionGenerator) Positions() []pmath.Vec2 {
	out := make([]pmath.Vec2, len(g.positions))
	for i, p := range g.positions {
		out[i] = pmath.V2(float32(p.X), float32(p.Y))
	}
	return out
}

// Distribution returns the accumulated points and tile bounds as a
// DiskDistribution.
func (g *DiskDistributionGenerator) Distribution() DiskDistribution {
	return DiskDistribution{
		Positions: g.Positions(),
		Bounds:    g.Bounds(),
	}
}

// Generate places one new point and returns it. It fails with
// [ErrExhaustedAttempts] after maxAttempts consecutive rejected darts.
func (g *DiskDistributionGenerator) Generate() (pmath.Vec2, error) {
	for range g.maxAttempts {
		p := curve.Vec2{
			X: g.rng.Float64() * g.bounds.X,
			Y: g.rng.Float64() * g.bounds.Y,
		}
		if g.collides(p) {
			continue
		}
		cx, cy := g.cellOf(p)
		g.grid[cy*g.gridWidth+cx] = int32(len(g.positions))
		g.positions = append(g.positions, p)
		return pmath.V2(float32(p.X), float32(p.Y)), nil
	}
	return pmath.Vec2{}, ErrExhaustedAttempts
}

// Saturate generates points until the attempt budget is exhausted, leaving
// the distribution jammed: with a generous budget, every disk of radius
// footprint inside the tile contains a point with overwhelming probability.
func (g *DiskDistributionGenerator) Saturate() {
	for {
		if _, err := g.Generate(); err != nil {
			return
		}
	}
}

func (g *DiskDistributionGenerator) cellOf(p curve.Vec2) (int, int) {
	cx := min(int(p.X/g.cellSize), g.gridWidth-1)
	cy := min(int(p.Y/g.cellSize), g.gridHeight-1)
	return cx, cy
}

// collides reports whether p is closer than footprint to any accumulated
// point under the minimal toroidal image. Points at exactly the footprint
// are permitted.
func (g *DiskDistributionGenerator) collides(p curve.Vec2) bool {
	cx, cy := g.cellOf(p)
	for oy := -2; oy <= 2; oy++ {
		for ox := -2; ox <= 2; ox++ {
			nx := (cx + ox + 2*g.gridWidth) % g.gridWidth
			ny := (cy + oy + 2*g.gridHeight) % g.gridHeight
			i := g.grid[ny*g.gridWidth+nx]
			if i < 0 {
				continue
			}
			if g.toroidalDistance(p, g.positions[i]) < g.footprint {
				return true
			}
		}
	}
	return false
}

func (g *DiskDistributionGenerator) toroidalDistance(p, q curve.Vec2) float64 {
	dx := math.Abs(p.X - q.X)
	dy := math.Abs(p.Y - q.Y)
	dx = min(dx, g.bounds.X-dx)
	dy = min(dy, g.bounds.Y-dy)
	return math.Hypot(dx, dy)
}
