package placement

import (
	"errors"
	"math"
	"testing"
)

func saturated(t *testing.T, footprint float32, gridW, gridH int, seed uint32) *DiskDistributionGenerator {
	t.Helper()
	gen, err := NewDiskDistributionGenerator(footprint, gridW, gridH)
	if err != nil {
		t.Fatalf("NewDiskDistributionGenerator: %v", err)
	}
	gen.SetMaxAttempts(1000)
	gen.SetSeed(seed)
	gen.Saturate()
	return gen
}

func TestDiskDistributionToroidal(t *testing.T) {
	const footprint = 0.5
	for seed := uint32(0); seed < 5; seed++ {
		gen := saturated(t, footprint, 8, 8, seed)
		positions := gen.Positions()
		bounds := gen.Bounds()
		if len(positions) == 0 {
			t.Fatalf("seed %d: no points generated", seed)
		}
		for i, p := range positions {
			for j, q := range positions {
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if i == j && dx == 0 && dy == 0 {
							continue
						}
						qx := float64(q.X) + float64(dx)*float64(bounds.X)
						qy := float64(q.Y) + float64(dy)*float64(bounds.Y)
						d := math.Hypot(float64(p.X)-qx, float64(p.Y)-qy)
						if d < footprint-1e-5 {
							t.Fatalf("seed %d: points %d and %d at shift (%d, %d) are %g apart, footprint %g",
								seed, i, j, dx, dy, d, footprint)
						}
					}
				}
			}
		}
	}
}

func TestDiskDistributionBounds(t *testing.T) {
	gen := saturated(t, 1.25, 8, 8, 7)
	bounds := gen.Bounds()
	want := float32(8 * 1.25 / math.Sqrt2)
	if diff := bounds.X - want; diff > 1e-4 || diff < -1e-4 {
		t.Errorf("bounds.X = %g, want %g", bounds.X, want)
	}
	for i, p := range gen.Positions() {
		if p.X < 0 || p.X >= bounds.X || p.Y < 0 || p.Y >= bounds.Y {
			t.Errorf("point %d at %v outside [0, %v)", i, p, bounds)
		}
	}
}

func TestDiskDistributionDeterminism(t *testing.T) {
	a := saturated(t, 0.5, 8, 8, 42).Positions()
	b := saturated(t, 0.5, 8, 8, 42).Positions()
	if len(a) != len(b) {
		t.Fatalf("runs generated %d and %d points", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs: %v != %v", i, a[i], b[i])
		}
	}
}

func TestDiskDistributionSetSeedResets(t *testing.T) {
	gen, err := NewDiskDistributionGenerator(0.5, 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gen.Generate(); err != nil {
		t.Fatal(err)
	}
	if _, err := gen.Generate(); err != nil {
		t.Fatal(err)
	}
	gen.SetSeed(99)
	if n := len(gen.Positions()); n != 0 {
		t.Fatalf("SetSeed kept %d points", n)
	}
	if _, err := gen.Generate(); err != nil {
		t.Fatalf("Generate after reseed: %v", err)
	}
}

func TestDiskDistributionExhaustedAttempts(t *testing.T) {
	// A 1x1 grid's tile is too small to hold two points at the footprint, so
	// the second Generate must run out of attempts.
	gen, err := NewDiskDistributionGenerator(1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	gen.SetMaxAttempts(50)
	if _, err := gen.Generate(); err != nil {
		t.Fatalf("first point: %v", err)
	}
	_, err = gen.Generate()
	if !errors.Is(err, ErrExhaustedAttempts) {
		t.Fatalf("second point: got %v, want ErrExhaustedAttempts", err)
	}
}

func TestNewDiskDistributionGeneratorInvalid(t *testing.T) {
	var invalid *InvalidArgumentError
	if _, err := NewDiskDistributionGenerator(0, 8, 8); !errors.As(err, &invalid) {
		t.Errorf("footprint 0: got %v", err)
	}
	if _, err := NewDiskDistributionGenerator(-1, 8, 8); !errors.As(err, &invalid) {
		t.Errorf("footprint -1: got %v", err)
	}
	if _, err := NewDiskDistributionGenerator(float32(math.NaN()), 8, 8); !errors.As(err, &invalid) {
		t.Errorf("footprint NaN: got %v", err)
	}
	if _, err := NewDiskDistributionGenerator(1, 0, 8); !errors.As(err, &invalid) {
		t.Errorf("grid width 0: got %v", err)
	}
}

func TestDiskDistributionScale(t *testing.T) {
	gen := saturated(t, 1, 8, 8, 3)
	unit := gen.Distribution()
	scaled := unit.Scale(2.5)
	if scaled.Bounds.X != unit.Bounds.X*2.5 || scaled.Bounds.Y != unit.Bounds.Y*2.5 {
		t.Errorf("scaled bounds %v, unit bounds %v", scaled.Bounds, unit.Bounds)
	}
	for i := range unit.Positions {
		want := unit.Positions[i].Scale(2.5)
		if scaled.Positions[i] != want {
			t.Errorf("position %d: %v, want %v", i, scaled.Positions[i], want)
		}
	}
}
