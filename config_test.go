package placement

import (
	"testing"
	"unsafe"

	"honnef.co/go/placement/pmath"
)

func TestStd430Layouts(t *testing.T) {
	if s := unsafe.Sizeof(Element{}); s != 16 {
		t.Errorf("Element is %d bytes, want 16", s)
	}
	if o := unsafe.Offsetof(Element{}.ClassIndex); o != 12 {
		t.Errorf("Element.ClassIndex at offset %d, want 12", o)
	}
	if s := unsafe.Sizeof(pmath.Vec2{}); s != 8 {
		t.Errorf("Vec2 is %d bytes, want 8", s)
	}
	if s := unsafe.Sizeof(GenerationConfig{}); s != 32 {
		t.Errorf("GenerationConfig is %d bytes, want 32", s)
	}
	if s := unsafe.Sizeof(EvaluationConfig{}); s != 32 {
		t.Errorf("EvaluationConfig is %d bytes, want 32", s)
	}
	if s := unsafe.Sizeof(CompactionConfig{}); s != 16 {
		t.Errorf("CompactionConfig is %d bytes, want 16", s)
	}
}

func testStencil(positions int, bounds float32) DiskDistribution {
	return DiskDistribution{
		Positions: make([]pmath.Vec2, positions),
		Bounds:    pmath.V2(bounds, bounds),
	}
}

func testWorld() *WorldData {
	return &WorldData{
		Scale:     pmath.V3(10, 1, 10),
		Heightmap: NewUniformTexture(0),
	}
}

func testLayer(footprint float32, classes int) *LayerData {
	layer := &LayerData{Footprint: footprint}
	for range classes {
		layer.DensityMaps = append(layer.DensityMaps, DensityMap{
			Texture: NewUniformTexture(255),
			Scale:   1 / float32(classes),
		})
	}
	return layer
}

func TestPlacementConfigWorkgroups(t *testing.T) {
	stencil := testStencil(20, 2)
	cfg := NewPlacementConfig(testWorld(), testLayer(0.5, 1), stencil, pmath.V2(0, 0), pmath.V2(5, 5))
	if cfg.GenerationWorkgroups != (WorkgroupCount{3, 3, 1}) {
		t.Errorf("workgroups = %v, want {3 3 1}", cfg.GenerationWorkgroups)
	}
	if cfg.CandidateCount != 3*3*64 {
		t.Errorf("candidate count = %d, want %d", cfg.CandidateCount, 3*3*64)
	}

	// Exact multiples must not add an extra row of workgroups.
	cfg = NewPlacementConfig(testWorld(), testLayer(0.5, 1), stencil, pmath.V2(0, 0), pmath.V2(4, 4))
	if cfg.GenerationWorkgroups != (WorkgroupCount{2, 2, 1}) {
		t.Errorf("workgroups = %v, want {2 2 1}", cfg.GenerationWorkgroups)
	}
}

func TestPlacementConfigEmptyRegion(t *testing.T) {
	stencil := testStencil(20, 2)
	for _, bounds := range [][2]pmath.Vec2{
		{pmath.V2(0, 0), pmath.V2(-1, -1)},
		{pmath.V2(0, 0), pmath.V2(10, -1)},
		{pmath.V2(0, 0), pmath.V2(-1, 10)},
		{pmath.V2(3, 3), pmath.V2(3, 3)},
	} {
		cfg := NewPlacementConfig(testWorld(), testLayer(1, 1), stencil, bounds[0], bounds[1])
		if cfg.CandidateCount != 0 {
			t.Errorf("region %v: candidate count = %d, want 0", bounds, cfg.CandidateCount)
		}
	}
}

func TestPlacementConfigCompactionLinearization(t *testing.T) {
	// A tiny stencil over a large region produces more linear workgroups
	// than fit into one dispatch axis.
	stencil := testStencil(20, 0.01)
	cfg := NewPlacementConfig(testWorld(), testLayer(0.001, 1), stencil, pmath.V2(0, 0), pmath.V2(20, 20))
	wg := cfg.CompactionWorkgroups
	if wg[0] > maxWorkgroupsPerDim || wg[1] > maxWorkgroupsPerDim {
		t.Fatalf("dispatch axis exceeds limit: %v", wg)
	}
	if covered := uint64(wg[0]) * uint64(wg[1]) * compactWorkgroupSize; covered < uint64(cfg.CandidateCount) {
		t.Fatalf("compaction covers %d invocations, need %d", covered, cfg.CandidateCount)
	}
}

func TestPlacementConfigPerClassUniforms(t *testing.T) {
	stencil := testStencil(20, 2)
	cfg := NewPlacementConfig(testWorld(), testLayer(0.5, 3), stencil, pmath.V2(0, 0), pmath.V2(5, 5))
	for class := uint32(0); class < 3; class++ {
		c := cfg.CompactionFor(class)
		if c.BaseOffset != class*cfg.CandidateCount {
			t.Errorf("class %d: base offset %d", class, c.BaseOffset)
		}
		if c.WorkgroupsX != cfg.CompactionWorkgroups[0] {
			t.Errorf("class %d: workgroups x %d", class, c.WorkgroupsX)
		}
		e := cfg.EvaluationFor(class, 0.25)
		if e.ClassIndex != class || e.ClassScale != 0.25 {
			t.Errorf("class %d: evaluation uniform %+v", class, e)
		}
	}
}

func TestLayerDataValidate(t *testing.T) {
	if err := testLayer(0.5, 2).Validate(); err != nil {
		t.Errorf("valid layer rejected: %v", err)
	}
	layer := testLayer(0, 1)
	if err := layer.Validate(); err == nil {
		t.Error("footprint 0 accepted")
	}
	layer = testLayer(0.5, 1)
	layer.DensityMaps[0].Scale = 1.5
	if err := layer.Validate(); err == nil {
		t.Error("scale 1.5 accepted")
	}
	layer = testLayer(0.5, 3)
	for i := range layer.DensityMaps {
		layer.DensityMaps[i].Scale = 0.5
	}
	if err := layer.Validate(); err == nil {
		t.Error("scales summing to 1.5 accepted")
	}
	layer = testLayer(0.5, 1)
	layer.DensityMaps[0].Texture.Pixels = nil
	if err := layer.Validate(); err == nil {
		t.Error("empty density texture accepted")
	}
}
