package cpu

import (
	"math/rand"
	"testing"

	"honnef.co/go/safeish"

	"honnef.co/go/placement"
	"honnef.co/go/placement/pmath"
)

func compactionSetup(n uint32, rng *rand.Rand) ([]placement.Element, placement.CompactionConfig, [3]uint32) {
	candidates := make([]placement.Element, n)
	for i := range candidates {
		candidates[i].Position = pmath.V3(float32(i), 0, float32(i))
		if rng.Intn(2) == 0 {
			candidates[i].ClassIndex = 0
		} else {
			candidates[i].ClassIndex = placement.InvalidClassIndex
		}
	}
	groups := (n + compactWG - 1) / compactWG
	cfg := placement.CompactionConfig{
		CandidateCount: n,
		ClassIndex:     0,
		BaseOffset:     0,
		WorkgroupsX:    max(groups, 1),
	}
	return candidates, cfg, [3]uint32{max(groups, 1), 1, 1}
}

func TestIndexationPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []uint32{10, 20, 64, 333, 1024, 15000} {
		candidates, cfg, wg := compactionSetup(n, rng)
		indices := make([]uint32, n)
		counts := make([]uint32, 1)
		Indexation(wg, []Binding{
			Buffer(safeish.AsBytes(&cfg)),
			Buffer(safeish.SliceCast[[]byte](candidates)),
			Buffer(safeish.SliceCast[[]byte](indices)),
			Buffer(safeish.SliceCast[[]byte](counts)),
		})

		var wantValid uint32
		for _, c := range candidates {
			if c.ClassIndex == 0 {
				wantValid++
			}
		}
		if counts[0] != wantValid {
			t.Errorf("n=%d: count = %d, want %d", n, counts[0], wantValid)
		}

		seen := make([]bool, wantValid)
		for i, ix := range indices {
			if candidates[i].ClassIndex != 0 {
				if ix != placement.InvalidClassIndex {
					t.Errorf("n=%d: rejected candidate %d got index %d", n, i, ix)
				}
				continue
			}
			if ix >= wantValid {
				t.Errorf("n=%d: candidate %d index %d out of range %d", n, i, ix, wantValid)
				continue
			}
			if seen[ix] {
				t.Errorf("n=%d: index %d assigned twice", n, ix)
			}
			seen[ix] = true
		}
		for ix, ok := range seen {
			if !ok {
				t.Errorf("n=%d: index %d never assigned", n, ix)
			}
		}
	}
}

func TestCopyGather(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, n := range []uint32{10, 64, 333, 1024} {
		candidates, cfg, wg := compactionSetup(n, rng)
		indices := make([]uint32, n)
		counts := make([]uint32, 1)
		Indexation(wg, []Binding{
			Buffer(safeish.AsBytes(&cfg)),
			Buffer(safeish.SliceCast[[]byte](candidates)),
			Buffer(safeish.SliceCast[[]byte](indices)),
			Buffer(safeish.SliceCast[[]byte](counts)),
		})

		output := make([]placement.Element, n)
		for i := range output {
			output[i].ClassIndex = 0xdeadbeef
		}
		Copy(wg, []Binding{
			Buffer(safeish.AsBytes(&cfg)),
			Buffer(safeish.SliceCast[[]byte](candidates)),
			Buffer(safeish.SliceCast[[]byte](indices)),
			Buffer(safeish.SliceCast[[]byte](output)),
		})

		for i, ix := range indices {
			if ix == placement.InvalidClassIndex {
				continue
			}
			if output[ix] != candidates[i] {
				t.Errorf("n=%d: output[%d] = %+v, want candidate %d", n, ix, output[ix], i)
			}
		}
		for i := counts[0]; i < n; i++ {
			if output[i].ClassIndex != 0xdeadbeef {
				t.Errorf("n=%d: slot %d past count was written", n, i)
			}
		}
	}
}

func TestIndexationWorkgroupOrder(t *testing.T) {
	// Within a workgroup the relative order of valid candidates is
	// preserved by the prefix sum.
	n := uint32(64)
	candidates := make([]placement.Element, n)
	for i := range candidates {
		if i%3 == 0 {
			candidates[i].ClassIndex = 0
		} else {
			candidates[i].ClassIndex = placement.InvalidClassIndex
		}
	}
	cfg := placement.CompactionConfig{CandidateCount: n, ClassIndex: 0, WorkgroupsX: 1}
	indices := make([]uint32, n)
	counts := make([]uint32, 1)
	Indexation([3]uint32{1, 1, 1}, []Binding{
		Buffer(safeish.AsBytes(&cfg)),
		Buffer(safeish.SliceCast[[]byte](candidates)),
		Buffer(safeish.SliceCast[[]byte](indices)),
		Buffer(safeish.SliceCast[[]byte](counts)),
	})
	want := uint32(0)
	for i := range candidates {
		if candidates[i].ClassIndex != 0 {
			continue
		}
		if indices[i] != want {
			t.Errorf("candidate %d: index %d, want %d", i, indices[i], want)
		}
		want++
	}
}
