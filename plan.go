package placement

import (
	"honnef.co/go/safeish"

	"honnef.co/go/placement/pmath"
)

// ResultBuffers references the two buffers that survive a placement
// recording: the per-class output ranges and the per-class element counts.
// Both have been downloaded by the recording; the engine retains them until
// they are freed.
type ResultBuffers struct {
	Output BufferProxy
	Counts BufferProxy
}

// RecordPlacement builds the command stream for one placement: candidate
// generation from the stencil tiling, one evaluation pass per density map,
// and per-class compaction (indexation + copy) into the output buffer.
//
// The caller is responsible for validating world and layer, and for not
// passing an empty region; see PlacementConfig.CandidateCount.
func RecordPlacement(kernels *FullKernels, cfg *PlacementConfig, world *WorldData, layer *LayerData, stencil DiskDistribution) (*Recording, ResultBuffers) {
	var rec Recording

	// The stencil buffer always holds StencilCapacity slots; the generation
	// kernel discards slots beyond cfg.Generation.StencilCount.
	slots := make([]pmath.Vec2, StencilCapacity)
	copy(slots, stencil.Positions)

	genConfigBuf := rec.UploadUniform("generation config", safeish.AsBytes(&cfg.Generation))
	stencilBuf := rec.Upload("stencil", safeish.SliceCast[[]byte](slots))
	heightmap := rec.UploadImage(world.Heightmap.Width, world.Heightmap.Height, world.Heightmap.Pixels)

	candidatesBuf := NewBufferProxy(cfg.BufferSizes.Candidates.SizeInBytes(), "candidates")
	worldUVsBuf := NewBufferProxy(cfg.BufferSizes.WorldUVs.SizeInBytes(), "world uvs")
	densitiesBuf := NewBufferProxy(cfg.BufferSizes.Densities.SizeInBytes(), "densities")

	rec.Dispatch(
		kernels.Generation,
		cfg.GenerationWorkgroups,
		[]ResourceProxy{genConfigBuf, stencilBuf, heightmap, candidatesBuf, worldUVsBuf, densitiesBuf},
	)
	rec.FreeBuffer(genConfigBuf)
	rec.FreeBuffer(stencilBuf)
	rec.FreeImage(heightmap)

	// Class assignment runs in class order; each pass advances the
	// cumulative density threshold in densitiesBuf.
	for i, dm := range layer.DensityMaps {
		evalConfig := cfg.EvaluationFor(uint32(i), dm.Scale)
		evalConfigBuf := rec.UploadUniform("evaluation config", safeish.AsBytes(&evalConfig))
		densityMap := rec.UploadImage(dm.Texture.Width, dm.Texture.Height, dm.Texture.Pixels)
		rec.Dispatch(
			kernels.Evaluation,
			cfg.GenerationWorkgroups,
			[]ResourceProxy{evalConfigBuf, densityMap, candidatesBuf, worldUVsBuf, densitiesBuf},
		)
		rec.FreeBuffer(evalConfigBuf)
		rec.FreeImage(densityMap)
	}
	rec.FreeBuffer(worldUVsBuf)
	rec.FreeBuffer(densitiesBuf)

	countsBuf := NewBufferProxy(cfg.BufferSizes.Counts.SizeInBytes(), "counts")
	indicesBuf := NewBufferProxy(cfg.BufferSizes.Indices.SizeInBytes(), "indices")
	outputBuf := NewBufferProxy(cfg.BufferSizes.Output.SizeInBytes(), "output")
	rec.ClearAll(countsBuf)

	// Indexation and copy run per class, reusing the indices buffer. The
	// output buffer is partitioned into one candidate-capacity range per
	// class; CompactionConfig.BaseOffset selects the range.
	for i := range layer.DensityMaps {
		compaction := cfg.CompactionFor(uint32(i))
		compactionBuf := rec.UploadUniform("compaction config", safeish.AsBytes(&compaction))
		rec.Dispatch(
			kernels.Indexation,
			cfg.CompactionWorkgroups,
			[]ResourceProxy{compactionBuf, candidatesBuf, indicesBuf, countsBuf},
		)
		rec.Dispatch(
			kernels.Copy,
			cfg.CompactionWorkgroups,
			[]ResourceProxy{compactionBuf, candidatesBuf, indicesBuf, outputBuf},
		)
		rec.FreeBuffer(compactionBuf)
	}
	rec.FreeBuffer(indicesBuf)
	rec.FreeBuffer(candidatesBuf)

	rec.Download(countsBuf)
	rec.Download(outputBuf)

	return &rec, ResultBuffers{Output: outputBuf, Counts: countsBuf}
}
