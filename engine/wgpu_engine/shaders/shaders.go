// Package shaders holds the WGSL sources and binding metadata of the
// placement kernels.
package shaders

import "honnef.co/go/placement"

// ComputeShader describes one kernel: its WGSL source and the access types
// of its bindings, in binding order.
type ComputeShader struct {
	Name          string
	WorkgroupSize [3]uint32
	Bindings      []placement.BindType
	WGSL          []byte
}

// Collection lists the four placement kernels. Field names match the fields
// of placement.FullKernels; the engine wires them up by reflection.
var Collection = struct {
	Generation ComputeShader
	Evaluation ComputeShader
	Indexation ComputeShader
	Copy       ComputeShader
}{
	Generation: ComputeShader{
		Name:          "generation",
		WorkgroupSize: [3]uint32{8, 8, 1},
		Bindings: []placement.BindType{
			placement.BindTypeUniform,
			placement.BindTypeBufReadOnly,
			placement.BindTypeImageRead,
			placement.BindTypeBuffer,
			placement.BindTypeBuffer,
			placement.BindTypeBuffer,
		},
		WGSL: []byte(generationWGSL),
	},
	Evaluation: ComputeShader{
		Name:          "evaluation",
		WorkgroupSize: [3]uint32{8, 8, 1},
		Bindings: []placement.BindType{
			placement.BindTypeUniform,
			placement.BindTypeImageRead,
			placement.BindTypeBuffer,
			placement.BindTypeBufReadOnly,
			placement.BindTypeBuffer,
		},
		WGSL: []byte(evaluationWGSL),
	},
	Indexation: ComputeShader{
		Name:          "indexation",
		WorkgroupSize: [3]uint32{64, 1, 1},
		Bindings: []placement.BindType{
			placement.BindTypeUniform,
			placement.BindTypeBufReadOnly,
			placement.BindTypeBuffer,
			placement.BindTypeBuffer,
		},
		WGSL: []byte(indexationWGSL),
	},
	Copy: ComputeShader{
		Name:          "copy",
		WorkgroupSize: [3]uint32{64, 1, 1},
		Bindings: []placement.BindType{
			placement.BindTypeUniform,
			placement.BindTypeBufReadOnly,
			placement.BindTypeBufReadOnly,
			placement.BindTypeBuffer,
		},
		WGSL: []byte(copyWGSL),
	},
}
