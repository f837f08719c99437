package shaders

// The candidate struct and texture sampling are shared verbatim between the
// generation and evaluation kernels. sample_red and hash_position must stay
// in sync with Texture.SampleRed and HashPosition in the placement package;
// the CPU reference shaders rely on producing the same bits.
const commonWGSL = `
const INVALID: u32 = 0xffffffffu;

struct Candidate {
	position: vec3<f32>,
	class_index: u32,
}

fn sample_red(tex: texture_2d<f32>, uv: vec2<f32>) -> f32 {
	let dims = vec2<f32>(textureDimensions(tex));
	let c = clamp(uv, vec2(0.0), vec2(1.0));
	let p = c * dims - vec2(0.5);
	let p0 = floor(p);
	let f = p - p0;
	let max_texel = vec2<i32>(textureDimensions(tex)) - vec2(1);
	let i0 = clamp(vec2<i32>(p0), vec2(0), max_texel);
	let i1 = clamp(vec2<i32>(p0) + vec2(1), vec2(0), max_texel);
	let t00 = textureLoad(tex, vec2(i0.x, i0.y), 0).r;
	let t10 = textureLoad(tex, vec2(i1.x, i0.y), 0).r;
	let t01 = textureLoad(tex, vec2(i0.x, i1.y), 0).r;
	let t11 = textureLoad(tex, vec2(i1.x, i1.y), 0).r;
	let top = mix(t00, t10, f.x);
	let bot = mix(t01, t11, f.x);
	return mix(top, bot, f.y);
}
`

const generationWGSL = commonWGSL + `
struct GenConfig {
	world_scale: vec3<f32>,
	stencil_count: u32,
	lower_bound: vec2<f32>,
	stencil_bounds: vec2<f32>,
}

@group(0) @binding(0) var<uniform> cfg: GenConfig;
@group(0) @binding(1) var<storage, read> stencil: array<vec2<f32>, 64>;
@group(0) @binding(2) var heightmap: texture_2d<f32>;
@group(0) @binding(3) var<storage, read_write> candidates: array<Candidate>;
@group(0) @binding(4) var<storage, read_write> world_uvs: array<vec2<f32>>;
@group(0) @binding(5) var<storage, read_write> densities: array<f32>;

@compute @workgroup_size(8, 8)
fn main(
	@builtin(global_invocation_id) gid: vec3<u32>,
	@builtin(local_invocation_id) lid: vec3<u32>,
	@builtin(workgroup_id) wid: vec3<u32>,
	@builtin(num_workgroups) nwg: vec3<u32>,
) {
	let idx = gid.y * (nwg.x * 8u) + gid.x;
	let slot = lid.y * 8u + lid.x;
	if slot >= cfg.stencil_count {
		// Unused stencil slot: park the candidate far outside any region so
		// no evaluation pass can ever assign it.
		candidates[idx] = Candidate(vec3(3.40282e38), INVALID);
		world_uvs[idx] = vec2(0.0);
		densities[idx] = 0.0;
		return;
	}
	let xz = cfg.lower_bound + vec2<f32>(wid.xy) * cfg.stencil_bounds + stencil[slot];
	let uv = xz / vec2(cfg.world_scale.x, cfg.world_scale.z);
	let height = sample_red(heightmap, uv) * cfg.world_scale.y;
	candidates[idx] = Candidate(vec3(xz.x, height, xz.y), INVALID);
	world_uvs[idx] = uv;
	densities[idx] = 0.0;
}
`

const evaluationWGSL = commonWGSL + `
struct EvalConfig {
	lower_bound: vec2<f32>,
	upper_bound: vec2<f32>,
	class_index: u32,
	class_scale: f32,
}

@group(0) @binding(0) var<uniform> cfg: EvalConfig;
@group(0) @binding(1) var densitymap: texture_2d<f32>;
@group(0) @binding(2) var<storage, read_write> candidates: array<Candidate>;
@group(0) @binding(3) var<storage, read> world_uvs: array<vec2<f32>>;
@group(0) @binding(4) var<storage, read_write> densities: array<f32>;

fn lowbias32(x: u32) -> u32 {
	var h = x;
	h ^= h >> 16u;
	h *= 0x7feb352du;
	h ^= h >> 15u;
	h *= 0x846ca68bu;
	h ^= h >> 16u;
	return h;
}

fn hash_position(uv: vec2<f32>) -> f32 {
	let h = lowbias32(bitcast<u32>(uv.x) ^ lowbias32(bitcast<u32>(uv.y)));
	return f32(h >> 8u) * (1.0 / 16777216.0);
}

@compute @workgroup_size(8, 8)
fn main(
	@builtin(global_invocation_id) gid: vec3<u32>,
	@builtin(num_workgroups) nwg: vec3<u32>,
) {
	let idx = gid.y * (nwg.x * 8u) + gid.x;
	if candidates[idx].class_index != INVALID {
		return;
	}
	let pos = candidates[idx].position;
	if pos.x < cfg.lower_bound.x || pos.z < cfg.lower_bound.y ||
		pos.x >= cfg.upper_bound.x || pos.z >= cfg.upper_bound.y {
		return;
	}
	let uv = world_uvs[idx];
	let r = hash_position(uv);
	let d = sample_red(densitymap, uv);
	let acc = densities[idx];
	let next = acc + d * cfg.class_scale;
	if r >= acc && r < next {
		candidates[idx].class_index = cfg.class_index;
	}
	densities[idx] = next;
}
`

const compactionCommonWGSL = `
const INVALID: u32 = 0xffffffffu;

struct Candidate {
	position: vec3<f32>,
	class_index: u32,
}

struct CompactConfig {
	candidate_count: u32,
	class_index: u32,
	base_offset: u32,
	workgroups_x: u32,
}
`

const indexationWGSL = compactionCommonWGSL + `
@group(0) @binding(0) var<uniform> cfg: CompactConfig;
@group(0) @binding(1) var<storage, read> candidates: array<Candidate>;
@group(0) @binding(2) var<storage, read_write> indices: array<u32>;
@group(0) @binding(3) var<storage, read_write> counts: array<atomic<u32>>;

var<workgroup> prefix: array<u32, 64>;
var<workgroup> wg_base: u32;

@compute @workgroup_size(64)
fn main(
	@builtin(local_invocation_index) li: u32,
	@builtin(workgroup_id) wid: vec3<u32>,
) {
	let wg = wid.y * cfg.workgroups_x + wid.x;
	let gid = wg * 64u + li;
	var valid = 0u;
	if gid < cfg.candidate_count && candidates[gid].class_index == cfg.class_index {
		valid = 1u;
	}
	prefix[li] = valid;
	workgroupBarrier();
	for (var shift = 1u; shift < 64u; shift = shift << 1u) {
		var v = prefix[li];
		if li >= shift {
			v += prefix[li - shift];
		}
		workgroupBarrier();
		prefix[li] = v;
		workgroupBarrier();
	}
	if li == 63u {
		wg_base = atomicAdd(&counts[cfg.class_index], prefix[63u]);
	}
	workgroupBarrier();
	if gid >= cfg.candidate_count {
		return;
	}
	if valid == 1u {
		indices[gid] = wg_base + prefix[li] - 1u;
	} else {
		indices[gid] = INVALID;
	}
}
`

const copyWGSL = compactionCommonWGSL + `
@group(0) @binding(0) var<uniform> cfg: CompactConfig;
@group(0) @binding(1) var<storage, read> candidates: array<Candidate>;
@group(0) @binding(2) var<storage, read> indices: array<u32>;
@group(0) @binding(3) var<storage, read_write> output: array<Candidate>;

@compute @workgroup_size(64)
fn main(
	@builtin(local_invocation_index) li: u32,
	@builtin(workgroup_id) wid: vec3<u32>,
) {
	let wg = wid.y * cfg.workgroups_x + wid.x;
	let gid = wg * 64u + li;
	if gid >= cfg.candidate_count {
		return;
	}
	let ix = indices[gid];
	if ix != INVALID {
		output[cfg.base_offset + ix] = candidates[gid];
	}
}
`
