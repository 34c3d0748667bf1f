package wgpucompute

import "fmt"

// workgroupSize is the fixed x dimension of every kernel entry point.
const workgroupSize = 64

// paramsBytes is the dispatch parameter uniform size: pass, destFirst,
// tableFirst, count, primvarOffset, primvarWidth plus padding to a 16-byte
// multiple.
const paramsBytes = 32

// Entry point names, one pipeline each. Kernel selection happens at
// pipeline choice rather than in-shader; the pass flag and ranges travel
// in the params uniform.
const (
	entryFace    = "computeFace"
	entryEdge    = "computeEdge"
	entryVertexA = "computeVertexA"
	entryVertexB = "computeVertexB"
	entryEditAdd = "editAdd"
	entryEditSet = "editSet"
)

// kernelSource generates the WGSL module for a given primvar layout.
// Strides are baked in as constants; a zero varying width compiles the
// varying loops away so the placeholder binding is never touched.
func kernelSource(vertexWidth, varyingWidth int) string {
	return fmt.Sprintf(kernelTemplate, vertexWidth, varyingWidth, workgroupSize,
		workgroupSize, workgroupSize, workgroupSize, workgroupSize, workgroupSize)
}

const kernelTemplate = `struct Params {
	pass_: i32,
	dest_first: i32,
	table_first: i32,
	count: i32,
	primvar_offset: i32,
	primvar_width: i32,
	pad0: i32,
	pad1: i32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> vertex_data: array<f32>;
@group(0) @binding(2) var<storage, read_write> varying_data: array<f32>;
@group(0) @binding(3) var<storage, read> f_ita: array<i32>;
@group(0) @binding(4) var<storage, read> f_it: array<i32>;
@group(0) @binding(5) var<storage, read> e_it: array<i32>;
@group(0) @binding(6) var<storage, read> e_w: array<f32>;
@group(0) @binding(7) var<storage, read> v_ita: array<i32>;
@group(0) @binding(8) var<storage, read> v_it: array<i32>;
@group(0) @binding(9) var<storage, read> v_w: array<f32>;

@group(1) @binding(0) var<storage, read> edit_indices: array<i32>;
@group(1) @binding(1) var<storage, read> edit_values: array<f32>;

const VERTEX_WIDTH: i32 = %d;
const VARYING_WIDTH: i32 = %d;

fn clear_vertex(dst: i32) {
	for (var k = 0; k < VERTEX_WIDTH; k++) {
		vertex_data[dst*VERTEX_WIDTH+k] = 0.0;
	}
	for (var k = 0; k < VARYING_WIDTH; k++) {
		varying_data[dst*VARYING_WIDTH+k] = 0.0;
	}
}

fn add_with_weight(dst: i32, src: i32, w: f32) {
	for (var k = 0; k < VERTEX_WIDTH; k++) {
		vertex_data[dst*VERTEX_WIDTH+k] += w*vertex_data[src*VERTEX_WIDTH+k];
	}
}

fn add_varying_with_weight(dst: i32, src: i32, w: f32) {
	for (var k = 0; k < VARYING_WIDTH; k++) {
		varying_data[dst*VARYING_WIDTH+k] += w*varying_data[src*VARYING_WIDTH+k];
	}
}

@compute @workgroup_size(%d)
fn computeFace(@builtin(global_invocation_id) gid: vec3<u32>) {
	let i = i32(gid.x);
	if (i >= params.count) {
		return;
	}
	let row = params.table_first + i;
	let dst = params.dest_first + i;
	let h = f_ita[2*row+0];
	let n = f_ita[2*row+1];
	clear_vertex(dst);
	let w = 1.0/f32(n);
	for (var j = 0; j < n; j++) {
		let src = f_it[h+j];
		add_with_weight(dst, src, w);
		add_varying_with_weight(dst, src, w);
	}
}

@compute @workgroup_size(%d)
fn computeEdge(@builtin(global_invocation_id) gid: vec3<u32>) {
	let i = i32(gid.x);
	if (i >= params.count) {
		return;
	}
	let row = params.table_first + i;
	let dst = params.dest_first + i;
	let e0 = e_it[4*row+0];
	let e1 = e_it[4*row+1];
	let e2 = e_it[4*row+2];
	let e3 = e_it[4*row+3];
	let vert_weight = e_w[2*row+0];
	clear_vertex(dst);
	add_with_weight(dst, e0, vert_weight);
	add_with_weight(dst, e1, vert_weight);
	if (e2 != -1) {
		let face_weight = e_w[2*row+1];
		add_with_weight(dst, e2, face_weight);
		add_with_weight(dst, e3, face_weight);
	}
	add_varying_with_weight(dst, e0, 0.5);
	add_varying_with_weight(dst, e1, 0.5);
}

@compute @workgroup_size(%d)
fn computeVertexA(@builtin(global_invocation_id) gid: vec3<u32>) {
	let i = i32(gid.x);
	if (i >= params.count) {
		return;
	}
	let row = params.table_first + i;
	let dst = params.dest_first + i;
	let h = v_ita[5*row+0];
	let n = v_ita[5*row+1];
	let p = v_ita[5*row+2];
	let eidx0 = v_ita[5*row+3];
	let eidx1 = v_ita[5*row+4];
	let smooth_owned = n > 0 && h != -1;
	if (params.pass_ == 0) {
		clear_vertex(dst);
		add_varying_with_weight(dst, p, 1.0);
		if (smooth_owned) {
			return;
		}
	}
	var weight = 1.0 - v_w[row];
	if (params.pass_ == 1) {
		weight = v_w[row];
	}
	if (weight > 0.0 && weight < 1.0 && n > 0) {
		weight = 1.0 - weight;
	}
	if (eidx0 == -1 || (params.pass_ == 0 && n == -1)) {
		add_with_weight(dst, p, weight);
	} else {
		add_with_weight(dst, p, weight*0.75);
		add_with_weight(dst, eidx0, weight*0.125);
		add_with_weight(dst, eidx1, weight*0.125);
	}
}

@compute @workgroup_size(%d)
fn computeVertexB(@builtin(global_invocation_id) gid: vec3<u32>) {
	let i = i32(gid.x);
	if (i >= params.count) {
		return;
	}
	let row = params.table_first + i;
	let dst = params.dest_first + i;
	let h = v_ita[5*row+0];
	let n = v_ita[5*row+1];
	let p = v_ita[5*row+2];
	if (n <= 0 || h == -1) {
		return;
	}
	let w = v_w[row];
	if (w >= 1.0) {
		clear_vertex(dst);
		add_varying_with_weight(dst, p, 1.0);
	}
	let wp = 1.0/f32(n*n);
	let wv = f32(n-2)*f32(n)*wp;
	add_with_weight(dst, p, w*wv);
	for (var j = 0; j < n; j++) {
		add_with_weight(dst, v_it[h+2*j+0], w*wp);
		add_with_weight(dst, v_it[h+2*j+1], w*wp);
	}
}

fn apply_edit(i: i32, assign: bool) {
	let v = edit_indices[i];
	for (var c = 0; c < params.primvar_width; c++) {
		let d = v*VERTEX_WIDTH + params.primvar_offset + c;
		let val = edit_values[i*params.primvar_width+c];
		if (assign) {
			vertex_data[d] = val;
		} else {
			vertex_data[d] += val;
		}
	}
}

@compute @workgroup_size(%d)
fn editAdd(@builtin(global_invocation_id) gid: vec3<u32>) {
	let i = i32(gid.x);
	if (i >= params.count) {
		return;
	}
	apply_edit(i, false);
}

@compute @workgroup_size(%d)
fn editSet(@builtin(global_invocation_id) gid: vec3<u32>) {
	let i = i32(gid.x);
	if (i >= params.count) {
		return;
	}
	apply_edit(i, true);
}
`
