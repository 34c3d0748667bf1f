package glcompute

import "fmt"

// Kernel selectors written into the params block. Must agree with the
// switch in the generated shader main.
const (
	kernelFace = iota
	kernelEdge
	kernelVertexA
	kernelVertexB
	kernelEditAdd
	kernelEditSet
)

// kernelSource generates the compute shader for a given primvar layout.
// Strides are baked in as constants so the driver can unroll the copy
// loops; one program serves all kernels through the kernel selector.
func kernelSource(vertexWidth, varyingWidth int) string {
	return fmt.Sprintf(kernelTemplate, vertexWidth, varyingWidth)
}

const kernelTemplate = `#shader compute
#version 430

layout(local_size_x = 1) in;

layout(std430, binding = 0) readonly buffer ParamsBlock {
	int uKernel;
	int uPass;
	int uDestFirst;
	int uTableFirst;
	int uCount;
	int uPrimvarOffset;
	int uPrimvarWidth;
	int uPad;
};
layout(std430, binding = 1) buffer VertexBlock { float vertexData[]; };
layout(std430, binding = 2) buffer VaryingBlock { float varyingData[]; };
layout(std430, binding = 3) readonly buffer FITaBlock { int F_ITa[]; };
layout(std430, binding = 4) readonly buffer FITBlock { int F_IT[]; };
layout(std430, binding = 5) readonly buffer EITBlock { int E_IT[]; };
layout(std430, binding = 6) readonly buffer EWBlock { float E_W[]; };
layout(std430, binding = 7) readonly buffer VITaBlock { int V_ITa[]; };
layout(std430, binding = 8) readonly buffer VITBlock { int V_IT[]; };
layout(std430, binding = 9) readonly buffer VWBlock { float V_W[]; };
layout(std430, binding = 10) readonly buffer EditIndexBlock { int editIndices[]; };
layout(std430, binding = 11) readonly buffer EditValueBlock { float editValues[]; };

const int VERTEX_WIDTH = %d;
const int VARYING_WIDTH = %d;

void clearVertex(int dst) {
	for (int k = 0; k < VERTEX_WIDTH; ++k) {
		vertexData[dst*VERTEX_WIDTH+k] = 0.0;
	}
	for (int k = 0; k < VARYING_WIDTH; ++k) {
		varyingData[dst*VARYING_WIDTH+k] = 0.0;
	}
}

void addWithWeight(int dst, int src, float w) {
	for (int k = 0; k < VERTEX_WIDTH; ++k) {
		vertexData[dst*VERTEX_WIDTH+k] += w*vertexData[src*VERTEX_WIDTH+k];
	}
}

void addVaryingWithWeight(int dst, int src, float w) {
	for (int k = 0; k < VARYING_WIDTH; ++k) {
		varyingData[dst*VARYING_WIDTH+k] += w*varyingData[src*VARYING_WIDTH+k];
	}
}

void computeFace(int i) {
	int row = uTableFirst + i;
	int dst = uDestFirst + i;
	int h = F_ITa[2*row+0];
	int n = F_ITa[2*row+1];
	clearVertex(dst);
	float w = 1.0/float(n);
	for (int j = 0; j < n; ++j) {
		int src = F_IT[h+j];
		addWithWeight(dst, src, w);
		addVaryingWithWeight(dst, src, w);
	}
}

void computeEdge(int i) {
	int row = uTableFirst + i;
	int dst = uDestFirst + i;
	int e0 = E_IT[4*row+0];
	int e1 = E_IT[4*row+1];
	int e2 = E_IT[4*row+2];
	int e3 = E_IT[4*row+3];
	float vertWeight = E_W[2*row+0];
	clearVertex(dst);
	addWithWeight(dst, e0, vertWeight);
	addWithWeight(dst, e1, vertWeight);
	if (e2 != -1) {
		float faceWeight = E_W[2*row+1];
		addWithWeight(dst, e2, faceWeight);
		addWithWeight(dst, e3, faceWeight);
	}
	addVaryingWithWeight(dst, e0, 0.5);
	addVaryingWithWeight(dst, e1, 0.5);
}

void computeVertexA(int i) {
	int row = uTableFirst + i;
	int dst = uDestFirst + i;
	int h = V_ITa[5*row+0];
	int n = V_ITa[5*row+1];
	int p = V_ITa[5*row+2];
	int eidx0 = V_ITa[5*row+3];
	int eidx1 = V_ITa[5*row+4];
	bool smoothOwned = n > 0 && h != -1;
	if (uPass == 0) {
		clearVertex(dst);
		addVaryingWithWeight(dst, p, 1.0);
		if (smoothOwned) {
			return;
		}
	}
	float weight = uPass == 1 ? V_W[row] : 1.0 - V_W[row];
	if (weight > 0.0 && weight < 1.0 && n > 0) {
		weight = 1.0 - weight;
	}
	if (eidx0 == -1 || (uPass == 0 && n == -1)) {
		addWithWeight(dst, p, weight);
	} else {
		addWithWeight(dst, p, weight*0.75);
		addWithWeight(dst, eidx0, weight*0.125);
		addWithWeight(dst, eidx1, weight*0.125);
	}
}

void computeVertexB(int i) {
	int row = uTableFirst + i;
	int dst = uDestFirst + i;
	int h = V_ITa[5*row+0];
	int n = V_ITa[5*row+1];
	int p = V_ITa[5*row+2];
	if (n <= 0 || h == -1) {
		return;
	}
	float w = V_W[row];
	if (w >= 1.0) {
		clearVertex(dst);
		addVaryingWithWeight(dst, p, 1.0);
	}
	float wp = 1.0/float(n*n);
	float wv = float(n-2)*float(n)*wp;
	addWithWeight(dst, p, w*wv);
	for (int j = 0; j < n; ++j) {
		addWithWeight(dst, V_IT[h+2*j+0], w*wp);
		addWithWeight(dst, V_IT[h+2*j+1], w*wp);
	}
}

void applyEdit(int i, bool assign) {
	int v = editIndices[i];
	for (int c = 0; c < uPrimvarWidth; ++c) {
		int d = v*VERTEX_WIDTH + uPrimvarOffset + c;
		float val = editValues[i*uPrimvarWidth+c];
		if (assign) {
			vertexData[d] = val;
		} else {
			vertexData[d] += val;
		}
	}
}

void main() {
	int i = int(gl_GlobalInvocationID.x);
	if (i >= uCount) {
		return;
	}
	switch (uKernel) {
	case 0:
		computeFace(i);
		break;
	case 1:
		computeEdge(i);
		break;
	case 2:
		computeVertexA(i);
		break;
	case 3:
		computeVertexB(i);
		break;
	case 4:
		applyEdit(i, false);
		break;
	case 5:
		applyEdit(i, true);
		break;
	}
}
`
