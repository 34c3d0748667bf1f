package subdiv

// Scalar reference kernels. Every compute backend must reproduce these
// numbers exactly; the GPU kernel sources are line-for-line translations.

// VertexData is the host-visible arena of primvar data the kernels read and
// write. Vertex holds the position-class channel, VertexStride scalars per
// vertex; Varying optionally holds a varying channel with its own stride.
// Stencil source indices are offsets into this arena, never addresses.
type VertexData struct {
	Vertex       []float32
	VertexStride int

	Varying       []float32
	VaryingStride int
}

// NumVertices returns the vertex capacity of the position channel.
func (v *VertexData) NumVertices() int {
	if v.VertexStride == 0 {
		return 0
	}
	return len(v.Vertex) / v.VertexStride
}

func (v *VertexData) clear(i int) {
	d := v.Vertex[i*v.VertexStride : (i+1)*v.VertexStride]
	for k := range d {
		d[k] = 0
	}
	if v.VaryingStride > 0 {
		d = v.Varying[i*v.VaryingStride : (i+1)*v.VaryingStride]
		for k := range d {
			d[k] = 0
		}
	}
}

func (v *VertexData) addWithWeight(dst, src int, weight float32) {
	d := v.Vertex[dst*v.VertexStride : (dst+1)*v.VertexStride]
	s := v.Vertex[src*v.VertexStride : (src+1)*v.VertexStride]
	for k := range d {
		d[k] += weight * s[k]
	}
}

func (v *VertexData) addVaryingWithWeight(dst, src int, weight float32) {
	if v.VaryingStride == 0 {
		return
	}
	d := v.Varying[dst*v.VaryingStride : (dst+1)*v.VaryingStride]
	s := v.Varying[src*v.VaryingStride : (src+1)*v.VaryingStride]
	for k := range d {
		d[k] += weight * s[k]
	}
}

// Apply runs one kernel batch over the destination rows [start, end), given
// relative to the batch. Any partition of [0, b.Count) across goroutines is
// safe since no destination's computation reads another destination of the
// same batch; batches themselves must execute in LevelSequence order with a
// barrier between consecutive batches.
func (t *Tables) Apply(b KernelBatch, v *VertexData, start, end int) {
	switch b.Kernel {
	case KernelFace:
		t.computeFacePoints(v, b.DestFirst, b.TableFirst, start, end)
	case KernelEdge:
		t.computeEdgePoints(v, b.DestFirst, b.TableFirst, start, end)
	case KernelVertexA:
		t.computeVertexPointsA(v, b.DestFirst, b.TableFirst, start, end, b.Pass)
	case KernelVertexB:
		t.computeVertexPointsB(v, b.DestFirst, b.TableFirst, start, end)
	}
}

// Face point kernel: uniform average of the parent face's ring, same rule
// for the position and the varying channel. Completely re-entrant.
func (t *Tables) computeFacePoints(v *VertexData, destFirst, tableFirst, start, end int) {
	for j := start; j < end; j++ {
		dst := destFirst + j
		v.clear(dst)
		s := t.faceStencilAt(tableFirst + j)
		weight := 1 / float32(len(s.Ring))
		for _, src := range s.Ring {
			v.addWithWeight(dst, int(src), weight)
			v.addVaryingWithWeight(dst, int(src), weight)
		}
	}
}

// Edge point kernel: endpoint average plus an optional fractional sharpness
// face point term. The varying channel is always the plain edge midpoint.
func (t *Tables) computeEdgePoints(v *VertexData, destFirst, tableFirst, start, end int) {
	for j := start; j < end; j++ {
		dst := destFirst + j
		v.clear(dst)
		s := t.edgeStencilAt(tableFirst + j)
		v.addWithWeight(dst, int(s.V0), s.VertWeight)
		v.addWithWeight(dst, int(s.V1), s.VertWeight)
		if s.FacePoints {
			v.addWithWeight(dst, int(s.F0), s.FaceWeight)
			v.addWithWeight(dst, int(s.F1), s.FaceWeight)
		}
		v.addVaryingWithWeight(dst, int(s.V0), 0.5)
		v.addVaryingWithWeight(dst, int(s.V1), 0.5)
	}
}

// Vertex point kernel A handles the corner and crease rules in two passes
// over the same index range. Pass 0 clears the destination, writes the
// varying parent and the fractional contribution; pass 1 adds the
// complementary contribution without re-clearing. Stencils owned by the
// smooth kernel contribute position only on pass 1 so that kernel B's
// accumulation (or clear, for the fully smooth case) completes the blend.
func (t *Tables) computeVertexPointsA(v *VertexData, destFirst, tableFirst, start, end int, pass bool) {
	for j := start; j < end; j++ {
		dst := destFirst + j
		s := t.vertexStencilAt(tableFirst + j)
		if !pass {
			v.clear(dst)
			v.addVaryingWithWeight(dst, int(s.Parent), 1)
			if s.smoothOwned() {
				// Pass 0 of a semi-sharp blend is the smooth kernel's share.
				continue
			}
		}

		weight := s.Weight
		if !pass {
			weight = 1 - s.Weight
		}
		// With fractional weight the value is shared with the smooth kernel
		// and must be inverted; statistically the smooth kernel runs much
		// more often than this one.
		if weight > 0 && weight < 1 && s.Valence > 0 {
			weight = 1 - weight
		}

		// A corner/crease combination keeps valid crease edge indices, so a
		// -1 valence marks the corner half of the pair.
		if !s.HasCrease || (!pass && s.Valence == -1) {
			v.addWithWeight(dst, int(s.Parent), weight)
		} else {
			v.addWithWeight(dst, int(s.Parent), weight*0.75)
			v.addWithWeight(dst, int(s.Crease0), weight*0.125)
			v.addWithWeight(dst, int(s.Crease1), weight*0.125)
		}
	}
}

// Vertex point kernel B handles the smooth and dart rules. It is inert for
// stencils owned by kernel A; for semi-sharp blends (0 < w < 1) it
// accumulates on top of kernel A's passes instead of clearing.
func (t *Tables) computeVertexPointsB(v *VertexData, destFirst, tableFirst, start, end int) {
	for j := start; j < end; j++ {
		dst := destFirst + j
		s := t.vertexStencilAt(tableFirst + j)
		if !s.smoothOwned() {
			continue
		}
		if s.Weight >= 1 {
			v.clear(dst)
			v.addVaryingWithWeight(dst, int(s.Parent), 1)
		}
		n := float32(s.Valence)
		wp := 1 / (n * n)
		wv := (n - 2) * n * wp
		v.addWithWeight(dst, int(s.Parent), s.Weight*wv)
		for k := 0; k < int(s.Valence); k++ {
			v.addWithWeight(dst, int(s.Ring[2*k]), s.Weight*wp)
			v.addWithWeight(dst, int(s.Ring[2*k+1]), s.Weight*wp)
		}
	}
}
