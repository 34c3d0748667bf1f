package subdiv_test

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"

	"github.com/soypat/subdiv"
)

const tol = 1e-6

// quadTables builds one refinement level over a single quad cage: one face
// point, four sharp edge points and four pinned vertex points.
func quadTables(t *testing.T) *subdiv.Tables {
	t.Helper()
	set := subdiv.TableSet{
		Scheme:            subdiv.SchemeCatmark,
		NumCoarseVertices: 4,
		Levels: []subdiv.LevelRange{{
			FaceFirst: 4, FaceCount: 1, FaceTable: 0,
			EdgeFirst: 5, EdgeCount: 4, EdgeTable: 0,
			VertFirst: 9, VertCount: 4, VertTable: 0,
		}},
		F_ITa: []int32{0, 4},
		F_IT:  []int32{0, 1, 2, 3},
		E_IT: []int32{
			0, 1, -1, -1,
			1, 2, -1, -1,
			2, 3, -1, -1,
			3, 0, -1, -1,
		},
		E_W: []float32{0.5, 0, 0.5, 0, 0.5, 0, 0.5, 0},
		V_ITa: []int32{
			-1, 0, 0, -1, -1,
			-1, 0, 1, -1, -1,
			-1, 0, 2, -1, -1,
			-1, 0, 3, -1, -1,
		},
		V_W: []float32{1, 1, 1, 1},
	}
	tb, err := subdiv.NewTables(set)
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

func refineAll(t *testing.T, tb *subdiv.Tables, v *subdiv.VertexData) {
	t.Helper()
	for level := 1; level <= tb.MaxLevel(); level++ {
		batches, err := tb.LevelSequence(level)
		if err != nil {
			t.Fatal(err)
		}
		for _, b := range batches {
			tb.Apply(b, v, 0, b.Count)
		}
	}
}

func TestQuadRefinement(t *testing.T) {
	tb := quadTables(t)
	nv, err := tb.NumVertices(1)
	if err != nil {
		t.Fatal(err)
	}
	if nv != 13 {
		t.Fatalf("quad level 1 needs 13 vertices, got %d", nv)
	}
	v := &subdiv.VertexData{
		Vertex:        make([]float32, 3*nv),
		VertexStride:  3,
		Varying:       make([]float32, 2*nv),
		VaryingStride: 2,
	}
	copy(v.Vertex, []float32{
		0, 0, 0,
		1, 0, 0,
		1, 1, 0,
		0, 1, 0,
	})
	copy(v.Varying, []float32{0, 0, 1, 0, 1, 1, 0, 1})
	refineAll(t, tb, v)

	want := []float32{
		0.5, 0.5, 0, // face point
		0.5, 0, 0, // edge midpoints, sharp
		1, 0.5, 0,
		0.5, 1, 0,
		0, 0.5, 0,
		0, 0, 0, // pinned corners
		1, 0, 0,
		1, 1, 0,
		0, 1, 0,
	}
	got := v.Vertex[3*4:]
	for i := range want {
		if math32.Abs(got[i]-want[i]) > tol {
			t.Errorf("refined scalar %d: got %g, want %g", i, got[i], want[i])
		}
	}
	wantVarying := []float32{
		0.5, 0.5,
		0.5, 0,
		1, 0.5,
		0.5, 1,
		0, 0.5,
		0, 0,
		1, 0,
		1, 1,
		0, 1,
	}
	gotVarying := v.Varying[2*4:]
	for i := range wantVarying {
		if math32.Abs(gotVarying[i]-wantVarying[i]) > tol {
			t.Errorf("refined varying %d: got %g, want %g", i, gotVarying[i], wantVarying[i])
		}
	}
}

// semiSharpTables builds a lone valence-3 vertex point whose sharpness blend
// weight is fractional, so all three vertex kernel invocations contribute.
func semiSharpTables(t *testing.T, w float32) *subdiv.Tables {
	t.Helper()
	set := subdiv.TableSet{
		Scheme:            subdiv.SchemeCatmark,
		NumCoarseVertices: 7,
		Levels: []subdiv.LevelRange{{
			FaceFirst: 7, FaceCount: 0, FaceTable: 0,
			EdgeFirst: 7, EdgeCount: 0, EdgeTable: 0,
			VertFirst: 7, VertCount: 1, VertTable: 0,
		}},
		V_ITa: []int32{0, 3, 0, 1, 2},
		V_IT:  []int32{1, 2, 3, 4, 5, 6},
		V_W:   []float32{w},
	}
	tb, err := subdiv.NewTables(set)
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

func TestSemiSharpVertexBlend(t *testing.T) {
	const w = 0.4
	tb := semiSharpTables(t, w)
	src := []float32{10, 1, 2, 3, 4, 5, 6}
	v := &subdiv.VertexData{Vertex: make([]float32, 8), VertexStride: 1}
	copy(v.Vertex, src)
	refineAll(t, tb, v)

	// Crease share at strength 1-w with the shared-value inversion applied,
	// smooth share at strength w with wp=1/n^2 and wv=(n-2)*n*wp.
	crease := float32(1 - w)
	weights := []float32{
		crease*0.75 + w/3,
		crease*0.125 + w/9,
		crease*0.125 + w/9,
		w / 9, w / 9, w / 9, w / 9,
	}
	var sumW, want float32
	for i, wi := range weights {
		sumW += wi
		want += wi * src[i]
	}
	if math32.Abs(sumW-1) > tol {
		t.Fatalf("stencil weights sum to %g, want 1", sumW)
	}
	if got := v.Vertex[7]; math32.Abs(got-want) > tol {
		t.Errorf("semi-sharp vertex point: got %g, want %g", got, want)
	}
}

// regularGridTables builds a lone valence-4 vertex point at full smooth
// weight, the regular interior case: the parent, its four edge neighbors
// and the four surrounding face points.
func regularGridTables(t *testing.T) *subdiv.Tables {
	t.Helper()
	set := subdiv.TableSet{
		Scheme:            subdiv.SchemeCatmark,
		NumCoarseVertices: 9,
		Levels: []subdiv.LevelRange{{
			FaceFirst: 9, FaceCount: 0, FaceTable: 0,
			EdgeFirst: 9, EdgeCount: 0, EdgeTable: 0,
			VertFirst: 9, VertCount: 1, VertTable: 0,
		}},
		V_ITa: []int32{0, 4, 0, -1, -1},
		V_IT:  []int32{1, 5, 2, 6, 3, 7, 4, 8},
		V_W:   []float32{1},
	}
	tb, err := subdiv.NewTables(set)
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

// refineRegularGrid runs the refinement on a flat unit grid centered on a
// parent at (cx,cy), returning the refined vertex point coordinates.
func refineRegularGrid(t *testing.T, cx, cy float32) (x, y, varying float32) {
	t.Helper()
	tb := regularGridTables(t)
	grid := [9][2]float32{
		{cx, cy},
		{cx + 1, cy}, {cx - 1, cy}, {cx, cy + 1}, {cx, cy - 1},
		{cx + 1, cy + 1}, {cx + 1, cy - 1}, {cx - 1, cy + 1}, {cx - 1, cy - 1},
	}
	v := &subdiv.VertexData{
		Vertex:        make([]float32, 2*10),
		VertexStride:  2,
		Varying:       make([]float32, 10),
		VaryingStride: 1,
	}
	for i, g := range grid {
		v.Vertex[2*i], v.Vertex[2*i+1] = g[0], g[1]
		v.Varying[i] = float32(i + 1)
	}
	refineAll(t, tb, v)
	return v.Vertex[2*9], v.Vertex[2*9+1], v.Varying[9]
}

// A regular interior vertex of a flat grid must not move: the smooth mask
// wv*parent + wp*sum(ring) with wp=1/16 and wv=0.5 reproduces the parent
// exactly when the eight ring members average to it.
func TestRegularSmoothVertexFixed(t *testing.T) {
	const cx, cy = 0.3, -0.2
	x, y, varying := refineRegularGrid(t, cx, cy)
	if math32.Abs(x-cx) > tol || math32.Abs(y-cy) > tol {
		t.Errorf("refined vertex point: got (%g, %g), want (%g, %g)", x, y, cx, cy)
	}
	if varying != 1 {
		t.Errorf("refined varying: got %g, want parent value 1", varying)
	}
	// Translating the whole grid moves the refined point by the same amount,
	// so the mask weights sum to one.
	x2, y2, _ := refineRegularGrid(t, cx+2, cy-3)
	if math32.Abs(x2-x-2) > tol || math32.Abs(y2-y+3) > tol {
		t.Errorf("translated grid: got (%g, %g), want (%g, %g)", x2, y2, x+2, y-3)
	}
}

// The smooth mask constants themselves: parent weight (n-2)/n = 0.5 and
// 1/n^2 = 1/16 per ring member at valence 4.
func TestRegularSmoothVertexMask(t *testing.T) {
	tb := regularGridTables(t)
	src := []float32{8, 1, 2, 3, 4, 5, 6, 7, 9}
	v := &subdiv.VertexData{Vertex: make([]float32, 10), VertexStride: 1}
	copy(v.Vertex, src)
	refineAll(t, tb, v)
	want := 0.5 * src[0]
	for _, s := range src[1:] {
		want += s / 16
	}
	if got := v.Vertex[9]; math32.Abs(got-want) > tol {
		t.Errorf("smooth vertex point: got %g, want %g", got, want)
	}
}

// The two vertexA passes and vertexB alias the same destinations; running
// them out of order must change the result for a fractional blend.
func TestVertexKernelOrderMatters(t *testing.T) {
	tb := semiSharpTables(t, 0.4)
	src := []float32{10, 1, 2, 3, 4, 5, 6}
	run := func(order []int) float32 {
		v := &subdiv.VertexData{Vertex: make([]float32, 8), VertexStride: 1}
		copy(v.Vertex, src)
		batches, err := tb.LevelSequence(1)
		if err != nil {
			t.Fatal(err)
		}
		for _, i := range order {
			tb.Apply(batches[i], v, 0, batches[i].Count)
		}
		return v.Vertex[7]
	}
	good := run([]int{0, 1, 2})
	bad := run([]int{1, 0, 2})
	if math32.Abs(good-bad) < tol {
		t.Fatalf("swapping vertexA passes did not change the result (%g)", good)
	}
}

// A fully sharp edge stencil carries -1 in its third slot and a poison
// value in the fourth, which must never be dereferenced.
func TestSharpEdgeIgnoresPoisonedFacePoint(t *testing.T) {
	set := subdiv.TableSet{
		Scheme:            subdiv.SchemeCatmark,
		NumCoarseVertices: 2,
		Levels: []subdiv.LevelRange{{
			FaceFirst: 2, FaceCount: 0, FaceTable: 0,
			EdgeFirst: 2, EdgeCount: 1, EdgeTable: 0,
			VertFirst: 3, VertCount: 0, VertTable: 0,
		}},
		E_IT: []int32{0, 1, -1, 1 << 30},
		E_W:  []float32{0.5, 99},
	}
	tb, err := subdiv.NewTables(set)
	if err != nil {
		t.Fatal(err)
	}
	v := &subdiv.VertexData{Vertex: []float32{2, 4, 0}, VertexStride: 1}
	refineAll(t, tb, v)
	if got := v.Vertex[2]; math32.Abs(got-3) > tol {
		t.Errorf("sharp edge point: got %g, want 3", got)
	}
}

func TestLevelSequenceOrder(t *testing.T) {
	tb := quadTables(t)
	batches, err := tb.LevelSequence(1)
	if err != nil {
		t.Fatal(err)
	}
	wantKernels := []subdiv.Kernel{
		subdiv.KernelFace,
		subdiv.KernelEdge,
		subdiv.KernelVertexA,
		subdiv.KernelVertexA,
		subdiv.KernelVertexB,
	}
	if len(batches) != len(wantKernels) {
		t.Fatalf("got %d batches, want %d", len(batches), len(wantKernels))
	}
	for i, b := range batches {
		if b.Kernel != wantKernels[i] {
			t.Errorf("batch %d: got %s, want %s", i, b.Kernel, wantKernels[i])
		}
	}
	if batches[2].Pass || !batches[3].Pass {
		t.Error("vertexA passes out of order")
	}
	if _, err := tb.LevelSequence(0); err == nil {
		t.Error("level 0 sequence should fail")
	}
	if _, err := tb.LevelSequence(2); err == nil {
		t.Error("past-max sequence should fail")
	}
}

func TestNewTablesValidation(t *testing.T) {
	base := func() subdiv.TableSet {
		return subdiv.TableSet{
			Scheme:            subdiv.SchemeCatmark,
			NumCoarseVertices: 4,
			Levels: []subdiv.LevelRange{{
				FaceFirst: 4, FaceCount: 1, FaceTable: 0,
				EdgeFirst: 5, EdgeCount: 0, EdgeTable: 0,
				VertFirst: 5, VertCount: 0, VertTable: 0,
			}},
			F_ITa: []int32{0, 4},
			F_IT:  []int32{0, 1, 2, 3},
		}
	}
	cases := []struct {
		name   string
		mutate func(*subdiv.TableSet)
	}{
		{"no coarse vertices", func(s *subdiv.TableSet) { s.NumCoarseVertices = 0 }},
		{"gap before level", func(s *subdiv.TableSet) { s.Levels[0].FaceFirst = 5 }},
		{"face stencil references own level", func(s *subdiv.TableSet) { s.F_IT[0] = 4 }},
		{"face ring past table", func(s *subdiv.TableSet) { s.F_ITa[1] = 5 }},
		{"loop scheme with face tables", func(s *subdiv.TableSet) { s.Scheme = subdiv.SchemeLoop }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set := base()
			tc.mutate(&set)
			_, err := subdiv.NewTables(set)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, subdiv.ErrInvalidTopology) {
				t.Fatalf("error %v does not wrap ErrInvalidTopology", err)
			}
		})
	}
	if _, err := subdiv.NewTables(base()); err != nil {
		t.Fatalf("valid table set rejected: %v", err)
	}
}
