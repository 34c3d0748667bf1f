// Package cage builds stencil tables for small closed quad meshes. It
// exists so kernel and backend tests can exercise real multi-level tables
// without depending on a production topology refinement subsystem. All
// generated stencils use the smooth Catmull-Clark rules; meshes must be
// closed 2-manifolds made of quads.
package cage

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/subdiv"
)

// Mesh is a closed quad mesh cage.
type Mesh struct {
	Verts []r3.Vec
	Faces [][4]int
}

// Cube returns the axis-aligned cube cage with the given side length,
// centered at the origin.
func Cube(side float64) Mesh {
	h := side / 2
	return Mesh{
		Verts: []r3.Vec{
			{X: -h, Y: -h, Z: -h},
			{X: h, Y: -h, Z: -h},
			{X: h, Y: h, Z: -h},
			{X: -h, Y: h, Z: -h},
			{X: -h, Y: -h, Z: h},
			{X: h, Y: -h, Z: h},
			{X: h, Y: h, Z: h},
			{X: -h, Y: h, Z: h},
		},
		Faces: [][4]int{
			{0, 3, 2, 1}, // bottom
			{4, 5, 6, 7}, // top
			{0, 1, 5, 4},
			{1, 2, 6, 5},
			{2, 3, 7, 6},
			{3, 0, 4, 7},
		},
	}
}

// CoarsePositions flattens the cage vertices into 3 scalars per vertex.
func CoarsePositions(m Mesh) []float32 {
	pos := make([]float32, 0, 3*len(m.Verts))
	for _, v := range m.Verts {
		pos = append(pos, float32(v.X), float32(v.Y), float32(v.Z))
	}
	return pos
}

// levelMesh is one level of the refinement cascade. Vertex ids are global
// buffer indices in [base, base+nverts).
type levelMesh struct {
	base   int
	nverts int
	faces  [][4]int
}

type edge struct {
	v0, v1 int // global endpoint ids, v0 < v1
	f0, f1 int // indices of the adjacent faces, f1 == -1 until paired
}

// Build refines the cage maxLevel times and returns validated stencil
// tables for it. It panics on non-manifold or non-quad input; fixtures are
// authored by hand and a bad cage is a bug in the test, not a data error.
func Build(m Mesh, maxLevel int) (*subdiv.Tables, error) {
	set := subdiv.TableSet{
		Scheme:            subdiv.SchemeCatmark,
		NumCoarseVertices: len(m.Verts),
	}
	cur := levelMesh{base: 0, nverts: len(m.Verts), faces: m.Faces}
	for level := 1; level <= maxLevel; level++ {
		cur = refineLevel(&set, cur)
	}
	return subdiv.NewTables(set)
}

// refineLevel appends one level of stencils for the parent mesh and returns
// the child mesh.
func refineLevel(set *subdiv.TableSet, parent levelMesh) levelMesh {
	edges, edgeOf := meshEdges(parent)
	// Incidence, keyed by local parent vertex index.
	valence := make([]int, parent.nverts)
	neighbors := make([][]int, parent.nverts)  // global neighbor vertex per incident edge
	vertFaces := make([][]int, parent.nverts)  // face index per incident face
	for fi, f := range parent.faces {
		for c := 0; c < 4; c++ {
			lv := f[c] - parent.base
			vertFaces[lv] = append(vertFaces[lv], fi)
		}
	}
	for _, e := range edges {
		for _, v := range [2]int{e.v0, e.v1} {
			lv := v - parent.base
			valence[lv]++
			other := e.v0 + e.v1 - v
			neighbors[lv] = append(neighbors[lv], other)
		}
	}

	prevTotal := parent.base + parent.nverts
	faceFirst := prevTotal
	edgeFirst := faceFirst + len(parent.faces)
	vertFirst := edgeFirst + len(edges)

	lr := subdiv.LevelRange{
		FaceFirst: faceFirst, FaceCount: len(parent.faces), FaceTable: len(set.F_ITa) / 2,
		EdgeFirst: edgeFirst, EdgeCount: len(edges), EdgeTable: len(set.E_IT) / 4,
		VertFirst: vertFirst, VertCount: parent.nverts, VertTable: len(set.V_ITa) / 5,
	}
	set.Levels = append(set.Levels, lr)

	for _, f := range parent.faces {
		set.F_ITa = append(set.F_ITa, int32(len(set.F_IT)), 4)
		for c := 0; c < 4; c++ {
			set.F_IT = append(set.F_IT, int32(f[c]))
		}
	}
	for _, e := range edges {
		if e.f1 == -1 {
			panic(fmt.Sprintf("cage: boundary edge %d-%d in closed mesh", e.v0, e.v1))
		}
		set.E_IT = append(set.E_IT,
			int32(e.v0), int32(e.v1),
			int32(faceFirst+e.f0), int32(faceFirst+e.f1))
		set.E_W = append(set.E_W, 0.25, 0.25)
	}
	for lv := 0; lv < parent.nverts; lv++ {
		n := valence[lv]
		if n != len(vertFaces[lv]) {
			panic(fmt.Sprintf("cage: vertex %d has %d edges and %d faces", parent.base+lv, n, len(vertFaces[lv])))
		}
		set.V_ITa = append(set.V_ITa,
			int32(len(set.V_IT)), int32(n), int32(parent.base+lv), -1, -1)
		set.V_W = append(set.V_W, 1)
		for k := 0; k < n; k++ {
			set.V_IT = append(set.V_IT,
				int32(neighbors[lv][k]),
				int32(faceFirst+vertFaces[lv][k]))
		}
	}

	// Child topology: each parent quad splits into four.
	child := levelMesh{base: faceFirst, nverts: len(parent.faces) + len(edges) + parent.nverts}
	for fi, f := range parent.faces {
		fp := faceFirst + fi
		vp := func(c int) int { return vertFirst + f[c] - parent.base }
		ep := func(a, b int) int { return edgeFirst + edgeOf[edgeKey(f[a], f[b])] }
		child.faces = append(child.faces,
			[4]int{vp(0), ep(0, 1), fp, ep(3, 0)},
			[4]int{vp(1), ep(1, 2), fp, ep(0, 1)},
			[4]int{vp(2), ep(2, 3), fp, ep(1, 2)},
			[4]int{vp(3), ep(3, 0), fp, ep(2, 3)},
		)
	}
	return child
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func meshEdges(m levelMesh) ([]edge, map[[2]int]int) {
	edgeOf := make(map[[2]int]int)
	var edges []edge
	for fi, f := range m.faces {
		for c := 0; c < 4; c++ {
			a, b := f[c], f[(c+1)%4]
			if a == b {
				panic(fmt.Sprintf("cage: degenerate edge on face %d", fi))
			}
			key := edgeKey(a, b)
			ei, ok := edgeOf[key]
			if !ok {
				edgeOf[key] = len(edges)
				edges = append(edges, edge{v0: key[0], v1: key[1], f0: fi, f1: -1})
				continue
			}
			if edges[ei].f1 != -1 {
				panic(fmt.Sprintf("cage: edge %v shared by more than two faces", key))
			}
			edges[ei].f1 = fi
		}
	}
	return edges, edgeOf
}
