package cage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soypat/subdiv"
)

func TestBuildCubeCounts(t *testing.T) {
	tb, err := Build(Cube(2), 2)
	require.NoError(t, err)
	require.Equal(t, subdiv.SchemeCatmark, tb.Scheme())
	require.Equal(t, 7, tb.NumTables())
	require.Equal(t, 2, tb.MaxLevel())
	require.Equal(t, 8, tb.NumCoarseVertices())

	// A closed quad mesh quadruples its faces per level; vertices follow
	// V' = F + E + V and the Euler characteristic F - E + V = 2 holds at
	// every level of the cascade.
	faces, edges, verts := 6, 12, 8
	total := verts
	for level := 1; level <= 2; level++ {
		added := faces + edges + verts
		first, count, err := tb.LevelVertexRange(level)
		require.NoError(t, err)
		require.Equalf(t, total, first, "level %d first vertex", level)
		require.Equalf(t, added, count, "level %d vertex count", level)
		total += added
		verts = added
		faces *= 4
		edges = 2 * faces // E = 2F for a closed quad mesh
		require.Equalf(t, 2, verts-edges+faces, "level %d Euler characteristic", level)
	}
	nv, err := tb.NumVertices(2)
	require.NoError(t, err)
	require.Equal(t, total, nv)
}

func TestBuildStencilShapes(t *testing.T) {
	tb, err := Build(Cube(2), 1)
	require.NoError(t, err)

	fs, err := tb.FaceStencil(0)
	require.NoError(t, err)
	require.Len(t, fs.Ring, 4)

	es, err := tb.EdgeStencil(0)
	require.NoError(t, err)
	require.True(t, es.FacePoints, "interior cube edges are smooth")
	require.InDelta(t, 0.25, es.VertWeight, 1e-6)
	require.InDelta(t, 0.25, es.FaceWeight, 1e-6)

	vs, err := tb.VertexStencil(0)
	require.NoError(t, err)
	require.EqualValues(t, 3, vs.Valence, "cube corners have valence 3")
	require.False(t, vs.HasCrease)
	require.InDelta(t, 1.0, vs.Weight, 1e-6)
	require.Len(t, vs.Ring, 6)

	_, err = tb.FaceStencil(tb.NumFaceStencils())
	require.ErrorIs(t, err, subdiv.ErrIndexOutOfRange)
	_, err = tb.EdgeStencil(-1)
	require.ErrorIs(t, err, subdiv.ErrIndexOutOfRange)
	_, err = tb.VertexStencil(tb.NumVertexStencils())
	require.ErrorIs(t, err, subdiv.ErrIndexOutOfRange)
}

func TestBuildRejectsOpenMesh(t *testing.T) {
	open := Mesh{
		Verts: Cube(1).Verts,
		Faces: Cube(1).Faces[:5], // drop one face, leaving a boundary
	}
	require.Panics(t, func() { Build(open, 1) })
}

func TestCoarsePositions(t *testing.T) {
	m := Cube(2)
	pos := CoarsePositions(m)
	require.Len(t, pos, 3*len(m.Verts))
	require.Equal(t, float32(-1), pos[0])
	require.Equal(t, float32(1), pos[3*6]) // vertex 6 is (1,1,1)
}
