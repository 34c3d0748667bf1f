package compute_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soypat/subdiv"
	"github.com/soypat/subdiv/compute"
	"github.com/soypat/subdiv/internal/cage"
)

func cubeContext(t *testing.T, maxLevel int, edits []subdiv.EditBatch) (*compute.CPUContext, *compute.CPUVertexBuffer) {
	t.Helper()
	mesh := cage.Cube(2)
	tb, err := cage.Build(mesh, maxLevel)
	require.NoError(t, err)
	total, err := tb.NumVertices(tb.MaxLevel())
	require.NoError(t, err)
	buf := compute.NewCPUVertexBuffer(3, total)
	buf.UpdateData(cage.CoarsePositions(mesh), 0)
	ctx, err := compute.NewCPUContext(tb, edits)
	require.NoError(t, err)
	require.NoError(t, ctx.Bind(buf, nil))
	return ctx, buf
}

// Every stencil is an affine average, so refining a constant-valued buffer
// must reproduce the constant everywhere.
func TestRefineAffineInvariance(t *testing.T) {
	mesh := cage.Cube(2)
	tb, err := cage.Build(mesh, 3)
	require.NoError(t, err)
	total, err := tb.NumVertices(3)
	require.NoError(t, err)
	buf := compute.NewCPUVertexBuffer(4, total)
	varying := compute.NewCPUVertexBuffer(2, total)
	const c = 7.25
	coarse := make([]float32, 4*tb.NumCoarseVertices())
	coarseVarying := make([]float32, 2*tb.NumCoarseVertices())
	for i := range coarse {
		coarse[i] = c
	}
	for i := range coarseVarying {
		coarseVarying[i] = c
	}
	buf.UpdateData(coarse, 0)
	varying.UpdateData(coarseVarying, 0)

	ctx, err := compute.NewCPUContext(tb, nil)
	require.NoError(t, err)
	require.NoError(t, ctx.Bind(buf, varying))
	require.NoError(t, compute.CPUController{}.Refine(ctx, 3))

	for i, x := range buf.BindCPUBuffer() {
		require.InDeltaf(t, c, x, 1e-4, "vertex scalar %d", i)
	}
	for i, x := range varying.BindCPUBuffer() {
		require.InDeltaf(t, c, x, 1e-4, "varying scalar %d", i)
	}
}

// Refined cube vertices stay inside the coarse cage's bounding box.
func TestRefineCubeBounds(t *testing.T) {
	ctx, buf := cubeContext(t, 2, nil)
	require.NoError(t, compute.CPUController{}.Refine(ctx, 2))
	tb := ctx.Tables()
	v := &subdiv.VertexData{Vertex: buf.BindCPUBuffer(), VertexStride: 3}
	coarse, err := tb.LevelBounds(v, 0)
	require.NoError(t, err)
	for level := 1; level <= 2; level++ {
		refined, err := tb.LevelBounds(v, level)
		require.NoError(t, err)
		require.Truef(t, coarse.ContainsBox(refined), "level %d bounds %+v escape cage bounds %+v", level, refined, coarse)
	}
	// Smooth refinement of a cube pulls every vertex strictly inward.
	l2, err := tb.LevelBounds(v, 2)
	require.NoError(t, err)
	require.Less(t, l2.Max.X, coarse.Max.X)
}

// The pooled controller must be bit identical to the scalar one: chunking
// changes which goroutine computes a destination, never the accumulation
// order within it.
func TestPoolMatchesCPU(t *testing.T) {
	serialCtx, serialBuf := cubeContext(t, 3, nil)
	require.NoError(t, compute.CPUController{}.Refine(serialCtx, 3))

	for _, par := range []int{1, 2, 8} {
		poolCtx, poolBuf := cubeContext(t, 3, nil)
		pc := compute.NewPoolController(par)
		require.NoError(t, pc.Refine(poolCtx, 3))
		require.Equal(t, serialBuf.BindCPUBuffer(), poolBuf.BindCPUBuffer(), "parallelism %d", par)
	}
}

func TestNewPoolControllerDefault(t *testing.T) {
	require.GreaterOrEqual(t, compute.NewPoolController(0).MaxParallelism(), 1)
	require.Equal(t, 3, compute.NewPoolController(3).MaxParallelism())
}

func TestRefineWithEdits(t *testing.T) {
	mesh := cage.Cube(2)
	tb, err := cage.Build(mesh, 1)
	require.NoError(t, err)
	first, _, err := tb.LevelVertexRange(1)
	require.NoError(t, err)
	edits := []subdiv.EditBatch{
		{
			Level: 1, Op: subdiv.EditSet,
			PrimvarOffset: 1, PrimvarWidth: 1,
			Indices: []int32{int32(first)},
			Values:  []float32{42},
		},
		{
			Level: 1, Op: subdiv.EditAdd,
			PrimvarOffset: 0, PrimvarWidth: 3,
			Indices: []int32{int32(first)},
			Values:  []float32{1, 1, 1},
		},
	}
	total, err := tb.NumVertices(1)
	require.NoError(t, err)
	buf := compute.NewCPUVertexBuffer(3, total)
	buf.UpdateData(cage.CoarsePositions(mesh), 0)
	ctx, err := compute.NewCPUContext(tb, edits)
	require.NoError(t, err)
	require.Equal(t, 2, ctx.NumEditBatches())
	_, err = ctx.EditBatch(2)
	require.ErrorIs(t, err, subdiv.ErrIndexOutOfRange)
	require.NoError(t, ctx.Bind(buf, nil))
	require.NoError(t, compute.CPUController{}.Refine(ctx, 1))

	// The first level-1 vertex is the face point of the first cage face,
	// which averages to the face center; then set y=42, then add (1,1,1).
	got := buf.Positions(first, 1)[0]
	require.InDelta(t, 0+1, got.X, 1e-6)
	require.InDelta(t, 42+1, got.Y, 1e-6)
	require.InDelta(t, -1+1, got.Z, 1e-6)
}

func TestBindErrors(t *testing.T) {
	mesh := cage.Cube(2)
	tb, err := cage.Build(mesh, 1)
	require.NoError(t, err)
	ctx, err := compute.NewCPUContext(tb, nil)
	require.NoError(t, err)

	small := compute.NewCPUVertexBuffer(3, tb.NumCoarseVertices())
	require.Error(t, ctx.Bind(small, nil))

	total, err := tb.NumVertices(1)
	require.NoError(t, err)
	buf := compute.NewCPUVertexBuffer(3, total)

	badEdits := []subdiv.EditBatch{{
		Level: 1, Op: subdiv.EditAdd,
		PrimvarOffset: 2, PrimvarWidth: 2,
		Indices: []int32{0},
		Values:  []float32{0, 0},
	}}
	edited, err := compute.NewCPUContext(tb, badEdits)
	require.NoError(t, err)
	err = edited.Bind(buf, nil)
	require.ErrorIs(t, err, subdiv.ErrInvalidTopology)
}

func TestRefineErrors(t *testing.T) {
	mesh := cage.Cube(2)
	tb, err := cage.Build(mesh, 1)
	require.NoError(t, err)
	ctx, err := compute.NewCPUContext(tb, nil)
	require.NoError(t, err)

	err = compute.CPUController{}.Refine(ctx, 1)
	require.Error(t, err, "refine before bind must fail")

	total, err := tb.NumVertices(1)
	require.NoError(t, err)
	buf := compute.NewCPUVertexBuffer(3, total)
	require.NoError(t, ctx.Bind(buf, nil))
	err = compute.CPUController{}.Refine(ctx, 5)
	require.ErrorIs(t, err, subdiv.ErrIndexOutOfRange)

	ctx.Unbind()
	require.Error(t, compute.CPUController{}.Refine(ctx, 1))
}
