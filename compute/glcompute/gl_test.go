package glcompute

import (
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/soypat/glgl/v4.6-core/glgl"

	"github.com/soypat/subdiv"
	"github.com/soypat/subdiv/compute"
	"github.com/soypat/subdiv/internal/cage"
)

var glErr error

func init() {
	runtime.LockOSThread() // For GL.
}

func TestMain(m *testing.M) {
	_, terminate, err := glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "compute",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	glErr = err
	code := m.Run()
	if err == nil {
		terminate()
	}
	os.Exit(code)
}

func needGL(t *testing.T) {
	t.Helper()
	if glErr != nil {
		t.Skipf("no GL context: %v", glErr)
	}
}

// refineCPU runs the scalar reference over the same tables and buffers so
// GPU results can be compared element for element.
func refineCPU(t *testing.T, tb *subdiv.Tables, edits []subdiv.EditBatch, coarse []float32, stride, maxLevel int) []float32 {
	t.Helper()
	total, err := tb.NumVertices(tb.MaxLevel())
	if err != nil {
		t.Fatal(err)
	}
	buf := compute.NewCPUVertexBuffer(stride, total)
	buf.UpdateData(coarse, 0)
	ctx, err := compute.NewCPUContext(tb, edits)
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.Bind(buf, nil); err != nil {
		t.Fatal(err)
	}
	if err := (compute.CPUController{}).Refine(ctx, maxLevel); err != nil {
		t.Fatal(err)
	}
	return buf.BindCPUBuffer()
}

func TestRefineCubeCPUvsGPU(t *testing.T) {
	needGL(t)
	mesh := cage.Cube(2)
	tb, err := cage.Build(mesh, 2)
	if err != nil {
		t.Fatal(err)
	}
	coarse := cage.CoarsePositions(mesh)
	edits := []subdiv.EditBatch{{
		Level: 1, Op: subdiv.EditAdd,
		PrimvarOffset: 0, PrimvarWidth: 3,
		Indices: []int32{int32(tb.NumCoarseVertices())},
		Values:  []float32{0.5, 0, 0},
	}}
	want := refineCPU(t, tb, edits, coarse, 3, 2)

	total, err := tb.NumVertices(2)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := NewVertexBuffer(3, total)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Release()
	buf.UpdateData(coarse, 0)
	ctx, err := NewContext(tb, edits)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Release()
	if err := ctx.Bind(buf, nil); err != nil {
		t.Fatal(err)
	}
	if err := NewController().Refine(ctx, 2); err != nil {
		t.Fatal(err)
	}
	got, err := buf.ReadData()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("readback length %d, want %d", len(got), len(want))
	}
	for i := range want {
		diff := got[i] - want[i]
		if diff < -1e-5 || diff > 1e-5 {
			t.Errorf("scalar %d: gpu %g, cpu %g", i, got[i], want[i])
		}
	}
}

func TestRefineErrorsGPU(t *testing.T) {
	needGL(t)
	tb, err := cage.Build(cage.Cube(1), 1)
	if err != nil {
		t.Fatal(err)
	}
	ctx, err := NewContext(tb, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Release()
	if err := NewController().Refine(ctx, 1); err == nil {
		t.Fatal("refine before bind must fail")
	}
	if err := ctx.Bind(compute.NewCPUVertexBuffer(3, 64), nil); err == nil {
		t.Fatal("binding a host buffer must fail")
	}
	total, err := tb.NumVertices(tb.MaxLevel())
	if err != nil {
		t.Fatal(err)
	}
	small, err := NewVertexBuffer(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer small.Release()
	if err := ctx.Bind(small, nil); err == nil {
		t.Fatal("binding an undersized buffer must fail")
	}
	buf, err := NewVertexBuffer(3, total)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Release()
	if err := ctx.Bind(buf, nil); err != nil {
		t.Fatal(err)
	}
	if err := NewController().Refine(ctx, 0); err != nil {
		t.Fatalf("refine to level 0 is a no-op, got %v", err)
	}
	if err := NewController().Refine(ctx, -1); !errors.Is(err, subdiv.ErrIndexOutOfRange) {
		t.Fatalf("refine to level -1: got %v, want index range error", err)
	}
}
