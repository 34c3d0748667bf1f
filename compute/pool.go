package compute

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/soypat/subdiv"
)

// Destination ranges shorter than this are not worth fanning out.
const minParallelChunk = 256

// PoolController runs each kernel batch chunked across worker goroutines.
// Within one batch the destination range is embarrassingly parallel, so any
// partition is safe; the controller still executes batches strictly in
// sequence, which provides the mandatory inter-kernel barriers.
type PoolController struct {
	maxParallelism int
}

var _ Controller = (*PoolController)(nil)

// NewPoolController returns a controller with a soft parallelism target.
// maxParallelism <= 0 selects runtime.NumCPU.
func NewPoolController(maxParallelism int) *PoolController {
	if maxParallelism <= 0 {
		maxParallelism = runtime.NumCPU()
	}
	return &PoolController{maxParallelism: maxParallelism}
}

// MaxParallelism returns the worker target the controller fans out to.
func (p *PoolController) MaxParallelism() int { return p.maxParallelism }

// Refine refines levels 1..maxLevel in place in the bound buffers. The
// chunked execution accumulates each destination vertex in the same order
// as CPUController, so results are bit-identical to the scalar backend.
func (p *PoolController) Refine(ctx Context, maxLevel int) error {
	c, ok := ctx.(*CPUContext)
	if !ok {
		return errors.Errorf("compute: pool controller wants *CPUContext, got %T", ctx)
	}
	return refineHost(c, maxLevel, p.runBatch)
}

func (p *PoolController) runBatch(t *subdiv.Tables, b subdiv.KernelBatch, v *subdiv.VertexData) {
	if p.maxParallelism < 2 || b.Count < 2*minParallelChunk {
		t.Apply(b, v, 0, b.Count)
		return
	}
	chunk := (b.Count + p.maxParallelism - 1) / p.maxParallelism
	if chunk < minParallelChunk {
		chunk = minParallelChunk
	}
	var wg sync.WaitGroup
	for start := 0; start < b.Count; start += chunk {
		end := min(start+chunk, b.Count)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			t.Apply(b, v, start, end)
		}(start, end)
	}
	wg.Wait()
}
