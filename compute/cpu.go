package compute

import (
	"github.com/pkg/errors"
	"github.com/soypat/glgl/math/ms3"
	"k8s.io/klog/v2"

	"github.com/soypat/subdiv"
)

// CPUVertexBuffer is host memory laid out as NumVertices records of
// NumElements float32 scalars.
type CPUVertexBuffer struct {
	elems int
	data  []float32
}

// NewCPUVertexBuffer allocates a zeroed host vertex buffer.
func NewCPUVertexBuffer(numElements, numVertices int) *CPUVertexBuffer {
	if numElements <= 0 || numVertices <= 0 {
		panic("compute: non-positive vertex buffer dimensions")
	}
	return &CPUVertexBuffer{
		elems: numElements,
		data:  make([]float32, numElements*numVertices),
	}
}

func (b *CPUVertexBuffer) NumElements() int { return b.elems }
func (b *CPUVertexBuffer) NumVertices() int { return len(b.data) / b.elems }

// BindCPUBuffer exposes the backing scalar slice.
func (b *CPUVertexBuffer) BindCPUBuffer() []float32 { return b.data }

// UpdateData copies len(src)/NumElements vertex records into the buffer
// starting at vertex startVertex.
func (b *CPUVertexBuffer) UpdateData(src []float32, startVertex int) {
	copy(b.data[startVertex*b.elems:], src)
}

// LoadPositions writes pos into the first three scalars of consecutive
// vertex records starting at startVertex. The record must be at least three
// scalars wide.
func (b *CPUVertexBuffer) LoadPositions(pos []ms3.Vec, startVertex int) {
	if b.elems < 3 {
		panic("compute: vertex records narrower than a position")
	}
	for i, p := range pos {
		d := b.data[(startVertex+i)*b.elems:]
		d[0], d[1], d[2] = p.X, p.Y, p.Z
	}
}

// Positions reads count vertex positions starting at vertex start.
func (b *CPUVertexBuffer) Positions(start, count int) []ms3.Vec {
	if b.elems < 3 {
		panic("compute: vertex records narrower than a position")
	}
	pos := make([]ms3.Vec, count)
	for i := range pos {
		d := b.data[(start+i)*b.elems:]
		pos[i] = ms3.Vec{X: d[0], Y: d[1], Z: d[2]}
	}
	return pos
}

// CPUContext executes kernels directly against host memory. It serves both
// the scalar CPUController and the PoolController.
type CPUContext struct {
	tables *subdiv.Tables
	edits  []subdiv.EditBatch

	vertex  *CPUVertexBuffer
	varying *CPUVertexBuffer
}

var _ Context = (*CPUContext)(nil)

// NewCPUContext creates a context from stencil tables and optional edit
// batches. The CPU backend allocates no device resources; edit batches are
// validated at Bind time once the record stride is known.
func NewCPUContext(t *subdiv.Tables, edits []subdiv.EditBatch) (*CPUContext, error) {
	if t == nil {
		return nil, errors.New("compute: nil tables")
	}
	return &CPUContext{tables: t, edits: edits}, nil
}

func (c *CPUContext) Tables() *subdiv.Tables { return c.tables }

func (c *CPUContext) NumEditBatches() int { return len(c.edits) }

func (c *CPUContext) EditBatch(i int) (subdiv.EditBatch, error) {
	if i < 0 || i >= len(c.edits) {
		return subdiv.EditBatch{}, errors.Wrapf(subdiv.ErrIndexOutOfRange, "edit batch %d of %d", i, len(c.edits))
	}
	return c.edits[i], nil
}

// Bind records the buffers for subsequent Refine calls. vertex must be a
// *CPUVertexBuffer sized for the tables' deepest level; varying may be nil.
func (c *CPUContext) Bind(vertex, varying VertexBuffer) error {
	vb, ok := vertex.(*CPUVertexBuffer)
	if !ok {
		return errors.Errorf("compute: cpu context wants *CPUVertexBuffer, got %T", vertex)
	}
	total, err := c.tables.NumVertices(c.tables.MaxLevel())
	if err != nil {
		return err
	}
	if vb.NumVertices() < total {
		return errors.Errorf("compute: vertex buffer holds %d vertices, tables need %d", vb.NumVertices(), total)
	}
	var rb *CPUVertexBuffer
	if varying != nil {
		if rb, ok = varying.(*CPUVertexBuffer); !ok {
			return errors.Errorf("compute: cpu context wants *CPUVertexBuffer, got %T", varying)
		}
		if rb.NumVertices() < total {
			return errors.Errorf("compute: varying buffer holds %d vertices, tables need %d", rb.NumVertices(), total)
		}
	}
	for i := range c.edits {
		if err := c.edits[i].Validate(total, vb.NumElements()); err != nil {
			return err
		}
	}
	c.vertex, c.varying = vb, rb
	return nil
}

// Unbind releases the buffer references, leaving the context inert.
func (c *CPUContext) Unbind() { c.vertex, c.varying = nil, nil }

func (c *CPUContext) vertexData() (*subdiv.VertexData, error) {
	if c.vertex == nil {
		return nil, errors.New("compute: context has no bound vertex buffer")
	}
	v := &subdiv.VertexData{
		Vertex:       c.vertex.data,
		VertexStride: c.vertex.elems,
	}
	if c.varying != nil {
		v.Varying = c.varying.data
		v.VaryingStride = c.varying.elems
	}
	return v, nil
}

// CPUController runs every kernel batch single threaded.
type CPUController struct{}

var _ Controller = CPUController{}

// Refine refines levels 1..maxLevel in place in the bound buffers.
func (CPUController) Refine(ctx Context, maxLevel int) error {
	c, ok := ctx.(*CPUContext)
	if !ok {
		return errors.Errorf("compute: cpu controller wants *CPUContext, got %T", ctx)
	}
	return refineHost(c, maxLevel, func(t *subdiv.Tables, b subdiv.KernelBatch, v *subdiv.VertexData) {
		t.Apply(b, v, 0, b.Count)
	})
}

// refineHost is the level loop shared by the host controllers. run executes
// one kernel batch to completion; the loop provides the inter-batch and
// inter-level barriers by calling it sequentially.
func refineHost(c *CPUContext, maxLevel int, run func(*subdiv.Tables, subdiv.KernelBatch, *subdiv.VertexData)) error {
	t := c.tables
	if maxLevel < 0 || maxLevel > t.MaxLevel() {
		return errors.Wrapf(subdiv.ErrIndexOutOfRange, "refine to level %d of %d", maxLevel, t.MaxLevel())
	}
	v, err := c.vertexData()
	if err != nil {
		return err
	}
	for level := 1; level <= maxLevel; level++ {
		seq, err := t.LevelSequence(level)
		if err != nil {
			return err
		}
		for _, b := range seq {
			klog.V(2).Infof("subdiv: level %d %s pass=%v [%d,%d)", level, b.Kernel, b.Pass, b.DestFirst, b.DestFirst+b.Count)
			run(t, b, v)
		}
		for i := range c.edits {
			if c.edits[i].Level == level {
				klog.V(2).Infof("subdiv: level %d %s edit batch, %d edits", level, c.edits[i].Op, c.edits[i].NumEdits())
				c.edits[i].Apply(v)
			}
		}
	}
	return nil
}
