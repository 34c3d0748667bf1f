package glcompute

import (
	"github.com/go-gl/gl/all-core/gl"
	"github.com/pkg/errors"

	"github.com/soypat/subdiv"
	"github.com/soypat/subdiv/compute"
)

// SSBO binding points shared between the Go side and the generated kernel
// source. Binding 0 carries the per-dispatch parameters.
const (
	bindParams = iota
	bindVertex
	bindVarying
	bindFITa
	bindFIT
	bindEIT
	bindEW
	bindVITa
	bindVIT
	bindVW
	bindEditIndices
	bindEditValues
)

// paramsSize is the dispatch parameter block size in int32 words: kernel,
// pass, destFirst, tableFirst, count, primvarOffset, primvarWidth, pad.
const paramsSize = 8

type editSSBO struct {
	indices uint32
	values  uint32
}

// Context holds subdivision tables and edit batches resident in shader
// storage buffers, plus the pair of vertex buffers bound for refinement.
type Context struct {
	tables *subdiv.Tables
	edits  []subdiv.EditBatch

	params   uint32
	fITa     uint32
	fIT      uint32
	eIT      uint32
	eW       uint32
	vITa     uint32
	vIT      uint32
	vW       uint32
	editBufs []editSSBO

	vertex  *VertexBuffer
	varying *VertexBuffer
}

var _ compute.Context = (*Context)(nil)

// NewContext uploads the table set and edit batches to the device. The GL
// context must be current on the calling goroutine, here and for every later
// call into the package.
func NewContext(t *subdiv.Tables, edits []subdiv.EditBatch) (*Context, error) {
	set := t.Set()
	c := &Context{tables: t, edits: edits}
	var err error
	free := func() { c.Release() }
	if c.params, err = newSSBOi32(make([]int32, paramsSize), gl.DYNAMIC_DRAW); err != nil {
		return nil, err
	}
	if c.fITa, err = newSSBOi32(set.F_ITa, gl.STATIC_DRAW); err != nil {
		free()
		return nil, err
	}
	if c.fIT, err = newSSBOi32(set.F_IT, gl.STATIC_DRAW); err != nil {
		free()
		return nil, err
	}
	if c.eIT, err = newSSBOi32(set.E_IT, gl.STATIC_DRAW); err != nil {
		free()
		return nil, err
	}
	if c.eW, err = newSSBOf32(set.E_W, gl.STATIC_DRAW); err != nil {
		free()
		return nil, err
	}
	if c.vITa, err = newSSBOi32(set.V_ITa, gl.STATIC_DRAW); err != nil {
		free()
		return nil, err
	}
	if c.vIT, err = newSSBOi32(set.V_IT, gl.STATIC_DRAW); err != nil {
		free()
		return nil, err
	}
	if c.vW, err = newSSBOf32(set.V_W, gl.STATIC_DRAW); err != nil {
		free()
		return nil, err
	}
	for _, e := range edits {
		var eb editSSBO
		if eb.indices, err = newSSBOi32(e.Indices, gl.STATIC_DRAW); err != nil {
			free()
			return nil, err
		}
		if eb.values, err = newSSBOf32(e.Values, gl.STATIC_DRAW); err != nil {
			free()
			return nil, err
		}
		c.editBufs = append(c.editBufs, eb)
	}
	return c, nil
}

func (c *Context) Tables() *subdiv.Tables { return c.tables }

func (c *Context) NumEditBatches() int { return len(c.edits) }

func (c *Context) EditBatch(i int) (subdiv.EditBatch, error) {
	if i < 0 || i >= len(c.edits) {
		return subdiv.EditBatch{}, errors.Wrapf(subdiv.ErrIndexOutOfRange, "edit batch %d of %d", i, len(c.edits))
	}
	return c.edits[i], nil
}

// Bind attaches the vertex buffers the next Refine will operate on. Both
// must be device buffers from this package; varying may be nil.
func (c *Context) Bind(vertex, varying compute.VertexBuffer) error {
	vb, ok := vertex.(*VertexBuffer)
	if !ok {
		return errors.Errorf("glcompute: vertex buffer type %T, want *glcompute.VertexBuffer", vertex)
	}
	need, err := c.tables.NumVertices(c.tables.MaxLevel())
	if err != nil {
		return err
	}
	if vb.NumVertices() < need {
		return errors.Errorf("glcompute: vertex buffer holds %d vertices, tables need %d", vb.NumVertices(), need)
	}
	var rb *VertexBuffer
	if varying != nil {
		rb, ok = varying.(*VertexBuffer)
		if !ok {
			return errors.Errorf("glcompute: varying buffer type %T, want *glcompute.VertexBuffer", varying)
		}
		if rb.NumVertices() < need {
			return errors.Errorf("glcompute: varying buffer holds %d vertices, tables need %d", rb.NumVertices(), need)
		}
	}
	for _, e := range c.edits {
		if err := e.Validate(need, vb.NumElements()); err != nil {
			return err
		}
	}
	c.vertex = vb
	c.varying = rb
	return nil
}

func (c *Context) Unbind() {
	c.vertex = nil
	c.varying = nil
}

// bindBases attaches every resident buffer to its binding point. The
// varying slot gets the vertex buffer as a placeholder when no varying
// buffer is bound; kernels compiled with a zero varying width never touch
// that slot.
func (c *Context) bindBases() error {
	if c.vertex == nil {
		return errors.New("glcompute: refine on unbound context")
	}
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindParams, c.params)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindVertex, c.vertex.ssbo)
	varying := c.vertex.ssbo
	if c.varying != nil {
		varying = c.varying.ssbo
	}
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindVarying, varying)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindFITa, c.fITa)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindFIT, c.fIT)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindEIT, c.eIT)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindEW, c.eW)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindVITa, c.vITa)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindVIT, c.vIT)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindVW, c.vW)
	// Edit buffers are rebound per batch; park the params buffer there so
	// every declared block has backing storage.
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindEditIndices, c.params)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindEditValues, c.params)
	return nil
}

func (c *Context) bindEditBatch(i int) {
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindEditIndices, c.editBufs[i].indices)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindEditValues, c.editBufs[i].values)
}

func (c *Context) uploadParams(p [paramsSize]int32) {
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, c.params)
	gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, 0, 4*paramsSize, gl.Ptr(&p[0]))
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
}

// Release frees all table and edit storage. Bound vertex buffers stay with
// their owner.
func (c *Context) Release() {
	for _, b := range []uint32{c.params, c.fITa, c.fIT, c.eIT, c.eW, c.vITa, c.vIT, c.vW} {
		if b != 0 {
			gl.DeleteBuffers(1, &b)
		}
	}
	c.params, c.fITa, c.fIT, c.eIT, c.eW, c.vITa, c.vIT, c.vW = 0, 0, 0, 0, 0, 0, 0, 0
	for _, eb := range c.editBufs {
		if eb.indices != 0 {
			gl.DeleteBuffers(1, &eb.indices)
		}
		if eb.values != 0 {
			gl.DeleteBuffers(1, &eb.values)
		}
	}
	c.editBufs = nil
	c.vertex = nil
	c.varying = nil
}
