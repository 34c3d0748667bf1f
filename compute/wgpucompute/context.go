package wgpucompute

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/soypat/subdiv"
	"github.com/soypat/subdiv/compute"
)

type editBuffers struct {
	indices *wgpu.Buffer
	values  *wgpu.Buffer
}

// Context holds subdivision tables and edit batches resident on a WebGPU
// device, plus the pair of vertex buffers bound for refinement.
type Context struct {
	dev    *Device
	tables *subdiv.Tables
	edits  []subdiv.EditBatch

	params   *wgpu.Buffer
	fITa     *wgpu.Buffer
	fIT      *wgpu.Buffer
	eIT      *wgpu.Buffer
	eW       *wgpu.Buffer
	vITa     *wgpu.Buffer
	vIT      *wgpu.Buffer
	vW       *wgpu.Buffer
	editBufs []editBuffers

	vertex  *VertexBuffer
	varying *VertexBuffer
}

var _ compute.Context = (*Context)(nil)

// NewContext uploads the table set and edit batches to the device.
func NewContext(dev *Device, t *subdiv.Tables, edits []subdiv.EditBatch) (*Context, error) {
	set := t.Set()
	c := &Context{dev: dev, tables: t, edits: edits}
	var err error
	if c.params, err = dev.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "subdiv-params",
		Size:  paramsBytes,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	}); err != nil {
		return nil, errors.Wrap(subdiv.ErrResourceAllocation, err.Error())
	}
	intTables := []struct {
		dst  **wgpu.Buffer
		name string
		data []int32
	}{
		{&c.fITa, "subdiv-F_ITa", set.F_ITa},
		{&c.fIT, "subdiv-F_IT", set.F_IT},
		{&c.eIT, "subdiv-E_IT", set.E_IT},
		{&c.vITa, "subdiv-V_ITa", set.V_ITa},
		{&c.vIT, "subdiv-V_IT", set.V_IT},
	}
	for _, u := range intTables {
		if *u.dst, err = dev.newStorageBufferI32(u.name, u.data); err != nil {
			c.Release()
			return nil, err
		}
	}
	if c.eW, err = dev.newStorageBufferF32("subdiv-E_W", set.E_W); err != nil {
		c.Release()
		return nil, err
	}
	if c.vW, err = dev.newStorageBufferF32("subdiv-V_W", set.V_W); err != nil {
		c.Release()
		return nil, err
	}
	for _, e := range edits {
		var eb editBuffers
		if eb.indices, err = dev.newStorageBufferI32("subdiv-edit-indices", e.Indices); err != nil {
			c.Release()
			return nil, err
		}
		if eb.values, err = dev.newStorageBufferF32("subdiv-edit-values", e.Values); err != nil {
			c.Release()
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
		return errors.Errorf("wgpucompute: vertex buffer type %T, want *wgpucompute.VertexBuffer", vertex)
	}
	need, err := c.tables.NumVertices(c.tables.MaxLevel())
	if err != nil {
		return err
	}
	if vb.NumVertices() < need {
		return errors.Errorf("wgpucompute: vertex buffer holds %d vertices, tables need %d", vb.NumVertices(), need)
	}
	var rb *VertexBuffer
	if varying != nil {
		rb, ok = varying.(*VertexBuffer)
		if !ok {
			return errors.Errorf("wgpucompute: varying buffer type %T, want *wgpucompute.VertexBuffer", varying)
		}
		if rb.NumVertices() < need {
			return errors.Errorf("wgpucompute: varying buffer holds %d vertices, tables need %d", rb.NumVertices(), need)
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

// Release frees all table and edit storage. Bound vertex buffers stay with
// their owner.
func (c *Context) Release() {
	for _, b := range []*wgpu.Buffer{c.params, c.fITa, c.fIT, c.eIT, c.eW, c.vITa, c.vIT, c.vW} {
		if b != nil {
			b.Release()
		}
	}
	c.params, c.fITa, c.fIT, c.eIT, c.eW, c.vITa, c.vIT, c.vW = nil, nil, nil, nil, nil, nil, nil, nil
	for _, eb := range c.editBufs {
		if eb.indices != nil {
			eb.indices.Release()
		}
		if eb.values != nil {
			eb.values.Release()
		}
	}
	c.editBufs = nil
	c.vertex = nil
	c.varying = nil
}
