package glcompute

import (
	"github.com/go-gl/gl/all-core/gl"
	"github.com/pkg/errors"

	"github.com/soypat/subdiv"
)

// VertexBuffer is vertex storage resident in an OpenGL shader storage
// buffer, laid out exactly like its CPU counterpart: NumVertices records of
// NumElements float32 scalars.
type VertexBuffer struct {
	ssbo  uint32
	elems int
	verts int
}

// NewVertexBuffer allocates a zeroed device vertex buffer. The caller owns
// the buffer and must Release it.
func NewVertexBuffer(numElements, numVertices int) (*VertexBuffer, error) {
	if numElements <= 0 || numVertices <= 0 {
		panic("glcompute: non-positive vertex buffer dimensions")
	}
	zero := make([]float32, numElements*numVertices)
	ssbo, err := newSSBOf32(zero, gl.DYNAMIC_DRAW)
	if err != nil {
		return nil, err
	}
	return &VertexBuffer{ssbo: ssbo, elems: numElements, verts: numVertices}, nil
}

func (b *VertexBuffer) NumElements() int { return b.elems }
func (b *VertexBuffer) NumVertices() int { return b.verts }

// UpdateData copies len(src)/NumElements vertex records into the device
// buffer starting at vertex startVertex.
func (b *VertexBuffer) UpdateData(src []float32, startVertex int) {
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, b.ssbo)
	gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, 4*startVertex*b.elems, 4*len(src), gl.Ptr(src))
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
}

// ReadData copies the whole device buffer back to host memory.
func (b *VertexBuffer) ReadData() ([]float32, error) {
	dst := make([]float32, b.elems*b.verts)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, b.ssbo)
	gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, 0, 4*len(dst), gl.Ptr(dst))
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	if e := gl.GetError(); e != gl.NO_ERROR {
		return nil, errors.Errorf("glcompute: buffer readback failed with GL error 0x%x", e)
	}
	return dst, nil
}

// Release deletes the device buffer.
func (b *VertexBuffer) Release() {
	if b.ssbo != 0 {
		gl.DeleteBuffers(1, &b.ssbo)
		b.ssbo = 0
	}
}

func newSSBOf32(data []float32, usage uint32) (uint32, error) {
	if len(data) == 0 {
		data = []float32{0}
	}
	var ssbo uint32
	gl.GenBuffers(1, &ssbo)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, 4*len(data), gl.Ptr(data), usage)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	if e := gl.GetError(); e != gl.NO_ERROR {
		gl.DeleteBuffers(1, &ssbo)
		return 0, errors.Wrapf(subdiv.ErrResourceAllocation, "ssbo of %d floats, GL error 0x%x", len(data), e)
	}
	return ssbo, nil
}

func newSSBOi32(data []int32, usage uint32) (uint32, error) {
	if len(data) == 0 {
		data = []int32{0}
	}
	var ssbo uint32
	gl.GenBuffers(1, &ssbo)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, 4*len(data), gl.Ptr(data), usage)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	if e := gl.GetError(); e != gl.NO_ERROR {
		gl.DeleteBuffers(1, &ssbo)
		return 0, errors.Wrapf(subdiv.ErrResourceAllocation, "ssbo of %d ints, GL error 0x%x", len(data), e)
	}
	return ssbo, nil
}
