package wgpucompute

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/soypat/subdiv"
)

// VertexBuffer is vertex storage resident on a WebGPU device, laid out as
// NumVertices records of NumElements float32 scalars.
type VertexBuffer struct {
	dev   *Device
	buf   *wgpu.Buffer
	elems int
	verts int
}

// NewVertexBuffer allocates a zeroed device vertex buffer. The caller owns
// the buffer and must Release it.
func NewVertexBuffer(dev *Device, numElements, numVertices int) (*VertexBuffer, error) {
	if numElements <= 0 || numVertices <= 0 {
		panic("wgpucompute: non-positive vertex buffer dimensions")
	}
	buf, err := dev.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "subdiv-vertex",
		Size:  uint64(4 * numElements * numVertices),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, errors.Wrap(subdiv.ErrResourceAllocation, err.Error())
	}
	return &VertexBuffer{dev: dev, buf: buf, elems: numElements, verts: numVertices}, nil
}

func (b *VertexBuffer) NumElements() int { return b.elems }
func (b *VertexBuffer) NumVertices() int { return b.verts }

// UpdateData copies len(src)/NumElements vertex records into the device
// buffer starting at vertex startVertex.
func (b *VertexBuffer) UpdateData(src []float32, startVertex int) {
	b.dev.queue.WriteBuffer(b.buf, uint64(4*startVertex*b.elems), wgpu.ToBytes(src))
}

// ReadData copies the whole device buffer back to host memory through a
// staging buffer. It blocks until the device has finished all submitted
// work touching the buffer.
func (b *VertexBuffer) ReadData() ([]float32, error) {
	size := uint64(4 * b.elems * b.verts)
	staging, err := b.dev.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "subdiv-staging",
		Size:  size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, errors.Wrap(subdiv.ErrResourceAllocation, err.Error())
	}
	defer staging.Release()
	encoder, err := b.dev.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	if err := encoder.CopyBufferToBuffer(b.buf, 0, staging, 0, size); err != nil {
		encoder.Release()
		return nil, err
	}
	cmd, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, err
	}
	b.dev.queue.Submit(cmd)
	cmd.Release()

	var mapStatus wgpu.BufferMapAsyncStatus
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		mapStatus = status
	})
	if err != nil {
		return nil, err
	}
	b.dev.device.Poll(true, nil)
	if mapStatus != wgpu.BufferMapAsyncStatusSuccess {
		return nil, errors.Errorf("wgpucompute: buffer map failed with status %v", mapStatus)
	}
	defer staging.Unmap()
	dst := make([]float32, b.elems*b.verts)
	copy(dst, wgpu.FromBytes[float32](staging.GetMappedRange(0, uint(size))))
	return dst, nil
}

// Release frees the device buffer.
func (b *VertexBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}
