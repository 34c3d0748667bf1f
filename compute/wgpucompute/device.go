package wgpucompute

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/soypat/subdiv"
)

// Device bundles the WebGPU instance, adapter, device and queue used by
// this package. One Device can serve any number of contexts and
// controllers.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

// NewDevice acquires a compute-capable device from the default adapter.
func NewDevice() (*Device, error) {
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{})
	if err != nil {
		instance.Release()
		return nil, errors.Wrap(subdiv.ErrResourceAllocation, err.Error())
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "subdiv-compute",
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(subdiv.ErrResourceAllocation, err.Error())
	}
	return &Device{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
	}, nil
}

// Release frees the device and its parents. Buffers and contexts created
// from it must be released first.
func (d *Device) Release() {
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

func (d *Device) newStorageBufferI32(label string, data []int32) (*wgpu.Buffer, error) {
	if len(data) == 0 {
		data = []int32{0}
	}
	return d.newStorageBuffer(label, wgpu.ToBytes(data))
}

func (d *Device) newStorageBufferF32(label string, data []float32) (*wgpu.Buffer, error) {
	if len(data) == 0 {
		data = []float32{0}
	}
	return d.newStorageBuffer(label, wgpu.ToBytes(data))
}

func (d *Device) newStorageBuffer(label string, raw []byte) (*wgpu.Buffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(len(raw)),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, errors.Wrapf(subdiv.ErrResourceAllocation, "%s: %s", label, err.Error())
	}
	d.queue.WriteBuffer(buf, 0, raw)
	return buf, nil
}
