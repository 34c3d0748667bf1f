// Package wgpucompute refines subdivision vertex buffers through WebGPU
// compute pipelines. The WGSL kernels mirror the CPU kernels scalar for
// scalar; each kernel batch is submitted as its own command buffer, which
// orders batches the way the refinement requires.
package wgpucompute

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/soypat/subdiv"
	"github.com/soypat/subdiv/compute"
)

type pipelineKey struct {
	vertexWidth  int
	varyingWidth int
}

// kernelSet is the compiled form of one primvar layout: the shader module,
// the two bind group layouts and one pipeline per entry point.
type kernelSet struct {
	mainLayout *wgpu.BindGroupLayout
	editLayout *wgpu.BindGroupLayout
	face       *wgpu.ComputePipeline
	edge       *wgpu.ComputePipeline
	vertexA    *wgpu.ComputePipeline
	vertexB    *wgpu.ComputePipeline
	editAdd    *wgpu.ComputePipeline
	editSet    *wgpu.ComputePipeline
}

func (ks *kernelSet) release() {
	for _, p := range []*wgpu.ComputePipeline{ks.face, ks.edge, ks.vertexA, ks.vertexB, ks.editAdd, ks.editSet} {
		if p != nil {
			p.Release()
		}
	}
	ks.mainLayout.Release()
	ks.editLayout.Release()
}

// Controller dispatches refinement over WebGPU contexts. Pipelines are
// cached per primvar layout.
type Controller struct {
	dev     *Device
	mu      sync.Mutex
	kernels map[pipelineKey]*kernelSet
}

var _ compute.Controller = (*Controller)(nil)

func NewController(dev *Device) *Controller {
	return &Controller{dev: dev, kernels: make(map[pipelineKey]*kernelSet)}
}

// Refine runs every kernel batch of every level through the device, then
// the level's hierarchical edits. Duplicate targets inside one edit batch
// race on the GPU; batches produced by the table builders never contain
// them.
func (ct *Controller) Refine(c compute.Context, maxLevel int) error {
	g, ok := c.(*Context)
	if !ok {
		return errors.Errorf("wgpucompute: context type %T, want *wgpucompute.Context", c)
	}
	if g.vertex == nil {
		return errors.New("wgpucompute: refine on unbound context")
	}
	t := g.tables
	if maxLevel < 0 || maxLevel > t.MaxLevel() {
		return errors.Wrapf(subdiv.ErrIndexOutOfRange, "refine to level %d of max %d", maxLevel, t.MaxLevel())
	}
	varyingWidth := 0
	if g.varying != nil {
		varyingWidth = g.varying.NumElements()
	}
	ks, err := ct.kernelSet(g.vertex.NumElements(), varyingWidth)
	if err != nil {
		return err
	}
	mainGroup, err := ct.mainBindGroup(ks, g)
	if err != nil {
		return err
	}
	defer mainGroup.Release()
	editGroups := make([]*wgpu.BindGroup, len(g.editBufs))
	for i, eb := range g.editBufs {
		editGroups[i], err = ct.editBindGroup(ks, eb)
		if err != nil {
			for _, bg := range editGroups[:i] {
				bg.Release()
			}
			return err
		}
	}
	defer func() {
		for _, bg := range editGroups {
			bg.Release()
		}
	}()
	for level := 1; level <= maxLevel; level++ {
		batches, err := t.LevelSequence(level)
		if err != nil {
			return err
		}
		for _, b := range batches {
			klog.V(2).Infof("wgpucompute: level %d %s pass=%v count=%d", level, b.Kernel, b.Pass, b.Count)
			var pipeline *wgpu.ComputePipeline
			switch b.Kernel {
			case subdiv.KernelFace:
				pipeline = ks.face
			case subdiv.KernelEdge:
				pipeline = ks.edge
			case subdiv.KernelVertexA:
				pipeline = ks.vertexA
			case subdiv.KernelVertexB:
				pipeline = ks.vertexB
			}
			var pass int32
			if b.Pass {
				pass = 1
			}
			params := [8]int32{pass, int32(b.DestFirst), int32(b.TableFirst), int32(b.Count), 0, 0, 0, 0}
			if err := ct.dispatch(g, pipeline, params, mainGroup, nil, b.Count); err != nil {
				return errors.Wrapf(err, "level %d %s kernel", level, b.Kernel)
			}
		}
		for i, e := range g.edits {
			if e.Level != level {
				continue
			}
			pipeline := ks.editAdd
			if e.Op == subdiv.EditSet {
				pipeline = ks.editSet
			}
			params := [8]int32{0, 0, 0, int32(e.NumEdits()), int32(e.PrimvarOffset), int32(e.PrimvarWidth), 0, 0}
			if err := ct.dispatch(g, pipeline, params, mainGroup, editGroups[i], e.NumEdits()); err != nil {
				return errors.Wrapf(err, "level %d %s edit batch", level, e.Op)
			}
		}
	}
	return nil
}

// dispatch uploads the parameter block, encodes one compute pass and
// submits it. The submit doubles as the barrier between consecutive
// batches.
func (ct *Controller) dispatch(g *Context, pipeline *wgpu.ComputePipeline, params [8]int32, mainGroup, editGroup *wgpu.BindGroup, count int) error {
	ct.dev.queue.WriteBuffer(g.params, 0, wgpu.ToBytes(params[:]))
	encoder, err := ct.dev.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, mainGroup, nil)
	if editGroup != nil {
		pass.SetBindGroup(1, editGroup, nil)
	}
	pass.DispatchWorkgroups(uint32((count+workgroupSize-1)/workgroupSize), 1, 1)
	pass.End()
	cmd, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return err
	}
	ct.dev.queue.Submit(cmd)
	cmd.Release()
	return nil
}

func (ct *Controller) mainBindGroup(ks *kernelSet, g *Context) (*wgpu.BindGroup, error) {
	varying := g.vertex.buf
	if g.varying != nil {
		varying = g.varying.buf
	}
	entries := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: g.params, Size: wgpu.WholeSize},
		{Binding: 1, Buffer: g.vertex.buf, Size: wgpu.WholeSize},
		{Binding: 2, Buffer: varying, Size: wgpu.WholeSize},
		{Binding: 3, Buffer: g.fITa, Size: wgpu.WholeSize},
		{Binding: 4, Buffer: g.fIT, Size: wgpu.WholeSize},
		{Binding: 5, Buffer: g.eIT, Size: wgpu.WholeSize},
		{Binding: 6, Buffer: g.eW, Size: wgpu.WholeSize},
		{Binding: 7, Buffer: g.vITa, Size: wgpu.WholeSize},
		{Binding: 8, Buffer: g.vIT, Size: wgpu.WholeSize},
		{Binding: 9, Buffer: g.vW, Size: wgpu.WholeSize},
	}
	return ct.dev.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "subdiv-main",
		Layout:  ks.mainLayout,
		Entries: entries,
	})
}

func (ct *Controller) editBindGroup(ks *kernelSet, eb editBuffers) (*wgpu.BindGroup, error) {
	return ct.dev.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "subdiv-edit",
		Layout: ks.editLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: eb.indices, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: eb.values, Size: wgpu.WholeSize},
		},
	})
}

func (ct *Controller) kernelSet(vertexWidth, varyingWidth int) (*kernelSet, error) {
	key := pipelineKey{vertexWidth: vertexWidth, varyingWidth: varyingWidth}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ks, ok := ct.kernels[key]; ok {
		return ks, nil
	}
	ks, err := ct.compile(vertexWidth, varyingWidth)
	if err != nil {
		return nil, err
	}
	ct.kernels[key] = ks
	return ks, nil
}

func (ct *Controller) compile(vertexWidth, varyingWidth int) (*kernelSet, error) {
	dev := ct.dev.device
	module, err := dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "subdiv-kernels",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: kernelSource(vertexWidth, varyingWidth)},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	storageRW := wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
	storageRO := wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
	mainEntries := []wgpu.BindGroupLayoutEntry{
		{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}},
		{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: storageRW},
		{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: storageRW},
	}
	for b := uint32(3); b <= 9; b++ {
		mainEntries = append(mainEntries, wgpu.BindGroupLayoutEntry{Binding: b, Visibility: wgpu.ShaderStageCompute, Buffer: storageRO})
	}
	mainLayout, err := dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "subdiv-main",
		Entries: mainEntries,
	})
	if err != nil {
		return nil, err
	}
	editLayout, err := dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "subdiv-edit",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: storageRO},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: storageRO},
		},
	})
	if err != nil {
		mainLayout.Release()
		return nil, err
	}
	kernelLayout, err := dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "subdiv-kernel",
		BindGroupLayouts: []*wgpu.BindGroupLayout{mainLayout},
	})
	if err != nil {
		mainLayout.Release()
		editLayout.Release()
		return nil, err
	}
	defer kernelLayout.Release()
	editPipeLayout, err := dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "subdiv-edit",
		BindGroupLayouts: []*wgpu.BindGroupLayout{mainLayout, editLayout},
	})
	if err != nil {
		mainLayout.Release()
		editLayout.Release()
		return nil, err
	}
	defer editPipeLayout.Release()

	ks := &kernelSet{mainLayout: mainLayout, editLayout: editLayout}
	mk := func(entry string, layout *wgpu.PipelineLayout) (*wgpu.ComputePipeline, error) {
		return dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  entry,
			Layout: layout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: entry,
			},
		})
	}
	if ks.face, err = mk(entryFace, kernelLayout); err != nil {
		ks.release()
		return nil, err
	}
	if ks.edge, err = mk(entryEdge, kernelLayout); err != nil {
		ks.release()
		return nil, err
	}
	if ks.vertexA, err = mk(entryVertexA, kernelLayout); err != nil {
		ks.release()
		return nil, err
	}
	if ks.vertexB, err = mk(entryVertexB, kernelLayout); err != nil {
		ks.release()
		return nil, err
	}
	if ks.editAdd, err = mk(entryEditAdd, editPipeLayout); err != nil {
		ks.release()
		return nil, err
	}
	if ks.editSet, err = mk(entryEditSet, editPipeLayout); err != nil {
		ks.release()
		return nil, err
	}
	return ks, nil
}
