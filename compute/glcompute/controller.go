// Package glcompute refines subdivision vertex buffers on the GPU with
// OpenGL 4.3 compute shaders. Tables and primvar data live in shader
// storage buffers; the controller compiles one kernel program per primvar
// layout and dispatches the refinement batches with memory barriers
// between them.
//
// All calls require a current GL context on the calling goroutine.
package glcompute

import (
	"strings"
	"sync"

	"github.com/go-gl/gl/all-core/gl"
	"github.com/pkg/errors"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"k8s.io/klog/v2"

	"github.com/soypat/subdiv"
	"github.com/soypat/subdiv/compute"
)

type programKey struct {
	vertexWidth  int
	varyingWidth int
}

// Controller dispatches refinement over GL contexts. Programs are cached
// per primvar layout so repeated refinement of same-shaped buffers
// recompiles nothing.
type Controller struct {
	mu       sync.Mutex
	programs map[programKey]glgl.Program
}

var _ compute.Controller = (*Controller)(nil)

func NewController() *Controller {
	return &Controller{programs: make(map[programKey]glgl.Program)}
}

// Refine runs every kernel batch of every level through the device, then
// the level's hierarchical edits. Duplicate targets inside one edit batch
// race on the GPU; batches produced by the table builders never contain
// them.
func (ct *Controller) Refine(c compute.Context, maxLevel int) error {
	g, ok := c.(*Context)
	if !ok {
		return errors.Errorf("glcompute: context type %T, want *glcompute.Context", c)
	}
	if g.vertex == nil {
		return errors.New("glcompute: refine on unbound context")
	}
	t := g.tables
	if maxLevel < 0 || maxLevel > t.MaxLevel() {
		return errors.Wrapf(subdiv.ErrIndexOutOfRange, "refine to level %d of max %d", maxLevel, t.MaxLevel())
	}
	varyingWidth := 0
	if g.varying != nil {
		varyingWidth = g.varying.NumElements()
	}
	prog, err := ct.program(g.vertex.NumElements(), varyingWidth)
	if err != nil {
		return err
	}
	prog.Bind()
	if err := g.bindBases(); err != nil {
		return err
	}
	for level := 1; level <= maxLevel; level++ {
		batches, err := t.LevelSequence(level)
		if err != nil {
			return err
		}
		for _, b := range batches {
			klog.V(2).Infof("glcompute: level %d %s pass=%v count=%d", level, b.Kernel, b.Pass, b.Count)
			g.uploadParams(batchParams(b))
			if err := prog.RunCompute(b.Count, 1, 1); err != nil {
				return errors.Wrapf(err, "level %d %s kernel", level, b.Kernel)
			}
			gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
		}
		for i, e := range g.edits {
			if e.Level != level {
				continue
			}
			g.bindEditBatch(i)
			g.uploadParams(editParams(e))
			if err := prog.RunCompute(e.NumEdits(), 1, 1); err != nil {
				return errors.Wrapf(err, "level %d %s edit batch", level, e.Op)
			}
			gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
		}
	}
	return nil
}

func (ct *Controller) program(vertexWidth, varyingWidth int) (glgl.Program, error) {
	key := programKey{vertexWidth: vertexWidth, varyingWidth: varyingWidth}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if prog, ok := ct.programs[key]; ok {
		return prog, nil
	}
	source := kernelSource(vertexWidth, varyingWidth)
	combined, err := glgl.ParseCombined(strings.NewReader(source))
	if err != nil {
		return glgl.Program{}, err
	}
	prog, err := glgl.CompileProgram(combined)
	if err != nil {
		return glgl.Program{}, errors.New(string(combined.Compute) + "\n" + err.Error())
	}
	ct.programs[key] = prog
	return prog, nil
}

func batchParams(b subdiv.KernelBatch) [paramsSize]int32 {
	var kernel int32
	switch b.Kernel {
	case subdiv.KernelFace:
		kernel = kernelFace
	case subdiv.KernelEdge:
		kernel = kernelEdge
	case subdiv.KernelVertexA:
		kernel = kernelVertexA
	case subdiv.KernelVertexB:
		kernel = kernelVertexB
	}
	var pass int32
	if b.Pass {
		pass = 1
	}
	return [paramsSize]int32{kernel, pass, int32(b.DestFirst), int32(b.TableFirst), int32(b.Count), 0, 0, 0}
}

func editParams(e subdiv.EditBatch) [paramsSize]int32 {
	kernel := int32(kernelEditAdd)
	if e.Op == subdiv.EditSet {
		kernel = kernelEditSet
	}
	return [paramsSize]int32{kernel, 0, 0, 0, int32(e.NumEdits()), int32(e.PrimvarOffset), int32(e.PrimvarWidth), 0}
}
