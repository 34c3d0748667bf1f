package subdiv

import "github.com/pkg/errors"

// Kernel identifies one of the per-rule compute kernels.
type Kernel uint8

const (
	KernelFace Kernel = iota
	KernelEdge
	KernelVertexA
	KernelVertexB
)

func (k Kernel) String() string {
	switch k {
	case KernelFace:
		return "face"
	case KernelEdge:
		return "edge"
	case KernelVertexA:
		return "vertexA"
	case KernelVertexB:
		return "vertexB"
	}
	return "kernel(?)"
}

// KernelBatch is one kernel invocation over a contiguous destination range.
// DestFirst is the buffer index of destination row 0 and TableFirst the
// stencil row of destination row 0; the batch covers Count rows.
type KernelBatch struct {
	Kernel Kernel
	Level  int
	Pass   bool // second pass of KernelVertexA

	DestFirst  int
	TableFirst int
	Count      int
}

// LevelSequence returns the kernel batches of one refinement level in their
// mandatory dispatch order: face, edge, vertexA pass 0, vertexA pass 1,
// vertexB. The order is not a backend choice; the two vertexA passes alias
// the vertexB destinations and a barrier is required between consecutive
// batches. Schemes without face tables have no face batch.
func (t *Tables) LevelSequence(level int) ([]KernelBatch, error) {
	if level < 1 || level > t.MaxLevel() {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "level %d of %d", level, t.MaxLevel())
	}
	lr := t.set.Levels[level-1]
	seq := make([]KernelBatch, 0, 5)
	if t.NumTables() > 5 && lr.FaceCount > 0 {
		seq = append(seq, KernelBatch{
			Kernel: KernelFace, Level: level,
			DestFirst: lr.FaceFirst, TableFirst: lr.FaceTable, Count: lr.FaceCount,
		})
	}
	if lr.EdgeCount > 0 {
		seq = append(seq, KernelBatch{
			Kernel: KernelEdge, Level: level,
			DestFirst: lr.EdgeFirst, TableFirst: lr.EdgeTable, Count: lr.EdgeCount,
		})
	}
	if lr.VertCount > 0 {
		vb := KernelBatch{
			Kernel: KernelVertexA, Level: level,
			DestFirst: lr.VertFirst, TableFirst: lr.VertTable, Count: lr.VertCount,
		}
		seq = append(seq, vb)
		vb.Pass = true
		seq = append(seq, vb)
		vb.Kernel, vb.Pass = KernelVertexB, false
		seq = append(seq, vb)
	}
	return seq, nil
}
