package subdiv

import "github.com/pkg/errors"

// EditOp selects how an edit batch combines its values with the buffer.
type EditOp uint8

const (
	// EditAdd accumulates the edit value onto the primvar scalars.
	EditAdd EditOp = iota
	// EditSet overwrites the primvar scalars with the edit value.
	EditSet
)

func (op EditOp) String() string {
	if op == EditSet {
		return "set"
	}
	return "add"
}

// EditBatch is an ordered hierarchical edit applied to the position-class
// primvar channel of specific vertices after all refinement kernels of its
// target level have run. Values holds PrimvarWidth scalars per index.
type EditBatch struct {
	Level int
	Op    EditOp

	PrimvarOffset int
	PrimvarWidth  int

	Indices []int32
	Values  []float32
}

// NumEdits returns the number of vertex edits in the batch.
func (e *EditBatch) NumEdits() int { return len(e.Indices) }

// Validate checks the batch against a buffer of numVertices records with
// vertexStride scalars each. Bad vertex indices wrap ErrInvalidTopology
// since they indicate a producer bug, exactly like a bad stencil index.
func (e *EditBatch) Validate(numVertices, vertexStride int) error {
	if e.Level < 1 {
		return errors.Wrapf(ErrInvalidTopology, "edit batch targets level %d", e.Level)
	}
	if e.PrimvarWidth <= 0 || e.PrimvarOffset < 0 || e.PrimvarOffset+e.PrimvarWidth > vertexStride {
		return errors.Wrapf(ErrInvalidTopology, "edit batch channel [%d,%d) outside stride %d",
			e.PrimvarOffset, e.PrimvarOffset+e.PrimvarWidth, vertexStride)
	}
	if len(e.Values) != len(e.Indices)*e.PrimvarWidth {
		return errors.Wrapf(ErrInvalidTopology, "edit batch has %d values for %d edits of width %d",
			len(e.Values), len(e.Indices), e.PrimvarWidth)
	}
	for _, idx := range e.Indices {
		if idx < 0 || int(idx) >= numVertices {
			return errors.Wrapf(ErrInvalidTopology, "edit batch vertex %d of %d", idx, numVertices)
		}
	}
	return nil
}

// Apply performs the edits in table order; for EditSet, later edits to the
// same vertex win.
func (e *EditBatch) Apply(v *VertexData) {
	for k, idx := range e.Indices {
		base := int(idx)*v.VertexStride + e.PrimvarOffset
		val := e.Values[k*e.PrimvarWidth : (k+1)*e.PrimvarWidth]
		dst := v.Vertex[base : base+e.PrimvarWidth]
		if e.Op == EditSet {
			copy(dst, val)
		} else {
			for c := range dst {
				dst[c] += val[c]
			}
		}
	}
}
