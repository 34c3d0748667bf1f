// Package subdiv computes refined vertex positions for subdivision surfaces
// by applying precomputed topology-derived stencils to a flat vertex buffer.
// The stencil tables store the indexing required to compute the refined
// positions of a mesh without a hierarchical data structure, which lets the
// same refinement run in massively parallel environments without data
// dependencies. Execution backends live in the compute subpackages; the
// kernels in this package are the scalar reference they all must match.
package subdiv

import (
	"fmt"

	"github.com/pkg/errors"
)

// Scheme tags the subdivision rules a table set was built for.
type Scheme uint8

const (
	SchemeBilinear Scheme = iota
	SchemeCatmark
	SchemeLoop
)

func (s Scheme) String() string {
	switch s {
	case SchemeBilinear:
		return "bilinear"
	case SchemeCatmark:
		return "catmark"
	case SchemeLoop:
		return "loop"
	}
	return "scheme(" + fmt.Sprint(uint8(s)) + ")"
}

// LevelRange locates one refinement level's destination vertices and stencil
// rows. Destination vertices of a level are laid out face points first, then
// edge points, then vertex points, immediately after the previous level.
type LevelRange struct {
	// FaceFirst is the buffer index of the level's first face point.
	// FaceTable is the F_ITa row of the level's first face stencil.
	FaceFirst, FaceCount, FaceTable int
	EdgeFirst, EdgeCount, EdgeTable int
	VertFirst, VertCount, VertTable int
}

// TableSet is the versioned flat layout produced by a topology refinement
// subsystem. Array and field names follow the table layout convention
// (F_IT/F_ITa, E_IT, V_IT/V_ITa, E_W, V_W) so producers and consumers agree
// on the wire format:
//
//	F_ITa  2 int32 per face stencil: ring offset into F_IT, valence.
//	F_IT   flat face stencil source indices.
//	E_IT   4 int32 per edge stencil: endpoints e0,e1 and face points e2,e3.
//	       e2 == -1 marks a fully sharp edge with no face point term; e3 is
//	       then undefined and must not be read.
//	E_W    2 float32 per edge stencil: vertex weight, face weight.
//	V_ITa  5 int32 per vertex stencil: ring offset into V_IT (-1 if none),
//	       valence (-1 for the corner/crease pass combination), parent,
//	       crease edge indices eidx0, eidx1 (-1 if none).
//	V_IT   2 int32 per ring neighbor: parent neighbor vertex, face point.
//	V_W    1 float32 per vertex stencil: sharpness-derived blend weight.
//
// All stencil source indices are absolute buffer indices.
type TableSet struct {
	Scheme            Scheme
	NumCoarseVertices int
	// Levels[0] describes refinement level 1.
	Levels []LevelRange

	F_ITa []int32
	F_IT  []int32
	E_IT  []int32
	E_W   []float32
	V_ITa []int32
	V_IT  []int32
	V_W   []float32
}

// Tables holds validated, immutable stencil tables for one mesh. A Tables
// value is read-only after construction and safe for concurrent use by any
// number of kernel invocations and backends.
type Tables struct {
	set TableSet
}

// NewTables validates the flat table layout and returns the immutable table
// set. Validation enforces the layered dependency invariant: face stencils
// of level L reference only vertices below the level, edge stencils may
// additionally reference the level's own face points, and vertex stencils
// may reference anything below the level's vertex points. Violations return
// an error wrapping ErrInvalidTopology.
//
// The argument slices are retained without copying; callers must not mutate
// them afterwards.
func NewTables(set TableSet) (*Tables, error) {
	if set.NumCoarseVertices <= 0 {
		return nil, errors.Wrap(ErrInvalidTopology, "no coarse vertices")
	}
	hasFaces := set.Scheme != SchemeLoop
	if !hasFaces && (len(set.F_ITa) != 0 || len(set.F_IT) != 0) {
		return nil, errors.Wrap(ErrInvalidTopology, "loop scheme carries face tables")
	}
	next := set.NumCoarseVertices
	for li, lr := range set.Levels {
		level := li + 1
		if lr.FaceCount < 0 || lr.EdgeCount < 0 || lr.VertCount < 0 {
			return nil, errors.Wrapf(ErrInvalidTopology, "level %d: negative count", level)
		}
		if !hasFaces && lr.FaceCount != 0 {
			return nil, errors.Wrapf(ErrInvalidTopology, "level %d: face points in loop scheme", level)
		}
		if lr.FaceFirst != next ||
			lr.EdgeFirst != lr.FaceFirst+lr.FaceCount ||
			lr.VertFirst != lr.EdgeFirst+lr.EdgeCount {
			return nil, errors.Wrapf(ErrInvalidTopology, "level %d: vertex ranges not contiguous", level)
		}
		next = lr.VertFirst + lr.VertCount

		if err := validateFaceRows(&set, lr, level); err != nil {
			return nil, err
		}
		if err := validateEdgeRows(&set, lr, level); err != nil {
			return nil, err
		}
		if err := validateVertexRows(&set, lr, level); err != nil {
			return nil, err
		}
	}
	return &Tables{set: set}, nil
}

func validateFaceRows(set *TableSet, lr LevelRange, level int) error {
	if 2*(lr.FaceTable+lr.FaceCount) > len(set.F_ITa) {
		return errors.Wrapf(ErrInvalidTopology, "level %d: face stencils exceed F_ITa", level)
	}
	for j := 0; j < lr.FaceCount; j++ {
		row := lr.FaceTable + j
		h, n := int(set.F_ITa[2*row]), int(set.F_ITa[2*row+1])
		if n <= 0 || h < 0 || h+n > len(set.F_IT) {
			return errors.Wrapf(ErrInvalidTopology, "level %d: face stencil %d ring out of table", level, row)
		}
		for k := 0; k < n; k++ {
			if src := set.F_IT[h+k]; src < 0 || int(src) >= lr.FaceFirst {
				return errors.Wrapf(ErrInvalidTopology, "level %d: face stencil %d references %d (prefix %d)", level, row, src, lr.FaceFirst)
			}
		}
	}
	return nil
}

func validateEdgeRows(set *TableSet, lr LevelRange, level int) error {
	if 4*(lr.EdgeTable+lr.EdgeCount) > len(set.E_IT) || 2*(lr.EdgeTable+lr.EdgeCount) > len(set.E_W) {
		return errors.Wrapf(ErrInvalidTopology, "level %d: edge stencils exceed E_IT/E_W", level)
	}
	for j := 0; j < lr.EdgeCount; j++ {
		row := lr.EdgeTable + j
		e := set.E_IT[4*row : 4*row+4]
		if e[0] < 0 || int(e[0]) >= lr.EdgeFirst || e[1] < 0 || int(e[1]) >= lr.EdgeFirst {
			return errors.Wrapf(ErrInvalidTopology, "level %d: edge stencil %d endpoint out of prefix %d", level, row, lr.EdgeFirst)
		}
		if e[2] != -1 {
			if e[2] < 0 || int(e[2]) >= lr.EdgeFirst || e[3] < 0 || int(e[3]) >= lr.EdgeFirst {
				return errors.Wrapf(ErrInvalidTopology, "level %d: edge stencil %d face point out of prefix %d", level, row, lr.EdgeFirst)
			}
		}
	}
	return nil
}

func validateVertexRows(set *TableSet, lr LevelRange, level int) error {
	if 5*(lr.VertTable+lr.VertCount) > len(set.V_ITa) || lr.VertTable+lr.VertCount > len(set.V_W) {
		return errors.Wrapf(ErrInvalidTopology, "level %d: vertex stencils exceed V_ITa/V_W", level)
	}
	for j := 0; j < lr.VertCount; j++ {
		row := lr.VertTable + j
		va := set.V_ITa[5*row : 5*row+5]
		h, n, p, eidx0, eidx1 := int(va[0]), int(va[1]), va[2], va[3], va[4]
		if p < 0 || int(p) >= lr.VertFirst {
			return errors.Wrapf(ErrInvalidTopology, "level %d: vertex stencil %d parent out of prefix %d", level, row, lr.VertFirst)
		}
		if h != -1 && n > 0 {
			if h < 0 || h+2*n > len(set.V_IT) {
				return errors.Wrapf(ErrInvalidTopology, "level %d: vertex stencil %d ring out of table", level, row)
			}
			for k := 0; k < 2*n; k++ {
				if src := set.V_IT[h+k]; src < 0 || int(src) >= lr.VertFirst {
					return errors.Wrapf(ErrInvalidTopology, "level %d: vertex stencil %d references %d (prefix %d)", level, row, src, lr.VertFirst)
				}
			}
		}
		if eidx0 != -1 {
			if eidx0 < 0 || int(eidx0) >= lr.VertFirst || eidx1 < 0 || int(eidx1) >= lr.VertFirst {
				return errors.Wrapf(ErrInvalidTopology, "level %d: vertex stencil %d crease edge out of prefix %d", level, row, lr.VertFirst)
			}
		}
	}
	return nil
}

// Scheme returns the subdivision scheme of the tables.
func (t *Tables) Scheme() Scheme { return t.set.Scheme }

// NumTables returns the number of indexing tables needed to represent the
// scheme: 7 for schemes with face stencils, 5 for loop.
func (t *Tables) NumTables() int {
	if t.set.Scheme == SchemeLoop {
		return 5
	}
	return 7
}

// MaxLevel returns the deepest refinement level the tables describe.
func (t *Tables) MaxLevel() int { return len(t.set.Levels) }

// NumCoarseVertices returns the number of level-0 cage vertices.
func (t *Tables) NumCoarseVertices() int { return t.set.NumCoarseVertices }

// NumVertices returns the total number of buffer vertices required to refine
// up to and including maxLevel.
func (t *Tables) NumVertices(maxLevel int) (int, error) {
	if maxLevel < 0 || maxLevel > t.MaxLevel() {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "level %d of %d", maxLevel, t.MaxLevel())
	}
	if maxLevel == 0 {
		return t.set.NumCoarseVertices, nil
	}
	lr := t.set.Levels[maxLevel-1]
	return lr.VertFirst + lr.VertCount, nil
}

// LevelVertexRange returns the destination buffer range [first, first+count)
// holding the vertices of one refinement level. Level 0 is the coarse cage.
func (t *Tables) LevelVertexRange(level int) (first, count int, err error) {
	if level < 0 || level > t.MaxLevel() {
		return 0, 0, errors.Wrapf(ErrIndexOutOfRange, "level %d of %d", level, t.MaxLevel())
	}
	if level == 0 {
		return 0, t.set.NumCoarseVertices, nil
	}
	lr := t.set.Levels[level-1]
	return lr.FaceFirst, lr.FaceCount + lr.EdgeCount + lr.VertCount, nil
}

// Set returns the underlying flat table layout. The returned slices are
// shared with the Tables and must be treated as read-only; backends use them
// to mirror the tables into device storage.
func (t *Tables) Set() TableSet { return t.set }

// FaceStencil is one decoded face point rule: every ring source contributes
// weight 1/len(Ring).
type FaceStencil struct {
	Ring []int32
}

// EdgeStencil is one decoded edge point rule. F0, F1 and FaceWeight are
// meaningful only when FacePoints is true; a fully sharp edge has no
// fractional face point term.
type EdgeStencil struct {
	V0, V1     int32
	VertWeight float32

	FacePoints bool
	F0, F1     int32
	FaceWeight float32
}

// VertexStencil is one decoded vertex point rule. Ring is nil when the
// stencil has no smooth term; Crease0 and Crease1 are meaningful only when
// HasCrease is true.
type VertexStencil struct {
	Parent  int32
	Valence int32
	Weight  float32

	Ring []int32 // two source indices per ring neighbor

	HasCrease        bool
	Crease0, Crease1 int32
}

// smoothOwned reports whether the smooth/dart kernel owns this stencil's
// destination.
func (s VertexStencil) smoothOwned() bool { return s.Valence > 0 && s.Ring != nil }

// NumFaceStencils returns the total face stencil row count across levels.
func (t *Tables) NumFaceStencils() int { return len(t.set.F_ITa) / 2 }

// NumEdgeStencils returns the total edge stencil row count across levels.
func (t *Tables) NumEdgeStencils() int { return len(t.set.E_IT) / 4 }

// NumVertexStencils returns the total vertex stencil row count across levels.
func (t *Tables) NumVertexStencils() int { return len(t.set.V_ITa) / 5 }

// FaceStencil decodes face stencil row i.
func (t *Tables) FaceStencil(i int) (FaceStencil, error) {
	if i < 0 || i >= t.NumFaceStencils() {
		return FaceStencil{}, errors.Wrapf(ErrIndexOutOfRange, "face stencil %d of %d", i, t.NumFaceStencils())
	}
	return t.faceStencilAt(i), nil
}

// EdgeStencil decodes edge stencil row i.
func (t *Tables) EdgeStencil(i int) (EdgeStencil, error) {
	if i < 0 || i >= t.NumEdgeStencils() {
		return EdgeStencil{}, errors.Wrapf(ErrIndexOutOfRange, "edge stencil %d of %d", i, t.NumEdgeStencils())
	}
	return t.edgeStencilAt(i), nil
}

// VertexStencil decodes vertex stencil row i.
func (t *Tables) VertexStencil(i int) (VertexStencil, error) {
	if i < 0 || i >= t.NumVertexStencils() {
		return VertexStencil{}, errors.Wrapf(ErrIndexOutOfRange, "vertex stencil %d of %d", i, t.NumVertexStencils())
	}
	return t.vertexStencilAt(i), nil
}

func (t *Tables) faceStencilAt(row int) FaceStencil {
	h, n := int(t.set.F_ITa[2*row]), int(t.set.F_ITa[2*row+1])
	return FaceStencil{Ring: t.set.F_IT[h : h+n]}
}

func (t *Tables) edgeStencilAt(row int) EdgeStencil {
	e := t.set.E_IT[4*row : 4*row+4]
	s := EdgeStencil{
		V0:         e[0],
		V1:         e[1],
		VertWeight: t.set.E_W[2*row],
	}
	if e[2] != -1 {
		s.FacePoints = true
		s.F0, s.F1 = e[2], e[3]
		s.FaceWeight = t.set.E_W[2*row+1]
	}
	return s
}

func (t *Tables) vertexStencilAt(row int) VertexStencil {
	va := t.set.V_ITa[5*row : 5*row+5]
	s := VertexStencil{
		Parent:  va[2],
		Valence: va[1],
		Weight:  t.set.V_W[row],
	}
	if h := int(va[0]); h != -1 && s.Valence > 0 {
		s.Ring = t.set.V_IT[h : h+2*int(s.Valence)]
	}
	if va[3] != -1 {
		s.HasCrease = true
		s.Crease0, s.Crease1 = va[3], va[4]
	}
	return s
}
