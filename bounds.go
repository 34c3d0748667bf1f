package subdiv

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/subdiv/internal/d3"
)

// LevelBounds returns the axis-aligned bounds of one refinement level's
// vertices, taking the first three scalars of each position record as the
// point. Level 0 is the coarse cage. The position channel must be at least
// three scalars wide.
func (t *Tables) LevelBounds(v *VertexData, level int) (d3.Box, error) {
	first, count, err := t.LevelVertexRange(level)
	if err != nil {
		return d3.Box{}, err
	}
	bb := d3.EmptyBox()
	for i := first; i < first+count; i++ {
		p := v.Vertex[i*v.VertexStride:]
		bb = bb.Include(r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])})
	}
	return bb, nil
}
