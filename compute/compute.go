// Package compute defines the backend-agnostic context/controller protocol
// for applying stencil tables to vertex buffers, and implements the two CPU
// execution models. GPU execution models live in the subpackages and obey
// the identical kernel semantics and dispatch order.
package compute

import (
	"github.com/soypat/subdiv"
)

// VertexBuffer is caller-owned vertex storage a Context reads and writes
// between Bind and Unbind. Each vertex occupies NumElements contiguous
// float32 scalars. Concrete buffer representations are backend specific;
// a controller rejects buffers of a foreign backend.
type VertexBuffer interface {
	NumElements() int
	NumVertices() int
}

// Context bundles one mesh's stencil tables, its edit batches and the
// currently bound vertex/varying buffers for a particular backend. The
// tables are read-only for the Context's entire lifetime; only the bound
// buffers are mutated, and only by kernel execution. Contexts hold a
// non-owning reference to bound buffers, valid until Unbind.
type Context interface {
	Tables() *subdiv.Tables
	NumEditBatches() int
	// EditBatch returns batch i, or an error wrapping
	// subdiv.ErrIndexOutOfRange.
	EditBatch(i int) (subdiv.EditBatch, error)
	// Bind records the buffers a subsequent compute pass will read and
	// write. varying may be nil when no varying channel is refined.
	Bind(vertex, varying VertexBuffer) error
	Unbind()
}

// Controller orchestrates the per-level multi-pass kernel dispatch over a
// Context: for every level up to maxLevel it issues the batches of
// Tables.LevelSequence in order with a barrier between batches, then
// applies the edit batches targeting that level. Controllers are stateless
// with respect to any single mesh and may be shared across concurrent
// refinements of independent Contexts.
type Controller interface {
	Refine(c Context, maxLevel int) error
}
