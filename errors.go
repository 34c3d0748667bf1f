package subdiv

import "github.com/pkg/errors"

// Error sentinels returned by table construction, context creation and
// refinement. Callers should match them with errors.Is since the returned
// errors carry additional context.
var (
	// ErrInvalidTopology reports a stencil that references a vertex outside
	// the already-refined prefix of the buffer. It indicates a bug in the
	// table producer and is never retriable.
	ErrInvalidTopology = errors.New("subdiv: stencil references unrefined or out-of-range vertex")

	// ErrResourceAllocation reports that a compute backend could not
	// allocate table or buffer storage.
	ErrResourceAllocation = errors.New("subdiv: backend resource allocation failed")

	// ErrIndexOutOfRange reports an accessor called with a stencil or edit
	// batch index that exceeds the available count.
	ErrIndexOutOfRange = errors.New("subdiv: index out of range")
)
