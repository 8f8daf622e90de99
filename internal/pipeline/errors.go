package pipeline

import "errors"

// Construction and validation failures. All of them surface while the graph
// is being built or frozen, never at execution time.
var (
	ErrFrozen           = errors.New("pipeline is frozen")
	ErrDuplicateNode    = errors.New("duplicate node id")
	ErrUnknownNode      = errors.New("unknown node")
	ErrUnknownPort      = errors.New("unknown port")
	ErrSelfEdge         = errors.New("self-referential edge")
	ErrTypeMismatch     = errors.New("port type mismatch")
	ErrPortAlreadyBound = errors.New("input port already bound")
	ErrPortUnbound      = errors.New("input port not bound")
	ErrCycle            = errors.New("cycle detected")
	ErrUnreachable      = errors.New("node not reachable from input node")
	ErrNoBoundary       = errors.New("input and output nodes not designated")
)
