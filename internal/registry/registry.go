// Package registry maps step kinds to the Go handlers that execute them.
//
// The registry is the seam between graph construction and execution: the
// pipeline only names step kinds, and the embedding application decides
// which handler set backs them: real imaging tools, built-in pure steps,
// or test fakes. It is populated once at startup and validated against a
// frozen pipeline before any run.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nvolkov/anatref/internal/pipeline"
	"github.com/nvolkov/anatref/internal/steps"
	"github.com/zclconf/go-cty/cty"
)

// Call carries everything a handler needs for one step invocation. Map
// nodes produce one Call per list element with the iterated inputs already
// unwrapped to scalars.
type Call struct {
	// Node is the pipeline node being executed.
	Node *pipeline.Node
	// Config is the node's resolved scalar configuration.
	Config steps.Config
	// Inputs holds one value per declared input port.
	Inputs map[string]cty.Value
	// Index is the element index for map invocations, -1 otherwise.
	Index int
	// WorkDir is a node-private directory for output files.
	WorkDir string
	// Threads is the CPU reservation granted to this invocation.
	Threads int
}

// Handler executes one step invocation and returns one value per declared
// output port.
type Handler func(ctx context.Context, call Call) (map[string]cty.Value, error)

// Module is implemented by packages that contribute handlers.
type Module interface {
	Register(r *Registry)
}

// Registry holds the handler set for a single application instance.
type Registry struct {
	handlers map[string]Handler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a step kind. Double registration is a
// programmer error and panics at startup wiring time.
func (r *Registry) Register(kind string, h Handler) {
	if _, exists := r.handlers[kind]; exists {
		panic(fmt.Sprintf("handler for step kind '%s' already registered", kind))
	}
	if h == nil {
		panic(fmt.Sprintf("nil handler for step kind '%s'", kind))
	}
	r.handlers[kind] = h
}

// Handler returns the handler registered for kind.
func (r *Registry) Handler(kind string) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every node kind in the pipeline has a handler, so a
// run cannot fail halfway through on a missing registration.
func (r *Registry) Validate(p *pipeline.Pipeline) error {
	var missing []string
	seen := make(map[string]struct{})
	for _, n := range p.Nodes() {
		kind := n.Spec().Kind
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		if _, ok := r.handlers[kind]; !ok {
			missing = append(missing, kind)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("registry validation failed: no handler for step kinds: %s",
			strings.Join(missing, ", "))
	}
	return nil
}
