package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Pipeline is a mutable graph under construction until Freeze succeeds,
// after which it is immutable and safe for concurrent readers.
type Pipeline struct {
	name        string
	description string

	nodes map[string]*Node
	order []string

	edges     []Edge
	sources   map[PortRef]PortRef
	constants map[PortRef]cty.Value

	inputNode  string
	outputNode string

	frozen bool
}

// New creates an empty pipeline with the given name.
func New(name string) *Pipeline {
	if name == "" {
		panic("pipeline name must not be empty")
	}
	return &Pipeline{
		name:      name,
		nodes:     make(map[string]*Node),
		sources:   make(map[PortRef]PortRef),
		constants: make(map[PortRef]cty.Value),
	}
}

// Name returns the pipeline's name.
func (p *Pipeline) Name() string { return p.name }

// Description returns the prose summary attached to the pipeline.
func (p *Pipeline) Description() string { return p.description }

// SetDescription attaches a prose summary of what the pipeline computes.
func (p *Pipeline) SetDescription(text string) error {
	if p.frozen {
		return ErrFrozen
	}
	p.description = text
	return nil
}

// Frozen reports whether Freeze has completed.
func (p *Pipeline) Frozen() bool { return p.frozen }

// Add creates a node from def, resolving its configuration against the
// step's option schema. The node id must be unique, non-empty, and free of
// dots (dots separate node from port in references).
func (p *Pipeline) Add(def StepDef) (*Node, error) {
	if p.frozen {
		return nil, ErrFrozen
	}
	if def.ID == "" || strings.Contains(def.ID, ".") {
		return nil, fmt.Errorf("invalid node id %q", def.ID)
	}
	if _, exists := p.nodes[def.ID]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, def.ID)
	}
	if err := def.Spec.Validate(); err != nil {
		return nil, fmt.Errorf("node %q: %w", def.ID, err)
	}
	cfg, err := def.Spec.ResolveConfig(def.Config)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", def.ID, err)
	}
	for _, port := range def.MapOver {
		if _, ok := def.Spec.Input(port); !ok {
			return nil, fmt.Errorf("node %q: %w: iterated input %q", def.ID, ErrUnknownPort, port)
		}
	}

	n := &Node{
		id:      def.ID,
		spec:    def.Spec,
		config:  cfg,
		mapOver: append([]string(nil), def.MapOver...),
		hints:   def.Hints,
	}
	p.nodes[def.ID] = n
	p.order = append(p.order, def.ID)
	return n, nil
}

// Connect wires an output port to an input port. The destination must be
// unbound and the effective types must match exactly.
func (p *Pipeline) Connect(from, to PortRef) error {
	if p.frozen {
		return ErrFrozen
	}
	if from.Node == to.Node {
		return fmt.Errorf("%w: %s -> %s", ErrSelfEdge, from, to)
	}
	src, ok := p.nodes[from.Node]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, from.Node)
	}
	dst, ok := p.nodes[to.Node]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, to.Node)
	}
	srcPort, ok := src.spec.Output(from.Port)
	if !ok {
		return fmt.Errorf("%w: %s has no output %q", ErrUnknownPort, from.Node, from.Port)
	}
	dstPort, ok := dst.spec.Input(to.Port)
	if !ok {
		return fmt.Errorf("%w: %s has no input %q", ErrUnknownPort, to.Node, to.Port)
	}
	if p.isBound(to) {
		return fmt.Errorf("%w: %s", ErrPortAlreadyBound, to)
	}

	srcType := src.EffectiveOutputType(srcPort)
	dstType := dst.EffectiveInputType(dstPort)
	if !srcType.Equals(dstType) {
		return fmt.Errorf("%w: %s is %s, %s wants %s",
			ErrTypeMismatch, from, srcType.FriendlyName(), to, dstType.FriendlyName())
	}

	p.edges = append(p.edges, Edge{From: from, To: to})
	p.sources[to] = from
	return nil
}

// Bind fixes an input port to a constant value resolved at construction
// time. The value's type must match the port's effective type.
func (p *Pipeline) Bind(to PortRef, val cty.Value) error {
	if p.frozen {
		return ErrFrozen
	}
	dst, ok := p.nodes[to.Node]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, to.Node)
	}
	dstPort, ok := dst.spec.Input(to.Port)
	if !ok {
		return fmt.Errorf("%w: %s has no input %q", ErrUnknownPort, to.Node, to.Port)
	}
	if p.isBound(to) {
		return fmt.Errorf("%w: %s", ErrPortAlreadyBound, to)
	}
	want := dst.EffectiveInputType(dstPort)
	if !val.Type().Equals(want) {
		return fmt.Errorf("%w: constant for %s is %s, want %s",
			ErrTypeMismatch, to, val.Type().FriendlyName(), want.FriendlyName())
	}
	p.constants[to] = val
	return nil
}

func (p *Pipeline) isBound(to PortRef) bool {
	if _, ok := p.sources[to]; ok {
		return true
	}
	_, ok := p.constants[to]
	return ok
}

// SetInputNode designates the node every other node must be reachable from.
func (p *Pipeline) SetInputNode(id string) error {
	if p.frozen {
		return ErrFrozen
	}
	if _, ok := p.nodes[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	p.inputNode = id
	return nil
}

// SetOutputNode designates the node whose ports are the pipeline's results.
func (p *Pipeline) SetOutputNode(id string) error {
	if p.frozen {
		return ErrFrozen
	}
	if _, ok := p.nodes[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	p.outputNode = id
	return nil
}

// InputNode returns the designated input node, or nil before designation.
func (p *Pipeline) InputNode() *Node { return p.nodes[p.inputNode] }

// OutputNode returns the designated output node, or nil before designation.
func (p *Pipeline) OutputNode() *Node { return p.nodes[p.outputNode] }

// Node returns the node with the given id.
func (p *Pipeline) Node(id string) (*Node, bool) {
	n, ok := p.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (p *Pipeline) Nodes() []*Node {
	out := make([]*Node, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.nodes[id])
	}
	return out
}

// Edges returns all connections in insertion order.
func (p *Pipeline) Edges() []Edge {
	return append([]Edge(nil), p.edges...)
}

// Source returns the output port feeding the given input port.
func (p *Pipeline) Source(to PortRef) (PortRef, bool) {
	from, ok := p.sources[to]
	return from, ok
}

// Constant returns the constant bound to the given input port.
func (p *Pipeline) Constant(to PortRef) (cty.Value, bool) {
	v, ok := p.constants[to]
	return v, ok
}

// Constants returns all constant bindings, sorted by destination port.
func (p *Pipeline) Constants() []PortRef {
	refs := make([]PortRef, 0, len(p.constants))
	for ref := range p.constants {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	return refs
}

// Dependencies returns the distinct ids of nodes feeding the given node,
// sorted for determinism.
func (p *Pipeline) Dependencies(id string) []string {
	set := make(map[string]struct{})
	for _, e := range p.edges {
		if e.To.Node == id {
			set[e.From.Node] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Dependents returns the distinct ids of nodes fed by the given node,
// sorted for determinism.
func (p *Pipeline) Dependents(id string) []string {
	set := make(map[string]struct{})
	for _, e := range p.edges {
		if e.From.Node == id {
			set[e.To.Node] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Freeze validates the graph and locks it against further mutation. It is
// idempotent once it has succeeded.
func (p *Pipeline) Freeze() error {
	if p.frozen {
		return nil
	}
	if err := p.validate(); err != nil {
		return err
	}
	p.frozen = true
	return nil
}
