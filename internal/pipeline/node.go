package pipeline

import (
	"github.com/nvolkov/anatref/internal/steps"
	"github.com/zclconf/go-cty/cty"
)

// PortRef addresses one port on one node.
type PortRef struct {
	Node string
	Port string
}

// Ref is shorthand for constructing a PortRef.
func Ref(node, port string) PortRef {
	return PortRef{Node: node, Port: port}
}

// String renders the reference as "node.port".
func (r PortRef) String() string {
	return r.Node + "." + r.Port
}

// Edge is a directed, type-checked connection between two ports.
type Edge struct {
	From PortRef
	To   PortRef
}

// Hints carries scheduling metadata for one node. Hints never change what a
// step computes, only how the executor places it.
type Hints struct {
	// Threads is the CPU reservation for the step. Zero means one.
	Threads int
	// MemGB is an advisory peak memory estimate in gigabytes.
	MemGB float64
	// Inline asks the executor to run the step in the worker that unlocked
	// it instead of queueing it, for steps too cheap to schedule.
	Inline bool
}

// StepDef is the construction-time description of one node.
type StepDef struct {
	ID     string
	Spec   steps.Spec
	Config steps.Config
	// MapOver lists input ports to iterate over. A node with a non-empty
	// MapOver runs its step once per element of the iterated inputs and
	// publishes every output as a list.
	MapOver []string
	Hints   Hints
}

// Node is one step instance in a pipeline. Nodes are created by
// Pipeline.Add and immutable once the pipeline is frozen.
type Node struct {
	id      string
	spec    steps.Spec
	config  steps.Config
	mapOver []string
	hints   Hints
}

// ID returns the node's unique identifier within its pipeline.
func (n *Node) ID() string { return n.id }

// Spec returns the step descriptor this node instantiates.
func (n *Node) Spec() steps.Spec { return n.spec }

// Config returns a copy of the node's resolved scalar configuration.
func (n *Node) Config() steps.Config {
	out := make(steps.Config, len(n.config))
	for k, v := range n.config {
		out[k] = v
	}
	return out
}

// ConfigValue returns one resolved configuration value.
func (n *Node) ConfigValue(name string) (cty.Value, bool) {
	v, ok := n.config[name]
	return v, ok
}

// MapOver returns a copy of the iterated input port names.
func (n *Node) MapOver() []string {
	return append([]string(nil), n.mapOver...)
}

// IsMap reports whether the node iterates over any of its inputs.
func (n *Node) IsMap() bool { return len(n.mapOver) > 0 }

// Iterates reports whether the named input port is iterated.
func (n *Node) Iterates(port string) bool {
	for _, p := range n.mapOver {
		if p == port {
			return true
		}
	}
	return false
}

// Hints returns the node's scheduling hints.
func (n *Node) Hints() Hints { return n.hints }

// EffectiveInputType returns the type a value arriving on the named input
// port must have. Iterated ports accept a list of the declared type.
func (n *Node) EffectiveInputType(port steps.Port) cty.Type {
	if n.Iterates(port.Name) {
		return cty.List(port.Type)
	}
	return port.Type
}

// EffectiveOutputType returns the type the named output port publishes.
// Every output of a map node is lifted to a list.
func (n *Node) EffectiveOutputType(port steps.Port) cty.Type {
	if n.IsMap() {
		return cty.List(port.Type)
	}
	return port.Type
}
