package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// DOT renders the pipeline as a Graphviz digraph. Map nodes are drawn as
// box3d shapes so fan-out steps stand out; edges are labelled with their
// port pair.
func (p *Pipeline) DOT() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", p.name)
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, fontname=\"Helvetica\"];\n")

	for _, id := range p.order {
		n := p.nodes[id]
		shape := "box"
		if n.IsMap() {
			shape = "box3d"
		}
		fmt.Fprintf(&sb, "  %q [label=\"%s\\n(%s)\", shape=%s];\n",
			id, id, n.spec.Kind, shape)
	}
	for _, e := range p.edges {
		fmt.Fprintf(&sb, "  %q -> %q [label=\"%s → %s\"];\n",
			e.From.Node, e.To.Node, e.From.Port, e.To.Port)
	}
	sb.WriteString("}\n")
	return sb.String()
}

type exportNode struct {
	ID      string            `json:"id"`
	Kind    string            `json:"kind"`
	Config  map[string]string `json:"config,omitempty"`
	MapOver []string          `json:"map_over,omitempty"`
	Threads int               `json:"threads,omitempty"`
	MemGB   float64           `json:"mem_gb,omitempty"`
	Inline  bool              `json:"inline,omitempty"`
}

type exportEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type exportConstant struct {
	Port  string          `json:"port"`
	Value json.RawMessage `json:"value"`
}

type exportDoc struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputNode   string           `json:"input_node"`
	OutputNode  string           `json:"output_node"`
	Nodes       []exportNode     `json:"nodes"`
	Edges       []exportEdge     `json:"edges"`
	Constants   []exportConstant `json:"constants"`
}

// ExportJSON serializes the pipeline's full structure for inspection and
// for structural equality checks between builds: nodes with resolved
// configuration and hints, edges, and constant bindings.
func (p *Pipeline) ExportJSON() ([]byte, error) {
	doc := exportDoc{
		Name:        p.name,
		Description: p.description,
		InputNode:   p.inputNode,
		OutputNode:  p.outputNode,
		Constants:   []exportConstant{},
	}

	for _, id := range p.order {
		n := p.nodes[id]
		en := exportNode{
			ID:      id,
			Kind:    n.spec.Kind,
			MapOver: n.mapOver,
			Threads: n.hints.Threads,
			MemGB:   n.hints.MemGB,
			Inline:  n.hints.Inline,
		}
		if len(n.config) > 0 {
			en.Config = make(map[string]string, len(n.config))
			keys := make([]string, 0, len(n.config))
			for k := range n.config {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				raw, err := ctyjson.Marshal(n.config[k], n.config[k].Type())
				if err != nil {
					return nil, fmt.Errorf("export node %q config %q: %w", id, k, err)
				}
				en.Config[k] = string(raw)
			}
		}
		doc.Nodes = append(doc.Nodes, en)
	}

	for _, e := range p.edges {
		doc.Edges = append(doc.Edges, exportEdge{From: e.From.String(), To: e.To.String()})
	}

	for _, ref := range p.Constants() {
		v := p.constants[ref]
		raw, err := ctyjson.Marshal(v, v.Type())
		if err != nil {
			return nil, fmt.Errorf("export constant %s: %w", ref, err)
		}
		doc.Constants = append(doc.Constants, exportConstant{Port: ref.String(), Value: raw})
	}

	return json.MarshalIndent(doc, "", "  ")
}
