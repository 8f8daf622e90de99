package pipeline

import "fmt"

// validate enforces the structural invariants a runnable pipeline must
// hold: designated boundary nodes, every input port bound exactly once,
// no cycles, and full reachability from the input node.
func (p *Pipeline) validate() error {
	if p.inputNode == "" || p.outputNode == "" {
		return ErrNoBoundary
	}

	for _, id := range p.order {
		n := p.nodes[id]
		for _, port := range n.spec.Inputs {
			ref := Ref(id, port.Name)
			if !p.isBound(ref) {
				return fmt.Errorf("%w: %s", ErrPortUnbound, ref)
			}
		}
	}

	if err := p.detectCycles(); err != nil {
		return err
	}
	return p.checkReachability()
}

// detectCycles runs a depth-first search with permanent and temporary marks
// over the node-level adjacency derived from the edges.
func (p *Pipeline) detectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			return fmt.Errorf("%w: involving node %q", ErrCycle, id)
		}
		temporary[id] = true
		for _, dep := range p.Dependents(id) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, id := range p.order {
		if !permanent[id] {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkReachability walks forward from the input node and requires every
// node to be visited. Orphan subgraphs would otherwise silently never feed
// the output node.
func (p *Pipeline) checkReachability() error {
	visited := map[string]bool{p.inputNode: true}
	queue := []string{p.inputNode}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range p.Dependents(id) {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	for _, id := range p.order {
		if !visited[id] {
			return fmt.Errorf("%w: %q", ErrUnreachable, id)
		}
	}
	return nil
}
