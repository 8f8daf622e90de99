package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvolkov/anatref/internal/pipeline"
	"github.com/nvolkov/anatref/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

// executeNode resolves the node's inputs, invokes its handler, and
// publishes the outputs. Scalar nodes invoke the handler once; map nodes
// invoke it once per element.
func (e *Executor) executeNode(ctx context.Context, rs *runState, n *pipeline.Node) error {
	inputs, err := rs.resolveInputs(e.pipe, n)
	if err != nil {
		return err
	}

	handler, ok := e.reg.Handler(n.Spec().Kind)
	if !ok {
		// Validate at New time makes this unreachable; guard anyway.
		return fmt.Errorf("no handler for step kind %q", n.Spec().Kind)
	}

	nodeDir := filepath.Join(rs.dir, n.ID())
	if err := os.MkdirAll(nodeDir, 0755); err != nil {
		return fmt.Errorf("create node directory: %w", err)
	}

	var outputs map[string]cty.Value
	if n.IsMap() {
		outputs, err = e.fanOut(ctx, n, handler, inputs, nodeDir)
	} else {
		// Reserve the node's declared CPU weight, capped at the pool size.
		weight := minInt(maxInt(n.Hints().Threads, 1), e.workers)
		if err := e.cpu.Acquire(ctx, int64(weight)); err != nil {
			return err
		}
		outputs, err = e.invoke(ctx, n, handler, registry.Call{
			Node:    n,
			Config:  n.Config(),
			Inputs:  inputs,
			Index:   -1,
			WorkDir: nodeDir,
			Threads: weight,
		})
		e.cpu.Release(int64(weight))
	}
	if err != nil {
		return err
	}

	rs.mu.Lock()
	for name, val := range outputs {
		rs.values[pipeline.Ref(n.ID(), name)] = val
	}
	rs.mu.Unlock()
	return nil
}

// resolveInputs collects one value per declared input port, from either the
// upstream node's published output or the port's constant binding. Every
// port is bound by construction and every dependency is done by the time
// this runs, so a missing value is a scheduler bug.
func (rs *runState) resolveInputs(p *pipeline.Pipeline, n *pipeline.Node) (map[string]cty.Value, error) {
	inputs := make(map[string]cty.Value, len(n.Spec().Inputs))
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, port := range n.Spec().Inputs {
		ref := pipeline.Ref(n.ID(), port.Name)
		if from, ok := p.Source(ref); ok {
			val, ok := rs.values[from]
			if !ok {
				return nil, fmt.Errorf("no value published on %s for input %s", from, ref)
			}
			inputs[port.Name] = val
			continue
		}
		val, ok := p.Constant(ref)
		if !ok {
			return nil, fmt.Errorf("input %s is neither connected nor bound", ref)
		}
		inputs[port.Name] = val
	}
	return inputs, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// invoke runs the handler once and checks the returned values against the
// step's declared output ports.
func (e *Executor) invoke(ctx context.Context, n *pipeline.Node, handler registry.Handler, call registry.Call) (map[string]cty.Value, error) {
	out, err := handler(ctx, call)
	if err != nil {
		return nil, err
	}
	for _, port := range n.Spec().Outputs {
		val, ok := out[port.Name]
		if !ok {
			return nil, fmt.Errorf("handler for %q returned no value for output %q", n.Spec().Kind, port.Name)
		}
		if !val.Type().Equals(port.Type) {
			return nil, fmt.Errorf("handler for %q returned %s for output %q, want %s",
				n.Spec().Kind, val.Type().FriendlyName(), port.Name, port.Type.FriendlyName())
		}
	}
	return out, nil
}

// fanOut runs a map node: every iterated input must be a list of the same
// non-zero length, the handler runs once per index with the iterated inputs
// unwrapped, and each output port publishes an index-ordered list.
func (e *Executor) fanOut(ctx context.Context, n *pipeline.Node, handler registry.Handler, inputs map[string]cty.Value, nodeDir string) (map[string]cty.Value, error) {
	length := -1
	elements := make(map[string][]cty.Value)
	for _, port := range n.MapOver() {
		list := inputs[port]
		if list.LengthInt() == 0 {
			return nil, fmt.Errorf("%w: port %q", ErrEmptyMapInput, port)
		}
		vals := list.AsValueSlice()
		if length == -1 {
			length = len(vals)
		} else if len(vals) != length {
			return nil, fmt.Errorf("map step iterated lists differ in length: port %q has %d elements, expected %d",
				port, len(vals), length)
		}
		elements[port] = vals
	}

	results := make([]map[string]cty.Value, length)
	g, gctx := errgroup.WithContext(ctx)
	limit := n.Hints().Threads
	if limit < 1 {
		limit = e.workers
	}
	g.SetLimit(limit)

	for i := 0; i < length; i++ {
		i := i
		g.Go(func() error {
			if err := e.cpu.Acquire(gctx, 1); err != nil {
				return err
			}
			defer e.cpu.Release(1)

			callInputs := make(map[string]cty.Value, len(inputs))
			for name, val := range inputs {
				callInputs[name] = val
			}
			for port, vals := range elements {
				callInputs[port] = vals[i]
			}
			out, err := e.invoke(gctx, n, handler, registry.Call{
				Node:    n,
				Config:  n.Config(),
				Inputs:  callInputs,
				Index:   i,
				WorkDir: nodeDir,
				Threads: 1,
			})
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outputs := make(map[string]cty.Value, len(n.Spec().Outputs))
	for _, port := range n.Spec().Outputs {
		vals := make([]cty.Value, length)
		for i, res := range results {
			vals[i] = res[port.Name]
		}
		outputs[port.Name] = cty.ListVal(vals)
	}
	return outputs, nil
}
