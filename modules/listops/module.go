// Package listops provides handlers for the pure list-shaped steps:
// boundary pass-through, element selection, and pair merging. These steps
// move values around without touching any file.
package listops

import (
	"context"
	"fmt"

	"github.com/nvolkov/anatref/internal/registry"
	"github.com/nvolkov/anatref/internal/steps"
	"github.com/zclconf/go-cty/cty"
)

// Module implements registry.Module for this package.
type Module struct{}

// OnIdentity republishes every input port under the same name. Pipelines
// use it for their boundary nodes.
func OnIdentity(ctx context.Context, call registry.Call) (map[string]cty.Value, error) {
	out := make(map[string]cty.Value, len(call.Inputs))
	for name, val := range call.Inputs {
		out[name] = val
	}
	return out, nil
}

// OnSelect picks one element out of a list by the configured index.
func OnSelect(ctx context.Context, call registry.Call) (map[string]cty.Value, error) {
	idx, _ := call.Config["index"].AsBigFloat().Int64()
	list := call.Inputs["inlist"]
	if idx < 0 || idx >= int64(list.LengthInt()) {
		return nil, fmt.Errorf("select index %d out of range for list of %d", idx, list.LengthInt())
	}
	return map[string]cty.Value{
		"out": list.Index(cty.NumberIntVal(idx)),
	}, nil
}

// OnMergePair packs its two inputs into a two-element list, order kept.
func OnMergePair(ctx context.Context, call registry.Call) (map[string]cty.Value, error) {
	return map[string]cty.Value{
		"out": cty.ListVal([]cty.Value{call.Inputs["in1"], call.Inputs["in2"]}),
	}, nil
}

// Register registers the handlers with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(steps.KindIdentity, OnIdentity)
	r.Register(steps.KindSelect, OnSelect)
	r.Register(steps.KindMergePair, OnMergePair)
}
