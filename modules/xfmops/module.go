// Package xfmops provides handlers for the transform-file steps: deriving
// a conform transform from the identity lattice and collapsing a transform
// chain into one (optionally inverted) file. Both operate on ITK text
// transform files through the xfm package.
package xfmops

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nvolkov/anatref/internal/registry"
	"github.com/nvolkov/anatref/internal/steps"
	"github.com/nvolkov/anatref/internal/xfm"
	"github.com/zclconf/go-cty/cty"
)

// Module implements registry.Module for this package.
type Module struct{}

// outName builds a per-invocation file name inside the node's work
// directory; map invocations get their element index in the name so
// parallel elements never collide.
func outName(call registry.Call, stem string) string {
	if call.Index >= 0 {
		return filepath.Join(call.WorkDir, fmt.Sprintf("%s_%04d.txt", stem, call.Index))
	}
	return filepath.Join(call.WorkDir, stem+".txt")
}

// OnConformXfm emits the transform mapping an original volume onto its
// conformed counterpart. Conforming only resamples onto the target lattice,
// so the voxel-space mapping is the configured seed transform (normally the
// bundled identity lattice) re-expressed as its own file per input.
func OnConformXfm(ctx context.Context, call registry.Call) (map[string]cty.Value, error) {
	seed := call.Config["seed"].AsString()

	a := xfm.Identity()
	if seed != "identity" {
		var err error
		a, err = xfm.ReadITK(seed)
		if err != nil {
			return nil, fmt.Errorf("read seed transform: %w", err)
		}
	}

	out := outName(call, "conform_xfm")
	if err := xfm.WriteITK(out, a); err != nil {
		return nil, err
	}
	return map[string]cty.Value{"out_xfm": cty.StringVal(out)}, nil
}

// OnConcatXfms reads the ordered transform chain (first applied first),
// concatenates it, optionally inverts the product, and writes the result.
func OnConcatXfms(ctx context.Context, call registry.Call) (map[string]cty.Value, error) {
	paths := call.Inputs["in_xfms"].AsValueSlice()
	chain := make([]xfm.Affine, len(paths))
	for i, p := range paths {
		a, err := xfm.ReadITK(p.AsString())
		if err != nil {
			return nil, err
		}
		chain[i] = a
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("concat_xfms received an empty chain")
	}

	var (
		combined xfm.Affine
		err      error
	)
	if call.Config["inverse"].True() {
		combined, err = xfm.ComposeAndInvert(chain...)
		if err != nil {
			return nil, err
		}
	} else {
		combined = chain[0]
		for _, a := range chain[1:] {
			combined = a.Compose(combined)
		}
	}

	out := outName(call, "concat_xfm")
	if err := xfm.WriteITK(out, combined); err != nil {
		return nil, err
	}
	return map[string]cty.Value{"out_xfm": cty.StringVal(out)}, nil
}

// Register registers the handlers with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(steps.KindConformXfm, OnConformXfm)
	r.Register(steps.KindConcatXfms, OnConcatXfms)
}
