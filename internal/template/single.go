package template

import (
	"fmt"

	"github.com/nvolkov/anatref/internal/pipeline"
	"github.com/nvolkov/anatref/internal/steps"
	"github.com/zclconf/go-cty/cty"
)

// buildSingle finishes the graph for exactly one input: the single conformed
// image is the reference, and since there is nothing to register against,
// the realignment transform is the bundled identity constant rather than a
// computed value. None of the multi-image machinery exists in this shape.
func buildSingle(p *pipeline.Pipeline, opts Options) error {
	if _, err := p.Add(pipeline.StepDef{
		ID:     "select_first",
		Spec:   steps.Select(),
		Config: steps.Config{"index": cty.NumberIntVal(0)},
	}); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("conform", "out_file"), pipeline.Ref("select_first", "inlist")); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("select_first", "out"), pipeline.Ref("output", PortRef)); err != nil {
		return err
	}

	identity, err := opts.Resources.IdentityTransform()
	if err != nil {
		return fmt.Errorf("resolve identity transform: %w", err)
	}
	return p.Bind(
		pipeline.Ref("output", PortRealignXfm),
		cty.ListVal([]cty.Value{cty.StringVal(identity)}),
	)
}
