package template

import (
	"fmt"
	"path/filepath"

	"github.com/nvolkov/anatref/internal/pipeline"
	"github.com/nvolkov/anatref/internal/steps"
	"github.com/zclconf/go-cty/cty"
)

// buildMulti finishes the graph for two or more inputs: per-image
// conform-transform extraction, intensity clipping and bias correction,
// robust registration into an averaged template, reorientation of the
// average to RAS, and per-image composition of the conform and registration
// transforms into one inverted realignment transform each.
func buildMulti(p *pipeline.Pipeline, opts Options) error {
	n := len(opts.Files)
	threads := threadBudget(n, opts.OMPNThreads)

	if err := p.SetDescription(fmt.Sprintf(
		"An anatomical %s-weighted reference map was computed after registration of %d %s images "+
			"(after intensity non-uniformity correction) using a robust inverse-consistent "+
			"template-building procedure.",
		opts.Contrast, n, opts.Contrast)); err != nil {
		return err
	}

	// The conform transform maps each original image onto its conformed
	// counterpart. The identity lattice seeds the conversion; this is a
	// pure reorientation/resample transform, not a registration.
	identity, err := opts.Resources.IdentityTransform()
	if err != nil {
		return fmt.Errorf("resolve identity transform: %w", err)
	}
	if _, err := p.Add(pipeline.StepDef{
		ID:      "conform_xfm",
		Spec:    steps.ConformXfm(),
		Config:  steps.Config{"seed": cty.StringVal(identity)},
		MapOver: []string{"source_file", "target_file"},
	}); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("dimensions", "valid_list"), pipeline.Ref("conform_xfm", "source_file")); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("conform", "out_file"), pipeline.Ref("conform_xfm", "target_file")); err != nil {
		return err
	}

	if _, err := p.Add(pipeline.StepDef{
		ID:      "clip",
		Spec:    steps.IntensityClip(),
		Config:  steps.Config{"p_min": cty.NumberFloatVal(50)},
		MapOver: []string{"in_file"},
	}); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("conform", "out_file"), pipeline.Ref("clip", "in_file")); err != nil {
		return err
	}

	// Bias correction runs one image at a time to bound peak memory; the
	// thread budget goes to registration below instead.
	schedule := iterationSchedule(opts.Sloppy)
	iterations := make([]cty.Value, len(schedule))
	for i, v := range schedule {
		iterations[i] = cty.NumberIntVal(int64(v))
	}
	if _, err := p.Add(pipeline.StepDef{
		ID:   "bias_correct",
		Spec: steps.BiasFieldCorrect(),
		Config: steps.Config{
			"copy_header":              cty.True,
			"n_iterations":             cty.ListVal(iterations),
			"convergence_threshold":    cty.NumberFloatVal(1e-7),
			"shrink_factor":            cty.NumberIntVal(4),
			"bspline_fitting_distance": cty.NumberIntVal(int64(opts.BSplineFittingDistance)),
		},
		MapOver: []string{"input_image"},
		Hints:   pipeline.Hints{Threads: 1},
	}); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("clip", "out_file"), pipeline.Ref("bias_correct", "input_image")); err != nil {
		return err
	}

	// Registration holds the fixed timepoint and skips iterative template
	// re-estimation unless the run is longitudinal: single-pass is faster
	// but slightly biased toward the initial timepoint.
	if _, err := p.Add(pipeline.StepDef{
		ID:   "register",
		Spec: steps.RobustTemplate(),
		Config: steps.Config{
			"auto_detect_sensitivity": cty.True,
			"initial_timepoint":       cty.NumberIntVal(1),
			"intensity_scaling":       cty.True,
			"subsample_threshold":     cty.NumberIntVal(200),
			"fixed_timepoint":         cty.BoolVal(!opts.Longitudinal),
			"no_iteration":            cty.BoolVal(!opts.Longitudinal),
			"transform_outputs":       cty.True,
			"out_file":                cty.StringVal(derivedFilename(filepath.Base(opts.Files[0]), "_template")),
			"num_threads":             cty.NumberIntVal(int64(threads)),
		},
		Hints: pipeline.Hints{Threads: threads, MemGB: memoryBudgetGB(n)},
	}); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("bias_correct", "output_image"), pipeline.Ref("register", "in_files")); err != nil {
		return err
	}

	// The averaging tool emits its result in LIA orientation; re-express it
	// as RAS before exposing it as the reference.
	if _, err := p.Add(pipeline.StepDef{
		ID:   "reorient",
		Spec: steps.Reorient(),
	}); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("register", "out_file"), pipeline.Ref("reorient", "in_file")); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("reorient", "out_file"), pipeline.Ref("output", PortRef)); err != nil {
		return err
	}

	// Per input i: chain the i-th conform transform with the i-th
	// registration transform and invert, so the result maps original space
	// into template space. The pair-merge and concat steps are cheap and
	// run inline with their dependents.
	if _, err := p.Add(pipeline.StepDef{
		ID:      "merge_xfms",
		Spec:    steps.MergePair(),
		MapOver: []string{"in1", "in2"},
		Hints:   pipeline.Hints{Inline: true},
	}); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("conform_xfm", "out_xfm"), pipeline.Ref("merge_xfms", "in1")); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("register", "transform_outputs"), pipeline.Ref("merge_xfms", "in2")); err != nil {
		return err
	}

	if _, err := p.Add(pipeline.StepDef{
		ID:      "concat_xfms",
		Spec:    steps.ConcatXfms(),
		Config:  steps.Config{"inverse": cty.True},
		MapOver: []string{"in_xfms"},
		Hints:   pipeline.Hints{Inline: true},
	}); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("merge_xfms", "out"), pipeline.Ref("concat_xfms", "in_xfms")); err != nil {
		return err
	}
	return p.Connect(pipeline.Ref("concat_xfms", "out_xfm"), pipeline.Ref("output", PortRealignXfm))
}
