package template

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvolkov/anatref/internal/ctxlog"
	"github.com/nvolkov/anatref/internal/pipeline"
	"github.com/nvolkov/anatref/internal/steps"
	"github.com/nvolkov/anatref/internal/xfm"
	"github.com/zclconf/go-cty/cty"
)

// Option validation failures. Build returns nothing when any of these hold.
var (
	ErrNoFiles   = errors.New("at least one input file is required")
	ErrNoThreads = errors.New("omp_nthreads must be at least 1")
	ErrNoLocator = errors.New("a resource locator is required")
)

// DefaultBSplineFittingDistance is the bias-field smoothing distance in
// millimeters applied when Options leaves it unset.
const DefaultBSplineFittingDistance = 200

// Options configures one anatomical-template build.
type Options struct {
	// Name identifies the pipeline. Defaults to "anat_template".
	Name string
	// Contrast is a free-form label (T1w, T2w) used in node reporting text.
	Contrast string
	// Files are the input volumes, in acquisition order.
	Files []string
	// OMPNThreads is the thread ceiling for multi-threaded steps.
	OMPNThreads int
	// Longitudinal enables unbiased iterative template refinement instead
	// of the faster single-pass registration against a fixed timepoint.
	Longitudinal bool
	// BSplineFittingDistance is the bias-field smoothing distance in mm.
	// Zero means DefaultBSplineFittingDistance.
	BSplineFittingDistance int
	// Sloppy shortens the bias-correction iteration schedule for quick
	// test runs.
	Sloppy bool
	// Resources resolves bundled transform files. Required.
	Resources xfm.Locator
}

// Boundary port names on the built pipeline's output node.
const (
	PortRef        = "anat_ref"
	PortValidList  = "anat_valid_list"
	PortRealignXfm = "anat_realign_xfm"
	PortReport     = "out_report"
)

// Build constructs the anatomical-reference pipeline for the given options
// and returns it frozen. The single-image and multi-image topologies are
// emitted by separate strategies picked once from len(opts.Files); a
// construction failure aborts before anything is returned.
func Build(ctx context.Context, opts Options) (*pipeline.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)

	if len(opts.Files) < 1 {
		return nil, ErrNoFiles
	}
	if opts.OMPNThreads < 1 {
		return nil, ErrNoThreads
	}
	if opts.Resources == nil {
		return nil, ErrNoLocator
	}
	if opts.Name == "" {
		opts.Name = "anat_template"
	}
	if opts.BSplineFittingDistance == 0 {
		opts.BSplineFittingDistance = DefaultBSplineFittingDistance
	}

	logger.Debug("Building anatomical template pipeline.",
		"name", opts.Name, "contrast", opts.Contrast,
		"num_files", len(opts.Files), "omp_nthreads", opts.OMPNThreads,
		"longitudinal", opts.Longitudinal, "sloppy", opts.Sloppy)

	p := pipeline.New(opts.Name)
	if err := buildCommon(p, opts); err != nil {
		return nil, err
	}

	var err error
	if len(opts.Files) == 1 {
		err = buildSingle(p, opts)
	} else {
		err = buildMulti(p, opts)
	}
	if err != nil {
		return nil, err
	}

	if err := p.SetInputNode("input"); err != nil {
		return nil, err
	}
	if err := p.SetOutputNode("output"); err != nil {
		return nil, err
	}
	if err := p.Freeze(); err != nil {
		return nil, fmt.Errorf("template pipeline failed validation: %w", err)
	}

	logger.Debug("Template pipeline frozen.", "nodes", len(p.Nodes()), "edges", len(p.Edges()))
	return p, nil
}

// buildCommon emits the subgraph both branches share: the bound input node,
// the dimension/validity check, the per-image conform step, and the output
// node with the report and valid list already wired.
func buildCommon(p *pipeline.Pipeline, opts Options) error {
	files := make([]cty.Value, len(opts.Files))
	for i, f := range opts.Files {
		files[i] = cty.StringVal(f)
	}

	if _, err := p.Add(pipeline.StepDef{
		ID:   "input",
		Spec: steps.Identity(steps.Port{Name: "anat_files", Type: cty.List(cty.String)}),
	}); err != nil {
		return err
	}
	if err := p.Bind(pipeline.Ref("input", "anat_files"), cty.ListVal(files)); err != nil {
		return err
	}

	if _, err := p.Add(pipeline.StepDef{
		ID:   "dimensions",
		Spec: steps.TemplateDimensions(),
	}); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("input", "anat_files"), pipeline.Ref("dimensions", "anat_list")); err != nil {
		return err
	}

	if _, err := p.Add(pipeline.StepDef{
		ID:      "conform",
		Spec:    steps.Conform(),
		MapOver: []string{"in_file"},
	}); err != nil {
		return err
	}
	for _, pair := range [][2]string{
		{"valid_list", "in_file"},
		{"target_zooms", "target_zooms"},
		{"target_shape", "target_shape"},
	} {
		if err := p.Connect(pipeline.Ref("dimensions", pair[0]), pipeline.Ref("conform", pair[1])); err != nil {
			return err
		}
	}

	if _, err := p.Add(pipeline.StepDef{
		ID: "output",
		Spec: steps.Identity(
			steps.Port{Name: PortRef, Type: cty.String},
			steps.Port{Name: PortValidList, Type: cty.List(cty.String)},
			steps.Port{Name: PortRealignXfm, Type: cty.List(cty.String)},
			steps.Port{Name: PortReport, Type: cty.String},
		),
	}); err != nil {
		return err
	}
	if err := p.Connect(pipeline.Ref("dimensions", "valid_list"), pipeline.Ref("output", PortValidList)); err != nil {
		return err
	}
	return p.Connect(pipeline.Ref("dimensions", "out_report"), pipeline.Ref("output", PortReport))
}
