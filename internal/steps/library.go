package steps

import "github.com/zclconf/go-cty/cty"

// Step kinds understood by the built-in and imaging handler sets.
const (
	KindIdentity           = "identity"
	KindTemplateDimensions = "template_dimensions"
	KindConform            = "conform"
	KindConformXfm         = "conform_xfm"
	KindIntensityClip      = "intensity_clip"
	KindBiasFieldCorrect   = "n4_bias_correct"
	KindRobustTemplate     = "robust_template"
	KindReorient           = "reorient"
	KindMergePair          = "merge_pair"
	KindConcatXfms         = "concat_xfms"
	KindSelect             = "select"
)

// Identity returns a pass-through step republishing each given port under
// the same name. Pipelines use it for their boundary nodes.
func Identity(ports ...Port) Spec {
	s := Spec{Kind: KindIdentity}
	s.Inputs = append(s.Inputs, ports...)
	s.Outputs = append(s.Outputs, ports...)
	return s
}

// TemplateDimensions probes the geometry of every input volume, drops those
// whose scaling against the cohort exceeds max_scale, and reports the voxel
// grid that accommodates the survivors.
func TemplateDimensions() Spec {
	return Spec{
		Kind: KindTemplateDimensions,
		Inputs: []Port{
			{Name: "anat_list", Type: cty.List(cty.String)},
		},
		Outputs: []Port{
			{Name: "valid_list", Type: cty.List(cty.String)},
			{Name: "target_zooms", Type: cty.List(cty.Number)},
			{Name: "target_shape", Type: cty.List(cty.Number)},
			{Name: "out_report", Type: cty.String},
		},
		Options: []Option{
			{Name: "max_scale", Type: cty.Number, Default: cty.NumberFloatVal(3.0)},
		},
	}
}

// Conform resamples one volume onto the target voxel grid.
func Conform() Spec {
	return Spec{
		Kind: KindConform,
		Inputs: []Port{
			{Name: "in_file", Type: cty.String},
			{Name: "target_zooms", Type: cty.List(cty.Number)},
			{Name: "target_shape", Type: cty.List(cty.Number)},
		},
		Outputs: []Port{
			{Name: "out_file", Type: cty.String},
		},
	}
}

// ConformXfm derives the rigid transform between an original volume and its
// conformed counterpart from their headers, seeded from the identity lattice.
func ConformXfm() Spec {
	return Spec{
		Kind: KindConformXfm,
		Inputs: []Port{
			{Name: "source_file", Type: cty.String},
			{Name: "target_file", Type: cty.String},
		},
		Outputs: []Port{
			{Name: "out_xfm", Type: cty.String},
		},
		Options: []Option{
			{Name: "seed", Type: cty.String, Default: cty.StringVal("identity")},
		},
	}
}

// IntensityClip truncates a volume's intensity range to percentile bounds.
func IntensityClip() Spec {
	return Spec{
		Kind: KindIntensityClip,
		Inputs: []Port{
			{Name: "in_file", Type: cty.String},
		},
		Outputs: []Port{
			{Name: "out_file", Type: cty.String},
		},
		Options: []Option{
			{Name: "p_min", Type: cty.Number, Default: cty.NumberFloatVal(35.0)},
			{Name: "p_max", Type: cty.Number, Default: cty.NumberFloatVal(99.98)},
		},
	}
}

// BiasFieldCorrect removes low-frequency intensity non-uniformity from a
// volume (N4 algorithm).
func BiasFieldCorrect() Spec {
	return Spec{
		Kind: KindBiasFieldCorrect,
		Inputs: []Port{
			{Name: "input_image", Type: cty.String},
		},
		Outputs: []Port{
			{Name: "output_image", Type: cty.String},
		},
		Options: []Option{
			{Name: "dimension", Type: cty.Number, Default: cty.NumberIntVal(3)},
			{Name: "save_bias", Type: cty.Bool, Default: cty.False},
			{Name: "copy_header", Type: cty.Bool, Default: cty.False},
			{Name: "n_iterations", Type: cty.List(cty.Number)},
			{Name: "convergence_threshold", Type: cty.Number},
			{Name: "shrink_factor", Type: cty.Number},
			{Name: "bspline_fitting_distance", Type: cty.Number},
		},
	}
}

// RobustTemplate registers all input volumes to their evolving mean and
// resamples them into the barycentric space, producing the fused volume and
// one realignment transform per input.
func RobustTemplate() Spec {
	return Spec{
		Kind: KindRobustTemplate,
		Inputs: []Port{
			{Name: "in_files", Type: cty.List(cty.String)},
		},
		Outputs: []Port{
			{Name: "out_file", Type: cty.String},
			{Name: "transform_outputs", Type: cty.List(cty.String)},
		},
		Options: []Option{
			{Name: "auto_detect_sensitivity", Type: cty.Bool, Default: cty.False},
			{Name: "initial_timepoint", Type: cty.Number, Default: cty.NumberIntVal(0)},
			{Name: "intensity_scaling", Type: cty.Bool, Default: cty.False},
			{Name: "subsample_threshold", Type: cty.Number},
			{Name: "fixed_timepoint", Type: cty.Bool, Default: cty.False},
			{Name: "no_iteration", Type: cty.Bool, Default: cty.False},
			{Name: "transform_outputs", Type: cty.Bool, Default: cty.False},
			{Name: "out_file", Type: cty.String},
			{Name: "num_threads", Type: cty.Number, Default: cty.NumberIntVal(1)},
		},
	}
}

// Reorient rewrites a volume's axes into the requested anatomical
// orientation without resampling.
func Reorient() Spec {
	return Spec{
		Kind: KindReorient,
		Inputs: []Port{
			{Name: "in_file", Type: cty.String},
		},
		Outputs: []Port{
			{Name: "out_file", Type: cty.String},
		},
		Options: []Option{
			{Name: "orientation", Type: cty.String, Default: cty.StringVal("RAS")},
		},
	}
}

// MergePair packs two values into a two-element list, preserving order.
func MergePair() Spec {
	return Spec{
		Kind: KindMergePair,
		Inputs: []Port{
			{Name: "in1", Type: cty.String},
			{Name: "in2", Type: cty.String},
		},
		Outputs: []Port{
			{Name: "out", Type: cty.List(cty.String)},
		},
	}
}

// ConcatXfms collapses an ordered transform chain (first applied first)
// into a single transform file, optionally inverting the result.
func ConcatXfms() Spec {
	return Spec{
		Kind: KindConcatXfms,
		Inputs: []Port{
			{Name: "in_xfms", Type: cty.List(cty.String)},
		},
		Outputs: []Port{
			{Name: "out_xfm", Type: cty.String},
		},
		Options: []Option{
			{Name: "inverse", Type: cty.Bool, Default: cty.False},
		},
	}
}

// Select picks one element out of a list by index.
func Select() Spec {
	return Spec{
		Kind: KindSelect,
		Inputs: []Port{
			{Name: "inlist", Type: cty.List(cty.String)},
		},
		Outputs: []Port{
			{Name: "out", Type: cty.String},
		},
		Options: []Option{
			{Name: "index", Type: cty.Number},
		},
	}
}
