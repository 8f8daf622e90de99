package template

import (
	"context"
	"fmt"
	"testing"

	"github.com/nvolkov/anatref/internal/pipeline"
	"github.com/nvolkov/anatref/internal/steps"
	"github.com/nvolkov/anatref/internal/xfm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func testOptions(t *testing.T, numFiles, threads int) Options {
	t.Helper()
	files := make([]string, numFiles)
	for i := range files {
		files[i] = fmt.Sprintf("sub-01_run-%d_T1w.nii.gz", i+1)
	}
	return Options{
		Contrast:    "T1w",
		Files:       files,
		OMPNThreads: threads,
		Resources:   xfm.NewCacheLocator(t.TempDir()),
	}
}

func nodeKinds(p *pipeline.Pipeline) map[string]string {
	kinds := make(map[string]string)
	for _, n := range p.Nodes() {
		kinds[n.ID()] = n.Spec().Kind
	}
	return kinds
}

func TestBuildValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("requires at least one file", func(t *testing.T) {
		t.Parallel()
		opts := testOptions(t, 1, 1)
		opts.Files = nil
		_, err := Build(ctx, opts)
		assert.ErrorIs(t, err, ErrNoFiles)
	})

	t.Run("requires a positive thread count", func(t *testing.T) {
		t.Parallel()
		opts := testOptions(t, 2, 0)
		_, err := Build(ctx, opts)
		assert.ErrorIs(t, err, ErrNoThreads)
	})

	t.Run("requires a resource locator", func(t *testing.T) {
		t.Parallel()
		opts := testOptions(t, 2, 2)
		opts.Resources = nil
		_, err := Build(ctx, opts)
		assert.ErrorIs(t, err, ErrNoLocator)
	})
}

func TestBuildSingleImage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	opts := testOptions(t, 1, 4)
	p, err := Build(ctx, opts)
	require.NoError(t, err)
	require.True(t, p.Frozen())

	t.Run("no multi-image machinery exists", func(t *testing.T) {
		t.Parallel()
		kinds := nodeKinds(p)
		assert.Equal(t, map[string]string{
			"input":        steps.KindIdentity,
			"dimensions":   steps.KindTemplateDimensions,
			"conform":      steps.KindConform,
			"select_first": steps.KindSelect,
			"output":       steps.KindIdentity,
		}, kinds)
	})

	t.Run("reference is the single conformed image", func(t *testing.T) {
		t.Parallel()
		from, ok := p.Source(pipeline.Ref("output", PortRef))
		require.True(t, ok)
		assert.Equal(t, pipeline.Ref("select_first", "out"), from)

		sel, ok := p.Node("select_first")
		require.True(t, ok)
		idx, ok := sel.ConfigValue("index")
		require.True(t, ok)
		assert.True(t, idx.RawEquals(cty.NumberIntVal(0)))
	})

	t.Run("realignment transform is a constant identity", func(t *testing.T) {
		t.Parallel()
		v, ok := p.Constant(pipeline.Ref("output", PortRealignXfm))
		require.True(t, ok)
		require.Equal(t, 1, v.LengthInt())

		identity, err := opts.Resources.IdentityTransform()
		require.NoError(t, err)
		assert.Equal(t, identity, v.Index(cty.NumberIntVal(0)).AsString())
	})

	t.Run("no description boilerplate", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, p.Description())
	})
}

func TestBuildMultiImage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p, err := Build(ctx, testOptions(t, 3, 4))
	require.NoError(t, err)
	require.True(t, p.Frozen())

	t.Run("full topology exists", func(t *testing.T) {
		t.Parallel()
		kinds := nodeKinds(p)
		assert.Equal(t, map[string]string{
			"input":        steps.KindIdentity,
			"dimensions":   steps.KindTemplateDimensions,
			"conform":      steps.KindConform,
			"conform_xfm":  steps.KindConformXfm,
			"clip":         steps.KindIntensityClip,
			"bias_correct": steps.KindBiasFieldCorrect,
			"register":     steps.KindRobustTemplate,
			"reorient":     steps.KindReorient,
			"merge_xfms":   steps.KindMergePair,
			"concat_xfms":  steps.KindConcatXfms,
			"output":       steps.KindIdentity,
		}, kinds)
	})

	t.Run("registration thread budget is capped by file count", func(t *testing.T) {
		t.Parallel()
		reg, ok := p.Node("register")
		require.True(t, ok)
		threads, ok := reg.ConfigValue("num_threads")
		require.True(t, ok)
		assert.True(t, threads.RawEquals(cty.NumberIntVal(3)))
		assert.Equal(t, 3, reg.Hints().Threads)
		assert.Equal(t, 5.0, reg.Hints().MemGB)
	})

	t.Run("registration holds the fixed timepoint when not longitudinal", func(t *testing.T) {
		t.Parallel()
		reg, _ := p.Node("register")
		fixed, _ := reg.ConfigValue("fixed_timepoint")
		noIter, _ := reg.ConfigValue("no_iteration")
		assert.True(t, fixed.True())
		assert.True(t, noIter.True())

		out, _ := reg.ConfigValue("out_file")
		assert.Equal(t, "sub-01_run-1_T1w_template.nii.gz", out.AsString())
	})

	t.Run("bias correction is serial with a full schedule", func(t *testing.T) {
		t.Parallel()
		bias, ok := p.Node("bias_correct")
		require.True(t, ok)
		assert.Equal(t, 1, bias.Hints().Threads)

		sched, ok := bias.ConfigValue("n_iterations")
		require.True(t, ok)
		assert.Equal(t, 5, sched.LengthInt())
	})

	t.Run("clip truncates the bottom half", func(t *testing.T) {
		t.Parallel()
		clip, _ := p.Node("clip")
		pMin, _ := clip.ConfigValue("p_min")
		assert.True(t, pMin.RawEquals(cty.NumberFloatVal(50)))
	})

	t.Run("transform pairing preserves input order", func(t *testing.T) {
		t.Parallel()
		in1, ok := p.Source(pipeline.Ref("merge_xfms", "in1"))
		require.True(t, ok)
		assert.Equal(t, pipeline.Ref("conform_xfm", "out_xfm"), in1)

		in2, ok := p.Source(pipeline.Ref("merge_xfms", "in2"))
		require.True(t, ok)
		assert.Equal(t, pipeline.Ref("register", "transform_outputs"), in2)

		concat, ok := p.Node("concat_xfms")
		require.True(t, ok)
		inverse, _ := concat.ConfigValue("inverse")
		assert.True(t, inverse.True())
		assert.True(t, concat.Hints().Inline)

		merge, _ := p.Node("merge_xfms")
		assert.True(t, merge.Hints().Inline)

		realign, ok := p.Source(pipeline.Ref("output", PortRealignXfm))
		require.True(t, ok)
		assert.Equal(t, pipeline.Ref("concat_xfms", "out_xfm"), realign)
	})

	t.Run("reference comes from the reoriented average", func(t *testing.T) {
		t.Parallel()
		from, ok := p.Source(pipeline.Ref("output", PortRef))
		require.True(t, ok)
		assert.Equal(t, pipeline.Ref("reorient", "out_file"), from)

		re, _ := p.Node("reorient")
		orientation, _ := re.ConfigValue("orientation")
		assert.Equal(t, "RAS", orientation.AsString())
	})

	t.Run("description names the contrast and count", func(t *testing.T) {
		t.Parallel()
		assert.Contains(t, p.Description(), "3 T1w images")
	})
}

func TestBuildScenarios(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("eight files with four threads cap at four", func(t *testing.T) {
		t.Parallel()
		p, err := Build(ctx, testOptions(t, 8, 4))
		require.NoError(t, err)
		reg, _ := p.Node("register")
		threads, _ := reg.ConfigValue("num_threads")
		assert.True(t, threads.RawEquals(cty.NumberIntVal(4)))
		assert.Equal(t, 15.0, reg.Hints().MemGB)
	})

	t.Run("sloppy shortens the bias schedule", func(t *testing.T) {
		t.Parallel()
		opts := testOptions(t, 2, 2)
		opts.Sloppy = true
		p, err := Build(ctx, opts)
		require.NoError(t, err)
		bias, _ := p.Node("bias_correct")
		sched, _ := bias.ConfigValue("n_iterations")
		assert.Equal(t, 3, sched.LengthInt())
	})

	t.Run("longitudinal refines the template iteratively", func(t *testing.T) {
		t.Parallel()
		opts := testOptions(t, 2, 2)
		opts.Longitudinal = true
		p, err := Build(ctx, opts)
		require.NoError(t, err)
		reg, _ := p.Node("register")
		fixed, _ := reg.ConfigValue("fixed_timepoint")
		noIter, _ := reg.ConfigValue("no_iteration")
		assert.True(t, fixed.False())
		assert.True(t, noIter.False())
	})
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Share one locator so constant paths match across builds.
	locator := xfm.NewCacheLocator(t.TempDir())
	for _, numFiles := range []int{1, 3} {
		numFiles := numFiles
		t.Run(fmt.Sprintf("%d files", numFiles), func(t *testing.T) {
			t.Parallel()
			opts := testOptions(t, numFiles, 4)
			opts.Resources = locator

			a, err := Build(ctx, opts)
			require.NoError(t, err)
			b, err := Build(ctx, opts)
			require.NoError(t, err)

			rawA, err := a.ExportJSON()
			require.NoError(t, err)
			rawB, err := b.ExportJSON()
			require.NoError(t, err)
			assert.Equal(t, string(rawA), string(rawB))
		})
	}
}
