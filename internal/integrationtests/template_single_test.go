package integrationtests

import (
	"context"
	"os"
	"testing"

	"github.com/nvolkov/anatref/internal/executor"
	"github.com/nvolkov/anatref/internal/registry"
	"github.com/nvolkov/anatref/internal/report"
	"github.com/nvolkov/anatref/internal/template"
	"github.com/nvolkov/anatref/internal/testutil"
	"github.com/nvolkov/anatref/internal/xfm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleImageRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Arrange: one input volume means no registration machinery at all.
	dir := t.TempDir()
	vol := testutil.WriteVolume(t, dir, "sub-01_T1w.nii.gz", "single volume")
	locator := xfm.NewCacheLocator(dir)

	pipe, err := template.Build(ctx, template.Options{
		Contrast:    "T1w",
		Files:       []string{vol},
		OMPNThreads: 2,
		Resources:   locator,
	})
	require.NoError(t, err)

	exec, err := executor.New(pipe, testutil.NewRegistry(), executor.Options{
		Workers: 2,
		WorkDir: t.TempDir(),
	})
	require.NoError(t, err)

	// Act
	res, err := exec.Run(ctx)
	require.NoError(t, err)

	// Assert: the reference is the conformed copy of the single input.
	refPath := res.Outputs[template.PortRef].AsString()
	content, err := os.ReadFile(refPath)
	require.NoError(t, err)
	assert.Equal(t, "single volume", string(content))

	validList := res.Outputs[template.PortValidList].AsValueSlice()
	require.Len(t, validList, 1)
	assert.Equal(t, vol, validList[0].AsString())

	// The realignment transform is the bundled identity, not a computed one.
	xfms := res.Outputs[template.PortRealignXfm].AsValueSlice()
	require.Len(t, xfms, 1)
	identityPath, err := locator.IdentityTransform()
	require.NoError(t, err)
	assert.Equal(t, identityPath, xfms[0].AsString())

	a, err := xfm.ReadITK(xfms[0].AsString())
	require.NoError(t, err)
	assert.True(t, a.EqualApprox(xfm.Identity(), 1e-9))

	rep, err := report.Load(res.Outputs[template.PortReport].AsString())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ValidCount())
}

func TestSingleImageRunRejectsMissingHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	vol := testutil.WriteVolume(t, dir, "sub-01_T1w.nii.gz", "x")
	pipe, err := template.Build(ctx, template.Options{
		Contrast:    "T1w",
		Files:       []string{vol},
		OMPNThreads: 1,
		Resources:   xfm.NewCacheLocator(dir),
	})
	require.NoError(t, err)

	// An empty registry cannot back the pipeline.
	_, err = executor.New(pipe, registry.New(), executor.Options{WorkDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler")
}
