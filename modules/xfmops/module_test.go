package xfmops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvolkov/anatref/internal/registry"
	"github.com/nvolkov/anatref/internal/xfm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const tol = 1e-9

func writeXfm(t *testing.T, dir, name string, a xfm.Affine) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, xfm.WriteITK(path, a))
	return path
}

func TestOnConformXfm(t *testing.T) {
	t.Parallel()

	t.Run("literal identity seed", func(t *testing.T) {
		t.Parallel()
		out, err := OnConformXfm(context.Background(), registry.Call{
			Config:  map[string]cty.Value{"seed": cty.StringVal("identity")},
			Index:   0,
			WorkDir: t.TempDir(),
		})
		require.NoError(t, err)

		got, err := xfm.ReadITK(out["out_xfm"].AsString())
		require.NoError(t, err)
		assert.True(t, got.EqualApprox(xfm.Identity(), tol))
	})

	t.Run("seed transform file is re-expressed", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		seed := writeXfm(t, dir, "seed.txt", xfm.Translation(2, 0, -1))

		out, err := OnConformXfm(context.Background(), registry.Call{
			Config:  map[string]cty.Value{"seed": cty.StringVal(seed)},
			Index:   1,
			WorkDir: dir,
		})
		require.NoError(t, err)

		got, err := xfm.ReadITK(out["out_xfm"].AsString())
		require.NoError(t, err)
		assert.True(t, got.EqualApprox(xfm.Translation(2, 0, -1), tol))
	})

	t.Run("map elements get distinct file names", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		call := registry.Call{
			Config:  map[string]cty.Value{"seed": cty.StringVal("identity")},
			WorkDir: dir,
		}
		call.Index = 0
		a, err := OnConformXfm(context.Background(), call)
		require.NoError(t, err)
		call.Index = 1
		b, err := OnConformXfm(context.Background(), call)
		require.NoError(t, err)
		assert.NotEqual(t, a["out_xfm"].AsString(), b["out_xfm"].AsString())
	})
}

func TestOnConcatXfms(t *testing.T) {
	t.Parallel()

	t.Run("inverts the composed chain", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		first := writeXfm(t, dir, "conform.txt", xfm.Translation(1, 0, 0))
		second := writeXfm(t, dir, "register.txt", xfm.Scaling(2))

		out, err := OnConcatXfms(context.Background(), registry.Call{
			Config: map[string]cty.Value{"inverse": cty.True},
			Inputs: map[string]cty.Value{
				"in_xfms": cty.ListVal([]cty.Value{cty.StringVal(first), cty.StringVal(second)}),
			},
			Index:   0,
			WorkDir: dir,
		})
		require.NoError(t, err)

		got, err := xfm.ReadITK(out["out_xfm"].AsString())
		require.NoError(t, err)

		// Forward chain: translate then scale maps 0 -> 2. The inverse must
		// take 2 back to 0.
		back := got.Apply([3]float64{2, 0, 0})
		assert.InDelta(t, 0, back[0], tol)
		assert.InDelta(t, 0, back[1], tol)
		assert.InDelta(t, 0, back[2], tol)
	})

	t.Run("plain concatenation without inversion", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		first := writeXfm(t, dir, "a.txt", xfm.Translation(1, 0, 0))
		second := writeXfm(t, dir, "b.txt", xfm.Scaling(2))

		out, err := OnConcatXfms(context.Background(), registry.Call{
			Config: map[string]cty.Value{"inverse": cty.False},
			Inputs: map[string]cty.Value{
				"in_xfms": cty.ListVal([]cty.Value{cty.StringVal(first), cty.StringVal(second)}),
			},
			Index:   0,
			WorkDir: dir,
		})
		require.NoError(t, err)

		got, err := xfm.ReadITK(out["out_xfm"].AsString())
		require.NoError(t, err)
		fwd := got.Apply([3]float64{0, 0, 0})
		assert.InDelta(t, 2, fwd[0], tol)
	})
}
