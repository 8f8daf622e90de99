package listops

import (
	"context"
	"testing"

	"github.com/nvolkov/anatref/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestOnIdentity(t *testing.T) {
	t.Parallel()

	out, err := OnIdentity(context.Background(), registry.Call{
		Inputs: map[string]cty.Value{
			"anat_ref": cty.StringVal("ref.nii.gz"),
			"xfms":     cty.ListVal([]cty.Value{cty.StringVal("a.txt")}),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ref.nii.gz", out["anat_ref"].AsString())
	assert.Equal(t, 1, out["xfms"].LengthInt())
}

func TestOnSelect(t *testing.T) {
	t.Parallel()

	list := cty.ListVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")})

	t.Run("picks by index", func(t *testing.T) {
		t.Parallel()
		out, err := OnSelect(context.Background(), registry.Call{
			Config: map[string]cty.Value{"index": cty.NumberIntVal(1)},
			Inputs: map[string]cty.Value{"inlist": list},
		})
		require.NoError(t, err)
		assert.Equal(t, "b", out["out"].AsString())
	})

	t.Run("rejects out-of-range index", func(t *testing.T) {
		t.Parallel()
		_, err := OnSelect(context.Background(), registry.Call{
			Config: map[string]cty.Value{"index": cty.NumberIntVal(2)},
			Inputs: map[string]cty.Value{"inlist": list},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	})
}

func TestOnMergePair(t *testing.T) {
	t.Parallel()

	out, err := OnMergePair(context.Background(), registry.Call{
		Inputs: map[string]cty.Value{
			"in1": cty.StringVal("conform.txt"),
			"in2": cty.StringVal("register.txt"),
		},
	})
	require.NoError(t, err)
	got := out["out"].AsValueSlice()
	require.Len(t, got, 2)
	assert.Equal(t, "conform.txt", got[0].AsString())
	assert.Equal(t, "register.txt", got[1].AsString())
}
