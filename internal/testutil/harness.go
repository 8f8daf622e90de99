package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvolkov/anatref/internal/registry"
	"github.com/nvolkov/anatref/modules/listops"
	"github.com/nvolkov/anatref/modules/xfmops"
	"github.com/stretchr/testify/require"
)

// NewRegistry assembles a registry with the built-in pure-step handlers and
// the fake imaging handlers, covering every step kind a template pipeline
// can contain.
func NewRegistry() *registry.Registry {
	r := registry.New()
	for _, m := range []registry.Module{
		&listops.Module{},
		&xfmops.Module{},
		&FakeImaging{},
	} {
		m.Register(r)
	}
	return r
}

// WriteVolume creates a fake volume file with the given content and returns
// its path.
func WriteVolume(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
