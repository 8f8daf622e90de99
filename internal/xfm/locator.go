package xfm

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

//go:embed data/itkIdentityTransform.txt
var identityTransformData []byte

// Locator resolves bundled transform resources to concrete file paths.
// Implementations must be safe for concurrent use.
type Locator interface {
	// IdentityTransform returns the path of an ITK identity transform file.
	IdentityTransform() (string, error)
}

// CacheLocator materializes embedded resources under a directory once per
// instance and hands out stable paths.
type CacheLocator struct {
	dir string

	once sync.Once
	path string
	err  error
}

// NewCacheLocator returns a locator that writes resources under dir. The
// directory is created on first use.
func NewCacheLocator(dir string) *CacheLocator {
	return &CacheLocator{dir: dir}
}

// IdentityTransform implements Locator.
func (l *CacheLocator) IdentityTransform() (string, error) {
	l.once.Do(func() {
		if err := os.MkdirAll(l.dir, 0755); err != nil {
			l.err = fmt.Errorf("create resource cache: %w", err)
			return
		}
		path := filepath.Join(l.dir, "itkIdentityTransform.txt")
		if err := os.WriteFile(path, identityTransformData, 0644); err != nil {
			l.err = fmt.Errorf("materialize identity transform: %w", err)
			return
		}
		l.path = path
	})
	return l.path, l.err
}
