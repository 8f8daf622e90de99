// Package fsutil provides file system helpers for locating imaging inputs.
package fsutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// niftiExtensions lists the file suffixes recognized as NIfTI volumes.
var niftiExtensions = []string{".nii", ".nii.gz"}

// FindImages recursively searches root for NIfTI volumes and returns their
// full paths in lexical order. It returns an error when the tree holds no
// recognizable volume, since an empty input set is never a valid request.
func FindImages(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, ext := range niftiExtensions {
			if strings.HasSuffix(d.Name(), ext) {
				files = append(files, path)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no NIfTI volumes found under %q", root)
	}
	return files, nil
}
