//go:build windows

package storage

import (
	"os"
	"path/filepath"
)

// EnsureDir skips volume roots, which MkdirAll rejects on windows.
func (localFS) EnsureDir(dir string, mode os.FileMode) error {
	root := filepath.VolumeName(dir) + string(os.PathSeparator)
	if dir == root && filepath.Base(dir) == "" {
		return nil
	}
	return os.MkdirAll(dir, mode)
}

// Sync does nothing for directories, which cannot be opened for syncing on
// windows.
func (localFS) Sync(f *os.File, isDir bool) error {
	if isDir {
		return nil
	}
	return f.Sync()
}
