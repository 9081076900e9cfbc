//go:build !windows

package storage

import "os"

func (localFS) EnsureDir(dir string, mode os.FileMode) error {
	return os.MkdirAll(dir, mode)
}

func (localFS) Sync(f *os.File, _ bool) error {
	return f.Sync()
}
