package storage

import "os"

// fileSystem is the part of the os package used by [Storage].
type fileSystem interface {
	IsNotExist(err error) bool
	EnsureDir(dir string, mode os.FileMode) error
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	Sync(f *os.File, isDir bool) error
	Rename(oldpath, newpath string) error
	Stat(name string) (os.FileInfo, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
}

type localFS struct{}

func (localFS) IsNotExist(err error) bool { return os.IsNotExist(err) }

func (localFS) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

func (localFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

func (localFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

func (localFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}
