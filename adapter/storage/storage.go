// Package storage writes datafiles so that a crash never leaves a partially
// written file behind.
//
// A write goes to a temporary file named after the datafile with a "~"
// suffix, which is synced and then renamed over the datafile. Reading
// recovers the temporary file when the rename did not happen.
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

// TempSuffix is appended to the datafile name while it is being rewritten.
const TempSuffix = "~"

// Storage implements [domain.Storage] on the local filesystem.
type Storage struct {
	fs       fileSystem
	fileMode os.FileMode
	dirMode  os.FileMode
}

// New returns a new [Storage].
func New(options ...Option) *Storage {
	s := &Storage{
		fs:       localFS{},
		fileMode: 0o644,
		dirMode:  0o755,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// WriteFile implements [domain.Storage].
func (s *Storage) WriteFile(ctx context.Context, filename string, write func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tempFilename := filename + TempSuffix
	dir := filepath.Dir(filename)

	if err := s.ensureDir(dir); err != nil {
		return err
	}
	if err := s.flush(dir, true); err != nil {
		return err
	}

	exists, err := s.Exists(filename)
	if err != nil {
		return err
	}
	if exists {
		if err := s.flush(filename, false); err != nil {
			return err
		}
	}

	if err := s.writeTemp(tempFilename, write); err != nil {
		return err
	}
	if err := s.flush(tempFilename, false); err != nil {
		return err
	}
	if err := s.fs.Rename(tempFilename, filename); err != nil {
		return err
	}
	return s.flush(dir, true)
}

func (s *Storage) writeTemp(filename string, write func(io.Writer) error) error {
	f, err := s.fs.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.fileMode)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile implements [domain.Storage]. A missing datafile is recovered from
// the temporary file of an interrupted write, or created empty.
func (s *Storage) ReadFile(ctx context.Context, filename string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureIntegrity(filename); err != nil {
		return nil, err
	}
	return s.fs.OpenFile(filename, os.O_RDONLY, s.fileMode)
}

func (s *Storage) ensureIntegrity(filename string) error {
	exists, err := s.Exists(filename)
	if err != nil || exists {
		return err
	}

	tempFilename := filename + TempSuffix
	tempExists, err := s.Exists(tempFilename)
	if err != nil {
		return err
	}
	if tempExists {
		return s.fs.Rename(tempFilename, filename)
	}

	if err := s.ensureDir(filepath.Dir(filename)); err != nil {
		return err
	}
	return s.fs.WriteFile(filename, nil, s.fileMode)
}

func (s *Storage) ensureDir(dir string) error {
	parsedDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	return s.fs.EnsureDir(parsedDir, s.dirMode)
}

// Exists reports whether filename exists.
func (s *Storage) Exists(filename string) (bool, error) {
	if _, err := s.fs.Stat(filename); err != nil {
		if s.fs.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Storage) flush(filename string, isDir bool) error {
	flags := os.O_RDWR
	if isDir {
		flags = os.O_RDONLY
	}

	f, err := s.fs.OpenFile(filename, flags, s.fileMode)
	if err != nil {
		return domain.ErrFlushToStorage{ErrorOnFsync: err}
	}

	if err := s.fs.Sync(f, isDir); err != nil {
		f.Close()
		return domain.ErrFlushToStorage{ErrorOnFsync: err}
	}

	if err := f.Close(); err != nil {
		return domain.ErrFlushToStorage{ErrorOnClose: err}
	}
	return nil
}
