package storage

import "os"

// Option configures a [Storage].
type Option func(*Storage)

// WithFileMode sets the permissions of created datafiles.
func WithFileMode(mode os.FileMode) Option {
	return func(s *Storage) {
		s.fileMode = mode
	}
}

// WithDirMode sets the permissions of created parent directories.
func WithDirMode(mode os.FileMode) Option {
	return func(s *Storage) {
		s.dirMode = mode
	}
}
