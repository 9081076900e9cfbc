package idgenerator

import "io"

// WithUUID makes the generator return random UUID strings instead of
// ObjectIDs.
func WithUUID() Option {
	return func(igo *IDGenerator) {
		igo.uuid = true
	}
}

// WithReader sets the reader that will provide random bytes for UUIDs.
func WithReader(r io.Reader) Option {
	return func(igo *IDGenerator) {
		igo.reader = r
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*IDGenerator)
