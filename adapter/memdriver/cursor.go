package memdriver

import (
	"context"
	"errors"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"github.com/vinicius-lino-figueiredo/gedm/pkg/ctxsync"
)

// ErrDecodeBeforeNext is returned when Decode is called before Next.
var ErrDecodeBeforeNext = errors.New("Decode called before Next")

// Cursor implements [domain.Cursor] over the results of a query, which are
// already copied out of the database.
type Cursor struct {
	mu     *ctxsync.Mutex
	docs   []data.M
	index  int
	dec    domain.Decoder
	err    error
	closed bool
}

func newCursor(docs []data.M, dec domain.Decoder) *Cursor {
	return &Cursor{
		mu:    ctxsync.NewMutex(),
		docs:  docs,
		index: -1,
		dec:   dec,
	}
}

// Next implements [domain.Cursor].
func (c *Cursor) Next(ctx context.Context) bool {
	if err := c.mu.LockWithContext(ctx); err != nil {
		return false
	}
	defer c.mu.Unlock()
	if c.closed || c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.index+1 < len(c.docs) {
		c.index++
		return true
	}
	return false
}

// Decode implements [domain.Cursor].
func (c *Cursor) Decode(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrCursorClosed
	}
	if c.index < 0 || c.index >= len(c.docs) {
		return ErrDecodeBeforeNext
	}
	return c.dec.Decode(c.docs[c.index], v)
}

// Err implements [domain.Cursor].
func (c *Cursor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close implements [domain.Cursor].
func (c *Cursor) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.docs = nil
	return nil
}

// RemainingBatchLength returns how many documents Next can still return.
func (c *Cursor) RemainingBatchLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return max(len(c.docs)-c.index-1, 0)
}
