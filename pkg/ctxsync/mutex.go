// Package ctxsync provides locks whose acquisition can be abandoned through a
// context. Waiters are served in the order they called Lock.
package ctxsync

import (
	"context"

	"golang.org/x/sync/semaphore"
)

const maxReaders = 1 << 30

// NewMutex creates a new instance of Mutex.
func NewMutex() *Mutex {
	return &Mutex{sem: semaphore.NewWeighted(1)}
}

// A Mutex is a mutual exclusion lock.
type Mutex struct {
	sem *semaphore.Weighted
}

// Lock locks the mutex with a context.Background()
func (m *Mutex) Lock() {
	_ = m.LockWithContext(context.Background())
}

// LockWithContext locks until Unlock is called or context is cancelled
func (m *Mutex) LockWithContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.sem.Acquire(ctx, 1)
}

// TryLock tries to lock m and reports whether it succeeded.
func (m *Mutex) TryLock() bool {
	return m.sem.TryAcquire(1)
}

// Unlock unlocks m. It panics if m is not locked.
func (m *Mutex) Unlock() {
	m.sem.Release(1)
}

// NewRWMutex creates a new instance of RWMutex.
func NewRWMutex() *RWMutex {
	return &RWMutex{sem: semaphore.NewWeighted(maxReaders)}
}

// A RWMutex is a reader/writer mutual exclusion lock. A blocked Lock call
// keeps new readers from acquiring the lock.
type RWMutex struct {
	sem *semaphore.Weighted
}

// Lock locks rw for writing with a context.Background().
func (rw *RWMutex) Lock() {
	_ = rw.LockWithContext(context.Background())
}

// LockWithContext locks rw for writing until it is available or ctx is
// cancelled.
func (rw *RWMutex) LockWithContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return rw.sem.Acquire(ctx, maxReaders)
}

// TryLock tries to lock rw for writing and reports whether it succeeded.
func (rw *RWMutex) TryLock() bool {
	return rw.sem.TryAcquire(maxReaders)
}

// Unlock unlocks rw for writing.
func (rw *RWMutex) Unlock() {
	rw.sem.Release(maxReaders)
}

// RLock locks rw for reading with a context.Background().
func (rw *RWMutex) RLock() {
	_ = rw.RLockWithContext(context.Background())
}

// RLockWithContext locks rw for reading until it is available or ctx is
// cancelled.
func (rw *RWMutex) RLockWithContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return rw.sem.Acquire(ctx, 1)
}

// RUnlock undoes a single RLock call.
func (rw *RWMutex) RUnlock() {
	rw.sem.Release(1)
}
