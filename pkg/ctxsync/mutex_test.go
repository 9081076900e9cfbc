package ctxsync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedm/pkg/ctxsync"
)

const waitShort = 20 * time.Millisecond

type MutexTestSuite struct {
	suite.Suite
	mu *ctxsync.Mutex
}

func (s *MutexTestSuite) SetupTest() {
	s.mu = ctxsync.NewMutex()
}

// blocked reports whether lock is still waiting after a short time.
func (s *MutexTestSuite) blocked(lock func()) (bool, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		lock()
		close(done)
	}()
	select {
	case <-done:
		return false, done
	case <-time.After(waitShort):
		return true, done
	}
}

func (s *MutexTestSuite) TestExclusive() {
	const writers = 200
	var (
		counter int
		wg      sync.WaitGroup
	)
	start := make(chan struct{})
	wg.Add(writers)
	for range writers {
		go func() {
			defer wg.Done()
			<-start
			s.mu.Lock()
			defer s.mu.Unlock()
			counter++
		}()
	}
	close(start)
	wg.Wait()
	s.Equal(writers, counter)
}

func (s *MutexTestSuite) TestFIFO() {
	const waiters = 50
	var (
		order []int
		wg    sync.WaitGroup
	)
	s.mu.Lock()
	for i := range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.mu.Lock()
			order = append(order, i)
			s.mu.Unlock()
		}()
		time.Sleep(time.Millisecond)
	}
	s.mu.Unlock()
	wg.Wait()

	s.Require().Len(order, waiters)
	for i, v := range order {
		s.Equal(i, v)
	}
}

func (s *MutexTestSuite) TestLockWaitsForUnlock() {
	s.mu.Lock()
	waiting, done := s.blocked(s.mu.Lock)
	s.True(waiting)

	s.mu.Unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("lock not acquired after unlock")
	}
	s.mu.Unlock()
}

func (s *MutexTestSuite) TestTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), waitShort)
	defer cancel()
	err := s.mu.LockWithContext(ctx)
	s.ErrorIs(err, context.DeadlineExceeded)
}

// Giving up on the lock does not keep later waiters from it.
func (s *MutexTestSuite) TestCancelledWaiterLeavesQueue() {
	s.mu.Lock()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- s.mu.LockWithContext(ctx) }()
	time.Sleep(waitShort)

	acquired := make(chan error, 1)
	go func() { acquired <- s.mu.LockWithContext(context.Background()) }()
	time.Sleep(waitShort)

	cancel()
	s.ErrorIs(<-errs, context.Canceled)

	s.mu.Unlock()
	select {
	case err := <-acquired:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("second waiter never acquired the lock")
	}
	s.mu.Unlock()
}

func (s *MutexTestSuite) TestDoneContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// fails even when the lock is free
	s.ErrorIs(s.mu.LockWithContext(ctx), context.Canceled)
	s.True(s.mu.TryLock())
	s.mu.Unlock()
}

func (s *MutexTestSuite) TestTryLock() {
	s.True(s.mu.TryLock())
	s.False(s.mu.TryLock())
	s.mu.Unlock()
	s.True(s.mu.TryLock())
	s.mu.Unlock()
}

func (s *MutexTestSuite) TestUnlockUnlocked() {
	s.Panics(s.mu.Unlock)

	s.mu.Lock()
	s.mu.Unlock()
	s.Panics(s.mu.Unlock)
}

func TestMutexTestSuite(t *testing.T) {
	suite.Run(t, new(MutexTestSuite))
}

type RWMutexTestSuite struct {
	suite.Suite
	rw *ctxsync.RWMutex
}

func (s *RWMutexTestSuite) SetupTest() {
	s.rw = ctxsync.NewRWMutex()
}

func (s *RWMutexTestSuite) TestSharedReaders() {
	const readers = 20
	for range readers {
		s.Require().NoError(s.rw.RLockWithContext(context.Background()))
	}
	s.False(s.rw.TryLock())
	for range readers {
		s.rw.RUnlock()
	}
	s.True(s.rw.TryLock())
	s.rw.Unlock()
}

func (s *RWMutexTestSuite) TestWriterExcludesReaders() {
	s.rw.Lock()

	ctx, cancel := context.WithTimeout(context.Background(), waitShort)
	defer cancel()
	s.ErrorIs(s.rw.RLockWithContext(ctx), context.DeadlineExceeded)

	s.rw.Unlock()
	s.rw.RLock()
	s.rw.RUnlock()
}

// A waiting writer blocks readers that arrive after it.
func (s *RWMutexTestSuite) TestPendingWriterBlocksReaders() {
	s.rw.RLock()

	locked := make(chan struct{})
	go func() {
		s.rw.Lock()
		close(locked)
	}()
	time.Sleep(waitShort)

	ctx, cancel := context.WithTimeout(context.Background(), waitShort)
	defer cancel()
	s.ErrorIs(s.rw.RLockWithContext(ctx), context.DeadlineExceeded)

	s.rw.RUnlock()
	select {
	case <-locked:
	case <-time.After(time.Second):
		s.Fail("writer never acquired the lock")
	}
	s.rw.Unlock()
}

func (s *RWMutexTestSuite) TestDoneContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.ErrorIs(s.rw.LockWithContext(ctx), context.Canceled)
	s.ErrorIs(s.rw.RLockWithContext(ctx), context.Canceled)
}

func (s *RWMutexTestSuite) TestRUnlockUnlocked() {
	s.Panics(s.rw.RUnlock)
	s.Panics(s.rw.Unlock)
}

func TestRWMutexTestSuite(t *testing.T) {
	suite.Run(t, new(RWMutexTestSuite))
}

func BenchmarkMutex(b *testing.B) {
	mu := ctxsync.NewMutex()
	ctx := context.Background()
	for b.Loop() {
		_ = mu.LockWithContext(ctx)
		mu.Unlock()
	}
}
