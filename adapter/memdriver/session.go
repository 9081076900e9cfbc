package memdriver

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/session"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.uber.org/zap"
)

var (
	// ErrSessionEnded is returned when using a session after EndSession.
	ErrSessionEnded = errors.New("session has ended")
	// ErrForeignSession is returned when an operation carries a session
	// started by another database.
	ErrForeignSession = errors.New("session belongs to another database")
	// ErrTransactionInProgress is returned when starting a transaction in
	// a session that is already running one.
	ErrTransactionInProgress = errors.New("transaction already in progress")
)

// Session implements [domain.Session]. A transaction holds the transaction
// lock of the database until it commits or aborts, so transactions of
// different sessions run one after the other. Aborting restores the whole
// database to the state it had when the transaction started.
//
// A transaction started with a context that runs inside the transaction of
// another session of the database nests in it instead of waiting: committing
// it keeps its writes, aborting it restores the state it started from, and
// aborting the enclosing transaction discards both.
type Session struct {
	id   uuid.UUID
	db   *Database
	opts domain.SessionOptions

	mu       sync.Mutex
	snapshot map[string]*store
	inTxn    bool
	nested   bool
	ended    bool
}

func newSession(db *Database, opts domain.SessionOptions) *Session {
	return &Session{id: uuid.New(), db: db, opts: opts}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// InTransaction reports whether a transaction is running.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTxn
}

// StartTransaction implements [domain.Session].
func (s *Session) StartTransaction(opts domain.TransactionOptions) error {
	return s.StartTransactionContext(context.Background(), opts)
}

// StartTransactionContext starts a transaction, waiting for the running one
// until ctx is done unless ctx runs inside it.
func (s *Session) StartTransactionContext(ctx context.Context, _ domain.TransactionOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	if s.inTxn {
		return ErrTransactionInProgress
	}

	s.nested = s.enclosed(ctx)
	if !s.nested {
		if err := s.db.txn.LockWithContext(ctx); err != nil {
			return err
		}
	}
	s.db.mu.RLock()
	s.snapshot = s.db.snapshot()
	s.db.mu.RUnlock()
	s.inTxn = true

	s.db.logger.Debug("transaction started", zap.Stringer("session", s.id), zap.Bool("nested", s.nested))
	return nil
}

// enclosed reports whether ctx runs inside a transaction of another session
// of the same database.
func (s *Session) enclosed(ctx context.Context) bool {
	running, ok := session.Running(ctx)
	if !ok {
		return false
	}
	outer, ok := running.(*Session)
	return ok && outer != s && outer.db == s.db && outer.InTransaction()
}

// CommitTransaction implements [domain.Session].
func (s *Session) CommitTransaction(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inTxn {
		return domain.ErrNoSession
	}
	s.finish()
	s.db.logger.Debug("transaction committed", zap.Stringer("session", s.id))
	return nil
}

// AbortTransaction implements [domain.Session].
func (s *Session) AbortTransaction(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inTxn {
		return domain.ErrNoSession
	}
	return s.abort(ctx)
}

// abort restores the snapshot. The caller holds s.mu.
func (s *Session) abort(ctx context.Context) error {
	if err := s.db.mu.LockWithContext(ctx); err != nil {
		return err
	}
	err := s.db.restore(s.snapshot)
	s.db.mu.Unlock()
	s.finish()
	if err != nil {
		s.db.logger.Error("restoring snapshot", zap.Stringer("session", s.id), zap.Error(err))
		return err
	}
	s.db.logger.Info("transaction aborted", zap.Stringer("session", s.id))
	return nil
}

func (s *Session) finish() {
	s.snapshot = nil
	s.inTxn = false
	if !s.nested {
		s.db.txn.Unlock()
	}
	s.nested = false
}

// EndSession implements [domain.Session]. A running transaction is aborted.
func (s *Session) EndSession(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	if s.inTxn {
		_ = s.abort(context.WithoutCancel(ctx))
	}
	s.ended = true
}

// checkSession fails for ended sessions and sessions of other databases.
// A nil session is valid.
func (d *Database) checkSession(sess domain.Session) error {
	if sess == nil {
		return nil
	}
	s, ok := sess.(*Session)
	if !ok || s.db != d {
		return ErrForeignSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	return nil
}
