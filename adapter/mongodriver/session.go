package mongodriver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrForeignSession is returned when an operation carries a session that was
// not started by this driver.
var ErrForeignSession = errors.New("mongodriver: session was not started by this driver")

// Session implements [domain.Session] over a driver session.
type Session struct {
	sess      *mongo.Session
	defaults  domain.TransactionOptions
	maxCommit time.Duration
	running   atomic.Bool
}

// InTransaction reports whether a transaction started by this session has not
// been committed or aborted yet.
func (s *Session) InTransaction() bool {
	return s.running.Load()
}

// StartTransaction implements [domain.Session]. A zero MaxCommitTime falls
// back to the session defaults.
func (s *Session) StartTransaction(opts domain.TransactionOptions) error {
	if opts.MaxCommitTime == 0 {
		opts = s.defaults
	}
	if err := s.sess.StartTransaction(options.Transaction()); err != nil {
		return err
	}
	s.maxCommit = opts.MaxCommitTime
	s.running.Store(true)
	return nil
}

// CommitTransaction implements [domain.Session].
func (s *Session) CommitTransaction(ctx context.Context) error {
	if s.maxCommit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.maxCommit)
		defer cancel()
	}
	if err := s.sess.CommitTransaction(ctx); err != nil {
		return translateErr(err)
	}
	s.running.Store(false)
	return nil
}

// AbortTransaction implements [domain.Session].
func (s *Session) AbortTransaction(ctx context.Context) error {
	s.running.Store(false)
	return translateErr(s.sess.AbortTransaction(ctx))
}

// EndSession implements [domain.Session].
func (s *Session) EndSession(ctx context.Context) {
	s.sess.EndSession(ctx)
}

// Unwrap returns the driver session.
func (s *Session) Unwrap() *mongo.Session {
	return s.sess
}

func sessionOptions(opts domain.SessionOptions) *options.SessionOptionsBuilder {
	return options.Session().SetCausalConsistency(opts.CausalConsistency)
}

// withSession attaches sess to ctx so that driver calls run inside it.
func withSession(ctx context.Context, sess domain.Session) (context.Context, error) {
	if sess == nil {
		return ctx, nil
	}
	s, ok := sess.(*Session)
	if !ok {
		return nil, ErrForeignSession
	}
	return mongo.NewSessionContext(ctx, s.sess), nil
}
