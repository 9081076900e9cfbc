// Package session carries the ambient driver session in a context and runs
// session and transaction scopes.
package session

import (
	"context"
	"errors"

	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

type ctxKey struct{}

type txKey struct{}

// Transactional is implemented by sessions that report whether a transaction
// is running.
type Transactional interface {
	InTransaction() bool
}

// ContextStarter is implemented by sessions that start transactions with the
// context of the call chain that runs them.
type ContextStarter interface {
	StartTransactionContext(ctx context.Context, opts domain.TransactionOptions) error
}

// Starter starts driver sessions. [domain.Database] implements it.
type Starter interface {
	StartSession(ctx context.Context, opts domain.SessionOptions) (domain.Session, error)
}

// With returns a child of ctx carrying sess. A nil sess hides any session
// carried by ctx.
func With(ctx context.Context, sess domain.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// From returns the session carried by ctx.
func From(ctx context.Context) (domain.Session, bool) {
	sess, _ := ctx.Value(ctxKey{}).(domain.Session)
	return sess, sess != nil
}

// UseSession runs fn with sess as the ambient session. The caller keeps
// ownership of sess. Since ctx is never modified, the previous session is
// visible again once fn returns, however it returns.
func UseSession(ctx context.Context, sess domain.Session, fn func(ctx context.Context) error) error {
	return fn(With(ctx, sess))
}

// Start starts a session, runs fn with it as the ambient session and ends it.
func Start(ctx context.Context, db Starter, fn func(ctx context.Context) error, opts ...Option) error {
	o := newOptions(opts)
	sess, err := db.StartSession(ctx, o.session)
	if err != nil {
		return err
	}
	defer sess.EndSession(context.WithoutCancel(ctx))
	return fn(With(ctx, sess))
}

// UseTransaction runs fn inside a transaction. The ambient session of ctx is
// used when there is one and it is not running a transaction already,
// otherwise a new session is started and ended around the transaction. A
// nested transaction therefore commits on its own, independently of the
// outer one. The transaction is committed when fn returns nil and aborted when
// it returns an error or panics.
func UseTransaction(ctx context.Context, db Starter, fn func(ctx context.Context) error, opts ...Option) error {
	o := newOptions(opts)
	if sess, ok := From(ctx); ok && !InTransaction(ctx, sess) {
		return run(ctx, sess, fn, o.transaction)
	}
	return Start(ctx, db, func(ctx context.Context) error {
		sess, _ := From(ctx)
		return run(ctx, sess, fn, o.transaction)
	}, opts...)
}

// InTransaction reports whether sess is running a transaction, either one
// started by [UseTransaction] up the call chain of ctx or one the session
// reports through [Transactional].
func InTransaction(ctx context.Context, sess domain.Session) bool {
	if running, ok := Running(ctx); ok && running == sess {
		return true
	}
	t, ok := sess.(Transactional)
	return ok && t.InTransaction()
}

// Running returns the session of the innermost transaction started by
// [UseTransaction] up the call chain of ctx.
func Running(ctx context.Context) (domain.Session, bool) {
	sess, _ := ctx.Value(txKey{}).(domain.Session)
	return sess, sess != nil
}

func run(ctx context.Context, sess domain.Session, fn func(ctx context.Context) error, opts domain.TransactionOptions) error {
	var err error
	if cs, ok := sess.(ContextStarter); ok {
		err = cs.StartTransactionContext(ctx, opts)
	} else {
		err = sess.StartTransaction(opts)
	}
	if err != nil {
		return err
	}
	// aborting must not depend on ctx still being alive
	abortCtx := context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			_ = sess.AbortTransaction(abortCtx)
			panic(r)
		}
	}()
	if err := fn(context.WithValue(With(ctx, sess), txKey{}, sess)); err != nil {
		if abortErr := sess.AbortTransaction(abortCtx); abortErr != nil {
			return errors.Join(err, abortErr)
		}
		return err
	}
	return sess.CommitTransaction(ctx)
}
