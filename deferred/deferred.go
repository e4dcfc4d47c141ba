// Package deferred implements a value that is either already available,
// already failed, or still waiting on an external completion.
//
// Continuations chained with Then run inline when the value is settled, so
// reading bytes that are already buffered costs no goroutine hand-off. Only a
// Pending value defers its continuation, which then runs on the goroutine
// that settles the underlying Promise.
package deferred

import (
	"context"
	"errors"
	"sync"
)

// ErrPending is returned by Sync when the value has not settled yet.
var ErrPending = errors.New("deferred: value is still pending")

// errNilReason replaces a nil rejection reason so that a rejected value
// never reports success.
var errNilReason = errors.New("deferred: rejected without a reason")

// State reports which variant a Value holds.
type State int

const (
	StateResolved State = iota
	StateRejected
	StatePending
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Value is a tagged union of Resolved(value), Rejected(reason) and
// Pending(promise). The zero Value is Resolved with the zero T.
type Value[T any] struct {
	state State
	value T
	err   error
	p     *Promise[T]
}

// Resolved wraps an available value.
func Resolved[T any](v T) Value[T] {
	return Value[T]{state: StateResolved, value: v}
}

// Rejected wraps a failure reason.
func Rejected[T any](err error) Value[T] {
	if err == nil {
		err = errNilReason
	}
	return Value[T]{state: StateRejected, err: err}
}

// Wrap turns a (value, error) pair into a settled Value.
func Wrap[T any](v T, err error) Value[T] {
	if err != nil {
		return Rejected[T](err)
	}
	return Resolved(v)
}

// FromPromise returns a Pending value bound to p. A promise that has
// already settled collapses into Resolved or Rejected.
func FromPromise[T any](p *Promise[T]) Value[T] {
	if p == nil {
		return Rejected[T](errors.New("deferred: nil promise"))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		if p.err != nil {
			return Value[T]{state: StateRejected, err: p.err}
		}
		return Value[T]{state: StateResolved, value: p.value}
	}
	return Value[T]{state: StatePending, p: p}
}

// State returns the variant held at the time the Value was created.
func (v Value[T]) State() State {
	return v.state
}

// Sync is the synchronous escape hatch. It returns the value of a Resolved,
// the original reason of a Rejected and ErrPending for a Pending value.
func (v Value[T]) Sync() (T, error) {
	switch v.state {
	case StateResolved:
		return v.value, nil
	case StateRejected:
		var zero T
		return zero, v.err
	default:
		var zero T
		return zero, ErrPending
	}
}

// Await blocks until the value settles or ctx is done.
func (v Value[T]) Await(ctx context.Context) (T, error) {
	if v.state != StatePending {
		return v.Sync()
	}
	select {
	case <-v.p.done:
		// fields are immutable once done is closed
		return v.p.value, v.p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// settleInto forwards the outcome of v to p.
func (v Value[T]) settleInto(p *Promise[T]) {
	switch v.state {
	case StateResolved:
		p.Resolve(v.value)
	case StateRejected:
		p.Reject(v.err)
	default:
		v.p.subscribe(p.settle)
	}
}

// Then chains fn after v. For Resolved and Rejected values it executes
// inline and returns fn's result (or the rejection) directly; for a Pending
// value it returns a new Pending value that settles after fn has run.
func Then[T, U any](v Value[T], fn func(T) Value[U]) Value[U] {
	switch v.state {
	case StateResolved:
		return fn(v.value)
	case StateRejected:
		return Rejected[U](v.err)
	}

	next := NewPromise[U]()
	v.p.subscribe(func(val T, err error) {
		if err != nil {
			next.Reject(err)
			return
		}
		fn(val).settleInto(next)
	})
	return FromPromise(next)
}

// Map is Then for continuations that cannot suspend.
func Map[T, U any](v Value[T], fn func(T) (U, error)) Value[U] {
	return Then(v, func(val T) Value[U] {
		u, err := fn(val)
		return Wrap(u, err)
	})
}

// Catch handles a rejection. Resolved values pass through untouched; for a
// Rejected value fn runs inline; for a Pending value fn runs if and when it
// is rejected.
func Catch[T any](v Value[T], fn func(error) Value[T]) Value[T] {
	switch v.state {
	case StateResolved:
		return v
	case StateRejected:
		return fn(v.err)
	}

	next := NewPromise[T]()
	v.p.subscribe(func(val T, err error) {
		if err == nil {
			next.Resolve(val)
			return
		}
		fn(err).settleInto(next)
	})
	return FromPromise(next)
}

// Promise is the external completion behind a Pending value. It settles at
// most once; later Resolve or Reject calls are ignored.
type Promise[T any] struct {
	mu      sync.Mutex
	settled bool
	value   T
	err     error
	waiters []func(T, error)
	done    chan struct{}
}

// NewPromise creates an unsettled promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Value returns the deferred view of p.
func (p *Promise[T]) Value() Value[T] {
	return FromPromise(p)
}

// Resolve settles p with v.
func (p *Promise[T]) Resolve(v T) {
	p.settle(v, nil)
}

// Reject settles p with err.
func (p *Promise[T]) Reject(err error) {
	if err == nil {
		err = errNilReason
	}
	var zero T
	p.settle(zero, err)
}

func (p *Promise[T]) settle(v T, err error) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.settled = true
	p.value = v
	p.err = err
	waiters := p.waiters
	p.waiters = nil
	close(p.done)
	p.mu.Unlock()

	for _, w := range waiters {
		w(v, err)
	}
}

func (p *Promise[T]) subscribe(fn func(T, error)) {
	p.mu.Lock()
	if p.settled {
		v, err := p.value, p.err
		p.mu.Unlock()
		fn(v, err)
		return
	}
	p.waiters = append(p.waiters, fn)
	p.mu.Unlock()
}
