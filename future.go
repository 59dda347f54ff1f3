package coopsched

import (
	"sync"
	"sync/atomic"
)

// Result represents the value of a fulfilled or rejected future. It can be
// any type; rejected futures typically carry an error or rejection reason.
type Result = any

// FutureState represents the lifecycle state of a [Future]. A future starts
// Pending and transitions exactly once to either Fulfilled or Rejected.
type FutureState int32

const (
	// Pending indicates the future has not yet settled.
	Pending FutureState = iota

	// Fulfilled indicates the future settled successfully with a value.
	Fulfilled

	// Rejected indicates the future settled with a failure reason.
	Rejected
)

// String returns a human-readable representation of the state.
func (s FutureState) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Fulfilled:
		return "Fulfilled"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Thenable is implemented by values that, when returned from a settlement
// handler or passed to a resolve function, cause the receiving future to
// adopt their eventual outcome instead of fulfilling with the value itself
// (one level of flattening).
//
// [*Future] implements Thenable by returning itself.
type Thenable interface {
	// Future returns the future whose outcome should be adopted.
	Future() *Future
}

// Future is a single-assignment container for a value or error that becomes
// available at most once.
//
// Creating Futures:
//
//	f, resolve, reject := sched.NewFuture()
//	go func() {
//	    v, err := doWork()
//	    if err != nil {
//	        reject(err)
//	    } else {
//	        resolve(v)
//	    }
//	}()
//
// Chaining:
//
//	f.
//	    Then(func(v Result) Result {
//	        return transform(v)
//	    }, nil).
//	    Catch(func(r Result) Result {
//	        return fallback // recover from the failure
//	    }).
//	    Finally(func() {
//	        cleanup()
//	    })
//
// Handlers always run as microtasks on the driver goroutine, in registration
// order, and are never invoked synchronously — a handler attached to an
// already-settled future is still enqueued rather than called inline.
type Future struct {
	sched  *Scheduler
	result Result
	// waiters holds continuations registered before settlement, in
	// registration order. Cleared at settlement.
	waiters []continuation

	// adopting is set once resolve accepts a pending Thenable. The future
	// stays Pending until the inner future settles, but counts as settled
	// for resolve/reject callers. Guarded by mu, never unset.
	adopting bool

	state atomic.Int32
	id    uint64

	mu sync.Mutex
}

// continuation is a reaction to future settlement: an optional handler
// pair, plus the chained future it settles.
type continuation struct {
	onFulfilled func(Result) Result
	onRejected  func(Result) Result
	target      *Future
}

// ResolveFunc fulfills a future with a value. It returns
// [ErrAlreadySettled] if the future has already settled; the first
// settlement always wins. Safe to call from any goroutine.
type ResolveFunc func(value Result) error

// RejectFunc rejects a future with a reason. It returns
// [ErrAlreadySettled] if the future has already settled; the first
// settlement always wins. Safe to call from any goroutine.
type RejectFunc func(reason Result) error

// NewFuture creates a new pending future along with its resolve and reject
// functions.
//
// The resolve and reject functions may be called from any goroutine; the
// future's handlers always execute on the driver goroutine. Exactly one
// settlement succeeds — later calls return [ErrAlreadySettled].
func (s *Scheduler) NewFuture() (*Future, ResolveFunc, RejectFunc) {
	f := s.newFuture()
	return f, f.resolve, f.reject
}

func (s *Scheduler) newFuture() *Future {
	return &Future{
		sched: s,
		id:    s.nextFutureID.Add(1),
	}
}

// Resolved returns a future already fulfilled with the given value. If the
// value is a [Thenable], the returned future adopts its outcome.
func (s *Scheduler) Resolved(value Result) *Future {
	f := s.newFuture()
	_ = f.resolve(value)
	return f
}

// Rejected returns a future already rejected with the given reason.
func (s *Scheduler) Rejected(reason Result) *Future {
	f := s.newFuture()
	_ = f.reject(reason)
	return f
}

// Future implements [Thenable].
func (f *Future) Future() *Future {
	return f
}

// State returns the current [FutureState]. Safe from any goroutine.
func (f *Future) State() FutureState {
	return FutureState(f.state.Load())
}

// Value returns the fulfillment value, or nil if pending or rejected.
// Note that a fulfilled future can legitimately hold a nil value.
func (f *Future) Value() Result {
	if f.state.Load() == int32(Fulfilled) {
		return f.result
	}
	return nil
}

// Reason returns the rejection reason, or nil if pending or fulfilled.
func (f *Future) Reason() Result {
	if f.state.Load() == int32(Rejected) {
		return f.result
	}
	return nil
}

// resolve fulfills the future, flattening one level of Thenable values.
// Accepting a pending Thenable locks the settlement in: the future adopts
// the inner outcome, and later resolve/reject calls fail with
// [ErrAlreadySettled] even while the adoption is still pending.
func (f *Future) resolve(value Result) error {
	f.mu.Lock()
	if f.state.Load() != int32(Pending) || f.adopting {
		f.mu.Unlock()
		return ErrAlreadySettled
	}
	if t, ok := value.(Thenable); ok {
		if inner := t.Future(); inner != nil {
			if inner == f {
				f.mu.Unlock()
				return f.settle(Rejected, ErrChainCycle)
			}
			f.adopting = true
			f.mu.Unlock()
			// Adopt the inner future's eventual outcome. The adoption
			// itself is a continuation with no handlers: pure pass-through.
			inner.addContinuation(continuation{target: f})
			return nil
		}
	}
	f.mu.Unlock()
	return f.settle(Fulfilled, value)
}

// reject settles the future with a failure reason.
func (f *Future) reject(reason Result) error {
	f.mu.Lock()
	if f.adopting {
		f.mu.Unlock()
		return ErrAlreadySettled
	}
	f.mu.Unlock()
	return f.settle(Rejected, reason)
}

// settle performs the single Pending→settled transition, then moves every
// waiter onto the high-priority queue in registration order.
func (f *Future) settle(to FutureState, result Result) error {
	f.mu.Lock()
	if f.state.Load() != int32(Pending) {
		f.mu.Unlock()
		return ErrAlreadySettled
	}

	waiters := f.waiters
	f.waiters = nil
	f.result = result
	f.state.Store(int32(to))

	// Enqueue inside the lock so concurrent addContinuation calls cannot
	// interleave out of registration order.
	for _, c := range waiters {
		f.enqueue(c, to, result)
	}
	f.mu.Unlock()

	if to == Rejected && len(waiters) == 0 {
		f.sched.trackRejection(f.id, result)
	}
	return nil
}

// addContinuation registers a continuation, enqueueing it immediately if the
// future has already settled.
func (f *Future) addContinuation(c continuation) {
	f.mu.Lock()
	st := FutureState(f.state.Load())
	if st == Pending {
		f.waiters = append(f.waiters, c)
		f.mu.Unlock()
	} else {
		result := f.result
		f.enqueue(c, st, result)
		f.mu.Unlock()
	}

	// Any continuation consumes the outcome: a rejection now propagates to
	// c.target (or is intercepted), so this future is no longer a leak.
	f.sched.markHandled(f.id)
}

// enqueue schedules a continuation for execution on the high-priority queue.
func (f *Future) enqueue(c continuation, st FutureState, result Result) {
	_ = f.sched.ScheduleMicrotask(func() {
		runContinuation(c, st, result)
	})
}

// runContinuation executes a single continuation on the driver goroutine:
// pass-through when the matching handler is absent, panic-to-rejection
// otherwise, with the handler's return value settling the target.
func runContinuation(c continuation, st FutureState, result Result) {
	var fn func(Result) Result
	if st == Fulfilled {
		fn = c.onFulfilled
	} else {
		fn = c.onRejected
	}

	if fn == nil {
		// Pass-through: the source's stored result is already flattened, so
		// the target settles with it directly. This is also how adoption
		// completes on a target whose resolve/reject are latched.
		if c.target != nil {
			_ = c.target.settle(st, result)
		}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if c.target != nil {
				_ = c.target.reject(PanicError{Value: r})
			}
		}
	}()

	out := fn(result)
	if c.target != nil {
		_ = c.target.resolve(out)
	}
}

// Then registers a continuation and returns the chained future.
//
// Parameters:
//   - onFulfilled: handler for the fulfillment value. May be nil.
//   - onRejected: handler for the rejection reason. May be nil.
//
// The returned future settles according to the handler that matches the
// source's outcome:
//   - handler returns a plain value → chained future fulfills with it
//   - handler returns a [Thenable] → chained future adopts its outcome
//   - handler panics → chained future rejects with [PanicError]
//   - matching handler is nil → the outcome passes through unchanged
func (f *Future) Then(onFulfilled, onRejected func(Result) Result) *Future {
	child := f.sched.newFuture()
	f.addContinuation(continuation{
		onFulfilled: onFulfilled,
		onRejected:  onRejected,
		target:      child,
	})
	return child
}

// Catch registers a rejection handler. Equivalent to Then(nil, onRejected).
func (f *Future) Catch(onRejected func(Result) Result) *Future {
	return f.Then(nil, onRejected)
}

// Finally registers a handler that runs regardless of how the future
// settles. The handler receives no arguments and its return value is
// ignored; the returned future preserves the original settlement.
//
// If onFinally panics, the panic value is discarded and the original
// settlement still propagates. Cleanup panics should not swallow the
// original result.
func (f *Future) Finally(onFinally func()) *Future {
	child := f.sched.newFuture()

	if onFinally == nil {
		onFinally = func() {}
	}

	runFinally := func(res Result, rejected bool) {
		defer func() {
			if r := recover(); r != nil {
				_ = r // panic value discarded
				if rejected {
					_ = child.reject(res)
				} else {
					_ = child.resolve(res)
				}
			}
		}()
		onFinally()
		if rejected {
			_ = child.reject(res)
		} else {
			_ = child.resolve(res)
		}
	}

	f.addContinuation(continuation{
		onFulfilled: func(v Result) Result {
			runFinally(v, false)
			return nil // child settled manually
		},
		onRejected: func(r Result) Result {
			runFinally(r, true)
			return nil // child settled manually
		},
		target: child,
	})

	return child
}
