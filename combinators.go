package coopsched

import (
	"sync"
	"sync/atomic"
)

// SettledResult is one per-input record in the fulfillment value of
// [Scheduler.AllSettled].
type SettledResult struct {
	// Value is the fulfillment value; set only when Status is Fulfilled.
	Value Result
	// Reason is the rejection reason; set only when Status is Rejected.
	Reason Result
	// Status is Fulfilled or Rejected.
	Status FutureState
}

// All returns a future that fulfills with the ordered values of every input
// once all inputs have fulfilled.
//
// Behavior:
//   - Empty input fulfills immediately with an empty []Result
//   - Values are ordered by input position, not settlement order
//   - The first rejection (by settlement time) rejects the result
//     immediately; later outcomes are ignored by this combinator, though
//     the inputs themselves still settle independently
func (s *Scheduler) All(futures []*Future) *Future {
	result, resolve, reject := s.NewFuture()

	if len(futures) == 0 {
		_ = resolve(make([]Result, 0))
		return result
	}

	var mu sync.Mutex
	var completed atomic.Int32
	var rejected atomic.Bool
	values := make([]Result, len(futures))

	for i, f := range futures {
		idx := i
		f.Then(
			func(v Result) Result {
				mu.Lock()
				values[idx] = v
				mu.Unlock()

				if completed.Add(1) == int32(len(futures)) && !rejected.Load() {
					_ = resolve(values)
				}
				return nil
			},
			func(r Result) Result {
				if rejected.CompareAndSwap(false, true) {
					_ = reject(r)
				}
				return nil
			},
		)
	}

	return result
}

// Race returns a future that settles with the outcome of whichever input
// settles first by wall-clock settlement time, fulfilled or rejected. Later
// settlements are ignored.
//
// Zero inputs have no well-defined winner: the result rejects immediately
// with [ErrNoInput].
func (s *Scheduler) Race(futures []*Future) *Future {
	result, resolve, reject := s.NewFuture()

	if len(futures) == 0 {
		_ = reject(ErrNoInput)
		return result
	}

	var settled atomic.Bool

	for _, f := range futures {
		f.Then(
			func(v Result) Result {
				if settled.CompareAndSwap(false, true) {
					_ = resolve(v)
				}
				return nil
			},
			func(r Result) Result {
				if settled.CompareAndSwap(false, true) {
					_ = reject(r)
				}
				return nil
			},
		)
	}

	return result
}

// Any returns a future that fulfills with the value of the first input to
// fulfill. It rejects only if every input rejects, with an
// [*AggregateError] carrying each rejection reason in input order.
//
// Zero inputs reject immediately with [ErrNoInput].
func (s *Scheduler) Any(futures []*Future) *Future {
	result, resolve, reject := s.NewFuture()

	if len(futures) == 0 {
		_ = reject(ErrNoInput)
		return result
	}

	var mu sync.Mutex
	var rejectedCount atomic.Int32
	var fulfilled atomic.Bool
	reasons := make([]Result, len(futures))

	for i, f := range futures {
		idx := i
		f.Then(
			func(v Result) Result {
				if fulfilled.CompareAndSwap(false, true) {
					_ = resolve(v)
				}
				return nil
			},
			func(r Result) Result {
				mu.Lock()
				reasons[idx] = r
				mu.Unlock()

				if rejectedCount.Add(1) == int32(len(futures)) && !fulfilled.Load() {
					errs := make([]error, len(reasons))
					for j, reason := range reasons {
						errs[j] = asError(reason)
					}
					_ = reject(&AggregateError{
						Message: "coopsched: all futures were rejected",
						Errors:  errs,
					})
				}
				return nil
			},
		)
	}

	return result
}

// AllSettled returns a future that fulfills once every input has settled,
// with a []SettledResult in input order (not settlement order). It never
// rejects.
//
// Empty input fulfills immediately with an empty slice.
func (s *Scheduler) AllSettled(futures []*Future) *Future {
	result, resolve, _ := s.NewFuture()

	if len(futures) == 0 {
		_ = resolve(make([]SettledResult, 0))
		return result
	}

	var mu sync.Mutex
	var completed atomic.Int32
	records := make([]SettledResult, len(futures))

	settleOne := func(idx int, r SettledResult) {
		mu.Lock()
		records[idx] = r
		mu.Unlock()

		if completed.Add(1) == int32(len(futures)) {
			_ = resolve(records)
		}
	}

	for i, f := range futures {
		idx := i
		f.Then(
			func(v Result) Result {
				settleOne(idx, SettledResult{Status: Fulfilled, Value: v})
				return nil
			},
			func(r Result) Result {
				settleOne(idx, SettledResult{Status: Rejected, Reason: r})
				return nil
			},
		)
	}

	return result
}
