// Package coopsched provides a single-threaded, cooperative, run-to-completion
// task scheduler with chainable futures and multi-future combinators.
//
// # Architecture
//
// The scheduler is built around a [Scheduler] core that owns two FIFO queues
// and a timer registry. The high-priority queue holds microtasks (ready
// continuations, including all future settlement handlers); the low-priority
// queue holds macrotasks (fired timer callbacks and externally submitted
// work). The driver loop drains the high-priority queue completely, then
// transfers every eligible timer into the low-priority queue and admits
// exactly one low-priority item, then repeats. This guarantees that a chain
// of continuations triggered by other continuations always runs before the
// next timer-originated task.
//
// # Futures
//
// [Scheduler.NewFuture] creates a single-assignment [Future] along with its
// resolve and reject functions. Futures support [Future.Then],
// [Future.Catch], and [Future.Finally] chaining with one-level flattening
// of handler results that implement [Thenable]. Settlement handlers are
// never invoked synchronously; they are always enqueued as microtasks, so
// ordering is deterministic regardless of when a future settles.
//
// Settling an already-settled future is a signaled programming error:
// [ResolveFunc] and [RejectFunc] return [ErrAlreadySettled].
//
// Combinators aggregate multiple futures into one: [Scheduler.All],
// [Scheduler.Race], [Scheduler.Any], and [Scheduler.AllSettled].
//
// # Execution Model
//
// Work items run to completion and are never preempted. The core performs
// no I/O; its only input from the host is a monotonic [Clock] (injectable
// via [WithClock]). [Scheduler.RunUntilIdle] returns once both queues and
// the timer registry are empty; [Scheduler.RunForever] parks when idle and
// resumes when new work arrives.
//
// # Thread Safety
//
// The driver is strictly single-threaded, but the queue boundary is
// synchronized: [Scheduler.Submit], [Scheduler.ScheduleTimer], and future
// resolve/reject functions are safe to call from any goroutine. Handlers
// and tasks always execute on the driver goroutine.
//
// # Error Handling
//
// Failures that escape any future chain are reported through the
// [WithUnhandledFailure] callback: a panicking task is recovered, wrapped
// in [PanicError], and reported without crashing the driver; a rejected
// future with no rejection handler anywhere in its consumer chain is
// reported once when the driver next idles.
//
// # Usage
//
//	sched, err := coopsched.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, resolve, _ := sched.NewFuture()
//	f.Then(func(v coopsched.Result) coopsched.Result {
//	    fmt.Println("got", v)
//	    return nil
//	}, nil)
//
//	sched.ScheduleTimer(100*time.Millisecond, func() {
//	    resolve("hello")
//	})
//
//	if err := sched.RunUntilIdle(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package coopsched
