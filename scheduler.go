package coopsched

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/logiface"
)

// Task is a zero-argument unit of deferred, run-to-completion execution.
type Task func()

// FailureHandler is the callback invoked for failures that escape every
// future chain: recovered task panics (wrapped in [PanicError]) and
// rejection reasons of futures that never gained a rejection handler.
type FailureHandler func(reason Result)

// Scheduler is the cooperative, single-threaded driver that owns the queue
// pair and the timer registry.
//
// The driver goroutine (the one inside RunUntilIdle or RunForever) is the
// only executor of tasks. The submission side is synchronized, so Submit,
// ScheduleTimer, and future settlement are safe from any goroutine.
//
// A Scheduler must be created via [New]; the zero value is not usable.
type Scheduler struct {
	// Prevent copying
	_ [0]func()

	state *schedState

	clock       Clock
	logger      *logiface.Logger[logiface.Event]
	onUnhandled FailureHandler
	metrics     *metrics

	// mu guards the queue pair and the timer registry. Only the push side
	// contends with the driver; tasks themselves always run outside mu.
	mu       sync.Mutex
	micro    *queue.Queue // high priority: ready continuations
	macro    *queue.Queue // low priority: timer completions + external work
	timers   timerHeap
	handles  map[TimerID]*timerEntry
	timerSeq uint64

	// wake rouses a parked driver after a push. Buffered so producers never
	// block; a stale token only causes a harmless re-check.
	wake chan struct{}

	// rejMu guards unhandled, the rejected-without-handler set reported at
	// each idle checkpoint.
	rejMu     sync.Mutex
	unhandled map[uint64]Result

	nextTimerID  atomic.Uint64
	nextFutureID atomic.Uint64

	loopGoroutineID atomic.Uint64
	immediateStop   atomic.Bool

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a new scheduler with an empty queue pair and timer registry.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		state:       newSchedState(),
		clock:       cfg.clock,
		logger:      cfg.logger,
		onUnhandled: cfg.onUnhandled,
		micro:       queue.New(),
		macro:       queue.New(),
		handles:     make(map[TimerID]*timerEntry),
		wake:        make(chan struct{}, 1),
		unhandled:   make(map[uint64]Result),
		done:        make(chan struct{}),
	}
	if cfg.metricsEnabled {
		s.metrics = &metrics{}
	}
	return s, nil
}

// Submit enqueues external work onto the low-priority queue. It is safe to
// call from any goroutine, including before any run entry point has been
// called (the work is processed by the next run).
//
// Returns [ErrSchedulerTerminated] after termination. Submissions during
// graceful shutdown are still accepted so in-flight work can drain.
func (s *Scheduler) Submit(task Task) error {
	if task == nil {
		return nil
	}
	if s.state.IsTerminal() {
		return ErrSchedulerTerminated
	}

	s.mu.Lock()
	s.macro.Add(task)
	s.mu.Unlock()

	s.wakeUp()
	return nil
}

// ScheduleMicrotask enqueues work onto the high-priority queue. Microtasks
// run before the next low-priority item, in FIFO order; a microtask
// scheduled from within another microtask runs in the same drain pass.
//
// This is the mechanism used internally for future settlement handlers.
func (s *Scheduler) ScheduleMicrotask(fn Task) error {
	if fn == nil {
		return nil
	}
	if s.state.IsTerminal() {
		return ErrSchedulerTerminated
	}

	s.mu.Lock()
	s.micro.Add(fn)
	s.mu.Unlock()

	s.wakeUp()
	return nil
}

// wakeUp rouses a parked driver. Non-blocking; at most one token is ever
// pending.
func (s *Scheduler) wakeUp() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// RunUntilIdle runs the driver until both queues and the timer registry are
// empty, then returns nil. It parks while waiting for not-yet-eligible
// timers. It may be called repeatedly; work queued between runs is retained.
//
// Canceling ctx terminates the scheduler, discarding still-queued work, and
// returns ctx.Err().
func (s *Scheduler) RunUntilIdle(ctx context.Context) error {
	return s.run(ctx, false)
}

// RunForever runs the driver indefinitely, parking whenever idle and
// resuming as new work arrives. It returns only on ctx cancellation
// (returning ctx.Err()) or after [Scheduler.Shutdown] or [Scheduler.Close]
// (returning nil).
func (s *Scheduler) RunForever(ctx context.Context) error {
	return s.run(ctx, true)
}

// run is the driver loop shared by both entry points.
func (s *Scheduler) run(ctx context.Context, forever bool) error {
	if s.isDriverGoroutine() {
		return ErrReentrantRun
	}

	if !s.state.TryTransition(StateIdle, StateRunning) {
		switch s.state.Load() {
		case StateTerminating, StateTerminated:
			return ErrSchedulerTerminated
		default:
			return ErrSchedulerRunning
		}
	}

	s.loopGoroutineID.Store(goroutineID())
	defer s.loopGoroutineID.Store(0)

	s.logger.Debug().
		Bool(`forever`, forever).
		Log(`coopsched: driver started`)

	for {
		select {
		case <-ctx.Done():
			// Cancellation is not a graceful drain: still-queued work is
			// dropped, otherwise an endless chain could outlive the ctx.
			s.immediateStop.Store(true)
			s.requestTermination()
			s.finalize()
			return ctx.Err()
		default:
		}

		if s.state.Load() == StateTerminating {
			s.finalize()
			return nil
		}

		// Phase 1: drain the high-priority queue completely, including
		// items enqueued by the items being drained.
		if s.drainMicrotasks() {
			continue
		}

		// Phase 2: transfer eligible timers, then admit exactly one
		// low-priority item. That item may enqueue new high-priority work,
		// so return to phase 1 immediately.
		s.transferEligibleTimers(s.clock.Now())
		if task, ok := s.popMacro(); ok {
			s.execute(task, false)
			continue
		}

		// Idle checkpoint: both queues empty.
		s.reportUnhandled()

		busy, next, hasTimer := s.idleCheck()
		if busy {
			continue
		}
		if !hasTimer && !forever {
			break
		}

		s.park(ctx, next, hasTimer)
	}

	if !s.state.TryTransition(StateRunning, StateIdle) {
		// A shutdown request landed between the idle check and here; the
		// requester is waiting on done.
		if s.state.Load() == StateTerminating {
			s.finalize()
			return nil
		}
	}
	s.logger.Debug().Log(`coopsched: driver idle`)
	return nil
}

// microtaskBudget caps a single high-priority drain pass. A microtask chain
// that perpetually reschedules itself would otherwise starve the loop head's
// cancellation and shutdown checks. Low-priority work is still deferred
// until the queue is actually empty: an exhausted budget re-enters phase 1,
// never phase 2.
const microtaskBudget = 1024

// drainMicrotasks pops and runs high-priority items until the queue is
// empty or the budget for this pass is spent. Returns whether any item ran.
func (s *Scheduler) drainMicrotasks() bool {
	ran := false
	for i := 0; i < microtaskBudget; i++ {
		fn, ok := s.popMicro()
		if !ok {
			break
		}
		s.execute(fn, true)
		ran = true
	}
	return ran
}

func (s *Scheduler) popMicro() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.micro.Length() == 0 {
		return nil, false
	}
	return s.micro.Remove().(Task), true
}

func (s *Scheduler) popMacro() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.macro.Length() == 0 {
		return nil, false
	}
	return s.macro.Remove().(Task), true
}

// idleCheck reports whether new work arrived since the last pop, and
// otherwise the delay until the next timer becomes eligible.
func (s *Scheduler) idleCheck() (busy bool, next time.Duration, hasTimer bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.micro.Length() > 0 || s.macro.Length() > 0 {
		return true, 0, false
	}
	if s.timers.Len() > 0 {
		next = s.timers[0].when.Sub(s.clock.Now())
		if next < 0 {
			next = 0
		}
		return false, next, true
	}
	return false, 0, false
}

// park blocks until new work arrives, the next timer is due, shutdown is
// requested, or ctx is canceled.
func (s *Scheduler) park(ctx context.Context, next time.Duration, hasTimer bool) {
	if !s.state.TryTransition(StateRunning, StateParked) {
		// Terminating; the loop head handles it.
		return
	}

	if s.metrics != nil {
		s.metrics.parks.Add(1)
	}

	// A nil channel blocks forever, which is exactly what an empty timer
	// registry wants.
	var timerC <-chan time.Time
	if hasTimer {
		timerC = s.clock.After(next)
	}

	select {
	case <-s.wake:
	case <-timerC:
	case <-ctx.Done():
	}

	s.state.TryTransition(StateParked, StateRunning)
}

// execute runs a single task to completion, recovering panics so the driver
// survives misbehaving work items.
func (s *Scheduler) execute(task Task, micro bool) {
	if s.metrics != nil {
		if micro {
			s.metrics.microtasksRun.Add(1)
		} else {
			s.metrics.tasksRun.Add(1)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err := PanicError{Value: r}
			if s.metrics != nil {
				s.metrics.panicsRecovered.Add(1)
			}
			s.logger.Err().
				Err(err).
				Bool(`microtask`, micro).
				Log(`coopsched: task panicked`)
			if s.onUnhandled != nil {
				s.onUnhandled(err)
			}
		}
	}()

	task()
}

// trackRejection records a future that rejected with no handlers attached.
// It is reported at the next idle checkpoint unless a handler attaches
// first.
func (s *Scheduler) trackRejection(id uint64, reason Result) {
	s.rejMu.Lock()
	s.unhandled[id] = reason
	s.rejMu.Unlock()
}

// markHandled clears a future from the unhandled set; its outcome is now
// consumed somewhere in a chain.
func (s *Scheduler) markHandled(id uint64) {
	s.rejMu.Lock()
	delete(s.unhandled, id)
	s.rejMu.Unlock()
}

// reportUnhandled reports every still-unhandled rejection through the
// failure callback, once each.
func (s *Scheduler) reportUnhandled() {
	s.rejMu.Lock()
	if len(s.unhandled) == 0 {
		s.rejMu.Unlock()
		return
	}
	reasons := make([]Result, 0, len(s.unhandled))
	for id, reason := range s.unhandled {
		reasons = append(reasons, reason)
		delete(s.unhandled, id)
	}
	s.rejMu.Unlock()

	for _, reason := range reasons {
		if s.metrics != nil {
			s.metrics.unhandledRejections.Add(1)
		}
		s.logger.Warning().
			Any(`reason`, reason).
			Log(`coopsched: unhandled rejection`)
		if s.onUnhandled != nil {
			s.onUnhandled(reason)
		}
	}
}

// requestTermination moves any non-terminal state to Terminating.
func (s *Scheduler) requestTermination() {
	for {
		st := s.state.Load()
		if st == StateTerminating || st == StateTerminated {
			return
		}
		if s.state.TryTransition(st, StateTerminating) {
			return
		}
	}
}

// finalize completes termination on the driver goroutine: unless Close was
// used, it drains all currently runnable work (not future timers) first.
func (s *Scheduler) finalize() {
	if !s.immediateStop.Load() {
		for {
			if fn, ok := s.popMicro(); ok {
				s.execute(fn, true)
				continue
			}
			if task, ok := s.popMacro(); ok {
				s.execute(task, false)
				continue
			}
			break
		}
	}
	s.reportUnhandled()
	s.state.Store(StateTerminated)
	s.stopOnce.Do(func() { close(s.done) })
	s.logger.Debug().Log(`coopsched: driver terminated`)
}

// Shutdown gracefully stops the scheduler: queued work is drained, then the
// scheduler terminates. Pending timers that are not yet eligible do not
// fire. Blocks until termination completes or ctx expires.
//
// Returns [ErrSchedulerTerminated] if already terminated.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	for {
		st := s.state.Load()
		switch st {
		case StateTerminated:
			return ErrSchedulerTerminated
		case StateTerminating:
			// Another caller already requested shutdown; wait with them.
		case StateIdle:
			if !s.state.TryTransition(StateIdle, StateTerminated) {
				continue
			}
			s.stopOnce.Do(func() { close(s.done) })
			return nil
		default:
			if !s.state.TryTransition(st, StateTerminating) {
				continue
			}
			s.wakeUp()
		}

		select {
		case <-s.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close immediately terminates the scheduler without draining queued work.
//
// Returns [ErrSchedulerTerminated] if already terminated.
func (s *Scheduler) Close() error {
	s.immediateStop.Store(true)
	for {
		st := s.state.Load()
		switch st {
		case StateTerminated:
			return ErrSchedulerTerminated
		case StateTerminating:
			return nil
		case StateIdle:
			if s.state.TryTransition(StateIdle, StateTerminated) {
				s.stopOnce.Do(func() { close(s.done) })
				return nil
			}
		default:
			if s.state.TryTransition(st, StateTerminating) {
				s.wakeUp()
				return nil
			}
		}
	}
}

// State returns the current driver state.
func (s *Scheduler) State() State {
	return s.state.Load()
}

// isDriverGoroutine checks whether the caller is the driver goroutine.
func (s *Scheduler) isDriverGoroutine() bool {
	id := s.loopGoroutineID.Load()
	return id != 0 && goroutineID() == id
}

// goroutineID returns the current goroutine's ID.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
