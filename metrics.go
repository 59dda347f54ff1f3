package coopsched

import (
	"sync/atomic"
)

// metrics holds the scheduler's runtime counters. Allocated only when
// WithMetrics(true) is set; all hot-path call sites guard on the nil
// pointer.
type metrics struct {
	tasksRun            atomic.Uint64
	microtasksRun       atomic.Uint64
	timersFired         atomic.Uint64
	timersCanceled      atomic.Uint64
	panicsRecovered     atomic.Uint64
	unhandledRejections atomic.Uint64
	parks               atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of the scheduler's counters.
type MetricsSnapshot struct {
	// TasksRun is the number of low-priority (macrotask) items executed.
	TasksRun uint64
	// MicrotasksRun is the number of high-priority items executed.
	MicrotasksRun uint64
	// TimersFired is the number of timer entries transferred for execution.
	TimersFired uint64
	// TimersCanceled is the number of timers canceled before firing.
	TimersCanceled uint64
	// PanicsRecovered is the number of task panics recovered by the driver.
	PanicsRecovered uint64
	// UnhandledRejections is the number of rejections reported through the
	// unhandled-failure callback.
	UnhandledRejections uint64
	// Parks is the number of times the driver parked waiting for work.
	Parks uint64
}

// Metrics returns a snapshot of the scheduler's runtime counters. The zero
// snapshot is returned when metrics were not enabled via [WithMetrics].
func (s *Scheduler) Metrics() MetricsSnapshot {
	if s.metrics == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		TasksRun:            s.metrics.tasksRun.Load(),
		MicrotasksRun:       s.metrics.microtasksRun.Load(),
		TimersFired:         s.metrics.timersFired.Load(),
		TimersCanceled:      s.metrics.timersCanceled.Load(),
		PanicsRecovered:     s.metrics.panicsRecovered.Load(),
		UnhandledRejections: s.metrics.unhandledRejections.Load(),
		Parks:               s.metrics.parks.Load(),
	}
}
