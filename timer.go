package coopsched

import (
	"container/heap"
	"time"
)

// TimerID identifies a scheduled timer for cancellation.
type TimerID uint64

// timerEntry is a pending timer in the registry. It is owned by the timer
// heap until its eligible time arrives, then its task is transferred to the
// low-priority queue.
type timerEntry struct {
	when  time.Time
	task  Task
	seq   uint64
	id    TimerID
	index int // heap index, maintained by timerHeap
}

// timerHeap is a min-heap of timers ordered by eligible time, with insertion
// sequence as the tie-break so equal deadlines fire in scheduling order.
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// ScheduleTimer schedules a task to run after at least the specified delay.
// Negative delays are clamped to zero. The task is not run synchronously
// even for a zero delay; it is transferred to the low-priority queue once
// eligible, and runs only after all pending microtasks.
//
// Returns a [TimerID] that can be passed to [Scheduler.CancelTimer], or
// [ErrSchedulerTerminated] if the scheduler has been stopped. A nil task
// returns a zero ID without scheduling.
func (s *Scheduler) ScheduleTimer(delay time.Duration, task Task) (TimerID, error) {
	if task == nil {
		return 0, nil
	}
	if s.state.IsTerminal() {
		return 0, ErrSchedulerTerminated
	}
	if delay < 0 {
		delay = 0
	}

	id := TimerID(s.nextTimerID.Add(1))
	when := s.clock.Now().Add(delay)

	s.mu.Lock()
	s.timerSeq++
	e := &timerEntry{
		when: when,
		task: task,
		seq:  s.timerSeq,
		id:   id,
	}
	heap.Push(&s.timers, e)
	s.handles[id] = e
	s.mu.Unlock()

	// The new deadline may be earlier than whatever the driver is parked on.
	s.wakeUp()

	s.logger.Debug().
		Uint64(`timer_id`, uint64(id)).
		Dur(`delay`, delay).
		Log(`coopsched: timer scheduled`)

	return id, nil
}

// CancelTimer removes a pending timer from the registry. It returns true if
// the timer was canceled before firing, and false if the ID is unknown or
// the timer has already been transferred for execution. Canceling an
// already-fired timer is not an error.
func (s *Scheduler) CancelTimer(id TimerID) bool {
	s.mu.Lock()
	e, ok := s.handles[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.handles, id)
	heap.Remove(&s.timers, e.index)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.timersCanceled.Add(1)
	}
	s.logger.Debug().
		Uint64(`timer_id`, uint64(id)).
		Log(`coopsched: timer canceled`)

	return true
}

// transferEligibleTimers moves every timer whose eligible time has arrived
// into the low-priority queue, earliest first. Called by the driver only
// when the high-priority queue is empty.
func (s *Scheduler) transferEligibleTimers(now time.Time) {
	s.mu.Lock()
	n := 0
	for s.timers.Len() > 0 {
		e := s.timers[0]
		if e.when.After(now) {
			break
		}
		heap.Pop(&s.timers)
		delete(s.handles, e.id)
		s.macro.Add(e.task)
		n++
	}
	s.mu.Unlock()

	if n > 0 && s.metrics != nil {
		s.metrics.timersFired.Add(uint64(n))
	}
}
