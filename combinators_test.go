package coopsched

import (
	"errors"
	"testing"
	"time"
)

// ============================================================================
// All (wait-all)
// ============================================================================

func TestAll_EmptyInput(t *testing.T) {
	s := newTestScheduler(t)

	var got Result
	s.All(nil).Then(func(v Result) Result {
		got = v
		return nil
	}, nil)

	runUntilIdle(t, s)

	values, ok := got.([]Result)
	if !ok {
		t.Fatalf("expected []Result, got %T", got)
	}
	if len(values) != 0 {
		t.Errorf("expected empty slice, got %v", values)
	}
}

// Values are ordered by input position regardless of settlement order.
func TestAll_InputOrderNotSettlementOrder(t *testing.T) {
	s := newTestScheduler(t)

	f1, r1, _ := s.NewFuture()
	f2, r2, _ := s.NewFuture()
	f3, r3, _ := s.NewFuture()

	var got Result
	s.All([]*Future{f1, f2, f3}).Then(func(v Result) Result {
		got = v
		return nil
	}, nil)

	// Settle in reverse order.
	_ = r3(3)
	_ = r2(2)
	_ = r1(1)
	runUntilIdle(t, s)

	values, ok := got.([]Result)
	if !ok {
		t.Fatalf("expected []Result, got %T", got)
	}
	if len(values) != 3 || values[0] != 1 || values[1] != 2 || values[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", values)
	}
}

// The first rejection propagates without waiting for the remaining inputs.
func TestAll_RejectsWithoutWaiting(t *testing.T) {
	s := newTestScheduler(t)

	boom := errors.New("E")
	f1, _, reject1 := s.NewFuture()
	f2, _, _ := s.NewFuture() // never settles

	var got Result
	s.All([]*Future{f1, f2}).Catch(func(r Result) Result {
		got = r
		return nil
	})

	_ = reject1(boom)
	runUntilIdle(t, s)

	if got != boom {
		t.Errorf("expected rejection E without waiting for f2, got %v", got)
	}
}

// ============================================================================
// Race (race-first)
// ============================================================================

func TestRace_FirstSettlementWins(t *testing.T) {
	s := newTestScheduler(t)

	slow, resolveSlow, _ := s.NewFuture()
	fast, resolveFast, _ := s.NewFuture()

	var got Result
	s.Race([]*Future{slow, fast}).Then(func(v Result) Result {
		got = v
		return nil
	}, nil)

	// fast settles first by wall-clock time; slow later.
	_ = resolveFast("B")
	_ = resolveSlow("A")
	runUntilIdle(t, s)

	if got != "B" {
		t.Errorf("expected fast winner B, got %v", got)
	}
}

func TestRace_TimerBacked(t *testing.T) {
	s := newTestScheduler(t)

	slow, resolveSlow, _ := s.NewFuture()
	fast, resolveFast, _ := s.NewFuture()

	slowTimer, err := s.ScheduleTimer(50*time.Millisecond, func() { _ = resolveSlow("A") })
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ScheduleTimer(5*time.Millisecond, func() { _ = resolveFast("B") }); err != nil {
		t.Fatal(err)
	}

	var got Result
	s.Race([]*Future{slow, fast}).Then(func(v Result) Result {
		got = v
		// The loser's outcome is discarded; cancel its timer so the run
		// can go idle promptly.
		s.CancelTimer(slowTimer)
		return nil
	}, nil)

	runUntilIdle(t, s)

	if got != "B" {
		t.Errorf("expected B, got %v", got)
	}
}

func TestRace_RejectionCanWin(t *testing.T) {
	s := newTestScheduler(t)

	boom := errors.New("boom")
	a, _, rejectA := s.NewFuture()
	b, resolveB, _ := s.NewFuture()

	var got Result
	s.Race([]*Future{a, b}).Catch(func(r Result) Result {
		got = r
		return nil
	})

	_ = rejectA(boom)
	_ = resolveB("late")
	runUntilIdle(t, s)

	if got != boom {
		t.Errorf("expected winning rejection, got %v", got)
	}
}

func TestRace_EmptyInputRejects(t *testing.T) {
	s := newTestScheduler(t)

	var got Result
	s.Race(nil).Catch(func(r Result) Result {
		got = r
		return nil
	})

	runUntilIdle(t, s)

	err, ok := got.(error)
	if !ok || !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", got)
	}
}

// ============================================================================
// Any (first-success)
// ============================================================================

func TestAny_FirstSuccess(t *testing.T) {
	s := newTestScheduler(t)

	a, _, rejectA := s.NewFuture()
	b, resolveB, _ := s.NewFuture()

	var got Result
	s.Any([]*Future{a, b}).Then(func(v Result) Result {
		got = v
		return nil
	}, nil)

	_ = rejectA("a")
	_ = resolveB(5)
	runUntilIdle(t, s)

	if got != 5 {
		t.Errorf("expected 5, got %v", got)
	}
}

func TestAny_AllRejectedAggregates(t *testing.T) {
	s := newTestScheduler(t)

	a, _, rejectA := s.NewFuture()
	b, _, rejectB := s.NewFuture()

	var got Result
	s.Any([]*Future{a, b}).Catch(func(r Result) Result {
		got = r
		return nil
	})

	// Settle out of input order; the aggregate must still be input order.
	_ = rejectB("b")
	_ = rejectA("a")
	runUntilIdle(t, s)

	agg, ok := got.(*AggregateError)
	if !ok {
		t.Fatalf("expected *AggregateError, got %T", got)
	}
	if len(agg.Errors) != 2 {
		t.Fatalf("expected 2 aggregated errors, got %d", len(agg.Errors))
	}
	if agg.Errors[0].Error() != "a" || agg.Errors[1].Error() != "b" {
		t.Errorf("expected input order [a b], got [%v %v]", agg.Errors[0], agg.Errors[1])
	}
}

func TestAny_EmptyInputRejects(t *testing.T) {
	s := newTestScheduler(t)

	var got Result
	s.Any(nil).Catch(func(r Result) Result {
		got = r
		return nil
	})

	runUntilIdle(t, s)

	err, ok := got.(error)
	if !ok || !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", got)
	}
}

// ============================================================================
// AllSettled (settle-all)
// ============================================================================

func TestAllSettled_EmptyInput(t *testing.T) {
	s := newTestScheduler(t)

	var got Result
	s.AllSettled(nil).Then(func(v Result) Result {
		got = v
		return nil
	}, nil)

	runUntilIdle(t, s)

	records, ok := got.([]SettledResult)
	if !ok {
		t.Fatalf("expected []SettledResult, got %T", got)
	}
	if len(records) != 0 {
		t.Errorf("expected empty records, got %v", records)
	}
}

func TestAllSettled_MixedOutcomes(t *testing.T) {
	s := newTestScheduler(t)

	ok1, resolveOK, _ := s.NewFuture()
	bad, _, rejectBad := s.NewFuture()

	var got Result
	s.AllSettled([]*Future{ok1, bad}).Then(func(v Result) Result {
		got = v
		return nil
	}, nil)

	// Settlement order is reversed relative to input order.
	_ = rejectBad("X")
	_ = resolveOK(1)
	runUntilIdle(t, s)

	records, ok := got.([]SettledResult)
	if !ok {
		t.Fatalf("expected []SettledResult, got %T", got)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Status != Fulfilled || records[0].Value != 1 {
		t.Errorf("record 0: expected {Fulfilled 1}, got %+v", records[0])
	}
	if records[1].Status != Rejected || records[1].Reason != "X" {
		t.Errorf("record 1: expected {Rejected X}, got %+v", records[1])
	}
}

func TestAllSettled_NeverRejects(t *testing.T) {
	s := newTestScheduler(t)

	a, _, rejectA := s.NewFuture()
	b, _, rejectB := s.NewFuture()

	fulfilled := false
	s.AllSettled([]*Future{a, b}).Then(func(v Result) Result {
		fulfilled = true
		return nil
	}, func(r Result) Result {
		t.Errorf("AllSettled must never reject, got %v", r)
		return nil
	})

	_ = rejectA("a")
	_ = rejectB("b")
	runUntilIdle(t, s)

	if !fulfilled {
		t.Error("AllSettled never fulfilled")
	}
}
