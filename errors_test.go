package coopsched

import (
	"errors"
	"testing"
)

func TestAggregateError_Unwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	agg := &AggregateError{Errors: []error{sentinel, &ValueError{Value: "x"}}}

	if !errors.Is(agg, sentinel) {
		t.Error("expected errors.Is to match an aggregated error")
	}
	var ve *ValueError
	if !errors.As(agg, &ve) || ve.Value != "x" {
		t.Errorf("expected errors.As to find the ValueError, got %v", ve)
	}
}

// Two aggregates only match through their contained errors, never by both
// merely being aggregates.
func TestAggregateError_NoIdentityMatching(t *testing.T) {
	a := &AggregateError{Errors: []error{errors.New("a")}}
	b := &AggregateError{Errors: []error{errors.New("b")}}

	if errors.Is(a, b) {
		t.Error("unrelated aggregates must not compare equal")
	}
	if !errors.Is(a, a) {
		t.Error("an aggregate must still match itself")
	}
}

func TestPanicError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	if !errors.Is(PanicError{Value: cause}, cause) {
		t.Error("expected an error panic value to unwrap as the cause")
	}
	if errors.Unwrap(PanicError{Value: "text"}) != nil {
		t.Error("a non-error panic value must not unwrap")
	}
}
