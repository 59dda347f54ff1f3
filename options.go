// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coopsched

import (
	"github.com/joeycumines/logiface"
)

// schedOptions holds configuration for Scheduler creation.
type schedOptions struct {
	clock          Clock
	logger         *logiface.Logger[logiface.Event]
	onUnhandled    FailureHandler
	metricsEnabled bool
}

// Option configures a Scheduler instance.
type Option interface {
	applySched(*schedOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applySchedFunc func(*schedOptions) error
}

func (o *optionImpl) applySched(opts *schedOptions) error {
	return o.applySchedFunc(opts)
}

// WithClock sets the monotonic clock consumed by the timer registry and the
// driver's park logic. The default is the system clock. Useful for
// deterministic tests with a manually advanced clock.
func WithClock(clock Clock) Option {
	return &optionImpl{func(opts *schedOptions) error {
		if clock != nil {
			opts.clock = clock
		}
		return nil
	}}
}

// WithLogger attaches a structured logger to the scheduler. A nil logger
// (the default) disables logging entirely.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithUnhandledFailure configures the host callback for failures that
// escape every future chain: recovered task panics (as [PanicError]) and
// rejected futures that never gained a rejection handler (reported once,
// when the driver next idles).
func WithUnhandledFailure(handler FailureHandler) Option {
	return &optionImpl{func(opts *schedOptions) error {
		opts.onUnhandled = handler
		return nil
	}}
}

// WithMetrics enables runtime counters on the scheduler, accessible via
// [Scheduler.Metrics]. Disabled by default; the hot path carries only a nil
// check when off.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *schedOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to schedOptions.
func resolveOptions(opts []Option) (*schedOptions, error) {
	cfg := &schedOptions{
		clock: systemClock{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applySched(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
