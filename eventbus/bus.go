// Package eventbus holds the append-only event log plus a wildcard
// pattern subscription registry. Event names are free-form
// "<Type>.<verb>" strings or global keywords; patterns support the
// "*", "Prefix.*", and "*.suffix" wildcard forms.
package eventbus

import (
	"context"
	"strings"
	"sync"

	"eve.evalgo.org/common"
	"eve.evalgo.org/concurrency"
	"eve.evalgo.org/semantic/runtime"
)

// Handler is invoked for each event matching a registered pattern.
// Handler errors are logged by the bus but never abort emission or
// the other handlers; a failing handler's error is passed unchanged
// to onError.
type Handler func(ctx context.Context, e *runtime.Event) error

// ErrorLogger receives handler errors without aborting dispatch.
// Defaults to logging a warning through common's default logger if
// not supplied. A panicking handler is not recovered.
type ErrorLogger func(pattern string, e *runtime.Event, err error)

type subscription struct {
	pattern string
	handler Handler
	id      uint64
}

// Bus is an event log combined with a pattern-subscription bus.
type Bus struct {
	mu         sync.RWMutex
	log        []*runtime.Event
	subs       []*subscription
	nextSubID  uint64
	maxEvents  int // 0 = unbounded retention
	limiter    *concurrency.Limiter
	onError    ErrorLogger
}

// Option configures a Bus at construction.
type Option func(*Bus)

// WithRetention bounds the event log to the most recent maxEvents
// entries, evicting oldest-first on append. maxEvents <= 0 means
// unbounded, which is the default, making retention an explicit,
// integrator-chosen hook rather than a hardcoded policy.
func WithRetention(maxEvents int) Option {
	return func(b *Bus) { b.maxEvents = maxEvents }
}

// WithErrorLogger installs a callback for handler errors.
func WithErrorLogger(fn ErrorLogger) Option {
	return func(b *Bus) { b.onError = fn }
}

// WithLimiter installs the concurrency limiter handlers dispatch
// under. A nil limiter (the default) runs each handler directly;
// either way Emit calls matching handlers one after another on the
// emitting goroutine.
func WithLimiter(l *concurrency.Limiter) Option {
	return func(b *Bus) { b.limiter = l }
}

func New(opts ...Option) *Bus {
	logger := common.NewContextLogger(nil, map[string]any{"component": "eventbus"})
	b := &Bus{onError: func(pattern string, e *runtime.Event, err error) {
		logger.WithError(err).WithFields(map[string]any{"pattern": pattern, "event": e.EventName}).Warn("event handler failed")
	}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Emit appends e to the log, then dispatches it to every handler whose
// pattern matches. Dispatch runs under the bus's limiter (if
// any); handler errors are reported through onError and never abort
// emission or other handlers.
func (b *Bus) Emit(ctx context.Context, e *runtime.Event) {
	b.mu.Lock()
	b.log = append(b.log, e)
	if b.maxEvents > 0 && len(b.log) > b.maxEvents {
		b.log = b.log[len(b.log)-b.maxEvents:]
	}
	matching := make([]*subscription, 0)
	for _, s := range b.subs {
		if Matches(e.EventName, s.pattern) {
			matching = append(matching, s)
		}
	}
	b.mu.Unlock()

	for _, s := range matching {
		b.dispatch(ctx, s, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, s *subscription, e *runtime.Event) {
	run := func(ctx context.Context) error { return s.handler(ctx, e) }
	var err error
	if b.limiter != nil {
		err = b.limiter.Run(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		b.onError(s.pattern, e, err)
	}
}

// Unsubscribe removes exactly the handler-pattern binding created by
// On.
type Unsubscribe func()

// On registers handler for events matching pattern. The returned
// Unsubscribe removes only this specific binding.
func (b *Bus) On(pattern string, handler Handler) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSubID++
	id := b.nextSubID
	b.subs = append(b.subs, &subscription{pattern: pattern, handler: handler, id: id})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Matches implements the pattern-matching rules, in order:
// literal equality, the single wildcard "*", prefix "Prefix.*", suffix
// "*.suffix", else no match.
func Matches(event, pattern string) bool {
	switch {
	case event == pattern:
		return true
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ".*"):
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(event, prefix)
	case strings.HasPrefix(pattern, "*."):
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(event, suffix)
	default:
		return false
	}
}

// ListFilter restricts ListEvents.
type ListFilter struct {
	Event  string // pattern
	Actor  string
	Object string
	Since  *int64 // unix nano, optional
	Until  *int64
	Limit  int // most recent N
}

// ListEvents returns events matching the filter, in append order
// (oldest first), honoring Limit as "most recent N".
func (b *Bus) ListEvents(f ListFilter) []*runtime.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []*runtime.Event
	for _, e := range b.log {
		if f.Event != "" && !Matches(e.EventName, f.Event) {
			continue
		}
		if f.Actor != "" && e.Actor != f.Actor {
			continue
		}
		if f.Object != "" && e.Object != f.Object {
			continue
		}
		ts := e.Timestamp.UnixNano()
		if f.Since != nil && ts < *f.Since {
			continue
		}
		if f.Until != nil && ts > *f.Until {
			continue
		}
		matched = append(matched, e)
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[len(matched)-f.Limit:]
	}
	return matched
}

// ReplayFilter selects the history ReplayEvents re-invokes handler
// over.
type ReplayFilter struct {
	Event string
	Actor string
	Since *int64
}

// ReplayEvents re-invokes handler over the filtered history in
// timestamp order; each invocation goes through the limiter.
func (b *Bus) ReplayEvents(ctx context.Context, f ReplayFilter, handler Handler) error {
	events := b.ListEvents(ListFilter{Event: f.Event, Actor: f.Actor, Since: f.Since})
	for _, e := range events {
		run := func(ctx context.Context) error { return handler(ctx, e) }
		var err error
		if b.limiter != nil {
			err = b.limiter.Run(ctx, run)
		} else {
			err = run(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Len reports the current log length, for introspection endpoints.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.log)
}
