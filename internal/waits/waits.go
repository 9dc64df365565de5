// Package waits holds the synchronization primitives used by the page
// objects: a hub that records network responses and releases armed
// watches, DOM polling with a deadline, and the best-effort policy.
package waits

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTimeout is matched by every *TimeoutError.
var ErrTimeout = errors.New("waits: timeout")

// TimeoutError reports which condition was not met and for how long it was
// awaited. Last holds the most recent error from the condition, if any.
type TimeoutError struct {
	What  string
	After time.Duration
	Last  error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("waits: %s not satisfied within %s", e.What, e.After)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Last }

// Event is one network response as seen by the page.
type Event struct {
	URL    string
	Method string
	Status int
	At     time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s -> %d", e.Method, e.URL, e.Status)
}

// Matcher selects events.
type Matcher func(Event) bool

// URLContains matches events whose URL contains sub.
func URLContains(sub string) Matcher {
	return func(ev Event) bool { return strings.Contains(ev.URL, sub) }
}

// MethodIn matches events whose request method is one of methods.
func MethodIn(methods ...string) Matcher {
	upper := make([]string, len(methods))
	for i, m := range methods {
		upper[i] = strings.ToUpper(m)
	}
	return func(ev Event) bool { return slices.Contains(upper, strings.ToUpper(ev.Method)) }
}

// StatusBelow matches responses with a status lower than code.
func StatusBelow(code int) Matcher {
	return func(ev Event) bool { return ev.Status < code }
}

// ObservedAfter matches events recorded strictly after t.
func ObservedAfter(t time.Time) Matcher {
	return func(ev Event) bool { return ev.At.After(t) }
}

// All matches when every matcher does. No matchers match everything.
func All(ms ...Matcher) Matcher {
	return func(ev Event) bool {
		for _, m := range ms {
			if !m(ev) {
				return false
			}
		}
		return true
	}
}

const defaultHistory = 256

// Hub fans observed responses out to armed watches. It is safe for use from
// the Playwright event goroutine and the test goroutine at the same time.
type Hub struct {
	mu      sync.Mutex
	watches map[*Watch]struct{}
	history []Event
	limit   int
}

func NewHub() *Hub {
	return &Hub{
		watches: make(map[*Watch]struct{}),
		limit:   defaultHistory,
	}
}

// Observe records ev and releases every armed watch that matches it.
func (h *Hub) Observe(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append(h.history, ev)
	if len(h.history) > h.limit {
		h.history = h.history[len(h.history)-h.limit:]
	}
	for w := range h.watches {
		if w.match(ev) {
			w.ch <- ev
			delete(h.watches, w)
		}
	}
}

// Arm registers a watch. Only events observed after Arm release it, so arm
// before performing the gesture that causes the response.
func (h *Hub) Arm(m Matcher) *Watch {
	w := &Watch{hub: h, match: m, ch: make(chan Event, 1)}
	h.mu.Lock()
	h.watches[w] = struct{}{}
	h.mu.Unlock()
	return w
}

// Seen returns the most recent recorded event matching m.
func (h *Hub) Seen(m Matcher) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.history) - 1; i >= 0; i-- {
		if m(h.history[i]) {
			return h.history[i], true
		}
	}
	return Event{}, false
}

// Count returns how many recorded events match m.
func (h *Hub) Count(m Matcher) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ev := range h.history {
		if m(ev) {
			n++
		}
	}
	return n
}

// Reset drops the history. Armed watches stay armed.
func (h *Hub) Reset() {
	h.mu.Lock()
	h.history = nil
	h.mu.Unlock()
}

// Watch is a single pending response wait.
type Watch struct {
	hub   *Hub
	match Matcher
	ch    chan Event
}

// Wait blocks until the watch is released, timeout elapses or ctx is done.
// The watch is disarmed on return.
func (w *Watch) Wait(ctx context.Context, timeout time.Duration) (Event, error) {
	defer w.Cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-w.ch:
		return ev, nil
	case <-timer.C:
		return Event{}, &TimeoutError{What: "network response", After: timeout}
	case <-ctx.Done():
		return Event{}, fmt.Errorf("waits: network response: %w", ctx.Err())
	}
}

// Cancel disarms the watch. Calling it more than once is harmless.
func (w *Watch) Cancel() {
	w.hub.mu.Lock()
	delete(w.hub.watches, w)
	w.hub.mu.Unlock()
}

// DefaultInterval is the polling period used by Until when interval is zero.
const DefaultInterval = 50 * time.Millisecond

// Until polls cond until it reports true or timeout elapses. Errors from cond
// are treated as "not yet" and kept for the timeout report.
func Until(ctx context.Context, what string, timeout, interval time.Duration, cond func() (bool, error)) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	deadline := time.Now().Add(timeout)
	var last error
	for {
		ok, err := cond()
		if err == nil && ok {
			return nil
		}
		last = err
		if !time.Now().Before(deadline) {
			return &TimeoutError{What: what, After: timeout, Last: last}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waits: %s: %w", what, ctx.Err())
		case <-time.After(min(interval, time.Until(deadline))):
		}
	}
}

// BestEffort applies the lenient policy: a failed wait is logged at debug
// level and swallowed. It reports whether the wait succeeded.
func BestEffort(log logrus.FieldLogger, what string, err error) bool {
	if err == nil {
		return true
	}
	if log != nil {
		log.WithError(err).WithField("wait", what).Debug("best-effort wait gave up")
	}
	return false
}
