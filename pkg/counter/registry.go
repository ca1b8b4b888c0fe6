// Package counter tracks per-series event counts over a fixed trailing
// window. A Registry owns one Window per series name and creates it lazily
// on the first recorded event.
package counter

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrInvalidWindow is returned by NewRegistry for a non-positive window.
var ErrInvalidWindow = errors.New("counter: window duration must be positive")

type Option func(*Registry)

// WithClock overrides the clock used to timestamp and query events.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// Registry maps series names to their windows. The map lock only guards
// insertion of new names; once a window exists callers contend on that
// window's own lock.
type Registry struct {
	clock  clockwork.Clock
	window time.Duration

	mu     sync.RWMutex
	series map[string]*Window
}

func NewRegistry(window time.Duration, opts ...Option) (*Registry, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	r := &Registry{
		clock:  clockwork.NewRealClock(),
		window: window,
		series: make(map[string]*Window),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record notes one event for series, creating its window if needed.
func (r *Registry) Record(series string) {
	r.getOrCreate(series).Record(r.clock.Now())
}

// CountInWindow returns the number of events recorded for series within the
// trailing window. Unknown series report 0 and are not created.
func (r *Registry) CountInWindow(series string) int {
	now := r.clock.Now()
	w := r.lookup(series)
	if w == nil {
		return 0
	}
	return w.CountInWindow(now)
}

// Window returns the fixed window duration.
func (r *Registry) Window() time.Duration {
	return r.window
}

// Series returns the known series names in sorted order.
func (r *Registry) Series() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.series))
	for name := range r.series {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Snapshot returns the current count for every known series.
func (r *Registry) Snapshot() map[string]int {
	now := r.clock.Now()
	r.mu.RLock()
	windows := make(map[string]*Window, len(r.series))
	for name, w := range r.series {
		windows[name] = w
	}
	r.mu.RUnlock()

	out := make(map[string]int, len(windows))
	for name, w := range windows {
		out[name] = w.CountInWindow(now)
	}
	return out
}

func (r *Registry) lookup(series string) *Window {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.series[series]
}

func (r *Registry) getOrCreate(series string) *Window {
	if w := r.lookup(series); w != nil {
		return w
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.series[series]; ok {
		return w
	}
	w := NewWindow(r.window)
	r.series[series] = w
	return w
}
