package counter

import (
	"sync"
	"time"
)

const minRingSize = 16

// Window counts events for a single series over a trailing span.
// Timestamps are kept oldest-first in a ring buffer and evicted from the
// front once they fall out of the span.
type Window struct {
	mu   sync.Mutex
	span time.Duration
	ring []time.Time
	head int
	size int
}

func NewWindow(span time.Duration) *Window {
	return &Window{span: span}
}

// Record appends one event at ts. A ts earlier than the newest stored event
// is clamped to it so the sequence stays ordered if the clock steps back.
func (w *Window) Record(ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 {
		if last := w.at(w.size - 1); ts.Before(last) {
			ts = last
		}
	}
	if w.size == len(w.ring) {
		w.evict(ts.Add(-w.span))
		if w.size == len(w.ring) {
			w.resize(max(2*len(w.ring), minRingSize))
		}
	}
	w.ring[(w.head+w.size)%len(w.ring)] = ts
	w.size++
}

// CountInWindow evicts every event older than now-span and returns how many
// remain. Events exactly at the boundary are kept.
func (w *Window) CountInWindow(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now.Add(-w.span))
	return w.size
}

// Len returns the number of stored events without evicting.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *Window) at(i int) time.Time {
	return w.ring[(w.head+i)%len(w.ring)]
}

// evict must be called with mu held.
func (w *Window) evict(cutoff time.Time) {
	for w.size > 0 && w.ring[w.head].Before(cutoff) {
		w.ring[w.head] = time.Time{}
		w.head = (w.head + 1) % len(w.ring)
		w.size--
	}
	if w.size == 0 {
		w.head = 0
	}
	if len(w.ring) > minRingSize && w.size < len(w.ring)/4 {
		w.resize(len(w.ring) / 2)
	}
}

func (w *Window) resize(n int) {
	ring := make([]time.Time, n)
	for i := 0; i < w.size; i++ {
		ring[i] = w.at(i)
	}
	w.ring = ring
	w.head = 0
}
