// Package metrics holds the process wide conversion counters. A Sink is created once at
// startup and handed to the orchestrator; nothing here is global.
package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Event describes one finished conversion
type Event struct {
	SourceType string
	Success    bool
	// ErrorCode is the taxonomy code of a failed conversion
	ErrorCode string
	Duration  time.Duration
	Attempts  int
}

// Sink receives conversion events. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// Snapshot is a point in time view of the counters
type Snapshot struct {
	Total               int64 `json:"total"`
	Succeeded           int64 `json:"succeeded"`
	Failed              int64 `json:"failed"`
	ConversionsLastHour int64 `json:"conversions_last_hour"`
}

// Counters keeps totals and a sliding one hour window of conversions
type Counters struct {
	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	window    *window
}

// NewCounters creates an empty set of counters
func NewCounters() *Counters {
	return &Counters{window: newWindow(time.Hour, time.Minute, time.Now)}
}

// Record implements Sink
func (c *Counters) Record(_ context.Context, ev Event) {
	c.total.Add(1)
	if ev.Success {
		c.succeeded.Add(1)
	} else {
		c.failed.Add(1)
	}
	c.window.add(1)
}

// Snapshot returns the current values
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Total:               c.total.Load(),
		Succeeded:           c.succeeded.Load(),
		Failed:              c.failed.Load(),
		ConversionsLastHour: c.window.sum(),
	}
}

// window counts events in fixed size buckets covering span
type window struct {
	mu      sync.Mutex
	buckets []int64
	stamps  []int64
	width   time.Duration
	now     func() time.Time
}

func newWindow(span, width time.Duration, now func() time.Time) *window {
	n := int(span / width)
	return &window{
		buckets: make([]int64, n),
		stamps:  make([]int64, n),
		width:   width,
		now:     now,
	}
}

func (w *window) add(n int64) {
	slot := w.now().UnixNano() / int64(w.width)
	idx := int(slot % int64(len(w.buckets)))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stamps[idx] != slot {
		w.stamps[idx] = slot
		w.buckets[idx] = 0
	}
	w.buckets[idx] += n
}

func (w *window) sum() int64 {
	current := w.now().UnixNano() / int64(w.width)
	oldest := current - int64(len(w.buckets)) + 1

	w.mu.Lock()
	defer w.mu.Unlock()
	var total int64
	for i, stamp := range w.stamps {
		if stamp >= oldest && stamp <= current {
			total += w.buckets[i]
		}
	}
	return total
}

// Multi fans events out to several sinks
type Multi []Sink

// Record implements Sink
func (m Multi) Record(ctx context.Context, ev Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Record(ctx, ev)
		}
	}
}

// Nop discards events
type Nop struct{}

// Record implements Sink
func (Nop) Record(context.Context, Event) {}
