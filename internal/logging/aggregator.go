package logging

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type eventKey struct {
	component string
	event     string
}

type eventCount struct {
	n      int64
	fields []slog.Attr
}

// Aggregator counts repeated events (filter batches, retries, tag reloads)
// and logs one event_summary per event and interval instead of one line per
// occurrence.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	counts map[eventKey]*eventCount

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewAggregator flushes every intervalSecs seconds once started. With a nil
// logger events are counted and dropped.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		counts:   make(map[eventKey]*eventCount),
		stop:     make(chan struct{}),
	}
}

func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(a.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				a.flush()
			case <-a.stop:
				return
			}
		}
	}()
}

// Stop ends the flush loop and writes whatever is still pending.
func (a *Aggregator) Stop() {
	close(a.stop)
	a.wg.Wait()
	a.flush()
}

// Record counts one occurrence. The fields of the latest occurrence are the
// ones reported.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := eventKey{component: component, event: event}
	c := a.counts[k]
	if c == nil {
		c = &eventCount{}
		a.counts[k] = c
	}
	c.n++
	if len(fields) > 0 {
		c.fields = fields
	}
}

// Pending returns the count recorded for an event since the last flush.
func (a *Aggregator) Pending(component, event string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c := a.counts[eventKey{component: component, event: event}]; c != nil {
		return c.n
	}
	return 0
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	counts := a.counts
	a.counts = make(map[eventKey]*eventCount)
	a.mu.Unlock()

	if a.logger == nil || len(counts) == 0 {
		return
	}

	keys := make([]eventKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y eventKey) int {
		return cmp.Or(cmp.Compare(x.component, y.component), cmp.Compare(x.event, y.event))
	})

	for _, k := range keys {
		c := counts[k]
		args := []any{
			slog.String("component", k.component),
			slog.String("event", k.event),
			slog.Int64("count", c.n),
			slog.Int("window_seconds", int(a.interval.Seconds())),
		}
		for _, f := range c.fields {
			args = append(args, f)
		}
		a.logger.Info("event_summary", args...)
	}
}
