// Package filterer runs commit filter expressions over a growing commit log in
// the background.
//
// A Filterer owns one shared result buffer. Every Start bumps a generation
// counter; a run only writes to the buffer while its generation is current,
// and the check happens under the buffer lock, so matches from two runs can
// never interleave. All public methods return without waiting on scan
// progress.
package filterer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rivo/uniseg"

	"github.com/asheshgoplani/revlog/internal/filter"
	"github.com/asheshgoplani/revlog/internal/git"
	"github.com/asheshgoplani/revlog/internal/logging"
	"github.com/asheshgoplani/revlog/internal/notify"
	"github.com/asheshgoplani/revlog/internal/workerpool"
)

var filterLog = logging.ForComponent(logging.CompFilter)

// Defaults for Options fields left at zero.
const (
	DefaultSliceSize    = 1200
	DefaultPollInterval = 10 * time.Millisecond
	DefaultRetryBackoff = 500 * time.Millisecond
)

// ErrClosed is returned by Items after Close.
var ErrClosed = errors.New("filterer: closed")

// LogSource gives slice access to the ids of a log that may still be growing.
type LogSource interface {
	// GetSlice returns up to count ids starting at offset, fewer at the end of
	// the known log.
	GetSlice(offset, count int) ([]git.CommitID, error)
	// IsPending reports whether the log is still being discovered.
	IsPending() bool
}

// Resolver turns commit ids into records.
type Resolver interface {
	Resolve(ids []git.CommitID) ([]git.CommitInfo, error)
}

// TagSource yields the latest tag snapshot, or nil if tags were never loaded.
type TagSource interface {
	Last() (git.Tags, error)
}

// State is the lifecycle state of the current run.
type State int32

const (
	NotStarted State = iota
	Running
	Finished
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options tunes a Filterer.
type Options struct {
	SliceSize    int
	PollInterval time.Duration
	RetryBackoff time.Duration
	GroupMode    filter.GroupMode
}

func (o Options) withDefaults() Options {
	if o.SliceSize <= 0 {
		o.SliceSize = DefaultSliceSize
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	return o
}

// Filterer filters a commit log asynchronously. One Filterer belongs to one
// log view.
type Filterer struct {
	log  LogSource
	repo Resolver
	tags TagSource
	sink notify.Sink
	pool *workerpool.Pool
	opts Options

	generation atomic.Uint64
	state      atomic.Int32
	count      atomic.Int64
	closed     atomic.Bool

	mu    sync.Mutex // guards items
	items []git.CommitInfo

	// cancel belongs to the control loop; runMu only makes Close safe from
	// another goroutine.
	runMu  sync.Mutex
	cancel context.CancelFunc
}

// New creates a Filterer. A nil sink discards notifications; a nil pool gets
// a private single-slot pool.
func New(log LogSource, repo Resolver, tags TagSource, sink notify.Sink, pool *workerpool.Pool, opts Options) *Filterer {
	if sink == nil {
		sink = notify.Discard
	}
	if pool == nil {
		pool = workerpool.New(1)
	}
	return &Filterer{
		log:  log,
		repo: repo,
		tags: tags,
		sink: sink,
		pool: pool,
		opts: opts.withDefaults(),
	}
}

// Start supersedes any active run and schedules a new one for expr. If expr
// needs tags and the snapshot cannot be loaded, the error is returned and no
// run is scheduled.
func (f *Filterer) Start(expr filter.Expression) error {
	f.Stop()

	var tags git.Tags
	if expr.NeedsTags() && f.tags != nil {
		t, err := f.tags.Last()
		if err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		tags = t
	}

	gen := f.generation.Add(1)

	f.mu.Lock()
	f.items = nil
	f.count.Store(0)
	f.state.Store(int32(Running))
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	f.runMu.Lock()
	f.cancel = cancel
	f.runMu.Unlock()

	r := &run{
		f:       f,
		gen:     gen,
		matcher: filter.Compile(expr, f.opts.GroupMode),
		tags:    tags,
	}
	filterLog.Debug("filter_start",
		slog.Uint64("generation", gen),
		slog.String("expr", expr.String()),
		slog.Bool("tags", tags != nil))
	f.pool.Go(ctx, r.loop)
	return nil
}

// Stop asks the active run to end at its next checkpoint. A running filter
// reports Stopped immediately, even if its goroutine is still winding down.
func (f *Filterer) Stop() {
	f.runMu.Lock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.runMu.Unlock()
	f.state.CompareAndSwap(int32(Running), int32(Stopped))
}

// Close stops any run. Items fails afterwards.
func (f *Filterer) Close() {
	f.closed.Store(true)
	f.Stop()
}

// State returns the current lifecycle state.
func (f *Filterer) State() State {
	return State(f.state.Load())
}

// IsPending reports whether a run is active and unfinished.
func (f *Filterer) IsPending() bool {
	return f.State() == Running
}

// Count returns the number of matches so far. It never exceeds the buffer
// length and equals it once the run is Finished.
func (f *Filterer) Count() int {
	return int(f.count.Load())
}

// Generation identifies the most recent Start.
func (f *Filterer) Generation() uint64 {
	return f.generation.Load()
}

// Items returns a copy of matches [start, start+amount) clamped to the buffer,
// with messages cut to truncateLen grapheme clusters.
func (f *Filterer) Items(start, amount, truncateLen int) ([]git.CommitInfo, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	if start < 0 {
		start = 0
	}
	if amount < 0 {
		amount = 0
	}

	f.mu.Lock()
	n := len(f.items)
	lo := min(start, n)
	hi := lo + min(amount, n-lo)
	out := make([]git.CommitInfo, hi-lo)
	copy(out, f.items[lo:hi])
	f.mu.Unlock()

	for i := range out {
		out[i].Message = TruncateGraphemes(out[i].Message, truncateLen)
	}
	return out, nil
}

// TruncateGraphemes keeps at most limit user-perceived characters of s.
func TruncateGraphemes(s string, limit int) string {
	if limit < 0 {
		return s
	}
	g := uniseg.NewGraphemes(s)
	n := 0
	for g.Next() {
		if n == limit {
			from, _ := g.Positions()
			return s[:from]
		}
		n++
	}
	return s
}

// publish appends matches if gen is still current and running.
func (f *Filterer) publish(gen uint64, matches []git.CommitInfo) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation.Load() != gen || f.State() != Running {
		return false
	}
	f.items = append(f.items, matches...)
	f.count.Store(int64(len(f.items)))
	return true
}

// finish marks the run Finished if gen is still current and was not stopped.
func (f *Filterer) finish(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation.Load() != gen {
		return false
	}
	return f.state.CompareAndSwap(int32(Running), int32(Finished))
}

// abort marks a run that cannot continue as Stopped if gen is still current.
func (f *Filterer) abort(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation.Load() == gen {
		f.state.CompareAndSwap(int32(Running), int32(Stopped))
	}
}
