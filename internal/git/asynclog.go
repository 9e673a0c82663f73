package git

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asheshgoplani/revlog/internal/logging"
	"github.com/asheshgoplani/revlog/internal/notify"
	"github.com/asheshgoplani/revlog/internal/workerpool"
)

var logLog = logging.ForComponent(logging.CompLog)

// walkChunk is how many ids the walk collects before publishing them.
const walkChunk = 3000

// FetchStatus is the outcome of AsyncLog.Fetch.
type FetchStatus int

const (
	// FetchPending means a walk is already running.
	FetchPending FetchStatus = iota
	// FetchNoChange means HEAD has not moved since the last walk.
	FetchNoChange
	// FetchStarted means a new walk was started and the id list reset.
	FetchStarted
)

func (s FetchStatus) String() string {
	switch s {
	case FetchPending:
		return "pending"
	case FetchNoChange:
		return "no_change"
	case FetchStarted:
		return "started"
	default:
		return "unknown"
	}
}

// AsyncLog discovers the ids of the commits reachable from HEAD in the
// background. Readers see the list grow in chunks.
type AsyncLog struct {
	repo *Repository
	sink notify.Sink
	pool *workerpool.Pool

	pending atomic.Bool

	mu      sync.Mutex
	ids     []CommitID
	head    CommitID
	started bool
	lastErr error
	cancel  context.CancelFunc
}

// NewAsyncLog returns an idle log; nothing is read until Fetch.
func NewAsyncLog(repo *Repository, sink notify.Sink, pool *workerpool.Pool) *AsyncLog {
	if sink == nil {
		sink = notify.Discard
	}
	if pool == nil {
		pool = workerpool.New(1)
	}
	return &AsyncLog{repo: repo, sink: sink, pool: pool}
}

// Fetch starts a walk unless one is running or HEAD is where the last walk
// started.
func (l *AsyncLog) Fetch() (FetchStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending.Load() {
		return FetchPending, nil
	}

	head, err := l.repo.Head()
	if err != nil {
		return FetchNoChange, err
	}
	if l.started && head == l.head {
		return FetchNoChange, nil
	}

	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.ids = nil
	l.head = head
	l.started = true
	l.lastErr = nil
	l.pending.Store(true)

	l.pool.Go(ctx, func(ctx context.Context) { l.walk(ctx, head) })
	return FetchStarted, nil
}

func (l *AsyncLog) walk(ctx context.Context, head CommitID) {
	start := time.Now()
	chunk := make([]CommitID, 0, walkChunk)

	flush := func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		if ctx.Err() != nil || l.head != head {
			return false
		}
		l.ids = append(l.ids, chunk...)
		chunk = chunk[:0]
		return true
	}

	err := l.repo.Walk(ctx, head, func(id CommitID) error {
		chunk = append(chunk, id)
		if len(chunk) < walkChunk {
			return nil
		}
		if !flush() {
			return ErrStopWalk
		}
		logging.Aggregate(logging.CompLog, "log_chunk")
		l.send()
		return nil
	})
	if ctx.Err() != nil {
		return
	}
	flush()

	l.mu.Lock()
	l.lastErr = err
	total := len(l.ids)
	l.mu.Unlock()
	l.pending.Store(false)

	if err != nil {
		logLog.Error("log_walk_failed",
			slog.String("head", head.Short()),
			slog.String("error", err.Error()))
	} else {
		logLog.Debug("log_walk_done",
			slog.String("head", head.Short()),
			slog.Int("commits", total),
			slog.Duration("elapsed", time.Since(start)))
	}
	l.send()
}

func (l *AsyncLog) send() {
	if err := l.sink.Send(notify.Log); err != nil {
		logLog.Debug("log_notify_failed", slog.String("error", err.Error()))
	}
}

// GetSlice returns up to count ids starting at offset; fewer, or none, past
// the end of what has been discovered so far. A failed walk leaves the ids it
// found readable; see Err.
func (l *AsyncLog) GetSlice(offset, count int) ([]CommitID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if offset < 0 || count <= 0 || offset >= len(l.ids) {
		return nil, nil
	}
	end := offset + min(count, len(l.ids)-offset)
	out := make([]CommitID, end-offset)
	copy(out, l.ids[offset:end])
	return out, nil
}

// IsPending reports whether a walk is still running.
func (l *AsyncLog) IsPending() bool {
	return l.pending.Load()
}

// Count is the number of ids discovered so far.
func (l *AsyncLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}

// Err is the error the last walk ended with, if any.
func (l *AsyncLog) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Close cancels a running walk.
func (l *AsyncLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.pending.Store(false)
}
