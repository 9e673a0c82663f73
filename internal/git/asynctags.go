package git

import (
	"bytes"
	"context"
	"hash/fnv"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/revlog/internal/logging"
	"github.com/asheshgoplani/revlog/internal/notify"
	"github.com/asheshgoplani/revlog/internal/workerpool"
)

var tagsLog = logging.ForComponent(logging.CompTags)

type tagSnapshot struct {
	tags Tags
	sum  uint64
}

// AsyncTags keeps the latest tag snapshot of a repository, reloading it in the
// background on request.
type AsyncTags struct {
	repo *Repository
	sink notify.Sink
	pool *workerpool.Pool

	last    atomic.Pointer[tagSnapshot]
	pending atomic.Bool
	loads   singleflight.Group

	mu      sync.Mutex
	limiter *rate.Limiter
	lastErr error
}

// NewAsyncTags returns a loader with no snapshot yet.
func NewAsyncTags(repo *Repository, sink notify.Sink, pool *workerpool.Pool) *AsyncTags {
	if sink == nil {
		sink = notify.Discard
	}
	if pool == nil {
		pool = workerpool.New(1)
	}
	return &AsyncTags{repo: repo, sink: sink, pool: pool}
}

// Request schedules a reload unless one ran less than minInterval ago or is
// still running. force skips the interval check.
func (t *AsyncTags) Request(minInterval time.Duration, force bool) {
	if t.pending.Load() {
		return
	}

	t.mu.Lock()
	if t.limiter == nil {
		t.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	} else if t.limiter.Limit() != rate.Every(minInterval) {
		t.limiter.SetLimit(rate.Every(minInterval))
	}
	allowed := t.limiter.Allow()
	t.mu.Unlock()

	if !allowed && !force {
		return
	}
	if !t.pending.CompareAndSwap(false, true) {
		return
	}
	t.pool.Go(context.Background(), func(context.Context) {
		defer t.pending.Store(false)
		if changed, err := t.load(); err == nil && changed {
			if err := t.sink.Send(notify.Tags); err != nil {
				tagsLog.Debug("tags_notify_failed", slog.String("error", err.Error()))
			}
		}
	})
}

// load reads the tags once, sharing the result with concurrent callers. It
// reports whether the snapshot changed.
func (t *AsyncTags) load() (bool, error) {
	v, err, _ := t.loads.Do("tags", func() (any, error) {
		start := time.Now()
		tags, err := t.repo.LoadTags()

		t.mu.Lock()
		t.lastErr = err
		t.mu.Unlock()

		if err != nil {
			tagsLog.Warn("tags_load_failed", slog.String("error", err.Error()))
			return false, err
		}

		next := &tagSnapshot{tags: tags, sum: checksum(tags)}
		prev := t.last.Swap(next)
		changed := prev == nil || prev.sum != next.sum
		logging.Aggregate(logging.CompTags, "tags_reload",
			slog.Int("tagged_commits", len(tags)),
			slog.Duration("elapsed", time.Since(start)))
		return changed, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Last returns the latest snapshot. The first call before any background
// reload finished loads the tags synchronously.
func (t *AsyncTags) Last() (Tags, error) {
	if s := t.last.Load(); s != nil {
		return s.tags, nil
	}
	if _, err := t.load(); err != nil {
		return nil, err
	}
	return t.last.Load().tags, nil
}

// Err is the error of the most recent load, if it failed.
func (t *AsyncTags) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// IsPending reports whether a background reload is running.
func (t *AsyncTags) IsPending() bool {
	return t.pending.Load()
}

// checksum fingerprints a snapshot so unchanged reloads do not notify.
func checksum(tags Tags) uint64 {
	ids := make([]CommitID, 0, len(tags))
	for id := range tags {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b CommitID) int { return bytes.Compare(a[:], b[:]) })

	h := fnv.New64a()
	for _, id := range ids {
		_, _ = h.Write(id[:])
		for _, tag := range tags[id] {
			_, _ = h.Write([]byte(tag.Name))
			_, _ = h.Write([]byte{0})
		}
	}
	return h.Sum64()
}
