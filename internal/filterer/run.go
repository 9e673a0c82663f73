package filterer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/asheshgoplani/revlog/internal/filter"
	"github.com/asheshgoplani/revlog/internal/git"
	"github.com/asheshgoplani/revlog/internal/logging"
	"github.com/asheshgoplani/revlog/internal/notify"
)

// run is one generation of the scan. It only ever touches shared state
// through Filterer.publish and Filterer.finish.
type run struct {
	f       *Filterer
	gen     uint64
	matcher *filter.Matcher
	tags    git.Tags
}

func (r *run) loop(ctx context.Context) {
	f := r.f
	start := time.Now()
	cursor := 0

	for ctx.Err() == nil {
		// Sampled before reading: a walk that appends its last chunk and then
		// stops between the read and the check must not end the run early.
		pending := f.log.IsPending()
		ids, err := f.log.GetSlice(cursor, f.opts.SliceSize)
		if err != nil {
			r.retry(ctx, "get_slice", err)
			continue
		}

		commits, err := f.repo.Resolve(ids)
		if err != nil {
			r.retry(ctx, "resolve", err)
			continue
		}

		if len(commits) == 0 && !pending {
			if f.finish(r.gen) {
				filterLog.Debug("filter_finished",
					slog.Uint64("generation", r.gen),
					slog.Int("matches", f.Count()),
					slog.Int("scanned", cursor),
					slog.Duration("elapsed", time.Since(start)))
				r.notify()
			}
			return
		}

		matches := r.matcher.Filter(commits, r.tags)
		if !f.publish(r.gen, matches) {
			return
		}
		// Advance by what was actually read: a short slice of a log that is
		// still growing must be re-read from its end, not skipped.
		cursor += len(ids)
		if len(ids) > 0 {
			logging.Aggregate(logging.CompFilter, "filter_batch", slog.Int("cursor", cursor))
			if !r.notify() {
				return
			}
		}
		sleep(ctx, f.opts.PollInterval)
	}
}

// notify reports false when the receiving side is gone, which ends the run.
func (r *run) notify() bool {
	err := r.f.sink.Send(notify.Filter)
	if err == nil {
		return true
	}
	if errors.Is(err, notify.ErrClosed) {
		filterLog.Error("filter_notify_closed", slog.Uint64("generation", r.gen))
		r.f.abort(r.gen)
		return false
	}
	filterLog.Warn("filter_notify_failed",
		slog.Uint64("generation", r.gen),
		slog.String("error", err.Error()))
	return true
}

// retry backs off after a transient failure; the cursor is left unchanged.
func (r *run) retry(ctx context.Context, op string, err error) {
	logging.Aggregate(logging.CompFilter, "filter_retry_"+op, slog.String("error", err.Error()))
	filterLog.Debug("filter_retry",
		slog.String("op", op),
		slog.Uint64("generation", r.gen),
		slog.String("error", err.Error()))
	sleep(ctx, r.f.opts.RetryBackoff)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
