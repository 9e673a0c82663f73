// Package revlog drives one commit log view: it keeps the background log
// walk, the tag snapshot and the filter in step with the selection, and loads
// the window of entries the view shows.
//
// A Revlog is not safe for concurrent use. It is meant to be driven from a
// single event loop that also feeds it the notifications its background
// workers send.
package revlog

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/asheshgoplani/revlog/internal/filter"
	"github.com/asheshgoplani/revlog/internal/filterer"
	"github.com/asheshgoplani/revlog/internal/git"
	"github.com/asheshgoplani/revlog/internal/logging"
	"github.com/asheshgoplani/revlog/internal/logitems"
	"github.com/asheshgoplani/revlog/internal/notify"
	"github.com/asheshgoplani/revlog/internal/workerpool"
)

var cacheLog = logging.ForComponent(logging.CompCache)

// Defaults for Options fields left at zero.
const (
	DefaultWindowSize   = 1200
	DefaultTagRefresh   = 3 * time.Second
	DefaultMessageLimit = 200
)

// History stores applied filter queries.
type History interface {
	RecordFilter(repo, query string, maxEntries int) error
}

// Options tunes a Revlog.
type Options struct {
	// WindowSize is how many entries are loaded around the selection.
	WindowSize int
	// TagRefresh is the minimum time between background tag reloads.
	TagRefresh time.Duration
	// MessageLimit caps displayed messages, in grapheme clusters.
	MessageLimit int
	// Workers bounds concurrent filter runs (a superseded run may still be
	// winding down while the next one starts).
	Workers int
	// HistoryMax is how many queries History keeps per repository.
	HistoryMax int

	Filter filterer.Options
}

func (o Options) withDefaults() Options {
	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.TagRefresh <= 0 {
		o.TagRefresh = DefaultTagRefresh
	}
	if o.MessageLimit <= 0 {
		o.MessageLimit = DefaultMessageLimit
	}
	if o.Workers <= 0 {
		o.Workers = 2
	}
	return o
}

// Revlog is the state behind a commit log view.
type Revlog struct {
	repo    *git.Repository
	log     *git.AsyncLog
	tags    *git.AsyncTags
	filter  *filterer.Filterer
	pool    *workerpool.Pool
	history History
	opts    Options

	items     logitems.ItemBatch
	selection int
	total     int
	dirty     bool // window must be reloaded on the next Update

	query     string
	expr      filter.Expression
	filtering bool

	tagSnap git.Tags
	branch  string
}

// New wires a Revlog for repo. Background workers signal sink. history may be
// nil.
func New(repo *git.Repository, sink notify.Sink, history History, opts Options) *Revlog {
	opts = opts.withDefaults()
	log := git.NewAsyncLog(repo, sink, workerpool.New(1))
	tags := git.NewAsyncTags(repo, sink, workerpool.New(1))
	pool := workerpool.New(opts.Workers)
	cacheLog.Debug("revlog_open",
		slog.String("repo", repo.Path()),
		slog.Int("workers", pool.Size()),
		slog.Int("window", opts.WindowSize))

	return &Revlog{
		repo:    repo,
		log:     log,
		tags:    tags,
		filter:  filterer.New(log, repo, tags, sink, pool, opts.Filter),
		pool:    pool,
		history: history,
		opts:    opts,
		dirty:   true,
	}
}

// Update polls the log, reloads the visible window when needed and asks for
// a tag refresh.
func (r *Revlog) Update() error {
	status, err := r.log.Fetch()
	if err != nil {
		return fmt.Errorf("fetch log: %w", err)
	}
	logChanged := status == git.FetchStarted

	if logChanged {
		if r.filtering {
			// The scan was reading a list that has just been reset.
			if err := r.filter.Start(r.expr); err != nil {
				return err
			}
		}
		r.branch = ""
	}

	if r.filtering {
		r.total = r.filter.Count()
	} else {
		r.total = r.log.Count()
	}
	r.clampSelection()

	if r.dirty || logChanged || r.items.NeedsData(r.selection, r.maxIndex()) {
		if err := r.fetchCommits(); err != nil {
			return err
		}
	}

	r.tags.Request(r.opts.TagRefresh, false)

	if r.branch == "" {
		if name, err := r.repo.BranchName(); err == nil {
			r.branch = name
		}
	}
	return nil
}

// fetchCommits loads WindowSize entries centred on the selection, from the
// filter results when filtering.
func (r *Revlog) fetchCommits() error {
	wantMin := max(r.selection-r.opts.WindowSize/2, 0)

	var infos []git.CommitInfo
	if r.filtering {
		var err error
		infos, err = r.filter.Items(wantMin, r.opts.WindowSize, r.opts.MessageLimit)
		if err != nil {
			return fmt.Errorf("filter items: %w", err)
		}
	} else {
		ids, err := r.log.GetSlice(wantMin, r.opts.WindowSize)
		if err != nil {
			return fmt.Errorf("log slice: %w", err)
		}
		infos, err = r.repo.Resolve(ids)
		if err != nil {
			// Keep the old window; the next update retries.
			cacheLog.Warn("window_resolve_failed",
				slog.Int("offset", wantMin),
				slog.String("error", err.Error()))
			return nil
		}
		for i := range infos {
			infos[i].Message = filterer.TruncateGraphemes(infos[i].Message, r.opts.MessageLimit)
		}
	}

	r.items.SetItems(wantMin, infos)
	r.dirty = false
	logging.Aggregate(logging.CompCache, "window_fetch",
		slog.Int("offset", wantMin),
		slog.Int("len", len(infos)),
		slog.Bool("filtering", r.filtering))
	return nil
}

// SetFilter applies a query. An empty query returns to the full log. A query
// that does not parse leaves the current view untouched.
func (r *Revlog) SetFilter(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		r.filter.Stop()
		r.filtering = false
		r.query = ""
		r.expr = nil
		r.reset()
		return r.Update()
	}

	expr, err := filter.Parse(query)
	if err != nil {
		return err
	}
	if expr.IsEmpty() {
		return r.SetFilter("")
	}

	// The log must be walking before the scan starts, or an idle log reads
	// as an empty, finished one.
	if _, err := r.log.Fetch(); err != nil {
		return fmt.Errorf("fetch log: %w", err)
	}
	if err := r.filter.Start(expr); err != nil {
		return err
	}

	cacheLog.Debug("filter_applied",
		slog.String("query", query),
		slog.Uint64("generation", r.filter.Generation()))

	r.filtering = true
	r.query = query
	r.expr = expr
	r.reset()
	r.record(query)
	return r.Update()
}

func (r *Revlog) record(query string) {
	if r.history == nil {
		return
	}
	if err := r.history.RecordFilter(r.repo.Path(), query, r.opts.HistoryMax); err != nil {
		cacheLog.Warn("history_record_failed", slog.String("error", err.Error()))
	}
}

func (r *Revlog) reset() {
	r.items.Clear()
	r.selection = 0
	r.total = 0
	r.dirty = true
}

// HandleNotification reacts to a background signal.
func (r *Revlog) HandleNotification(kind notify.Kind) error {
	switch kind {
	case notify.Log, notify.Filter:
		return r.Update()
	case notify.Tags:
		tags, err := r.tags.Last()
		if err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		r.tagSnap = tags
		if r.filtering && r.expr.NeedsTags() {
			if err := r.filter.Start(r.expr); err != nil {
				return err
			}
			r.reset()
		}
		return r.Update()
	default:
		return nil
	}
}

func (r *Revlog) maxIndex() int {
	return max(r.total-1, 0)
}

func (r *Revlog) clampSelection() {
	r.selection = min(max(r.selection, 0), r.maxIndex())
}

// MoveSelection moves the selection by delta entries, clamped to the list.
// It reports whether the selection changed.
func (r *Revlog) MoveSelection(delta int) bool {
	return r.SetSelection(r.selection + delta)
}

// SetSelection selects the entry at absolute index idx, clamped to the list.
func (r *Revlog) SetSelection(idx int) bool {
	prev := r.selection
	r.selection = idx
	r.clampSelection()
	return r.selection != prev
}

// Selection is the absolute index of the selected entry.
func (r *Revlog) Selection() int { return r.selection }

// SelectedEntry returns the selected entry if it is loaded.
func (r *Revlog) SelectedEntry() (logitems.LogEntry, bool) {
	return r.items.Entry(r.selection)
}

// Items is the loaded window. Callers must not modify it.
func (r *Revlog) Items() *logitems.ItemBatch { return &r.items }

// Total is the number of entries in the list: log length, or matches so far
// when filtering.
func (r *Revlog) Total() int { return r.total }

// LogCount is the number of commits discovered so far.
func (r *Revlog) LogCount() int { return r.log.Count() }

func (r *Revlog) IsFiltering() bool { return r.filtering }

// Query is the active filter query, "" when not filtering.
func (r *Revlog) Query() string { return r.query }

func (r *Revlog) FilterState() filterer.State { return r.filter.State() }

// Matches returns a copy of filter results [start, start+n).
func (r *Revlog) Matches(start, n int) ([]git.CommitInfo, error) {
	if !r.filtering {
		return nil, errors.New("no filter active")
	}
	return r.filter.Items(start, n, -1)
}

// Branch is the checked out branch name, "" until known.
func (r *Revlog) Branch() string { return r.branch }

// TagsFor returns the tags of id from the latest snapshot.
func (r *Revlog) TagsFor(id git.CommitID) git.CommitTags {
	return r.tagSnap[id]
}

// IsPending reports whether any background work is still running.
func (r *Revlog) IsPending() bool {
	return r.log.IsPending() || r.tags.IsPending() || r.filter.IsPending()
}

// Err reports a failed log walk, if any.
func (r *Revlog) Err() error { return r.log.Err() }

// Close stops background work and waits for filter runs to exit.
func (r *Revlog) Close() {
	r.filter.Close()
	r.log.Close()
	r.pool.Wait()
}
