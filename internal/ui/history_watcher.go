package ui

import (
	"log/slog"
	"sync"
	"time"

	"github.com/asheshgoplani/revlog/internal/logging"
	"github.com/asheshgoplani/revlog/internal/statedb"
)

var storageLog = logging.ForComponent(logging.CompStorage)

// DefaultHistoryPoll is how often the history watcher checks the database.
const DefaultHistoryPoll = 2 * time.Second

// HistoryWatcher notices filter history written by other revlog processes by
// polling the metadata last_modified stamp of the state database.
type HistoryWatcher struct {
	db       *statedb.StateDB
	interval time.Duration
	// ignore must exceed interval so the first poll after our own write
	// always falls inside it.
	ignore time.Duration

	reloadCh  chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once

	mu           sync.Mutex
	lastModified int64
	lastSave     time.Time
}

// NewHistoryWatcher returns nil for a nil db. interval <= 0 uses
// DefaultHistoryPoll.
func NewHistoryWatcher(db *statedb.StateDB, interval time.Duration) *HistoryWatcher {
	if db == nil {
		return nil
	}
	if interval <= 0 {
		interval = DefaultHistoryPoll
	}
	lastMod, _ := db.LastModified()
	return &HistoryWatcher{
		db:           db,
		interval:     interval,
		ignore:       interval + interval/2,
		lastModified: lastMod,
		reloadCh:     make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
	}
}

// Start begins polling in the background.
func (w *HistoryWatcher) Start() {
	go w.pollLoop()
}

func (w *HistoryWatcher) pollLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.closeCh:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *HistoryWatcher) check() {
	ts, err := w.db.LastModified()
	if err != nil {
		storageLog.Debug("history_poll_failed", slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	changed := ts > w.lastModified
	if changed {
		w.lastModified = ts
	}
	own := time.Since(w.lastSave) < w.ignore
	w.mu.Unlock()

	if !changed {
		return
	}
	if own {
		storageLog.Debug("history_ignoring_own_write")
		return
	}

	storageLog.Debug("history_changed", slog.Int64("timestamp", ts))
	select {
	case w.reloadCh <- struct{}{}:
	default:
	}
}

// ReloadChannel signals that the history changed elsewhere.
func (w *HistoryWatcher) ReloadChannel() <-chan struct{} {
	return w.reloadCh
}

// NotifySave marks an upcoming write of our own so it is not reported.
func (w *HistoryWatcher) NotifySave() {
	w.mu.Lock()
	w.lastSave = time.Now()
	w.mu.Unlock()
}

// Close stops polling. Safe to call more than once.
func (w *HistoryWatcher) Close() {
	w.closeOnce.Do(func() {
		close(w.closeCh)
	})
}
