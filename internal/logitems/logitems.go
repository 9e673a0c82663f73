// Package logitems holds the window of log entries a list view currently
// has loaded.
package logitems

import (
	"iter"

	"github.com/asheshgoplani/revlog/internal/git"
)

// ReloadThreshold is how close (in entries) the selection may get to either
// edge of the loaded window before more data is wanted.
const ReloadThreshold = 100

// TimeLayout is how entry times are rendered.
const TimeLayout = "2006-01-02 15:04"

// LogEntry is a commit prepared for display.
type LogEntry struct {
	Time      string
	Author    string
	Msg       string
	HashShort string
	ID        git.CommitID
}

// NewLogEntry renders c for display.
func NewLogEntry(c git.CommitInfo) LogEntry {
	return LogEntry{
		Time:      c.When().Format(TimeLayout),
		Author:    c.Author,
		Msg:       c.Message,
		HashShort: c.ID.Short(),
		ID:        c.ID,
	}
}

// ItemBatch is a contiguous run of entries starting at absolute log index
// Offset. The zero value is an empty batch at offset 0.
type ItemBatch struct {
	offset int
	items  []LogEntry
}

// Offset is the absolute index of the first loaded entry.
func (b *ItemBatch) Offset() int { return b.offset }

// Len is the number of loaded entries.
func (b *ItemBatch) Len() int { return len(b.items) }

// end is the exclusive absolute upper bound of the window.
func (b *ItemBatch) end() int { return b.offset + len(b.items) }

// SetItems replaces the window with commits starting at offset.
func (b *ItemBatch) SetItems(offset int, commits []git.CommitInfo) {
	b.items = b.items[:0]
	b.offset = max(offset, 0)
	b.Extend(commits)
}

// Extend appends commits to the end of the window.
func (b *ItemBatch) Extend(commits []git.CommitInfo) {
	for _, c := range commits {
		b.items = append(b.items, NewLogEntry(c))
	}
}

// Clear drops all entries. The offset is kept.
func (b *ItemBatch) Clear() {
	b.items = nil
}

// NeedsData reports whether the window no longer covers ReloadThreshold
// entries on each side of idx (capped at idxMax).
func (b *ItemBatch) NeedsData(idx, idxMax int) bool {
	wantMin := max(idx-ReloadThreshold, 0)
	wantMax := min(idx, idxMax-ReloadThreshold) + ReloadThreshold
	return wantMin < b.offset || wantMax >= b.end()
}

// Entry returns the entry at absolute log index idx.
func (b *ItemBatch) Entry(idx int) (LogEntry, bool) {
	i := idx - b.offset
	if i < 0 || i >= len(b.items) {
		return LogEntry{}, false
	}
	return b.items[i], true
}

// All yields entries with their absolute log index.
func (b *ItemBatch) All() iter.Seq2[int, LogEntry] {
	return func(yield func(int, LogEntry) bool) {
		for i, e := range b.items {
			if !yield(b.offset+i, e) {
				return
			}
		}
	}
}
