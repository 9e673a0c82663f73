package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/revlog/internal/git"
	"github.com/asheshgoplani/revlog/internal/logitems"
)

// Column widths of a commit row.
const (
	timeWidth   = len(logitems.TimeLayout)
	hashWidth   = 7
	authorWidth = 16
)

// logView is what the list needs from the log state.
type logView interface {
	Items() *logitems.ItemBatch
	Selection() int
	Total() int
	TagsFor(id git.CommitID) git.CommitTags
}

// List renders a scrolling window of commit rows. It only tracks which row is
// at the top; the selection lives in the log state.
type List struct {
	width  int
	height int
	top    int
}

// NewList creates an empty list.
func NewList() *List {
	return &List{}
}

// SetSize sets the list dimensions.
func (l *List) SetSize(width, height int) {
	l.width = width
	l.height = height
}

// Height is the number of visible rows.
func (l *List) Height() int { return l.height }

// Top is the absolute index of the first visible row.
func (l *List) Top() int { return l.top }

// scroll moves the top row just enough to keep sel visible.
func (l *List) scroll(sel, total int) {
	if l.height <= 0 {
		l.top = 0
		return
	}
	if sel < l.top {
		l.top = sel
	}
	if sel >= l.top+l.height {
		l.top = sel - l.height + 1
	}
	l.top = min(l.top, max(total-l.height, 0))
	l.top = max(l.top, 0)
}

// View renders the visible rows. Rows outside the loaded window show as
// placeholders until the next window fetch.
func (l *List) View(v logView) string {
	total := v.Total()
	sel := v.Selection()
	l.scroll(sel, total)

	if total == 0 {
		return ensureHeight(DimStyle.Render("  no commits"), l.height)
	}

	items := v.Items()
	var b strings.Builder
	end := min(l.top+l.height, total)
	for idx := l.top; idx < end; idx++ {
		if idx > l.top {
			b.WriteByte('\n')
		}
		e, ok := items.Entry(idx)
		if !ok {
			b.WriteString(DimStyle.Render("  …"))
			continue
		}
		b.WriteString(l.renderRow(e, v.TagsFor(e.ID), idx == sel))
	}
	return ensureHeight(b.String(), l.height)
}

func (l *List) renderRow(e logitems.LogEntry, tags git.CommitTags, selected bool) string {
	timeS, hashS, authorS, msgS, tagS := TimeStyle, HashStyle, AuthorStyle, MsgStyle, TagStyle
	prefix := "  "
	if selected {
		timeS, hashS, authorS, msgS, tagS = SelTimeStyle, SelHashStyle, SelAuthorStyle, SelMsgStyle, SelTagStyle
		prefix = "▶ "
	}
	sep := msgS.Render(" ")

	var b strings.Builder
	b.WriteString(msgS.Render(prefix))
	b.WriteString(timeS.Render(fitWidth(e.Time, timeWidth)))
	b.WriteString(sep)
	b.WriteString(hashS.Render(fitWidth(e.HashShort, hashWidth)))
	b.WriteString(sep)
	b.WriteString(authorS.Render(fitWidth(e.Author, authorWidth)))
	b.WriteString(sep)

	used := runewidth.StringWidth(prefix) + timeWidth + hashWidth + authorWidth + 3
	rest := max(l.width-used, 0)

	if len(tags) > 0 && rest > 0 {
		label := runewidth.Truncate("["+tags.String()+"]", rest, "…")
		b.WriteString(tagS.Render(label))
		rest -= runewidth.StringWidth(label)
		if rest > 0 {
			b.WriteString(sep)
			rest--
		}
	}
	if rest > 0 {
		b.WriteString(msgS.Render(fitWidth(e.Msg, rest)))
	}
	return b.String()
}

// fitWidth truncates or pads s to exactly w terminal cells.
func fitWidth(s string, w int) string {
	if w <= 0 {
		return ""
	}
	s = runewidth.Truncate(s, w, "…")
	return runewidth.FillRight(s, w)
}

// ensureHeight pads or cuts content to exactly n lines.
func ensureHeight(content string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
