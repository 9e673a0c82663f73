package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"

	"github.com/asheshgoplani/revlog/internal/statedb"
)

// historyRows is how many matches the picker shows at once.
const historyRows = 10

type historySource []statedb.FilterEntry

func (s historySource) String(i int) string { return s[i].Query }
func (s historySource) Len() int            { return len(s) }

// HistoryPicker is the ctrl+r overlay that recalls earlier filter queries.
type HistoryPicker struct {
	input   textinput.Model
	entries []statedb.FilterEntry
	results []statedb.FilterEntry
	cursor  int
	width   int
	visible bool
}

// NewHistoryPicker creates a hidden picker.
func NewHistoryPicker() *HistoryPicker {
	ti := textinput.New()
	ti.Prompt = "history: "
	ti.Placeholder = "type to search"
	ti.CharLimit = 256
	return &HistoryPicker{input: ti}
}

// SetEntries replaces the recalled queries, most recent first.
func (h *HistoryPicker) SetEntries(entries []statedb.FilterEntry) {
	h.entries = entries
	h.refresh()
}

// Show opens the picker with an empty search.
func (h *HistoryPicker) Show() tea.Cmd {
	h.visible = true
	h.input.SetValue("")
	h.refresh()
	return h.input.Focus()
}

// Hide closes the picker.
func (h *HistoryPicker) Hide() {
	h.visible = false
	h.input.Blur()
}

func (h *HistoryPicker) IsVisible() bool { return h.visible }

// SetWidth sets the overlay width.
func (h *HistoryPicker) SetWidth(w int) {
	h.width = w
	h.input.Width = max(w-16, 10)
}

// Results are the entries matching the current search, best first.
func (h *HistoryPicker) Results() []statedb.FilterEntry { return h.results }

// Selected returns the highlighted query.
func (h *HistoryPicker) Selected() (string, bool) {
	if h.cursor < 0 || h.cursor >= len(h.results) {
		return "", false
	}
	return h.results[h.cursor].Query, true
}

func (h *HistoryPicker) refresh() {
	search := strings.TrimSpace(h.input.Value())
	if search == "" {
		h.results = h.entries
	} else {
		matches := fuzzy.FindFrom(search, historySource(h.entries))
		h.results = make([]statedb.FilterEntry, len(matches))
		for i, m := range matches {
			h.results[i] = h.entries[m.Index]
		}
	}
	h.cursor = min(h.cursor, max(len(h.results)-1, 0))
}

// Update handles navigation and forwards the rest to the search input.
func (h *HistoryPicker) Update(msg tea.Msg) tea.Cmd {
	if !h.visible {
		return nil
	}
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "up", "ctrl+p", "ctrl+r":
			if h.cursor > 0 {
				h.cursor--
			}
			return nil
		case "down", "ctrl+n":
			if h.cursor < len(h.results)-1 {
				h.cursor++
			}
			return nil
		}
	}

	prev := h.input.Value()
	var cmd tea.Cmd
	h.input, cmd = h.input.Update(msg)
	if h.input.Value() != prev {
		h.cursor = 0
		h.refresh()
	}
	return cmd
}

// View renders the overlay.
func (h *HistoryPicker) View() string {
	if !h.visible {
		return ""
	}
	var b strings.Builder
	b.WriteString(h.input.View())
	b.WriteByte('\n')

	if len(h.results) == 0 {
		b.WriteString(DimStyle.Render("  no matching filters"))
	}
	start := max(h.cursor-historyRows+1, 0)
	end := min(start+historyRows, len(h.results))
	inner := max(h.width-6, 20)
	for i := start; i < end; i++ {
		e := h.results[i]
		when := humanize.Time(e.UsedAt)
		q := fitWidth(e.Query, max(inner-len(when)-1, 1))
		line := q + " " + DimStyle.Render(when)
		style := ResultStyle
		if i == h.cursor {
			line = q + " " + when
			style = ResultSelStyle
		}
		if i > start {
			b.WriteByte('\n')
		}
		b.WriteString(style.Render(line))
	}
	return OverlayStyle.Width(max(h.width-2, 24)).Render(b.String())
}
