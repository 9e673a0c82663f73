package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/asheshgoplani/revlog/internal/config"
	"github.com/asheshgoplani/revlog/internal/filter"
	"github.com/asheshgoplani/revlog/internal/filterer"
	"github.com/asheshgoplani/revlog/internal/git"
	"github.com/asheshgoplani/revlog/internal/logging"
	"github.com/asheshgoplani/revlog/internal/notify"
	"github.com/asheshgoplani/revlog/internal/revlog"
	"github.com/asheshgoplani/revlog/internal/statedb"
)

var uiLog = logging.ForComponent(logging.CompUI)

// refreshInterval drives periodic polling: tag refresh requests and the
// window check when notifications were coalesced.
const refreshInterval = time.Second

type keyMap struct {
	Quit, Up, Down, PageUp, PageDown, Top, Bottom key.Binding
	Filter, History, Clear, Help                  key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Up:       key.NewBinding(key.WithKeys("up", "k")),
	Down:     key.NewBinding(key.WithKeys("down", "j")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+b")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+f", " ")),
	Top:      key.NewBinding(key.WithKeys("home", "g")),
	Bottom:   key.NewBinding(key.WithKeys("end", "G")),
	Filter:   key.NewBinding(key.WithKeys("/")),
	History:  key.NewBinding(key.WithKeys("ctrl+r")),
	Clear:    key.NewBinding(key.WithKeys("esc")),
	Help:     key.NewBinding(key.WithKeys("?")),
}

// Options wires a Model. Revlog and Notify are required; the rest may be nil.
type Options struct {
	Revlog   *revlog.Revlog
	Notify   *notify.Channel
	DB       *statedb.StateDB
	Refs     *git.Watcher
	Theme    *ThemeWatcher
	RepoPath string
	// InitialQuery is applied on start when not empty.
	InitialQuery string
	// HistoryLimit caps recalled queries. Zero uses the [history] config.
	HistoryLimit int
}

type (
	refreshMsg        struct{}
	refsChangedMsg    struct{}
	historyChangedMsg struct{}
	tickMsg           time.Time
	notifyMsg         struct{ kind notify.Kind }
	themeChangedMsg   struct{ theme Theme }
	historyLoadedMsg  struct {
		entries []statedb.FilterEntry
		err     error
	}
)

// Model is the bubbletea model of the commit log view.
type Model struct {
	rl       *revlog.Revlog
	ch       *notify.Channel
	db       *statedb.StateDB
	refs     *git.Watcher
	theme    *ThemeWatcher
	history  *HistoryWatcher
	repoPath string
	initial  string
	limit    int

	list     *List
	bar      *FilterBar
	picker   *HistoryPicker
	help     *HelpOverlay
	width    int
	height   int
	err      string
	quitting bool
}

// New builds the model. It starts the history watcher when a database is
// given; Close stops it.
func New(opts Options) *Model {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = config.GetHistorySettings().MaxEntries
	}
	m := &Model{
		rl:       opts.Revlog,
		ch:       opts.Notify,
		db:       opts.DB,
		refs:     opts.Refs,
		theme:    opts.Theme,
		repoPath: opts.RepoPath,
		initial:  strings.TrimSpace(opts.InitialQuery),
		limit:    limit,
		list:     NewList(),
		bar:      NewFilterBar(),
		picker:   NewHistoryPicker(),
		help:     NewHelpOverlay(),
	}
	if m.db != nil {
		m.history = NewHistoryWatcher(m.db, 0)
		m.history.Start()
	}
	return m
}

// Close releases the watchers the model started.
func (m *Model) Close() {
	if m.history != nil {
		m.history.Close()
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		func() tea.Msg { return refreshMsg{} },
		m.waitNotify(),
		m.tick(),
	}
	if m.refs != nil {
		cmds = append(cmds, m.waitRefs())
	}
	if m.history != nil {
		cmds = append(cmds, m.waitHistory(), m.loadHistory())
	}
	if m.theme != nil {
		cmds = append(cmds, m.waitTheme())
	}
	return tea.Batch(cmds...)
}

func (m *Model) waitNotify() tea.Cmd {
	return func() tea.Msg {
		kind, ok := m.ch.Recv()
		if !ok {
			return nil
		}
		return notifyMsg{kind: kind}
	}
}

func (m *Model) waitRefs() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-m.refs.Events(); !ok {
			return nil
		}
		return refsChangedMsg{}
	}
}

func (m *Model) waitHistory() tea.Cmd {
	return func() tea.Msg {
		<-m.history.ReloadChannel()
		return historyChangedMsg{}
	}
}

func (m *Model) waitTheme() tea.Cmd {
	return func() tea.Msg {
		theme, ok := <-m.theme.Changes()
		if !ok {
			return nil
		}
		return themeChangedMsg{theme: theme}
	}
}

func (m *Model) loadHistory() tea.Cmd {
	if m.db == nil {
		return nil
	}
	db, repo, limit := m.db, m.repoPath, m.limit
	return func() tea.Msg {
		entries, err := db.RecentFilters(repo, limit)
		return historyLoadedMsg{entries: entries, err: err}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) setError(err error) {
	if err == nil {
		m.err = ""
		return
	}
	m.err = err.Error()
	var pe *filter.ParseError
	if !errors.As(err, &pe) {
		uiLog.Warn("ui_error", slog.String("error", m.err))
	}
}

func (m *Model) update() {
	if err := m.rl.Update(); err != nil {
		m.setError(err)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, max(msg.Height-3, 1))
		m.bar.SetWidth(msg.Width)
		m.picker.SetWidth(min(msg.Width, 100))
		m.help.SetSize(msg.Width, m.list.Height())
		return m, nil

	case refreshMsg:
		m.update()
		if m.initial != "" {
			q := m.initial
			m.initial = ""
			return m, m.applyFilter(q)
		}
		return m, nil

	case notifyMsg:
		if err := m.rl.HandleNotification(msg.kind); err != nil {
			m.setError(err)
		}
		return m, m.waitNotify()

	case refsChangedMsg:
		m.update()
		return m, m.waitRefs()

	case tickMsg:
		m.update()
		return m, m.tick()

	case historyChangedMsg:
		return m, tea.Batch(m.loadHistory(), m.waitHistory())

	case historyLoadedMsg:
		if msg.err != nil {
			uiLog.Warn("history_load_failed", slog.String("error", msg.err.Error()))
			return m, nil
		}
		m.picker.SetEntries(msg.entries)
		return m, nil

	case themeChangedMsg:
		InitTheme(string(msg.theme))
		return m, m.waitTheme()

	case tea.KeyMsg:
		switch {
		case m.help.IsVisible():
			m.help.Update(msg)
			return m, nil
		case m.picker.IsVisible():
			return m.handleHistoryKey(msg)
		case m.bar.IsVisible():
			return m.handleFilterKey(msg)
		default:
			return m.handleMainKey(msg)
		}
	}
	return m, nil
}

func (m *Model) move(delta int) {
	if m.rl.MoveSelection(delta) {
		m.update()
	}
}

func (m *Model) handleMainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := max(m.list.Height()-1, 1)
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		m.move(-1)
	case key.Matches(msg, keys.Down):
		m.move(1)
	case key.Matches(msg, keys.PageUp):
		m.move(-page)
	case key.Matches(msg, keys.PageDown):
		m.move(page)
	case key.Matches(msg, keys.Top):
		if m.rl.SetSelection(0) {
			m.update()
		}
	case key.Matches(msg, keys.Bottom):
		if m.rl.SetSelection(m.rl.Total() - 1) {
			m.update()
		}
	case key.Matches(msg, keys.Help):
		m.help.Show()
	case key.Matches(msg, keys.Filter):
		return m, m.bar.Show(m.rl.Query())
	case key.Matches(msg, keys.History):
		if m.db == nil {
			m.err = "filter history is disabled"
			return m, nil
		}
		return m, tea.Batch(m.picker.Show(), m.loadHistory())
	case key.Matches(msg, keys.Clear):
		if m.rl.IsFiltering() {
			return m, m.applyFilter("")
		}
		m.err = ""
	}
	return m, nil
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		q := m.bar.Value()
		m.bar.Hide()
		return m, m.applyFilter(q)
	case tea.KeyEsc:
		m.bar.Hide()
		return m, nil
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	}
	return m, m.bar.Update(msg)
}

func (m *Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		q, ok := m.picker.Selected()
		m.picker.Hide()
		if !ok {
			return m, nil
		}
		return m, m.applyFilter(q)
	case tea.KeyEsc:
		m.picker.Hide()
		return m, nil
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	}
	return m, m.picker.Update(msg)
}

// applyFilter sets the query and refreshes the recalled history when the
// query was recorded.
func (m *Model) applyFilter(query string) tea.Cmd {
	query = strings.TrimSpace(query)
	if m.history != nil && query != "" {
		m.history.NotifySave()
	}
	if err := m.rl.SetFilter(query); err != nil {
		m.setError(err)
		return nil
	}
	m.err = ""
	if query == "" {
		return nil
	}
	return m.loadHistory()
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "loading…"
	}

	var body string
	switch {
	case m.help.IsVisible():
		body = ensureHeight(m.help.View(), m.list.Height())
	case m.picker.IsVisible():
		body = ensureHeight(m.picker.View(), m.list.Height())
	default:
		body = m.list.View(m.rl)
	}

	bottom := m.renderStatus()
	if m.bar.IsVisible() {
		bottom = m.bar.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		bottom,
		m.renderHelp(),
	)
}

func (m *Model) renderHeader() string {
	title := TitleStyle.Render("revlog")
	if b := m.rl.Branch(); b != "" {
		title += " " + InfoStyle.Render(b)
	}
	path := DimStyle.Render(m.repoPath)
	gap := max(m.width-lipgloss.Width(title)-lipgloss.Width(path)-2, 1)
	return HeaderStyle.Width(m.width).Render(title + strings.Repeat(" ", gap) + path)
}

func (m *Model) renderStatus() string {
	total := m.rl.Total()
	var left string
	if m.rl.IsFiltering() {
		left = fmt.Sprintf("filter %s  %d of %d commits match", FilterPromptStyle.Render(m.rl.Query()), total, m.rl.LogCount())
		switch m.rl.FilterState() {
		case filterer.Running:
			left += WarningStyle.Render("  scanning…")
		case filterer.Finished:
			left += SuccessStyle.Render("  done")
		}
	} else {
		left = fmt.Sprintf("%d commits", total)
		if m.rl.IsPending() {
			left += WarningStyle.Render("  loading…")
		}
	}

	if err := m.rl.Err(); err != nil {
		left += "  " + ErrorStyle.Render(err.Error())
	}
	if m.err != "" {
		left += "  " + ErrorStyle.Render(m.err)
	}

	pos := ""
	if total > 0 {
		pos = fmt.Sprintf("%d/%d", m.rl.Selection()+1, total)
	}
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(pos)-2, 1)
	return StatusBarStyle.Render(left + strings.Repeat(" ", gap) + pos)
}

func (m *Model) renderHelp() string {
	entries := []string{
		MenuKey("/", "filter"),
		MenuKey("ctrl+r", "history"),
		MenuKey("j/k", "move"),
		MenuKey("g/G", "top/bottom"),
	}
	if m.rl.IsFiltering() {
		entries = append(entries, MenuKey("esc", "clear"))
	}
	entries = append(entries, MenuKey("?", "help"), MenuKey("q", "quit"))
	line := strings.Join(entries, "  ")
	if lipgloss.Width(line) > m.width {
		line = MenuKey("/", "filter") + "  " + MenuKey("q", "quit")
	}
	return line
}
