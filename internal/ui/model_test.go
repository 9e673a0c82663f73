package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/revlog/internal/git"
	"github.com/asheshgoplani/revlog/internal/notify"
	"github.com/asheshgoplani/revlog/internal/revlog"
)

// makeRepo commits n files, alternating between alice and bob.
func makeRepo(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	r, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := r.Worktree()
	require.NoError(t, err)

	when := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	for i := range n {
		name := fmt.Sprintf("f%02d", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
		author := "alice"
		if i%2 == 1 {
			author = "bob"
		}
		when = when.Add(time.Minute)
		sig := &object.Signature{Name: author, Email: author + "@example.com", When: when}
		_, err = wt.Commit(fmt.Sprintf("change %d", i), &gogit.CommitOptions{Author: sig, Committer: sig})
		require.NoError(t, err)
	}
	return dir
}

func newTestModel(t *testing.T, commits int) *Model {
	t.Helper()
	dir := makeRepo(t, commits)
	repo, err := git.Open(dir)
	require.NoError(t, err)

	ch := notify.NewChannel()
	db := newTestDB(t)
	rl := revlog.New(repo, ch, db, revlog.Options{TagRefresh: time.Hour, HistoryMax: 10})
	m := New(Options{Revlog: rl, Notify: ch, DB: db, RepoPath: repo.Path(), HistoryLimit: 10})
	t.Cleanup(func() {
		m.Close()
		rl.Close()
		ch.Close()
	})

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 20})
	m.Update(refreshMsg{})
	settleModel(t, m)
	return m
}

func settleModel(t *testing.T, m *Model) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		m.Update(tickMsg(time.Now()))
		if !m.rl.IsPending() {
			m.Update(tickMsg(time.Now()))
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("background work did not settle")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func press(m *Model, s string) tea.Cmd {
	var msg tea.KeyMsg
	switch s {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+r":
		msg = tea.KeyMsg{Type: tea.KeyCtrlR}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

// run executes a command that is expected to return one message promptly and
// feeds it back into the model.
func run(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg, ok := cmd().(historyLoadedMsg); ok {
		m.Update(msg)
	}
}

func TestModelShowsLog(t *testing.T) {
	m := newTestModel(t, 6)

	view := m.View()
	assert.Contains(t, view, "revlog")
	assert.Contains(t, view, "master")
	assert.Contains(t, view, "6 commits")
	assert.Contains(t, view, "1/6")
	assert.Contains(t, view, "change 5")

	press(m, "j")
	press(m, "j")
	assert.Equal(t, 2, m.rl.Selection())
	press(m, "G")
	assert.Equal(t, 5, m.rl.Selection())
	press(m, "g")
	assert.Equal(t, 0, m.rl.Selection())
}

func TestModelFilterAndHistory(t *testing.T) {
	m := newTestModel(t, 6)

	press(m, "/")
	require.True(t, m.bar.IsVisible())
	press(m, ":a alice")
	run(m, press(m, "enter"))
	assert.False(t, m.bar.IsVisible())
	settleModel(t, m)

	require.True(t, m.rl.IsFiltering())
	assert.Equal(t, 3, m.rl.Total())
	view := m.View()
	assert.Contains(t, view, "3 of 6 commits match")
	assert.NotContains(t, view, "bob")

	// The applied query was recorded and can be recalled.
	run(m, press(m, "ctrl+r"))
	require.True(t, m.picker.IsVisible())
	assert.Equal(t, []string{":a alice"}, queries(m.picker.Results()))
	press(m, "esc")
	assert.False(t, m.picker.IsVisible())

	press(m, "esc")
	assert.False(t, m.rl.IsFiltering())
	settleModel(t, m)
	assert.Equal(t, 6, m.rl.Total())

	run(m, press(m, "ctrl+r"))
	run(m, press(m, "enter"))
	settleModel(t, m)
	assert.True(t, m.rl.IsFiltering())
	assert.Equal(t, ":a alice", m.rl.Query())
}

func TestModelParseErrorKeepsView(t *testing.T) {
	m := newTestModel(t, 4)

	press(m, "/")
	press(m, ":q nope")
	press(m, "enter")

	assert.False(t, m.rl.IsFiltering())
	assert.Contains(t, m.err, "unknown filter flag")
	assert.Contains(t, m.View(), "4 commits")

	press(m, "esc")
	assert.Empty(t, m.err)
}

func TestModelInitialQuery(t *testing.T) {
	dir := makeRepo(t, 4)
	repo, err := git.Open(dir)
	require.NoError(t, err)
	ch := notify.NewChannel()
	rl := revlog.New(repo, ch, nil, revlog.Options{TagRefresh: time.Hour})
	m := New(Options{Revlog: rl, Notify: ch, RepoPath: dir, InitialQuery: ":a bob"})
	t.Cleanup(func() {
		m.Close()
		rl.Close()
		ch.Close()
	})

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 10})
	m.Update(refreshMsg{})
	settleModel(t, m)

	assert.True(t, m.rl.IsFiltering())
	assert.Equal(t, 2, m.rl.Total())

	// Without a database the history overlay stays closed.
	press(m, "ctrl+r")
	assert.False(t, m.picker.IsVisible())
	assert.Contains(t, m.err, "disabled")
}

func TestModelHelpOverlay(t *testing.T) {
	m := newTestModel(t, 4)

	press(m, "?")
	require.True(t, m.help.IsVisible())
	view := m.View()
	assert.Contains(t, view, "KEYBOARD SHORTCUTS")
	assert.Contains(t, view, "j/k scroll")

	// Keys go to the overlay while it is open.
	press(m, "j")
	assert.Equal(t, 0, m.rl.Selection())
	assert.Equal(t, 1, m.help.scrollOffset)

	press(m, "x")
	assert.False(t, m.help.IsVisible())
	assert.Contains(t, m.View(), "change 3")
}

func TestModelQuit(t *testing.T) {
	m := newTestModel(t, 1)
	cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.Empty(t, m.View())
}
