package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/revlog/internal/filter"
	"github.com/asheshgoplani/revlog/internal/filterer"
	"github.com/asheshgoplani/revlog/internal/git"
	"github.com/asheshgoplani/revlog/internal/revlog"
	"github.com/asheshgoplani/revlog/internal/statedb"
)

// makeRepo commits n changes, alternating alice and bob, and tags the first
// one v1.0.
func makeRepo(t *testing.T, n int) *git.Repository {
	t.Helper()
	dir := t.TempDir()
	r, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := r.Worktree()
	require.NoError(t, err)

	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var first plumbing.Hash
	for i := range n {
		author := "alice"
		if i%2 == 1 {
			author = "bob"
		}
		name := fmt.Sprintf("file%02d", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
		sig := &object.Signature{Name: author, Email: author + "@example.com", When: when.Add(time.Duration(i) * time.Minute)}
		h, err := wt.Commit(fmt.Sprintf("change %d", i), &gogit.CommitOptions{Author: sig, Committer: sig})
		require.NoError(t, err)
		if i == 0 {
			first = h
		}
	}
	_, err = r.CreateTag("v1.0", first, nil)
	require.NoError(t, err)

	repo, err := git.Open(dir)
	require.NoError(t, err)
	return repo
}

func testOptions() revlog.Options {
	return revlog.Options{
		TagRefresh: time.Hour,
		Filter:     filterer.Options{PollInterval: time.Millisecond},
	}
}

func filterCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newHistoryDB(t *testing.T) *statedb.StateDB {
	t.Helper()
	db, err := statedb.Open(filepath.Join(t.TempDir(), statedb.FileName))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"flags first", []string{"-limit", "5", "fix"}, []string{"-limit", "5", "fix"}},
		{"flags after query", []string{"fix", "-limit", "5"}, []string{"-limit", "5", "fix"}},
		{"bool flag", []string{":a", "alice", "-json"}, []string{"-json", ":a", "alice"}},
		{"equals form", []string{"fix", "-limit=3"}, []string{"-limit=3", "fix"}},
		{"double dash", []string{"-json", "--", "-x"}, []string{"-json", "-x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.Int("limit", 0, "")
			fs.Bool("json", false, "")
			assert.Equal(t, tt.want, normalizeArgs(fs, tt.args))
		})
	}
}

func TestRunFilterText(t *testing.T) {
	repo := makeRepo(t, 6)
	var stdout, stderr bytes.Buffer
	out := NewCLIOutput(&stdout, &stderr, false)

	require.NoError(t, runFilter(filterCtx(t), out, repo, nil, ":a alice", 0, testOptions()))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "change 4")
	assert.Contains(t, lines[2], "change 0")
	assert.Contains(t, lines[2], "[v1.0]")
	assert.Equal(t, "3 of 6 commits match", lines[3])
	assert.Empty(t, stderr.String())
}

func TestRunFilterJSON(t *testing.T) {
	repo := makeRepo(t, 6)
	var stdout bytes.Buffer
	out := NewCLIOutput(&stdout, &stdout, true)

	require.NoError(t, runFilter(filterCtx(t), out, repo, nil, ":t v1", 0, testOptions()))

	var res filterResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, ":t v1", res.Query)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 6, res.Scanned)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "change 0", res.Matches[0].Message)
	assert.Equal(t, "alice", res.Matches[0].Author)
	assert.Equal(t, []string{"v1.0"}, res.Matches[0].Tags)
	assert.Len(t, res.Matches[0].ID, 40)
}

func TestRunFilterLimit(t *testing.T) {
	repo := makeRepo(t, 6)
	var stdout bytes.Buffer
	out := NewCLIOutput(&stdout, &stdout, true)

	require.NoError(t, runFilter(filterCtx(t), out, repo, nil, "change", 2, testOptions()))

	var res filterResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.Equal(t, 6, res.Total)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "change 5", res.Matches[0].Message)
	assert.Equal(t, "change 4", res.Matches[1].Message)
}

func TestRunFilterErrors(t *testing.T) {
	repo := makeRepo(t, 3)
	out := NewCLIOutput(&bytes.Buffer{}, &bytes.Buffer{}, false)

	err := runFilter(filterCtx(t), out, repo, nil, ":x foo", 0, testOptions())
	var perr *filter.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 'x', perr.Flag)

	err = runFilter(filterCtx(t), out, repo, nil, "&&", 0, testOptions())
	assert.ErrorIs(t, err, errEmptyQuery)
}

func TestRunFilterRecordsHistory(t *testing.T) {
	repo := makeRepo(t, 4)
	db := newHistoryDB(t)
	out := NewCLIOutput(&bytes.Buffer{}, &bytes.Buffer{}, false)

	require.NoError(t, runFilter(filterCtx(t), out, repo, db, ":a bob", 0, testOptions()))

	entries, err := db.RecentFilters(repo.Path(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ":a bob", entries[0].Query)
}

func TestRunHistory(t *testing.T) {
	db := newHistoryDB(t)
	require.NoError(t, db.RecordFilter("/src/one", "fix", 10))
	require.NoError(t, db.RecordFilter("/src/two", ":a alice", 10))
	require.NoError(t, db.RecordFilter("/src/one", "fix", 10))

	t.Run("one repo", func(t *testing.T) {
		var stdout bytes.Buffer
		require.NoError(t, runHistory(NewCLIOutput(&stdout, &stdout, false), db, historyParams{repo: "/src/one"}))
		assert.Contains(t, stdout.String(), "fix")
		assert.Contains(t, stdout.String(), "2x")
		assert.NotContains(t, stdout.String(), "alice")
	})

	t.Run("all repos as json", func(t *testing.T) {
		var stdout bytes.Buffer
		require.NoError(t, runHistory(NewCLIOutput(&stdout, &stdout, true), db, historyParams{}))
		var list []historyEntry
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &list))
		require.Len(t, list, 2)
		assert.Equal(t, "fix", list[0].Query)
		assert.Equal(t, "/src/one", list[0].Repo)
		assert.Equal(t, 2, list[0].UseCount)
	})

	t.Run("clear", func(t *testing.T) {
		var stdout bytes.Buffer
		require.NoError(t, runHistory(NewCLIOutput(&stdout, &stdout, false), db, historyParams{repo: "/src/two", clear: true}))
		assert.Equal(t, "Filter history cleared\n", stdout.String())

		stdout.Reset()
		require.NoError(t, runHistory(NewCLIOutput(&stdout, &stdout, false), db, historyParams{repo: "/src/two"}))
		assert.Equal(t, "No filters recorded\n", stdout.String())
	})
}

func TestCLIOutputError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	NewCLIOutput(&stdout, &stderr, false).Error("boom", ErrCodeFailed)
	assert.Equal(t, "Error: boom\n", stderr.String())
	assert.Empty(t, stdout.String())

	stdout.Reset()
	NewCLIOutput(&stdout, &stderr, true).Error("boom", ErrCodeBadQuery)
	var got map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, false, got["success"])
	assert.Equal(t, ErrCodeBadQuery, got["code"])
}

func TestOpenRepoNotARepo(t *testing.T) {
	_, err := openRepo(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errNotARepo))
}

func TestInitColorProfile(t *testing.T) {
	prev := lipgloss.ColorProfile()
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })

	tests := []struct {
		env  map[string]string
		want termenv.Profile
	}{
		{map[string]string{"REVLOG_COLOR": "none"}, termenv.Ascii},
		{map[string]string{"REVLOG_COLOR": "16"}, termenv.ANSI},
		{map[string]string{"REVLOG_COLOR": "", "COLORTERM": "truecolor"}, termenv.TrueColor},
		{map[string]string{"REVLOG_COLOR": "", "COLORTERM": "", "TERM": "xterm-256color"}, termenv.TrueColor},
		{map[string]string{"REVLOG_COLOR": "", "COLORTERM": "", "TERM": "vt100"}, termenv.ANSI256},
	}
	for _, tt := range tests {
		for k, v := range tt.env {
			t.Setenv(k, v)
		}
		initColorProfile()
		assert.Equal(t, tt.want, lipgloss.ColorProfile(), "env %v", tt.env)
	}
}
