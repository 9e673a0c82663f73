package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/asheshgoplani/revlog/internal/statedb"
)

type historyEntry struct {
	Repo     string    `json:"repo"`
	Query    string    `json:"query"`
	UsedAt   time.Time `json:"used_at"`
	UseCount int       `json:"use_count"`
}

type historyParams struct {
	repo  string // "" means every repository
	limit int
	clear bool
}

func handleHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dir := fs.String("C", ".", "Repository directory")
	limit := fs.Int("n", 20, "Show at most this many entries (0 = all)")
	all := fs.Bool("all", false, "Include every repository")
	clearAll := fs.Bool("clear", false, "Forget the recorded filters")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: revlog history [options]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "List recently used filters, most recent first.")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Options:")
		fs.PrintDefaults()
	}
	parseFlags(fs, args)

	shutdown := setupLogging(false)
	defer shutdown()

	out := NewCLIOutput(os.Stdout, os.Stderr, *jsonOut)
	db := openHistory()
	if db == nil {
		out.Error("filter history is disabled or unavailable", ErrCodeNoHistory)
		return 1
	}
	defer db.Close()

	params := historyParams{limit: *limit, clear: *clearAll}
	if !*all {
		repo, err := openRepo(*dir)
		if err != nil {
			out.Error(err.Error(), ErrCodeNotARepo)
			return 1
		}
		params.repo = repo.Path()
	}

	if err := runHistory(out, db, params); err != nil {
		out.Error(err.Error(), ErrCodeFailed)
		return 1
	}
	return 0
}

func runHistory(out *CLIOutput, db *statedb.StateDB, p historyParams) error {
	if p.clear {
		if err := db.ClearFilterHistory(p.repo); err != nil {
			return err
		}
		return out.Print("Filter history cleared\n", map[string]any{
			"success": true,
			"repo":    p.repo,
		})
	}

	entries, err := db.RecentFilters(p.repo, p.limit)
	if err != nil {
		return err
	}

	list := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, historyEntry{
			Repo:     e.Repo,
			Query:    e.Query,
			UsedAt:   e.UsedAt,
			UseCount: e.UseCount,
		})
	}

	var b strings.Builder
	if len(list) == 0 {
		b.WriteString("No filters recorded\n")
	}
	for _, e := range list {
		fmt.Fprintf(&b, "%-40s  %-14s  %3dx", e.Query, humanize.Time(e.UsedAt), e.UseCount)
		if p.repo == "" {
			fmt.Fprintf(&b, "  %s", e.Repo)
		}
		b.WriteByte('\n')
	}
	return out.Print(b.String(), list)
}
