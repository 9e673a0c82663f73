package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/asheshgoplani/revlog/internal/filter"
	"github.com/asheshgoplani/revlog/internal/filterer"
	"github.com/asheshgoplani/revlog/internal/git"
	"github.com/asheshgoplani/revlog/internal/logitems"
	"github.com/asheshgoplani/revlog/internal/notify"
	"github.com/asheshgoplani/revlog/internal/revlog"
)

var (
	errInterrupted = errors.New("interrupted")
	errEmptyQuery  = errors.New("query has no terms")
)

// filterMatch is the JSON form of one matching commit.
type filterMatch struct {
	ID      string   `json:"id"`
	Time    string   `json:"time"`
	Author  string   `json:"author"`
	Message string   `json:"message"`
	Tags    []string `json:"tags,omitempty"`
}

// filterResult is the JSON form of a whole run.
type filterResult struct {
	Success bool          `json:"success"`
	Query   string        `json:"query"`
	Total   int           `json:"total"`
	Scanned int           `json:"scanned"`
	Matches []filterMatch `json:"matches"`
}

func handleFilter(args []string) int {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	dir := fs.String("C", ".", "Repository directory")
	limit := fs.Int("limit", 0, "Print at most this many matches (0 = all)")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	debug := fs.Bool("debug", false, "Write debug logs")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: revlog filter [options] <query>")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Print the commits matching query, newest first.")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Options:")
		fs.PrintDefaults()
	}
	parseFlags(fs, args)

	shutdown := setupLogging(*debug)
	defer shutdown()

	out := NewCLIOutput(os.Stdout, os.Stderr, *jsonOut)
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		out.Error("a query is required", ErrCodeBadQuery)
		return 2
	}

	repo, err := openRepo(*dir)
	if err != nil {
		out.Error(err.Error(), ErrCodeNotARepo)
		return 1
	}

	db := openHistory()
	var history revlog.History
	if db != nil {
		defer db.Close()
		history = db
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runFilter(ctx, out, repo, history, query, *limit, revlogOptions()); err != nil {
		var perr *filter.ParseError
		switch {
		case errors.As(err, &perr), errors.Is(err, errEmptyQuery):
			out.Error(err.Error(), ErrCodeBadQuery)
			return 2
		case errors.Is(err, errInterrupted):
			out.Error(err.Error(), ErrCodeInterrupted)
			return 130
		default:
			cliLog.Error("filter_failed", slog.String("error", err.Error()))
			out.Error(err.Error(), ErrCodeFailed)
			return 1
		}
	}
	return 0
}

// runFilter scans the whole log of repo for query and prints the matches.
func runFilter(ctx context.Context, out *CLIOutput, repo *git.Repository, history revlog.History, query string, limit int, opts revlog.Options) error {
	ch := notify.NewChannel()
	rl := revlog.New(repo, ch, history, opts)
	defer rl.Close()
	defer context.AfterFunc(ctx, ch.Close)()
	defer ch.Close()

	// Tags are loaded up front so matches can be printed with them.
	if err := rl.HandleNotification(notify.Tags); err != nil {
		return err
	}
	if err := rl.SetFilter(query); err != nil {
		return err
	}
	if !rl.IsFiltering() {
		return errEmptyQuery
	}

	for rl.FilterState() != filterer.Finished {
		if rl.FilterState() == filterer.Stopped {
			if ctx.Err() != nil {
				return errInterrupted
			}
			return errors.New("filter stopped")
		}
		kind, ok := ch.Recv()
		if !ok {
			return errInterrupted
		}
		if err := rl.HandleNotification(kind); err != nil {
			return err
		}
	}
	if err := rl.Err(); err != nil {
		return fmt.Errorf("walk log: %w", err)
	}
	if err := rl.Update(); err != nil {
		return err
	}

	total := rl.Total()
	n := total
	if limit > 0 {
		n = min(limit, total)
	}
	commits, err := rl.Matches(0, n)
	if err != nil {
		return err
	}

	result := filterResult{
		Success: true,
		Query:   rl.Query(),
		Total:   total,
		Scanned: rl.LogCount(),
		Matches: make([]filterMatch, 0, len(commits)),
	}
	var b strings.Builder
	for _, c := range commits {
		e := logitems.NewLogEntry(c)
		tags := rl.TagsFor(c.ID)
		result.Matches = append(result.Matches, filterMatch{
			ID:      c.ID.String(),
			Time:    e.Time,
			Author:  e.Author,
			Message: e.Msg,
			Tags:    tags.Names(),
		})
		fmt.Fprintf(&b, "%s  %s  %-16s  %s", e.HashShort, e.Time, e.Author, e.Msg)
		if len(tags) > 0 {
			fmt.Fprintf(&b, "  [%s]", tags)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d of %d commits match\n", total, result.Scanned)
	return out.Print(b.String(), result)
}
