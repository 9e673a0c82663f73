package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/asheshgoplani/revlog/internal/config"
	"github.com/asheshgoplani/revlog/internal/git"
	"github.com/asheshgoplani/revlog/internal/notify"
	"github.com/asheshgoplani/revlog/internal/revlog"
	"github.com/asheshgoplani/revlog/internal/statedb"
	"github.com/asheshgoplani/revlog/internal/ui"
)

func handleTUI(args []string) int {
	fs := flag.NewFlagSet("revlog", flag.ExitOnError)
	dir := fs.String("C", ".", "Repository directory")
	query := fs.String("q", "", "Filter to apply on start")
	debug := fs.Bool("debug", false, "Write debug logs")
	fs.Usage = func() { printHelp(os.Stderr) }
	parseFlags(fs, args)

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: revlog needs a terminal; use 'revlog filter' for scripts")
		return 1
	}

	shutdown := setupLogging(*debug)
	defer shutdown()

	repo, err := openRepo(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	db := openHistory()
	if db != nil {
		defer db.Close()
	}

	if err := runTUI(repo, db, *query); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runTUI(repo *git.Repository, db *statedb.StateDB, query string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	themeName := config.GetTheme()
	ui.InitTheme(config.ResolveTheme())
	var themes *ui.ThemeWatcher
	if themeName == "system" {
		themes = ui.NewThemeWatcher(ctx)
		if themes != nil {
			defer themes.Close()
		}
	}

	// Refs watching is best effort; the tick still picks up new commits.
	refs, err := git.NewWatcher(repo.GitDir(), 0)
	if err != nil {
		cliLog.Warn("refs_watch_unavailable", slog.String("error", err.Error()))
		refs = nil
	} else {
		defer refs.Close()
	}

	ch := notify.NewChannel()
	defer ch.Close()

	var history revlog.History
	if db != nil {
		history = db
	}
	rl := revlog.New(repo, ch, history, revlogOptions())
	defer rl.Close()

	model := ui.New(ui.Options{
		Revlog:       rl,
		Notify:       ch,
		DB:           db,
		Refs:         refs,
		Theme:        themes,
		RepoPath:     repo.Path(),
		InitialQuery: query,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
