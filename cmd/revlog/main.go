package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asheshgoplani/revlog/internal/config"
	"github.com/asheshgoplani/revlog/internal/filterer"
	"github.com/asheshgoplani/revlog/internal/git"
	"github.com/asheshgoplani/revlog/internal/logging"
	"github.com/asheshgoplani/revlog/internal/revlog"
	"github.com/asheshgoplani/revlog/internal/statedb"
)

const Version = "0.1.0"

// DebugEnv turns on debug logging like -debug.
const DebugEnv = "REVLOG_DEBUG"

var cliLog = logging.ForComponent(logging.CompCLI)

func init() {
	initColorProfile()
}

// initColorProfile picks the lipgloss color profile. REVLOG_COLOR
// (truecolor, 256, 16, none) overrides detection.
func initColorProfile() {
	switch strings.ToLower(os.Getenv("REVLOG_COLOR")) {
	case "truecolor", "true", "24bit":
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	case "256", "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
		return
	case "16", "ansi", "basic":
		lipgloss.SetColorProfile(termenv.ANSI)
		return
	case "none", "off", "ascii":
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	if ct := os.Getenv("COLORTERM"); ct == "truecolor" || ct == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	// Most terminals advertising 256 colors handle truecolor too.
	term := os.Getenv("TERM")
	for _, t := range []string{"256color", "xterm-direct", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(term, t) {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("revlog v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp(os.Stdout)
			return
		case "filter":
			os.Exit(handleFilter(args[1:]))
		case "history":
			os.Exit(handleHistory(args[1:]))
		}
	}
	os.Exit(handleTUI(args))
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, "revlog v%s\n", Version)
	fmt.Fprintln(w, "Browse and filter the commit log of a git repository")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  revlog [-C dir] [-q query] [-debug]     Start the TUI")
	fmt.Fprintln(w, "  revlog filter [-C dir] [-limit n] [-json] <query>")
	fmt.Fprintln(w, "                                          Print matching commits")
	fmt.Fprintln(w, "  revlog history [-C dir] [-n n] [-all] [-clear] [-json]")
	fmt.Fprintln(w, "                                          List recent filters")
	fmt.Fprintln(w, "  revlog version                          Show version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Query syntax:")
	fmt.Fprintln(w, "  fix                 sha, author or message contains \"fix\"")
	fmt.Fprintln(w, "  :a alice            author contains \"alice\"")
	fmt.Fprintln(w, "  :m! wip             message does not contain \"wip\"")
	fmt.Fprintln(w, "  :t v1.2             a tag contains \"v1.2\"")
	fmt.Fprintln(w, "  :mc Fix             case-sensitive message match")
	fmt.Fprintln(w, "  a && b || c         (a and b) or c")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Keys (in TUI):")
	fmt.Fprintln(w, "  /        Edit filter        ctrl+r   Recall a filter")
	fmt.Fprintln(w, "  j/k      Move               g/G      Top/bottom")
	fmt.Fprintln(w, "  esc      Clear filter       q        Quit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  REVLOG_HOME     Config and state directory (default ~/.revlog)")
	fmt.Fprintln(w, "  REVLOG_DEBUG    Write debug logs to $REVLOG_HOME/debug.log")
	fmt.Fprintln(w, "  REVLOG_COLOR    Color mode: truecolor, 256, 16, none")
}

// setupLogging initialises logging into the revlog directory. Without debug
// only warnings and errors are written. The returned func flushes and closes
// the log.
func setupLogging(debug bool) func() {
	debug = debug || os.Getenv(DebugEnv) != ""
	if _, err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	dir, err := config.Dir()
	if err != nil {
		logging.Init(logging.Config{})
		return logging.Shutdown
	}
	cfg := config.LoggingConfig(dir, debug)
	if !debug {
		cfg.Level = "warn"
	}
	logging.Init(cfg)
	log.SetFlags(0)
	log.SetOutput(logging.NewBridgeWriter(logging.CompCLI))

	// SIGUSR1 dumps the in-memory log tail.
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	go func() {
		for range usr1 {
			path := filepath.Join(dir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(path); err != nil {
				cliLog.Error("crash_dump_failed", slog.String("error", err.Error()))
			} else {
				cliLog.Info("crash_dump_written", slog.String("path", path))
			}
		}
	}()

	if debug {
		cliLog.Info("revlog_started",
			slog.String("version", Version),
			slog.Int("pid", os.Getpid()))
	}
	return logging.Shutdown
}

// errNotARepo marks a directory go-git and git both reject.
var errNotARepo = errors.New("not a git repository")

// openRepo opens the repository containing dir.
func openRepo(dir string) (*git.Repository, error) {
	repo, err := git.Open(dir)
	if err == nil {
		return repo, nil
	}
	if git.IsGitRepo(dir) {
		// git can read it but go-git cannot.
		root, rootErr := git.GetRepoRoot(dir)
		if rootErr != nil {
			root = dir
		}
		return nil, fmt.Errorf("open %s: %w", root, err)
	}
	return nil, fmt.Errorf("%s: %w", dir, errNotARepo)
}

// openHistory opens the filter history database, or returns nil when history
// is disabled or unavailable.
func openHistory() *statedb.StateDB {
	if !config.GetHistorySettings().IsEnabled() {
		return nil
	}
	dir, err := config.Dir()
	if err != nil {
		return nil
	}
	db, err := statedb.Open(filepath.Join(dir, statedb.FileName))
	if err != nil {
		cliLog.Warn("history_open_failed", slog.String("error", err.Error()))
		return nil
	}
	if err := db.Migrate(); err != nil {
		cliLog.Warn("history_migrate_failed", slog.String("error", err.Error()))
		db.Close()
		return nil
	}
	return db
}

// revlogOptions maps the configuration onto the log view.
func revlogOptions() revlog.Options {
	fs := config.GetFilterSettings()
	lv := config.GetLogViewSettings()
	return revlog.Options{
		WindowSize:   lv.WindowSize,
		TagRefresh:   lv.TagRefresh(),
		MessageLimit: fs.MessageLimit,
		Workers:      fs.Workers,
		HistoryMax:   config.GetHistorySettings().MaxEntries,
		Filter: filterer.Options{
			SliceSize:    fs.SliceSize,
			PollInterval: fs.PollInterval(),
			RetryBackoff: fs.RetryBackoff(),
			GroupMode:    fs.Mode(),
		},
	}
}

// parseFlags normalizes and parses args, exiting on -h.
func parseFlags(fs *flag.FlagSet, args []string) {
	_ = fs.Parse(normalizeArgs(fs, args))
}
