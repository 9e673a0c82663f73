// Package config loads and saves the user configuration in
// ~/.revlog/config.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/asheshgoplani/revlog/internal/filter"
	"github.com/asheshgoplani/revlog/internal/logging"
)

// FileName is the config file inside the revlog directory.
const FileName = "config.toml"

// HomeEnv overrides the revlog directory.
const HomeEnv = "REVLOG_HOME"

// Config is the user configuration.
type Config struct {
	// Theme is "dark" (default), "light" or "system".
	Theme string `toml:"theme"`

	Filter  FilterSettings  `toml:"filter"`
	Log     LogViewSettings `toml:"log"`
	History HistorySettings `toml:"history"`
	Logs    LogSettings     `toml:"logs"`
}

// FilterSettings tunes the background filter.
type FilterSettings struct {
	// SliceSize is how many commits are read per filter step. Default: 1200
	SliceSize int `toml:"slice_size"`

	// PollIntervalMs is the pause between steps. Default: 10
	PollIntervalMs int `toml:"poll_interval_ms"`

	// RetryBackoffMs is the pause after a failed read. Default: 500
	RetryBackoffMs int `toml:"retry_backoff_ms"`

	// GroupMode is "all" (every clause of an && group must match, default)
	// or "last" (only the last clause of a group decides).
	GroupMode string `toml:"group_mode"`

	// Workers bounds concurrent background jobs. Default: 2
	Workers int `toml:"workers"`

	// MessageLimit is how many characters of a message are kept for
	// display. Default: 200
	MessageLimit int `toml:"message_limit"`
}

// PollInterval returns PollIntervalMs as a duration.
func (f FilterSettings) PollInterval() time.Duration {
	return time.Duration(f.PollIntervalMs) * time.Millisecond
}

// RetryBackoff returns RetryBackoffMs as a duration.
func (f FilterSettings) RetryBackoff() time.Duration {
	return time.Duration(f.RetryBackoffMs) * time.Millisecond
}

// Mode parses GroupMode, falling back to filter.GroupAll.
func (f FilterSettings) Mode() filter.GroupMode {
	m, err := filter.ParseGroupMode(f.GroupMode)
	if err != nil {
		return filter.GroupAll
	}
	return m
}

// LogViewSettings tunes the unfiltered log view.
type LogViewSettings struct {
	// WindowSize is how many commits are loaded around the selection.
	// Default: 1200
	WindowSize int `toml:"window_size"`

	// TagRefreshSecs is the minimum time between tag reloads. Default: 3
	TagRefreshSecs int `toml:"tag_refresh_secs"`
}

// TagRefresh returns TagRefreshSecs as a duration.
func (l LogViewSettings) TagRefresh() time.Duration {
	return time.Duration(l.TagRefreshSecs) * time.Second
}

// HistorySettings controls the filter history.
type HistorySettings struct {
	// Enabled records every applied filter. Default: true
	Enabled *bool `toml:"enabled"`

	// MaxEntries is how many filters are kept. Default: 200
	MaxEntries int `toml:"max_entries"`
}

// IsEnabled reports Enabled, defaulting to true.
func (h HistorySettings) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// LogSettings configures debug logging.
type LogSettings struct {
	// DebugLevel is "debug", "info" (default), "warn" or "error".
	DebugLevel string `toml:"debug_level"`

	// DebugFormat is "json" (default) or "text".
	DebugFormat string `toml:"debug_format"`

	DebugMaxMB         int  `toml:"debug_max_mb"`
	DebugBackups       int  `toml:"debug_backups"`
	DebugRetentionDays int  `toml:"debug_retention_days"`
	DebugCompress      bool `toml:"debug_compress"`

	// RingBufferMB is the in-memory log tail kept for dumps. Default: 4
	RingBufferMB int `toml:"ring_buffer_mb"`

	// PprofEnabled serves pprof on localhost:6060 in debug mode.
	PprofEnabled bool `toml:"pprof_enabled"`

	// AggregateIntervalS is how often repeated events are summarised.
	// Default: 30
	AggregateIntervalS int `toml:"aggregate_interval_secs"`
}

var (
	cache   *Config
	cacheMu sync.RWMutex
)

// Dir returns the revlog directory: $REVLOG_HOME or ~/.revlog.
func Dir() (string, error) {
	if d := os.Getenv(HomeEnv); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".revlog"), nil
}

// Path returns the config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load returns the configuration, reading the file on first use. A missing
// file yields the zero Config. On a parse error the zero Config is cached and
// the error returned so it can be shown once.
func Load() (*Config, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		return cache, nil
	}

	path, err := Path()
	if err != nil {
		cache = &Config{}
		return cache, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		cache = &Config{}
		if errors.Is(err, fs.ErrNotExist) {
			return cache, nil
		}
		return cache, fmt.Errorf("config.toml parse error: %w", err)
	}
	cache = &cfg
	return cache, nil
}

// Reload drops the cache and loads again.
func Reload() (*Config, error) {
	ClearCache()
	return Load()
}

// ClearCache makes the next Load read the file again.
func ClearCache() {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
}

// Save writes cfg atomically: temp file, fsync, rename.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# revlog configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := writeSynced(tmp, buf.Bytes()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}

	ClearCache()
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func load() *Config {
	cfg, err := Load()
	if err != nil || cfg == nil {
		return &Config{}
	}
	return cfg
}

// GetTheme returns the configured theme, defaulting to "dark".
func GetTheme() string {
	switch t := load().Theme; t {
	case "dark", "light", "system":
		return t
	default:
		return "dark"
	}
}

// ResolveTheme turns "system" into "dark" or "light" using the OS setting.
// Detection failures resolve to "dark".
func ResolveTheme() string {
	theme := GetTheme()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil || isDark {
		return "dark"
	}
	return "light"
}

// GetFilterSettings returns filter settings with defaults applied.
func GetFilterSettings() FilterSettings {
	s := load().Filter
	if s.SliceSize <= 0 {
		s.SliceSize = 1200
	}
	if s.PollIntervalMs <= 0 {
		s.PollIntervalMs = 10
	}
	if s.RetryBackoffMs <= 0 {
		s.RetryBackoffMs = 500
	}
	if s.GroupMode == "" {
		s.GroupMode = filter.GroupAll.String()
	}
	if s.Workers <= 0 {
		s.Workers = 2
	}
	if s.MessageLimit <= 0 {
		s.MessageLimit = 200
	}
	return s
}

// GetLogViewSettings returns log view settings with defaults applied.
func GetLogViewSettings() LogViewSettings {
	s := load().Log
	if s.WindowSize <= 0 {
		s.WindowSize = 1200
	}
	if s.TagRefreshSecs <= 0 {
		s.TagRefreshSecs = 3
	}
	return s
}

// GetHistorySettings returns history settings with defaults applied.
func GetHistorySettings() HistorySettings {
	s := load().History
	if s.MaxEntries <= 0 {
		s.MaxEntries = 200
	}
	return s
}

// GetLogSettings returns debug log settings with defaults applied.
func GetLogSettings() LogSettings {
	s := load().Logs
	if s.DebugMaxMB <= 0 {
		s.DebugMaxMB = 10
	}
	if s.DebugBackups <= 0 {
		s.DebugBackups = 5
	}
	if s.DebugRetentionDays <= 0 {
		s.DebugRetentionDays = 10
	}
	if s.RingBufferMB <= 0 {
		s.RingBufferMB = 4
	}
	if s.AggregateIntervalS <= 0 {
		s.AggregateIntervalS = 30
	}
	return s
}

// LoggingConfig builds the logging setup for dir from the [logs] section.
func LoggingConfig(dir string, debug bool) logging.Config {
	s := GetLogSettings()
	return logging.Config{
		LogDir:                dir,
		Level:                 s.DebugLevel,
		Format:                s.DebugFormat,
		MaxSizeMB:             s.DebugMaxMB,
		MaxBackups:            s.DebugBackups,
		MaxAgeDays:            s.DebugRetentionDays,
		Compress:              s.DebugCompress,
		RingBufferSize:        s.RingBufferMB * 1024 * 1024,
		AggregateIntervalSecs: s.AggregateIntervalS,
		PprofEnabled:          s.PprofEnabled && debug,
		Debug:                 debug,
	}
}
