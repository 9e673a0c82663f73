package ui

import (
	"context"
	"log/slog"

	dark "github.com/thiagokokada/dark-mode-go"
)

// ThemeWatcher follows the OS dark mode setting for theme = "system".
type ThemeWatcher struct {
	changes chan Theme
	cancel  context.CancelFunc
}

// NewThemeWatcher starts watching. It returns nil when the platform cannot
// report dark mode changes; callers keep the theme they resolved at startup.
func NewThemeWatcher(parent context.Context) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parent)
	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watch_unavailable", slog.String("error", err.Error()))
		return nil
	}

	w := &ThemeWatcher{changes: make(chan Theme, 1), cancel: cancel}
	go w.loop(ctx, events, errs)
	return w
}

func (w *ThemeWatcher) loop(ctx context.Context, events <-chan bool, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			theme := ThemeLight
			if isDark {
				theme = ThemeDark
			}
			// Keep only the newest value if the UI has not caught up.
			select {
			case <-w.changes:
			default:
			}
			w.changes <- theme
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			uiLog.Warn("theme_watch_error", slog.String("error", err.Error()))
		}
	}
}

// Changes delivers the new theme after each OS switch.
func (w *ThemeWatcher) Changes() <-chan Theme {
	return w.changes
}

// Close stops watching. Safe to call more than once.
func (w *ThemeWatcher) Close() {
	w.cancel()
}
