package logging

import (
	"bytes"
	"log/slog"
	"strings"
)

// BridgeWriter is an io.Writer for the standard library log package. Each
// write becomes one slog record; a leading "[CATEGORY] " is turned into the
// component attribute.
type BridgeWriter struct {
	fallback string
}

// NewBridgeWriter returns a writer that uses fallback as the component for
// lines without a category prefix.
func NewBridgeWriter(fallback string) *BridgeWriter {
	return &BridgeWriter{fallback: fallback}
}

func (bw *BridgeWriter) Write(p []byte) (int, error) {
	line := string(bytes.TrimSpace(p))
	if line == "" {
		return len(p), nil
	}
	line = stripLogTimestamp(line)

	component := bw.fallback
	if strings.HasPrefix(line, "[") {
		if end := strings.Index(line, "] "); end > 0 {
			component = strings.ToLower(line[1:end])
			line = line[end+2:]
		}
	}

	Logger().Info(line, slog.String("component", canonicalComponent(component)))
	return len(p), nil
}

// stripLogTimestamp drops the "15:04:05 " or "15:04:05.000000 " prefix the
// log package adds with Ltime and Lmicroseconds.
func stripLogTimestamp(s string) string {
	if len(s) > 16 && s[2] == ':' && s[5] == ':' && s[8] == '.' && s[15] == ' ' {
		return s[16:]
	}
	if len(s) > 9 && s[2] == ':' && s[5] == ':' && s[8] == ' ' {
		return s[9:]
	}
	return s
}

func canonicalComponent(category string) string {
	switch category {
	case "filter", "filterer", "search":
		return CompFilter
	case "log", "git", "walk", "revwalk":
		return CompLog
	case "tags", "tag", "refs":
		return CompTags
	case "cache", "items":
		return CompCache
	case "ui", "tea", "tui":
		return CompUI
	case "storage", "db", "sqlite", "config":
		return CompStorage
	case "watch", "watcher", "fsnotify":
		return CompWatch
	case "cli":
		return CompCLI
	default:
		return category
	}
}
