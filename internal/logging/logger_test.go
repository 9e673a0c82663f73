package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readRecords parses every JSON line of the debug log in dir.
func readRecords(t *testing.T, dir string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)

	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var r map[string]any
		if json.Unmarshal(sc.Bytes(), &r) == nil {
			out = append(out, r)
		}
	}
	return out
}

func initTemp(t *testing.T, cfg Config) string {
	t.Helper()
	Shutdown()
	dir := t.TempDir()
	cfg.Debug = true
	cfg.LogDir = dir
	Init(cfg)
	t.Cleanup(Shutdown)
	return dir
}

func TestInitWritesJSONLines(t *testing.T) {
	dir := initTemp(t, Config{})

	Logger().Info("filter_started", "query", "fix")

	records := readRecords(t, dir)
	require.Len(t, records, 1)
	assert.Equal(t, "filter_started", records[0]["msg"])
	assert.Equal(t, "fix", records[0]["query"])
}

func TestInitWithoutDirDiscards(t *testing.T) {
	Shutdown()
	Init(Config{})
	defer Shutdown()

	require.NotNil(t, Logger())
	Logger().Info("nowhere")
	ForComponent(CompUI).Warn("nowhere either")
}

func TestLoggerBeforeInit(t *testing.T) {
	Shutdown()
	assert.NotNil(t, Logger())
	assert.NoError(t, DumpRingBuffer(filepath.Join(t.TempDir(), "dump")))
}

func TestForComponentCreatedBeforeInit(t *testing.T) {
	Shutdown()
	early := ForComponent(CompTags).With(slog.Int("snapshot", 3))

	dir := initTemp(t, Config{})
	early.Info("tags_loaded")

	records := readRecords(t, dir)
	require.Len(t, records, 1)
	assert.Equal(t, CompTags, records[0]["component"])
	assert.EqualValues(t, 3, records[0]["snapshot"])
}

func TestLevelFiltering(t *testing.T) {
	dir := initTemp(t, Config{Level: "warn"})

	Logger().Info("hidden")
	Logger().Warn("shown")
	ForComponent(CompFilter).Debug("hidden_too")

	records := readRecords(t, dir)
	require.Len(t, records, 1)
	assert.Equal(t, "shown", records[0]["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestTextFormat(t *testing.T) {
	dir := initTemp(t, Config{Format: "text"})
	Logger().Info("plain_text")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=plain_text")
	assert.False(t, json.Valid(bytes.TrimSpace(data)))
}

func TestDumpRingBuffer(t *testing.T) {
	dir := initTemp(t, Config{RingBufferSize: 2048})
	ForComponent(CompLog).Error("walk_failed")

	dump := filepath.Join(dir, "dump.jsonl")
	require.NoError(t, DumpRingBuffer(dump))

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Contains(t, string(data), "walk_failed")
}
