package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorSummarisesOnStop(t *testing.T) {
	var buf bytes.Buffer
	agg := NewAggregator(slog.New(slog.NewJSONHandler(&buf, nil)), 60)
	agg.Start()

	for range 3 {
		agg.Record(CompFilter, "filter_batch", slog.Int("cursor", 1200))
	}
	agg.Record(CompFilter, "filter_retry_resolve")
	assert.EqualValues(t, 3, agg.Pending(CompFilter, "filter_batch"))

	agg.Stop()
	assert.Zero(t, agg.Pending(CompFilter, "filter_batch"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "event_summary", first["msg"])
	assert.Equal(t, "filter_batch", first["event"])
	assert.EqualValues(t, 3, first["count"])
	assert.EqualValues(t, 1200, first["cursor"])
}

func TestAggregatorWithoutLogger(t *testing.T) {
	agg := NewAggregator(nil, 0)
	agg.Start()
	agg.Record(CompTags, "tags_reload")
	agg.Stop()
}

func TestAggregateGlobal(t *testing.T) {
	dir := initTemp(t, Config{})
	Aggregate(CompCache, "window_fetch")
	Aggregate(CompCache, "window_fetch")
	Shutdown()

	records := readRecords(t, dir)
	require.Len(t, records, 1)
	assert.EqualValues(t, 2, records[0]["count"])
	assert.Equal(t, CompCache, records[0]["component"])
}
