package offload

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toolgate/internal/domain"
)

func newTestOffloader(t *testing.T, dir string) *Offloader {
	t.Helper()
	return New(Options{
		Config: domain.OffloadConfig{Dir: dir, Threshold: 100, TruncateLength: 40},
		Now:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
}

func TestProcessPassesSmallResultsThrough(t *testing.T) {
	o := newTestOffloader(t, t.TempDir())
	result := o.Process("get_time", "12:30")
	require.Equal(t, "12:30", result)
}

func TestProcessOffloadsLargeTextResult(t *testing.T) {
	dir := t.TempDir()
	o := newTestOffloader(t, dir)
	payload := strings.Repeat("log line\n", 800)
	require.Greater(t, len(payload), 100)

	result := o.Process("read_logs", payload)

	var envelope Envelope
	require.NoError(t, json.Unmarshal([]byte(result), &envelope))
	require.Equal(t, "text", envelope.Type)
	require.Contains(t, envelope.Content, "too large")
	require.Contains(t, envelope.Content, "Preview:")
	require.Contains(t, envelope.Content, "split the file into lines")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "read_logs_"))
	require.True(t, strings.HasSuffix(entries[0].Name(), ".txt"))

	onDisk, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Equal(t, payload, string(onDisk))
}

func TestProcessOffloadsStructuredResultIndented(t *testing.T) {
	dir := t.TempDir()
	o := newTestOffloader(t, dir)

	items := make([]map[string]any, 30)
	for i := range items {
		items[i] = map[string]any{"name": strings.Repeat("x", 10), "index": i}
	}
	raw, err := json.Marshal(map[string]any{"items": items})
	require.NoError(t, err)
	require.Greater(t, len(raw), 100)

	result := o.Process("search_library", string(raw))

	var envelope Envelope
	require.NoError(t, json.Unmarshal([]byte(result), &envelope))
	require.Contains(t, envelope.Content, "filter by the relevant field")
	require.Contains(t, envelope.Content, "case-insensitively")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasSuffix(entries[0].Name(), ".json"))

	onDisk, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(onDisk), "\n  ")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(onDisk, &decoded))
	require.Len(t, decoded["items"], 30)
}

func TestProcessTruncatesWhenWriteFails(t *testing.T) {
	// An empty directory path makes the write step fail.
	o := newTestOffloader(t, "")
	payload := strings.Repeat("a", 200)

	result := o.Process("read_logs", payload)
	require.Equal(t, strings.Repeat("a", 40)+"\n[truncated]", result)
}

func TestProcessScalarJSONTreatedAsText(t *testing.T) {
	dir := t.TempDir()
	o := newTestOffloader(t, dir)
	payload := `"` + strings.Repeat("z", 150) + `"`

	result := o.Process("get_token", payload)

	var envelope Envelope
	require.NoError(t, json.Unmarshal([]byte(result), &envelope))
	require.Contains(t, envelope.Content, "Preview:")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasSuffix(entries[0].Name(), ".txt"))
}

func TestFilenameSanitizesToolName(t *testing.T) {
	dir := t.TempDir()
	o := newTestOffloader(t, dir)
	payload := strings.Repeat("b", 150)

	_ = o.Process("weird/tool name", payload)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "weird_tool_name_"))
}
