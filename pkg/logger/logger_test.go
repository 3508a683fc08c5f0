package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time { return time.Date(2025, 5, 12, 8, 0, 0, 0, time.UTC) }

func newBuffered(format Format, level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: level, Format: format})
	l.now = fixedClock
	return l, &buf
}

func TestJSONEntry(t *testing.T) {
	l, buf := newBuffered(FormatJSON, LevelInfo)
	l.With(Component("query"), Period("Mei/2025")).
		Info("report built", ClusterK(3), Rows(12), Err(errors.New("boom")))

	var e entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "2025-05-12T08:00:00Z", e.Timestamp)
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "report built", e.Message)
	assert.Equal(t, "query", e.Fields["component"])
	assert.Equal(t, "Mei/2025", e.Fields["period"])
	assert.EqualValues(t, 3, e.Fields["k"])
	assert.Equal(t, "boom", e.Fields["error"])
}

func TestLevelFilter(t *testing.T) {
	l, buf := newBuffered(FormatJSON, LevelWarn)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown")
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
	assert.False(t, l.Enabled(LevelInfo))
	assert.True(t, l.Enabled(LevelError))
}

func TestTextFormat(t *testing.T) {
	l, buf := newBuffered(FormatText, LevelDebug)
	l.Warn("cache degraded", Student("Ahmad Fauzi"), Int("rows", 4))

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, "2025-05-12T08:00:00Z WARN  cache degraded"), line)
	assert.Contains(t, line, `rows=4 student="Ahmad Fauzi"`)
}

func TestWithDoesNotLeakFields(t *testing.T) {
	l, buf := newBuffered(FormatJSON, LevelInfo)
	child := l.With(String("a", "1"))
	_ = child.With(String("b", "2"))

	child.Info("x")
	var e entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, map[string]any{"a": "1"}, e.Fields)
}

func TestContextLogger(t *testing.T) {
	base, buf := newBuffered(FormatJSON, LevelInfo)
	fallback := Discard()

	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	ctx := WithContext(context.Background(), base.WithRequestID("req-7"))
	FromContext(ctx, fallback).Info("handled")

	var e entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "req-7", e.Fields[RequestIDKey])
}

func TestParse(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" debug "))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLevel("loud"))
	assert.Equal(t, FormatText, ParseFormat("TEXT"))
	assert.Equal(t, FormatJSON, ParseFormat(""))
}
