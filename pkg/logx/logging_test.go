package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	l.Info("dropped", String("k", "v"))
	l.With(Int("n", 1)).Error("dropped too")
}

func TestWriterFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "info").With(String("comp", "test"))

	l.Debug("hidden")
	l.Info("shown", Int("n", 3), Err(errors.New("boom")), Err(nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["message"])
	assert.Equal(t, "test", rec["comp"])
	assert.Equal(t, float64(3), rec["n"])
	assert.Equal(t, "boom", rec[zerologErrField(rec)])
	assert.Contains(t, rec["caller"], "logging_test.go")
}

func zerologErrField(rec map[string]any) string {
	if _, ok := rec["err"]; ok {
		return "err"
	}
	return "error"
}

func TestServiceApplyFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "lockpilot.log")
	svc, log := New(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()

	log.With(String("comp", "svc")).Debug("to file")
	assert.True(t, log.Enabled(LevelDebug))

	svc.Apply(Config{Level: "warn", File: FileConfig{Enabled: true, Path: path}})
	assert.False(t, log.Enabled(LevelInfo))
	log.Info("filtered")
	log.Warn("kept")
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "to file")
	assert.Contains(t, out, "kept")
	assert.NotContains(t, out, "filtered")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelWarn, parseLevel(" warning ", LevelInfo))
	assert.Equal(t, LevelTrace, parseLevel("trace", LevelInfo))
	assert.Equal(t, LevelInfo, parseLevel("loud", LevelInfo))
}
