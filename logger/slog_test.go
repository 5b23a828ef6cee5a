package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, DebugLevel, false, false)

	l.With("bank", "Main Memory").Debug("scratchpad written", "addr", 0x20)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "scratchpad written", rec["msg"])
	assert.Equal(t, "Main Memory", rec["bank"])
	assert.InDelta(t, 32, rec["addr"], 0)
	assert.Contains(t, rec, "ts")
}

func TestSlogLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, WarnLevel, false, false)
	assert.Equal(t, WarnLevel, l.Level())

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	child := l.With("bank", "register")
	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, child.Level(), "children share the root level")

	child.Debug("kept")
	assert.NotZero(t, buf.Len())
}

func TestSlogLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false, true)

	l.Warn("commit failed", "page", 3)
	assert.Contains(t, buf.String(), "commit failed")
}

func TestMockLogger(t *testing.T) {
	m := NewMockLogger()
	m.On("Warn", "verify failed", []any{"page", 1}).Return()

	m.Warn("verify failed", "page", 1)
	m.AssertExpectations(t)
}
