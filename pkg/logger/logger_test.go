package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(zapcore.AddSync(&buf))
	t.Cleanup(func() {
		SetOutput(zapcore.AddSync(&bytes.Buffer{}))
		Init("info")
	})
	return &buf
}

func TestInit_Levels(t *testing.T) {
	cases := map[string]string{
		"debug":    "debug",
		" WARN ":   "warn",
		"warning":  "warn",
		"Error":    "error",
		"fatal":    "fatal",
		"":         "info",
		"verbose!": "info",
	}
	for in, want := range cases {
		Init(in)
		assert.Equal(t, want, LevelString(), "Init(%q)", in)
	}
	Init("info")
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	Init("warn")

	Debugf("attributes for %s", "Patients")
	Info("connected")
	Warnf("insert failed: %v", "bad value")
	Error("store unreachable")

	out := buf.String()
	assert.NotContains(t, out, "attributes for")
	assert.NotContains(t, out, "connected")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "insert failed: bad value")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "store unreachable")
}

func TestPrintln_LogsAtInfo(t *testing.T) {
	buf := capture(t)

	Init("error")
	Println("query", 3)
	require.Empty(t, buf.String())

	Init("debug")
	Println("query", 3)
	assert.Contains(t, buf.String(), "query 3")
	assert.NotContains(t, buf.String(), "query 3\n\n")
}
