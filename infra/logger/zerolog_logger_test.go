package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerWithFields(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)
	SetLevel("info")

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "dispatch").With(map[string]any{"request_id": "r1"})
	l.Debugf("hidden")
	l.Infof("assigned %s", "t1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "dispatch", entry["component"])
	assert.Equal(t, "r1", entry["request_id"])
	assert.Equal(t, "assigned t1", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetLevelFallback(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)
	assert.Equal(t, zerolog.InfoLevel, SetLevel("loud"))
	assert.Equal(t, zerolog.WarnLevel, SetLevel(" WARN "))
}
