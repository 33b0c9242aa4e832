package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure(Config{Level: "debug", Format: "json"}, &buf))
	t.Cleanup(func() { _ = Configure(Config{Format: "json"}, nil) })

	l := New("executor")
	l.Debugw("transition", map[string]any{"vehicle": "v1", "event": "GOTO"})
	l.(*ZerologLogger).With("scenario", "s1").Infof("done %d", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "executor", first["component"])
	assert.Equal(t, "GOTO", first["event"])
	assert.Equal(t, "debug", first["level"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "s1", second["scenario"])
	assert.Equal(t, "done 3", second["message"])
}

func TestZerologLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure(Config{Level: "warn", Format: "console"}, &buf))
	t.Cleanup(func() { _ = Configure(Config{Format: "json"}, nil) })

	l := New("test")
	l.Debugf("debug %d", 1)
	l.Infof("info %s", "test")
	assert.Empty(t, buf.String())
	l.Warnf("warn")
	l.Errorf("error")
	assert.Contains(t, buf.String(), "warn")
	assert.Contains(t, buf.String(), "error")
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Level: "loud", Format: "json"}.Validate())
	assert.Error(t, Config{Level: "info", Format: "xml"}.Validate())
	c := Config{}
	c.SetDefaults()
	assert.NoError(t, c.Validate())
}
