package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/reglet-dev/guestcall/domain/errors"
	"github.com/reglet-dev/guestcall/host"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guestcall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.Runtime.WASI)
	assert.Equal(t, uint32(0), cfg.Runtime.MemoryLimitPages)
	assert.Equal(t, 30*time.Second, cfg.Runtime.Timeout)
	assert.Equal(t, uint32(host.DefaultMaxResultSize), cfg.Call.MaxResultSize)
	assert.False(t, cfg.Call.RequireCapacity)
	assert.Empty(t, cfg.Vars)

	assert.Len(t, cfg.executorOptions(), 1)
	assert.Len(t, cfg.dispatcherOptions(), 2)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
log:
  format: json
runtime:
  memory_limit_pages: 16
  wasi: false
  timeout: 250ms
call:
  require_capacity: true
vars:
  echo: string
  width: 4
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep their defaults")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Runtime.WASI)
	assert.Equal(t, uint32(16), cfg.Runtime.MemoryLimitPages)
	assert.Equal(t, 250*time.Millisecond, cfg.Runtime.Timeout)
	assert.True(t, cfg.Call.RequireCapacity)
	assert.Equal(t, "string", cfg.Vars["echo"])
	assert.EqualValues(t, 4, cfg.Vars["width"])

	assert.Len(t, cfg.executorOptions(), 2)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{name: "level", content: "log:\n  level: loud\n", field: "log.level"},
		{name: "format", content: "log:\n  format: xml\n", field: "log.format"},
		{name: "result size", content: "call:\n  max_result_size: 0\n", field: "call.max_result_size"},
		{name: "memory limit", content: "runtime:\n  memory_limit_pages: 70000\n", field: "runtime.memory_limit_pages"},
		{name: "timeout", content: "runtime:\n  timeout: -1s\n", field: "runtime.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			var cfgErr *derrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadConfig_Unreadable(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load config file")

	_, err = LoadConfig(writeConfig(t, "log: [unclosed"))
	assert.Error(t, err)
}
