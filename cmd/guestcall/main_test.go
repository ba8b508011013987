package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/reglet-dev/guestcall/domain/errors"
	"github.com/reglet-dev/guestcall/internal/testutil"
)

type fixtureFiles struct {
	dir       string
	wasm      string
	wat       string
	iface     string
	config    string
	unlinked  string
	badConfig string
}

func writeFixtures(t *testing.T) fixtureFiles {
	t.Helper()
	dir := t.TempDir()
	f := fixtureFiles{
		dir:       dir,
		wasm:      filepath.Join(dir, "fixture.wasm"),
		wat:       filepath.Join(dir, "fixture.wat"),
		iface:     filepath.Join(dir, "fixture.yaml"),
		config:    filepath.Join(dir, "guestcall.yaml"),
		unlinked:  filepath.Join(dir, "unlinked.yaml"),
		badConfig: filepath.Join(dir, "bad.yaml"),
	}

	write := func(path, content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	write(f.wasm, string(testutil.CompileWAT(t, testutil.FixtureWAT)))
	write(f.wat, testutil.FixtureWAT)
	write(f.iface, testutil.FixtureInterface)
	write(f.config, `
log:
  level: debug
  format: json
vars:
  echo: string
`)
	write(f.badConfig, "log:\n  level: loud\n")
	write(f.unlinked, `
name: unlinked
operations:
  - name: add
    params:
      - {name: a, shape: i32}
      - {name: b, shape: i32}
    result: i32
  - name: missing
`)
	return f
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCall(t *testing.T) {
	f := writeFixtures(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "binary module",
			args: []string{"call", "--module", f.wasm, "--interface", f.iface, "--var", "echo=u8", "add", "3", "4"},
			want: "7\n",
		},
		{
			name: "text module",
			args: []string{"call", "--module", f.wat, "--interface", f.iface, "--var", "echo=string", "echo", `"through the labyrinth"`},
			want: "\"through the labyrinth\"\n",
		},
		{
			name: "unit result",
			args: []string{"call", "--module", f.wat, "--interface", f.iface, "--var", "echo=u8", "reset"},
			want: "null\n",
		},
		{
			name: "sequence argument",
			args: []string{"call", "--module", f.wat, "--interface", f.iface, "--var", "echo=seq<u16>", "echo", "[1, 2, 65535]"},
			want: "[1,2,65535]\n",
		},
		{
			name: "vars from config",
			args: []string{"call", "--config", f.config, "--module", f.wasm, "--interface", f.iface, "echo", `"hi"`},
			want: "\"hi\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCall_Indent(t *testing.T) {
	f := writeFixtures(t)
	out, _, err := execute(t, "call", "--indent", "--module", f.wat, "--interface", f.iface,
		"--var", "echo=seq<bool>", "echo", "[true, false]")
	require.NoError(t, err)
	assert.Equal(t, "[\n  true,\n  false\n]\n", out)
}

func TestCall_LogsWithConfiguredFormat(t *testing.T) {
	f := writeFixtures(t)
	_, stderr, err := execute(t, "call", "--config", f.config, "--module", f.wasm, "--interface", f.iface, "add", "1", "2")
	require.NoError(t, err)

	var messages []string
	for _, line := range strings.Split(strings.TrimSpace(stderr), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		messages = append(messages, entry["msg"].(string))
	}
	assert.Contains(t, messages, "guest loaded")
	assert.Contains(t, messages, "invoking guest operation")
	assert.Contains(t, messages, "input buffer negotiated")
	assert.Contains(t, messages, "guest operation returned")
}

func TestCall_Errors(t *testing.T) {
	f := writeFixtures(t)
	base := []string{"call", "--module", f.wat, "--interface", f.iface, "--var", "echo=u8"}

	_, _, err := execute(t, append(base, "boom")...)
	testutil.RequireCallKind(t, err, derrors.KindCallTrap)

	_, _, err = execute(t, append(base, "corrupt")...)
	testutil.RequireCallKind(t, err, derrors.KindPayloadReadOutOfBounds)

	_, _, err = execute(t, append(base, "nope")...)
	testutil.RequireCallKind(t, err, derrors.KindUnknownOperation)

	_, _, err = execute(t, append(base, "add", "1")...)
	testutil.RequireCallKind(t, err, derrors.KindArgumentCountMismatch)

	_, _, err = execute(t, append(base, "add", "1", `"two"`)...)
	testutil.RequireCallKind(t, err, derrors.KindSerializationFailure)

	_, _, err = execute(t, append(base, "add", "1", "{")...)
	assert.ErrorContains(t, err, "argument 1 is not valid JSON")

	_, _, err = execute(t, "call", "--module", filepath.Join(f.dir, "missing.wasm"), "--interface", f.iface, "--var", "echo=u8", "add", "1", "2")
	assert.ErrorContains(t, err, "failed to read module")

	_, _, err = execute(t, "call", "--interface", f.iface, "add")
	assert.ErrorContains(t, err, "module")
}

func TestCall_MaxResultSize(t *testing.T) {
	f := writeFixtures(t)
	cfg := filepath.Join(f.dir, "small.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("call:\n  max_result_size: 4\n"), 0o600))

	_, _, err := execute(t, "call", "--config", cfg, "--module", f.wat, "--interface", f.iface, "--var", "echo=string", "echo", `"longer than four"`)
	testutil.RequireCallKind(t, err, derrors.KindPayloadReadOutOfBounds)
}

func TestCheck(t *testing.T) {
	f := writeFixtures(t)

	out, _, err := execute(t, "check", "--module", f.wasm, "--interface", f.iface, "--var", "echo=u8")
	require.NoError(t, err)
	assert.Equal(t, "fixture: 7 operations linked\n", out)

	_, _, err = execute(t, "check", "--module", f.wasm, "--interface", f.unlinked)
	testutil.RequireCallKind(t, err, derrors.KindShimFunctionMissing)

	partial := filepath.Join(f.dir, "partial.yaml")
	require.NoError(t, os.WriteFile(partial, []byte(`
name: partial
operations:
  - name: reset
  - name: flag
    result: u32
`), 0o600))
	out, _, err = execute(t, "check", "--module", f.wasm, "--interface", partial)
	require.NoError(t, err)
	assert.Equal(t, `partial: 2 operations linked
  undeclared shim __wasm_add
  undeclared shim __wasm_boom
  undeclared shim __wasm_corrupt
  undeclared shim __wasm_echo
  undeclared shim __wasm_lost
`, out)
}

func TestValidate(t *testing.T) {
	f := writeFixtures(t)

	out, _, err := execute(t, "validate", "--interface", f.iface, "--var", "echo=option<string>")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "fixture: 7 operations, 0 shapes", lines[0])
	assert.Equal(t, "  add(a: i32, b: i32) -> i32", lines[1])
	assert.Equal(t, "  echo(value: option<string>) -> option<string>", lines[2])
	assert.Equal(t, "  reset()", lines[3])

	_, _, err = execute(t, "validate", "--interface", f.iface)
	assert.Error(t, err, "echo has no value")

	_, _, err = execute(t, "validate")
	assert.ErrorContains(t, err, "interface")
}

func TestSchema(t *testing.T) {
	out, _, err := execute(t, "schema")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
	assert.Contains(t, out, "operations")
}

func TestGlobalFlags(t *testing.T) {
	f := writeFixtures(t)

	_, _, err := execute(t, "--config", f.badConfig, "schema")
	require.NoError(t, err, "schema does not read the config")

	_, _, err = execute(t, "--config", f.badConfig, "validate", "--interface", f.iface, "--var", "echo=u8")
	var cfgErr *derrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "log.level", cfgErr.Field)

	_, _, err = execute(t, "--log-format", "xml", "validate", "--interface", f.iface, "--var", "echo=u8")
	assert.ErrorContains(t, err, "unknown log format")

	_, stderr, err := execute(t, "--log-level", "debug", "--log-format", "json",
		"call", "--module", f.wat, "--interface", f.iface, "--var", "echo=u8", "flag")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"msg":"arguments written"`)
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"3", `"x"`, `{"x": 1}`, "null", "[1.5]"})
	require.NoError(t, err)
	assert.Equal(t, []any{
		json.Number("3"),
		"x",
		map[string]any{"x": json.Number("1")},
		nil,
		[]any{json.Number("1.5")},
	}, args)

	_, err = parseArgs([]string{"1 2"})
	assert.ErrorContains(t, err, "trailing data")

	_, err = parseArgs([]string{""})
	assert.Error(t, err)
}
