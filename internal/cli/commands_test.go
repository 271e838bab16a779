package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// storeArgs points a command at a sqlite store in a fresh directory.
func storeArgs(t *testing.T) []string {
	t.Helper()
	return []string{"--driver", "sqlite", "--dir", t.TempDir(), "--app", "clitest", "--schema", filepath.Join("testdata", "model")}
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestSchemaCommand(t *testing.T) {
	out, _, err := execute(t, "schema", filepath.Join("testdata", "model"))
	require.NoError(t, err)
	assert.Contains(t, out, "Person\n")
	assert.Contains(t, out, "age?")
	assert.Contains(t, out, "model ")

	out, _, err = execute(t, "--format", "json", "schema", filepath.Join("testdata", "model"))
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.NotEmpty(t, data["hash"])
	assert.Len(t, data["entities"], 1)
}

func TestSchemaCommand_Errors(t *testing.T) {
	_, _, err := execute(t, "schema")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "schema", filepath.Join("testdata", "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestInsertThenFetch(t *testing.T) {
	args := storeArgs(t)

	out, _, err := execute(t, append(args, "--format", "json", "insert", "Person", "name=ada", "age=36")...)
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	inserted := resp.Data.(map[string]any)
	assert.Equal(t, "Person", inserted["entity"])
	require.NotEmpty(t, inserted["id"])

	_, _, err = execute(t, append(args, "insert", "Person", "name=bob", "age=12")...)
	require.NoError(t, err)

	out, _, err = execute(t, append(args, "--format", "json", "fetch", "Person", "--where", "age >=", "--value", "18")...)
	require.NoError(t, err)
	resp = decodeResponse(t, out)
	records := resp.Data.(map[string]any)["records"].([]any)
	require.Len(t, records, 1)
	rec := records[0].(map[string]any)
	assert.Equal(t, inserted["id"], rec["id"])
	assert.Equal(t, map[string]any{"name": "ada", "age": float64(36)}, rec["fields"])

	out, _, err = execute(t, append(args, "fetch", "Person", "--sort", "age:desc", "--limit", "1", "--offset", "1")...)
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"bob"`)
	assert.Contains(t, out, "1 Person record(s)")

	out, _, err = execute(t, append(args, "migrate")...)
	require.NoError(t, err)
	assert.Equal(t, "sqlite store is up to date\n", out)
}

func TestInsertCommand_Failures(t *testing.T) {
	args := storeArgs(t)

	t.Run("bad assignment", func(t *testing.T) {
		out, _, err := execute(t, append(args, "insert", "Person", "name")...)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E005]")
	})

	t.Run("missing required field", func(t *testing.T) {
		out, errOut, err := execute(t, append(args, "--format", "json", "insert", "Person", "age=3")...)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		resp := decodeResponse(t, out)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "VALIDATION", resp.Error.Code)
		assert.Empty(t, errOut, "a save with a callback is not logged")
	})

	t.Run("unknown entity", func(t *testing.T) {
		out, _, err := execute(t, append(args, "--format", "json", "insert", "Robot", "name=r2")...)
		require.Error(t, err)
		resp := decodeResponse(t, out)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "RESOLUTION", resp.Error.Code)
	})
}

func TestFetchCommand_InvalidQuery(t *testing.T) {
	args := storeArgs(t)

	_, _, err := execute(t, append(args, "fetch", "Person", "--where", "age")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, append(args, "fetch", "Person", "--sort", "age:up")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, _, err := execute(t, append(args, "--format", "json", "fetch", "Person", "--where", "nope", "--value", "1")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "RESOLUTION", decodeResponse(t, out).Error.Code)
}

func TestScenarioCommand(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"model.cue", "commit_then_save.yaml"} {
		data, err := os.ReadFile(filepath.Join("testdata", "scenarios", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}

	out, _, err := execute(t, "scenario", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ commit_then_save")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	_, _, err = execute(t, "scenario", "--update", dir)
	require.NoError(t, err)
	golden := filepath.Join(dir, "golden", "commit_then_save.golden")
	require.FileExists(t, golden)

	require.NoError(t, os.WriteFile(golden, []byte("{}"), 0644))
	out, _, err = execute(t, "--format", "json", "scenario", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	report := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, float64(1), report["failed"])
}

func TestScenarioCommand_FilterAndMissing(t *testing.T) {
	out, _, err := execute(t, "scenario", "--filter", "nothing-*", filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	_, _, err = execute(t, "scenario", filepath.Join("testdata", "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "scenario", "--filter", "[", filepath.Join("testdata", "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
