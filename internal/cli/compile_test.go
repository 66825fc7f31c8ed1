package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Text output
// =============================================================================

func TestCompileCleanProgram(t *testing.T) {
	out, _, err := execute(t, "compile", "testdata/good")

	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 1 function(s)")
	assert.Contains(t, out, "pick: 11 values →")
}

func TestCompileViolatingProgram(t *testing.T) {
	out, _, err := execute(t, "compile", "testdata/violating")

	require.Error(t, err)
	assert.Equal(t, ExitDiagnostics, GetExitCode(err))
	assert.Contains(t, out, "✗ Rejected 1 of 1 function(s)")
	assert.Contains(t, out, "[L101]")
}

func TestCompileMissingDirectory(t *testing.T) {
	out, _, err := execute(t, "compile", "testdata/nowhere")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestCompileMalformedProgram(t *testing.T) {
	out, _, err := execute(t, "compile", "testdata/malformed")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Loading failed")
	assert.Contains(t, out, "F003")
}

// =============================================================================
// JSON output
// =============================================================================

func TestCompileJSONOutput(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "compile", "testdata/good")

	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	functions, ok := data["functions"].([]any)
	require.True(t, ok)
	require.Len(t, functions, 1)
}

func TestCompileJSONErrorOutput(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "compile", "testdata/malformed")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "F003", resp.Error.Code)
}

// =============================================================================
// Artifact cache
// =============================================================================

func TestCompileStoresAndReusesArtifacts(t *testing.T) {
	db := filepath.Join(t.TempDir(), "artifacts.db")

	out, _, err := execute(t, "compile", "--cache", db, "testdata/good")
	require.NoError(t, err)
	assert.Contains(t, out, "Artifacts: 1 stored, 0 reused")

	// Same input, same content hash: the second run writes nothing.
	out, _, err = execute(t, "compile", "--cache", db, "testdata/good")
	require.NoError(t, err)
	assert.Contains(t, out, "Artifacts: 0 stored, 1 reused")
}

func TestCompileRejectedFunctionEmitsNoArtifact(t *testing.T) {
	db := filepath.Join(t.TempDir(), "artifacts.db")

	_, _, err := execute(t, "compile", "--cache", db, "testdata/violating")
	require.Error(t, err)
	assert.Equal(t, ExitDiagnostics, GetExitCode(err))

	out, _, err := execute(t, "cache", "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "artifacts: 0")
}

// =============================================================================
// Dump file
// =============================================================================

func TestCompileWritesDumpFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lowered.txt")

	_, _, err := execute(t, "compile", "-o", path, "testdata/good")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "func pick")
	assert.Contains(t, string(data), "select")
}
