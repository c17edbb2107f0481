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

func writeScenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestTestCommand_AllPassing(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"activate.yaml": passingScenarioYAML,
	})

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "ok   activate_once")
	assert.Contains(t, output, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_ReportsFailures(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"good.yaml": passingScenarioYAML,
		"bad.yaml":  failingScenarioYAML,
	})

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "FAIL wrong_expectation")
	assert.Contains(t, output, "1 passed, 1 failed, 2 total")
}

func TestTestCommand_FilterSelectsByName(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"good.yaml": passingScenarioYAML,
		"bad.yaml":  failingScenarioYAML,
	})

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--filter", "good"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "1 passed, 0 failed, 1 total")
}

func TestTestCommand_JSONOutput(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"good.yaml": passingScenarioYAML,
		"bad.yaml":  failingScenarioYAML,
	})

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["passed"])
	assert.Equal(t, float64(1), data["failed"])
}

func TestTestCommand_GoldenUpdateThenCompare(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"activate.yaml": passingScenarioYAML,
	})

	update := NewTestCommand(&RootOptions{Format: "text"})
	update.SetOut(&bytes.Buffer{})
	update.SetArgs([]string{dir, "--update"})
	require.NoError(t, update.Execute())

	goldenPath := filepath.Join(dir, "activate.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"activate_once"`)

	rerun := NewTestCommand(&RootOptions{Format: "text"})
	rerun.SetOut(&bytes.Buffer{})
	rerun.SetArgs([]string{dir})
	require.NoError(t, rerun.Execute())
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"activate.yaml": passingScenarioYAML,
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "activate.golden"), []byte("{}"), 0o644))

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "does not match")
}

func TestTestCommand_MissingDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_EmptyDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "no scenarios found")
}
