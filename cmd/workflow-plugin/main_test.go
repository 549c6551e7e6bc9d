package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/karimatan1106/workflow-plugin/internal/config"
	"github.com/karimatan1106/workflow-plugin/internal/engine"
	"github.com/karimatan1106/workflow-plugin/internal/state"
)

// run executes the root command and returns stdout, stderr and the code
// passed to exit (-1 when exit was not called).
func run(t *testing.T, stdin string, args ...string) (string, string, int, error) {
	t.Helper()
	code := -1
	origExit := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = origExit })

	statusFormat = "json"
	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), code, err
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, env := range []string{"STATE_DIR", "WORKFLOW_DIR", "DOCS_DIR", "GLOBAL_STATE_FILE", "WORKFLOW_LOG_DIR", "WORKFLOW_JOURNAL_FILE", "SKIP_PHASE_GUARD"} {
		t.Setenv(env, "")
	}
	return dir
}

func startTask(t *testing.T, dir, name string) {
	t.Helper()
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	mgr := state.NewManager(state.NewFileStore(cfg.GlobalStateFile), cfg.WorkflowDir, cfg.DocsDir)
	_, err = engine.New(mgr).Start(context.Background(), name, "")
	require.NoError(t, err)
}

func TestVersion(t *testing.T) {
	out, _, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "workflow-plugin v")
	assert.Contains(t, out, "Go version:")
}

func TestStatus_JSONAndYAML(t *testing.T) {
	dir := newProject(t)

	out, _, _, err := run(t, "", "status", "--project-dir", dir)
	require.NoError(t, err)
	var idle map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &idle))
	assert.Equal(t, "idle", idle["status"])

	startTask(t, dir, "cli")
	out, _, _, err = run(t, "", "status", "--project-dir", dir, "--format", "yaml")
	require.NoError(t, err)
	var active map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &active))
	assert.Equal(t, "active", active["status"])
	assert.Equal(t, "research", active["phase"])
	assert.Equal(t, "cli", active["taskName"])
}

func TestStatus_BadFormat(t *testing.T) {
	_, _, _, err := run(t, "", "status", "--project-dir", newProject(t), "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestHook_UnknownName(t *testing.T) {
	_, _, code, err := run(t, "{}", "hook", "nope")
	require.Error(t, err)
	assert.Equal(t, -1, code)
	assert.Contains(t, err.Error(), "phase-guard")
}

func TestHook_PhaseGuard(t *testing.T) {
	dir := newProject(t)
	input := `{"tool_name":"Write","tool_input":{"file_path":"src/index.ts"}}`

	_, _, code, err := run(t, input, "hook", "phase-guard", "--project-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, 0, code, "no task means allow")

	startTask(t, dir, "guarded")
	_, stderr, code, err := run(t, input, "hook", "phase-guard", "--project-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, 2, code, "research is read-only")
	assert.Contains(t, stderr, "フェーズ別編集制限違反")
}

func TestHook_MalformedInputAllows(t *testing.T) {
	dir := newProject(t)
	_, _, code, err := run(t, "not json", "hook", "phase-guard", "--project-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}
