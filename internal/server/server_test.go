package server

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/server"

	"github.com/karimatan1106/workflow-plugin/internal/config"
	"github.com/karimatan1106/workflow-plugin/internal/journal"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ProjectDir = dir
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.WorkflowDir = filepath.Join(cfg.StateDir, "workflows")
	cfg.GlobalStateFile = filepath.Join(cfg.StateDir, "workflow-state.json")
	cfg.JournalFile = filepath.Join(cfg.StateDir, "journal.db")
	cfg.DocsDir = filepath.Join(dir, "docs")
	return cfg
}

func send(t *testing.T, s *server.MCPServer, method string, params any) string {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp := s.HandleMessage(context.Background(), msg)
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return string(out)
}

func initialize(t *testing.T, s *server.MCPServer) {
	t.Helper()
	send(t, s, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
		"capabilities":    map[string]any{},
	})
}

var wantTools = []string{
	"workflow_status", "workflow_start", "workflow_next", "workflow_approve",
	"workflow_reset", "workflow_list", "workflow_switch", "workflow_complete_sub",
	"workflow_begin_sub", "workflow_history",
}

func TestNew_RegistersTools(t *testing.T) {
	s, cleanup := New(testConfig(t))
	defer cleanup()
	initialize(t, s)

	out := send(t, s, "tools/list", map[string]any{})
	for _, name := range wantTools {
		if !strings.Contains(out, `"`+name+`"`) {
			t.Errorf("tools/list is missing %s", name)
		}
	}
}

func TestNew_StartThroughServer(t *testing.T) {
	s, cleanup := New(testConfig(t))
	defer cleanup()
	initialize(t, s)

	out := send(t, s, "tools/call", map[string]any{
		"name":      "workflow_start",
		"arguments": map[string]any{"taskName": "server"},
	})
	if !strings.Contains(out, `\"success\": true`) {
		t.Errorf("workflow_start did not succeed: %s", out)
	}

	out = send(t, s, "tools/call", map[string]any{
		"name":      "workflow_history",
		"arguments": map[string]any{},
	})
	if !strings.Contains(out, "task_started") {
		t.Errorf("history should contain task_started: %s", out)
	}
}

func TestNew_JournalUnavailable(t *testing.T) {
	orig := openJournal
	openJournal = func(string) (*journal.Journal, error) { return nil, errors.New("disk full") }
	t.Cleanup(func() { openJournal = orig })

	s, cleanup := New(testConfig(t))
	if cleanup == nil {
		t.Fatal("cleanup must never be nil")
	}
	defer cleanup()
	initialize(t, s)

	out := send(t, s, "tools/call", map[string]any{
		"name":      "workflow_history",
		"arguments": map[string]any{},
	})
	if !strings.Contains(out, "ジャーナル未接続") {
		t.Errorf("history should report the missing journal: %s", out)
	}

	out = send(t, s, "tools/call", map[string]any{
		"name":      "workflow_start",
		"arguments": map[string]any{"taskName": "still works"},
	})
	if !strings.Contains(out, `\"success\": true`) {
		t.Errorf("workflow_start should work without a journal: %s", out)
	}
}

func TestServerInstructions(t *testing.T) {
	if !strings.Contains(serverInstructions(), "workflow_approve") {
		t.Error("instructions should explain approval")
	}
}
