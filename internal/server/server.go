// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources. No business logic
// lives here, only wiring.
package server

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/karimatan1106/workflow-plugin/internal/config"
	"github.com/karimatan1106/workflow-plugin/internal/engine"
	"github.com/karimatan1106/workflow-plugin/internal/journal"
	"github.com/karimatan1106/workflow-plugin/internal/logging"
	"github.com/karimatan1106/workflow-plugin/internal/prompts"
	"github.com/karimatan1106/workflow-plugin/internal/resources"
	"github.com/karimatan1106/workflow-plugin/internal/state"
	"github.com/karimatan1106/workflow-plugin/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// openJournal is swapped in tests.
var openJournal = journal.Open

// New creates and configures the MCP server with all tools, prompts and
// resources registered.
//
// The returned cleanup function closes the journal and must be called on
// shutdown. It is always non-nil and safe to call even if the journal
// could not be opened.
func New(cfg *config.Config) (*server.MCPServer, func()) {
	// --- Create shared dependencies ---

	mgr := state.NewManager(state.NewFileStore(cfg.GlobalStateFile), cfg.WorkflowDir, cfg.DocsDir)

	// The journal is an independent subsystem: if it fails to open the
	// workflow tools keep working without history.
	cleanup := noop
	var opts []engine.Option
	var history tools.HistoryReader

	j, err := openJournal(cfg.JournalFile)
	if err != nil {
		log.Printf("WARNING: journal disabled: %v", err)
	} else {
		opts = append(opts, engine.WithRecorder(j))
		history = j
		cleanup = func() {
			if err := j.Close(); err != nil {
				log.Printf("WARNING: journal close: %v", err)
			}
		}
	}

	eng := engine.New(mgr, opts...)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"workflow-plugin",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(logToolCalls),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register workflow tools ---

	statusTool := tools.NewStatusTool(eng)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	startTool := tools.NewStartTool(eng)
	s.AddTool(startTool.Definition(), startTool.Handle)

	nextTool := tools.NewNextTool(eng)
	s.AddTool(nextTool.Definition(), nextTool.Handle)

	approveTool := tools.NewApproveTool(eng)
	s.AddTool(approveTool.Definition(), approveTool.Handle)

	resetTool := tools.NewResetTool(eng)
	s.AddTool(resetTool.Definition(), resetTool.Handle)

	listTool := tools.NewListTool(eng)
	s.AddTool(listTool.Definition(), listTool.Handle)

	switchTool := tools.NewSwitchTool(eng)
	s.AddTool(switchTool.Definition(), switchTool.Handle)

	completeSubTool := tools.NewCompleteSubTool(eng)
	s.AddTool(completeSubTool.Definition(), completeSubTool.Handle)

	beginSubTool := tools.NewBeginSubTool(eng)
	s.AddTool(beginSubTool.Definition(), beginSubTool.Handle)

	// Registered unconditionally; a nil reader answers with a clear
	// "journal unavailable" failure.
	historyTool := tools.NewHistoryTool(history)
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(eng)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)
	s.AddResource(resourceHandler.PhasesResource(), resourceHandler.HandlePhases)

	return s, cleanup
}

// logToolCalls tags the context with the tool name and logs each call's
// outcome and duration.
func logToolCalls(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = logging.WithTool(ctx, req.Params.Name)
		start := time.Now()
		res, err := next(ctx, req)
		level := slog.LevelInfo
		if err != nil || (res != nil && res.IsError) {
			level = slog.LevelWarn
		}
		logging.LogDuration(ctx, level, "tool call", start)
		return res, err
	}
}

// noop is the cleanup used when the journal is disabled.
func noop() {}

// serverInstructions tells the AI how the workflow is meant to be driven.
func serverInstructions() string {
	return `You have access to a phase-gated development workflow.

Every task moves through a fixed sequence of phases:
research → requirements → parallel_analysis → parallel_design → design_review →
test_design → test_impl → implementation → refactoring → parallel_quality →
testing → parallel_verification → docs_update → commit → push →
ci_verification → deploy → completed.

## RULES

- Start work with workflow_start. Check where you are with workflow_status.
- Each phase only allows editing certain file categories. Edits outside them
  are blocked by the phase-guard hook with an explanation; do not try to work
  around the block, finish the phase instead.
- Advance with workflow_next when the phase's work is done.
- Parallel phases (parallel_*) contain sub-phases. Mark the one you are
  working on with workflow_begin_sub and finish it with workflow_complete_sub.
  workflow_next is refused until every sub-phase is completed.
- design_review needs the USER's approval. Present the design, wait for an
  explicit yes, then call workflow_approve with type "design".
- TDD order is enforced: test_impl writes failing tests (code is read-only),
  implementation makes them pass (tests are read-only), refactoring may touch
  both.
- workflow_reset sends the task back to research when it has gone off track.
  Always give a reason.
- workflow_history shows what happened to a task, newest first.`
}
