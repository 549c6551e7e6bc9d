package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/engine"
)

// StartResult is the workflow_start payload.
type StartResult struct {
	Reply
	TaskID      string `json:"taskId"`
	TaskName    string `json:"taskName"`
	Phase       string `json:"phase"`
	WorkflowDir string `json:"workflowDir"`
	DocsDir     string `json:"docsDir,omitempty"`
	TaskSize    string `json:"taskSize"`
}

// StartTool handles workflow_start.
type StartTool struct {
	engine *engine.Engine
}

// NewStartTool creates a StartTool.
func NewStartTool(e *engine.Engine) *StartTool {
	return &StartTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *StartTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow_start",
		mcp.WithDescription("新規ワークフロータスクを開始します。タスク名を指定して、researchフェーズから開始します。"),
		mcp.WithString("taskName",
			mcp.Required(),
			mcp.Description("タスク名（日本語可）"),
		),
		mcp.WithString("size",
			mcp.Description("タスクサイズ（省略時: large）"),
			mcp.Enum("large"),
		),
	)
}

// Handle processes the workflow_start tool call.
func (t *StartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ts, err := t.engine.Start(ctx, req.GetString("taskName", ""), req.GetString("size", ""))
	if err != nil {
		return fail("タスク開始", err)
	}
	return respond(StartResult{
		Reply: Reply{
			Success: true,
			Message: fmt.Sprintf("タスク「%s」を開始しました。フェーズ: %s、サイズ: %s", ts.TaskName, ts.Phase, ts.Size()),
		},
		TaskID:      ts.TaskID,
		TaskName:    ts.TaskName,
		Phase:       string(ts.Phase),
		WorkflowDir: ts.WorkflowDir,
		DocsDir:     ts.DocsDir,
		TaskSize:    string(ts.Size()),
	})
}
