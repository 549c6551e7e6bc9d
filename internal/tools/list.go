package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/engine"
)

// ListResult is the workflow_list payload.
type ListResult struct {
	Reply
	Tasks []TaskSummary `json:"tasks"`
}

// ListTool handles workflow_list.
type ListTool struct {
	engine *engine.Engine
}

// NewListTool creates a ListTool.
func NewListTool(e *engine.Engine) *ListTool {
	return &ListTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow_list",
		mcp.WithDescription("アクティブなタスクの一覧を取得します。各タスクのID、名前、現在のフェーズを返します。"),
	)
}

// Handle processes the workflow_list tool call. Each task shows the phase
// of its own document, falling back to the registry's cached copy.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handles, err := t.engine.List(ctx)
	if err != nil {
		return fail("タスク一覧取得", err)
	}

	tasks := make([]TaskSummary, 0, len(handles))
	for _, h := range handles {
		phase := h.Phase
		if ts, err := t.engine.Manager().ReadTask(h.WorkflowDir); err == nil {
			phase = ts.Phase
		}
		tasks = append(tasks, TaskSummary{
			TaskID:      h.TaskID,
			TaskName:    h.TaskName,
			Phase:       string(phase),
			WorkflowDir: h.WorkflowDir,
		})
	}

	msg := "アクティブなタスクはありません"
	if len(tasks) > 0 {
		msg = fmt.Sprintf("%d件のアクティブタスクがあります", len(tasks))
	}
	return respond(ListResult{Reply: Reply{Success: true, Message: msg}, Tasks: tasks})
}
