package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/engine"
)

// SwitchResult is the workflow_switch payload.
type SwitchResult struct {
	Reply
	TaskID   string `json:"taskId"`
	TaskName string `json:"taskName"`
	Phase    string `json:"phase"`
}

// SwitchTool handles workflow_switch.
type SwitchTool struct {
	engine *engine.Engine
}

// NewSwitchTool creates a SwitchTool.
func NewSwitchTool(e *engine.Engine) *SwitchTool {
	return &SwitchTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *SwitchTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow_switch",
		mcp.WithDescription("別のタスクに切り替えます。指定されたタスクがアクティブタスクの先頭になります。"),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("タスクID（例: 20260115_123456）"),
		),
	)
}

// Handle processes the workflow_switch tool call.
func (t *SwitchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := t.engine.Switch(ctx, req.GetString("taskId", ""))
	if err != nil {
		return fail("タスク切り替え", err)
	}
	return respond(SwitchResult{
		Reply: Reply{
			Success: true,
			Message: fmt.Sprintf("タスク「%s」に切り替えました", task.TaskName),
		},
		TaskID:   task.TaskID,
		TaskName: task.TaskName,
		Phase:    string(task.Phase),
	})
}
