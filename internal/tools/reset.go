package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/engine"
)

// ResetResult is the workflow_reset payload.
type ResetResult struct {
	Reply
	TaskID    string `json:"taskId"`
	FromPhase string `json:"fromPhase"`
	ToPhase   string `json:"toPhase"`
	Reason    string `json:"reason"`
}

// ResetTool handles workflow_reset.
type ResetTool struct {
	engine *engine.Engine
}

// NewResetTool creates a ResetTool.
func NewResetTool(e *engine.Engine) *ResetTool {
	return &ResetTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *ResetTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow_reset",
		mcp.WithDescription("現在のタスクをresearchフェーズにリセットします。リセット理由を記録できます。"),
		mcp.WithString("reason",
			mcp.Description("リセット理由（オプション）"),
		),
	)
}

// Handle processes the workflow_reset tool call.
func (t *ResetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := t.engine.Reset(ctx, req.GetString("reason", ""))
	if err != nil {
		return fail("リセット", err)
	}
	return respond(ResetResult{
		Reply: Reply{
			Success: true,
			Message: fmt.Sprintf("%s → %s にリセットしました", r.From, r.To),
		},
		TaskID:    r.TaskID,
		FromPhase: string(r.From),
		ToPhase:   string(r.To),
		Reason:    r.Reason,
	})
}
