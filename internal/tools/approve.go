package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/engine"
	"github.com/karimatan1106/workflow-plugin/internal/phases"
)

// ApproveResult is the workflow_approve payload.
type ApproveResult struct {
	Reply
	Approved  string `json:"approved"`
	NextPhase string `json:"nextPhase"`
}

// ApproveTool handles workflow_approve.
type ApproveTool struct {
	engine *engine.Engine
}

// NewApproveTool creates an ApproveTool.
func NewApproveTool(e *engine.Engine) *ApproveTool {
	return &ApproveTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *ApproveTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow_approve",
		mcp.WithDescription(`レビューフェーズを承認します。design_reviewフェーズでは "design" を指定します。`),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("承認タイプ（design）"),
			mcp.Enum(phases.ApprovalTypes()...),
		),
	)
}

// Handle processes the workflow_approve tool call.
func (t *ApproveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := t.engine.Approve(ctx, req.GetString("type", ""))
	if err != nil {
		return fail("承認処理", err)
	}
	return respond(ApproveResult{
		Reply: Reply{
			Success: true,
			Message: fmt.Sprintf("%sレビューを承認しました。次のフェーズ: %s", a.Type, a.Next),
		},
		Approved:  a.Type,
		NextPhase: string(a.Next),
	})
}
