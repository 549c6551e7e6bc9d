package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/engine"
	"github.com/karimatan1106/workflow-plugin/internal/phases"
)

// NextResult is the workflow_next payload.
type NextResult struct {
	Reply
	From            string          `json:"from"`
	To              string          `json:"to"`
	Description     string          `json:"description"`
	Completed       bool            `json:"completed,omitempty"`
	WorkflowContext WorkflowContext `json:"workflow_context"`
}

// NextTool handles workflow_next.
type NextTool struct {
	engine *engine.Engine
}

// NewNextTool creates a NextTool.
func NewNextTool(e *engine.Engine) *NextTool {
	return &NextTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *NextTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow_next",
		mcp.WithDescription(
			"次のフェーズへ遷移します。レビューフェーズでは承認が必要です。"+
				"並列フェーズでは全サブフェーズの完了が必要です。",
		),
	)
}

// Handle processes the workflow_next tool call.
func (t *NextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tr, err := t.engine.Next(ctx)
	if err != nil {
		return fail("フェーズ遷移", err)
	}
	return respond(NextResult{
		Reply: Reply{
			Success: true,
			Message: fmt.Sprintf("%s → %s に遷移しました", tr.From, tr.To),
		},
		From:        string(tr.From),
		To:          string(tr.To),
		Description: phases.Describe(tr.To),
		Completed:   tr.Completed,
		WorkflowContext: WorkflowContext{
			WorkflowDir:  tr.WorkflowDir,
			Phase:        string(tr.To),
			CurrentPhase: string(tr.From),
		},
	})
}
