package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the workflow-status MCP prompt.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("workflow-status",
		mcp.WithPromptDescription(
			"現在のタスクとフェーズを確認し、次に何をすべきかを示します。",
		),
	)
}

// Handle processes the workflow-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Workflow Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"`workflow_status` を実行して現在の状態を確認してください。\n\n" +
						"その上で:\n" +
						"1. 現在のタスクとフェーズを簡潔に示す\n" +
						"2. このフェーズで編集できるファイル種別を示す\n" +
						"3. 並列フェーズなら未完了のサブフェーズを列挙する\n" +
						"4. 次に実行すべき操作を具体的に示す",
				),
			},
		},
	}, nil
}
