// Package prompts implements MCP prompt handlers for the workflow.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/phases"
)

// StartPrompt handles the workflow-start MCP prompt.
// It asks the AI to open a task and walk the phase sequence.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("workflow-start",
		mcp.WithPromptDescription(
			"新しいタスクを開始し、research から completed までのフェーズを順に進めます。",
		),
		mcp.WithArgument("task_name",
			mcp.ArgumentDescription("タスク名（日本語可）"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the workflow-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	taskName := "新しいタスク"
	if args := req.Params.Arguments; args != nil {
		if name, ok := args["task_name"]; ok && strings.TrimSpace(name) != "" {
			taskName = name
		}
	}

	seq := phases.Strings(phases.Sequence(phases.DefaultTaskSize))

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("タスク開始: %s", taskName),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"タスク「%s」をワークフローに沿って進めたいです。\n\n"+
						"手順:\n"+
						"1. `workflow_start` を taskName='%s' で実行\n"+
						"2. 各フェーズで許可されたファイルだけを編集し、終わったら `workflow_next`\n"+
						"3. 並列フェーズでは `workflow_begin_sub` / `workflow_complete_sub` でサブフェーズを管理\n"+
						"4. design_review では私の承認を待ってから `workflow_approve` を type='design' で実行\n\n"+
						"フェーズ順序: %s",
					taskName, taskName, strings.Join(seq, " → "),
				)),
			},
		},
	}, nil
}
