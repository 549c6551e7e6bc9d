package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/engine"
	"github.com/karimatan1106/workflow-plugin/internal/phases"
)

// SubPhaseResult is the payload of workflow_complete_sub and
// workflow_begin_sub.
type SubPhaseResult struct {
	Reply
	SubPhase        string           `json:"subPhase"`
	Phase           string           `json:"phase"`
	Remaining       []string         `json:"remaining"`
	AllCompleted    bool             `json:"allCompleted"`
	WorkflowContext *WorkflowContext `json:"workflow_context,omitempty"`
}

var subPhaseNames = func() []string {
	var out []string
	for _, p := range phases.Sequence(phases.DefaultTaskSize) {
		out = append(out, phases.Strings(phases.SubPhases(p))...)
	}
	return out
}()

func subPhaseParam() mcp.ToolOption {
	return mcp.WithString("subPhase",
		mcp.Required(),
		mcp.Description("サブフェーズ名（例: "+strings.Join(subPhaseNames, ", ")+"）"),
	)
}

// CompleteSubTool handles workflow_complete_sub.
type CompleteSubTool struct {
	engine *engine.Engine
}

// NewCompleteSubTool creates a CompleteSubTool.
func NewCompleteSubTool(e *engine.Engine) *CompleteSubTool {
	return &CompleteSubTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *CompleteSubTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow_complete_sub",
		mcp.WithDescription(
			"並列フェーズのサブフェーズを完了としてマークします。"+
				"全サブフェーズが完了すると次のフェーズに進めます。",
		),
		subPhaseParam(),
	)
}

// Handle processes the workflow_complete_sub tool call.
func (t *CompleteSubTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := t.engine.CompleteSub(ctx, req.GetString("subPhase", ""))
	if err != nil {
		return fail("サブフェーズ完了処理", err)
	}

	remaining := phases.Strings(u.Remaining)
	msg := fmt.Sprintf("%sを完了しました。残り: %s", u.SubPhase, strings.Join(remaining, ", "))
	if u.AllCompleted {
		msg = fmt.Sprintf("%sを完了しました。全て完了。workflow_next で次へ進めます", u.SubPhase)
	}
	return respond(SubPhaseResult{
		Reply:        Reply{Success: true, Message: msg},
		SubPhase:     string(u.SubPhase),
		Phase:        string(u.Phase),
		Remaining:    remaining,
		AllCompleted: u.AllCompleted,
		WorkflowContext: &WorkflowContext{
			WorkflowDir:  u.WorkflowDir,
			Phase:        string(u.Phase),
			CurrentPhase: string(u.Phase),
			SubPhase:     string(u.SubPhase),
		},
	})
}

// BeginSubTool handles workflow_begin_sub.
type BeginSubTool struct {
	engine *engine.Engine
}

// NewBeginSubTool creates a BeginSubTool.
func NewBeginSubTool(e *engine.Engine) *BeginSubTool {
	return &BeginSubTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *BeginSubTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow_begin_sub",
		mcp.WithDescription(
			"並列フェーズのサブフェーズを作業中としてマークします。"+
				"作業中のサブフェーズの編集ルールが適用されます。",
		),
		subPhaseParam(),
	)
}

// Handle processes the workflow_begin_sub tool call.
func (t *BeginSubTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := t.engine.BeginSub(ctx, req.GetString("subPhase", ""))
	if err != nil {
		return fail("サブフェーズ開始処理", err)
	}
	return respond(SubPhaseResult{
		Reply: Reply{
			Success: true,
			Message: fmt.Sprintf("%sを開始しました。完了したら workflow_complete_sub で完了してください", u.SubPhase),
		},
		SubPhase:  string(u.SubPhase),
		Phase:     string(u.Phase),
		Remaining: phases.Strings(u.Remaining),
	})
}
