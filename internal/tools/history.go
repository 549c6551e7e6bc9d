package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/journal"
)

// HistoryReader is the read side of the event journal.
type HistoryReader interface {
	History(ctx context.Context, taskID string, limit int) ([]journal.Entry, error)
}

// MsgJournalUnavailable is returned when the server runs without a journal.
const MsgJournalUnavailable = "イベント履歴が利用できません（ジャーナル未接続）"

// HistoryResult is the workflow_history payload.
type HistoryResult struct {
	Reply
	TaskID string          `json:"taskId,omitempty"`
	Events []journal.Entry `json:"events"`
}

// HistoryTool handles workflow_history.
type HistoryTool struct {
	journal HistoryReader
}

// NewHistoryTool creates a HistoryTool. A nil reader makes every call
// fail with MsgJournalUnavailable.
func NewHistoryTool(r HistoryReader) *HistoryTool {
	return &HistoryTool{journal: r}
}

// Definition returns the MCP tool definition for registration.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow_history",
		mcp.WithDescription(
			"ワークフローの状態変更履歴を新しい順に返します。"+
				"taskId を省略すると全タスクの履歴を返します。",
		),
		mcp.WithString("taskId",
			mcp.Description("タスクID（省略時: 全タスク）"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("取得件数（省略時: %d）", journal.DefaultLimit)),
		),
	)
}

// Handle processes the workflow_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.journal == nil {
		return fail("履歴取得", errors.New(MsgJournalUnavailable))
	}
	taskID := req.GetString("taskId", "")
	limit := int(req.GetFloat("limit", float64(journal.DefaultLimit)))

	events, err := t.journal.History(ctx, taskID, limit)
	if err != nil {
		return fail("履歴取得", err)
	}

	msg := "履歴はありません"
	if len(events) > 0 {
		msg = fmt.Sprintf("%d件の履歴があります", len(events))
	}
	return respond(HistoryResult{
		Reply:  Reply{Success: true, Message: msg},
		TaskID: taskID,
		Events: events,
	})
}
