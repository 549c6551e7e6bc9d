package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/engine"
	"github.com/karimatan1106/workflow-plugin/internal/phases"
	"github.com/karimatan1106/workflow-plugin/internal/state"
)

// TaskSummary is one registry entry as shown by status and list.
type TaskSummary struct {
	TaskID      string `json:"taskId" yaml:"taskId"`
	TaskName    string `json:"taskName" yaml:"taskName"`
	Phase       string `json:"phase" yaml:"phase"`
	WorkflowDir string `json:"workflowDir,omitempty" yaml:"workflowDir,omitempty"`
}

// StatusResult is the workflow_status payload. The status CLI prints it too.
type StatusResult struct {
	Success         bool            `json:"success" yaml:"success"`
	Status          string          `json:"status" yaml:"status"`
	Message         string          `json:"message" yaml:"message"`
	TaskID          string          `json:"taskId,omitempty" yaml:"taskId,omitempty"`
	TaskName        string          `json:"taskName,omitempty" yaml:"taskName,omitempty"`
	Phase           string          `json:"phase,omitempty" yaml:"phase,omitempty"`
	WorkflowDir     string          `json:"workflowDir,omitempty" yaml:"workflowDir,omitempty"`
	ActiveTasks     int             `json:"activeTasks,omitempty" yaml:"activeTasks,omitempty"`
	AllTasks        []TaskSummary   `json:"allTasks,omitempty" yaml:"allTasks,omitempty"`
	TaskSize        string          `json:"taskSize,omitempty" yaml:"taskSize,omitempty"`
	SubPhases       state.SubPhases `json:"subPhases,omitempty" yaml:"subPhases,omitempty"`
	IsParallelPhase bool            `json:"isParallelPhase,omitempty" yaml:"isParallelPhase,omitempty"`
}

// MsgIdle is the status message when no task exists.
const MsgIdle = "タスクなし。workflow_start でタスクを開始してください"

// BuildStatus turns an engine snapshot into the status payload.
func BuildStatus(s *engine.Status) StatusResult {
	if s.Idle {
		return StatusResult{Success: true, Status: "idle", Message: MsgIdle}
	}
	phase := s.State.Phase
	r := StatusResult{
		Success:     true,
		Status:      "active",
		TaskID:      s.Task.TaskID,
		TaskName:    s.Task.TaskName,
		Phase:       string(phase),
		WorkflowDir: s.Task.WorkflowDir,
		ActiveTasks: len(s.ActiveTasks),
		Message:     phases.Describe(phase),
		TaskSize:    string(s.State.Size()),
	}
	for _, t := range s.ActiveTasks {
		r.AllTasks = append(r.AllTasks, TaskSummary{TaskID: t.TaskID, TaskName: t.TaskName, Phase: string(t.Phase)})
	}
	if phases.IsParallel(phase) {
		r.SubPhases = s.State.SubPhases
		r.IsParallelPhase = true
	}
	return r
}

// StatusTool handles workflow_status.
type StatusTool struct {
	engine *engine.Engine
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(e *engine.Engine) *StatusTool {
	return &StatusTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow_status",
		mcp.WithDescription(
			"現在のワークフロー状態を取得します。アクティブなタスク、フェーズ、"+
				"並列フェーズのサブフェーズ状態などを返します。",
		),
	)
}

// Handle processes the workflow_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := t.engine.Status(ctx)
	if err != nil {
		if r, ok := engine.AsRejection(err); ok {
			return respond(StatusResult{Success: false, Status: "error", Message: r.Message})
		}
		return fail("状態取得", err)
	}
	return respond(BuildStatus(s))
}
