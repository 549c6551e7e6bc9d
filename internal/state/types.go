// Package state persists the workflow task registry and per-task documents.
//
// Two kinds of JSON documents live on disk:
//   - the global registry (one per project) listing active tasks, index 0
//     being the current one
//   - one task document per task, inside the task's workflow directory,
//     holding the authoritative phase
//
// Every operation is a whole-document read, mutate, write cycle. There is no
// locking: concurrent invocations are last-write-wins. Writes go to a temp
// file and are renamed into place, and a task document is always written
// before the registry so that a crash leaves the authoritative copy correct.
package state

import (
	"errors"

	"github.com/karimatan1106/workflow-plugin/internal/phases"
)

// TaskStateFile is the task document's name inside its workflow directory.
const TaskStateFile = "workflow-state.json"

// TaskLogFile is the human-readable work log created with each task.
const TaskLogFile = "log.md"

var (
	// ErrTaskNotFound means no active task has the requested id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskStateNotFound means the task document is missing or unreadable.
	ErrTaskStateNotFound = errors.New("task state not found")
)

// GlobalState is the project-wide task registry.
type GlobalState struct {
	Phase       phases.Phase    `json:"phase"`
	ActiveTasks []ActiveTask    `json:"activeTasks"`
	History     []HistoryEntry  `json:"history"`
	Checklist   map[string]bool `json:"checklist"`
}

// ActiveTask is the registry handle of one task. Phase caches the task
// document's phase.
type ActiveTask struct {
	TaskID      string          `json:"taskId"`
	TaskName    string          `json:"taskName"`
	WorkflowDir string          `json:"workflowDir"`
	Phase       phases.Phase    `json:"phase"`
	TaskSize    phases.TaskSize `json:"taskSize,omitempty"`
}

// HistoryEntry is one action record.
type HistoryEntry struct {
	Phase     phases.Phase `json:"phase"`
	Action    string       `json:"action"`
	Timestamp string       `json:"timestamp"`
	Details   string       `json:"details,omitempty"`
}

// ResetHistoryEntry records one reset back to research.
type ResetHistoryEntry struct {
	FromPhase phases.Phase `json:"fromPhase"`
	Reason    string       `json:"reason"`
	Timestamp string       `json:"timestamp"`
}

// SubPhases maps sub-phase names to their status.
type SubPhases map[phases.Phase]phases.SubPhaseStatus

// TaskState is the authoritative document of one task.
type TaskState struct {
	Phase           phases.Phase            `json:"phase"`
	TaskID          string                  `json:"taskId"`
	TaskName        string                  `json:"taskName"`
	WorkflowDir     string                  `json:"workflowDir"`
	DocsDir         string                  `json:"docsDir,omitempty"`
	StartedAt       string                  `json:"startedAt"`
	CompletedAt     string                  `json:"completedAt,omitempty"`
	Checklist       map[string]bool         `json:"checklist"`
	History         []HistoryEntry          `json:"history"`
	SubPhases       SubPhases               `json:"subPhases"`
	SubPhaseUpdates map[phases.Phase]string `json:"subPhaseUpdates,omitempty"`
	ResetHistory    []ResetHistoryEntry     `json:"resetHistory,omitempty"`
	TaskSize        phases.TaskSize         `json:"taskSize,omitempty"`
}

// Size returns the task size, or the default when unset.
func (t *TaskState) Size() phases.TaskSize {
	if t.TaskSize == "" {
		return phases.DefaultTaskSize
	}
	return t.TaskSize
}

// Progress exposes the sub-phase bookkeeping to rule derivation.
func (t *TaskState) Progress() phases.Progress {
	return phases.Progress{Updates: t.SubPhaseUpdates, Statuses: t.SubPhases}
}

// NewGlobalState returns the empty idle registry.
func NewGlobalState() *GlobalState {
	return &GlobalState{
		Phase:       phases.Idle,
		ActiveTasks: []ActiveTask{},
		History:     []HistoryEntry{},
		Checklist:   map[string]bool{},
	}
}

// normalize fills nil collections so documents written by older versions
// (or by hand) behave like fresh ones.
func (g *GlobalState) normalize() {
	if g.Phase == "" {
		g.Phase = phases.Idle
	}
	if g.ActiveTasks == nil {
		g.ActiveTasks = []ActiveTask{}
	}
	if g.History == nil {
		g.History = []HistoryEntry{}
	}
	if g.Checklist == nil {
		g.Checklist = map[string]bool{}
	}
}

func (t *TaskState) normalize() {
	if t.Checklist == nil {
		t.Checklist = map[string]bool{}
	}
	if t.History == nil {
		t.History = []HistoryEntry{}
	}
	if t.SubPhases == nil {
		t.SubPhases = SubPhases{}
	}
}

// InitialSubPhases returns every member of phase set to pending, or an
// empty map when phase is not a parallel group.
func InitialSubPhases(phase phases.Phase) SubPhases {
	out := SubPhases{}
	for _, sub := range phases.SubPhases(phase) {
		out[sub] = phases.SubPending
	}
	return out
}

// indexOf returns the registry position of taskID, or -1.
func (g *GlobalState) indexOf(taskID string) int {
	for i, t := range g.ActiveTasks {
		if t.TaskID == taskID {
			return i
		}
	}
	return -1
}
