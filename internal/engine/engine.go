// Package engine implements the workflow operations: starting tasks,
// advancing phases, approvals, parallel sub-phases, resets and task
// switching.
//
// Every operation re-reads the documents from disk, validates against the
// current phase, asks the phase machine for the transition and persists the
// outcome. Refusals the user can act on are returned as *Rejection; anything
// else is an *OperationError naming the failed operation.
package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/karimatan1106/workflow-plugin/internal/phases"
	"github.com/karimatan1106/workflow-plugin/internal/state"
)

// Engine runs workflow operations against a state manager.
type Engine struct {
	mgr      *state.Manager
	recorder Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder attaches a journal for state mutations.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New creates an engine over mgr.
func New(mgr *state.Manager, opts ...Option) *Engine {
	e := &Engine{mgr: mgr}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Manager returns the underlying state manager.
func (e *Engine) Manager() *state.Manager {
	return e.mgr
}

// current loads the registry's first task and its document.
func (e *Engine) current() (*state.ActiveTask, *state.TaskState, error) {
	task, err := e.mgr.CurrentTask()
	if err != nil {
		return nil, nil, err
	}
	if task == nil {
		return nil, nil, reject(MsgNoActiveTask)
	}
	ts, err := e.mgr.ReadTask(task.WorkflowDir)
	if err != nil {
		if errors.Is(err, state.ErrTaskStateNotFound) {
			return nil, nil, reject(MsgTaskStateNotFound)
		}
		return nil, nil, err
	}
	return task, ts, nil
}

// --- Status / list ---

// Status is a snapshot of the current task.
type Status struct {
	// Idle is true when no task is registered; the other fields are then empty.
	Idle        bool
	Task        state.ActiveTask
	State       *state.TaskState
	ActiveTasks []state.ActiveTask
}

// Status returns the current task and its document. For a parallel group
// with no recorded sub-phases, the returned document shows every member as
// pending.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	g, err := e.mgr.ReadGlobal()
	if err != nil {
		return nil, opErr("状態取得", err)
	}
	if len(g.ActiveTasks) == 0 {
		return &Status{Idle: true, ActiveTasks: []state.ActiveTask{}}, nil
	}

	task := g.ActiveTasks[0]
	ts, err := e.mgr.ReadTask(task.WorkflowDir)
	if err != nil {
		if errors.Is(err, state.ErrTaskStateNotFound) {
			return nil, reject(MsgTaskStateNotFound)
		}
		return nil, opErr("状態取得", err)
	}
	if phases.IsParallel(ts.Phase) && len(ts.SubPhases) == 0 {
		ts.SubPhases = state.InitialSubPhases(ts.Phase)
	}
	return &Status{Task: task, State: ts, ActiveTasks: g.ActiveTasks}, nil
}

// List returns the registered tasks, current first.
func (e *Engine) List(ctx context.Context) ([]state.ActiveTask, error) {
	g, err := e.mgr.ReadGlobal()
	if err != nil {
		return nil, opErr("タスク一覧取得", err)
	}
	return g.ActiveTasks, nil
}

// --- Start ---

// Start creates a task and makes it current. An empty size means large.
func (e *Engine) Start(ctx context.Context, name, size string) (*state.TaskState, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, reject(MsgMissingTaskName)
	}
	taskSize := phases.TaskSize(strings.TrimSpace(size))
	if taskSize == "" {
		taskSize = phases.DefaultTaskSize
	}
	if err := phases.ValidateTaskSize(taskSize); err != nil {
		return nil, invalidValue("タスクサイズ", string(taskSize), phases.ValidTaskSizes())
	}

	ts, err := e.mgr.CreateTask(name, taskSize)
	if err != nil {
		return nil, opErr("タスク開始", err)
	}
	e.record(ctx, Event{TaskID: ts.TaskID, Kind: KindTaskStarted, To: ts.Phase, Detail: name})
	return ts, nil
}

// --- Next / approve ---

// Transition describes one phase change.
type Transition struct {
	TaskID      string
	From        phases.Phase
	To          phases.Phase
	WorkflowDir string
	// Completed is true when the transition reached completed and the task
	// left the registry.
	Completed bool
}

// Next advances the current task one phase. It refuses a completed task,
// a review phase (which needs Approve), and a parallel group with
// unfinished sub-phases. Reaching completed finalizes the task.
func (e *Engine) Next(ctx context.Context) (*Transition, error) {
	task, ts, err := e.current()
	if err != nil {
		return nil, err
	}
	from := ts.Phase

	if from == phases.Completed {
		return nil, reject(MsgAlreadyCompleted)
	}
	if phases.RequiresApproval(from) {
		return nil, reject("%sフェーズはユーザー承認が必要です。workflow_approve で承認してください", from)
	}
	var incomplete []phases.Phase
	if phases.IsParallel(from) {
		incomplete, err = e.mgr.IncompleteSubPhases(task.TaskID)
		if err != nil {
			return nil, opErr("フェーズ遷移", err)
		}
		if len(incomplete) > 0 {
			return nil, reject("並列フェーズの未完了サブフェーズがあります: %s。workflow_complete_sub で完了してください",
				strings.Join(phases.Strings(incomplete), ", "))
		}
	}
	if _, ok := phases.Next(from, ts.Size()); !ok {
		return nil, reject(MsgCannotProceed)
	}

	m, err := newPhaseMachine(from, ts.Size(), incomplete)
	if err != nil {
		return nil, reject(MsgCannotProceed)
	}
	to, err := m.fire(eventNext)
	if err != nil {
		return nil, reject(MsgCannotProceed)
	}

	if err := e.mgr.UpdateTaskPhase(task.TaskID, to); err != nil {
		return nil, opErr("フェーズ遷移", err)
	}
	e.record(ctx, Event{TaskID: task.TaskID, Kind: KindPhaseAdvanced, From: from, To: to})

	t := &Transition{TaskID: task.TaskID, From: from, To: to, WorkflowDir: ts.WorkflowDir}
	if to == phases.Completed {
		if err := e.mgr.CompleteTask(task.TaskID); err != nil {
			return nil, opErr("タスク完了処理", err)
		}
		t.Completed = true
		e.record(ctx, Event{TaskID: task.TaskID, Kind: KindTaskCompleted, From: from, To: to})
	}
	return t, nil
}

// Approval describes an accepted review.
type Approval struct {
	TaskID string
	Type   string
	From   phases.Phase
	Next   phases.Phase
}

// Approve accepts the review named by approvalType and jumps straight to
// its target phase. The current phase must be the review's phase.
func (e *Engine) Approve(ctx context.Context, approvalType string) (*Approval, error) {
	approvalType = strings.TrimSpace(approvalType)
	if approvalType == "" {
		return nil, reject(MsgMissingApprovalType)
	}
	gate, ok := phases.Approvals[approvalType]
	if !ok {
		return nil, reject("不明な承認タイプ: %s。有効: %s", approvalType, strings.Join(phases.ApprovalTypes(), ", "))
	}

	task, ts, err := e.current()
	if err != nil {
		return nil, err
	}
	if ts.Phase != gate.Expected {
		return nil, phaseMismatch(string(gate.Expected), string(ts.Phase))
	}

	m, err := newPhaseMachine(ts.Phase, ts.Size(), nil)
	if err != nil {
		return nil, opErr("承認処理", err)
	}
	to, err := m.fire(approveEvent(approvalType))
	if err != nil {
		return nil, opErr("承認処理", err)
	}

	if err := e.mgr.UpdateTaskPhase(task.TaskID, to); err != nil {
		return nil, opErr("承認処理", err)
	}
	e.record(ctx, Event{TaskID: task.TaskID, Kind: KindApproved, From: ts.Phase, To: to, Detail: approvalType})
	return &Approval{TaskID: task.TaskID, Type: approvalType, From: ts.Phase, Next: to}, nil
}

// --- Sub-phases ---

// SubPhaseUpdate describes a sub-phase status change.
type SubPhaseUpdate struct {
	TaskID       string
	Phase        phases.Phase
	SubPhase     phases.Phase
	Remaining    []phases.Phase
	AllCompleted bool
	WorkflowDir  string
}

// validateSubPhase checks that the current phase is a parallel group
// containing sub.
func (e *Engine) validateSubPhase(sub string) (*state.ActiveTask, *state.TaskState, phases.Phase, error) {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return nil, nil, "", reject(MsgMissingSubPhase)
	}
	task, ts, err := e.current()
	if err != nil {
		return nil, nil, "", err
	}
	if !phases.IsParallel(ts.Phase) {
		return nil, nil, "", reject("現在のフェーズ(%s)は並列フェーズではありません", ts.Phase)
	}
	if !phases.IsMember(ts.Phase, phases.Phase(sub)) {
		return nil, nil, "", invalidValue("サブフェーズ", sub, phases.Strings(phases.SubPhases(ts.Phase)))
	}
	return task, ts, phases.Phase(sub), nil
}

// CompleteSub marks one member of the current group completed. Completing
// an already completed member is a no-op success.
func (e *Engine) CompleteSub(ctx context.Context, sub string) (*SubPhaseUpdate, error) {
	task, ts, name, err := e.validateSubPhase(sub)
	if err != nil {
		return nil, err
	}

	if err := e.mgr.UpdateSubPhaseStatus(task.TaskID, name, phases.SubCompleted); err != nil {
		return nil, opErr("サブフェーズ完了処理", err)
	}
	remaining, err := e.mgr.IncompleteSubPhases(task.TaskID)
	if err != nil {
		return nil, opErr("サブフェーズ完了処理", err)
	}
	e.record(ctx, Event{TaskID: task.TaskID, Kind: KindSubPhaseCompleted, From: ts.Phase, To: ts.Phase, Detail: string(name)})

	return &SubPhaseUpdate{
		TaskID:       task.TaskID,
		Phase:        ts.Phase,
		SubPhase:     name,
		Remaining:    remaining,
		AllCompleted: len(remaining) == 0,
		WorkflowDir:  ts.WorkflowDir,
	}, nil
}

// BeginSub marks one member of the current group in progress, making it the
// active sub-phase for edit rules.
func (e *Engine) BeginSub(ctx context.Context, sub string) (*SubPhaseUpdate, error) {
	task, ts, name, err := e.validateSubPhase(sub)
	if err != nil {
		return nil, err
	}
	if ts.SubPhases[name] == phases.SubCompleted {
		return nil, reject("%sは既に完了しています", name)
	}

	if err := e.mgr.UpdateSubPhaseStatus(task.TaskID, name, phases.SubInProgress); err != nil {
		return nil, opErr("サブフェーズ開始処理", err)
	}
	remaining, err := e.mgr.IncompleteSubPhases(task.TaskID)
	if err != nil {
		return nil, opErr("サブフェーズ開始処理", err)
	}
	e.record(ctx, Event{TaskID: task.TaskID, Kind: KindSubPhaseBegun, From: ts.Phase, To: ts.Phase, Detail: string(name)})

	return &SubPhaseUpdate{
		TaskID:      task.TaskID,
		Phase:       ts.Phase,
		SubPhase:    name,
		Remaining:   remaining,
		WorkflowDir: ts.WorkflowDir,
	}, nil
}

// --- Reset / switch ---

// ResetResult describes a reset.
type ResetResult struct {
	TaskID string
	From   phases.Phase
	To     phases.Phase
	Reason string
}

// Reset sends the current task back to research. It is legal from any phase.
func (e *Engine) Reset(ctx context.Context, reason string) (*ResetResult, error) {
	task, ts, err := e.current()
	if err != nil {
		return nil, err
	}

	if ts.Phase != phases.Research {
		if m, err := newPhaseMachine(ts.Phase, ts.Size(), nil); err == nil {
			if _, err := m.fire(eventReset); err != nil {
				return nil, opErr("リセット", err)
			}
		}
	}

	from, err := e.mgr.ResetTask(task.TaskID, reason)
	if err != nil {
		return nil, opErr("リセット", err)
	}
	e.record(ctx, Event{TaskID: task.TaskID, Kind: KindTaskReset, From: from, To: phases.Research, Detail: reason})
	return &ResetResult{TaskID: task.TaskID, From: from, To: phases.Research, Reason: reason}, nil
}

// Switch makes taskID the current task.
func (e *Engine) Switch(ctx context.Context, taskID string) (*state.ActiveTask, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, reject(MsgMissingTaskID)
	}
	task, err := e.mgr.SwitchTask(taskID)
	if err != nil {
		if errors.Is(err, state.ErrTaskNotFound) {
			return nil, taskNotFound(taskID)
		}
		return nil, opErr("タスク切り替え", err)
	}
	e.record(ctx, Event{TaskID: task.TaskID, Kind: KindTaskSwitched, To: task.Phase})
	return task, nil
}
