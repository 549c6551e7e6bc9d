// Package guard decides whether a proposed file edit is allowed in the
// current workflow phase and renders the explanation shown on a block.
package guard

import (
	"github.com/karimatan1106/workflow-plugin/internal/classify"
	"github.com/karimatan1106/workflow-plugin/internal/phases"
	"github.com/karimatan1106/workflow-plugin/internal/state"
)

// Reason names the step of the gate that produced a decision.
type Reason string

const (
	ReasonNoTask         Reason = "no_task"
	ReasonAlwaysAllowed  Reason = "always_allowed_path"
	ReasonAlwaysEditable Reason = "always_editable_category"
	ReasonUnknownPhase   Reason = "unknown_phase"
	ReasonPhaseRule      Reason = "phase_rule"
	ReasonEmptyPath      Reason = "empty_path"
)

// Task is the part of the active task the gate needs.
type Task struct {
	ID       string
	Phase    phases.Phase
	Progress phases.Progress
}

// Decision is the outcome for one path.
type Decision struct {
	Allowed  bool
	Reason   Reason
	Path     string
	Category classify.Category
	Phase    phases.Phase
	// Rule is the effective rule when Reason is ReasonPhaseRule.
	Rule phases.Rule
}

// Decide applies the gate to path. A nil task means no workflow is in force.
func Decide(task *Task, path string) Decision {
	d := Decision{Path: path}
	if path == "" {
		d.Allowed, d.Reason = true, ReasonEmptyPath
		return d
	}
	if classify.IsAlwaysAllowedPath(path) {
		d.Allowed, d.Reason = true, ReasonAlwaysAllowed
		return d
	}
	if task == nil {
		d.Allowed, d.Reason = true, ReasonNoTask
		return d
	}

	d.Phase = task.Phase
	d.Category = classify.Classify(path)
	if classify.IsAlwaysEditable(d.Category) {
		d.Allowed, d.Reason = true, ReasonAlwaysEditable
		return d
	}

	rule, ok := phases.RuleFor(task.Phase, task.Progress)
	if !ok {
		d.Allowed, d.Reason = true, ReasonUnknownPhase
		return d
	}
	d.Rule = rule
	d.Reason = ReasonPhaseRule
	d.Allowed = rule.Allows(d.Category)
	return d
}

// LoadTask returns the first registered task that is not completed. The
// phase and sub-phase progress come from the task document, which is
// written before the registry; a task whose document cannot be read
// gates on the registry's phase with no progress.
func LoadTask(mgr *state.Manager) (*Task, error) {
	active, err := mgr.ActiveTask()
	if err != nil || active == nil {
		return nil, err
	}
	task := &Task{ID: active.TaskID, Phase: active.Phase}
	if ts, err := mgr.ReadTask(active.WorkflowDir); err == nil {
		if ts.Phase != "" {
			task.Phase = ts.Phase
		}
		task.Progress = ts.Progress()
	}
	return task, nil
}
