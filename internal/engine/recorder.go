package engine

import (
	"context"
	"log/slog"

	"github.com/karimatan1106/workflow-plugin/internal/logging"
	"github.com/karimatan1106/workflow-plugin/internal/phases"
)

// EventKind names a recorded state mutation.
type EventKind string

const (
	KindTaskStarted       EventKind = "task_started"
	KindPhaseAdvanced     EventKind = "phase_advanced"
	KindApproved          EventKind = "approved"
	KindSubPhaseBegun     EventKind = "sub_phase_begun"
	KindSubPhaseCompleted EventKind = "sub_phase_completed"
	KindTaskReset         EventKind = "task_reset"
	KindTaskSwitched      EventKind = "task_switched"
	KindTaskCompleted     EventKind = "task_completed"
)

// Event is one state mutation handed to a Recorder.
type Event struct {
	TaskID string
	Kind   EventKind
	From   phases.Phase
	To     phases.Phase
	Detail string
}

// Recorder receives every successful mutation. Implementations must not
// block for long; failures are logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

func (e *Engine) record(ctx context.Context, ev Event) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, ev); err != nil {
		logging.Warn(ctx, "journal record failed",
			slog.String("kind", string(ev.Kind)),
			slog.String("task_id", ev.TaskID),
			slog.String("error", err.Error()),
		)
	}
}
