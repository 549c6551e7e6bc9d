package hooks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/karimatan1106/workflow-plugin/internal/auditlog"
	"github.com/karimatan1106/workflow-plugin/internal/guard"
	"github.com/karimatan1106/workflow-plugin/internal/logging"
)

func init() {
	register(Hook{Name: "phase-guard", Run: phaseGuard})
}

// phaseGuard blocks edits of file categories the current phase forbids.
func phaseGuard(ctx context.Context, env *Env, in *Input) (Exit, error) {
	audit := auditlog.Open(env.Config.PhaseGuardLogPath())

	if env.Config.SkipPhaseGuard {
		logging.Debug(ctx, "phase guard skipped")
		appendAudit(ctx, audit, map[string]any{"skipped": true, "reason": "SKIP_PHASE_GUARD=true"})
		return ExitAllow, nil
	}
	if !isEditTool(in.ToolName) || in.ToolInput.FilePath == "" {
		return ExitAllow, nil
	}

	task, err := guard.LoadTask(env.Manager)
	if err != nil {
		return ExitAllow, fmt.Errorf("loading active task: %w", err)
	}
	if task != nil {
		ctx = logging.WithTask(ctx, task.ID)
	}

	d := guard.Decide(task, in.ToolInput.FilePath)
	logging.Debug(ctx, "phase guard decision",
		slog.String("file", d.Path),
		slog.String("phase", string(d.Phase)),
		slog.String("category", string(d.Category)),
		slog.String("reason", string(d.Reason)),
		slog.Bool("allowed", d.Allowed),
	)
	if d.Reason != guard.ReasonPhaseRule {
		return ExitAllow, nil
	}

	if d.Allowed {
		appendAudit(ctx, audit, map[string]any{
			"allowed":  true,
			"phase":    d.Phase,
			"filePath": d.Path,
			"fileType": d.Category,
		})
		return ExitAllow, nil
	}

	fmt.Fprint(env.Stderr, guard.BlockMessage(d))
	appendAudit(ctx, audit, map[string]any{
		"blocked":  true,
		"phase":    d.Phase,
		"filePath": d.Path,
		"fileType": d.Category,
		"reason":   d.Rule.Description,
	})
	return ExitBlock, nil
}

func appendAudit(ctx context.Context, l *auditlog.Log, fields map[string]any) {
	if err := l.Append(fields); err != nil {
		logging.Warn(ctx, "audit log write failed", slog.String("path", l.Path()), slog.String("error", err.Error()))
	}
}
