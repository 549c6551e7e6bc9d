package hooks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/karimatan1106/workflow-plugin/internal/auditlog"
	"github.com/karimatan1106/workflow-plugin/internal/logging"
	"github.com/karimatan1106/workflow-plugin/internal/loopdetect"
)

func init() {
	register(Hook{Name: "loop-detector", Run: loopDetector})
}

func loopDetector(ctx context.Context, env *Env, in *Input) (Exit, error) {
	if env.Config.SkipLoopDetection {
		return ExitAllow, nil
	}
	if !isEditTool(in.ToolName) || in.ToolInput.FilePath == "" {
		return ExitAllow, nil
	}

	d := loopdetect.New(env.Config.LoopStatePath())
	d.Now = env.Now
	res, err := d.Record(in.ToolInput.FilePath)
	if err != nil {
		logging.Warn(ctx, "loop state not saved", slog.String("error", err.Error()))
	}
	if !res.Detected {
		return ExitAllow, nil
	}

	logging.Info(ctx, "edit loop detected", slog.String("file", res.Path), slog.Int("count", res.Count))
	fmt.Fprint(env.Stderr, loopdetect.Warning(res))
	appendAudit(ctx, auditlog.Open(env.Config.LoopLogPath()), map[string]any{
		"type":     "warning",
		"filePath": res.Path,
		"count":    res.Count,
	})
	return ExitWarn, nil
}
