package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	invocationKey contextKey = iota
	hookKey
	toolKey
	taskKey
)

// WithInvocation tags every log line of one hook or tool call.
func WithInvocation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationKey, id)
}

// WithHook adds the hook name to the context.
func WithHook(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, hookKey, name)
}

// WithTool adds the MCP tool name to the context.
func WithTool(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolKey, name)
}

// WithTask adds the task id to the context.
func WithTask(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskKey, taskID)
}

// InvocationFromContext returns the invocation id, or "".
func InvocationFromContext(ctx context.Context) string {
	return stringValue(ctx, invocationKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

func attrsFromContext(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, f := range []struct {
		key  contextKey
		name string
	}{
		{invocationKey, "invocation_id"},
		{hookKey, "hook"},
		{toolKey, "tool"},
		{taskKey, "task_id"},
	} {
		if s := stringValue(ctx, f.key); s != "" {
			attrs = append(attrs, slog.String(f.name, s))
		}
	}
	return attrs
}
