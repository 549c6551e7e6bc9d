// Package hooks implements the lifecycle hooks invoked by the coding
// assistant around its tool calls. Each hook reads one JSON payload,
// decides, prints diagnostics and maps its verdict to an exit code.
//
// Hooks are advisory. RunGuarded turns malformed input, timeouts, panics
// and internal errors into an allow, except for hooks registered as
// failing closed.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/karimatan1106/workflow-plugin/internal/config"
	"github.com/karimatan1106/workflow-plugin/internal/logging"
	"github.com/karimatan1106/workflow-plugin/internal/state"
)

// Exit is a hook's process exit code.
type Exit int

const (
	ExitAllow Exit = 0
	ExitWarn  Exit = 1
	ExitBlock Exit = 2
)

// Env is what a hook runs against.
type Env struct {
	Config  *config.Config
	Manager *state.Manager
	Stdout  io.Writer
	Stderr  io.Writer
	Now     func() time.Time
}

// NewEnv wires an environment for cfg writing to the process streams.
func NewEnv(cfg *config.Config) *Env {
	store := state.NewFileStore(cfg.GlobalStateFile)
	return &Env{
		Config:  cfg,
		Manager: state.NewManager(store, cfg.WorkflowDir, cfg.DocsDir),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Now:     time.Now,
	}
}

// Func is a hook body.
type Func func(ctx context.Context, env *Env, in *Input) (Exit, error)

// Hook is a named hook.
type Hook struct {
	Name string
	Run  Func
	// FailClosed makes internal errors block instead of allow.
	FailClosed bool
}

var registry = map[string]Hook{}

func register(h Hook) {
	registry[h.Name] = h
}

// Lookup returns the hook registered under name.
func Lookup(name string) (Hook, bool) {
	h, ok := registry[name]
	return h, ok
}

// Names lists the registered hooks in order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h Hook) fallback() Exit {
	if h.FailClosed {
		return ExitBlock
	}
	return ExitAllow
}

type outcome struct {
	exit Exit
	err  error
}

// RunGuarded parses stdin and runs h under the configured timeout. It never
// panics and never returns an error: every failure is logged and mapped to
// the hook's fallback exit, and malformed input and timeouts always allow.
func RunGuarded(ctx context.Context, h Hook, env *Env, stdin io.Reader) Exit {
	ctx = logging.WithHook(logging.WithInvocation(ctx, uuid.NewString()), h.Name)
	start := time.Now()

	timeout := env.Config.HookTimeout
	if timeout <= 0 {
		timeout = config.Default().HookTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{exit: h.fallback(), err: &panicError{value: r, stack: debug.Stack()}}
			}
		}()

		in, err := ParseInput(stdin)
		if err != nil {
			logging.Debug(ctx, "hook input rejected", slog.String("error", err.Error()))
			done <- outcome{exit: ExitAllow}
			return
		}
		exit, err := h.Run(ctx, env, in)
		if err != nil {
			exit = h.fallback()
		}
		done <- outcome{exit: exit, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			logging.Error(ctx, "hook failed", slog.String("error", out.err.Error()))
			writeErrorLog(env, h.Name, out.err)
			fmt.Fprintf(env.Stderr, "[%s] %v\n", h.Name, out.err)
		}
		logging.LogDuration(ctx, slog.LevelDebug, "hook finished", start, slog.Int("exit", int(out.exit)))
		return out.exit
	case <-ctx.Done():
		logging.Warn(ctx, "hook timed out", slog.Duration("timeout", timeout))
		return ExitAllow
	}
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// writeErrorLog appends a plain-text record to the shared hook error log.
func writeErrorLog(env *Env, hook string, err error) {
	kind := "内部エラー"
	var stack []byte
	var pe *panicError
	if errors.As(err, &pe) {
		kind = "未捕捉エラー"
		stack = pe.stack
	}

	entry := fmt.Sprintf("[%s] [%s] %s: %v\n", env.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"), hook, kind, err)
	if len(stack) > 0 {
		entry += fmt.Sprintf("  Stack: %s\n", stack)
	}
	entry += "\n"

	f, ferr := os.OpenFile(env.Config.HookErrorLogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if ferr != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(entry)
}
