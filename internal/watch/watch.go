// Package watch follows the global state document and reports changes of
// the current task's phase.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/karimatan1106/workflow-plugin/internal/logging"
	"github.com/karimatan1106/workflow-plugin/internal/phases"
	"github.com/karimatan1106/workflow-plugin/internal/state"
)

// DefaultDebounce coalesces the burst of events an atomic rename produces.
const DefaultDebounce = 200 * time.Millisecond

// Change is one observed phase change. TaskID is empty when the registry
// went idle.
type Change struct {
	Time   time.Time
	TaskID string
	Phase  phases.Phase
}

// String renders "<time> <taskId> <phase>".
func (c Change) String() string {
	id := c.TaskID
	if id == "" {
		id = "-"
	}
	return fmt.Sprintf("%s %s %s", c.Time.Format(time.RFC3339), id, c.Phase)
}

// Watcher polls the registry whenever its document changes on disk.
type Watcher struct {
	mgr        *state.Manager
	globalPath string
	debounce   time.Duration
	onChange   func(Change)
	now        func() time.Time

	last    Change
	started bool
}

// New creates a watcher for the registry at globalPath.
func New(mgr *state.Manager, globalPath string, debounce time.Duration, onChange func(Change)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		mgr:        mgr,
		globalPath: globalPath,
		debounce:   debounce,
		onChange:   onChange,
		now:        time.Now,
	}
}

// Check reads the current task and reports it when it differs from the
// last observation. The first call always reports.
func (w *Watcher) Check() error {
	cur, err := w.mgr.CurrentTask()
	if err != nil {
		return err
	}
	c := Change{Phase: phases.Idle}
	if cur != nil {
		c.TaskID = cur.TaskID
		c.Phase = cur.Phase
	}
	if w.started && c.TaskID == w.last.TaskID && c.Phase == w.last.Phase {
		return nil
	}
	w.started = true
	c.Time = w.now()
	w.last = c
	if w.onChange != nil {
		w.onChange(c)
	}
	return nil
}

// Run watches the directory holding the registry until ctx is cancelled.
// The directory is watched rather than the file since writes replace it.
// A registry that cannot be read is logged and re-read on the next event.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.globalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.checkLogged(ctx)

	base := filepath.Base(w.globalPath)
	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Remove) {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			w.checkLogged(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (w *Watcher) checkLogged(ctx context.Context) {
	if err := w.Check(); err != nil {
		logging.Warn(ctx, "reading workflow state", "path", w.globalPath, "error", err)
	}
}
