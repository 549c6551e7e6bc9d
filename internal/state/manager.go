package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/karimatan1106/workflow-plugin/internal/phases"
)

// Manager implements the task lifecycle on top of a Store.
type Manager struct {
	store       Store
	workflowDir string
	docsDir     string
}

// NewManager creates a manager whose task directories go under workflowDir
// and whose document directories go under docsDir.
func NewManager(store Store, workflowDir, docsDir string) *Manager {
	return &Manager{store: store, workflowDir: workflowDir, docsDir: docsDir}
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// ReadGlobal loads the registry.
func (m *Manager) ReadGlobal() (*GlobalState, error) {
	return m.store.ReadGlobal()
}

// ReadTask loads a task document.
func (m *Manager) ReadTask(workflowDir string) (*TaskState, error) {
	return m.store.ReadTask(workflowDir)
}

// CurrentTask returns the registry's first task, or nil when none.
func (m *Manager) CurrentTask() (*ActiveTask, error) {
	g, err := m.store.ReadGlobal()
	if err != nil {
		return nil, err
	}
	if len(g.ActiveTasks) == 0 {
		return nil, nil
	}
	t := g.ActiveTasks[0]
	return &t, nil
}

// ActiveTask returns the first registered task that has not reached
// completed, or nil.
func (m *Manager) ActiveTask() (*ActiveTask, error) {
	g, err := m.store.ReadGlobal()
	if err != nil {
		return nil, err
	}
	for _, t := range g.ActiveTasks {
		if t.Phase != phases.Completed {
			return &t, nil
		}
	}
	return nil, nil
}

// FindTask returns the registered task with taskID.
func (m *Manager) FindTask(taskID string) (*ActiveTask, error) {
	g, err := m.store.ReadGlobal()
	if err != nil {
		return nil, err
	}
	i := g.indexOf(taskID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	t := g.ActiveTasks[i]
	return &t, nil
}

// --- Task creation ---

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9ぁ-んァ-ヶ一-龠]`)
var dashRuns = regexp.MustCompile(`-+`)

// SafeName turns a task name into a directory-safe fragment.
func SafeName(name string) string {
	return dashRuns.ReplaceAllString(unsafeNameChars.ReplaceAllString(name, "-"), "-")
}

// GenerateTaskID returns the wall-clock id YYYYMMDD_HHMMSS.
func GenerateTaskID() string {
	return timeNow().Format("20060102_150405")
}

// CreateTask creates the task directory, its document and log, the docs
// directory, and registers the task as current. An id already used within
// the same second gets a _2, _3, ... suffix.
func (m *Manager) CreateTask(name string, size phases.TaskSize) (*TaskState, error) {
	if size == "" {
		size = phases.DefaultTaskSize
	}
	if err := phases.ValidateTaskSize(size); err != nil {
		return nil, err
	}

	safeName := SafeName(name)
	taskID, err := m.uniqueTaskID(GenerateTaskID())
	if err != nil {
		return nil, err
	}
	taskDir := filepath.Join(m.workflowDir, taskID+"_"+safeName)
	docsDir := filepath.Join(m.docsDir, safeName)

	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating task directory: %w", err)
	}
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating docs directory: %w", err)
	}

	ts := &TaskState{
		Phase:       phases.Research,
		TaskID:      taskID,
		TaskName:    name,
		WorkflowDir: taskDir,
		DocsDir:     docsDir,
		StartedAt:   isoNow(),
		Checklist:   map[string]bool{},
		History:     []HistoryEntry{},
		SubPhases:   SubPhases{},
		TaskSize:    size,
	}
	if err := m.store.WriteTask(taskDir, ts); err != nil {
		return nil, err
	}
	if err := writeTaskLog(taskDir, ts); err != nil {
		return nil, err
	}

	g, err := m.store.ReadGlobal()
	if err != nil {
		return nil, err
	}
	handle := ActiveTask{
		TaskID:      taskID,
		TaskName:    name,
		WorkflowDir: taskDir,
		Phase:       phases.Research,
		TaskSize:    size,
	}
	g.ActiveTasks = append([]ActiveTask{handle}, g.ActiveTasks...)
	g.History = append(g.History, HistoryEntry{
		Phase:     phases.Research,
		Action:    "start",
		Timestamp: ts.StartedAt,
		Details:   name,
	})
	if err := m.store.WriteGlobal(g); err != nil {
		return nil, err
	}
	return ts, nil
}

// uniqueTaskID appends a numeric suffix to base until no task directory
// under the workflow directory carries that id.
func (m *Manager) uniqueTaskID(base string) (string, error) {
	taken, err := m.idsWithPrefix(base)
	if err != nil {
		return "", err
	}
	id := base
	for n := 2; taken[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id, nil
}

// idsWithPrefix collects the task ids of every task directory whose name
// starts with prefix. Directories without a readable document are judged
// by name alone.
func (m *Manager) idsWithPrefix(prefix string) (map[string]bool, error) {
	taken := map[string]bool{}
	entries, err := os.ReadDir(m.workflowDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return taken, nil
		}
		return nil, fmt.Errorf("reading workflow directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix+"_") {
			continue
		}
		if ts, err := m.store.ReadTask(filepath.Join(m.workflowDir, e.Name())); err == nil {
			taken[ts.TaskID] = true
			continue
		}
		taken[prefix] = true
	}
	return taken, nil
}

func writeTaskLog(taskDir string, ts *TaskState) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", ts.TaskName)
	b.WriteString("## 基本情報\n")
	fmt.Fprintf(&b, "- **タスクID**: %s\n", ts.TaskID)
	fmt.Fprintf(&b, "- **開始日時**: %s\n", timeNow().Local().Format("2006/1/2 15:04:05"))
	fmt.Fprintf(&b, "- **タスクサイズ**: %s\n", ts.Size())
	fmt.Fprintf(&b, "- **ドキュメント配置先**: %s\n", ts.DocsDir)
	b.WriteString("- **ステータス**: 進行中\n\n---\n\n## 作業ログ\n\n")

	if err := os.WriteFile(filepath.Join(taskDir, TaskLogFile), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing task log: %w", err)
	}
	return nil
}

// --- Phase updates ---

// load resolves taskID to its registry, position and document.
func (m *Manager) load(taskID string) (*GlobalState, int, *TaskState, error) {
	g, err := m.store.ReadGlobal()
	if err != nil {
		return nil, 0, nil, err
	}
	i := g.indexOf(taskID)
	if i < 0 {
		return nil, 0, nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	ts, err := m.store.ReadTask(g.ActiveTasks[i].WorkflowDir)
	if err != nil {
		return nil, 0, nil, err
	}
	return g, i, ts, nil
}

// UpdateTaskPhase moves a task to phase. Sub-phases are reset to pending
// for a parallel group and cleared otherwise. The task document is written
// before the registry.
func (m *Manager) UpdateTaskPhase(taskID string, phase phases.Phase) error {
	g, i, ts, err := m.load(taskID)
	if err != nil {
		return err
	}

	now := isoNow()
	from := ts.Phase
	ts.Phase = phase
	ts.SubPhases = InitialSubPhases(phase)
	ts.SubPhaseUpdates = nil
	if err := m.store.WriteTask(g.ActiveTasks[i].WorkflowDir, ts); err != nil {
		return err
	}

	g.ActiveTasks[i].Phase = phase
	g.History = append(g.History, HistoryEntry{
		Phase:     phase,
		Action:    "transition",
		Timestamp: now,
		Details:   fmt.Sprintf("%s → %s", from, phase),
	})
	return m.store.WriteGlobal(g)
}

// UpdateSubPhaseStatus sets the status of one member of the task's current
// parallel group. in_progress stamps the sub-phase's update time; completed
// removes it so a finished member is never the active one.
func (m *Manager) UpdateSubPhaseStatus(taskID string, sub phases.Phase, status phases.SubPhaseStatus) error {
	g, i, ts, err := m.load(taskID)
	if err != nil {
		return err
	}

	members := phases.SubPhases(ts.Phase)
	if !phases.IsMember(ts.Phase, sub) {
		return fmt.Errorf("無効なサブフェーズ: %s。有効: %s", sub, strings.Join(phases.Strings(members), ", "))
	}
	if len(ts.SubPhases) == 0 {
		ts.SubPhases = InitialSubPhases(ts.Phase)
	}
	ts.SubPhases[sub] = status

	switch status {
	case phases.SubInProgress:
		if ts.SubPhaseUpdates == nil {
			ts.SubPhaseUpdates = map[phases.Phase]string{}
		}
		ts.SubPhaseUpdates[sub] = isoNow()
	case phases.SubCompleted:
		delete(ts.SubPhaseUpdates, sub)
	}
	return m.store.WriteTask(g.ActiveTasks[i].WorkflowDir, ts)
}

// IncompleteSubPhases lists the members of the task's current group whose
// status is not completed. Unknown tasks and non-parallel phases yield none.
func (m *Manager) IncompleteSubPhases(taskID string) ([]phases.Phase, error) {
	_, _, ts, err := m.load(taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrTaskStateNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var out []phases.Phase
	for _, sub := range phases.SubPhases(ts.Phase) {
		if ts.SubPhases[sub] != phases.SubCompleted {
			out = append(out, sub)
		}
	}
	return out, nil
}

// --- Task operations ---

// SwitchTask moves taskID to the front of the registry.
func (m *Manager) SwitchTask(taskID string) (*ActiveTask, error) {
	g, err := m.store.ReadGlobal()
	if err != nil {
		return nil, err
	}
	i := g.indexOf(taskID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	task := g.ActiveTasks[i]
	rest := append(g.ActiveTasks[:i:i], g.ActiveTasks[i+1:]...)
	g.ActiveTasks = append([]ActiveTask{task}, rest...)
	if err := m.store.WriteGlobal(g); err != nil {
		return nil, err
	}
	return &task, nil
}

// CompleteTask finalizes a task: its document gets completedAt and the
// registry's history and checklist, and its handle leaves the registry.
// An emptied registry resets to idle.
func (m *Manager) CompleteTask(taskID string) error {
	g, err := m.store.ReadGlobal()
	if err != nil {
		return err
	}
	i := g.indexOf(taskID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	task := g.ActiveTasks[i]

	ts, err := m.store.ReadTask(task.WorkflowDir)
	if err == nil {
		ts.Phase = phases.Completed
		ts.CompletedAt = isoNow()
		ts.History = append([]HistoryEntry{}, g.History...)
		ts.Checklist = copyChecklist(g.Checklist)
		ts.SubPhases = SubPhases{}
		ts.SubPhaseUpdates = nil
		if err := m.store.WriteTask(task.WorkflowDir, ts); err != nil {
			return err
		}
	} else if !errors.Is(err, ErrTaskStateNotFound) {
		return err
	}

	g.ActiveTasks = append(g.ActiveTasks[:i:i], g.ActiveTasks[i+1:]...)
	if len(g.ActiveTasks) == 0 {
		fresh := NewGlobalState()
		g.Phase, g.History, g.Checklist = fresh.Phase, fresh.History, fresh.Checklist
	}
	return m.store.WriteGlobal(g)
}

// ResetTask sends a task back to research, clearing its sub-phases and
// recording the reset. It returns the phase the task was in.
func (m *Manager) ResetTask(taskID, reason string) (phases.Phase, error) {
	g, i, ts, err := m.load(taskID)
	if err != nil {
		return "", err
	}

	now := isoNow()
	from := ts.Phase
	ts.ResetHistory = append(ts.ResetHistory, ResetHistoryEntry{
		FromPhase: from,
		Reason:    reason,
		Timestamp: now,
	})
	ts.Phase = phases.Research
	ts.SubPhases = SubPhases{}
	ts.SubPhaseUpdates = nil
	if err := m.store.WriteTask(g.ActiveTasks[i].WorkflowDir, ts); err != nil {
		return "", err
	}

	g.ActiveTasks[i].Phase = phases.Research
	g.History = append(g.History, HistoryEntry{
		Phase:     phases.Research,
		Action:    "reset",
		Timestamp: now,
		Details:   reason,
	})
	if err := m.store.WriteGlobal(g); err != nil {
		return "", err
	}
	return from, nil
}

func copyChecklist(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
