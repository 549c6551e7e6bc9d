package state

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/karimatan1106/workflow-plugin/internal/phases"
)

// --- Helpers ---

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	store := NewFileStore(filepath.Join(root, "state", "workflow-state.json"))
	return NewManager(store, filepath.Join(root, "state", "workflows"), filepath.Join(root, "docs")), root
}

func fixClock(t *testing.T, at time.Time) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = orig })
}

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// --- Store ---

func TestReadGlobal_MissingIsIdle(t *testing.T) {
	m, _ := newTestManager(t)

	g, err := m.ReadGlobal()
	if err != nil {
		t.Fatalf("ReadGlobal: %v", err)
	}
	if g.Phase != phases.Idle {
		t.Errorf("Phase = %q, want idle", g.Phase)
	}
	if g.ActiveTasks == nil || g.Checklist == nil || g.History == nil {
		t.Error("collections should be initialized")
	}
}

func TestReadGlobal_CorruptIsIdle(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "workflow-state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := NewFileStore(path).ReadGlobal()
	if err != nil {
		t.Fatalf("ReadGlobal: %v", err)
	}
	if g.Phase != phases.Idle || len(g.ActiveTasks) != 0 {
		t.Errorf("corrupt registry should read as idle, got %+v", g)
	}
}

func TestReadTask_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "g.json"))

	if _, err := fs.ReadTask(dir); !errors.Is(err, ErrTaskStateNotFound) {
		t.Errorf("missing: err = %v, want ErrTaskStateNotFound", err)
	}

	if err := os.WriteFile(TaskStatePath(dir), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.ReadTask(dir); !errors.Is(err, ErrTaskStateNotFound) {
		t.Errorf("corrupt: err = %v, want ErrTaskStateNotFound", err)
	}
}

func TestWriteGlobal_AtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "nested", "workflow-state.json"))

	g := NewGlobalState()
	g.ActiveTasks = append(g.ActiveTasks, ActiveTask{TaskID: "a", Phase: phases.TestImpl})
	if err := fs.WriteGlobal(g); err != nil {
		t.Fatalf("WriteGlobal: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "workflow-state.json" {
		t.Errorf("directory holds %v, want only the document", entries)
	}

	got, _ := fs.ReadGlobal()
	if got.Phase != phases.TestImpl {
		t.Errorf("registry phase = %q, want synced to current task", got.Phase)
	}
}

// --- Creation ---

func TestCreateTask(t *testing.T) {
	fixClock(t, fixedTime)
	m, root := newTestManager(t)

	ts, err := m.CreateTask("ログイン認証 v2/login", "")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if ts.TaskID != "20260314_092653" {
		t.Errorf("TaskID = %q", ts.TaskID)
	}
	if ts.Phase != phases.Research {
		t.Errorf("Phase = %q, want research", ts.Phase)
	}
	if ts.TaskSize != phases.SizeLarge {
		t.Errorf("TaskSize = %q, want large", ts.TaskSize)
	}
	wantDir := filepath.Join(root, "state", "workflows", "20260314_092653_ログイン認証-v2-login")
	if ts.WorkflowDir != wantDir {
		t.Errorf("WorkflowDir = %q, want %q", ts.WorkflowDir, wantDir)
	}
	if _, err := os.Stat(ts.DocsDir); err != nil {
		t.Errorf("docs dir not created: %v", err)
	}

	log, err := os.ReadFile(filepath.Join(ts.WorkflowDir, TaskLogFile))
	if err != nil {
		t.Fatalf("reading log.md: %v", err)
	}
	for _, want := range []string{"# ログイン認証 v2/login", "## 基本情報", "**タスクID**: 20260314_092653", "**ステータス**: 進行中", "## 作業ログ"} {
		if !strings.Contains(string(log), want) {
			t.Errorf("log.md missing %q", want)
		}
	}

	g, _ := m.ReadGlobal()
	if len(g.ActiveTasks) != 1 || g.ActiveTasks[0].TaskID != ts.TaskID {
		t.Fatalf("registry = %+v", g.ActiveTasks)
	}
	if g.Phase != phases.Research {
		t.Errorf("registry phase = %q, want research", g.Phase)
	}
}

func TestCreateTask_InvalidSize(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.CreateTask("x", "small"); err == nil {
		t.Error("expected error for small size")
	}
}

func TestCreateTask_SameSecondGetsSuffix(t *testing.T) {
	fixClock(t, fixedTime)
	m, _ := newTestManager(t)

	a, _ := m.CreateTask("first", "")
	b, _ := m.CreateTask("second", "")
	c, _ := m.CreateTask("third", "")

	if a.TaskID != "20260314_092653" || b.TaskID != "20260314_092653_2" || c.TaskID != "20260314_092653_3" {
		t.Errorf("ids = %q, %q, %q", a.TaskID, b.TaskID, c.TaskID)
	}

	g, _ := m.ReadGlobal()
	if g.ActiveTasks[0].TaskID != c.TaskID {
		t.Errorf("newest task should be current, got %q", g.ActiveTasks[0].TaskID)
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"simple":        "simple",
		"a b  c":        "a-b-c",
		"ログイン機能":        "ログイン機能",
		"fix: bug #12!": "fix-bug-12-",
	}
	for in, want := range tests {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}

// --- Phase updates ---

func TestUpdateTaskPhase_ParallelInitializesSubPhases(t *testing.T) {
	m, _ := newTestManager(t)
	ts, _ := m.CreateTask("x", "")

	if err := m.UpdateTaskPhase(ts.TaskID, phases.ParallelDesign); err != nil {
		t.Fatalf("UpdateTaskPhase: %v", err)
	}

	got, _ := m.ReadTask(ts.WorkflowDir)
	if got.Phase != phases.ParallelDesign {
		t.Errorf("Phase = %q", got.Phase)
	}
	if len(got.SubPhases) != 3 {
		t.Fatalf("SubPhases = %v, want 3 members", got.SubPhases)
	}
	for sub, status := range got.SubPhases {
		if status != phases.SubPending {
			t.Errorf("%s = %q, want pending", sub, status)
		}
	}

	if err := m.UpdateTaskPhase(ts.TaskID, phases.DesignReview); err != nil {
		t.Fatal(err)
	}
	got, _ = m.ReadTask(ts.WorkflowDir)
	if len(got.SubPhases) != 0 {
		t.Errorf("non-parallel phase should clear sub-phases, got %v", got.SubPhases)
	}

	g, _ := m.ReadGlobal()
	if g.ActiveTasks[0].Phase != phases.DesignReview {
		t.Errorf("registry cache = %q, want design_review", g.ActiveTasks[0].Phase)
	}
}

func TestUpdateTaskPhase_UnknownTask(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.UpdateTaskPhase("nope", phases.Requirements); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestUpdateSubPhaseStatus(t *testing.T) {
	fixClock(t, fixedTime)
	m, _ := newTestManager(t)
	ts, _ := m.CreateTask("x", "")
	_ = m.UpdateTaskPhase(ts.TaskID, phases.ParallelQuality)

	if err := m.UpdateSubPhaseStatus(ts.TaskID, phases.Planning, phases.SubCompleted); err == nil {
		t.Error("planning is not a member of parallel_quality")
	} else if !strings.Contains(err.Error(), "build_check, code_review") {
		t.Errorf("error should list valid members, got %v", err)
	}

	if err := m.UpdateSubPhaseStatus(ts.TaskID, phases.CodeReview, phases.SubInProgress); err != nil {
		t.Fatal(err)
	}
	got, _ := m.ReadTask(ts.WorkflowDir)
	if got.SubPhaseUpdates[phases.CodeReview] == "" {
		t.Error("in_progress should stamp subPhaseUpdates")
	}
	if active := phases.ActiveSubPhase(phases.ParallelQuality, got.Progress()); active != phases.CodeReview {
		t.Errorf("active = %q, want code_review", active)
	}

	if err := m.UpdateSubPhaseStatus(ts.TaskID, phases.CodeReview, phases.SubCompleted); err != nil {
		t.Fatal(err)
	}
	got, _ = m.ReadTask(ts.WorkflowDir)
	if _, ok := got.SubPhaseUpdates[phases.CodeReview]; ok {
		t.Error("completed sub-phase should leave subPhaseUpdates")
	}

	incomplete, _ := m.IncompleteSubPhases(ts.TaskID)
	if len(incomplete) != 1 || incomplete[0] != phases.BuildCheck {
		t.Errorf("incomplete = %v, want [build_check]", incomplete)
	}
}

func TestIncompleteSubPhases_UnknownTask(t *testing.T) {
	m, _ := newTestManager(t)
	got, err := m.IncompleteSubPhases("missing")
	if err != nil || got != nil {
		t.Errorf("got %v, %v; want nil, nil", got, err)
	}
}

// --- Task operations ---

func TestSwitchTask(t *testing.T) {
	m, _ := newTestManager(t)
	a, _ := m.CreateTask("a", "")
	fixClock(t, fixedTime.Add(time.Second))
	b, _ := m.CreateTask("b", "")

	cur, _ := m.CurrentTask()
	if cur.TaskID != b.TaskID {
		t.Fatalf("current = %q, want %q", cur.TaskID, b.TaskID)
	}

	got, err := m.SwitchTask(a.TaskID)
	if err != nil {
		t.Fatalf("SwitchTask: %v", err)
	}
	if got.TaskID != a.TaskID {
		t.Errorf("switched = %q", got.TaskID)
	}
	g, _ := m.ReadGlobal()
	if g.ActiveTasks[0].TaskID != a.TaskID || g.ActiveTasks[1].TaskID != b.TaskID {
		t.Errorf("order = %+v", g.ActiveTasks)
	}

	if _, err := m.SwitchTask("ghost"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestCompleteTask_LastTaskResetsRegistry(t *testing.T) {
	m, _ := newTestManager(t)
	ts, _ := m.CreateTask("x", "")
	_ = m.UpdateTaskPhase(ts.TaskID, phases.Deploy)

	if err := m.CompleteTask(ts.TaskID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	g, _ := m.ReadGlobal()
	if g.Phase != phases.Idle || len(g.ActiveTasks) != 0 || len(g.History) != 0 || len(g.Checklist) != 0 {
		t.Errorf("registry not reset: %+v", g)
	}

	doc, err := m.ReadTask(ts.WorkflowDir)
	if err != nil {
		t.Fatalf("task document should be retained: %v", err)
	}
	if doc.Phase != phases.Completed || doc.CompletedAt == "" {
		t.Errorf("doc = phase %q completedAt %q", doc.Phase, doc.CompletedAt)
	}
	if len(doc.History) == 0 {
		t.Error("registry history should be copied into the task document")
	}
}

func TestCompleteTask_OtherTasksRemain(t *testing.T) {
	m, _ := newTestManager(t)
	fixClock(t, fixedTime)
	a, _ := m.CreateTask("a", "")
	fixClock(t, fixedTime.Add(time.Minute))
	b, _ := m.CreateTask("b", "")

	if err := m.CompleteTask(b.TaskID); err != nil {
		t.Fatal(err)
	}
	g, _ := m.ReadGlobal()
	if len(g.ActiveTasks) != 1 || g.ActiveTasks[0].TaskID != a.TaskID {
		t.Errorf("registry = %+v", g.ActiveTasks)
	}
	if g.Phase != phases.Research {
		t.Errorf("registry phase = %q, want research", g.Phase)
	}
}

func TestResetTask(t *testing.T) {
	m, _ := newTestManager(t)
	ts, _ := m.CreateTask("x", "")
	_ = m.UpdateTaskPhase(ts.TaskID, phases.ParallelVerification)

	from, err := m.ResetTask(ts.TaskID, "scope changed")
	if err != nil {
		t.Fatalf("ResetTask: %v", err)
	}
	if from != phases.ParallelVerification {
		t.Errorf("from = %q", from)
	}

	doc, _ := m.ReadTask(ts.WorkflowDir)
	if doc.Phase != phases.Research || len(doc.SubPhases) != 0 {
		t.Errorf("doc = phase %q subPhases %v", doc.Phase, doc.SubPhases)
	}
	if len(doc.ResetHistory) != 1 || doc.ResetHistory[0].Reason != "scope changed" || doc.ResetHistory[0].FromPhase != from {
		t.Errorf("resetHistory = %+v", doc.ResetHistory)
	}

	g, _ := m.ReadGlobal()
	if g.ActiveTasks[0].Phase != phases.Research {
		t.Errorf("registry cache = %q", g.ActiveTasks[0].Phase)
	}
}

func TestActiveTask_SkipsCompleted(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(filepath.Join(root, "g.json"))
	g := NewGlobalState()
	g.ActiveTasks = []ActiveTask{
		{TaskID: "done", Phase: phases.Completed},
		{TaskID: "live", Phase: phases.Implementation},
	}
	if err := fs.WriteGlobal(g); err != nil {
		t.Fatal(err)
	}

	got, err := NewManager(fs, root, root).ActiveTask()
	if err != nil || got == nil || got.TaskID != "live" {
		t.Errorf("ActiveTask = %+v, %v; want live", got, err)
	}
}
