package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/karimatan1106/workflow-plugin/internal/phases"
	"github.com/karimatan1106/workflow-plugin/internal/state"
)

// --- Helpers ---

type fakeRecorder struct {
	events []Event
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, e Event) error {
	f.events = append(f.events, e)
	return f.err
}

func (f *fakeRecorder) kinds() []EventKind {
	out := make([]EventKind, len(f.events))
	for i, e := range f.events {
		out[i] = e.Kind
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *fakeRecorder) {
	t.Helper()
	root := t.TempDir()
	store := state.NewFileStore(filepath.Join(root, "state", "workflow-state.json"))
	mgr := state.NewManager(store, filepath.Join(root, "state", "workflows"), filepath.Join(root, "docs"))
	rec := &fakeRecorder{}
	return New(mgr, WithRecorder(rec)), rec
}

func mustStart(t *testing.T, e *Engine, name string) *state.TaskState {
	t.Helper()
	ts, err := e.Start(context.Background(), name, "")
	if err != nil {
		t.Fatalf("Start(%q): %v", name, err)
	}
	return ts
}

func currentPhase(t *testing.T, e *Engine) phases.Phase {
	t.Helper()
	st, err := e.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Idle {
		return phases.Idle
	}
	return st.State.Phase
}

// advance drives the current task to target, completing sub-phases and
// approving reviews on the way.
func advance(t *testing.T, e *Engine, target phases.Phase) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 40; i++ {
		p := currentPhase(t, e)
		if p == target {
			return
		}
		switch {
		case phases.RequiresApproval(p):
			if _, err := e.Approve(ctx, "design"); err != nil {
				t.Fatalf("Approve at %s: %v", p, err)
			}
		case phases.IsParallel(p):
			for _, sub := range phases.SubPhases(p) {
				if _, err := e.CompleteSub(ctx, string(sub)); err != nil {
					t.Fatalf("CompleteSub(%s): %v", sub, err)
				}
			}
			fallthrough
		default:
			if _, err := e.Next(ctx); err != nil {
				t.Fatalf("Next at %s: %v", p, err)
			}
		}
	}
	t.Fatalf("did not reach %s", target)
}

func wantRejection(t *testing.T, err error, contains string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected rejection containing %q, got nil", contains)
	}
	r, ok := AsRejection(err)
	if !ok {
		t.Fatalf("expected *Rejection, got %T: %v", err, err)
	}
	if !strings.Contains(r.Message, contains) {
		t.Errorf("message = %q, want it to contain %q", r.Message, contains)
	}
}

// --- Start / status ---

func TestStatus_Idle(t *testing.T) {
	e, _ := newTestEngine(t)

	st, err := e.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Idle {
		t.Error("expected idle")
	}
}

func TestStart(t *testing.T) {
	e, rec := newTestEngine(t)

	ts := mustStart(t, e, "ログイン機能")
	if ts.Phase != phases.Research {
		t.Errorf("Phase = %q, want research", ts.Phase)
	}
	if ts.Size() != phases.SizeLarge {
		t.Errorf("Size = %q, want large", ts.Size())
	}
	if got := rec.kinds(); len(got) != 1 || got[0] != KindTaskStarted {
		t.Errorf("recorded %v", got)
	}
}

func TestStart_Validation(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Start(context.Background(), "  ", "")
	wantRejection(t, err, MsgMissingTaskName)

	_, err = e.Start(context.Background(), "x", "small")
	wantRejection(t, err, "無効なタスクサイズです: small。有効な値: large")
}

// --- Next ---

func TestNext_NoTask(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Next(context.Background())
	wantRejection(t, err, MsgNoActiveTask)
}

func TestNext_Advances(t *testing.T) {
	e, _ := newTestEngine(t)
	mustStart(t, e, "task")

	tr, err := e.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tr.From != phases.Research || tr.To != phases.Requirements {
		t.Errorf("transition = %s → %s", tr.From, tr.To)
	}
	if got := currentPhase(t, e); got != phases.Requirements {
		t.Errorf("phase = %q", got)
	}
}

func TestNext_ParallelGroupNeedsAllSubPhases(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustStart(t, e, "task")
	advance(t, e, phases.ParallelAnalysis)

	_, err := e.Next(ctx)
	wantRejection(t, err, "未完了サブフェーズがあります: threat_modeling, planning")

	if _, err := e.CompleteSub(ctx, "threat_modeling"); err != nil {
		t.Fatalf("CompleteSub: %v", err)
	}
	_, err = e.Next(ctx)
	wantRejection(t, err, "planning")

	if _, err := e.CompleteSub(ctx, "planning"); err != nil {
		t.Fatalf("CompleteSub: %v", err)
	}
	tr, err := e.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tr.To != phases.ParallelDesign {
		t.Errorf("To = %q, want parallel_design", tr.To)
	}

	st, _ := e.Status(ctx)
	for _, sub := range phases.SubPhases(phases.ParallelDesign) {
		if st.State.SubPhases[sub] != phases.SubPending {
			t.Errorf("%s = %q, want pending", sub, st.State.SubPhases[sub])
		}
	}
}

func TestNext_ReviewNeedsApproval(t *testing.T) {
	e, _ := newTestEngine(t)
	mustStart(t, e, "task")
	advance(t, e, phases.DesignReview)

	_, err := e.Next(context.Background())
	wantRejection(t, err, "design_reviewフェーズはユーザー承認が必要です")
	if got := currentPhase(t, e); got != phases.DesignReview {
		t.Errorf("phase = %q, want design_review", got)
	}
}

func TestNext_WalksFullSequence(t *testing.T) {
	e, rec := newTestEngine(t)
	ts := mustStart(t, e, "task")

	advance(t, e, phases.Deploy)
	tr, err := e.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tr.To != phases.Completed || !tr.Completed {
		t.Errorf("final transition = %+v", tr)
	}

	st, err := e.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Idle {
		t.Error("registry should be empty after completion")
	}

	doc, err := e.Manager().ReadTask(ts.WorkflowDir)
	if err != nil {
		t.Fatalf("ReadTask: %v", err)
	}
	if doc.Phase != phases.Completed || doc.CompletedAt == "" {
		t.Errorf("doc = phase %q completedAt %q", doc.Phase, doc.CompletedAt)
	}

	kinds := rec.kinds()
	if kinds[len(kinds)-1] != KindTaskCompleted {
		t.Errorf("last event = %s, want task_completed", kinds[len(kinds)-1])
	}
}

func TestNext_VisitsPhasesInOrder(t *testing.T) {
	e, rec := newTestEngine(t)
	mustStart(t, e, "task")
	advance(t, e, phases.Deploy)
	if _, err := e.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}

	var visited []phases.Phase
	visited = append(visited, phases.Research)
	for _, ev := range rec.events {
		if ev.Kind == KindPhaseAdvanced || ev.Kind == KindApproved {
			visited = append(visited, ev.To)
		}
	}
	want := phases.Sequence(phases.SizeLarge)
	if len(visited) != len(want) {
		t.Fatalf("visited %d phases, want %d: %v", len(visited), len(want), visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visited[%d] = %s, want %s", i, visited[i], want[i])
		}
	}
}

func TestNext_RecorderFailureIsIgnored(t *testing.T) {
	e, rec := newTestEngine(t)
	rec.err = errors.New("disk full")
	mustStart(t, e, "task")

	if _, err := e.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
}

// --- Approve ---

func TestApprove(t *testing.T) {
	e, _ := newTestEngine(t)
	mustStart(t, e, "task")
	advance(t, e, phases.DesignReview)

	a, err := e.Approve(context.Background(), "design")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if a.Next != phases.TestDesign {
		t.Errorf("Next = %q, want test_design", a.Next)
	}
	if got := currentPhase(t, e); got != phases.TestDesign {
		t.Errorf("phase = %q", got)
	}
}

func TestApprove_WrongPhase(t *testing.T) {
	e, _ := newTestEngine(t)
	mustStart(t, e, "task")

	_, err := e.Approve(context.Background(), "design")
	wantRejection(t, err, "design_reviewフェーズでのみ実行可能です（現在: research）")
}

func TestApprove_TypeCheckedBeforeTask(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Approve(context.Background(), "deploy")
	wantRejection(t, err, "不明な承認タイプ: deploy。有効: design")

	_, err = e.Approve(context.Background(), "")
	wantRejection(t, err, MsgMissingApprovalType)
}

// --- Sub-phases ---

func TestCompleteSub(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustStart(t, e, "task")
	advance(t, e, phases.ParallelQuality)

	u, err := e.CompleteSub(ctx, "build_check")
	if err != nil {
		t.Fatalf("CompleteSub: %v", err)
	}
	if u.AllCompleted || len(u.Remaining) != 1 || u.Remaining[0] != phases.CodeReview {
		t.Errorf("update = %+v", u)
	}

	u, err = e.CompleteSub(ctx, "code_review")
	if err != nil {
		t.Fatalf("CompleteSub: %v", err)
	}
	if !u.AllCompleted {
		t.Error("expected all completed")
	}

	// Completing twice is harmless.
	if _, err := e.CompleteSub(ctx, "code_review"); err != nil {
		t.Errorf("second CompleteSub: %v", err)
	}
}

func TestCompleteSub_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustStart(t, e, "task")

	_, err := e.CompleteSub(ctx, "planning")
	wantRejection(t, err, "現在のフェーズ(research)は並列フェーズではありません")

	advance(t, e, phases.ParallelAnalysis)
	_, err = e.CompleteSub(ctx, "flowchart")
	wantRejection(t, err, "無効なサブフェーズです: flowchart。有効な値: threat_modeling, planning")

	_, err = e.CompleteSub(ctx, "")
	wantRejection(t, err, MsgMissingSubPhase)
}

func TestBeginSub(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustStart(t, e, "task")
	advance(t, e, phases.ParallelQuality)

	if _, err := e.BeginSub(ctx, "build_check"); err != nil {
		t.Fatalf("BeginSub: %v", err)
	}
	st, _ := e.Status(ctx)
	if active := phases.ActiveSubPhase(st.State.Phase, st.State.Progress()); active != phases.BuildCheck {
		t.Errorf("active = %q, want build_check", active)
	}

	if _, err := e.CompleteSub(ctx, "build_check"); err != nil {
		t.Fatalf("CompleteSub: %v", err)
	}
	_, err := e.BeginSub(ctx, "build_check")
	wantRejection(t, err, "build_checkは既に完了しています")
}

// --- Reset / switch ---

func TestReset(t *testing.T) {
	e, rec := newTestEngine(t)
	ctx := context.Background()
	mustStart(t, e, "task")
	advance(t, e, phases.Implementation)

	r, err := e.Reset(ctx, "要件変更")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if r.From != phases.Implementation || r.To != phases.Research {
		t.Errorf("reset = %+v", r)
	}
	if got := currentPhase(t, e); got != phases.Research {
		t.Errorf("phase = %q", got)
	}

	st, _ := e.Status(ctx)
	if n := len(st.State.ResetHistory); n != 1 {
		t.Fatalf("resetHistory len = %d", n)
	}
	if st.State.ResetHistory[0].Reason != "要件変更" {
		t.Errorf("reason = %q", st.State.ResetHistory[0].Reason)
	}
	if rec.events[len(rec.events)-1].Kind != KindTaskReset {
		t.Error("reset not recorded")
	}
}

func TestReset_FromResearch(t *testing.T) {
	e, _ := newTestEngine(t)
	mustStart(t, e, "task")

	r, err := e.Reset(context.Background(), "")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if r.From != phases.Research {
		t.Errorf("From = %q", r.From)
	}
}

func TestSwitch(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	first := mustStart(t, e, "first")
	second := mustStart(t, e, "second")

	tasks, err := e.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 2 || tasks[0].TaskID != second.TaskID {
		t.Fatalf("tasks = %+v", tasks)
	}

	task, err := e.Switch(ctx, first.TaskID)
	if err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if task.TaskName != "first" {
		t.Errorf("TaskName = %q", task.TaskName)
	}
	st, _ := e.Status(ctx)
	if st.Task.TaskID != first.TaskID {
		t.Errorf("current = %q, want %q", st.Task.TaskID, first.TaskID)
	}

	_, err = e.Switch(ctx, "nope")
	wantRejection(t, err, "タスクが見つかりません: nope")

	_, err = e.Switch(ctx, "")
	wantRejection(t, err, MsgMissingTaskID)
}

// --- Machine ---

func TestPhaseMachine_GuardBlocksIncompleteGroup(t *testing.T) {
	m, err := newPhaseMachine(phases.ParallelDesign, phases.SizeLarge, []phases.Phase{phases.Flowchart})
	if err != nil {
		t.Fatalf("newPhaseMachine: %v", err)
	}
	if _, err := m.fire(eventNext); err == nil {
		t.Error("expected guard to block NEXT")
	}
	if m.Current() != phases.ParallelDesign {
		t.Errorf("Current = %q", m.Current())
	}
}

func TestPhaseMachine_ReviewHasNoNext(t *testing.T) {
	m, err := newPhaseMachine(phases.DesignReview, phases.SizeLarge, nil)
	if err != nil {
		t.Fatalf("newPhaseMachine: %v", err)
	}
	if _, err := m.fire(eventNext); err == nil {
		t.Error("NEXT should not leave a review phase")
	}
	to, err := m.fire(approveEvent("design"))
	if err != nil {
		t.Fatalf("APPROVE: %v", err)
	}
	if to != phases.TestDesign {
		t.Errorf("to = %q", to)
	}
}

func TestPhaseMachine_UnknownPhase(t *testing.T) {
	if _, err := newPhaseMachine("bogus", phases.SizeLarge, nil); err == nil {
		t.Error("expected error for a phase outside the sequence")
	}
}

func TestFormatOperationError(t *testing.T) {
	err := opErr("フェーズ遷移", errors.New("EACCES"))
	if got := err.Error(); got != "フェーズ遷移に失敗しました: EACCES" {
		t.Errorf("Error() = %q", got)
	}
	if _, ok := AsRejection(err); ok {
		t.Error("operation error should not be a rejection")
	}
}
