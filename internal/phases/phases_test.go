package phases

import (
	"testing"

	"github.com/karimatan1106/workflow-plugin/internal/classify"
)

func TestLargeSequence(t *testing.T) {
	if len(Large) != 18 {
		t.Fatalf("len(Large) = %d, want 18", len(Large))
	}
	if Large[0] != Research {
		t.Errorf("first phase = %q, want research", Large[0])
	}
	if Large[len(Large)-1] != Completed {
		t.Errorf("last phase = %q, want completed", Large[len(Large)-1])
	}
}

func TestNext_WalksWholeSequence(t *testing.T) {
	visited := []Phase{Research}
	current := Research
	for {
		next, ok := Next(current, "")
		if !ok {
			break
		}
		visited = append(visited, next)
		current = next
	}

	if current != Completed {
		t.Fatalf("walk ended at %q, want completed", current)
	}
	if len(visited) != len(Large) {
		t.Fatalf("visited %d phases, want %d", len(visited), len(Large))
	}
	for i := range Large {
		if visited[i] != Large[i] {
			t.Errorf("visited[%d] = %q, want %q", i, visited[i], Large[i])
		}
	}
}

func TestNext_EdgeCases(t *testing.T) {
	if _, ok := Next(Completed, SizeLarge); ok {
		t.Error("Next(completed) should have no successor")
	}
	if _, ok := Next(Idle, SizeLarge); ok {
		t.Error("Next(idle) should have no successor")
	}
	if _, ok := Next(ThreatModeling, SizeLarge); ok {
		t.Error("sub-phases are not part of the sequence")
	}
	if _, ok := Next(Research, "tiny"); ok {
		t.Error("unknown size should have no sequence")
	}
	if next, _ := Next(Deploy, SizeLarge); next != Completed {
		t.Errorf("Next(deploy) = %q, want completed", next)
	}
}

func TestSequence_ReturnsCopy(t *testing.T) {
	seq := Sequence(SizeLarge)
	seq[0] = "mutated"
	if Large[0] != Research {
		t.Error("Sequence must not expose the backing slice")
	}
}

func TestValidateTaskSize(t *testing.T) {
	if err := ValidateTaskSize(SizeLarge); err != nil {
		t.Errorf("large: unexpected error %v", err)
	}
	for _, s := range []TaskSize{"small", "medium", ""} {
		if err := ValidateTaskSize(s); err == nil {
			t.Errorf("ValidateTaskSize(%q) should fail", s)
		}
	}
}

func TestParallelGroups(t *testing.T) {
	tests := []struct {
		group Phase
		n     int
	}{
		{ParallelAnalysis, 2},
		{ParallelDesign, 3},
		{ParallelQuality, 2},
		{ParallelVerification, 4},
	}
	for _, tt := range tests {
		if !IsParallel(tt.group) {
			t.Errorf("IsParallel(%q) = false", tt.group)
		}
		if got := len(SubPhases(tt.group)); got != tt.n {
			t.Errorf("len(SubPhases(%q)) = %d, want %d", tt.group, got, tt.n)
		}
		for _, m := range SubPhases(tt.group) {
			if g, ok := GroupOf(m); !ok || g != tt.group {
				t.Errorf("GroupOf(%q) = %q, want %q", m, g, tt.group)
			}
			if _, ok := Rules[m]; !ok {
				t.Errorf("sub-phase %q has no rule", m)
			}
		}
	}
	if IsParallel(Research) {
		t.Error("research is not parallel")
	}
	if SubPhases(Research) != nil {
		t.Error("SubPhases(research) should be nil")
	}
}

func TestApprovals(t *testing.T) {
	if !RequiresApproval(DesignReview) {
		t.Error("design_review requires approval")
	}
	if RequiresApproval(TestDesign) {
		t.Error("test_design does not require approval")
	}
	a, ok := Approvals["design"]
	if !ok || a.Expected != DesignReview || a.Next != TestDesign {
		t.Errorf("design approval = %+v", a)
	}
}

func TestEveryNonParallelPhaseHasRule(t *testing.T) {
	for _, p := range Large {
		if IsParallel(p) {
			continue
		}
		if _, ok := Rules[p]; !ok {
			t.Errorf("phase %q missing from rule table", p)
		}
		if Describe(p) == string(p) {
			t.Errorf("phase %q has no description", p)
		}
	}
}

func TestReadOnlyRulesBlockEverything(t *testing.T) {
	for p, r := range Rules {
		if !r.ReadOnly {
			continue
		}
		if len(r.Allowed) != 0 {
			t.Errorf("%q: read-only rule allows %v", p, r.Allowed)
		}
		for _, c := range classify.All {
			if r.Allows(c) {
				t.Errorf("%q: read-only rule allows %q", p, c)
			}
		}
	}
}

func TestCanEdit_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		phase Phase
		cat   classify.Category
		want  bool
	}{
		{"code blocked in test_impl", TestImpl, classify.Code, false},
		{"test allowed in test_impl", TestImpl, classify.Test, true},
		{"code allowed in implementation", Implementation, classify.Code, true},
		{"test blocked in implementation", Implementation, classify.Test, false},
		{"other unlisted in implementation", Implementation, classify.Other, true},
		{"research blocks spec", Research, classify.Spec, false},
		{"unknown phase fails open", "some_future_phase", classify.Code, true},
		{"refactoring allows tests", Refactoring, classify.Test, true},
		{"push is read-only", Push, classify.Spec, false},
		{"e2e allows tests", E2ETest, classify.Test, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanEdit(tt.phase, tt.cat, Progress{}); got != tt.want {
				t.Errorf("CanEdit(%q, %q) = %v, want %v", tt.phase, tt.cat, got, tt.want)
			}
		})
	}
}

func TestActiveSubPhase(t *testing.T) {
	t.Run("latest update wins", func(t *testing.T) {
		p := Progress{
			Updates: map[Phase]string{
				StateMachine: "2026-01-10T10:00:00Z",
				Flowchart:    "2026-01-10T11:00:00Z",
				Planning:     "2026-01-10T12:00:00Z", // other group, ignored
			},
			Statuses: map[Phase]SubPhaseStatus{UIDesign: SubInProgress},
		}
		if got := ActiveSubPhase(ParallelDesign, p); got != Flowchart {
			t.Errorf("ActiveSubPhase = %q, want flowchart", got)
		}
	})

	t.Run("in_progress fallback", func(t *testing.T) {
		p := Progress{Statuses: map[Phase]SubPhaseStatus{
			StateMachine: SubCompleted,
			UIDesign:     SubInProgress,
		}}
		if got := ActiveSubPhase(ParallelDesign, p); got != UIDesign {
			t.Errorf("ActiveSubPhase = %q, want ui_design", got)
		}
	})

	t.Run("unparseable timestamps ignored", func(t *testing.T) {
		p := Progress{Updates: map[Phase]string{BuildCheck: "yesterday"}}
		if got := ActiveSubPhase(ParallelQuality, p); got != "" {
			t.Errorf("ActiveSubPhase = %q, want none", got)
		}
	})

	t.Run("not a group", func(t *testing.T) {
		if got := ActiveSubPhase(Research, Progress{}); got != "" {
			t.Errorf("ActiveSubPhase(research) = %q, want none", got)
		}
	})
}

func TestRuleFor_ParallelUnion(t *testing.T) {
	// parallel_quality: build_check is read-only, code_review allows spec.
	// The union must allow spec and drop it from blocked.
	rule, ok := RuleFor(ParallelQuality, Progress{})
	if !ok {
		t.Fatal("RuleFor(parallel_quality) not found")
	}
	if !rule.Allows(classify.Spec) {
		t.Error("union should allow spec")
	}
	if rule.Allows(classify.Code) {
		t.Error("union should still block code")
	}
	for _, c := range rule.Blocked {
		for _, a := range rule.Allowed {
			if c == a {
				t.Errorf("category %q both allowed and blocked", c)
			}
		}
	}
	if rule.JapaneseName != string(ParallelQuality) {
		t.Errorf("JapaneseName = %q", rule.JapaneseName)
	}
}

func TestRuleFor_ParallelActiveMember(t *testing.T) {
	p := Progress{Statuses: map[Phase]SubPhaseStatus{BuildCheck: SubInProgress}}
	rule, _ := RuleFor(ParallelQuality, p)
	if !rule.ReadOnly {
		t.Error("active build_check should apply the read-only rule")
	}
	if CanEdit(ParallelQuality, classify.Spec, p) {
		t.Error("spec should be blocked while build_check is active")
	}
}

func TestRuleFor_DesignUnionAllowsDiagram(t *testing.T) {
	if !CanEdit(ParallelDesign, classify.Diagram, Progress{}) {
		t.Error("parallel_design union should allow diagrams")
	}
	if CanEdit(ParallelDesign, classify.Code, Progress{}) {
		t.Error("parallel_design union should block code")
	}
}
