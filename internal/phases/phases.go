// Package phases defines the workflow phase sequence, the parallel groups,
// approval gates and the per-phase edit rules.
//
// Everything here is static data plus pure lookups. Persistence lives in
// the state package; transitions live in the engine package.
package phases

import "fmt"

// Phase is a named stage of the workflow. Sub-phases share the type.
type Phase string

// Top-level phases in sequence order, plus the idle zero state.
const (
	Idle                 Phase = "idle"
	Research             Phase = "research"
	Requirements         Phase = "requirements"
	ParallelAnalysis     Phase = "parallel_analysis"
	ParallelDesign       Phase = "parallel_design"
	DesignReview         Phase = "design_review"
	TestDesign           Phase = "test_design"
	TestImpl             Phase = "test_impl"
	Implementation       Phase = "implementation"
	Refactoring          Phase = "refactoring"
	ParallelQuality      Phase = "parallel_quality"
	Testing              Phase = "testing"
	ParallelVerification Phase = "parallel_verification"
	DocsUpdate           Phase = "docs_update"
	Commit               Phase = "commit"
	Push                 Phase = "push"
	CIVerification       Phase = "ci_verification"
	Deploy               Phase = "deploy"
	Completed            Phase = "completed"
)

// Sub-phases of the parallel groups.
const (
	ThreatModeling  Phase = "threat_modeling"
	Planning        Phase = "planning"
	StateMachine    Phase = "state_machine"
	Flowchart       Phase = "flowchart"
	UIDesign        Phase = "ui_design"
	BuildCheck      Phase = "build_check"
	CodeReview      Phase = "code_review"
	ManualTest      Phase = "manual_test"
	SecurityScan    Phase = "security_scan"
	PerformanceTest Phase = "performance_test"
	E2ETest         Phase = "e2e_test"
)

// ArchitectureReview is a legacy phase kept in the rule table only.
const ArchitectureReview Phase = "architecture_review"

// TaskSize selects a phase sequence.
type TaskSize string

const (
	SizeLarge TaskSize = "large"

	// DefaultTaskSize applies whenever a task carries no size.
	DefaultTaskSize = SizeLarge
)

// Large is the full 18-phase sequence.
var Large = []Phase{
	Research,
	Requirements,
	ParallelAnalysis,
	ParallelDesign,
	DesignReview,
	TestDesign,
	TestImpl,
	Implementation,
	Refactoring,
	ParallelQuality,
	Testing,
	ParallelVerification,
	DocsUpdate,
	Commit,
	Push,
	CIVerification,
	Deploy,
	Completed,
}

// SequenceBySize maps each supported task size to its phase sequence.
var SequenceBySize = map[TaskSize][]Phase{
	SizeLarge: Large,
}

// ValidTaskSizes returns the supported sizes.
func ValidTaskSizes() []string {
	return []string{string(SizeLarge)}
}

// ValidateTaskSize checks that s names a supported size.
func ValidateTaskSize(s TaskSize) error {
	if _, ok := SequenceBySize[s]; !ok {
		return fmt.Errorf("invalid task size %q: must be one of: large", s)
	}
	return nil
}

// Sequence returns a copy of the phase sequence for size. An empty size
// resolves to DefaultTaskSize; an unknown size yields nil.
func Sequence(size TaskSize) []Phase {
	if size == "" {
		size = DefaultTaskSize
	}
	seq, ok := SequenceBySize[size]
	if !ok {
		return nil
	}
	out := make([]Phase, len(seq))
	copy(out, seq)
	return out
}

// Index returns the position of p in the sequence for size, or -1.
func Index(p Phase, size TaskSize) int {
	for i, s := range Sequence(size) {
		if s == p {
			return i
		}
	}
	return -1
}

// Next returns the phase after current in the sequence for size. ok is
// false when current is the last phase or not part of the sequence.
func Next(current Phase, size TaskSize) (next Phase, ok bool) {
	seq := Sequence(size)
	i := Index(current, size)
	if i < 0 || i >= len(seq)-1 {
		return "", false
	}
	return seq[i+1], true
}

// ParallelGroups maps each parallel-group phase to its member sub-phases.
var ParallelGroups = map[Phase][]Phase{
	ParallelAnalysis:     {ThreatModeling, Planning},
	ParallelDesign:       {StateMachine, Flowchart, UIDesign},
	ParallelQuality:      {BuildCheck, CodeReview},
	ParallelVerification: {ManualTest, SecurityScan, PerformanceTest, E2ETest},
}

// IsParallel reports whether p is a parallel group.
func IsParallel(p Phase) bool {
	_, ok := ParallelGroups[p]
	return ok
}

// SubPhases returns the members of parallel group p, or nil.
func SubPhases(p Phase) []Phase {
	members := ParallelGroups[p]
	if members == nil {
		return nil
	}
	out := make([]Phase, len(members))
	copy(out, members)
	return out
}

// IsMember reports whether sub belongs to parallel group p.
func IsMember(p, sub Phase) bool {
	for _, m := range ParallelGroups[p] {
		if m == sub {
			return true
		}
	}
	return false
}

// GroupOf returns the parallel group containing sub.
func GroupOf(sub Phase) (Phase, bool) {
	for group, members := range ParallelGroups {
		for _, m := range members {
			if m == sub {
				return group, true
			}
		}
	}
	return "", false
}

// ReviewPhases cannot be left with a plain advance.
var ReviewPhases = []Phase{DesignReview}

// RequiresApproval reports whether p is a review phase.
func RequiresApproval(p Phase) bool {
	for _, r := range ReviewPhases {
		if r == p {
			return true
		}
	}
	return false
}

// Approval is one approval-type mapping.
type Approval struct {
	Expected Phase
	Next     Phase
}

// Approvals maps approval types to their gate.
var Approvals = map[string]Approval{
	"design": {Expected: DesignReview, Next: TestDesign},
}

// ApprovalTypes returns the valid approval type names.
func ApprovalTypes() []string {
	return []string{"design"}
}

// Strings converts a phase slice for display.
func Strings(ps []Phase) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
