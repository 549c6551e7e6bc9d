package phases

import (
	"time"

	"github.com/karimatan1106/workflow-plugin/internal/classify"
)

// TDDPhase labels the Red/Green/Refactor role of a phase. Descriptive only.
type TDDPhase string

const (
	TDDRed      TDDPhase = "Red"
	TDDGreen    TDDPhase = "Green"
	TDDRefactor TDDPhase = "Refactor"
)

// SubPhaseStatus is the progress of one sub-phase.
type SubPhaseStatus string

const (
	SubPending    SubPhaseStatus = "pending"
	SubInProgress SubPhaseStatus = "in_progress"
	SubCompleted  SubPhaseStatus = "completed"
)

// Rule is the edit policy of one phase.
type Rule struct {
	Allowed      []classify.Category
	Blocked      []classify.Category
	Description  string
	JapaneseName string
	ReadOnly     bool
	TDD          TDDPhase
}

// Allows reports whether the rule lets category c be edited. Categories
// named in neither list are allowed.
func (r Rule) Allows(c classify.Category) bool {
	if contains(r.Allowed, c) {
		return true
	}
	return !contains(r.Blocked, c)
}

var (
	none        = []classify.Category{}
	specOnly    = []classify.Category{classify.Spec, classify.Config, classify.Env}
	notSpec     = []classify.Category{classify.Code, classify.Test, classify.Diagram}
	specDiagram = []classify.Category{classify.Spec, classify.Diagram, classify.Config, classify.Env}
	specTest    = []classify.Category{classify.Spec, classify.Test, classify.Config, classify.Env}
	codeTest    = []classify.Category{classify.Code, classify.Test}
	codeDiagram = []classify.Category{classify.Code, classify.Diagram}
	everything  = []classify.Category{classify.Code, classify.Test, classify.Spec, classify.Diagram, classify.Config, classify.Env, classify.Other}
)

func readOnly(desc, name string) Rule {
	return Rule{Allowed: none, Blocked: everything, Description: desc, JapaneseName: name, ReadOnly: true}
}

// Rules is the static edit-rule table, keyed by phase and sub-phase.
// Parallel groups are absent: their rule is derived from their members.
var Rules = map[Phase]Rule{
	Idle: {
		Allowed:      []classify.Category{classify.Config, classify.Env},
		Blocked:      []classify.Category{classify.Code, classify.Test, classify.Spec, classify.Diagram},
		Description:  "idle フェーズではコード編集は許可されません。タスクを開始してください。",
		JapaneseName: "アイドル",
	},
	Research: readOnly("research フェーズは読み取り専用です。ファイル編集はできません。", "調査"),
	Requirements: {
		Allowed: specOnly, Blocked: notSpec,
		Description:  "仕様書（.md）のみ編集可能。コードはまだ編集できません。",
		JapaneseName: "要件定義",
	},
	ThreatModeling: {
		Allowed: specOnly, Blocked: notSpec,
		Description:  "脅威モデリング仕様（.md）のみ編集可能。コードは編集できません。",
		JapaneseName: "脅威モデリング",
	},
	Planning: {
		Allowed: specOnly, Blocked: notSpec,
		Description:  "計画書（.md）のみ編集可能。コード編集はまだできません。",
		JapaneseName: "計画",
	},
	ArchitectureReview: {
		Allowed: specOnly, Blocked: notSpec,
		Description:  "アーキテクチャ設計書（.md）のみ編集可能。",
		JapaneseName: "アーキテクチャレビュー",
	},
	StateMachine: {
		Allowed: specDiagram, Blocked: codeTest,
		Description:  "仕様書（.md）とステートマシン図（.mmd）のみ編集可能。",
		JapaneseName: "ステートマシン設計",
	},
	Flowchart: {
		Allowed: specDiagram, Blocked: codeTest,
		Description:  "仕様書（.md）とフローチャート（.mmd）のみ編集可能。",
		JapaneseName: "フローチャート設計",
	},
	UIDesign: {
		Allowed: specDiagram, Blocked: codeTest,
		Description:  "UI設計書（.md）とUI図式（.mmd）のみ編集可能。",
		JapaneseName: "UI設計",
	},
	DesignReview: {
		Allowed: specDiagram, Blocked: codeTest,
		Description:  "設計レビュー段階。仕様書と図式の修正のみ可能。",
		JapaneseName: "設計レビュー",
	},
	TestDesign: {
		Allowed: specTest, Blocked: codeDiagram,
		Description:  "テスト設計フェーズ。テストコードと仕様書のみ編集可能。",
		JapaneseName: "テスト設計",
	},
	TestImpl: {
		Allowed: specTest, Blocked: codeDiagram,
		Description:  "テスト実装フェーズ（TDD Red）。テストコードのみ作成してください。",
		JapaneseName: "テスト実装（Red）",
		TDD:          TDDRed,
	},
	Implementation: {
		Allowed:      []classify.Category{classify.Code, classify.Spec, classify.Config, classify.Env},
		Blocked:      []classify.Category{classify.Test, classify.Diagram},
		Description:  "実装フェーズ（TDD Green）。ソースコード編集可能。テストコードは編集不可。",
		JapaneseName: "実装（Green）",
		TDD:          TDDGreen,
	},
	Refactoring: {
		Allowed: everything, Blocked: none,
		Description:  "リファクタリングフェーズ（TDD Refactor）。コード修正可能。",
		JapaneseName: "リファクタリング（Refactor）",
		TDD:          TDDRefactor,
	},
	BuildCheck: readOnly("ビルドチェック中。ファイル編集は禁止です。", "ビルドチェック"),
	CodeReview: {
		Allowed: specOnly, Blocked: notSpec,
		Description:  "コードレビュー中。仕様書の更新のみ可能。",
		JapaneseName: "コードレビュー",
	},
	Testing:      readOnly("テスト実行中。ファイル編集は禁止です。", "テスト実行"),
	ManualTest:   readOnly("手動テスト中。ファイル編集は禁止です。", "手動テスト"),
	SecurityScan: readOnly("セキュリティスキャン中。ファイル編集は禁止です。", "セキュリティスキャン"),
	PerformanceTest: {
		Allowed: specOnly, Blocked: notSpec,
		Description:  "パフォーマンステスト中。計測結果の記録（.md）のみ編集可能。",
		JapaneseName: "パフォーマンステスト",
	},
	E2ETest: {
		Allowed: specTest, Blocked: codeDiagram,
		Description:  "E2Eテストフェーズ。E2Eテストコードと仕様書のみ編集可能。",
		JapaneseName: "E2Eテスト",
	},
	DocsUpdate: {
		Allowed: specOnly, Blocked: notSpec,
		Description:  "ドキュメント更新フェーズ。仕様書のみ編集可能。",
		JapaneseName: "ドキュメント更新",
	},
	Commit: readOnly("コミット中。ファイル編集は禁止です。", "コミット"),
	Push:   readOnly("プッシュ中。ファイル編集は禁止です。", "プッシュ"),
	CIVerification: {
		Allowed: specOnly, Blocked: notSpec,
		Description:  "CI検証中。検証結果の記録（.md）のみ編集可能。",
		JapaneseName: "CI検証",
	},
	Deploy: {
		Allowed: specOnly, Blocked: notSpec,
		Description:  "デプロイ中。手順書・記録（.md）のみ編集可能。",
		JapaneseName: "デプロイ",
	},
	Completed: {
		Allowed: everything, Blocked: none,
		Description:  "タスク完了。全ての編集が許可されます。",
		JapaneseName: "完了",
	},
}

// Progress is the sub-phase bookkeeping used to find the active member of
// a parallel group. Updates holds RFC 3339 timestamps.
type Progress struct {
	Updates  map[Phase]string
	Statuses map[Phase]SubPhaseStatus
}

// ActiveSubPhase picks the member of group being worked on: the member with
// the latest update timestamp, else the member marked in_progress, else "".
func ActiveSubPhase(group Phase, p Progress) Phase {
	members := ParallelGroups[group]
	if len(members) == 0 {
		return ""
	}

	var (
		latest   Phase
		latestAt time.Time
	)
	for _, m := range members {
		raw, ok := p.Updates[m]
		if !ok {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			continue
		}
		if latest == "" || at.After(latestAt) {
			latest, latestAt = m, at
		}
	}
	if latest != "" {
		return latest
	}

	for _, m := range members {
		if p.Statuses[m] == SubInProgress {
			return m
		}
	}
	return ""
}

// RuleFor resolves the effective rule of phase. For a parallel group it is
// the active member's rule, or the permissive union of all members when no
// member is active. ok is false for phases missing from the table.
func RuleFor(phase Phase, p Progress) (rule Rule, ok bool) {
	if IsParallel(phase) {
		if active := ActiveSubPhase(phase, p); active != "" {
			if r, found := Rules[active]; found {
				return r, true
			}
		}
		return mergeRules(phase), true
	}
	rule, ok = Rules[phase]
	return rule, ok
}

// CanEdit reports whether category c may be edited in phase. Unknown
// phases allow everything.
func CanEdit(phase Phase, c classify.Category, p Progress) bool {
	rule, ok := RuleFor(phase, p)
	if !ok {
		return true
	}
	return rule.Allows(c)
}

func mergeRules(group Phase) Rule {
	allowed := map[classify.Category]bool{}
	blocked := map[classify.Category]bool{}
	for _, m := range ParallelGroups[group] {
		r, ok := Rules[m]
		if !ok {
			continue
		}
		for _, c := range r.Allowed {
			allowed[c] = true
		}
		for _, c := range r.Blocked {
			blocked[c] = true
		}
	}

	merged := Rule{
		Allowed:      []classify.Category{},
		Blocked:      []classify.Category{},
		Description:  "並列フェーズ実行中。共通ルールを適用。",
		JapaneseName: string(group),
	}
	for _, c := range classify.All {
		switch {
		case allowed[c]:
			merged.Allowed = append(merged.Allowed, c)
		case blocked[c]:
			merged.Blocked = append(merged.Blocked, c)
		}
	}
	return merged
}

func contains(cs []classify.Category, c classify.Category) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}
