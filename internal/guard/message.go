package guard

import (
	"fmt"
	"strings"

	"github.com/karimatan1106/workflow-plugin/internal/phases"
)

var separator = strings.Repeat("=", 60)

var tddCycle = []struct {
	tdd   phases.TDDPhase
	phase phases.Phase
	desc  string
}{
	{phases.TDDRed, phases.TestImpl, "テストコードを書く"},
	{phases.TDDGreen, phases.Implementation, "テストを通す実装を書く"},
	{phases.TDDRefactor, phases.Refactoring, "コード品質を改善"},
}

// BlockMessage renders the diagnostic for a blocked decision.
func BlockMessage(d Decision) string {
	var b strings.Builder
	rule := d.Rule
	name := rule.JapaneseName
	if name == "" {
		name = string(d.Phase)
	}

	b.WriteString("\n" + separator + "\n")
	b.WriteString(" フェーズ別編集制限違反\n")
	b.WriteString(separator + "\n\n")

	fmt.Fprintf(&b, " フェーズ: %s（%s）\n", d.Phase, name)
	fmt.Fprintf(&b, " ファイル: %s\n", d.Path)
	fmt.Fprintf(&b, " ファイルタイプ: %s（%s）\n\n", d.Category, d.Category.Label())
	fmt.Fprintf(&b, " 理由: %s\n\n", rule.Description)

	if rule.TDD != "" {
		b.WriteString(" TDD サイクル:\n")
		for i, step := range tddCycle {
			marker := ""
			if step.tdd == rule.TDD {
				marker = " ← 現在地"
			}
			fmt.Fprintf(&b, "   %d. %s フェーズ（%s）: %s%s\n", i+1, step.tdd, step.phase, step.desc, marker)
		}
		b.WriteString("\n")
	}

	if rule.ReadOnly {
		b.WriteString(" 注意: このフェーズは読み取り専用です。\n\n")
	}

	b.WriteString(" 許可されるファイル:\n")
	if len(rule.Allowed) == 0 {
		b.WriteString("   - なし（読み取り専用）\n")
	}
	for _, c := range rule.Allowed {
		fmt.Fprintf(&b, "   - %s: %s\n", c.Label(), c.Examples())
	}
	b.WriteString("\n")

	b.WriteString(" 次のステップ:\n")
	switch {
	case rule.ReadOnly:
		b.WriteString("   1. このフェーズの作業を完了してください\n")
		b.WriteString("   2. /workflow next で次フェーズへ進んでください\n")
	case rule.TDD == phases.TDDRed:
		b.WriteString("   1. テストコード（.test.ts, .spec.ts）を作成してください\n")
		b.WriteString("   2. テスト作成が完了したら /workflow next で次フェーズへ\n")
	case rule.TDD == phases.TDDGreen:
		b.WriteString("   1. ソースコードを実装してテストをパスさせてください\n")
		b.WriteString("   2. 実装完了後 /workflow next で次フェーズへ\n")
	default:
		b.WriteString("   1. 許可されたファイルを編集してください\n")
		b.WriteString("   2. 作業完了後 /workflow next で次フェーズへ\n")
	}
	b.WriteString("\n")

	b.WriteString(" スキップ（緊急時のみ）:\n")
	b.WriteString("   SKIP_PHASE_GUARD=true を設定\n\n")
	b.WriteString(separator + "\n")
	return b.String()
}
