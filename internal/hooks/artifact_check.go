package hooks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/karimatan1106/workflow-plugin/internal/auditlog"
	"github.com/karimatan1106/workflow-plugin/internal/phases"
)

func init() {
	register(Hook{Name: "artifact-check", Run: artifactCheck})
}

// Artifact is a file a phase must leave in the task directory.
type Artifact struct {
	Pattern     string
	Description string
	Optional    bool
}

// RequiredArtifacts lists the artifacts per phase or sub-phase.
var RequiredArtifacts = map[phases.Phase][]Artifact{
	phases.Requirements:   {{Pattern: "requirements.md", Description: "要件定義書"}},
	phases.ThreatModeling: {{Pattern: "threat-model.md", Description: "脅威モデル"}},
	phases.Planning:       {{Pattern: "planning.md", Description: "計画書"}},
	phases.StateMachine:   {{Pattern: "*.state-machine.mmd", Description: "ステートマシン図"}},
	phases.Flowchart:      {{Pattern: "*.flowchart.mmd", Description: "フローチャート"}},
	phases.UIDesign:       {{Pattern: "ui-design.md", Description: "UI設計書", Optional: true}},
	phases.TestDesign:     {{Pattern: "test-design.md", Description: "テスト設計書"}},
}

// ArtifactReport is the outcome of checking one task directory.
type ArtifactReport struct {
	Missing  []Artifact
	Optional []Artifact
	Unsynced []UnsyncedDiagram
	Spec     *SpecProblem
	// Notes are non-blocking remarks such as an absent directory.
	Notes []string
}

// Passed reports whether nothing blocks the transition.
func (r ArtifactReport) Passed() bool {
	return len(r.Missing) == 0 && len(r.Unsynced) == 0 && r.Spec == nil
}

func (r ArtifactReport) outOfSync() bool {
	return len(r.Unsynced) > 0 || r.Spec != nil
}

// artifactsFor resolves what must exist after leaving phase. A sub-phase
// names its own artifacts; a parallel group without one needs every
// member's.
func artifactsFor(phase, subPhase phases.Phase) []Artifact {
	if subPhase != "" {
		return RequiredArtifacts[subPhase]
	}
	if phases.IsParallel(phase) {
		var out []Artifact
		for _, m := range phases.SubPhases(phase) {
			out = append(out, RequiredArtifacts[m]...)
		}
		return out
	}
	return RequiredArtifacts[phase]
}

// CheckArtifacts looks for the artifacts of phase (or subPhase) in dir.
func CheckArtifacts(dir string, phase, subPhase phases.Phase) ArtifactReport {
	var r ArtifactReport
	want := artifactsFor(phase, subPhase)
	if len(want) == 0 {
		return r
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		r.Notes = append(r.Notes, "ワークフローディレクトリが存在しません")
		return r
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	for _, a := range want {
		if matchArtifact(names, a.Pattern) {
			continue
		}
		if a.Optional {
			r.Optional = append(r.Optional, a)
		} else {
			r.Missing = append(r.Missing, a)
		}
	}
	return r
}

func matchArtifact(names []string, pattern string) bool {
	suffix, glob := strings.CutPrefix(pattern, "*")
	for _, n := range names {
		if glob && strings.HasSuffix(n, suffix) {
			return true
		}
		if !glob && n == pattern {
			return true
		}
	}
	return false
}

var artifactSeparator = strings.Repeat("━", 52)

// artifactCheck blocks a transition whose finished phase left required
// artifacts missing, or that reaches a sync checkpoint with the spec tree
// behind the task directory.
func artifactCheck(ctx context.Context, env *Env, in *Input) (Exit, error) {
	if env.Config.SkipArtifactCheck {
		w := env.Stderr
		fmt.Fprintf(w, "\n%s\n⚠️  成果物反映チェックがスキップされました\n%s\n\n", artifactSeparator, artifactSeparator)
		fmt.Fprintln(w, "環境変数 SKIP_ARTIFACT_CHECK=1 が設定されています。")
		fmt.Fprintln(w, "成果物が docs/specs/ に反映されていない可能性があります。")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "このスキップはログに記録されます。")
		fmt.Fprintln(w)
		appendAudit(ctx, auditlog.Open(env.Config.ArtifactCheckLogPath()), map[string]any{
			"event":  "skip",
			"reason": "SKIP_ARTIFACT_CHECK environment variable",
		})
		return ExitAllow, nil
	}

	wc := in.Context()
	if wc == nil || wc.WorkflowDir == "" || wc.Phase == "" {
		return ExitAllow, nil
	}

	report := env.CheckArtifactSync(env.resolve(wc.WorkflowDir),
		phases.Phase(wc.Phase), phases.Phase(wc.CurrentPhase), phases.Phase(wc.SubPhase))
	if !report.Passed() {
		writeArtifactFailure(env.Stderr, env.Config.SpecDir, filepath.ToSlash(wc.WorkflowDir), report)
		return ExitBlock, nil
	}
	writeArtifactWarnings(env.Stdout, filepath.ToSlash(wc.WorkflowDir), report)
	return ExitAllow, nil
}

func writeArtifactFailure(w io.Writer, specDir, dir string, r ArtifactReport) {
	fmt.Fprintf(w, "\n%s\n🚫 成果物反映チェック失敗\n%s\n\n", artifactSeparator, artifactSeparator)
	if r.outOfSync() {
		fmt.Fprintf(w, "以下のファイルが %s/ に反映されていません:\n\n", slashed(specDir))
	}
	if len(r.Missing) > 0 {
		fmt.Fprintln(w, "【必須成果物の欠落】")
		for _, a := range r.Missing {
			fmt.Fprintf(w, "  ❌ %s\n", a.Description)
			fmt.Fprintf(w, "     検索場所: %s\n", dir)
			fmt.Fprintf(w, "     パターン: %s\n\n", a.Pattern)
			fmt.Fprintf(w, "     対処方法: %sを作成してください\n\n", a.Description)
		}
	}
	if len(r.Unsynced) > 0 {
		fmt.Fprintln(w, "【未反映の図ファイル】")
		for _, d := range r.Unsynced {
			fmt.Fprintf(w, "  ソース: %s\n", d.Source)
			fmt.Fprintf(w, "  反映先: %s\n\n", d.Expected)
			fmt.Fprintln(w, "  実行コマンド:")
			fmt.Fprintf(w, "  cp \"%s\" \"%s\"\n\n", d.Source, d.Expected)
		}
	}
	if r.Spec != nil {
		fmt.Fprintln(w, "【仕様書の確認】")
		for _, line := range specProblemLines(specDir, r.Spec) {
			fmt.Fprintf(w, "  %s\n", line)
		}
		fmt.Fprintln(w)
	}
	writeOptional(w, dir, r.Optional)
	fmt.Fprintln(w, "対処方法:")
	if r.outOfSync() {
		fmt.Fprintln(w, "  1. 上記コマンドを実行して図ファイルをコピー")
		fmt.Fprintln(w, "  2. 仕様書を作成/更新")
		fmt.Fprintln(w, "  3. 再度 /workflow next を実行")
	} else {
		fmt.Fprintln(w, "  1. 不足している成果物を作成")
		fmt.Fprintln(w, "  2. 再度 /workflow next を実行")
	}
	fmt.Fprintf(w, "\n%s\n", artifactSeparator)
}

func writeArtifactWarnings(w io.Writer, dir string, r ArtifactReport) {
	if len(r.Optional) == 0 && len(r.Notes) == 0 {
		return
	}
	if len(r.Notes) > 0 {
		fmt.Fprintln(w, "\n⚠️  警告:")
		for _, n := range r.Notes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
		fmt.Fprintln(w)
	}
	writeOptional(w, dir, r.Optional)
}

func writeOptional(w io.Writer, dir string, optional []Artifact) {
	if len(optional) == 0 {
		return
	}
	fmt.Fprintln(w, "【警告（オプショナル成果物）】")
	for _, a := range optional {
		fmt.Fprintf(w, "  ⚠️ %s\n", a.Description)
		fmt.Fprintf(w, "     検索場所: %s\n", dir)
		fmt.Fprintf(w, "     パターン: %s\n\n", a.Pattern)
		fmt.Fprintf(w, "     推奨: %sの作成を検討してください\n\n", a.Description)
	}
}
