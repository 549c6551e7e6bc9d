package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

func init() {
	register(Hook{Name: "spec-first", Run: specFirst})
	register(Hook{Name: "spec-guard-reset", Run: specGuardReset})
}

// SpecGuardState records whether a spec was touched since the last commit.
type SpecGuardState struct {
	SpecUpdated bool     `json:"specUpdated"`
	UpdatedAt   *string  `json:"updatedAt"`
	Files       []string `json:"files"`
	LastResetAt string   `json:"lastResetAt,omitempty"`
}

var specGuardCodeExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

func loadSpecGuardState(path string) *SpecGuardState {
	st := &SpecGuardState{Files: []string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return st
	}
	if err := json.Unmarshal(data, st); err != nil {
		return &SpecGuardState{Files: []string{}}
	}
	if st.Files == nil {
		st.Files = []string{}
	}
	return st
}

func saveSpecGuardState(path string, st *SpecGuardState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding spec guard state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (env *Env) timestamp() string {
	return env.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// specFirst records spec edits and blocks code edits until a spec was
// updated since the last commit.
func specFirst(ctx context.Context, env *Env, in *Input) (Exit, error) {
	cfg := env.Config
	if cfg.SkipSpecGuard || !isEditTool(in.ToolName) {
		return ExitAllow, nil
	}
	path := in.ToolInput.FilePath
	statePath := cfg.SpecGuardStatePath()

	if isSpecPath(path, cfg.SpecDir) {
		st := loadSpecGuardState(statePath)
		now := env.timestamp()
		st.SpecUpdated = true
		st.UpdatedAt = &now
		if !slices.Contains(st.Files, path) {
			st.Files = append(st.Files, path)
		}
		if err := saveSpecGuardState(statePath, st); err != nil {
			return ExitAllow, err
		}
		return ExitAllow, nil
	}

	if !isGuardedCodePath(path, cfg.CodeDirs) {
		return ExitAllow, nil
	}
	if loadSpecGuardState(statePath).SpecUpdated {
		return ExitAllow, nil
	}

	sep := strings.Repeat("=", 60)
	w := env.Stderr
	fmt.Fprintf(w, "\n%s\n 仕様ファースト違反\n%s\n\n", sep, sep)
	fmt.Fprintln(w, " コードを編集する前に、仕様書を更新してください。")
	fmt.Fprintln(w)
	fmt.Fprintln(w, " 手順:")
	fmt.Fprintf(w, "   1. %s/ 内の該当仕様書を更新\n", cfg.SpecDir)
	fmt.Fprintln(w, "   2. 仕様書に変更内容を記載")
	fmt.Fprintln(w, "   3. その後コードを編集")
	fmt.Fprintln(w)
	fmt.Fprintln(w, " スキップ（緊急時のみ）:")
	fmt.Fprintln(w, "   SKIP_SPEC_GUARD=true を設定")
	fmt.Fprintf(w, "\n%s\n", sep)
	return ExitBlock, nil
}

// specGuardReset clears the spec guard after a git commit.
func specGuardReset(ctx context.Context, env *Env, in *Input) (Exit, error) {
	if in.ToolName != "Bash" || !strings.Contains(in.ToolInput.Command, "git commit") {
		return ExitAllow, nil
	}
	st := &SpecGuardState{Files: []string{}, LastResetAt: env.timestamp()}
	if err := saveSpecGuardState(env.Config.SpecGuardStatePath(), st); err != nil {
		return ExitAllow, err
	}
	fmt.Fprintln(env.Stdout)
	fmt.Fprintln(env.Stdout, "仕様書ガード状態をリセットしました")
	fmt.Fprintln(env.Stdout, "   次の変更では再度仕様書の更新が必要です")
	return ExitAllow, nil
}

func isSpecPath(path, specDir string) bool {
	p := slashed(path)
	return specDir != "" && strings.Contains(p, specDir) && strings.HasSuffix(p, ".md")
}

func isGuardedCodePath(path string, codeDirs []string) bool {
	p := slashed(path)
	if containsAny(p, testFilePatterns) {
		return false
	}
	inCodeDir := false
	for _, dir := range codeDirs {
		if strings.Contains(p, "/"+dir+"/") {
			inCodeDir = true
			break
		}
	}
	if !inCodeDir {
		return false
	}
	for _, ext := range specGuardCodeExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
