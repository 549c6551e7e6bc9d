package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

func init() {
	register(Hook{Name: "spec-sync", Run: specSync})
}

var (
	relatedFilesBlock = regexp.MustCompile(`<!-- @related-files -->([\s\S]*?)<!-- @end-related-files -->`)
	relatedFileRef    = regexp.MustCompile("`([^`]+\\.(?:ts|tsx|js|jsx|mjs|cjs))`")
)

// RelatedFiles returns the code files a spec lists between its
// @related-files markers. ok is false when the spec has no such block.
func RelatedFiles(spec string) (files []string, ok bool) {
	m := relatedFilesBlock.FindStringSubmatch(spec)
	if m == nil {
		return nil, false
	}
	for _, ref := range relatedFileRef.FindAllStringSubmatch(m[1], -1) {
		files = append(files, ref[1])
	}
	return files, true
}

// SpecSyncReport sorts a spec's related files after an edit of the spec.
type SpecSyncReport struct {
	Spec     string
	Existing []string
	Missing  []string
	// Unreferenced are existing files without an @spec comment naming
	// SpecRef.
	Unreferenced []string
	SpecRef      string
}

// specSync lists the code a just-edited spec refers to so it can be
// brought in line. It never blocks.
func specSync(ctx context.Context, env *Env, in *Input) (Exit, error) {
	cfg := env.Config
	path := in.ToolInput.FilePath
	if cfg.SkipSpecSyncCheck || !isSpecPath(path, cfg.SpecDir) {
		return ExitAllow, nil
	}
	specPath := env.resolve(path)
	data, err := os.ReadFile(specPath)
	if errors.Is(err, fs.ErrNotExist) {
		return ExitAllow, nil
	}
	if err != nil {
		return ExitAllow, fmt.Errorf("reading spec: %w", err)
	}

	files, ok := RelatedFiles(string(data))
	if !ok {
		fmt.Fprintf(env.Stdout, "\n[INFO] 仕様書に関連ファイルが定義されていません: %s\n", path)
		fmt.Fprintln(env.Stdout, "\n<!-- @related-files --> タグを追加してください。")
		fmt.Fprintln(env.Stdout)
		return ExitAllow, nil
	}
	if len(files) == 0 {
		return ExitAllow, nil
	}

	writeSpecSyncNotice(env.Stdout, env.checkRelatedFiles(specPath, files))
	return ExitAllow, nil
}

func (env *Env) checkRelatedFiles(specPath string, files []string) SpecSyncReport {
	base := filepath.Join(env.Config.ProjectDir, env.Config.ProjectSubdir)
	r := SpecSyncReport{Spec: specPath}
	if rel, err := filepath.Rel(base, specPath); err == nil {
		r.SpecRef = filepath.ToSlash(rel)
	} else {
		r.SpecRef = filepath.ToSlash(specPath)
	}

	for _, f := range files {
		content, err := os.ReadFile(filepath.Join(base, filepath.FromSlash(f)))
		if err != nil {
			r.Missing = append(r.Missing, f)
			continue
		}
		r.Existing = append(r.Existing, f)
		text := string(content)
		if !strings.Contains(text, "@spec") || !strings.Contains(text, r.SpecRef) {
			r.Unreferenced = append(r.Unreferenced, f)
		}
	}
	return r
}

func writeSpecSyncNotice(w io.Writer, r SpecSyncReport) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintf(w, "\n%s\n[仕様書変更検知] 関連コードの確認が必要です\n%s\n", rule, rule)
	fmt.Fprintf(w, "\n変更された仕様書: %s\n", filepath.Base(r.Spec))

	if len(r.Existing) > 0 {
		fmt.Fprintln(w, "\n確認・修正が必要な関連ファイル:")
		for _, f := range r.Existing {
			fmt.Fprintf(w, "   - %s\n", f)
		}
	}
	if len(r.Missing) > 0 {
		fmt.Fprintln(w, "\n[警告] 存在しない関連ファイル（新規作成が必要）:")
		for _, f := range r.Missing {
			fmt.Fprintf(w, "   - %s\n", f)
		}
	}
	fmt.Fprintln(w, "\n仕様書の変更内容に合わせて、上記ファイルを確認・修正してください。")
	fmt.Fprintf(w, "%s\n\n", rule)

	for _, f := range r.Unreferenced {
		fmt.Fprintf(w, "[WARNING] %s に仕様書参照がありません。\n", f)
		fmt.Fprintf(w, "  追加推奨: /** @spec %s */\n\n", r.SpecRef)
	}
}
