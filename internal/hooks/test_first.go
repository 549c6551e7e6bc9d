package hooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func init() {
	register(Hook{Name: "test-first", Run: testFirst})
}

var (
	testFilePatterns = []string{".test.", ".spec.", "__tests__"}
	typeDefPatterns  = []string{"/types/", `\types\`, "/d.ts", ".d.ts"}
)

// testFirst warns when a new source file is written before its test.
func testFirst(ctx context.Context, env *Env, in *Input) (Exit, error) {
	if env.Config.SkipTestFirstCheck {
		return ExitAllow, nil
	}
	path := in.ToolInput.FilePath
	if in.ToolName != "Write" || path == "" {
		return ExitAllow, nil
	}

	if !isTestFirstTarget(path, env.Config.TestFirstExtensions) || containsAny(slashed(path), testFilePatterns) || containsAny(path, typeDefPatterns) {
		return ExitAllow, nil
	}
	if env.exists(path) {
		return ExitAllow, nil
	}

	for _, candidate := range testCandidates(path) {
		if env.exists(candidate) {
			return ExitAllow, nil
		}
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	fmt.Fprintln(env.Stdout)
	fmt.Fprintln(env.Stdout, "WARNING: 対応するテストファイルが見つかりません。")
	fmt.Fprintln(env.Stdout)
	fmt.Fprintln(env.Stdout, "テストファースト開発を推奨します:")
	fmt.Fprintln(env.Stdout, "  1. まずテストファイルを作成")
	fmt.Fprintln(env.Stdout, "  2. テストケースを定義")
	fmt.Fprintln(env.Stdout, "  3. 実装を行う")
	fmt.Fprintln(env.Stdout)
	fmt.Fprintln(env.Stdout, "テストファイルの配置例:")
	fmt.Fprintf(env.Stdout, "  %s/__tests__/%s.test%s\n\n", filepath.ToSlash(filepath.Dir(path)), base, ext)
	return ExitAllow, nil
}

func isTestFirstTarget(path string, exts []string) bool {
	p := slashed(path)
	if !strings.Contains(p, "/src/") {
		return false
	}
	for _, ext := range exts {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// testCandidates lists where a test for path may live.
func testCandidates(path string) []string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	dir := filepath.Dir(path)
	return []string{
		filepath.Join(dir, base+".test"+ext),
		filepath.Join(dir, base+".spec"+ext),
		filepath.Join(dir, "__tests__", base+".test"+ext),
		filepath.Join(dir, "__tests__", base+".spec"+ext),
	}
}

// exists reports whether path exists, resolving relative paths against the
// project directory.
func (env *Env) exists(path string) bool {
	_, err := os.Stat(env.resolve(path))
	return err == nil
}

func (env *Env) resolve(path string) string {
	path = filepath.FromSlash(slashed(path))
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(env.Config.ProjectDir, path)
}

func slashed(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
