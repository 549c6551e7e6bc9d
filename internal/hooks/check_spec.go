package hooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

func init() {
	register(Hook{Name: "check-spec", Run: checkSpec, FailClosed: true})
}

var checkSpecExclusions = []*regexp.Regexp{
	regexp.MustCompile(`/docs/`),
	regexp.MustCompile(`/test/`),
	regexp.MustCompile(`/tests/`),
	regexp.MustCompile(`/__tests__/`),
	regexp.MustCompile(`/node_modules/`),
	regexp.MustCompile(`/dist/`),
	regexp.MustCompile(`/build/`),
	regexp.MustCompile(`package\.json$`),
	regexp.MustCompile(`tsconfig.*\.json$`),
	regexp.MustCompile(`\.d\.ts$`),
	regexp.MustCompile(`\.claude/`),
	regexp.MustCompile(`\.test\.[jt]sx?$`),
	regexp.MustCompile(`\.spec\.[jt]sx?$`),
}

var checkSpecExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs"}

// checkSpec refuses to create a new source file that no feature spec
// describes. A missing spec directory refuses every new file.
func checkSpec(ctx context.Context, env *Env, in *Input) (Exit, error) {
	cfg := env.Config
	path := in.ToolInput.FilePath
	p := slashed(path)

	inCodeDir := false
	for _, dir := range cfg.FeatureCodeDirs {
		if strings.Contains(p, "/"+dir+"/") {
			inCodeDir = true
			break
		}
	}
	if !inCodeDir {
		return ExitAllow, nil
	}
	for _, re := range checkSpecExclusions {
		if re.MatchString(p) {
			return ExitAllow, nil
		}
	}
	ext := filepath.Ext(p)
	if !slices.Contains(checkSpecExtensions, ext) {
		return ExitAllow, nil
	}
	if env.exists(path) {
		return ExitAllow, nil
	}

	specsDir := env.resolve(cfg.FeatureSpecDir)
	entries, err := os.ReadDir(specsDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(env.Stderr, "[BLOCKED] 仕様書ディレクトリが存在しません: %s\n", specsDir)
			fmt.Fprintln(env.Stderr, "新規ファイル作成の前に、仕様書を作成してください。")
			return ExitBlock, nil
		}
		return ExitBlock, fmt.Errorf("reading spec directory: %w", err)
	}

	name := strings.ToLower(strings.TrimSuffix(filepath.Base(p), ext))
	for _, e := range entries {
		if specMatches(name, e.Name()) {
			return ExitAllow, nil
		}
	}

	fmt.Fprintln(env.Stderr, "\n[BLOCKED] 仕様書なしでの新規ファイル作成は禁止されています")
	fmt.Fprintf(env.Stderr, "\n対象ファイル: %s\n", path)
	fmt.Fprintln(env.Stderr, "\n対応方法:")
	fmt.Fprintf(env.Stderr, "  1. %s/ に仕様書を作成\n", cfg.FeatureSpecDir)
	fmt.Fprintln(env.Stderr, "  2. ユーザーの承認を得る")
	fmt.Fprintln(env.Stderr, "  3. その後で実装を開始")
	fmt.Fprintln(env.Stderr)
	return ExitBlock, nil
}

// specMatches compares a lowercased file base name with a spec file name,
// matching when either contains the other.
func specMatches(fileName, specFile string) bool {
	spec := strings.ToLower(strings.Replace(specFile, ".md", "", 1))
	return strings.Contains(fileName, spec) || strings.Contains(spec, fileName)
}
