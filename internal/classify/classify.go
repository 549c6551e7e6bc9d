// Package classify maps file paths to the semantic categories that drive
// phase edit permissions.
//
// Classification is purely lexical: paths are never resolved, cleaned or
// decoded. Case and path separator are insignificant.
package classify

import (
	"regexp"
	"strings"
)

// Category is the semantic kind of a file path.
type Category string

const (
	Code    Category = "code"
	Test    Category = "test"
	Spec    Category = "spec"
	Diagram Category = "diagram"
	Config  Category = "config"
	Env     Category = "env"
	Other   Category = "other"
)

// All lists every category in display order.
var All = []Category{Code, Test, Spec, Diagram, Config, Env, Other}

var codeExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".py", ".go", ".rs"}

var testPatterns = []string{".test.", ".spec.", "__tests__", "/tests/"}

// configPatterns are matched as substrings of the normalized path.
var configPatterns = []string{
	"package.json",
	"package-lock.json",
	"pnpm-lock.yaml",
	"pnpm-lock.yml",
	"tsconfig.json",
	"tsconfig.base.json",
	".eslintrc",
	".eslintrc.js",
	".eslintrc.json",
	".prettierrc",
	".prettierrc.js",
	".prettierrc.json",
	"vite.config",
	"webpack.config",
	"jest.config",
	"vitest.config",
	".gitignore",
	".gitattributes",
	"serverless.yml",
	"docker-compose.yml",
	"dockerfile",
}

var (
	configExtRe = regexp.MustCompile(`\.(json|yaml|yml|toml)$`)
	envRe       = regexp.MustCompile(`\.env(\.\w+)?$`)
)

// alwaysAllowed matches the workflow state documents themselves.
var alwaysAllowed = []*regexp.Regexp{
	regexp.MustCompile(`(?i)workflow-state\.json$`),
	regexp.MustCompile(`(?i)\.claude-workflow-state\.json$`),
	regexp.MustCompile(`(?i)\.claude-.*\.json$`),
}

// Normalize converts backslashes to slashes and lowercases the path.
func Normalize(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, `\`, "/"))
}

// Classify returns the category of path. It is total: every input,
// including the empty string, yields exactly one category.
func Classify(path string) Category {
	p := Normalize(path)
	if p == "" {
		return Other
	}

	switch {
	case isTest(p):
		return Test
	case strings.HasSuffix(p, ".mmd"):
		return Diagram
	case strings.HasSuffix(p, ".md"):
		return Spec
	case hasCodeExtension(p):
		if isConfig(p) {
			return Config
		}
		return Code
	case isConfig(p):
		return Config
	case isEnv(p):
		return Env
	}
	return Other
}

// IsAlwaysEditable reports whether files of category c bypass phase
// restrictions entirely.
func IsAlwaysEditable(c Category) bool {
	return c == Config || c == Env
}

// IsAlwaysAllowedPath reports whether path names a workflow state document,
// which may be written in any phase.
func IsAlwaysAllowedPath(path string) bool {
	p := Normalize(path)
	for _, re := range alwaysAllowed {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// IsTestPath reports whether path looks like a test file.
func IsTestPath(path string) bool {
	return isTest(Normalize(path))
}

func isTest(p string) bool {
	if p == "" {
		return false
	}
	for _, pat := range testPatterns {
		if strings.Contains(p, pat) {
			return true
		}
	}
	return strings.HasPrefix(p, "tests/")
}

func hasCodeExtension(p string) bool {
	for _, ext := range codeExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

func isConfig(p string) bool {
	for _, pat := range configPatterns {
		if strings.Contains(p, pat) {
			return true
		}
	}
	if configExtRe.MatchString(p) {
		return !isTest(p)
	}
	return false
}

func isEnv(p string) bool {
	return envRe.MatchString(p) || strings.HasSuffix(p, ".env")
}
