package hooks

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/karimatan1106/workflow-plugin/internal/phases"
	"github.com/karimatan1106/workflow-plugin/internal/state"
)

// SyncCheckpoints are the target phases at which the task directory's
// diagrams must already be mirrored into the spec tree.
var SyncCheckpoints = map[phases.Phase]bool{
	phases.DesignReview:    true,
	phases.ParallelQuality: true,
	phases.Commit:          true,
}

// UnsyncedDiagram is a .mmd file of the task directory with no copy next
// to the spec.
type UnsyncedDiagram struct {
	Source   string
	Expected string
}

// SpecProblem reports a spec that log.md does not name or that does not
// exist. Expected is empty in the first case.
type SpecProblem struct {
	Expected string
}

// taskDirPattern extracts the safe task name from "<date>_<time>[_n]_<name>".
// Safe names never contain "_", so the collision suffix is unambiguous.
var taskDirPattern = regexp.MustCompile(`^\d{8}_\d{6}(?:_\d+)?_(.+)$`)

var (
	kebabAcronym = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	kebabCamel   = regexp.MustCompile(`([a-z])([A-Z])`)
	kebabSpace   = regexp.MustCompile(`[\s/]+`)
	kebabDrop    = regexp.MustCompile(`[^a-z0-9\-\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}]`)
)

// kebabCase turns a task name into a spec file stem: FRDifferenceRanking
// becomes fr-difference-ranking.
func kebabCase(s string) string {
	s = kebabAcronym.ReplaceAllString(s, "${1}-${2}")
	s = kebabCamel.ReplaceAllString(s, "${1}-${2}")
	s = strings.ToLower(s)
	s = kebabSpace.ReplaceAllString(s, "-")
	return kebabDrop.ReplaceAllString(s, "")
}

// specPathPatterns finds the spec a task log names, most specific first:
// a path under a "## 仕様書" heading, a "仕様書:" label, then any path
// below specDir.
func specPathPatterns(specDir string) []*regexp.Regexp {
	dir := regexp.QuoteMeta(strings.TrimSuffix(slashed(specDir), "/"))
	return []*regexp.Regexp{
		regexp.MustCompile(`##\s*仕様書[\s\S]*?(` + dir + `/[^\s]+\.md)`),
		regexp.MustCompile(`仕様書:\s*(` + dir + `/[^\s]+\.md)`),
		regexp.MustCompile(`(` + dir + `/[^\s)]+\.md)`),
	}
}

// specPathFromLog returns the spec path recorded in the task's log.md, or
// "" when the log is absent or names none.
func (env *Env) specPathFromLog(taskDir string) string {
	data, err := os.ReadFile(filepath.Join(taskDir, state.TaskLogFile))
	if err != nil {
		return ""
	}
	content := string(data)
	for _, re := range specPathPatterns(env.Config.SpecDir) {
		if m := re.FindStringSubmatch(content); m != nil {
			return m[1]
		}
	}
	return ""
}

// diagramMirror infers where the diagram named file belongs in the spec
// tree: next to the spec from log.md, else under the feature spec
// directory named after the task. ok is false when neither is known.
func (env *Env) diagramMirror(taskDir, file string) (string, bool) {
	kind := strings.TrimSuffix(file, ".mmd")
	if spec := env.specPathFromLog(taskDir); spec != "" {
		stem := strings.TrimSuffix(path.Base(spec), ".md")
		return path.Join(path.Dir(spec), stem+"."+kind+".mmd"), true
	}
	if m := taskDirPattern.FindStringSubmatch(filepath.Base(taskDir)); m != nil {
		return path.Join(slashed(env.Config.FeatureSpecDir), kebabCase(m[1])+"."+kind+".mmd"), true
	}
	return path.Join(slashed(env.Config.SpecDir), "{domain}", "{feature-name}."+kind+".mmd"), false
}

func (env *Env) unsyncedDiagrams(taskDir string) []UnsyncedDiagram {
	entries, err := os.ReadDir(taskDir)
	if err != nil {
		return nil
	}
	var out []UnsyncedDiagram
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mmd") {
			continue
		}
		expected, ok := env.diagramMirror(taskDir, e.Name())
		if ok && env.exists(expected) {
			continue
		}
		out = append(out, UnsyncedDiagram{
			Source:   filepath.ToSlash(filepath.Join(taskDir, e.Name())),
			Expected: expected,
		})
	}
	return out
}

func (env *Env) specProblem(taskDir string) *SpecProblem {
	spec := env.specPathFromLog(taskDir)
	if spec == "" {
		return &SpecProblem{}
	}
	if !env.exists(spec) {
		return &SpecProblem{Expected: spec}
	}
	return nil
}

// CheckArtifactSync checks the task directory on a transition into target.
// The artifacts of the phase being left (current, or sub when set) must
// exist; at a sync checkpoint every diagram must be mirrored into the
// spec tree, and entering commit also needs the spec log.md names.
func (env *Env) CheckArtifactSync(taskDir string, target, current, sub phases.Phase) ArtifactReport {
	if info, err := os.Stat(taskDir); err != nil || !info.IsDir() {
		return ArtifactReport{Notes: []string{"ワークフローディレクトリが存在しません"}}
	}

	var r ArtifactReport
	if current != "" {
		r = CheckArtifacts(taskDir, current, sub)
	}
	if !SyncCheckpoints[target] {
		return r
	}
	r.Unsynced = env.unsyncedDiagrams(taskDir)
	if target == phases.Commit {
		r.Spec = env.specProblem(taskDir)
	}
	return r
}

func specProblemLines(specDir string, p *SpecProblem) []string {
	lines := []string{"仕様書が " + slashed(specDir) + "/ に作成されていません"}
	if p.Expected != "" {
		return append(lines, "期待されるパス: "+p.Expected, "planning フェーズの完了条件を確認してください")
	}
	return append(lines, "log.md に仕様書パスを記載し、仕様書を作成してください")
}
