// Package config resolves the runtime settings of the workflow plugin.
//
// Values come from three layers: built-in defaults, an optional project
// file at .claude/workflow.yaml, and environment variables. Environment
// variables keep the names the hook scripts have always used (STATE_DIR,
// SKIP_PHASE_GUARD, ...), so existing settings.json files keep working.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProjectFile is the optional per-project settings file, relative to the
// project directory.
const ProjectFile = ".claude/workflow.yaml"

// Auxiliary log and state files, kept in the project directory under the
// names the hooks have always written.
const (
	PhaseGuardLogFile    = ".claude-phase-guard-log.json"
	LoopStateFile        = ".claude-loop-detector-state.json"
	LoopLogFile          = ".claude-loop-detection-log.json"
	ArtifactCheckLogFile = ".claude-artifact-check-log.json"
	HookErrorLogFile     = ".claude-hook-errors.log"
	SpecGuardStateFile   = "spec-guard-state.json"
)

// Config is the resolved configuration.
type Config struct {
	StateDir        string        `mapstructure:"state_dir"`
	WorkflowDir     string        `mapstructure:"workflow_dir"`
	DocsDir         string        `mapstructure:"docs_dir"`
	GlobalStateFile string        `mapstructure:"global_state_file"`
	LogDir          string        `mapstructure:"log_dir"`
	LogLevel        string        `mapstructure:"log_level"`
	JournalFile     string        `mapstructure:"journal_file"`
	HookTimeout     time.Duration `mapstructure:"hook_timeout"`

	// Spec-first guard and spec change notices.
	SpecDir  string   `mapstructure:"spec_dir"`
	CodeDirs []string `mapstructure:"code_dirs"`

	// ProjectSubdir is where related files named by a spec are looked up,
	// relative to the project directory.
	ProjectSubdir string `mapstructure:"project_subdir"`

	// New-file spec check.
	FeatureSpecDir  string   `mapstructure:"feature_spec_dir"`
	FeatureCodeDirs []string `mapstructure:"feature_code_dirs"`

	TestFirstExtensions []string `mapstructure:"test_first_extensions"`

	SkipPhaseGuard     bool `mapstructure:"skip_phase_guard"`
	SkipLoopDetection  bool `mapstructure:"skip_loop_detection"`
	SkipSpecGuard      bool `mapstructure:"skip_spec_guard"`
	SkipTestFirstCheck bool `mapstructure:"skip_test_first_check"`
	SkipArtifactCheck  bool `mapstructure:"skip_artifact_check"`
	SkipSpecSyncCheck  bool `mapstructure:"skip_spec_sync_check"`
	DebugPhaseGuard    bool `mapstructure:"debug_phase_guard"`

	// ProjectDir is the directory the config was loaded for.
	ProjectDir string `mapstructure:"-"`
}

// envBindings maps config keys to their environment variables.
var envBindings = map[string]string{
	"state_dir":             "STATE_DIR",
	"workflow_dir":          "WORKFLOW_DIR",
	"docs_dir":              "DOCS_DIR",
	"global_state_file":     "GLOBAL_STATE_FILE",
	"log_dir":               "WORKFLOW_LOG_DIR",
	"log_level":             "WORKFLOW_LOG_LEVEL",
	"journal_file":          "WORKFLOW_JOURNAL_FILE",
	"hook_timeout":          "WORKFLOW_HOOK_TIMEOUT",
	"spec_dir":              "SPEC_DIR",
	"code_dirs":             "CODE_DIRS",
	"project_subdir":        "PROJECT_SUBDIR",
	"feature_spec_dir":      "WORKFLOW_SPEC_DIR",
	"feature_code_dirs":     "WORKFLOW_CODE_DIRS",
	"test_first_extensions": "CODE_EXTENSIONS",
	"skip_phase_guard":      "SKIP_PHASE_GUARD",
	"skip_loop_detection":   "SKIP_LOOP_DETECTION",
	"skip_spec_guard":       "SKIP_SPEC_GUARD",
	"skip_test_first_check": "SKIP_TEST_FIRST_CHECK",
	"skip_artifact_check":   "SKIP_ARTIFACT_CHECK",
	"skip_spec_sync_check":  "SKIP_SPEC_SYNC_CHECK",
	"debug_phase_guard":     "DEBUG_PHASE_GUARD",
}

// Default returns the static defaults. Path defaults depend on the project
// directory and on each other, so they are left empty and filled by resolve.
func Default() *Config {
	return &Config{
		LogLevel:            "INFO",
		HookTimeout:         3 * time.Second,
		SpecDir:             "docs/specs",
		CodeDirs:            []string{"src"},
		FeatureSpecDir:      "docs/specs/features",
		FeatureCodeDirs:     []string{"src"},
		TestFirstExtensions: []string{".ts", ".tsx"},
	}
}

// setDefaults registers default values with v.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("state_dir", "")
	v.SetDefault("workflow_dir", "")
	v.SetDefault("docs_dir", "")
	v.SetDefault("global_state_file", "")
	v.SetDefault("log_dir", "")
	v.SetDefault("journal_file", "")
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("hook_timeout", d.HookTimeout)

	v.SetDefault("spec_dir", d.SpecDir)
	v.SetDefault("code_dirs", d.CodeDirs)
	v.SetDefault("project_subdir", "")
	v.SetDefault("feature_spec_dir", d.FeatureSpecDir)
	v.SetDefault("feature_code_dirs", d.FeatureCodeDirs)
	v.SetDefault("test_first_extensions", d.TestFirstExtensions)

	v.SetDefault("skip_phase_guard", false)
	v.SetDefault("skip_loop_detection", false)
	v.SetDefault("skip_spec_guard", false)
	v.SetDefault("skip_test_first_check", false)
	v.SetDefault("skip_artifact_check", false)
	v.SetDefault("skip_spec_sync_check", false)
	v.SetDefault("debug_phase_guard", false)
}

// Load resolves the configuration for projectDir. An empty projectDir
// means the current working directory.
func Load(projectDir string) (*Config, error) {
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		projectDir = wd
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	projectFile := filepath.Join(projectDir, ProjectFile)
	if _, err := os.Stat(projectFile); err == nil {
		v.SetConfigFile(projectFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", ProjectFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking %s: %w", ProjectFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ProjectDir = projectDir
	cfg.resolve()
	return &cfg, nil
}

// resolve fills derived path defaults and cleans list values.
func (c *Config) resolve() {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.ProjectDir, p)
	}

	c.StateDir = abs(c.StateDir)
	if c.StateDir == "" {
		c.StateDir = filepath.Join(c.ProjectDir, ".claude", "state")
	}
	c.WorkflowDir = abs(c.WorkflowDir)
	if c.WorkflowDir == "" {
		c.WorkflowDir = filepath.Join(c.StateDir, "workflows")
	}
	c.DocsDir = abs(c.DocsDir)
	if c.DocsDir == "" {
		c.DocsDir = filepath.Join(c.ProjectDir, "docs", "specs", "domains")
	}
	c.GlobalStateFile = abs(c.GlobalStateFile)
	if c.GlobalStateFile == "" {
		c.GlobalStateFile = filepath.Join(c.StateDir, "workflow-state.json")
	}
	c.LogDir = abs(c.LogDir)
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.StateDir, "logs")
	}
	c.JournalFile = abs(c.JournalFile)
	if c.JournalFile == "" {
		c.JournalFile = filepath.Join(c.StateDir, "journal.db")
	}
	if c.HookTimeout <= 0 {
		c.HookTimeout = Default().HookTimeout
	}
	if c.DebugPhaseGuard {
		c.LogLevel = "DEBUG"
	}

	c.CodeDirs = cleanList(c.CodeDirs)
	c.FeatureCodeDirs = cleanList(c.FeatureCodeDirs)
	c.TestFirstExtensions = cleanList(c.TestFirstExtensions)
}

// cleanList trims entries and drops empty ones. A single entry holding
// commas (an env value that bypassed slice decoding) is split.
func cleanList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Project returns path joined onto the project directory.
func (c *Config) Project(path string) string {
	return filepath.Join(c.ProjectDir, path)
}

// PhaseGuardLogPath is the phase-guard audit log.
func (c *Config) PhaseGuardLogPath() string { return c.Project(PhaseGuardLogFile) }

// LoopStatePath is the loop detector's per-file timestamp store.
func (c *Config) LoopStatePath() string { return c.Project(LoopStateFile) }

// LoopLogPath is the loop detector's warning log.
func (c *Config) LoopLogPath() string { return c.Project(LoopLogFile) }

// ArtifactCheckLogPath records skipped artifact checks.
func (c *Config) ArtifactCheckLogPath() string { return c.Project(ArtifactCheckLogFile) }

// HookErrorLogPath receives internal hook failures.
func (c *Config) HookErrorLogPath() string { return c.Project(HookErrorLogFile) }

// SpecGuardStatePath is the spec-first guard's state document.
func (c *Config) SpecGuardStatePath() string {
	return filepath.Join(c.StateDir, SpecGuardStateFile)
}
