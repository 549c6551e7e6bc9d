package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karimatan1106/workflow-plugin/internal/config"
	"github.com/karimatan1106/workflow-plugin/internal/logging"
)

var projectDir string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "workflow-plugin",
	Short: "Phase-gated development workflow for AI coding assistants",
	Long: `workflow-plugin enforces a fixed development sequence on an AI coding
assistant: research, requirements, design, TDD, quality checks, release.

Commands:
  serve     Start the MCP tool server (stdio)
  hook      Run one editor hook (JSON on stdin, exit 0 allow / 1 warn / 2 block)
  status    Show the current task
  watch     Follow phase changes as they happen
  version   Show version information

Configuration comes from .claude/workflow.yaml and the environment
(STATE_DIR, WORKFLOW_DIR, SKIP_PHASE_GUARD, ...).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "project-dir", "", "Project directory (default: current directory)")
}

// loadConfig resolves the configuration and starts file logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := logging.Init(cfg.LogDir, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	return cfg, nil
}
