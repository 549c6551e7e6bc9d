package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/karimatan1106/workflow-plugin/internal/engine"
	"github.com/karimatan1106/workflow-plugin/internal/state"
	"github.com/karimatan1106/workflow-plugin/internal/tools"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current task",
	Long: `Print the same payload as the workflow_status tool.

Examples:
  workflow-plugin status
  workflow-plugin status --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusFormat != "json" && statusFormat != "yaml" {
			return fmt.Errorf("unknown format %q (want json or yaml)", statusFormat)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		mgr := state.NewManager(state.NewFileStore(cfg.GlobalStateFile), cfg.WorkflowDir, cfg.DocsDir)
		s, err := engine.New(mgr).Status(cmd.Context())
		var result tools.StatusResult
		switch {
		case err == nil:
			result = tools.BuildStatus(s)
		default:
			r, ok := engine.AsRejection(err)
			if !ok {
				return err
			}
			result = tools.StatusResult{Success: false, Status: "error", Message: r.Message}
		}
		return writeStatus(cmd.OutOrStdout(), statusFormat, result)
	},
}

func writeStatus(w io.Writer, format string, v tools.StatusResult) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func init() {
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "json", "Output format (json, yaml)")
	rootCmd.AddCommand(statusCmd)
}
