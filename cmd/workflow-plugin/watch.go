package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/karimatan1106/workflow-plugin/internal/state"
	"github.com/karimatan1106/workflow-plugin/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow phase changes as they happen",
	Long: `Watch the workflow state and print "<time> <taskId> <phase>" whenever
the current task's phase changes. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		mgr := state.NewManager(state.NewFileStore(cfg.GlobalStateFile), cfg.WorkflowDir, cfg.DocsDir)
		w := watch.New(mgr, cfg.GlobalStateFile, watchDebounce, func(c watch.Change) {
			fmt.Fprintln(out, c.String())
		})
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("watching %s: %w", cfg.GlobalStateFile, err)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before re-reading the state")
	rootCmd.AddCommand(watchCmd)
}
