package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/karimatan1106/workflow-plugin/internal/logging"
	wfserver "github.com/karimatan1106/workflow-plugin/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server (stdio transport)",
	Long: `Start the MCP server on stdin/stdout.

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "workflow": {
        "command": "workflow-plugin",
        "args": ["serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, cleanup := wfserver.New(cfg)
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logging.Info(ctx, "mcp server starting",
			slog.String("version", wfserver.Version),
			slog.String("project_dir", cfg.ProjectDir),
		)

		errCh := make(chan error, 1)
		go func() { errCh <- server.ServeStdio(s) }()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("serving stdio: %w", err)
			}
		case <-ctx.Done():
			logging.Info(context.Background(), "mcp server stopping")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
