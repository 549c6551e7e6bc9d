package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/karimatan1106/workflow-plugin/internal/hooks"
	"github.com/karimatan1106/workflow-plugin/internal/logging"
)

var hookCmd = &cobra.Command{
	Use:   "hook <name>",
	Short: "Run one editor hook",
	Long: `Run one editor hook. The hook reads the tool-call JSON on stdin and
exits 0 to allow, 1 to warn, 2 to block.

Available hooks: ` + strings.Join(hooks.Names(), ", "),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, ok := hooks.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown hook %q (available: %s)", args[0], strings.Join(hooks.Names(), ", "))
		}

		// A hook must never block the host over its own setup failing.
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %v\n", h.Name, err)
			exit(int(hooks.ExitAllow))
			return nil
		}

		env := hooks.NewEnv(cfg)
		env.Stdout = cmd.OutOrStdout()
		env.Stderr = cmd.ErrOrStderr()

		code := hooks.RunGuarded(cmd.Context(), h, env, cmd.InOrStdin())
		logging.Close()
		exit(int(code))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hookCmd)
}
