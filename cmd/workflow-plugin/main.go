// workflow-plugin: phase-gated development workflow for AI coding assistants.
//
// One binary serves the MCP tools and runs the editor hooks.
//
// Usage:
//
//	workflow-plugin serve               # Start MCP server (stdio transport)
//	workflow-plugin hook phase-guard    # Run one hook, hook JSON on stdin
//	workflow-plugin status -f yaml      # Print the current task
//	workflow-plugin watch               # Follow phase changes
package main

import (
	"os"
)

// exit is swapped in tests so the hook command's exit code can be observed.
var exit = os.Exit

func main() {
	if err := rootCmd.Execute(); err != nil {
		exit(1)
	}
}
