// Package tools implements the MCP tool handlers of the workflow engine.
//
// Each tool is a struct holding its dependencies with a Definition for
// registration and a Handle compatible with mcp-go's CallToolRequest
// signature. Every handler answers with a JSON object carrying at least
// {success, message}; failures never escape as Go errors.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/engine"
)

// Reply is the common part of every tool result.
type Reply struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// WorkflowContext is handed to the artifact-check hook after next and
// complete_sub.
type WorkflowContext struct {
	WorkflowDir  string `json:"workflowDir"`
	Phase        string `json:"phase"`
	CurrentPhase string `json:"currentPhase"`
	SubPhase     string `json:"subPhase,omitempty"`
}

// respond encodes v as the tool result text.
func respond(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// fail renders err as {success:false, message}. Rejections and operation
// errors carry their own text; anything else is wrapped as a failure of op.
func fail(op string, err error) (*mcp.CallToolResult, error) {
	msg := err.Error()
	var opErr *engine.OperationError
	if _, ok := engine.AsRejection(err); !ok && !errors.As(err, &opErr) {
		msg = engine.FormatOperationError(op, err)
	}
	data, mErr := json.MarshalIndent(Reply{Success: false, Message: msg}, "", "  ")
	if mErr != nil {
		return nil, fmt.Errorf("encoding tool result: %w", mErr)
	}
	return mcp.NewToolResultError(string(data)), nil
}
