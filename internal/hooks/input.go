package hooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// maxStdinBytes caps the hook payload read from stdin.
const maxStdinBytes = 1 << 20

var (
	ErrEmptyInput   = errors.New("empty hook input")
	ErrInvalidInput = errors.New("invalid hook input")
)

// ToolInput is the subset of the intercepted tool's arguments the hooks use.
type ToolInput struct {
	FilePath string `json:"file_path,omitempty"`
	Command  string `json:"command,omitempty"`
}

// WorkflowContext is attached to workflow_next and workflow_complete_sub
// results for the artifact check.
type WorkflowContext struct {
	WorkflowDir  string `json:"workflowDir"`
	Phase        string `json:"phase"`
	CurrentPhase string `json:"currentPhase"`
	SubPhase     string `json:"subPhase,omitempty"`
}

// Input is the JSON document a hook receives on stdin.
type Input struct {
	ToolName        string           `json:"tool_name"`
	ToolInput       ToolInput        `json:"tool_input"`
	WorkflowContext *WorkflowContext `json:"workflow_context,omitempty"`
	ToolResponse    json.RawMessage  `json:"tool_response,omitempty"`
}

const inputSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "tool_name": { "type": "string" },
    "tool_input": {
      "type": "object",
      "properties": {
        "file_path": { "type": "string" },
        "command": { "type": "string" }
      }
    },
    "workflow_context": {
      "type": "object",
      "properties": {
        "workflowDir": { "type": "string" },
        "phase": { "type": "string" },
        "currentPhase": { "type": "string" },
        "subPhase": { "type": "string" }
      }
    }
  }
}`

var inputSchemaLoader = gojsonschema.NewStringLoader(inputSchemaJSON)

// ParseInput reads and validates a hook payload.
func ParseInput(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxStdinBytes))
	if err != nil {
		return nil, fmt.Errorf("reading hook input: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyInput
	}

	result, err := gojsonschema.Validate(inputSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
	}

	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &in, nil
}

// Context returns the workflow context of the payload: the top-level field
// when present, otherwise one found in the tool response, either as an
// object field or inside a JSON text content block.
func (in *Input) Context() *WorkflowContext {
	if in.WorkflowContext != nil {
		return in.WorkflowContext
	}
	if len(in.ToolResponse) == 0 {
		return nil
	}

	var direct struct {
		WorkflowContext *WorkflowContext `json:"workflow_context"`
	}
	if json.Unmarshal(in.ToolResponse, &direct) == nil && direct.WorkflowContext != nil {
		return direct.WorkflowContext
	}

	var blocks []contentBlock
	if json.Unmarshal(in.ToolResponse, &blocks) != nil {
		var wrapped struct {
			Content []contentBlock `json:"content"`
		}
		if json.Unmarshal(in.ToolResponse, &wrapped) != nil {
			return nil
		}
		blocks = wrapped.Content
	}
	for _, b := range blocks {
		if b.Type != "text" {
			continue
		}
		if json.Unmarshal([]byte(b.Text), &direct) == nil && direct.WorkflowContext != nil {
			return direct.WorkflowContext
		}
	}
	return nil
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func isEditTool(name string) bool {
	return name == "Edit" || name == "Write"
}
