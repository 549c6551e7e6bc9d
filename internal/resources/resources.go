// Package resources implements MCP resource handlers for the workflow.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (workflow://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karimatan1106/workflow-plugin/internal/engine"
	"github.com/karimatan1106/workflow-plugin/internal/phases"
	"github.com/karimatan1106/workflow-plugin/internal/tools"
)

const (
	StatusURI = "workflow://status"
	PhasesURI = "workflow://phases"
)

// Handler manages workflow resource endpoints.
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

// StatusResource returns the MCP resource definition for the current task.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		StatusURI,
		"Workflow Status",
		mcp.WithResourceDescription("現在のタスク、フェーズ、サブフェーズ状態"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the same payload as workflow_status.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s, err := h.engine.Status(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, tools.BuildStatus(s))
}

// PhaseInfo describes one phase of the sequence.
type PhaseInfo struct {
	Phase       string   `json:"phase"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Allowed     []string `json:"allowed"`
	SubPhases   []string `json:"subPhases,omitempty"`
	Approval    bool     `json:"requiresApproval,omitempty"`
}

// PhasesResource returns the MCP resource definition for the phase table.
func (h *Handler) PhasesResource() mcp.Resource {
	return mcp.NewResource(
		PhasesURI,
		"Workflow Phases",
		mcp.WithResourceDescription("フェーズの順序と各フェーズで編集可能なファイル種別"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandlePhases lists the phase sequence with each phase's edit rule.
func (h *Handler) HandlePhases(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	seq := phases.Sequence(phases.DefaultTaskSize)
	out := make([]PhaseInfo, 0, len(seq))
	for _, p := range seq {
		info := PhaseInfo{
			Phase:       string(p),
			Description: phases.Describe(p),
			Allowed:     []string{},
			SubPhases:   phases.Strings(phases.SubPhases(p)),
			Approval:    phases.RequiresApproval(p),
		}
		if len(info.SubPhases) == 0 {
			info.SubPhases = nil
		}
		if rule, ok := phases.RuleFor(p, phases.Progress{}); ok {
			info.Name = rule.JapaneseName
			for _, c := range rule.Allowed {
				info.Allowed = append(info.Allowed, string(c))
			}
		}
		out = append(out, info)
	}
	return jsonResource(req.Params.URI, out)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
