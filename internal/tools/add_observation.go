package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// AddObservationTool handles the ct_add_observation MCP tool.
type AddObservationTool struct {
	sess *session.Session
}

// NewAddObservationTool creates an AddObservationTool.
func NewAddObservationTool(sess *session.Session) *AddObservationTool {
	return &AddObservationTool{sess: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *AddObservationTool) Definition() mcp.Tool {
	return mcp.NewTool("ct_add_observation",
		mcp.WithDescription(
			"Add one observation during the Gather phase. Exactly 5 observations are needed to advance; "+
				"blank text and a sixth observation are ignored.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("One observation drawn from the dashboard data"),
		),
	)
}

// Handle processes the ct_add_observation tool call.
func (t *AddObservationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")

	added, snap, err := t.sess.AddObservation(text)
	if err != nil {
		return errorResult(err)
	}

	n := len(snap.Inputs.Observations)
	var msg string
	switch {
	case added:
		msg = fmt.Sprintf("Added observation %d/%d.", n, pipeline.MaxObservations)
	case strings.TrimSpace(text) == "":
		msg = "Observation is empty; nothing was added."
	default:
		msg = fmt.Sprintf("Already at %d observations; remove one with `ct_remove_observation` first.", pipeline.MaxObservations)
	}
	return mcp.NewToolResultText(msg + "\n\n" + renderInputs(snap.Inputs) + "\n" + readiness(snap)), nil
}
