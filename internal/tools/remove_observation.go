package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// RemoveObservationTool handles the ct_remove_observation MCP tool.
type RemoveObservationTool struct {
	sess *session.Session
}

// NewRemoveObservationTool creates a RemoveObservationTool.
func NewRemoveObservationTool(sess *session.Session) *RemoveObservationTool {
	return &RemoveObservationTool{sess: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *RemoveObservationTool) Definition() mcp.Tool {
	return mcp.NewTool("ct_remove_observation",
		mcp.WithDescription("Remove an observation by its number as shown in `ct_status` (1-based)."),
		mcp.WithNumber("index",
			mcp.Required(),
			mcp.Description("Observation number, starting at 1"),
		),
	)
}

// Handle processes the ct_remove_observation tool call.
func (t *RemoveObservationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index := intArg(req, "index", 0)
	if index < 1 {
		return mcp.NewToolResultError("`index` must be a number starting at 1."), nil
	}

	snap, err := t.sess.RemoveObservation(index - 1)
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed observation %d.\n\n%s\n%s",
		index, renderInputs(snap.Inputs), readiness(snap))), nil
}
