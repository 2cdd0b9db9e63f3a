package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// ResetTool handles the ct_reset MCP tool.
type ResetTool struct {
	sess *session.Session
}

// NewResetTool creates a ResetTool.
func NewResetTool(sess *session.Session) *ResetTool {
	return &ResetTool{sess: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *ResetTool) Definition() mcp.Tool {
	return mcp.NewTool("ct_reset",
		mcp.WithDescription(
			"Start over: discard the dataset, all answers and all feedback. "+
				"During an exercise this is destructive, so ask the user first and pass `confirm: true`.",
		),
		mcp.WithBoolean("confirm",
			mcp.Description("Required while an exercise is in progress"),
		),
	)
}

// Handle processes the ct_reset tool call.
func (t *ResetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := t.sess.Reset(boolArg(req, "confirm", false))
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Session reset.\n\n%s\n\nLoad a dataset with `ct_load_dataset` to begin a new exercise.",
		phaseRail(snap.Phase),
	)), nil
}
