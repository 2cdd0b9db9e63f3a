package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// SetAnswerTool handles the ct_set_answer MCP tool.
// It records the free-form answer for Define, Analyze or Decide.
type SetAnswerTool struct {
	sess *session.Session
}

// NewSetAnswerTool creates a SetAnswerTool.
func NewSetAnswerTool(sess *session.Session) *SetAnswerTool {
	return &SetAnswerTool{sess: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *SetAnswerTool) Definition() mcp.Tool {
	return mcp.NewTool("ct_set_answer",
		mcp.WithDescription(
			"Write or replace one of the user's answers. `gap_analysis` belongs to Define, "+
				"`supporting_indications` to Analyze and `action_plan` to Decide. "+
				"Answers need at least 10 characters before the phase can advance. "+
				"Use the user's own words; do not write the answer for them.",
		),
		mcp.WithString("field",
			mcp.Required(),
			mcp.Description("Which answer to set"),
			mcp.Enum("gap_analysis", "supporting_indications", "action_plan"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("The answer text, exactly as the user wrote it"),
		),
	)
}

// Handle processes the ct_set_answer tool call.
func (t *SetAnswerTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	field, err := pipeline.ParseField(req.GetString("field", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value := req.GetString("value", "")

	snap, err := t.sess.SetField(field, value)
	if err != nil {
		return errorResult(err)
	}

	note := ""
	if own, ok := pipeline.FieldForPhase(snap.Phase); ok && own != field {
		note = fmt.Sprintf("\n\nNote: the current phase is %s, which is gated on `%s`.", snap.Phase.Title(), own)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Saved `%s` (%d characters).\n\n%s%s",
		field, len([]rune(value)), readiness(snap), note,
	)), nil
}
