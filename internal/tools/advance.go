package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// AdvanceTool handles the ct_advance MCP tool.
//
// Advancing is a two-step gate: the first call on a ready phase asks the
// coach for feedback, the next call (once feedback is in) moves on.
type AdvanceTool struct {
	sess *session.Session
}

// NewAdvanceTool creates an AdvanceTool.
func NewAdvanceTool(sess *session.Session) *AdvanceTool {
	return &AdvanceTool{sess: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *AdvanceTool) Definition() mcp.Tool {
	return mcp.NewTool("ct_advance",
		mcp.WithDescription(
			"Submit the current phase. If the answer is ready and has not been reviewed yet, "+
				"the coach reviews it and the feedback is returned; show it to the user. "+
				"Call again after the user has read the feedback to move to the next phase. "+
				"In Communicate the review is the final evaluation and the next call opens the Summary.",
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the coach's feedback before returning (default: true)"),
		),
	)
}

// Handle processes the ct_advance tool call.
func (t *AdvanceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		res session.AdvanceResult
		rec pipeline.FeedbackRecord
		err error
	)
	if boolArg(req, "wait", true) {
		res, rec, err = t.sess.AdvanceAndWait(ctx)
		if err != nil {
			return errorResult(err)
		}
	} else {
		res = t.sess.Advance()
	}

	var b strings.Builder
	switch res.Outcome {
	case session.OutcomeIgnored:
		return mcp.NewToolResultError(res.Hint), nil

	case session.OutcomeNotReady:
		fmt.Fprintf(&b, "# %s is not ready\n\n⏳ %s\n", res.From.Title(), res.Hint)

	case session.OutcomeFeedbackRequested, session.OutcomeFeedbackPending:
		if rec.IsLoading || rec.Phase == "" {
			fmt.Fprintf(&b, "# Coach is reviewing %s\n\n", res.From.Title())
			b.WriteString("Feedback is on its way. Call `ct_advance` again or check `ct_status` shortly.\n")
			break
		}
		fmt.Fprintf(&b, "# Feedback: %s\n\n", res.From.Title())
		b.WriteString(renderFeedback(res.From, rec))
		if res.From == pipeline.PhaseCommunicate {
			b.WriteString("\nCall `ct_advance` again to open the summary.\n")
		} else {
			b.WriteString("\nRevise your answer if you like, or call `ct_advance` again to continue.\n")
		}

	case session.OutcomeAdvanced:
		fmt.Fprintf(&b, "# Moved to %s\n\n%s\n\n", res.To.Title(), phaseRail(res.To))
		b.WriteString(renderGuide(res.To))

	case session.OutcomeCompleted:
		fmt.Fprintf(&b, "# Exercise Complete\n\n%s\n\n", phaseRail(res.To))
		b.WriteString("Run `ct_summary` to review your answers and the coach's evaluation.\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}
