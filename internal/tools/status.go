package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// StatusTool handles the ct_status MCP tool.
type StatusTool struct {
	sess *session.Session
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(sess *session.Session) *StatusTool {
	return &StatusTool{sess: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("ct_status",
		mcp.WithDescription(
			"Show the current phase, the user's answers, the coach's feedback so far "+
				"and what the current phase asks for.",
		),
	)
}

// Handle processes the ct_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(renderStatus(t.sess.Snapshot())), nil
}

func renderStatus(snap session.Snapshot) string {
	var b strings.Builder
	b.WriteString("# Critical Thinking Session\n\n")
	fmt.Fprintf(&b, "%s\n\n", phaseRail(snap.Phase))

	if snap.Phase == pipeline.PhaseUpload {
		if snap.Uploading {
			b.WriteString("⏳ Analyzing the uploaded dashboard...\n")
		} else {
			b.WriteString("No dataset loaded. Use `ct_load_dataset` with a file path or `sample: true`.\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "**Dataset:** %s\n\n", snap.DatasetName)
	b.WriteString(renderInputs(snap.Inputs))
	b.WriteString("\n")

	for _, p := range pipeline.GatedPhases {
		rec, ok := snap.FeedbackFor(p)
		if !ok {
			continue
		}
		if out := renderFeedback(p, rec); out != "" {
			b.WriteString(out)
			b.WriteString("\n")
		}
	}

	if snap.Phase == pipeline.PhaseSummary {
		b.WriteString("The exercise is complete. Run `ct_summary` for the full review.\n")
		return b.String()
	}

	b.WriteString(renderGuide(snap.Phase))
	b.WriteString("\n")
	b.WriteString(readiness(snap))
	b.WriteString("\n")
	return b.String()
}
