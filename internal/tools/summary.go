package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/HendryAvila/ctcoach/internal/templates"
	"github.com/mark3labs/mcp-go/mcp"
)

// SummaryTool handles the ct_summary MCP tool.
type SummaryTool struct {
	sess     *session.Session
	renderer templates.Renderer
}

// NewSummaryTool creates a SummaryTool.
func NewSummaryTool(sess *session.Session, renderer templates.Renderer) *SummaryTool {
	return &SummaryTool{sess: sess, renderer: renderer}
}

// Definition returns the MCP tool definition for registration.
func (t *SummaryTool) Definition() mcp.Tool {
	return mcp.NewTool("ct_summary",
		mcp.WithDescription(
			"Show the end-of-exercise review: every answer, the coach's feedback per phase "+
				"and the final evaluation. Only available once the exercise is complete. "+
				"Pass `output_path` to also save the review as Markdown.",
		),
		mcp.WithString("output_path",
			mcp.Description("Optional file path to write the Markdown review to"),
		),
	)
}

// Handle processes the ct_summary tool call.
func (t *SummaryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := t.sess.Summary()
	if err != nil {
		return errorResult(err)
	}

	md, err := report.Markdown(t.renderer)
	if err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}

	out := strings.TrimSpace(req.GetString("output_path", ""))
	if out == "" {
		return mcp.NewToolResultText(md), nil
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(out, []byte(md), 0o644); err != nil {
		return errorResult(fmt.Errorf("writing report: %w", err))
	}
	return mcp.NewToolResultText(md + fmt.Sprintf("\n---\nSaved to `%s`.\n", out)), nil
}
