// Package prompts implements MCP prompt handlers for the coaching session.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to run a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the ct-start MCP prompt.
// It guides the AI to load a dashboard and walk the user through the exercise.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("ct-start",
		mcp.WithPromptDescription(
			"Start a critical-thinking exercise on a KPI dashboard. "+
				"Loads your file (or the built-in sample) and coaches you through "+
				"Define, Gather, Analyze, Decide and Communicate.",
		),
		mcp.WithArgument("path",
			mcp.ArgumentDescription("Path to an .xlsx or .csv dashboard. Leave empty to use the sample."),
		),
	)
}

// Handle processes the ct-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	path := ""
	if args := req.Params.Arguments; args != nil {
		path = strings.TrimSpace(args["path"])
	}

	load := "`ct_load_dataset` with `sample: true`"
	description := "Start exercise: sample dashboard"
	if path != "" {
		load = fmt.Sprintf("`ct_load_dataset` with path='%s'", path)
		description = fmt.Sprintf("Start exercise: %s", path)
	}

	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to practice critical thinking on a KPI dashboard.\n\n"+
						"Please:\n"+
						"1. If a previous exercise is in progress, ask me before running `ct_reset` with confirm=true\n"+
						"2. Run %s and show me the dashboard context\n"+
						"3. For each phase, explain what it asks for, then wait for MY answer. Do not answer for me\n"+
						"4. Save my answer with `ct_set_answer` or `ct_add_observation`, then run `ct_advance`\n"+
						"5. Show me the coach's feedback and let me revise before calling `ct_advance` again\n"+
						"6. When the exercise is complete, run `ct_summary`\n\n"+
						"If I want to check something in the data, use `ct_query_dataset`.",
					load,
				)),
			},
		},
	}, nil
}
