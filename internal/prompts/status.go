package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the ct-status MCP prompt.
// It instructs the AI to present where the exercise stands.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("ct-status",
		mcp.WithPromptDescription(
			"Check where your critical-thinking exercise stands: "+
				"current phase, your answers, coach feedback and what to do next.",
		),
	)
}

// Handle processes the ct-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Critical Thinking Session Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `ct_status` to check my exercise.\n\n" +
						"Then:\n" +
						"1. Show me which phase I'm in and which are done\n" +
						"2. If the coach asked me to improve something, point it out\n" +
						"3. Tell me exactly what the current phase still needs from me",
				),
			},
		},
	}, nil
}
