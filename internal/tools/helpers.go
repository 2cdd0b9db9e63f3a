// Package tools implements the MCP tool handlers for a coaching session.
//
// Each file holds one tool: a struct with its dependencies injected through
// the constructor, Definition() for the schema, and Handle() for the call.
// User mistakes come back as tool errors so the host can show them;
// only unexpected failures are returned as Go errors.
package tools

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/HendryAvila/ctcoach/internal/dataset"
	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// userErrors are shown to the user instead of failing the call.
var userErrors = []error{
	session.ErrWrongPhase,
	session.ErrUploadInProgress,
	session.ErrResetNotConfirmed,
	session.ErrNoFeedback,
	session.ErrStaleSession,
	session.ErrNoDataset,
	session.ErrClosed,
	pipeline.ErrOutOfRange,
	pipeline.ErrUnknownField,
	dataset.ErrUnsupportedFormat,
	dataset.ErrReadOnlyQuery,
	os.ErrNotExist,
	os.ErrPermission,
}

// errorResult turns known user errors into a tool error and passes
// anything else through.
func errorResult(err error) (*mcp.CallToolResult, error) {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return nil, err
}

// phaseRail renders the pipeline as a one-line progress marker.
func phaseRail(current pipeline.Phase) string {
	parts := make([]string, 0, len(pipeline.PhaseOrder))
	for _, p := range pipeline.PhaseOrder {
		marker := "⬜"
		switch {
		case p == current:
			marker = "🔄"
		case pipeline.Before(p, current):
			marker = "✅"
		}
		parts = append(parts, marker+" "+p.Title())
	}
	return strings.Join(parts, " → ")
}

// renderGuide prints the instruction block for a phase.
func renderGuide(p pipeline.Phase) string {
	g := pipeline.GuideFor(p)
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n%s\n", p.Title(), g.Instruction)
	switch {
	case len(g.Examples) == 0 && g.Placeholder != "":
		fmt.Fprintf(&b, "\n_Example:_ %s\n", g.Placeholder)
	case len(g.Examples) > 0:
		b.WriteString("\nExample observations:\n")
		for _, ex := range g.Examples {
			fmt.Fprintf(&b, "- %s\n", ex)
		}
	}
	return b.String()
}

// renderFeedback prints one feedback record with its status heading.
func renderFeedback(p pipeline.Phase, rec pipeline.FeedbackRecord) string {
	switch {
	case rec.IsLoading:
		return fmt.Sprintf("### %s\n\n_Your coach is still reviewing this phase._\n", p.Title())
	case !rec.HasContent:
		return ""
	case p == pipeline.PhaseCommunicate:
		return fmt.Sprintf("### Final Evaluation\n\n%s\n", rec.Content)
	}
	parsed := rec.Parsed()
	heading := parsed.Status.Label()
	if rec.Failed {
		heading += " (request failed)"
	}
	return fmt.Sprintf("### %s — %s\n\n%s\n", p.Title(), heading, parsed.Text)
}

// renderInputs lists the answers collected so far.
func renderInputs(in pipeline.Inputs) string {
	var b strings.Builder
	b.WriteString("| Answer | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| gap_analysis | %s |\n", cell(in.GapAnalysis))
	fmt.Fprintf(&b, "| observations | %d/%d |\n", len(in.Observations), pipeline.MaxObservations)
	fmt.Fprintf(&b, "| supporting_indications | %s |\n", cell(in.SupportingIndications))
	fmt.Fprintf(&b, "| action_plan | %s |\n", cell(in.ActionPlan))
	for i, o := range in.Observations {
		if i == 0 {
			b.WriteString("\nObservations:\n")
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, o)
	}
	return b.String()
}

func cell(s string) string {
	if s == "" {
		return "—"
	}
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	if r := []rune(s); len(r) > 80 {
		s = string(r[:77]) + "..."
	}
	return s
}

// readiness is the one-line gate status for the current phase.
func readiness(snap session.Snapshot) string {
	if !pipeline.IsGated(snap.Phase) {
		return ""
	}
	if snap.Ready {
		return "✅ Ready to advance. Run `ct_advance` to get coaching."
	}
	return "⏳ " + snap.Hint
}
