package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/ctcoach/internal/dataset"
	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// LoadDatasetTool handles the ct_load_dataset MCP tool.
// It loads a dashboard and starts the exercise.
type LoadDatasetTool struct {
	sess *session.Session
}

// NewLoadDatasetTool creates a LoadDatasetTool.
func NewLoadDatasetTool(sess *session.Session) *LoadDatasetTool {
	return &LoadDatasetTool{sess: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *LoadDatasetTool) Definition() mcp.Tool {
	return mcp.NewTool("ct_load_dataset",
		mcp.WithDescription(
			"Load a KPI dashboard to start a critical-thinking exercise. "+
				"Pass `path` to an .xlsx or .csv file, or set `sample` to use the built-in regional sales scenario. "+
				"The coach analyzes the first sheet and the session moves to the Define phase.",
		),
		mcp.WithString("path",
			mcp.Description("Path to an .xlsx or .csv file"),
		),
		mcp.WithBoolean("sample",
			mcp.Description("Use the built-in sample dashboard instead of a file (default: false)"),
		),
	)
}

// Handle processes the ct_load_dataset tool call.
func (t *LoadDatasetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := strings.TrimSpace(req.GetString("path", ""))
	sample := boolArg(req, "sample", false)

	if path == "" && !sample {
		return mcp.NewToolResultError("Provide `path` to a dashboard file or set `sample` to true."), nil
	}
	if path != "" && sample {
		return mcp.NewToolResultError("Use either `path` or `sample`, not both."), nil
	}

	snap, err := t.sess.LoadDataset(ctx, dataset.Source{Path: path, Sample: sample})
	if err != nil {
		return errorResult(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Dataset Loaded: %s\n\n", snap.DatasetName)
	fmt.Fprintf(&b, "%s\n\n", phaseRail(snap.Phase))
	fmt.Fprintf(&b, "**Sheets:** %s\n\n", strings.Join(snap.SheetNames, ", "))

	if tables, err := t.sess.Tables(); err == nil {
		b.WriteString("**SQL tables** (query with `ct_query_dataset`):\n")
		for _, tbl := range tables {
			fmt.Fprintf(&b, "- `%s` (%d rows): %s\n", tbl.Name, tbl.Rows, strings.Join(tbl.Columns, ", "))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Dashboard Context\n\n%s\n\n", snap.DashboardContext)
	b.WriteString(renderGuide(pipeline.PhaseDefine))
	b.WriteString("\nWrite your problem statement with `ct_set_answer` (field `gap_analysis`).\n")

	return mcp.NewToolResultText(b.String()), nil
}
