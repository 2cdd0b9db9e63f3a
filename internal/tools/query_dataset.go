package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/ctcoach/internal/dataset"
	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// QueryDatasetTool handles the ct_query_dataset MCP tool.
// It lets the user check a hunch against the data with read-only SQL.
type QueryDatasetTool struct {
	sess *session.Session
}

// NewQueryDatasetTool creates a QueryDatasetTool.
func NewQueryDatasetTool(sess *session.Session) *QueryDatasetTool {
	return &QueryDatasetTool{sess: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *QueryDatasetTool) Definition() mcp.Tool {
	return mcp.NewTool("ct_query_dataset",
		mcp.WithDescription(
			"Run a read-only SQL query (SELECT or WITH) against the loaded dashboard. "+
				"Each sheet is a table; table and column names are listed by `ct_load_dataset`. "+
				"Use it to help the user verify observations, not to draw conclusions for them.",
		),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("A single SELECT or WITH statement"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum rows to return (default: %d, max: %d)",
				dataset.DefaultQueryLimit, dataset.MaxQueryLimit)),
		),
	)
}

// Handle processes the ct_query_dataset tool call.
func (t *QueryDatasetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("sql", ""))
	if query == "" {
		return mcp.NewToolResultError("`sql` is required."), nil
	}

	res, err := t.sess.Query(ctx, query, intArg(req, "limit", 0))
	if err != nil {
		if errors.Is(err, session.ErrNoDataset) || errors.Is(err, dataset.ErrReadOnlyQuery) {
			return errorResult(err)
		}
		if ctx.Err() != nil {
			return nil, err
		}
		// Anything else is a SQL error the user can fix.
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	return mcp.NewToolResultText(renderQueryResult(res)), nil
}

func renderQueryResult(res *dataset.QueryResult) string {
	if len(res.Columns) == 0 {
		return "Query returned no columns."
	}
	var b strings.Builder
	b.WriteString("| " + strings.Join(escapeCells(res.Columns), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(res.Columns)) + "\n")
	for _, row := range res.Rows {
		b.WriteString("| " + strings.Join(escapeCells(row), " | ") + " |\n")
	}
	fmt.Fprintf(&b, "\n%d row(s)", len(res.Rows))
	if res.Truncated {
		b.WriteString(" (truncated; raise `limit` or narrow the query)")
	}
	b.WriteString("\n")
	return b.String()
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(c, "|", "\\|")
	}
	return out
}
