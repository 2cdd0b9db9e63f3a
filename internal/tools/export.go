package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/ctcoach/internal/dataset"
	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// ExportTool handles the ct_export MCP tool.
// It writes the loaded dashboard back out as a workbook.
type ExportTool struct {
	sess *session.Session
}

// NewExportTool creates an ExportTool.
func NewExportTool(sess *session.Session) *ExportTool {
	return &ExportTool{sess: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("ct_export",
		mcp.WithDescription(
			"Save the loaded dashboard as an .xlsx workbook so the user can rebuild it in their own tools. "+
				"Uploaded workbooks are written back unchanged; CSV and sample data become a new workbook.",
		),
		mcp.WithString("output_path",
			mcp.Required(),
			mcp.Description("File or directory to write to. A directory gets the default file name."),
		),
	)
}

// Handle processes the ct_export tool call.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := strings.TrimSpace(req.GetString("output_path", ""))
	if out == "" {
		return mcp.NewToolResultError("`output_path` is required."), nil
	}

	ds, err := t.sess.Dataset()
	if err != nil {
		return errorResult(err)
	}
	data, name, err := dataset.Export(ds)
	if err != nil {
		return nil, fmt.Errorf("exporting dataset: %w", err)
	}

	if info, statErr := os.Stat(out); statErr == nil && info.IsDir() {
		out = filepath.Join(out, name)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return errorResult(fmt.Errorf("writing workbook: %w", err))
	}

	return mcp.NewToolResultText(fmt.Sprintf("Exported **%s** (%d bytes) to `%s`.", ds.Name, len(data), out)), nil
}
