// Package resources implements MCP resource handlers for the coaching session.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (ctcoach://...) following MCP conventions.
package resources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// Resource URIs.
const (
	StatusURI    = "ctcoach://session/status"
	DashboardURI = "ctcoach://session/dashboard"
)

// Handler manages session resource endpoints.
type Handler struct {
	sess *session.Session
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(sess *session.Session) *Handler {
	return &Handler{sess: sess}
}

// StatusResource returns the MCP resource definition for session status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		StatusURI,
		"Critical Thinking Session Status",
		mcp.WithResourceDescription("Current phase, answers, readiness and cached coach feedback"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the current session snapshot as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, h.sess.Snapshot())
}

// DashboardResource returns the MCP resource definition for the loaded dashboard.
func (h *Handler) DashboardResource() mcp.Resource {
	return mcp.NewResource(
		DashboardURI,
		"Loaded Dashboard",
		mcp.WithResourceDescription("The coach's read of the loaded dashboard and its SQL tables"),
		mcp.WithMIMEType("text/markdown"),
	)
}

// HandleDashboard returns the dashboard context and table layout.
func (h *Handler) HandleDashboard(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snap := h.sess.Snapshot()
	if !snap.HasContext {
		return errorResource(req.Params.URI, "no dataset loaded"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", snap.DatasetName, snap.DashboardContext)

	tables, err := h.sess.Tables()
	switch {
	case errors.Is(err, session.ErrNoDataset):
		// Reset between the snapshot and here.
		return errorResource(req.Params.URI, "no dataset loaded"), nil
	case err != nil:
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	if len(tables) > 0 {
		b.WriteString("\n## Tables\n\n")
		for _, t := range tables {
			fmt.Fprintf(&b, "- `%s` from sheet %q (%d rows): %s\n", t.Name, t.Sheet, t.Rows, strings.Join(t.Columns, ", "))
		}
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     b.String(),
		},
	}, nil
}
