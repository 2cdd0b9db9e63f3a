// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates the concrete generator, loader
// and session and injects them into the tools, prompts and resources.
// No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"

	"github.com/HendryAvila/ctcoach/internal/coaching"
	"github.com/HendryAvila/ctcoach/internal/config"
	"github.com/HendryAvila/ctcoach/internal/dataset"
	"github.com/HendryAvila/ctcoach/internal/prompts"
	"github.com/HendryAvila/ctcoach/internal/resources"
	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/HendryAvila/ctcoach/internal/templates"
	"github.com/HendryAvila/ctcoach/internal/tools"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Name is the server name announced to MCP hosts.
const Name = "ctcoach"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered around a single coaching session.
//
// The returned cleanup function closes the session, waiting for any
// in-flight coaching requests, and must be called on shutdown.
// It is always non-nil.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*server.MCPServer, *session.Session, func(), error) {
	// --- Create shared dependencies ---

	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, nil, noop, fmt.Errorf("creating template renderer: %w", err)
	}

	gen, err := coaching.New(ctx, coaching.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.Timeout,
	}, renderer, log)
	if err != nil {
		return nil, nil, noop, fmt.Errorf("creating coaching generator: %w", err)
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	sess, err := session.New(session.Options{
		Loader:              dataset.NewLoader(),
		Generator:           gen,
		Logger:              log,
		Observer:            newNotifier(s, log),
		RetryFailedFeedback: cfg.Session.RetryFailedFeedback,
	})
	if err != nil {
		return nil, nil, noop, fmt.Errorf("creating session: %w", err)
	}
	cleanup := func() {
		if err := sess.Close(); err != nil {
			log.Warn("session close", zap.Error(err))
		}
	}

	// --- Register tools ---

	loadTool := tools.NewLoadDatasetTool(sess)
	s.AddTool(loadTool.Definition(), loadTool.Handle)

	setAnswerTool := tools.NewSetAnswerTool(sess)
	s.AddTool(setAnswerTool.Definition(), setAnswerTool.Handle)

	addObsTool := tools.NewAddObservationTool(sess)
	s.AddTool(addObsTool.Definition(), addObsTool.Handle)

	removeObsTool := tools.NewRemoveObservationTool(sess)
	s.AddTool(removeObsTool.Definition(), removeObsTool.Handle)

	advanceTool := tools.NewAdvanceTool(sess)
	s.AddTool(advanceTool.Definition(), advanceTool.Handle)

	statusTool := tools.NewStatusTool(sess)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	resetTool := tools.NewResetTool(sess)
	s.AddTool(resetTool.Definition(), resetTool.Handle)

	summaryTool := tools.NewSummaryTool(sess, renderer)
	s.AddTool(summaryTool.Definition(), summaryTool.Handle)

	exportTool := tools.NewExportTool(sess)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	queryTool := tools.NewQueryDatasetTool(sess)
	s.AddTool(queryTool.Definition(), queryTool.Handle)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(sess)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)
	s.AddResource(resourceHandler.DashboardResource(), resourceHandler.HandleDashboard)

	return s, sess, cleanup, nil
}

// noop is the cleanup returned when construction fails.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to coach with ctcoach.
func serverInstructions() string {
	return `You have access to ctcoach, a critical-thinking coach for KPI dashboards.

## WHAT IT DOES

The user practices structured reasoning on a real or sample dashboard.
An exercise walks five gated phases in a fixed order:

1. Define: state the problem as a measurable gap (ct_set_answer field=gap_analysis)
2. Gather: record exactly 5 observations from the data (ct_add_observation)
3. Analyze: explain which indications support a root cause (field=supporting_indications)
4. Decide: propose a concrete action plan (field=action_plan)
5. Communicate: the coach writes a final evaluation of the whole exercise

Then the Summary shows everything (ct_summary).

## HOW TO RUN AN EXERCISE

- Start with ct_load_dataset (a file path or sample=true).
- In each phase, explain what is asked and WAIT for the user's own answer.
  NEVER write the answer for them. Save it verbatim.
- Call ct_advance. The first call on a ready phase returns coach feedback.
  Show it to the user. Let them revise. The next ct_advance moves on.
- Feedback headed "Needs Improvement" is a prompt to revise, not a block.
- ct_reset discards everything. Ask before passing confirm=true.

## CHECKING THE DATA

ct_query_dataset runs read-only SQL against the loaded sheets. Use it to
help the user verify a claim. Do not use it to hand them conclusions.

## WHEN FEEDBACK FAILS

If the coach is unavailable, the feedback reads "Unable to generate feedback
at this time." Calling ct_advance again retries the request.`
}
