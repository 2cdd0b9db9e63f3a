// Package coaching talks to the generative-text backend that writes the
// dashboard analysis, the per-phase coaching, and the final evaluation.
//
// The session state machine only sees the Generator interface. Response
// text is opaque to it apart from the status marker parsed downstream.
package coaching

import (
	"context"
	"errors"

	"github.com/HendryAvila/ctcoach/internal/pipeline"
)

// ErrGeneratorUnavailable wraps every failure to obtain text from the backend:
// missing credentials, network errors, and rejected requests alike.
var ErrGeneratorUnavailable = errors.New("coaching generator unavailable")

// FeedbackRequest carries everything sent for one phase's coaching.
type FeedbackRequest struct {
	Phase            pipeline.Phase
	PhaseInput       string
	DashboardContext string
	Inputs           pipeline.Inputs
}

// Generator produces coaching text. Every method may block on the network
// and must honor ctx.
type Generator interface {
	// AnalyzeContext turns the primary sheet (as CSV) into the opaque
	// dashboard context reused by every later request.
	AnalyzeContext(ctx context.Context, delimitedText string) (string, error)
	// StageFeedback coaches one phase. The response is expected, but not
	// guaranteed, to start with a status marker.
	StageFeedback(ctx context.Context, req FeedbackRequest) (string, error)
	// FinalSummary evaluates the whole exercise. It carries no marker.
	FinalSummary(ctx context.Context, inputs pipeline.Inputs, dashboardContext string) (string, error)
}

// Unavailable is the Generator used when no backend is configured.
// Every call fails with ErrGeneratorUnavailable so the session can
// substitute its placeholders and stay usable.
type Unavailable struct {
	Reason string
}

func (u Unavailable) err() error {
	if u.Reason == "" {
		return ErrGeneratorUnavailable
	}
	return &unavailableError{reason: u.Reason}
}

// AnalyzeContext always fails.
func (u Unavailable) AnalyzeContext(context.Context, string) (string, error) {
	return "", u.err()
}

// StageFeedback always fails.
func (u Unavailable) StageFeedback(context.Context, FeedbackRequest) (string, error) {
	return "", u.err()
}

// FinalSummary always fails.
func (u Unavailable) FinalSummary(context.Context, pipeline.Inputs, string) (string, error) {
	return "", u.err()
}

type unavailableError struct {
	reason string
}

func (e *unavailableError) Error() string {
	return ErrGeneratorUnavailable.Error() + ": " + e.reason
}

func (e *unavailableError) Unwrap() error { return ErrGeneratorUnavailable }
