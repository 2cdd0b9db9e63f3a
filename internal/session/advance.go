package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/HendryAvila/ctcoach/internal/coaching"
	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"go.uber.org/zap"
)

// Outcome classifies what Advance did.
type Outcome string

const (
	// OutcomeNotReady: the phase's answer does not pass the readiness gate.
	OutcomeNotReady Outcome = "not_ready"
	// OutcomeFeedbackRequested: a coaching request was started.
	OutcomeFeedbackRequested Outcome = "feedback_requested"
	// OutcomeFeedbackPending: a request for this phase is still loading.
	OutcomeFeedbackPending Outcome = "feedback_pending"
	// OutcomeAdvanced: feedback was present and the phase moved forward.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeCompleted: the summary was present and the session reached Summary.
	OutcomeCompleted Outcome = "completed"
	// OutcomeIgnored: Advance has no meaning in Upload or Summary.
	OutcomeIgnored Outcome = "ignored"
)

// AdvanceResult reports one Advance call.
type AdvanceResult struct {
	Outcome Outcome        `json:"outcome"`
	From    pipeline.Phase `json:"from"`
	To      pipeline.Phase `json:"to"`
	Hint    string         `json:"hint,omitempty"`
}

// Moved reports whether the phase changed.
func (r AdvanceResult) Moved() bool {
	return r.From != r.To
}

// Advance runs the feedback gate for the current phase. It never blocks on
// the generator: when feedback is missing it starts a request and returns,
// and a later Advance moves on once the feedback has arrived.
func (s *Session) Advance() AdvanceResult {
	s.mu.Lock()
	res, ev := s.advanceLocked()
	s.mu.Unlock()

	s.log.Debug("advance",
		zap.String("outcome", string(res.Outcome)),
		zap.String("from", string(res.From)),
		zap.String("to", string(res.To)))
	s.emitPhase(ev)
	return res
}

func (s *Session) advanceLocked() (AdvanceResult, *phaseEvent) {
	phase := s.phase
	res := AdvanceResult{From: phase, To: phase}

	if s.closed {
		res.Outcome = OutcomeIgnored
		res.Hint = "The session is closed."
		return res, nil
	}
	switch phase {
	case pipeline.PhaseUpload:
		res.Outcome = OutcomeIgnored
		res.Hint = "Load a dataset to begin."
		return res, nil
	case pipeline.PhaseSummary:
		res.Outcome = OutcomeIgnored
		res.Hint = "The exercise is complete. Reset to start a new one."
		return res, nil
	}

	if !s.inputs.IsPhaseReady(phase) {
		res.Outcome = OutcomeNotReady
		res.Hint = s.inputs.ReadinessHint(phase)
		return res, nil
	}

	if rec, ok := s.feedback.Get(phase); ok {
		switch {
		case rec.IsLoading:
			res.Outcome = OutcomeFeedbackPending
			res.Hint = "Feedback is still being generated."
			return res, nil
		case rec.Failed && s.retry:
			s.log.Info("retrying failed feedback", zap.String("phase", string(phase)))
			s.feedback.Discard(phase)
		default:
			next, _ := pipeline.Next(phase)
			ev := s.transitionLocked(next)
			res.To = next
			res.Outcome = OutcomeAdvanced
			if next == pipeline.PhaseSummary {
				res.Outcome = OutcomeCompleted
			}
			return res, ev
		}
	}

	if err := s.feedback.BeginRequest(phase); err != nil {
		// Existing records were handled above.
		s.log.Debug("begin request", zap.Error(err))
		res.Outcome = OutcomeFeedbackPending
		return res, nil
	}
	s.dispatchLocked(phase)
	res.Outcome = OutcomeFeedbackRequested
	if phase == pipeline.PhaseCommunicate {
		res.Hint = "Your final evaluation is being generated."
	} else {
		res.Hint = "Your coach is reviewing your answer."
	}
	return res, nil
}

// transitionLocked moves to next and returns the event to emit once the
// lock is released.
func (s *Session) transitionLocked(next pipeline.Phase) *phaseEvent {
	ev := &phaseEvent{from: s.phase, to: next}
	s.phase = next
	s.notifyLocked()
	s.log.Info("phase changed", zap.String("from", string(ev.from)), zap.String("to", string(ev.to)))
	return ev
}

// dispatchLocked starts the generator call for phase on a worker. The
// request carries copies of the inputs taken at dispatch time.
func (s *Session) dispatchLocked(phase pipeline.Phase) {
	gen, ctx := s.generation, s.ctx
	inputs := s.inputs.Clone()
	dashboard := s.dashboard
	phaseText := s.inputs.PhaseText(phase)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()

		var (
			text string
			err  error
		)
		if phase == pipeline.PhaseCommunicate {
			text, err = s.gen.FinalSummary(ctx, inputs, dashboard)
		} else {
			text, err = s.gen.StageFeedback(ctx, coaching.FeedbackRequest{
				Phase:            phase,
				PhaseInput:       phaseText,
				DashboardContext: dashboard,
				Inputs:           inputs,
			})
		}
		s.complete(gen, phase, text, err)
	}()
}

// complete applies a worker's result if it still belongs to the current
// generation.
func (s *Session) complete(gen uint64, phase pipeline.Phase, text string, genErr error) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		s.log.Debug("discarding stale feedback",
			zap.String("phase", string(phase)),
			zap.Uint64("generation", gen))
		return
	}

	failedText, emptyText := FeedbackFailedText, FeedbackEmptyText
	if phase == pipeline.PhaseCommunicate {
		failedText, emptyText = SummaryFailedText, SummaryEmptyText
	}

	var err error
	switch {
	case genErr != nil:
		s.log.Warn("feedback request failed", zap.String("phase", string(phase)), zap.Error(genErr))
		err = s.feedback.FailRequest(phase, failedText)
	case text == "":
		err = s.feedback.CompleteRequest(phase, emptyText)
	default:
		err = s.feedback.CompleteRequest(phase, text)
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Debug("feedback not applied", zap.String("phase", string(phase)), zap.Error(err))
		return
	}
	rec, _ := s.feedback.Get(phase)
	s.notifyLocked()
	s.mu.Unlock()

	s.log.Info("feedback ready",
		zap.String("phase", string(phase)),
		zap.String("status", string(rec.Status)),
		zap.Bool("failed", rec.Failed))
	s.emitFeedback(phase, rec)
}

// AwaitFeedback blocks until the feedback request for phase is no longer
// loading, then returns its record.
func (s *Session) AwaitFeedback(ctx context.Context, phase pipeline.Phase) (pipeline.FeedbackRecord, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return pipeline.FeedbackRecord{}, ErrClosed
		}
		rec, ok := s.feedback.Get(phase)
		changed := s.changed
		s.mu.Unlock()

		if !ok {
			return pipeline.FeedbackRecord{}, fmt.Errorf("%w: %s", ErrNoFeedback, phase)
		}
		if !rec.IsLoading {
			return rec, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return pipeline.FeedbackRecord{}, ctx.Err()
		}
	}
}

// AdvanceAndWait runs Advance and, if it started or found a pending
// request, waits for that request to finish. The returned record is the
// zero value when nothing was awaited.
func (s *Session) AdvanceAndWait(ctx context.Context) (AdvanceResult, pipeline.FeedbackRecord, error) {
	res := s.Advance()
	if res.Outcome != OutcomeFeedbackRequested && res.Outcome != OutcomeFeedbackPending {
		return res, pipeline.FeedbackRecord{}, nil
	}
	rec, err := s.AwaitFeedback(ctx, res.From)
	if errors.Is(err, ErrNoFeedback) {
		// Reset while waiting.
		return res, pipeline.FeedbackRecord{}, ErrStaleSession
	}
	return res, rec, err
}
