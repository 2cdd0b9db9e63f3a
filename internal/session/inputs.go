package session

import (
	"fmt"

	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"go.uber.org/zap"
)

// answerPhaseLocked returns an error unless answers may be edited now.
func (s *Session) answerPhaseLocked() error {
	if s.closed {
		return ErrClosed
	}
	if !pipeline.IsGated(s.phase) {
		return fmt.Errorf("%w: answers can only be edited between Define and Communicate (currently %s)",
			ErrWrongPhase, s.phase.Title())
	}
	return nil
}

// SetField replaces one free-form answer. Editing an answer does not
// invalidate feedback that was already received for it.
func (s *Session) SetField(field pipeline.Field, value string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.answerPhaseLocked(); err != nil {
		return Snapshot{}, err
	}
	if err := s.inputs.SetField(field, value); err != nil {
		return Snapshot{}, err
	}
	return s.snapshotLocked(), nil
}

// AddObservation appends one observation. It reports false when the text
// was blank or the list already holds the maximum.
func (s *Session) AddObservation(text string) (bool, Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.answerPhaseLocked(); err != nil {
		return false, Snapshot{}, err
	}
	added := s.inputs.AddObservation(text)
	return added, s.snapshotLocked(), nil
}

// RemoveObservation deletes the observation at a zero-based index.
func (s *Session) RemoveObservation(index int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.answerPhaseLocked(); err != nil {
		return Snapshot{}, err
	}
	if err := s.inputs.RemoveObservation(index); err != nil {
		return Snapshot{}, err
	}
	return s.snapshotLocked(), nil
}

// Reset abandons the exercise and returns to Upload. Inside the gated
// phases the caller must confirm; in Upload and Summary no confirmation
// is needed since there is nothing in progress to lose.
func (s *Session) Reset(confirm bool) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if pipeline.IsGated(s.phase) && !confirm {
		s.mu.Unlock()
		return Snapshot{}, ErrResetNotConfirmed
	}
	snap, ev := s.resetAndSnapshotLocked()
	s.mu.Unlock()

	s.emitPhase(ev)
	return snap, nil
}

// ResetFromSummary returns to Upload from the Summary screen.
func (s *Session) ResetFromSummary() (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if s.phase != pipeline.PhaseSummary {
		phase := s.phase
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: not at the summary (currently %s)", ErrWrongPhase, phase.Title())
	}
	snap, ev := s.resetAndSnapshotLocked()
	s.mu.Unlock()

	s.emitPhase(ev)
	return snap, nil
}

func (s *Session) resetAndSnapshotLocked() (Snapshot, *phaseEvent) {
	ev := &phaseEvent{from: s.phase, to: pipeline.PhaseUpload}
	oldID := s.id
	s.resetLocked()
	s.notifyLocked()
	s.log.Info("session reset",
		zap.String("from_phase", string(ev.from)),
		zap.String("old_session", oldID),
		zap.String("session", s.id))
	return s.snapshotLocked(), ev
}
