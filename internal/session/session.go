// Package session implements the coaching session state machine: the
// phase pipeline, its feedback gate, and the asynchronous requests that
// fill the feedback cache.
//
// A Session is safe for concurrent use. Its mutex is the single logical
// thread every mutation runs on; generator calls run on worker goroutines
// and re-enter under the mutex, where a generation check drops any
// completion that belongs to a session that has since been reset.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/HendryAvila/ctcoach/internal/coaching"
	"github.com/HendryAvila/ctcoach/internal/dataset"
	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Placeholder texts stored when the generator fails or returns nothing.
const (
	ContextFailedText  = "Error: Could not analyze the dashboard data. Please try again."
	ContextEmptyText   = "Failed to analyze dashboard data."
	FeedbackFailedText = "Unable to generate feedback at this time."
	FeedbackEmptyText  = "No feedback generated."
	SummaryFailedText  = "Unable to generate summary."
	SummaryEmptyText   = "Summary generation failed."
	DefaultSummaryText = "No summary generated."
)

var (
	// ErrWrongPhase is returned when an operation is not legal in the current phase.
	ErrWrongPhase = errors.New("operation not allowed in the current phase")
	// ErrUploadInProgress is returned when a dataset is already being loaded.
	ErrUploadInProgress = errors.New("a dataset upload is already in progress")
	// ErrResetNotConfirmed is returned when a mid-exercise reset lacks confirmation.
	ErrResetNotConfirmed = errors.New("reset discards all progress and must be confirmed")
	// ErrNoFeedback is returned when waiting on a phase that has no request.
	ErrNoFeedback = errors.New("no feedback requested for phase")
	// ErrStaleSession is returned when the session was reset while an
	// operation was in flight; its result was discarded.
	ErrStaleSession = errors.New("session was reset while the operation was running")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
	// ErrNoDataset is returned by dataset operations before an upload.
	ErrNoDataset = errors.New("no dataset loaded")
)

// Loader parses a dataset source.
type Loader interface {
	Load(ctx context.Context, src dataset.Source) (*dataset.Dataset, error)
}

// Observer is notified after state changes, outside the session lock.
type Observer interface {
	PhaseChanged(from, to pipeline.Phase)
	FeedbackReady(phase pipeline.Phase, rec pipeline.FeedbackRecord)
}

// Options configures a Session.
type Options struct {
	Loader    Loader
	Generator coaching.Generator
	Logger    *zap.Logger
	Observer  Observer
	// RetryFailedFeedback makes a failed request block the gate: the next
	// Advance discards the placeholder and asks again. When false a failed
	// request's placeholder counts as feedback and lets the user move on.
	RetryFailedFeedback bool
}

// Session is one coaching run from upload to summary.
type Session struct {
	loader   Loader
	gen      coaching.Generator
	log      *zap.Logger
	observer Observer
	retry    bool

	mu         sync.Mutex
	id         string
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	phase      pipeline.Phase
	inputs     *pipeline.Inputs
	feedback   *pipeline.FeedbackCache
	dashboard  string
	hasContext bool
	ds         *dataset.Dataset
	bench      *dataset.Workbench
	uploading  bool
	closed     bool
	changed    chan struct{}

	workers sync.WaitGroup
}

// New returns a session in the Upload phase.
func New(opts Options) (*Session, error) {
	if opts.Loader == nil {
		return nil, fmt.Errorf("session: loader is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("session: generator is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Session{
		loader:   opts.Loader,
		gen:      opts.Generator,
		log:      log.Named("session"),
		observer: opts.Observer,
		retry:    opts.RetryFailedFeedback,
		changed:  make(chan struct{}),
	}
	s.resetLocked()
	return s, nil
}

// resetLocked starts a fresh generation. Outstanding requests of the old
// generation are canceled and their completions will be ignored.
func (s *Session) resetLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.bench != nil {
		if err := s.bench.Close(); err != nil {
			s.log.Warn("closing workbench", zap.Error(err))
		}
	}

	s.generation++
	s.id = uuid.NewString()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.phase = pipeline.PhaseUpload
	s.inputs = pipeline.NewInputs()
	s.feedback = pipeline.NewFeedbackCache()
	s.dashboard = ""
	s.hasContext = false
	s.ds = nil
	s.bench = nil
	s.uploading = false
}

// notifyLocked wakes every AwaitFeedback caller.
func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// ID identifies the current generation of the session. It changes on reset.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Phase returns the current phase.
func (s *Session) Phase() pipeline.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Close cancels outstanding requests and waits for workers to exit.
// The session is unusable afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	var err error
	if s.bench != nil {
		err = s.bench.Close()
		s.bench = nil
	}
	s.notifyLocked()
	s.mu.Unlock()

	s.workers.Wait()
	return err
}

// --- Observer dispatch ---

type phaseEvent struct {
	from, to pipeline.Phase
}

func (s *Session) emitPhase(ev *phaseEvent) {
	if s.observer == nil || ev == nil || ev.from == ev.to {
		return
	}
	s.observer.PhaseChanged(ev.from, ev.to)
}

func (s *Session) emitFeedback(phase pipeline.Phase, rec pipeline.FeedbackRecord) {
	if s.observer == nil {
		return
	}
	s.observer.FeedbackReady(phase, rec)
}
