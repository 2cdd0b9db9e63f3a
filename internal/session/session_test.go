package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HendryAvila/ctcoach/internal/coaching"
	"github.com/HendryAvila/ctcoach/internal/dataset"
	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	// The genai client pulls in opencensus, whose view worker starts in init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// --- Fakes ---

// fakeGenerator answers every request with canned text. Once holdCalls is
// used, calls announce themselves on started and block until release is
// closed; honorCtx decides whether a canceled context ends the wait early.
type fakeGenerator struct {
	mu       sync.Mutex
	analysis string
	errs     map[pipeline.Phase]error
	replies  map[pipeline.Phase]string
	calls    []pipeline.Phase
	requests []coaching.FeedbackRequest
	summary  struct {
		inputs    pipeline.Inputs
		dashboard string
	}

	hold     bool
	honorCtx bool
	release  chan struct{}
	started  chan pipeline.Phase
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		analysis: "Regional sales dashboard with revenue vs target by quarter.",
		errs:     map[pipeline.Phase]error{},
		replies:  map[pipeline.Phase]string{},
		release:  make(chan struct{}),
		started:  make(chan pipeline.Phase, 16),
	}
}

func (f *fakeGenerator) holdCalls(honorCtx bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = true
	f.honorCtx = honorCtx
}

func (f *fakeGenerator) stopHolding() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = false
}

func (f *fakeGenerator) wait(ctx context.Context, phase pipeline.Phase) error {
	f.mu.Lock()
	hold, honorCtx := f.hold, f.honorCtx
	f.mu.Unlock()
	if !hold {
		return nil
	}

	f.started <- phase
	if honorCtx {
		select {
		case <-f.release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-f.release
	return nil
}

func (f *fakeGenerator) AnalyzeContext(ctx context.Context, _ string) (string, error) {
	if err := f.wait(ctx, pipeline.PhaseUpload); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[pipeline.PhaseUpload]; err != nil {
		return "", err
	}
	return f.analysis, nil
}

func (f *fakeGenerator) StageFeedback(ctx context.Context, req coaching.FeedbackRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Phase)
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := f.wait(ctx, req.Phase); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[req.Phase]; err != nil {
		return "", err
	}
	if r, ok := f.replies[req.Phase]; ok {
		return r, nil
	}
	return "[STATUS: PASS] Good work on " + req.Phase.Title() + ".", nil
}

func (f *fakeGenerator) FinalSummary(ctx context.Context, inputs pipeline.Inputs, dashboard string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pipeline.PhaseCommunicate)
	f.summary.inputs = inputs
	f.summary.dashboard = dashboard
	f.mu.Unlock()

	if err := f.wait(ctx, pipeline.PhaseCommunicate); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[pipeline.PhaseCommunicate]; err != nil {
		return "", err
	}
	if r, ok := f.replies[pipeline.PhaseCommunicate]; ok {
		return r, nil
	}
	return "Overall score: 8/10. Clear, data-backed reasoning.", nil
}

func (f *fakeGenerator) setErr(p pipeline.Phase, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[p] = err
}

func (f *fakeGenerator) callCount(p pipeline.Phase) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == p {
			n++
		}
	}
	return n
}

type recordingObserver struct {
	mu     sync.Mutex
	phases [][2]pipeline.Phase
	ready  []pipeline.Phase
}

func (o *recordingObserver) PhaseChanged(from, to pipeline.Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, [2]pipeline.Phase{from, to})
}

func (o *recordingObserver) FeedbackReady(phase pipeline.Phase, _ pipeline.FeedbackRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ready = append(o.ready, phase)
}

// --- Helpers ---

func newTestSession(t *testing.T, gen coaching.Generator, retry bool) *Session {
	t.Helper()
	s, err := New(Options{
		Loader:              dataset.NewLoader(),
		Generator:           gen,
		Logger:              zaptest.NewLogger(t),
		RetryFailedFeedback: retry,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func loadSample(t *testing.T, s *Session) Snapshot {
	t.Helper()
	snap, err := s.LoadDataset(context.Background(), dataset.Source{Sample: true})
	require.NoError(t, err)
	return snap
}

// fillPhase writes a passing answer for the current phase.
func fillPhase(t *testing.T, s *Session) {
	t.Helper()
	var err error
	switch s.Phase() {
	case pipeline.PhaseDefine:
		_, err = s.SetField(pipeline.FieldGapAnalysis, "North Q3 revenue is 21% under target.")
	case pipeline.PhaseGather:
		for i := len(s.Snapshot().Inputs.Observations); i < pipeline.MaxObservations; i++ {
			_, _, err = s.AddObservation("observation " + string(rune('A'+i)))
			require.NoError(t, err)
		}
	case pipeline.PhaseAnalyze:
		_, err = s.SetField(pipeline.FieldSupportingIndications, "Marketing spend rose while revenue fell.")
	case pipeline.PhaseDecide:
		_, err = s.SetField(pipeline.FieldActionPlan, "Launch a targeted retention offer in North.")
	}
	require.NoError(t, err)
}

// driveTo loads the sample and passes every gate until target is reached.
func driveTo(t *testing.T, s *Session, target pipeline.Phase) {
	t.Helper()
	if target == pipeline.PhaseUpload {
		return
	}
	loadSample(t, s)
	for s.Phase() != target {
		fillPhase(t, s)
		res, _, err := s.AdvanceAndWait(context.Background())
		require.NoError(t, err)
		require.Equal(t, OutcomeFeedbackRequested, res.Outcome, "phase %s", res.From)
		res = s.Advance()
		require.True(t, res.Moved(), "phase %s did not advance: %+v", res.From, res)
	}
}

func awaitStarted(t *testing.T, gen *fakeGenerator, want pipeline.Phase) {
	t.Helper()
	select {
	case got := <-gen.started:
		require.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("generator call for %s never started", want)
	}
}

// --- New ---

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{Generator: newFakeGenerator()})
	assert.Error(t, err)
	_, err = New(Options{Loader: dataset.NewLoader()})
	assert.Error(t, err)
}

func TestNew_StartsInUpload(t *testing.T) {
	s := newTestSession(t, newFakeGenerator(), true)
	snap := s.Snapshot()
	assert.Equal(t, pipeline.PhaseUpload, snap.Phase)
	assert.False(t, snap.HasContext)
	assert.Empty(t, snap.Feedback)
	assert.NotEmpty(t, snap.SessionID)
}

// --- LoadDataset ---

func TestLoadDataset_MovesToDefine(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestSession(t, gen, true)

	snap := loadSample(t, s)
	assert.Equal(t, pipeline.PhaseDefine, snap.Phase)
	assert.True(t, snap.HasContext)
	assert.Equal(t, gen.analysis, snap.DashboardContext)
	assert.Equal(t, dataset.SampleName, snap.DatasetName)
	assert.Equal(t, []string{"Sales Data", "Regional Notes"}, snap.SheetNames)
	assert.False(t, snap.Ready)
	assert.NotEmpty(t, snap.Hint)
}

func TestLoadDataset_AnalysisFailureStillTransitions(t *testing.T) {
	gen := newFakeGenerator()
	gen.setErr(pipeline.PhaseUpload, coaching.ErrGeneratorUnavailable)
	s := newTestSession(t, gen, true)

	snap := loadSample(t, s)
	assert.Equal(t, pipeline.PhaseDefine, snap.Phase)
	assert.Equal(t, ContextFailedText, snap.DashboardContext)
}

func TestLoadDataset_EmptyAnalysis(t *testing.T) {
	gen := newFakeGenerator()
	gen.analysis = ""
	s := newTestSession(t, gen, true)

	snap := loadSample(t, s)
	assert.Equal(t, ContextEmptyText, snap.DashboardContext)
}

func TestLoadDataset_ParseFailureStaysInUpload(t *testing.T) {
	s := newTestSession(t, newFakeGenerator(), true)

	_, err := s.LoadDataset(context.Background(), dataset.Source{Name: "notes.txt", Data: []byte("hi")})
	require.ErrorIs(t, err, dataset.ErrUnsupportedFormat)
	assert.Equal(t, pipeline.PhaseUpload, s.Phase())
	assert.False(t, s.Snapshot().Uploading)

	loadSample(t, s)
	assert.Equal(t, pipeline.PhaseDefine, s.Phase())
}

func TestLoadDataset_OnlyInUpload(t *testing.T) {
	s := newTestSession(t, newFakeGenerator(), true)
	loadSample(t, s)

	_, err := s.LoadDataset(context.Background(), dataset.Source{Sample: true})
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestLoadDataset_ConcurrentUploadRejected(t *testing.T) {
	gen := newFakeGenerator()
	gen.holdCalls(false)
	s := newTestSession(t, gen, true)

	done := make(chan error, 1)
	go func() {
		_, err := s.LoadDataset(context.Background(), dataset.Source{Sample: true})
		done <- err
	}()
	awaitStarted(t, gen, pipeline.PhaseUpload)

	assert.True(t, s.Snapshot().Uploading)
	_, err := s.LoadDataset(context.Background(), dataset.Source{Sample: true})
	assert.ErrorIs(t, err, ErrUploadInProgress)

	close(gen.release)
	require.NoError(t, <-done)
	assert.Equal(t, pipeline.PhaseDefine, s.Phase())
}

func TestLoadDataset_ResetDuringAnalysisDiscardsResult(t *testing.T) {
	gen := newFakeGenerator()
	gen.holdCalls(true)
	s := newTestSession(t, gen, true)

	done := make(chan error, 1)
	go func() {
		_, err := s.LoadDataset(context.Background(), dataset.Source{Sample: true})
		done <- err
	}()
	awaitStarted(t, gen, pipeline.PhaseUpload)

	_, err := s.Reset(false)
	require.NoError(t, err)

	assert.ErrorIs(t, <-done, ErrStaleSession)
	snap := s.Snapshot()
	assert.Equal(t, pipeline.PhaseUpload, snap.Phase)
	assert.False(t, snap.HasContext)
	assert.False(t, snap.Uploading)
}

// --- Advance: readiness gate ---

func TestAdvance_IgnoredOutsideGatedPhases(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestSession(t, gen, true)

	res := s.Advance()
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, pipeline.PhaseUpload, res.To)

	driveTo(t, s, pipeline.PhaseSummary)
	res = s.Advance()
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, pipeline.PhaseSummary, s.Phase())
}

func TestAdvance_NeverMovesWhenNotReady(t *testing.T) {
	for _, phase := range []pipeline.Phase{pipeline.PhaseDefine, pipeline.PhaseGather, pipeline.PhaseAnalyze, pipeline.PhaseDecide} {
		t.Run(string(phase), func(t *testing.T) {
			gen := newFakeGenerator()
			s := newTestSession(t, gen, true)
			driveTo(t, s, phase)

			// Empty answer, no feedback.
			res := s.Advance()
			assert.Equal(t, OutcomeNotReady, res.Outcome)
			assert.NotEmpty(t, res.Hint)
			assert.Equal(t, phase, s.Phase())
			assert.Zero(t, gen.callCount(phase))

			// Ready answer, feedback received, then the answer is broken again.
			fillPhase(t, s)
			_, _, err := s.AdvanceAndWait(context.Background())
			require.NoError(t, err)
			breakAnswer(t, s, phase)

			res = s.Advance()
			assert.Equal(t, OutcomeNotReady, res.Outcome)
			assert.Equal(t, phase, s.Phase())
		})
	}
}

func breakAnswer(t *testing.T, s *Session, phase pipeline.Phase) {
	t.Helper()
	if phase == pipeline.PhaseGather {
		_, err := s.RemoveObservation(0)
		require.NoError(t, err)
		return
	}
	field, ok := pipeline.FieldForPhase(phase)
	require.True(t, ok)
	_, err := s.SetField(field, "too short")
	require.NoError(t, err)
}

// --- Advance: feedback gate ---

func TestAdvance_DefineEndToEnd(t *testing.T) {
	gen := newFakeGenerator()
	gen.replies[pipeline.PhaseDefine] = "[STATUS: PASS] Solid framing."
	s := newTestSession(t, gen, true)
	loadSample(t, s)
	gen.holdCalls(false)

	_, err := s.SetField(pipeline.FieldGapAnalysis, "Q3 miss 21%!")
	require.NoError(t, err)
	require.Equal(t, 12, len([]rune(s.Snapshot().Inputs.GapAnalysis)))

	res := s.Advance()
	assert.Equal(t, OutcomeFeedbackRequested, res.Outcome)
	assert.Equal(t, pipeline.PhaseDefine, res.To)

	rec, ok := s.Snapshot().FeedbackFor(pipeline.PhaseDefine)
	require.True(t, ok)
	assert.True(t, rec.IsLoading)
	assert.False(t, rec.HasContent)

	awaitStarted(t, gen, pipeline.PhaseDefine)
	close(gen.release)
	rec, err = s.AwaitFeedback(context.Background(), pipeline.PhaseDefine)
	require.NoError(t, err)
	assert.False(t, rec.IsLoading)
	assert.Equal(t, "[STATUS: PASS] Solid framing.", rec.Content)
	assert.Equal(t, pipeline.StatusPass, rec.Status)
	assert.Equal(t, "Solid framing.", rec.Parsed().Text)
	assert.Equal(t, pipeline.PhaseDefine, s.Phase())

	res = s.Advance()
	assert.Equal(t, OutcomeAdvanced, res.Outcome)
	assert.Equal(t, pipeline.PhaseGather, res.To)
	assert.Equal(t, pipeline.PhaseGather, s.Phase())
}

func TestAdvance_RequestCarriesPhaseInputs(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestSession(t, gen, true)
	driveTo(t, s, pipeline.PhaseAnalyze)

	gen.mu.Lock()
	defer gen.mu.Unlock()
	require.Len(t, gen.requests, 2)
	gather := gen.requests[1]
	assert.Equal(t, pipeline.PhaseGather, gather.Phase)
	assert.Equal(t, strings.Join(gather.Inputs.Observations, "; "), gather.PhaseInput)
	assert.Equal(t, gen.analysis, gather.DashboardContext)
	assert.NotEmpty(t, gather.Inputs.GapAnalysis)
}

func TestAdvance_NoDuplicateRequestWhileLoading(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestSession(t, gen, true)
	loadSample(t, s)
	gen.holdCalls(false)
	fillPhase(t, s)

	assert.Equal(t, OutcomeFeedbackRequested, s.Advance().Outcome)
	for i := 0; i < 5; i++ {
		assert.Equal(t, OutcomeFeedbackPending, s.Advance().Outcome)
	}
	awaitStarted(t, gen, pipeline.PhaseDefine)
	assert.Equal(t, 1, gen.callCount(pipeline.PhaseDefine))

	close(gen.release)
	_, err := s.AwaitFeedback(context.Background(), pipeline.PhaseDefine)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.callCount(pipeline.PhaseDefine))
}

func TestAdvance_MovesExactlyOnePhase(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestSession(t, gen, true)
	loadSample(t, s)

	var visited []pipeline.Phase
	for s.Phase() != pipeline.PhaseSummary {
		from := s.Phase()
		fillPhase(t, s)
		_, _, err := s.AdvanceAndWait(context.Background())
		require.NoError(t, err)

		res := s.Advance()
		want, _ := pipeline.Next(from)
		require.Equal(t, want, res.To, "advance from %s", from)
		visited = append(visited, res.To)
	}
	assert.Equal(t, []pipeline.Phase{
		pipeline.PhaseGather, pipeline.PhaseAnalyze, pipeline.PhaseDecide,
		pipeline.PhaseCommunicate, pipeline.PhaseSummary,
	}, visited)
}

func TestAdvance_CommunicateEndToEnd(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestSession(t, gen, true)
	driveTo(t, s, pipeline.PhaseCommunicate)

	res, rec, err := s.AdvanceAndWait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFeedbackRequested, res.Outcome)
	assert.Equal(t, "Overall score: 8/10. Clear, data-backed reasoning.", rec.Content)
	assert.Equal(t, pipeline.PhaseCommunicate, s.Phase())

	gen.mu.Lock()
	in := gen.summary.inputs
	dashboard := gen.summary.dashboard
	gen.mu.Unlock()
	assert.NotEmpty(t, in.GapAnalysis)
	assert.Len(t, in.Observations, pipeline.MaxObservations)
	assert.NotEmpty(t, in.SupportingIndications)
	assert.NotEmpty(t, in.ActionPlan)
	assert.Equal(t, gen.analysis, dashboard)

	res = s.Advance()
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, pipeline.PhaseSummary, s.Phase())
}

func TestAdvance_EmptyReplyUsesPlaceholder(t *testing.T) {
	gen := newFakeGenerator()
	gen.replies[pipeline.PhaseDefine] = ""
	s := newTestSession(t, gen, true)
	loadSample(t, s)
	fillPhase(t, s)

	_, rec, err := s.AdvanceAndWait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FeedbackEmptyText, rec.Content)
	assert.Equal(t, pipeline.StatusNeutral, rec.Status)
	assert.False(t, rec.Failed)
}

// --- Failed feedback ---

func TestAdvance_FailedFeedbackIsRetried(t *testing.T) {
	gen := newFakeGenerator()
	gen.setErr(pipeline.PhaseDefine, errors.New("quota exceeded"))
	s := newTestSession(t, gen, true)
	loadSample(t, s)
	fillPhase(t, s)

	_, rec, err := s.AdvanceAndWait(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.Failed)
	assert.False(t, rec.IsLoading)
	assert.Equal(t, FeedbackFailedText, rec.Content)

	gen.setErr(pipeline.PhaseDefine, nil)
	res, rec, err := s.AdvanceAndWait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFeedbackRequested, res.Outcome)
	assert.Equal(t, pipeline.PhaseDefine, s.Phase())
	assert.False(t, rec.Failed)
	assert.Equal(t, 2, gen.callCount(pipeline.PhaseDefine))

	assert.Equal(t, OutcomeAdvanced, s.Advance().Outcome)
}

func TestAdvance_FailedFeedbackCountsWithoutRetry(t *testing.T) {
	gen := newFakeGenerator()
	gen.setErr(pipeline.PhaseDefine, errors.New("quota exceeded"))
	s := newTestSession(t, gen, false)
	loadSample(t, s)
	fillPhase(t, s)

	_, rec, err := s.AdvanceAndWait(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.Failed)

	res := s.Advance()
	assert.Equal(t, OutcomeAdvanced, res.Outcome)
	assert.Equal(t, pipeline.PhaseGather, s.Phase())
}

func TestAdvance_FailedSummaryPlaceholder(t *testing.T) {
	gen := newFakeGenerator()
	gen.setErr(pipeline.PhaseCommunicate, coaching.ErrGeneratorUnavailable)
	s := newTestSession(t, gen, false)
	driveTo(t, s, pipeline.PhaseCommunicate)

	_, rec, err := s.AdvanceAndWait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SummaryFailedText, rec.Content)

	assert.Equal(t, OutcomeCompleted, s.Advance().Outcome)
	report, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, SummaryFailedText, report.Summary)
}

func TestAdvance_UnavailableGeneratorNeverLeavesLoading(t *testing.T) {
	s := newTestSession(t, coaching.Unavailable{Reason: "missing API key"}, false)
	snap := loadSample(t, s)
	assert.Equal(t, ContextFailedText, snap.DashboardContext)

	fillPhase(t, s)
	_, rec, err := s.AdvanceAndWait(context.Background())
	require.NoError(t, err)
	assert.False(t, rec.IsLoading)
	assert.Equal(t, FeedbackFailedText, rec.Content)
}

// --- Inputs ---

func TestObservations_CapAndBlank(t *testing.T) {
	s := newTestSession(t, newFakeGenerator(), true)
	driveTo(t, s, pipeline.PhaseGather)
	fillPhase(t, s)

	added, snap, err := s.AddObservation("a sixth one")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, snap.Inputs.Observations, pipeline.MaxObservations)

	_, err = s.RemoveObservation(0)
	require.NoError(t, err)
	added, snap, err = s.AddObservation("   ")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, snap.Inputs.Observations, pipeline.MaxObservations-1)

	_, err = s.RemoveObservation(10)
	assert.ErrorIs(t, err, pipeline.ErrOutOfRange)
}

func TestInputs_RejectedOutsideGatedPhases(t *testing.T) {
	s := newTestSession(t, newFakeGenerator(), true)

	_, err := s.SetField(pipeline.FieldGapAnalysis, "something long enough")
	assert.ErrorIs(t, err, ErrWrongPhase)
	_, _, err = s.AddObservation("obs")
	assert.ErrorIs(t, err, ErrWrongPhase)
	_, err = s.RemoveObservation(0)
	assert.ErrorIs(t, err, ErrWrongPhase)

	driveTo(t, s, pipeline.PhaseSummary)
	_, err = s.SetField(pipeline.FieldActionPlan, "late edit to the plan")
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestSetField_UnknownField(t *testing.T) {
	s := newTestSession(t, newFakeGenerator(), true)
	loadSample(t, s)
	_, err := s.SetField(pipeline.Field("mood"), "x")
	assert.ErrorIs(t, err, pipeline.ErrUnknownField)
}

// --- Reset ---

func TestReset_FromEveryPhase(t *testing.T) {
	for _, phase := range pipeline.PhaseOrder {
		t.Run(string(phase), func(t *testing.T) {
			s := newTestSession(t, newFakeGenerator(), true)
			driveTo(t, s, phase)
			if pipeline.IsGated(phase) {
				fillPhase(t, s)
			}
			oldID := s.ID()

			snap, err := s.Reset(true)
			require.NoError(t, err)

			assert.Equal(t, pipeline.PhaseUpload, snap.Phase)
			assert.Equal(t, *pipeline.NewInputs(), snap.Inputs)
			assert.Empty(t, snap.Feedback)
			assert.False(t, snap.HasContext)
			assert.Empty(t, snap.DashboardContext)
			assert.Empty(t, snap.SheetNames)
			assert.NotEqual(t, oldID, snap.SessionID)

			_, err = s.Dataset()
			assert.ErrorIs(t, err, ErrNoDataset)
			_, err = s.Query(context.Background(), "SELECT 1", 0)
			assert.ErrorIs(t, err, ErrNoDataset)
		})
	}
}

func TestReset_RequiresConfirmationMidExercise(t *testing.T) {
	s := newTestSession(t, newFakeGenerator(), true)
	driveTo(t, s, pipeline.PhaseAnalyze)

	_, err := s.Reset(false)
	assert.ErrorIs(t, err, ErrResetNotConfirmed)
	assert.Equal(t, pipeline.PhaseAnalyze, s.Phase())
}

func TestResetFromSummary(t *testing.T) {
	s := newTestSession(t, newFakeGenerator(), true)

	_, err := s.ResetFromSummary()
	assert.ErrorIs(t, err, ErrWrongPhase)

	driveTo(t, s, pipeline.PhaseSummary)
	snap, err := s.ResetFromSummary()
	require.NoError(t, err)
	assert.Equal(t, pipeline.PhaseUpload, snap.Phase)
	assert.Empty(t, snap.Feedback)
}

func TestReset_DiscardsStaleCompletion(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestSession(t, gen, true)
	loadSample(t, s)
	fillPhase(t, s)

	// The next call ignores cancellation and finishes after the reset.
	gen.holdCalls(false)
	require.Equal(t, OutcomeFeedbackRequested, s.Advance().Outcome)
	awaitStarted(t, gen, pipeline.PhaseDefine)

	_, err := s.Reset(true)
	require.NoError(t, err)
	gen.stopHolding()
	loadSample(t, s)
	fillPhase(t, s)

	close(gen.release)
	require.NoError(t, s.Close())

	snap := s.Snapshot()
	assert.Equal(t, pipeline.PhaseDefine, snap.Phase)
	_, ok := snap.FeedbackFor(pipeline.PhaseDefine)
	assert.False(t, ok, "completion from the reset session must not land in the new one")
}

// --- AwaitFeedback ---

func TestAwaitFeedback_NoRequest(t *testing.T) {
	s := newTestSession(t, newFakeGenerator(), true)
	loadSample(t, s)
	_, err := s.AwaitFeedback(context.Background(), pipeline.PhaseDefine)
	assert.ErrorIs(t, err, ErrNoFeedback)
}

func TestAwaitFeedback_ContextCanceled(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestSession(t, gen, true)
	loadSample(t, s)
	gen.holdCalls(true)
	fillPhase(t, s)
	s.Advance()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.AwaitFeedback(ctx, pipeline.PhaseDefine)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- Close ---

func TestClose_CancelsOutstandingRequests(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestSession(t, gen, true)
	loadSample(t, s)
	gen.holdCalls(true)
	fillPhase(t, s)
	s.Advance()
	awaitStarted(t, gen, pipeline.PhaseDefine)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, OutcomeIgnored, s.Advance().Outcome)
	_, err := s.LoadDataset(context.Background(), dataset.Source{Sample: true})
	assert.ErrorIs(t, err, ErrClosed)
}

// --- Summary ---

func TestSummary_OnlyInSummaryPhase(t *testing.T) {
	s := newTestSession(t, newFakeGenerator(), true)
	driveTo(t, s, pipeline.PhaseDecide)
	_, err := s.Summary()
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestSummary_Report(t *testing.T) {
	gen := newFakeGenerator()
	gen.replies[pipeline.PhaseAnalyze] = "[STATUS: IMPROVE] Which metric moved first?"
	s := newTestSession(t, gen, true)
	driveTo(t, s, pipeline.PhaseSummary)

	report, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, dataset.SampleName, report.DatasetName)
	assert.Equal(t, "Overall score: 8/10. Clear, data-backed reasoning.", report.Summary)
	require.Len(t, report.Feedback, 4)
	assert.Equal(t, pipeline.PhaseAnalyze, report.Feedback[2].Phase)
	assert.Equal(t, pipeline.StatusImprove, report.Feedback[2].Status)
	assert.Equal(t, "Which metric moved first?", report.Feedback[2].Text)

	r, err := templates.NewRenderer()
	require.NoError(t, err)
	md, err := report.Markdown(r)
	require.NoError(t, err)
	assert.Contains(t, md, "# Critical Thinking Review: "+dataset.SampleName)
	assert.Contains(t, md, "### Analyze — Needs Improvement")
	assert.Contains(t, md, "Overall score: 8/10")
}

// --- Workbench ---

func TestQuery_OverLoadedSheets(t *testing.T) {
	s := newTestSession(t, newFakeGenerator(), true)
	loadSample(t, s)

	tables, err := s.Tables()
	require.NoError(t, err)
	require.Len(t, tables, 2)

	res, err := s.Query(context.Background(), "SELECT status FROM regional_notes WHERE region = 'West'", 0)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"At Risk"}}, res.Rows)
}

// --- Observer ---

func TestObserver_ReceivesPhaseChangesAndFeedback(t *testing.T) {
	obs := &recordingObserver{}
	s, err := New(Options{
		Loader:    dataset.NewLoader(),
		Generator: newFakeGenerator(),
		Logger:    zaptest.NewLogger(t),
		Observer:  obs,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	driveTo(t, s, pipeline.PhaseGather)
	_, err = s.Reset(true)
	require.NoError(t, err)
	// Close waits for the feedback worker to finish notifying.
	require.NoError(t, s.Close())

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, [][2]pipeline.Phase{
		{pipeline.PhaseUpload, pipeline.PhaseDefine},
		{pipeline.PhaseDefine, pipeline.PhaseGather},
		{pipeline.PhaseGather, pipeline.PhaseUpload},
	}, obs.phases)
	assert.Equal(t, []pipeline.Phase{pipeline.PhaseDefine}, obs.ready)
}
