package session

import (
	"fmt"

	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/templates"
)

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	SessionID        string                                     `json:"session_id"`
	Phase            pipeline.Phase                             `json:"phase"`
	Inputs           pipeline.Inputs                            `json:"inputs"`
	Feedback         map[pipeline.Phase]pipeline.FeedbackRecord `json:"feedback"`
	HasContext       bool                                       `json:"has_context"`
	DashboardContext string                                     `json:"dashboard_context,omitempty"`
	DatasetName      string                                     `json:"dataset_name,omitempty"`
	SheetNames       []string                                   `json:"sheet_names,omitempty"`
	Uploading        bool                                       `json:"uploading"`
	Ready            bool                                       `json:"ready"`
	Hint             string                                     `json:"hint,omitempty"`
}

// FeedbackFor returns the record for p, if any.
func (s Snapshot) FeedbackFor(p pipeline.Phase) (pipeline.FeedbackRecord, bool) {
	rec, ok := s.Feedback[p]
	return rec, ok
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:        s.id,
		Phase:            s.phase,
		Inputs:           s.inputs.Clone(),
		Feedback:         s.feedback.Snapshot(),
		HasContext:       s.hasContext,
		DashboardContext: s.dashboard,
		Uploading:        s.uploading,
		Ready:            s.inputs.IsPhaseReady(s.phase),
	}
	if s.ds != nil {
		snap.DatasetName = s.ds.Name
		snap.SheetNames = append([]string{}, s.ds.SheetNames...)
	}
	if pipeline.IsGated(s.phase) {
		snap.Hint = s.inputs.ReadinessHint(s.phase)
	}
	return snap
}

// --- Summary report ---

// PhaseFeedback is one phase's coaching as shown in the report.
type PhaseFeedback struct {
	Phase  pipeline.Phase  `json:"phase"`
	Status pipeline.Status `json:"status"`
	Text   string          `json:"text"`
}

// Report is the end-of-exercise review.
type Report struct {
	SessionID   string          `json:"session_id"`
	DatasetName string          `json:"dataset_name"`
	Inputs      pipeline.Inputs `json:"inputs"`
	Feedback    []PhaseFeedback `json:"feedback"`
	Summary     string          `json:"summary"`
}

// Summary returns the report. It is only available in the Summary phase.
func (s *Session) Summary() (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != pipeline.PhaseSummary {
		return Report{}, fmt.Errorf("%w: the summary is available once the exercise is complete (currently %s)",
			ErrWrongPhase, s.phase.Title())
	}

	r := Report{
		SessionID: s.id,
		Inputs:    s.inputs.Clone(),
		Summary:   DefaultSummaryText,
		Feedback:  []PhaseFeedback{},
	}
	if s.ds != nil {
		r.DatasetName = s.ds.Name
	}
	for _, p := range pipeline.GatedPhases {
		rec, ok := s.feedback.Get(p)
		if !ok || !rec.HasContent {
			continue
		}
		if p == pipeline.PhaseCommunicate {
			r.Summary = rec.Content
			continue
		}
		parsed := rec.Parsed()
		r.Feedback = append(r.Feedback, PhaseFeedback{Phase: p, Status: parsed.Status, Text: parsed.Text})
	}
	return r, nil
}

// Markdown renders the report for export.
func (r Report) Markdown(renderer templates.Renderer) (string, error) {
	data := templates.SessionReportData{
		DatasetName: r.DatasetName,
		Summary:     r.Summary,
		Inputs: templates.ReportInputs{
			GapAnalysis:           r.Inputs.GapAnalysis,
			Observations:          r.Inputs.Observations,
			SupportingIndications: r.Inputs.SupportingIndications,
			ActionPlan:            r.Inputs.ActionPlan,
		},
	}
	for _, f := range r.Feedback {
		data.Feedback = append(data.Feedback, templates.ReportFeedback{
			Title: f.Phase.Title(),
			Label: f.Status.Label(),
			Text:  f.Text,
		})
	}
	return renderer.Render(templates.SessionReport, data)
}
