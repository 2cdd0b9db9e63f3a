// Package templates renders the generator prompts and the final session
// report from embedded text/template files.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed files/*.tmpl
var files embed.FS

// Template names.
const (
	AnalyzeContext = "analyze_context.txt.tmpl"
	StageFeedback  = "stage_feedback.txt.tmpl"
	FinalSummary   = "final_summary.txt.tmpl"
	SessionReport  = "session_report.md.tmpl"
)

// Renderer renders a named template with data.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// EmbedRenderer renders the templates compiled into the binary.
type EmbedRenderer struct {
	tmpl *template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*EmbedRenderer, error) {
	funcs := template.FuncMap{
		"join": strings.Join,
		"inc":  func(i int) int { return i + 1 },
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(files, "files/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &EmbedRenderer{tmpl: tmpl}, nil
}

// Render executes the named template.
func (r *EmbedRenderer) Render(name string, data any) (string, error) {
	t := r.tmpl.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// --- Template data ---

// AnalyzeContextData feeds AnalyzeContext.
type AnalyzeContextData struct {
	CSV       string
	Truncated bool
}

// StageFeedbackData feeds StageFeedback.
type StageFeedbackData struct {
	PhaseName        string
	UserInput        string
	DashboardContext string
	PreviousAnswers  string // JSON of all inputs so far
	MarkerPass       string
	MarkerImprove    string
}

// FinalSummaryData feeds FinalSummary.
type FinalSummaryData struct {
	DashboardContext      string
	GapAnalysis           string
	Observations          []string
	SupportingIndications string
	ActionPlan            string
}

// ReportInputs is the answer set shown in SessionReport.
type ReportInputs struct {
	GapAnalysis           string
	Observations          []string
	SupportingIndications string
	ActionPlan            string
}

// ReportFeedback is one phase's coaching shown in SessionReport.
type ReportFeedback struct {
	Title string
	Label string
	Text  string
}

// SessionReportData feeds SessionReport.
type SessionReportData struct {
	DatasetName string
	Summary     string
	Inputs      ReportInputs
	Feedback    []ReportFeedback
}
