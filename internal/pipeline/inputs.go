package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxObservations is both the cap and the Gather readiness target.
	MaxObservations = 5
	// MinAnswerLength is the minimum character count of a free-form answer.
	MinAnswerLength = 10
)

// communicateText is what the Communicate phase submits for review.
const communicateText = "Submitting for final review."

var (
	// ErrOutOfRange is returned when removing an observation that does not exist.
	ErrOutOfRange = errors.New("observation index out of range")
	// ErrUnknownField is returned by SetField for names it does not own.
	ErrUnknownField = errors.New("unknown answer field")
)

// Field names a scalar answer in Inputs.
type Field string

const (
	FieldGapAnalysis           Field = "gap_analysis"
	FieldSupportingIndications Field = "supporting_indications"
	FieldActionPlan            Field = "action_plan"
)

// FieldForPhase returns the scalar field a phase collects, if any.
func FieldForPhase(p Phase) (Field, bool) {
	switch p {
	case PhaseDefine:
		return FieldGapAnalysis, true
	case PhaseAnalyze:
		return FieldSupportingIndications, true
	case PhaseDecide:
		return FieldActionPlan, true
	}
	return "", false
}

// ParseField accepts snake_case or camelCase field names.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "gapanalysis":
		return FieldGapAnalysis, nil
	case "supportingindications":
		return FieldSupportingIndications, nil
	case "actionplan":
		return FieldActionPlan, nil
	}
	return "", fmt.Errorf("%w %q: must be one of: gap_analysis, supporting_indications, action_plan", ErrUnknownField, s)
}

// Inputs is the Input Store: the four free-form answers of one session.
type Inputs struct {
	GapAnalysis           string   `json:"gap_analysis"`
	Observations          []string `json:"observations"`
	SupportingIndications string   `json:"supporting_indications"`
	ActionPlan            string   `json:"action_plan"`
}

// NewInputs returns an empty store.
func NewInputs() *Inputs {
	return &Inputs{Observations: []string{}}
}

// SetField replaces a scalar answer. No validation happens at write time.
func (in *Inputs) SetField(f Field, value string) error {
	switch f {
	case FieldGapAnalysis:
		in.GapAnalysis = value
	case FieldSupportingIndications:
		in.SupportingIndications = value
	case FieldActionPlan:
		in.ActionPlan = value
	default:
		return fmt.Errorf("%w %q", ErrUnknownField, f)
	}
	return nil
}

// Field returns the current value of a scalar answer.
func (in *Inputs) Field(f Field) string {
	switch f {
	case FieldGapAnalysis:
		return in.GapAnalysis
	case FieldSupportingIndications:
		return in.SupportingIndications
	case FieldActionPlan:
		return in.ActionPlan
	}
	return ""
}

// AddObservation appends the trimmed text when it is non-empty and the
// list is not full. It reports whether the observation was added.
func (in *Inputs) AddObservation(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || len(in.Observations) >= MaxObservations {
		return false
	}
	in.Observations = append(in.Observations, text)
	return true
}

// RemoveObservation deletes the observation at index (0-based).
func (in *Inputs) RemoveObservation(index int) error {
	if index < 0 || index >= len(in.Observations) {
		return fmt.Errorf("%w: %d (have %d)", ErrOutOfRange, index, len(in.Observations))
	}
	in.Observations = append(in.Observations[:index], in.Observations[index+1:]...)
	return nil
}

// IsPhaseReady is the local readiness gate. It is independent of feedback.
func (in *Inputs) IsPhaseReady(p Phase) bool {
	switch p {
	case PhaseDefine:
		return utf8.RuneCountInString(in.GapAnalysis) >= MinAnswerLength
	case PhaseGather:
		return len(in.Observations) == MaxObservations
	case PhaseAnalyze:
		return utf8.RuneCountInString(in.SupportingIndications) >= MinAnswerLength
	case PhaseDecide:
		return utf8.RuneCountInString(in.ActionPlan) >= MinAnswerLength
	case PhaseCommunicate:
		return true
	}
	return false
}

// ReadinessHint explains what is missing for p. Empty when p is ready.
func (in *Inputs) ReadinessHint(p Phase) string {
	if in.IsPhaseReady(p) {
		return ""
	}
	if p == PhaseGather {
		missing := MaxObservations - len(in.Observations)
		return fmt.Sprintf("Add %d more observation(s) (%d/%d).", missing, len(in.Observations), MaxObservations)
	}
	if f, ok := FieldForPhase(p); ok {
		have := utf8.RuneCountInString(in.Field(f))
		return fmt.Sprintf("Write at least %d characters for %s (currently %d).", MinAnswerLength, f, have)
	}
	return fmt.Sprintf("Phase %s does not accept answers.", p.Title())
}

// PhaseText is the slice of the inputs sent for feedback on p.
func (in *Inputs) PhaseText(p Phase) string {
	switch p {
	case PhaseGather:
		return strings.Join(in.Observations, "; ")
	case PhaseCommunicate:
		return communicateText
	}
	if f, ok := FieldForPhase(p); ok {
		return in.Field(f)
	}
	return ""
}

// Clone returns a deep copy safe to hand to another goroutine.
func (in *Inputs) Clone() Inputs {
	out := *in
	out.Observations = append([]string{}, in.Observations...)
	return out
}
