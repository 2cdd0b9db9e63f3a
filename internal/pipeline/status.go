package pipeline

import "strings"

// Status is the ternary signal carried by stage feedback.
type Status string

const (
	StatusNeutral Status = "neutral"
	StatusPass    Status = "pass"
	StatusImprove Status = "improve"
)

// Status markers the generator is asked to lead its feedback with.
const (
	MarkerPass    = "[STATUS: PASS]"
	MarkerImprove = "[STATUS: IMPROVE]"
)

// ParsedFeedback is feedback text with its status marker lifted out.
type ParsedFeedback struct {
	Status Status `json:"status"`
	Text   string `json:"text"`
}

// ParseStatus classifies raw feedback by its status marker and strips the
// marker. Text without a marker is Neutral and returned unchanged.
func ParseStatus(raw string) ParsedFeedback {
	switch {
	case strings.Contains(raw, MarkerPass):
		return ParsedFeedback{
			Status: StatusPass,
			Text:   strings.TrimSpace(strings.Replace(raw, MarkerPass, "", 1)),
		}
	case strings.Contains(raw, MarkerImprove):
		return ParsedFeedback{
			Status: StatusImprove,
			Text:   strings.TrimSpace(strings.Replace(raw, MarkerImprove, "", 1)),
		}
	}
	return ParsedFeedback{Status: StatusNeutral, Text: raw}
}

// Label is the heading shown above feedback of this status.
func (s Status) Label() string {
	switch s {
	case StatusPass:
		return "On Track"
	case StatusImprove:
		return "Needs Improvement"
	}
	return "Coach Feedback"
}
