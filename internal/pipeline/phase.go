// Package pipeline holds the critical-thinking phase model: the ordered
// phase enum and its transition table, the per-session input store with
// its readiness gates, the feedback status parser, and the per-phase
// feedback cache.
//
// Nothing in this package is safe for concurrent use. The session state
// machine serializes every call.
package pipeline

import (
	"fmt"
	"strings"
)

// Phase is one stage of the coaching workflow.
type Phase string

const (
	PhaseUpload      Phase = "upload"
	PhaseDefine      Phase = "define"
	PhaseGather      Phase = "gather"
	PhaseAnalyze     Phase = "analyze"
	PhaseDecide      Phase = "decide"
	PhaseCommunicate Phase = "communicate"
	PhaseSummary     Phase = "summary"
)

// PhaseOrder is the total order of phases, boundaries included.
var PhaseOrder = []Phase{
	PhaseUpload,
	PhaseDefine,
	PhaseGather,
	PhaseAnalyze,
	PhaseDecide,
	PhaseCommunicate,
	PhaseSummary,
}

// GatedPhases are the five phases that require readiness and feedback
// before advancing.
var GatedPhases = []Phase{
	PhaseDefine,
	PhaseGather,
	PhaseAnalyze,
	PhaseDecide,
	PhaseCommunicate,
}

// transitions is the forward edge of every phase. Summary has none.
// Kept explicit so reordering phases never relies on index arithmetic.
var transitions = map[Phase]Phase{
	PhaseUpload:      PhaseDefine,
	PhaseDefine:      PhaseGather,
	PhaseGather:      PhaseAnalyze,
	PhaseAnalyze:     PhaseDecide,
	PhaseDecide:      PhaseCommunicate,
	PhaseCommunicate: PhaseSummary,
}

var phaseTitles = map[Phase]string{
	PhaseUpload:      "Upload",
	PhaseDefine:      "Define",
	PhaseGather:      "Gather",
	PhaseAnalyze:     "Analyze",
	PhaseDecide:      "Decide",
	PhaseCommunicate: "Communicate",
	PhaseSummary:     "Summary",
}

// Next returns the phase that follows p, or false for Summary and
// unknown phases.
func Next(p Phase) (Phase, bool) {
	next, ok := transitions[p]
	return next, ok
}

// PhaseIndex returns the ordinal position of p in PhaseOrder, or -1.
func PhaseIndex(p Phase) int {
	for i, s := range PhaseOrder {
		if s == p {
			return i
		}
	}
	return -1
}

// Before reports whether a comes strictly before b.
func Before(a, b Phase) bool {
	ia, ib := PhaseIndex(a), PhaseIndex(b)
	return ia >= 0 && ib >= 0 && ia < ib
}

// IsGated reports whether p is one of the five feedback-gated phases.
func IsGated(p Phase) bool {
	for _, g := range GatedPhases {
		if g == p {
			return true
		}
	}
	return false
}

// Title returns the display name ("Define").
func (p Phase) Title() string {
	if t, ok := phaseTitles[p]; ok {
		return t
	}
	return string(p)
}

// ParsePhase accepts a phase name in any case.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if PhaseIndex(p) < 0 {
		return "", fmt.Errorf("invalid phase %q: must be one of: upload, define, gather, analyze, decide, communicate, summary", s)
	}
	return p, nil
}
