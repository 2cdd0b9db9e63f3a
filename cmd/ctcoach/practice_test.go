package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HendryAvila/ctcoach/internal/coaching"
	"github.com/HendryAvila/ctcoach/internal/dataset"
	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/HendryAvila/ctcoach/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scriptedCoach struct{}

func (scriptedCoach) AnalyzeContext(context.Context, string) (string, error) {
	return "Four regions, three quarters, revenue against target.", nil
}

func (scriptedCoach) StageFeedback(_ context.Context, req coaching.FeedbackRequest) (string, error) {
	if req.Phase == pipeline.PhaseAnalyze {
		return "[STATUS: IMPROVE] Consider the marketing spend too.", nil
	}
	return "[STATUS: PASS] Clear " + req.Phase.Title() + ".", nil
}

func (scriptedCoach) FinalSummary(context.Context, pipeline.Inputs, string) (string, error) {
	return "Score: 8/10. Strong framing.", nil
}

func runScript(t *testing.T, initial *dataset.Source, lines ...string) (string, *session.Session) {
	t.Helper()
	sess, err := session.New(session.Options{
		Loader:              dataset.NewLoader(),
		Generator:           scriptedCoach{},
		Logger:              zaptest.NewLogger(t),
		RetryFailedFeedback: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	renderer, err := templates.NewRenderer()
	require.NoError(t, err)

	var out bytes.Buffer
	p := &practice{
		sess:     sess,
		renderer: renderer,
		in:       strings.NewReader(strings.Join(lines, "\n") + "\n"),
		out:      &out,
		markdown: func(s string) string { return s + "\n" },
	}
	require.NoError(t, p.run(context.Background(), initial))
	return out.String(), sess
}

func TestPractice_FullExercise(t *testing.T) {
	report := filepath.Join(t.TempDir(), "review.md")

	out, sess := runScript(t, &dataset.Source{Sample: true},
		"Q3 miss 21%!",
		"/next",
		"/next",
		"North revenue fell to 950k in Q3",
		"West turnover reached 22%",
		"West CSAT fell to 6.8",
		"East beat target every quarter",
		"South recovered in Q3",
		"One observation too many",
		"/rm 5",
		"South beat target in Q3",
		"/next",
		"/next",
		"West turnover tracks its revenue decline.",
		"/next",
		"/next",
		"Stay interviews in West within 30 days.",
		"/next",
		"/next",
		"/next",
		"/next",
		"/summary "+report,
	)

	assert.Contains(t, out, "Loaded "+dataset.SampleName)
	assert.Contains(t, out, "Four regions, three quarters")
	assert.Contains(t, out, "On Track")
	assert.Contains(t, out, "Clear Define.")
	assert.NotContains(t, out, "[STATUS:")
	assert.Contains(t, out, "You already have 5 observations")
	assert.Contains(t, out, "Needs Improvement")
	assert.Contains(t, out, "Consider the marketing spend too.")
	assert.Contains(t, out, "Final Evaluation")
	assert.Contains(t, out, "Critical Thinking Review: "+dataset.SampleName)
	assert.Contains(t, out, "Saved "+report)

	assert.Equal(t, pipeline.PhaseSummary, sess.Phase())
	assert.Equal(t, []string{
		"North revenue fell to 950k in Q3",
		"West turnover reached 22%",
		"West CSAT fell to 6.8",
		"East beat target every quarter",
		"South beat target in Q3",
	}, sess.Snapshot().Inputs.Observations)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Score: 8/10. Strong framing.")
	assert.Contains(t, string(data), "Stay interviews in West within 30 days.")
}

func TestPractice_NotReadyAndCommands(t *testing.T) {
	out, sess := runScript(t, &dataset.Source{Sample: true},
		"short",
		"/next",
		"/sql SELECT region FROM sales_data WHERE quarter = 'Q3' ORDER BY revenue DESC LIMIT 1",
		"/sql DROP TABLE sales_data",
		"/bogus",
		"/rm x",
		"/quit",
		"never read",
	)

	assert.Contains(t, out, "Write at least 10 characters")
	assert.Contains(t, out, "| region |")
	assert.Contains(t, out, "| East |")
	assert.Contains(t, out, "only a single SELECT")
	assert.Contains(t, out, "Unknown command /bogus")
	assert.Contains(t, out, "Usage: /rm N")
	assert.Equal(t, pipeline.PhaseDefine, sess.Phase())
	assert.Equal(t, "short", sess.Snapshot().Inputs.GapAnalysis)
}

func TestPractice_ResetNeedsConfirmation(t *testing.T) {
	out, sess := runScript(t, &dataset.Source{Sample: true},
		"A problem statement long enough.",
		"/reset",
		"n",
		"/reset",
		"y",
	)

	assert.Contains(t, out, "Reset canceled.")
	assert.Contains(t, out, "Session reset.")
	assert.Equal(t, pipeline.PhaseUpload, sess.Phase())
	assert.Empty(t, sess.Snapshot().Inputs.GapAnalysis)
}

func TestPractice_LoadFromPrompt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.csv")
	require.NoError(t, os.WriteFile(path, []byte("Week,Tickets\n1,40\n2,65\n"), 0o644))

	out, sess := runScript(t, nil,
		filepath.Join(t.TempDir(), "missing.csv"),
		path,
		"/sql",
	)

	assert.Contains(t, out, "Could not load the dashboard")
	assert.Contains(t, out, "Loaded ops.csv")
	assert.Contains(t, out, "ops (2 rows): week, tickets")
	assert.Equal(t, pipeline.PhaseDefine, sess.Phase())
}

func TestIsCommand(t *testing.T) {
	assert.True(t, isCommand("/sample", pipeline.PhaseUpload))
	assert.True(t, isCommand("/sql SELECT 1", pipeline.PhaseUpload))
	assert.False(t, isCommand("/home/me/kpi.csv", pipeline.PhaseUpload))
	assert.False(t, isCommand("kpi.csv", pipeline.PhaseUpload))
	assert.True(t, isCommand("/bogus", pipeline.PhaseDefine))
	assert.False(t, isCommand("The gap is 21%.", pipeline.PhaseDefine))
}

func TestRail(t *testing.T) {
	assert.Equal(t, "1 Define  2 Gather  3 Analyze  4 Decide  5 Communicate", rail(pipeline.PhaseUpload))
	assert.Equal(t, "✓ Define  [2 Gather]  3 Analyze  4 Decide  5 Communicate", rail(pipeline.PhaseGather))
}
