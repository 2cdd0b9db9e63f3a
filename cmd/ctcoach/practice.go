package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HendryAvila/ctcoach/internal/coaching"
	"github.com/HendryAvila/ctcoach/internal/dataset"
	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/session"
	"github.com/HendryAvila/ctcoach/internal/templates"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newPracticeCmd() *cobra.Command {
	var (
		file   string
		sample bool
	)
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Run a critical-thinking exercise in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPractice(cmd.Context(), file, sample)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "dashboard to load (.xlsx or .csv)")
	cmd.Flags().BoolVar(&sample, "sample", false, "use the built-in sample dashboard")
	return cmd
}

func runPractice(parent context.Context, file string, sample bool) error {
	// Console logging would interleave with the exercise; the log file
	// still records everything.
	cfg, log, closeLog, err := setup(false)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	renderer, err := templates.NewRenderer()
	if err != nil {
		return fmt.Errorf("creating template renderer: %w", err)
	}
	gen, err := coaching.New(ctx, coaching.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.Timeout,
	}, renderer, log)
	if err != nil {
		return fmt.Errorf("creating coaching generator: %w", err)
	}
	sess, err := session.New(session.Options{
		Loader:              dataset.NewLoader(),
		Generator:           gen,
		Logger:              log,
		RetryFailedFeedback: cfg.Session.RetryFailedFeedback,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}

	p := &practice{
		sess:     sess,
		renderer: renderer,
		in:       os.Stdin,
		out:      os.Stdout,
		markdown: func(s string) string {
			if r, err := md.Render(s); err == nil {
				return r
			}
			return s
		},
	}
	if !cfg.HasAPIKey() {
		p.warnf("No Gemini API key configured; feedback will show placeholders. Set %s to enable the coach.", "GEMINI_API_KEY")
	}

	var initial *dataset.Source
	switch {
	case sample:
		initial = &dataset.Source{Sample: true}
	case file != "":
		initial = &dataset.Source{Path: file}
	}
	return p.run(ctx, initial)
}

// ─── REPL ───────────────────────────────────────────────────────────────────

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	improveStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	neutralStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

const practiceHelp = `Type your answer and press Enter. In Gather, each line is one observation.
  /next          submit the phase (first for feedback, then to move on)
  /status        show your answers and feedback so far
  /hint          show what the current phase asks for
  /rm N          remove observation N
  /sql QUERY     run a read-only query against the dashboard
  /export PATH   save the dashboard as .xlsx
  /summary PATH  save the final review as Markdown
  /reset         start over
  /quit          leave`

// practice is the terminal front end for one session.
type practice struct {
	sess     *session.Session
	renderer templates.Renderer
	in       io.Reader
	out      io.Writer
	markdown func(string) string

	lines *bufio.Scanner
}

func (p *practice) run(ctx context.Context, initial *dataset.Source) error {
	p.lines = bufio.NewScanner(p.in)
	p.lines.Buffer(make([]byte, 0, 64*1024), 1<<20)

	fmt.Fprintln(p.out, titleStyle.Render("Critical Thinking Coach"))
	fmt.Fprintln(p.out, dimStyle.Render(practiceHelp))

	if initial != nil {
		p.load(ctx, *initial)
	}
	p.showGuide()

	for {
		fmt.Fprintf(p.out, "\n%s> ", p.sess.Phase().Title())
		line, ok := p.readLine()
		if !ok {
			return p.lines.Err()
		}
		if line == "" {
			continue
		}
		if isCommand(line, p.sess.Phase()) {
			if quit := p.command(ctx, line); quit {
				return nil
			}
			continue
		}
		p.answer(ctx, line)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (p *practice) readLine() (string, bool) {
	if !p.lines.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.lines.Text()), true
}

var commandNames = map[string]bool{
	"/quit": true, "/exit": true, "/q": true, "/help": true, "/hint": true,
	"/status": true, "/next": true, "/rm": true, "/sql": true, "/export": true,
	"/summary": true, "/sample": true, "/reset": true,
}

// isCommand reports whether line is a slash command. While waiting for a
// dataset, anything that is not a known command is a file path, so absolute
// paths load instead of being rejected.
func isCommand(line string, phase pipeline.Phase) bool {
	if !strings.HasPrefix(line, "/") {
		return false
	}
	if phase != pipeline.PhaseUpload {
		return true
	}
	name, _, _ := strings.Cut(line, " ")
	return commandNames[name]
}

// command runs a slash command and reports whether the user quit.
func (p *practice) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		fmt.Fprintln(p.out, practiceHelp)
	case "/hint":
		p.showGuide()
	case "/status":
		p.showStatus()
	case "/next":
		p.next(ctx)
	case "/rm":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			p.warnf("Usage: /rm N (N starts at 1)")
			return false
		}
		if _, err := p.sess.RemoveObservation(n - 1); err != nil {
			p.warnf("%v", err)
			return false
		}
		p.showObservations()
	case "/sql":
		p.query(ctx, arg)
	case "/export":
		p.export(arg)
	case "/summary":
		p.saveSummary(arg)
	case "/sample":
		p.load(ctx, dataset.Source{Sample: true})
		p.showGuide()
	case "/reset":
		p.reset()
	default:
		p.warnf("Unknown command %s. Type /help.", name)
	}
	return false
}

// answer routes free text to whatever the current phase collects.
func (p *practice) answer(ctx context.Context, text string) {
	phase := p.sess.Phase()
	switch phase {
	case pipeline.PhaseUpload:
		p.load(ctx, dataset.Source{Path: text})
		p.showGuide()
		return
	case pipeline.PhaseGather:
		added, snap, err := p.sess.AddObservation(text)
		if err != nil {
			p.warnf("%v", err)
			return
		}
		if !added {
			p.warnf("You already have %d observations. Remove one with /rm N first.", pipeline.MaxObservations)
			return
		}
		fmt.Fprintln(p.out, dimStyle.Render(fmt.Sprintf("Observation %d/%d saved.", len(snap.Inputs.Observations), pipeline.MaxObservations)))
		p.showReadiness(snap)
		return
	}

	field, ok := pipeline.FieldForPhase(phase)
	if !ok {
		p.warnf("Nothing to type here. Use /next to continue or /reset to start over.")
		return
	}
	snap, err := p.sess.SetField(field, text)
	if err != nil {
		p.warnf("%v", err)
		return
	}
	fmt.Fprintln(p.out, dimStyle.Render("Answer saved."))
	p.showReadiness(snap)
}

func (p *practice) load(ctx context.Context, src dataset.Source) {
	fmt.Fprintln(p.out, dimStyle.Render("Analyzing dashboard..."))
	snap, err := p.sess.LoadDataset(ctx, src)
	if err != nil {
		p.warnf("Could not load the dashboard: %v", err)
		return
	}
	fmt.Fprintln(p.out, titleStyle.Render("Loaded "+snap.DatasetName))
	fmt.Fprint(p.out, p.markdown(snap.DashboardContext))
}

func (p *practice) next(ctx context.Context) {
	res, rec, err := p.sess.AdvanceAndWait(ctx)
	if err != nil {
		p.warnf("%v", err)
		return
	}
	switch res.Outcome {
	case session.OutcomeIgnored, session.OutcomeNotReady:
		p.warnf("%s", res.Hint)
	case session.OutcomeFeedbackRequested, session.OutcomeFeedbackPending:
		p.showFeedback(res.From, rec)
		fmt.Fprintln(p.out, dimStyle.Render("Revise your answer, or type /next to continue."))
	case session.OutcomeAdvanced:
		p.showGuide()
	case session.OutcomeCompleted:
		p.showSummary()
	}
}

func (p *practice) reset() {
	phase := p.sess.Phase()
	confirmed := !pipeline.IsGated(phase)
	if !confirmed {
		fmt.Fprint(p.out, warnStyle.Render("This discards all your progress. Reset? [y/N] "))
		line, ok := p.readLine()
		confirmed = ok && strings.EqualFold(line, "y")
	}
	if !confirmed {
		fmt.Fprintln(p.out, dimStyle.Render("Reset canceled."))
		return
	}

	var err error
	if phase == pipeline.PhaseSummary {
		_, err = p.sess.ResetFromSummary()
	} else {
		_, err = p.sess.Reset(true)
	}
	if err != nil {
		p.warnf("%v", err)
		return
	}
	fmt.Fprintln(p.out, titleStyle.Render("Session reset."))
	fmt.Fprintln(p.out, dimStyle.Render("Type a dashboard path, or /sample for the practice scenario."))
}

func (p *practice) query(ctx context.Context, q string) {
	if q == "" {
		p.showTables()
		return
	}
	res, err := p.sess.Query(ctx, q, 0)
	if err != nil {
		p.warnf("%v", err)
		return
	}
	var b strings.Builder
	b.WriteString("| " + strings.Join(res.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(res.Columns)) + "\n")
	for _, row := range res.Rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	if res.Truncated {
		fmt.Fprintf(&b, "\n_Showing the first %d rows._\n", len(res.Rows))
	}
	fmt.Fprint(p.out, p.markdown(b.String()))
}

func (p *practice) export(path string) {
	ds, err := p.sess.Dataset()
	if err != nil {
		p.warnf("%v", err)
		return
	}
	data, name, err := dataset.Export(ds)
	if err != nil {
		p.warnf("%v", err)
		return
	}
	if path == "" {
		path = name
	} else if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
		path = filepath.Join(path, name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		p.warnf("%v", err)
		return
	}
	fmt.Fprintln(p.out, dimStyle.Render("Saved "+path))
}

func (p *practice) saveSummary(path string) {
	report, err := p.sess.Summary()
	if err != nil {
		p.warnf("%v", err)
		return
	}
	md, err := report.Markdown(p.renderer)
	if err != nil {
		p.warnf("%v", err)
		return
	}
	if path == "" {
		fmt.Fprint(p.out, p.markdown(md))
		return
	}
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		p.warnf("%v", err)
		return
	}
	fmt.Fprintln(p.out, dimStyle.Render("Saved "+path))
}

// ─── Rendering ──────────────────────────────────────────────────────────────

func (p *practice) showGuide() {
	phase := p.sess.Phase()
	g := pipeline.GuideFor(phase)
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, titleStyle.Render(rail(phase)))
	fmt.Fprintln(p.out, g.Instruction)
	switch {
	case len(g.Examples) > 0:
		for _, ex := range g.Examples {
			fmt.Fprintln(p.out, dimStyle.Render("  e.g. "+ex))
		}
	case g.Placeholder != "":
		fmt.Fprintln(p.out, dimStyle.Render(g.Placeholder))
	}
	if phase == pipeline.PhaseCommunicate {
		fmt.Fprintln(p.out, dimStyle.Render("Type /next to request your final evaluation."))
	}
}

func (p *practice) showStatus() {
	snap := p.sess.Snapshot()
	fmt.Fprintln(p.out, titleStyle.Render(rail(snap.Phase)))
	if snap.DatasetName != "" {
		fmt.Fprintln(p.out, "Dataset: "+snap.DatasetName)
	}
	in := snap.Inputs
	fmt.Fprintf(p.out, "Define:  %s\n", orDash(in.GapAnalysis))
	fmt.Fprintf(p.out, "Gather:  %d/%d observations\n", len(in.Observations), pipeline.MaxObservations)
	fmt.Fprintf(p.out, "Analyze: %s\n", orDash(in.SupportingIndications))
	fmt.Fprintf(p.out, "Decide:  %s\n", orDash(in.ActionPlan))
	for _, ph := range pipeline.GatedPhases {
		if rec, ok := snap.FeedbackFor(ph); ok && rec.HasContent && ph != pipeline.PhaseCommunicate {
			fmt.Fprintf(p.out, "%s feedback: %s\n", ph.Title(), badge(rec.Parsed().Status))
		}
	}
	p.showReadiness(snap)
}

func (p *practice) showObservations() {
	obs := p.sess.Snapshot().Inputs.Observations
	for i, o := range obs {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, o)
	}
	fmt.Fprintln(p.out, dimStyle.Render(fmt.Sprintf("%d/%d observations", len(obs), pipeline.MaxObservations)))
}

func (p *practice) showTables() {
	tables, err := p.sess.Tables()
	if err != nil {
		p.warnf("%v", err)
		return
	}
	for _, t := range tables {
		fmt.Fprintf(p.out, "%s (%d rows): %s\n", t.Name, t.Rows, strings.Join(t.Columns, ", "))
	}
}

func (p *practice) showReadiness(snap session.Snapshot) {
	if snap.Ready {
		fmt.Fprintln(p.out, passStyle.Render("Ready. Type /next to get feedback."))
		return
	}
	if snap.Hint != "" {
		fmt.Fprintln(p.out, dimStyle.Render(snap.Hint))
	}
}

func (p *practice) showFeedback(phase pipeline.Phase, rec pipeline.FeedbackRecord) {
	if phase == pipeline.PhaseCommunicate {
		fmt.Fprintln(p.out, titleStyle.Render("Final Evaluation"))
		fmt.Fprint(p.out, p.markdown(rec.Content))
		return
	}
	parsed := rec.Parsed()
	fmt.Fprintln(p.out, badge(parsed.Status))
	fmt.Fprint(p.out, p.markdown(parsed.Text))
}

func (p *practice) showSummary() {
	fmt.Fprintln(p.out, titleStyle.Render(rail(pipeline.PhaseSummary)))
	p.saveSummary("")
	fmt.Fprintln(p.out, dimStyle.Render("Use /summary PATH to save this review, or /reset to practice again."))
}

func (p *practice) warnf(format string, args ...any) {
	fmt.Fprintln(p.out, warnStyle.Render(fmt.Sprintf(format, args...)))
}

func badge(s pipeline.Status) string {
	switch s {
	case pipeline.StatusPass:
		return passStyle.Render("✔ " + s.Label())
	case pipeline.StatusImprove:
		return improveStyle.Render("✎ " + s.Label())
	}
	return neutralStyle.Render(s.Label())
}

func rail(current pipeline.Phase) string {
	parts := make([]string, 0, len(pipeline.GatedPhases))
	for i, ph := range pipeline.GatedPhases {
		label := fmt.Sprintf("%d %s", i+1, ph.Title())
		switch {
		case ph == current:
			label = "[" + label + "]"
		case pipeline.Before(ph, current):
			label = "✓ " + ph.Title()
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "  ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

