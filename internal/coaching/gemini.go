package coaching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/templates"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	// DefaultModel matches the model the coaching prompts were tuned on.
	DefaultModel = "gemini-2.5-flash"
	// MaxContextChars caps the CSV sent for dashboard analysis.
	MaxContextChars = 50000
)

// Config configures the Gemini backend.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration // per call; zero means no deadline beyond ctx
}

// contentGenerator is the slice of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is a Generator backed by the Google GenAI API.
type Gemini struct {
	models   contentGenerator
	model    string
	timeout  time.Duration
	renderer templates.Renderer
	log      *zap.Logger
}

// New returns a Gemini generator, or Unavailable when no API key is set.
func New(ctx context.Context, cfg Config, renderer templates.Renderer, log *zap.Logger) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn("no Gemini API key configured; coaching feedback will be unavailable")
		return Unavailable{Reason: "missing API key (set GEMINI_API_KEY)"}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}
	return newGemini(client.Models, cfg, renderer, log), nil
}

func newGemini(models contentGenerator, cfg Config, renderer templates.Renderer, log *zap.Logger) *Gemini {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		models:   models,
		model:    model,
		timeout:  cfg.Timeout,
		renderer: renderer,
		log:      log.Named("gemini"),
	}
}

// AnalyzeContext asks for the internal dashboard analysis.
func (g *Gemini) AnalyzeContext(ctx context.Context, delimitedText string) (string, error) {
	csv, truncated := truncateRunes(delimitedText, MaxContextChars)
	prompt, err := g.renderer.Render(templates.AnalyzeContext, templates.AnalyzeContextData{
		CSV:       csv,
		Truncated: truncated,
	})
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "analyze_context", prompt)
}

// StageFeedback asks for Socratic coaching on one phase.
func (g *Gemini) StageFeedback(ctx context.Context, req FeedbackRequest) (string, error) {
	previous, err := json.Marshal(req.Inputs)
	if err != nil {
		return "", fmt.Errorf("encoding previous answers: %w", err)
	}
	prompt, err := g.renderer.Render(templates.StageFeedback, templates.StageFeedbackData{
		PhaseName:        strings.ToUpper(string(req.Phase)),
		UserInput:        req.PhaseInput,
		DashboardContext: req.DashboardContext,
		PreviousAnswers:  string(previous),
		MarkerPass:       pipeline.MarkerPass,
		MarkerImprove:    pipeline.MarkerImprove,
	})
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "stage_feedback", prompt)
}

// FinalSummary asks for the closing evaluation.
func (g *Gemini) FinalSummary(ctx context.Context, inputs pipeline.Inputs, dashboardContext string) (string, error) {
	prompt, err := g.renderer.Render(templates.FinalSummary, templates.FinalSummaryData{
		DashboardContext:      dashboardContext,
		GapAnalysis:           inputs.GapAnalysis,
		Observations:          inputs.Observations,
		SupportingIndications: inputs.SupportingIndications,
		ActionPlan:            inputs.ActionPlan,
	})
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "final_summary", prompt)
}

// generate sends one prompt. An empty response is returned as "" with no
// error; callers pick their own fallback text.
func (g *Gemini) generate(ctx context.Context, op, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		g.log.Warn("generate failed", zap.String("op", op), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", fmt.Errorf("%w: %s: %v", ErrGeneratorUnavailable, op, err)
	}
	g.log.Debug("generate ok", zap.String("op", op), zap.Duration("elapsed", time.Since(start)))
	if resp == nil {
		return "", nil
	}
	return resp.Text(), nil
}

// truncateRunes cuts s to at most limit characters.
func truncateRunes(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	r := []rune(s)
	return string(r[:limit]), true
}
