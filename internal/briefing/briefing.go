// Package briefing asks an LLM provider for a short mission briefing on a result.
package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zeto-space/exoclassify/internal/gemini"
	"github.com/zeto-space/exoclassify/internal/ollama"
	"github.com/zeto-space/exoclassify/internal/openai"
	"github.com/zeto-space/exoclassify/internal/providers"
	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

const system = "You are Zeto, a mission AI aboard a deep space observatory. " +
	"Write a briefing of at most three sentences for the commander. " +
	"Do not invent measurements that are not in the data."

// Config selects and tunes the narrator.
type Config struct {
	// Provider is one of ollama, openai or gemini. Empty disables briefings.
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"-"`
	OllamaURL   string        `yaml:"ollamaUrl"`
	OpenAIURL   string        `yaml:"openaiUrl"`
	OpenAIKey   string        `yaml:"-"`
	GeminiKey   string        `yaml:"-"`
}

var defaultModels = map[string]string{
	"ollama": "llama3.2",
	"openai": "gpt-4o-mini",
	"gemini": "gemini-1.5-flash",
}

// NewProvider builds the provider named in cfg.
func NewProvider(cfg Config) (providers.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		return ollama.New(cfg.OllamaURL), nil
	case "openai":
		return openai.New(cfg.OpenAIKey, cfg.OpenAIURL), nil
	case "gemini":
		return gemini.New(cfg.GeminiKey), nil
	default:
		return nil, fmt.Errorf("unknown briefing provider: %s", cfg.Provider)
	}
}

// Writer turns results into briefings.
type Writer struct {
	provider    providers.Provider
	model       string
	temperature float64
	timeout     time.Duration
}

// New returns a Writer for cfg, or nil when no provider is configured.
func New(cfg Config) (*Writer, error) {
	if cfg.Provider == "" {
		return nil, nil
	}
	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultModels[strings.ToLower(cfg.Provider)]
	}
	return NewWithProvider(p, model, cfg.Temperature, cfg.Timeout), nil
}

// NewWithProvider wraps an existing provider.
func NewWithProvider(p providers.Provider, model string, temperature float64, timeout time.Duration) *Writer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Writer{provider: p, model: model, temperature: temperature, timeout: timeout}
}

// Single briefs one interactive analysis.
func (w *Writer) Single(ctx context.Context, rec schema.Record, v verdict.Verdict) (string, error) {
	return w.generate(ctx, SinglePrompt(rec, v))
}

// Batch briefs a bulk analysis.
func (w *Writer) Batch(ctx context.Context, s verdict.Summary) (string, error) {
	return w.generate(ctx, BatchPrompt(s))
}

func (w *Writer) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	text, err := w.provider.Generate(ctx, providers.Config{
		Model:       w.model,
		Temperature: w.temperature,
		System:      system,
		Prompt:      prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate briefing: %w", err)
	}
	slog.Debug("Briefing generated", "model", w.model, "chars", len(text), "duration", time.Since(start))
	return text, nil
}

// SinglePrompt describes one verdict and its parameters.
func SinglePrompt(rec schema.Record, v verdict.Verdict) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Classification: %s (%s) with %.1f%% confidence.\n", v.Title, v.Category, v.Confidence)
	sb.WriteString("Observed parameters:\n")
	values := rec.Values()
	for i, e := range schema.Entries() {
		fmt.Fprintf(&sb, "- %s: %s\n", e.ID, schema.FormatValue(values[i]))
	}
	sb.WriteString("Brief the commander on what this means and what to observe next.")
	return sb.String()
}

// BatchPrompt describes the category counts of a batch.
func BatchPrompt(s verdict.Summary) string {
	return fmt.Sprintf(
		"A survey batch of %d signals was classified: %d confirmed exoplanets (%.1f%%), %d candidates (%.1f%%), %d false positives (%.1f%%). "+
			"Brief the commander on the survey outcome and which signals deserve follow-up.",
		s.Total,
		s.Confirmed, s.Percent(s.Confirmed),
		s.Candidate, s.Percent(s.Candidate),
		s.FalsePositives, s.Percent(s.FalsePositives),
	)
}
