package briefing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zeto-space/exoclassify/internal/providers"
	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

func TestNewDisabledWithoutProvider(t *testing.T) {
	w, err := New(Config{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if w != nil {
		t.Error("Expected nil writer when no provider is configured")
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "watson"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestNewDefaultsModel(t *testing.T) {
	w, err := New(Config{Provider: "Ollama", OllamaURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if w.model != "llama3.2" {
		t.Errorf("Expected default model, got %q", w.model)
	}
}

func TestSingleSendsPromptAndSystem(t *testing.T) {
	var got providers.Config
	p := providers.Func(func(ctx context.Context, c providers.Config) (string, error) {
		got = c
		return "All hands, we found one.", nil
	})
	w := NewWithProvider(p, "m", 0.2, 0)

	rec, _ := schema.FromValues([schema.Size]float64{1, 100, 3.5, 1.2, 1, 288, 5778, 4.5, 1})
	text, err := w.Single(context.Background(), rec, verdict.Verdict{Category: verdict.Confirmed, Confidence: 91, Title: "Confirmed Exoplanet"})
	if err != nil {
		t.Fatalf("Single failed: %v", err)
	}
	if text != "All hands, we found one." {
		t.Errorf("Unexpected text %q", text)
	}
	if got.Model != "m" || got.Temperature != 0.2 || got.System == "" {
		t.Errorf("Unexpected config %+v", got)
	}
	for _, want := range []string{"Confirmed Exoplanet", "91.0%", "stellar_temp: 5778"} {
		if !strings.Contains(got.Prompt, want) {
			t.Errorf("Prompt missing %q:\n%s", want, got.Prompt)
		}
	}
}

func TestBatchPrompt(t *testing.T) {
	got := BatchPrompt(verdict.Summary{Total: 4, Confirmed: 1, Candidate: 2, FalsePositives: 1})
	if !strings.Contains(got, "4 signals") || !strings.Contains(got, "2 candidates (50.0%)") {
		t.Errorf("Unexpected prompt %q", got)
	}
}

func TestProviderErrorWrapped(t *testing.T) {
	boom := errors.New("boom")
	w := NewWithProvider(providers.Func(func(ctx context.Context, c providers.Config) (string, error) {
		return "", boom
	}), "m", 0, 0)

	_, err := w.Batch(context.Background(), verdict.Summary{})
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped provider error, got %v", err)
	}
}
