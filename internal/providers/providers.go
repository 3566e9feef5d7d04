package providers

import (
	"context"
)

// Config is one generation request to an LLM provider
type Config struct {
	Model       string
	Temperature float64
	// System is optional guidance sent ahead of the prompt
	System string
	Prompt string
}

// Provider defines the interface for an LLM provider
type Provider interface {
	Generate(ctx context.Context, config Config) (string, error)
}

// Func adapts a plain function to Provider
type Func func(ctx context.Context, config Config) (string, error)

// Generate calls f
func (f Func) Generate(ctx context.Context, config Config) (string, error) {
	return f(ctx, config)
}
