// Package llm provides the generation capability consumed by the pipeline.
// The pipeline depends only on the Client interface; provider clients are
// interchangeable and test doubles implement the same contract.
package llm

import (
	"context"
	"fmt"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GenerationError reports a failed, timed-out, or empty generation call.
// The pipeline never retries inside the provider; retry policy belongs to
// the controller.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (provider=%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError wraps err as a GenerationError for the given provider.
func NewGenerationError(provider string, err error) *GenerationError {
	return &GenerationError{Provider: provider, Err: err}
}
