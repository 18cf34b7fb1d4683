// Package pipeline runs the four-stage generation chain for a session:
// scenario, problems, corrections, implementation. Each stage's output is
// validated and persisted before the next stage may start.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"greenprint/internal/artifact"
	"greenprint/internal/llm"
	"greenprint/internal/logging"
	"greenprint/internal/prompt"
)

// Executor performs a single generation attempt for one stage: render the
// prompt, call the model, parse the JSON object out of the reply. It never
// retries; the Controller owns the retry policy.
type Executor struct {
	client  llm.Client
	prompts *prompt.Builder
}

// NewExecutor creates an executor over the given model client and prompt set.
func NewExecutor(client llm.Client, prompts *prompt.Builder) *Executor {
	return &Executor{client: client, prompts: prompts}
}

// Execute runs one attempt of a stage. When prior is non-nil it carries the
// previous attempt's validation failure, which is fed back into the prompt
// so the model can repair the specific omissions.
func (e *Executor) Execute(ctx context.Context, stage artifact.Stage, inputs prompt.Inputs, prior *artifact.ValidationResult) (map[string]any, error) {
	var p string
	var err error
	if prior != nil {
		p, err = e.prompts.BuildRetry(stage, inputs, *prior)
	} else {
		p, err = e.prompts.Build(stage, inputs)
	}
	if err != nil {
		return nil, err
	}

	timer := logging.StartTimer(logging.CategoryPipeline, fmt.Sprintf("execute_%s", stage))
	raw, err := e.client.CompleteWithSystem(ctx, prompt.SystemInstruction(), p)
	timer.StopWithThreshold(60 * time.Second)
	if err != nil {
		return nil, fmt.Errorf("stage %s generation failed: %w", stage, err)
	}

	fields, err := artifact.ExtractJSON(raw)
	if err != nil {
		logging.PipelineDebug("Stage %s produced unparsable output (%d bytes): %v", stage, len(raw), err)
		return nil, fmt.Errorf("stage %s output invalid: %w", stage, err)
	}
	return fields, nil
}
