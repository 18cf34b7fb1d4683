package pipeline

import (
	"context"
	"fmt"
	"time"

	"greenprint/internal/artifact"
	"greenprint/internal/logging"
	"greenprint/internal/prompt"
	"greenprint/internal/session"
)

// StageError reports which stage exhausted its attempts and why.
type StageError struct {
	Stage    artifact.Stage
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ProgressFunc receives progress updates as the chain advances.
type ProgressFunc func(percent int, step string)

// stageProgress maps each stage to the percentage and step label reported
// when it starts.
var stageProgress = map[artifact.Stage]struct {
	percent int
	step    string
}{
	artifact.StageScenario:       {10, "Generating business scenario"},
	artifact.StageProblems:       {35, "Deriving problematic marketing messages"},
	artifact.StageCorrections:    {60, "Correcting problematic messages"},
	artifact.StageImplementation: {80, "Planning implementation roadmap"},
}

// Controller drives a session through the stage chain in order. A stage
// only runs once its dependency's artifact is valid in the store; a stage
// that exhausts its retry budget fails the whole session and later stages
// never execute.
type Controller struct {
	executor       *Executor
	store          *artifact.Store
	maxRetries     int
	stageTimeout   time.Duration
	sessionTimeout time.Duration
}

// NewController creates a controller. maxRetries is the number of
// regeneration attempts after the first try; stageTimeout bounds each
// attempt and sessionTimeout bounds the whole chain.
func NewController(executor *Executor, store *artifact.Store, maxRetries int, stageTimeout, sessionTimeout time.Duration) *Controller {
	return &Controller{
		executor:       executor,
		store:          store,
		maxRetries:     maxRetries,
		stageTimeout:   stageTimeout,
		sessionTimeout: sessionTimeout,
	}
}

// Run executes all four stages for the session. On success every stage has
// a valid artifact in the store. The returned error is a *StageError when a
// stage exhausted its attempts.
func (c *Controller) Run(ctx context.Context, sess *session.Session, progress ProgressFunc) error {
	if progress == nil {
		progress = func(int, string) {}
	}

	ctx, cancel := context.WithTimeout(ctx, c.sessionTimeout)
	defer cancel()

	logging.Pipeline("Pipeline starting: session=%s industry=%s framework=%s",
		sess.ID, sess.IndustryFocus, sess.RegulatoryFramework)

	upstream := make(map[artifact.Stage]*artifact.Artifact, len(artifact.Stages()))
	for _, stage := range artifact.Stages() {
		p := stageProgress[stage]
		progress(p.percent, p.step)

		a, err := c.runStage(ctx, stage, sess, upstream)
		if err != nil {
			logging.Pipeline("Pipeline failed: session=%s stage=%s: %v", sess.ID, stage, err)
			return err
		}
		upstream[stage] = a
	}

	logging.Pipeline("Pipeline completed: session=%s", sess.ID)
	return nil
}

// runStage attempts a stage until it yields a valid artifact or the retry
// budget is spent. The artifact is persisted before returning, so the next
// stage always reads validated state.
func (c *Controller) runStage(ctx context.Context, stage artifact.Stage, sess *session.Session, upstream map[artifact.Stage]*artifact.Artifact) (*artifact.Artifact, error) {
	inputs := prompt.Inputs{Session: sess, Upstream: upstream}

	var prior *artifact.ValidationResult
	var lastErr error
	attempts := 0
	for attempts <= c.maxRetries {
		attempts++

		fields, err := c.executeOnce(ctx, stage, inputs, prior)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &StageError{Stage: stage, Attempts: attempts, Err: ctx.Err()}
			}
			logging.Pipeline("Stage %s attempt %d failed: session=%s: %v", stage, attempts, sess.ID, err)
			lastErr = err
			prior = nil
			continue
		}

		result := artifact.Validate(stage, fields)
		if result.OK && stage == artifact.StageCorrections {
			// Corrections must cover the problem ids one-to-one before
			// they are allowed to persist.
			candidate := &artifact.Artifact{SessionID: sess.ID, Stage: stage, Fields: fields}
			if err := artifact.MatchCorrections(upstream[artifact.StageProblems], candidate); err != nil {
				result = artifact.ValidationResult{Errors: []string{err.Error()}}
			}
		}
		if !result.OK {
			logging.Pipeline("Stage %s attempt %d invalid: session=%s: %s", stage, attempts, sess.ID, result.Summary())
			prior = &result
			continue
		}

		a := &artifact.Artifact{
			SessionID: sess.ID,
			Stage:     stage,
			Fields:    fields,
			Valid:     true,
			CreatedAt: time.Now().UTC(),
		}
		if err := c.store.Put(a); err != nil {
			return nil, &StageError{Stage: stage, Attempts: attempts, Err: err}
		}
		logging.Pipeline("Stage %s valid: session=%s attempts=%d", stage, sess.ID, attempts)
		return a, nil
	}

	// Prefer the last validation summary; fall back to the last concrete
	// generation error so the recorded reason stays specific.
	var reason error
	switch {
	case prior != nil:
		reason = fmt.Errorf("%s", prior.Summary())
	case lastErr != nil:
		reason = lastErr
	default:
		reason = fmt.Errorf("generation did not produce a valid artifact")
	}
	return nil, &StageError{Stage: stage, Attempts: attempts, Err: reason}
}

func (c *Controller) executeOnce(ctx context.Context, stage artifact.Stage, inputs prompt.Inputs, prior *artifact.ValidationResult) (map[string]any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.stageTimeout)
	defer cancel()
	return c.executor.Execute(attemptCtx, stage, inputs, prior)
}
