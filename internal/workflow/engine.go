// Package workflow is a small in-process step-execution engine: an
// ordered list of named steps runs exactly once per run ID, each step's
// JSON output is checkpointed before the next step starts, and a resumed
// run skips every step that already has a checkpoint.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"feedbackd/internal/metrics"

	"github.com/cenkalti/backoff/v4"
)

// Step is one stage of a run. Do receives the accumulated outputs of
// prior steps and returns this step's output, which must be JSON so it
// can be checkpointed and replayed.
type Step struct {
	Name string
	// MaxAttempts bounds retries for transient failures; 1 means a
	// single attempt. Permanent errors stop retrying regardless.
	MaxAttempts int
	Do          func(ctx context.Context, run *Run) (interface{}, error)
}

// Run carries the step outputs accumulated so far, keyed by step name.
type Run struct {
	ID      string
	Outputs map[string]json.RawMessage
}

// Output decodes a prior step's checkpointed output into v.
func (r *Run) Output(step string, v interface{}) error {
	raw, ok := r.Outputs[step]
	if !ok {
		return fmt.Errorf("no output recorded for step %s", step)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode output of step %s: %w", step, err)
	}
	return nil
}

// Permanent marks err as non-retryable: the engine fails the run
// immediately instead of backing off.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// CheckpointStore persists step outputs between steps so a crashed run
// can resume without redoing completed work.
type CheckpointStore interface {
	Save(ctx context.Context, runID, step string, output json.RawMessage) error
	Load(ctx context.Context, runID string) (map[string]json.RawMessage, error)
}

type Engine struct {
	checkpoints     CheckpointStore
	initialInterval time.Duration
	maxInterval     time.Duration
}

func NewEngine(checkpoints CheckpointStore) *Engine {
	return &Engine{
		checkpoints:     checkpoints,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     30 * time.Second,
	}
}

// SetRetryIntervals adjusts the backoff timing between step attempts,
// mainly so tests do not sleep.
func (e *Engine) SetRetryIntervals(initial, max time.Duration) {
	if initial > 0 {
		e.initialInterval = initial
	}
	if max > 0 {
		e.maxInterval = max
	}
}

// Execute runs the steps in order for the given run ID, resuming from
// checkpoints when present. It returns the error of the first step that
// exhausts its attempts or fails permanently.
func (e *Engine) Execute(ctx context.Context, runID string, steps []Step) error {
	outputs, err := e.checkpoints.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoints for run %s: %w", runID, err)
	}
	if outputs == nil {
		outputs = make(map[string]json.RawMessage)
	}

	run := &Run{ID: runID, Outputs: outputs}

	for _, step := range steps {
		if _, done := run.Outputs[step.Name]; done {
			slog.Debug("Skipping checkpointed step",
				slog.String("run_id", runID),
				slog.String("step", step.Name))
			continue
		}

		output, err := e.executeStep(ctx, run, step)
		if err != nil {
			return fmt.Errorf("step %s: %w", step.Name, err)
		}

		raw, err := json.Marshal(output)
		if err != nil {
			return fmt.Errorf("step %s: failed to encode output: %w", step.Name, err)
		}

		if err := e.checkpoints.Save(ctx, runID, step.Name, raw); err != nil {
			return fmt.Errorf("step %s: failed to save checkpoint: %w", step.Name, err)
		}
		run.Outputs[step.Name] = raw
	}

	return nil
}

func (e *Engine) executeStep(ctx context.Context, run *Run, step Step) (interface{}, error) {
	maxAttempts := step.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialInterval
	b.MaxInterval = e.maxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx)

	var output interface{}
	attempt := 0

	operation := func() error {
		attempt++
		start := time.Now()

		result, err := step.Do(ctx, run)
		metrics.PipelineStageDuration.WithLabelValues(step.Name).Observe(time.Since(start).Seconds())

		if err != nil {
			if attempt > 1 {
				metrics.PipelineStageRetries.WithLabelValues(step.Name).Inc()
			}
			slog.Warn("Workflow step failed",
				slog.String("run_id", run.ID),
				slog.String("step", step.Name),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return err
		}

		output = result
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	return output, nil
}
