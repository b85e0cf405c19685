// Package pipeline drives jobs through their ordered stages, translating
// executor outcomes into job state transitions.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prismrag/ragjobs/pkg/core"
	"github.com/prismrag/ragjobs/pkg/security"
	"github.com/prismrag/ragjobs/pkg/stage"
)

// PublishFunc receives a fresh snapshot after every observable mutation.
type PublishFunc func(core.Snapshot)

// Pipeline owns the stage list per job kind and runs jobs to a terminal
// state. One Run call per job; each call is an independent unit of
// concurrent work and faults never cross job boundaries.
type Pipeline struct {
	stages       stage.Config
	stageRetries int
	logger       *slog.Logger
}

// New creates a Pipeline with the given stage configuration.
func New(cfg stage.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages:       cfg,
		stageRetries: 1,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(p)
	}
	return p
}

// Run drives job through its stages until a terminal status, publishing a
// snapshot after every mutation. The caller is the single writer for the
// job: no other goroutine may mutate it while Run executes.
func (p *Pipeline) Run(ctx context.Context, job *core.Job, publish PublishFunc) {
	if job.Status != core.StatusQueued {
		return
	}

	// Cancellation requested while still queued wins before any stage runs.
	if ctx.Err() != nil {
		p.finish(job, core.StatusCancelled, nil, publish)
		return
	}

	stages := stage.ForKind(job.Kind, p.stages)
	if len(stages) == 0 {
		p.finish(job, core.StatusFailed, &core.Failure{
			Message: fmt.Sprintf("no stages for kind %q", job.Kind),
		}, publish)
		return
	}

	job.Status = core.StatusRunning
	job.Stage = stages[0].Name()
	job.Progress = 0
	job.Touch()
	publish(job.Snapshot())

	for i, ex := range stages {
		if i > 0 {
			// Stage boundary: progress resets with the new stage name so
			// observers can tell a reset from a regression.
			job.Stage = ex.Name()
			job.Progress = 0
			job.Touch()
			publish(job.Snapshot())
		}

		err := p.runStage(ctx, ex, job, publish)
		switch {
		case err == nil:
			if job.Progress < 1.0 {
				job.Progress = 1.0
				job.Touch()
				publish(job.Snapshot())
			}
		case core.IsCancellation(err):
			p.finish(job, core.StatusCancelled, nil, publish)
			return
		default:
			p.logger.Warn("stage failed",
				"job_id", job.ID, "stage", ex.Name(), "error", err)
			p.finish(job, core.StatusFailed, &core.Failure{
				Message:   security.SanitizeErrorMessage(err.Error()),
				Retryable: core.IsRetryable(err),
			}, publish)
			return
		}
	}

	p.finish(job, core.StatusCompleted, nil, publish)
}

// runStage executes one stage, retrying transient failures up to the
// configured bound. Partial result already reported is preserved across a
// retry, and published progress never moves backwards within the stage.
func (p *Pipeline) runStage(ctx context.Context, ex stage.Executor, job *core.Job, publish PublishFunc) error {
	report := func(frac float64, delta core.Delta) {
		if frac > 1.0 {
			frac = 1.0
		}
		// Clamp so a stage retry restarting from zero cannot publish a
		// decrease.
		if frac < job.Progress {
			frac = job.Progress
		}
		job.Progress = frac
		job.Result.Apply(delta)
		job.Touch()
		publish(job.Snapshot())
	}

	var err error
	for attempt := 0; attempt <= p.stageRetries; attempt++ {
		err = p.execute(ctx, ex, job.Snapshot(), report)
		if err == nil || core.IsCancellation(err) || !core.IsRetryable(err) {
			return err
		}
		if attempt < p.stageRetries {
			p.logger.Info("retrying stage after transient failure",
				"job_id", job.ID, "stage", ex.Name(), "attempt", attempt+1, "error", err)
		}
	}
	return err
}

// execute wraps a single executor run so an unexpected panic is converted
// into a failure for this job only.
func (p *Pipeline) execute(ctx context.Context, ex stage.Executor, snap core.Snapshot, report stage.Reporter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in stage %s: %v", ex.Name(), r)
		}
	}()
	return ex.Run(ctx, snap, report)
}

func (p *Pipeline) finish(job *core.Job, status core.JobStatus, failure *core.Failure, publish PublishFunc) {
	job.Status = status
	job.Stage = ""
	job.Failure = failure
	job.Touch()
	publish(job.Snapshot())
}
