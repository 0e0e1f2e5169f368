package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/sitemirror/internal/model"
)

// Job is the unit of work of a Pipeline: one seed and its output root.
type Job struct {
	// Seed is the seed URL. PrepareStep replaces it with its normalized form.
	Seed string

	// OutputDir is the root of the mirrored tree.
	OutputDir string

	// Report is set by MirrorStep, or by the pipeline when an earlier step
	// fails so that every job ends with a report.
	Report *model.MirrorReport

	// PerformedSteps lists the names of the steps that completed.
	PerformedSteps []string
}

// ensureReport returns the job's report, creating an empty one if needed.
func (j *Job) ensureReport() *model.MirrorReport {
	if j.Report == nil {
		j.Report = model.NewMirrorReport(j.Seed, "", j.OutputDir, 0)
	}
	return j.Report
}

// Step defines the interface that all pipeline steps must implement.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
type Step interface {
	// Do executes the step. Resource-level failures are recorded in the
	// job's report; only failures that make the job pointless are returned.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given steps and options.
func New(steps []Step, opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: append([]Step(nil), steps...),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Execute runs all steps in sequence.
//
// Cancellation is checked before each step; a job cancelled before its
// mirror step ends with an empty, interrupted report. A failing step sets
// the report's Error and stops the job: every step depends on the one
// before it.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"seed", job.Seed,
				"reason", err,
			)
			report := job.ensureReport()
			if report.FinishedAt.IsZero() {
				report.Interrupted = true
				report.Finish()
			}
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "seed", job.Seed)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"seed", job.Seed,
				"error", err,
			)

			report := job.ensureReport()
			report.Error = err.Error()
			if report.FinishedAt.IsZero() {
				report.Finish()
			}
			return err
		}

		job.PerformedSteps = append(job.PerformedSteps, step.Name())
	}

	return nil
}
