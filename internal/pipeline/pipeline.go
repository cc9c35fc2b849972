package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/pageweight/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the audit state
// accumulated by previous steps.
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation and the audit to modify.
	// Returns an error only if the audit cannot continue; per-URL failures
	// are recorded in the audit and the step returns nil.
	Do(ctx context.Context, audit *model.Audit) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// alwaysStep marks a step that runs even after cancellation.
type alwaysStep struct {
	Step
}

// Always wraps a step so that it still runs after the audit was cancelled.
// The wrapped step receives a context that is never cancelled, so it must
// not perform network I/O.
func Always(step Step) Step {
	return alwaysStep{Step: step}
}

// deferredStep builds its step from the audit state the first time it runs.
type deferredStep struct {
	name  string
	build func(audit *model.Audit) Step
	step  Step
}

// Deferred returns a step that is built by build when it first runs, so it
// can depend on what earlier steps recorded in the audit.
func Deferred(name string, build func(audit *model.Audit) Step) Step {
	return &deferredStep{name: name, build: build}
}

// Name returns the step name.
func (d *deferredStep) Name() string {
	return d.name
}

// Do builds the step if needed and runs it.
func (d *deferredStep) Do(ctx context.Context, audit *model.Audit) error {
	if d.step == nil {
		d.step = d.build(audit)
	}
	return d.step.Do(ctx, audit)
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Cancellation is checked before each step. Once ctx is cancelled, or a
// step fails, the remaining steps are skipped except those wrapped with
// Always. A cancelled audit is marked in its report.
//
// Returns the first step error, or ctx.Err() if the audit was cancelled.
func (p *Pipeline) Execute(ctx context.Context, audit *model.Audit) error {
	var firstErr error
	for _, step := range p.steps {
		_, always := step.(alwaysStep)

		if ctx.Err() != nil && !audit.Report.Cancelled {
			p.logger.Warn("audit cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			audit.Report.Cancelled = true
			if firstErr == nil {
				firstErr = ctx.Err()
			}
		}

		stepCtx := ctx
		if firstErr != nil {
			if !always {
				p.logger.Debug("skipping step", "step", step.Name())
				continue
			}
			stepCtx = context.WithoutCancel(ctx)
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"source", audit.Source,
		)
		start := time.Now()

		if err := step.Do(stepCtx, audit); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"source", audit.Source,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
				audit.Error = err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"duration", time.Since(start),
			)
		}

		audit.PerformedSteps = append(audit.PerformedSteps, step.Name())
	}

	return firstErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
