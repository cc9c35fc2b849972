package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pageweight/internal/model"
)

// DefaultBatchConcurrency is the number of audits run at once.
const DefaultBatchConcurrency = 2

// BatchProcessor audits several sources concurrently.
// Each source gets its own audit state and a pipeline built for it, so
// per-site settings can differ between sources.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for the audit of a source.
	pipelineFactory func(source string) *Pipeline

	// prepare, if set, is called on each new audit before it runs.
	prepare func(*model.Audit)

	// concurrency is the maximum number of concurrent audits.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent audits.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithPrepare sets a function called on each audit before it runs, for
// example to record the settings snapshot.
func WithPrepare(fn func(*model.Audit)) BatchOption {
	return func(b *BatchProcessor) {
		b.prepare = fn
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func(source string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultBatchConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch audits every source and returns the audits in source order,
// including failed ones; each audit records its own error. The returned
// error is ctx.Err() when the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, sources []string) ([]*model.Audit, error) {
	bp.logger.Info("starting audits",
		"sources", len(sources),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	// Each goroutine writes only its own index.
	audits := make([]*model.Audit, len(sources))

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, source := range sources {
		audit := model.NewAudit(source)
		if bp.prepare != nil {
			bp.prepare(audit)
		}
		audits[i] = audit

		g.Go(func() error {
			if err := bp.pipelineFactory(source).Execute(ctx, audit); err != nil {
				bp.logger.Warn("audit failed",
					"source", source,
					"error", err,
				)
			}
			return nil
		})
	}

	_ = g.Wait()

	bp.logger.Info("audits complete",
		"sources", len(sources),
		"elapsed", time.Since(startTime),
	)

	return audits, ctx.Err()
}
