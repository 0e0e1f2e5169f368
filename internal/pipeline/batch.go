package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of seeds mirrored at the same time.
const DefaultConcurrency = 4

// BatchMirror mirrors several seeds concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchMirror rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on a single job
// 2. Output directory assignment is a batch concern
type BatchMirror struct {
	// baseDir is the output root of a single seed, or the parent of the
	// per-host roots when there are several seeds.
	baseDir string

	// pipelineFactory creates a new pipeline for each job.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent jobs.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchMirror.
type BatchOption func(*BatchMirror)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchMirror) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchMirror) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchMirror creates a BatchMirror writing under baseDir.
// pipelineFactory is called once per job so no state leaks between jobs.
func NewBatchMirror(baseDir string, pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchMirror {
	b := &BatchMirror{
		baseDir:         baseDir,
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	return b
}

// Run mirrors every seed and returns one report per seed, in input order.
// Every report is non-nil, including those of failed or cancelled jobs.
//
// A job failure never stops the other jobs. The returned error is the
// context error when ctx was cancelled, nil otherwise.
func (b *BatchMirror) Run(ctx context.Context, seeds []string) ([]*model.MirrorReport, error) {
	b.logger.Info("starting batch",
		"seeds", len(seeds),
		"concurrency", b.concurrency,
	)
	startTime := time.Now()

	dirs := OutputDirs(b.baseDir, seeds)
	reports := make([]*model.MirrorReport, len(seeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			job := &Job{Seed: seed, OutputDir: dirs[i]}
			err := b.pipelineFactory().Execute(gctx, job)
			// Each goroutine owns its index.
			reports[i] = job.ensureReport()

			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				b.logger.Warn("mirror failed", "seed", seed, "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	b.logger.Info("batch complete",
		"seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)
	return reports, err
}

// OutputDirs assigns an output root to each seed.
//
// A single seed is mirrored into baseDir itself. With several seeds each
// one gets baseDir/<host>; hosts seen more than once get a numeric suffix
// and unparseable seeds are named after their position.
func OutputDirs(baseDir string, seeds []string) []string {
	if len(seeds) == 1 {
		return []string{baseDir}
	}

	dirs := make([]string, len(seeds))
	seen := make(map[string]int)
	for i, seed := range seeds {
		name := "seed-" + strconv.Itoa(i+1)
		if host := seedHost(seed); host != "" {
			name = host
		}

		seen[name]++
		if n := seen[name]; n > 1 {
			name += "-" + strconv.Itoa(n)
		}
		dirs[i] = filepath.Join(baseDir, name)
	}
	return dirs
}

// seedHost returns a directory-safe form of the seed's host, or "".
func seedHost(seed string) string {
	normalized, err := crawler.Normalize(seed)
	if err != nil {
		return ""
	}
	scope, err := crawler.NewScope(normalized)
	if err != nil {
		return ""
	}
	return strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(scope.Host())
}
