package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/model"
)

// PrepareStep normalizes the seed and creates the output root.
type PrepareStep struct {
	storage crawler.Storage
}

// NewPrepareStep creates a PrepareStep writing through storage.
func NewPrepareStep(storage crawler.Storage) *PrepareStep {
	return &PrepareStep{storage: storage}
}

// Name implements Step.
func (s *PrepareStep) Name() string {
	return "prepare"
}

// Do implements Step.
func (s *PrepareStep) Do(_ context.Context, job *Job) error {
	seed, err := crawler.Normalize(job.Seed)
	if err != nil {
		return fmt.Errorf("invalid seed URL: %w", err)
	}
	job.Seed = seed

	if err := s.storage.MkdirAll(job.OutputDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Crawler mirrors one site. *crawler.Spider implements it.
type Crawler interface {
	Crawl(ctx context.Context, seedURL string) (*model.MirrorReport, error)
}

// CrawlerFactory builds a fresh Crawler for the normalized seed, writing
// under outputDir.
type CrawlerFactory func(seed, outputDir string) (Crawler, error)

// MirrorStep runs a Crawler for the job's seed.
//
// Design decision: We take a factory rather than a Crawler because:
//  1. Each job needs its own visited set
//  2. The output root and the site settings differ per job in a batch
type MirrorStep struct {
	newCrawler CrawlerFactory
}

// NewMirrorStep creates a MirrorStep using newCrawler.
func NewMirrorStep(newCrawler CrawlerFactory) *MirrorStep {
	return &MirrorStep{newCrawler: newCrawler}
}

// Name implements Step.
func (s *MirrorStep) Name() string {
	return "mirror"
}

// Do implements Step.
// An interrupted crawl is not a step failure: its partial report is kept
// and the cancellation is visible through the report and the context.
func (s *MirrorStep) Do(ctx context.Context, job *Job) error {
	c, err := s.newCrawler(job.Seed, job.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}

	report, err := c.Crawl(ctx, job.Seed)
	if report != nil {
		job.Report = report
	}
	if err != nil {
		if report != nil && report.Interrupted &&
			(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return nil
		}
		return err
	}
	return nil
}
