package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/sitemirror/internal/model"
)

// Spider defaults.
const (
	// DefaultMaxDepth is the number of link hops followed from the seed.
	DefaultMaxDepth = 20

	// DefaultDelay is the pause after each saved resource.
	DefaultDelay = 1 * time.Second

	// DefaultMaxPending caps the work list. It is a safety net independent
	// of the depth bound for sites that generate links without end.
	DefaultMaxPending = 100000
)

// Traversal selects the order in which the work list is consumed.
type Traversal int

const (
	// DepthFirst follows the newest discovered link first.
	DepthFirst Traversal = iota

	// BreadthFirst finishes each depth before the next one.
	BreadthFirst
)

// String returns the traversal name.
func (t Traversal) String() string {
	switch t {
	case DepthFirst:
		return "depth-first"
	case BreadthFirst:
		return "breadth-first"
	default:
		return "unknown"
	}
}

// Recorder journals a run as it progresses. The run journal implements it.
// Recorder errors are logged and never stop a run.
type Recorder interface {
	// StartRun is called once the seed is validated.
	StartRun(ctx context.Context, report *model.MirrorReport) error

	// RecordResource is called after each dispatched resource.
	RecordResource(ctx context.Context, runID string, res model.Resource) error

	// FinishRun is called with the final report, interrupted or not.
	FinishRun(ctx context.Context, report *model.MirrorReport) error
}

// Spider mirrors one site.
// It owns the visited set and the work list of a run.
//
// Design decision: We call it "Spider" rather than "Crawler" because:
//  1. "Spider" is the traditional term for web crawlers
//  2. Distinguishes the component from the package name
//  3. Clearer in code: crawler.NewSpider() vs crawler.NewCrawler()
type Spider struct {
	// fetcher downloads and persists resources.
	fetcher *Fetcher

	// mapper resolves local paths.
	mapper *PathMapper

	// maxDepth limits how deep to crawl from the seed.
	// 0 means only the seed, 1 means the seed and its references, etc.
	maxDepth int

	// maxPages stops the run after this many dispatched URLs.
	// 0 means no limit.
	maxPages int

	// maxPending caps the work list length.
	maxPending int

	// delay is the pause after each saved resource.
	delay time.Duration

	// traversal is the work list order.
	traversal Traversal

	// logger receives progress and failure events.
	logger *slog.Logger

	// recorder, when set, journals each processed resource.
	recorder Recorder

	// visited holds every URL dispatched in this run.
	visited map[string]struct{}

	// mutex makes the visited check-and-insert a single step.
	mutex sync.Mutex
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of URLs dispatched in a run.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithMaxPending sets the work list safety cap.
func WithMaxPending(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.maxPending = n
		}
	}
}

// WithDelay sets the pause after each saved resource.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithTraversal sets the work list order.
func WithTraversal(t Traversal) SpiderOption {
	return func(s *Spider) {
		s.traversal = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithRecorder sets a Recorder notified after each resource.
func WithRecorder(r Recorder) SpiderOption {
	return func(s *Spider) {
		s.recorder = r
	}
}

// NewSpider creates a Spider for one run.
func NewSpider(fetcher *Fetcher, mapper *PathMapper, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:    fetcher,
		mapper:     mapper,
		maxDepth:   DefaultMaxDepth,
		maxPending: DefaultMaxPending,
		delay:      DefaultDelay,
		traversal:  DepthFirst,
		visited:    make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// workItem is one entry of the work list.
type workItem struct {
	url   string
	depth int
}

// Crawl mirrors the site reachable from seedURL.
//
// The returned report is never nil once the seed is valid. When ctx is
// cancelled the loop stops, the report is marked interrupted and ctx.Err()
// is returned alongside it.
//
// Design decision: We use an explicit work list rather than recursion
// because:
//  1. Deep link chains cannot exhaust the goroutine stack
//  2. Switching between depth-first and breadth-first is one option
//  3. The safety cap on pending work is a simple length check
func (s *Spider) Crawl(ctx context.Context, seedURL string) (*model.MirrorReport, error) {
	seed, err := Normalize(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL: %w", err)
	}
	scope, err := NewScope(seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL: %w", err)
	}
	extractor := NewExtractor(scope)

	report := model.NewMirrorReport(seed, scope.Host(), s.mapper.Root(), s.maxDepth)
	s.logger.Info("starting mirror",
		"seed", seed,
		"output", s.mapper.Root(),
		"max_depth", s.maxDepth,
		"traversal", s.traversal.String(),
	)
	s.journal(ctx, report.Seed, func(ctx context.Context, r Recorder) error {
		return r.StartRun(ctx, report)
	})

	pending := []workItem{{url: seed, depth: 0}}

	for len(pending) > 0 {
		if ctx.Err() != nil {
			return s.interrupt(ctx, report)
		}
		if s.maxPages > 0 && report.Visited >= s.maxPages {
			s.logger.Info("page limit reached", "max_pages", s.maxPages)
			break
		}

		var item workItem
		item, pending = s.next(pending)

		if item.depth > s.maxDepth {
			report.DepthSkipped++
			s.logger.Debug("max depth reached", "url", item.url, "depth", item.depth)
			continue
		}
		if !s.markVisited(item.url) {
			continue
		}

		links, saved := s.process(ctx, extractor, item, report)

		for _, link := range s.pushOrder(links) {
			if s.isVisited(link) {
				continue
			}
			if len(pending) >= s.maxPending {
				report.Dropped++
				s.logger.Warn("dropping link", "url", link, "error", ErrRecursionLimit)
				continue
			}
			pending = append(pending, workItem{url: link, depth: item.depth + 1})
		}

		if saved && s.delay > 0 && len(pending) > 0 {
			select {
			case <-ctx.Done():
				return s.interrupt(ctx, report)
			case <-time.After(s.delay):
			}
		}
	}

	report.Finish()
	s.finishRun(ctx, report)
	s.logger.Info("mirror finished",
		"seed", seed,
		"visited", report.Visited,
		"saved", report.Saved,
		"failed", report.Failed,
		"elapsed", report.Duration(),
	)
	return report, nil
}

// next removes the next item from pending according to the traversal order.
func (s *Spider) next(pending []workItem) (workItem, []workItem) {
	if s.traversal == BreadthFirst {
		return pending[0], pending[1:]
	}
	last := len(pending) - 1
	return pending[last], pending[:last]
}

// pushOrder returns links in the order they are appended to the work list
// so that they are consumed in lexical order.
func (s *Spider) pushOrder(links []string) []string {
	if s.traversal == BreadthFirst {
		return links
	}
	reversed := make([]string, len(links))
	for i, link := range links {
		reversed[len(links)-1-i] = link
	}
	return reversed
}

// interrupt finalizes a cancelled run.
func (s *Spider) interrupt(ctx context.Context, report *model.MirrorReport) (*model.MirrorReport, error) {
	report.Interrupted = true
	report.Finish()
	s.finishRun(ctx, report)
	s.logger.Warn("mirror interrupted",
		"seed", report.Seed,
		"visited", report.Visited,
	)
	return report, ctx.Err()
}

// process downloads one resource and returns its unvisited-candidate links
// in lexical order. saved reports whether the resource reached disk.
func (s *Spider) process(ctx context.Context, extractor *Extractor, item workItem, report *model.MirrorReport) ([]string, bool) {
	res := model.Resource{
		URL:       item.url,
		Depth:     item.depth,
		FetchedAt: time.Now(),
	}
	s.logger.Info("processing", "depth", item.depth, "url", item.url)

	res.LocalPath = s.mapper.Map(item.url)

	body, err := s.fetcher.Fetch(ctx, item.url, res.LocalPath)
	if err != nil {
		res.Status = model.StatusFailed
		res.Error = err.Error()
		s.logger.Warn("download failed", "url", item.url, "error", err)
		s.record(ctx, report, res)
		return nil, false
	}
	res.Status = model.StatusSaved
	res.SetContent(body)
	s.logger.Debug("saved", "url", item.url, "path", res.LocalPath, "bytes", res.Size)

	res.ContentType = s.fetcher.ContentType(ctx, item.url)

	links, err := extractor.Extract(body, item.url, res.ContentType)
	if err != nil {
		s.logger.Warn("link extraction failed", "url", item.url, "error", err)
		links = NewLinkSet()
	}
	res.LinksFound = links.Len()

	s.record(ctx, report, res)
	return links.Sorted(), true
}

// record adds res to the report and the journal.
func (s *Spider) record(ctx context.Context, report *model.MirrorReport, res model.Resource) {
	report.AddResource(res)
	s.journal(ctx, res.URL, func(ctx context.Context, r Recorder) error {
		return r.RecordResource(ctx, report.RunID, res)
	})
}

// finishRun hands the final report to the journal.
func (s *Spider) finishRun(ctx context.Context, report *model.MirrorReport) {
	s.journal(ctx, report.Seed, func(ctx context.Context, r Recorder) error {
		return r.FinishRun(ctx, report)
	})
}

// journal calls fn with the Recorder, if any. The call is detached from
// cancellation so an interrupted run is still journaled; failures are
// logged and never stop the run.
func (s *Spider) journal(ctx context.Context, url string, fn func(context.Context, Recorder) error) {
	if s.recorder == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), s.recorder); err != nil {
		s.logger.Warn("failed to journal run", "url", url, "error", err)
	}
}

// isVisited checks if a URL has been dispatched.
func (s *Spider) isVisited(u string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.visited[u]
	return ok
}

// markVisited inserts u and reports whether it was new.
// The check and the insert happen under one lock.
func (s *Spider) markVisited(u string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.visited[u]; ok {
		return false
	}
	s.visited[u] = struct{}{}
	return true
}
