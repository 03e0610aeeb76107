package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/imgcrawl/internal/model"
	"github.com/nao1215/imgcrawl/internal/transform"
)

// DefaultMaxDepth is the default depth bound. The root page is depth 1.
const DefaultMaxDepth = 3

// errNoImage is reported when an ImageSource returns neither image nor error.
var errNoImage = errors.New("no image")

// ImageSource obtains an image by URL, from a cache when possible.
type ImageSource interface {
	GetOrDownload(ctx context.Context, imageURL string) (*model.Image, error)
}

// Sink persists a transformed image.
type Sink interface {
	Save(ctx context.Context, img *model.Image, transformName string) (string, error)
}

// ProgressFunc is called after every successfully produced image with the
// running total.
type ProgressFunc func(total int64)

// Crawler is the crawl orchestrator. A Crawler holds the visited-URL set of
// one run; call Reset before reusing it for another run.
type Crawler struct {
	fetcher    PageFetcher
	images     ImageSource
	transforms []transform.Transform
	names      []string
	maxDepth   int
	gate       CacheGate
	sink       Sink
	boundary   *Boundary
	compute    *semaphore.Weighted
	logger     *slog.Logger
	progress   ProgressFunc
	runID      string

	visited *DedupSet
	stats   *stats
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithMaxDepth sets the depth bound. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(c *Crawler) {
		if depth >= 1 {
			c.maxDepth = depth
		}
	}
}

// WithTransforms sets the transforms applied to every image.
func WithTransforms(ts ...transform.Transform) Option {
	return func(c *Crawler) {
		c.transforms = append([]transform.Transform(nil), ts...)
	}
}

// WithCacheGate sets the (image, transform) admission gate.
// The default is a fresh MemoryGate.
func WithCacheGate(g CacheGate) Option {
	return func(c *Crawler) {
		if g != nil {
			c.gate = g
		}
	}
}

// WithSink persists every transformed image.
func WithSink(s Sink) Option {
	return func(c *Crawler) {
		c.sink = s
	}
}

// WithBoundary sets the Blocking-I/O Boundary. Boundaries may be shared
// between crawlers to bound I/O across a batch.
func WithBoundary(b *Boundary) Option {
	return func(c *Crawler) {
		if b != nil {
			c.boundary = b
		}
	}
}

// WithConcurrency sets the number of transforms that may run at once.
func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		if n >= 1 {
			c.compute = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Crawler) {
		c.progress = fn
	}
}

// WithRunID sets the run identifier used in reports.
// The default is a random UUID.
func WithRunID(id string) Option {
	return func(c *Crawler) {
		if id != "" {
			c.runID = id
		}
	}
}

// New creates a Crawler that fetches pages with fetcher and images with images.
func New(fetcher PageFetcher, images ImageSource, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:  fetcher,
		images:   images,
		maxDepth: DefaultMaxDepth,
		gate:     NewMemoryGate(),
		boundary: NewBoundary(DefaultIOSlots),
		compute:  semaphore.NewWeighted(int64(runtime.NumCPU())),
		logger:   slog.Default(),
		runID:    uuid.NewString(),
		visited:  NewDedupSet(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.names = transform.TransformNames(c.transforms)
	c.stats = newStats(len(c.transforms))
	return c
}

// RunID returns the run identifier.
func (c *Crawler) RunID() string {
	return c.runID
}

// MaxDepth returns the depth bound.
func (c *Crawler) MaxDepth() int {
	return c.maxDepth
}

// TransformNames returns the configured transform names in order.
func (c *Crawler) TransformNames() []string {
	return append([]string(nil), c.names...)
}

// Stats returns a snapshot of the counters.
func (c *Crawler) Stats() model.CrawlStats {
	return c.stats.snapshot(c.names)
}

// Visited returns the number of distinct URLs visited.
func (c *Crawler) Visited() int {
	return c.visited.Len()
}

// Reset clears the visited set and the counters and assigns a new run ID.
// The cache gate is kept.
func (c *Crawler) Reset() {
	c.visited = NewDedupSet()
	c.stats = newStats(len(c.transforms))
	c.runID = uuid.NewString()
}

// Crawl runs a complete crawl from rootURL at depth 1.
//
// On cancellation the returned report is partial, marked Cancelled, and the
// error is the context error.
func (c *Crawler) Crawl(ctx context.Context, rootURL string) (*model.CrawlReport, error) {
	report := model.NewCrawlReport(c.runID, rootURL, c.maxDepth, c.names)
	c.logger.Info("crawl started",
		"run", c.runID,
		"url", rootURL,
		"max_depth", c.maxDepth,
		"transforms", c.names)

	total, err := c.CrawlURL(ctx, rootURL, 1)

	report.Duration = time.Since(report.StartedAt)
	report.Total = total
	report.Stats = c.Stats()

	if err != nil {
		report.Cancelled = true
		report.Error = err.Error()
		c.logger.Warn("crawl cancelled",
			"run", c.runID,
			"partial_total", total,
			"duration", report.Duration,
			"error", err)
		return report, err
	}

	c.logger.Info("crawl finished",
		"run", c.runID,
		"total", total,
		"pages", report.Stats.PagesFetched,
		"duration", report.Duration)
	return report, nil
}

// CrawlURL crawls pageURL at the given depth and returns the number of
// transformed images produced in its subtree.
//
// Every per-item failure counts as 0. The only error returned is the
// context error after cancellation, together with the partial count.
func (c *Crawler) CrawlURL(ctx context.Context, pageURL string, depth int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// The depth bound is checked before the dedup set so that a URL seen
	// too deep is not marked visited.
	if depth > c.maxDepth {
		c.stats.pagesSkippedDepth.Add(1)
		return 0, nil
	}
	if !c.visited.TryVisit(pageURL) {
		c.stats.pagesDeduped.Add(1)
		return 0, nil
	}

	page, err := RunBlocking(ctx, c.boundary, func(ctx context.Context) (*model.Page, error) {
		return c.fetcher.GetPage(ctx, pageURL)
	})
	if err == nil && page == nil {
		err = ErrNoPage
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		c.stats.pagesFailed.Add(1)
		c.logger.Debug("page fetch failed", "url", pageURL, "depth", depth, "error", err)
		return 0, nil
	}
	c.stats.pagesFetched.Add(1)

	images := page.ElementURLs(model.KindImage)
	links := page.ElementURLs(model.KindPage)
	c.logger.Debug("page fetched",
		"url", pageURL,
		"depth", depth,
		"images", len(images),
		"links", len(links))

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, imageURL := range images {
		g.Go(func() error {
			n, err := c.ProcessImage(gctx, imageURL)
			total.Add(int64(n))
			return err
		})
	}
	for _, link := range links {
		g.Go(func() error {
			n, err := c.CrawlURL(gctx, link, depth+1)
			total.Add(int64(n))
			return err
		})
	}
	err = g.Wait()
	return int(total.Load()), err
}

// ProcessImage acquires the image at imageURL and applies every configured
// transform the cache gate admits. It returns the number of transforms
// successfully applied.
func (c *Crawler) ProcessImage(ctx context.Context, imageURL string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	img, err := RunBlocking(ctx, c.boundary, func(ctx context.Context) (*model.Image, error) {
		return c.images.GetOrDownload(ctx, imageURL)
	})
	if err == nil && img == nil {
		err = errNoImage
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		c.stats.imagesFailed.Add(1)
		c.logger.Debug("image acquisition failed", "url", imageURL, "error", err)
		return 0, nil
	}
	c.stats.imagesAcquired.Add(1)

	var count atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range c.transforms {
		g.Go(func() error {
			ok, err := c.applyTransform(gctx, i, t, imageURL, img)
			if ok {
				count.Add(1)
			}
			return err
		})
	}
	err = g.Wait()
	return int(count.Load()), err
}

// applyTransform claims (imageURL, t) and, when admitted, applies t and
// persists the result. It reports whether a transformed image was produced.
func (c *Crawler) applyTransform(ctx context.Context, idx int, t transform.Transform, imageURL string, img *model.Image) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	name := t.Name()
	admitted, err := c.gate.TryClaim(ctx, imageURL, name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		c.logger.Debug("cache gate error", "url", imageURL, "transform", name, "error", err)
	}
	if !admitted {
		c.stats.claimsRejected.Add(1)
		return false, nil
	}

	err = c.runTransform(ctx, t, img)
	c.complete(ctx, imageURL, name, err == nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		c.stats.transformsFailed.Add(1)
		c.logger.Debug("transform failed", "url", imageURL, "transform", name, "error", err)
		return false, nil
	}

	c.stats.perTransform[idx].Add(1)
	applied := c.stats.transformsApplied.Add(1)
	if c.progress != nil {
		c.progress(applied)
	}
	return true, nil
}

// runTransform applies t under the compute limit and saves the result
// through the Blocking-I/O Boundary.
func (c *Crawler) runTransform(ctx context.Context, t transform.Transform, img *model.Image) error {
	if err := c.compute.Acquire(ctx, 1); err != nil {
		return err
	}
	out, err := t.Apply(ctx, img)
	c.compute.Release(1)
	if err != nil {
		return fmt.Errorf("apply %s: %w", t.Name(), err)
	}
	if out == nil {
		return fmt.Errorf("apply %s: %w", t.Name(), transform.ErrEmptyImage)
	}

	if c.sink == nil {
		return nil
	}
	if _, err := RunBlocking(ctx, c.boundary, func(ctx context.Context) (string, error) {
		return c.sink.Save(ctx, out, t.Name())
	}); err != nil {
		return fmt.Errorf("save %s: %w", t.Name(), err)
	}
	return nil
}

// complete records the outcome of an admitted claim when the gate persists
// claims. It runs even after cancellation so that interrupted claims are
// marked failed and retried by the next run.
func (c *Crawler) complete(ctx context.Context, imageURL, transformName string, ok bool) {
	recorder, isRecorder := c.gate.(ClaimRecorder)
	if !isRecorder {
		return
	}
	if err := recorder.Complete(context.WithoutCancel(ctx), imageURL, transformName, ok); err != nil {
		c.logger.Warn("failed to record claim", "url", imageURL, "transform", transformName, "error", err)
	}
}
