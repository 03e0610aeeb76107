package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/imgcrawl/internal/model"
)

// DefaultConcurrency is the default number of roots crawled at once.
const DefaultConcurrency = 4

// CrawlFunc crawls one root URL. It is called once per root, from its own
// goroutine, and should build a fresh crawler for each call.
type CrawlFunc func(ctx context.Context, rootURL string) (*model.CrawlReport, error)

// Runner crawls multiple roots with bounded concurrency.
type Runner struct {
	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger for batch processing.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run crawls every root and returns the reports in the order of roots.
// A failed crawl is logged and recorded in its report; the other roots
// keep going. The only error returned is the context error.
func (r *Runner) Run(ctx context.Context, roots []string, crawl CrawlFunc) ([]*model.CrawlReport, error) {
	reports := make([]*model.CrawlReport, len(roots))
	err := r.RunWithCallback(ctx, roots, crawl, func(report *model.CrawlReport, index int) {
		reports[index] = report
	})
	return reports, err
}

// RunWithCallback crawls every root and calls callback with each report as
// soon as its crawl ends. The callback runs on the crawl's goroutine and
// must be safe for concurrent use across different indexes.
func (r *Runner) RunWithCallback(
	ctx context.Context,
	roots []string,
	crawl CrawlFunc,
	callback func(report *model.CrawlReport, index int),
) error {
	r.logger.Info("starting batch crawl",
		"roots", len(roots),
		"concurrency", r.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, root := range roots {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			r.logger.Info("crawling root",
				"url", root,
				"index", i+1,
				"total", len(roots),
			)

			report, err := crawl(ctx, root)
			if report == nil {
				report = model.NewCrawlReport("", root, 0, nil)
				if err != nil {
					report.Error = err.Error()
				}
			}
			callback(report, i)

			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				// A failed root does not stop the others.
				r.logger.Warn("crawl failed", "url", root, "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	r.logger.Info("batch crawl complete",
		"roots", len(roots),
		"elapsed", time.Since(startTime),
	)
	return err
}

// Total returns the sum of the totals of all non-nil reports.
func Total(reports []*model.CrawlReport) int {
	total := 0
	for _, report := range reports {
		if report != nil {
			total += report.Total
		}
	}
	return total
}
