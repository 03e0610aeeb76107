package crawler

import (
	"sync/atomic"

	"github.com/nao1215/imgcrawl/internal/model"
)

// stats holds the crawl counters. Every field is updated atomically.
type stats struct {
	pagesFetched      atomic.Int64
	pagesFailed       atomic.Int64
	pagesSkippedDepth atomic.Int64
	pagesDeduped      atomic.Int64
	imagesAcquired    atomic.Int64
	imagesFailed      atomic.Int64
	transformsApplied atomic.Int64
	transformsFailed  atomic.Int64
	claimsRejected    atomic.Int64

	// perTransform is indexed like Crawler.transforms.
	perTransform []atomic.Int64
}

func newStats(transforms int) *stats {
	return &stats{perTransform: make([]atomic.Int64, transforms)}
}

func (s *stats) snapshot(names []string) model.CrawlStats {
	per := make(map[string]int64, len(names))
	for i, name := range names {
		per[name] = s.perTransform[i].Load()
	}
	return model.CrawlStats{
		PagesFetched:      s.pagesFetched.Load(),
		PagesFailed:       s.pagesFailed.Load(),
		PagesSkippedDepth: s.pagesSkippedDepth.Load(),
		PagesDeduped:      s.pagesDeduped.Load(),
		ImagesAcquired:    s.imagesAcquired.Load(),
		ImagesFailed:      s.imagesFailed.Load(),
		TransformsApplied: s.transformsApplied.Load(),
		TransformsFailed:  s.transformsFailed.Load(),
		ClaimsRejected:    s.claimsRejected.Load(),
		PerTransform:      per,
	}
}
