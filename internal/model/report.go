package model

import "time"

// CrawlStats is a point-in-time snapshot of the crawl counters.
type CrawlStats struct {
	// PagesFetched counts pages the fetcher returned successfully.
	PagesFetched int64 `json:"pages_fetched"`

	// PagesFailed counts fetch failures (unreachable, non-HTML, parse errors).
	PagesFailed int64 `json:"pages_failed"`

	// PagesSkippedDepth counts crawl calls rejected by the depth bound.
	PagesSkippedDepth int64 `json:"pages_skipped_depth"`

	// PagesDeduped counts crawl calls rejected because the URL was already visited.
	PagesDeduped int64 `json:"pages_deduped"`

	// ImagesAcquired counts images obtained from the cache or downloaded.
	ImagesAcquired int64 `json:"images_acquired"`

	// ImagesFailed counts image acquisition failures.
	ImagesFailed int64 `json:"images_failed"`

	// TransformsApplied counts transformed images successfully produced.
	TransformsApplied int64 `json:"transforms_applied"`

	// TransformsFailed counts admitted transforms that failed.
	TransformsFailed int64 `json:"transforms_failed"`

	// ClaimsRejected counts (image, transform) pairs the cache gate turned away.
	ClaimsRejected int64 `json:"claims_rejected"`

	// PerTransform maps transform name to successfully produced images.
	PerTransform map[string]int64 `json:"per_transform,omitempty"`
}

// CrawlReport is the result of one crawl run starting at RootURL.
type CrawlReport struct {
	// RunID uniquely identifies the run in the database.
	RunID string `json:"run_id"`

	// RootURL is the URL the crawl started from (depth 1).
	RootURL string `json:"root_url"`

	// MaxDepth is the depth bound used for the run.
	MaxDepth int `json:"max_depth"`

	// Transforms lists the transform names applied to each image.
	Transforms []string `json:"transforms"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`

	// Total is the aggregate count: transformed images successfully produced.
	Total int `json:"total"`

	// Stats holds the detailed counters.
	Stats CrawlStats `json:"stats"`

	// Cancelled is true when the run was stopped before completion.
	// Total is then a partial count.
	Cancelled bool `json:"cancelled"`

	// Error holds a run-level error message, if any.
	Error string `json:"error,omitempty"`
}

// NewCrawlReport creates a report for a run starting now.
func NewCrawlReport(runID, rootURL string, maxDepth int, transforms []string) *CrawlReport {
	names := make([]string, len(transforms))
	copy(names, transforms)
	return &CrawlReport{
		RunID:      runID,
		RootURL:    rootURL,
		MaxDepth:   maxDepth,
		Transforms: names,
		StartedAt:  time.Now(),
	}
}

// Status returns a short human-readable status.
func (r *CrawlReport) Status() string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case r.Error != "":
		return "error"
	default:
		return "complete"
	}
}
