package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration. Callers can use
// errors.Is() to tell them apart.
var (
	// ErrNoTarget is returned when no root URL is specified.
	ErrNoTarget = errors.New("no target specified: provide a root URL or use --list")

	// ErrInvalidDepth is returned when the maximum depth is below 1.
	// The root page is depth 1, so anything lower would crawl nothing.
	ErrInvalidDepth = errors.New("invalid depth: must be at least 1")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the transform concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidIOSlots is returned when the number of blocking I/O slots is not positive.
	ErrInvalidIOSlots = errors.New("invalid io slots: must be positive")

	// ErrInvalidBatchSize is returned when the number of concurrent roots is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrNoTransforms is returned when the transform list is empty.
	ErrNoTransforms = errors.New("no transforms specified")

	// ErrUnknownTransform is returned when a transform name is not registered.
	ErrUnknownTransform = errors.New("unknown transform")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when both --proxy and --tor are specified.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxImageSize is returned when the max image size is negative.
	ErrInvalidMaxImageSize = errors.New("invalid max image size: must be non-negative")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
