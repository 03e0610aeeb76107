package crawler

import "errors"

var (
	// ErrNoPage is returned by fetchers when a URL yields no page.
	ErrNoPage = errors.New("no page")

	// ErrUnsupportedScheme is returned for URLs that no fetcher can serve.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrNotHTML is returned when a fetched resource is not an HTML document.
	ErrNotHTML = errors.New("resource is not HTML")

	// ErrHTTPStatus is returned for HTTP responses with an error status code.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)
