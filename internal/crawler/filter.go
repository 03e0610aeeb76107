package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// LinkFilter decides which hyperlinks a fetcher hands on to the crawler.
// Image references are never filtered.
type LinkFilter struct {
	// SameHostOnly restricts hyperlinks to the host of the page they were found on.
	SameHostOnly bool

	// IgnorePatterns are path globs that are never followed.
	IgnorePatterns []string

	// FollowPatterns, when non-empty, is the set of path globs that may be followed.
	FollowPatterns []string
}

// Allow reports whether target, found on the page at from, should be followed.
func (f *LinkFilter) Allow(from, target string) bool {
	if f == nil {
		return true
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}

	if f.SameHostOnly {
		base, err := url.Parse(from)
		if err != nil || !strings.EqualFold(base.Host, u.Host) {
			return false
		}
		if base.Scheme != u.Scheme && !isWebScheme(base.Scheme, u.Scheme) {
			return false
		}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	// Ignore patterns win over follow patterns.
	for _, pattern := range f.IgnorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(f.FollowPatterns) > 0 {
		for _, pattern := range f.FollowPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// isWebScheme reports whether a and b are both http or https, so that an
// http page may link to the https version of the same host.
func isWebScheme(a, b string) bool {
	web := func(s string) bool { return s == "http" || s == "https" }
	return web(a) && web(b)
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match everything below a directory
//   - a leading *. to match a file extension anywhere
//
// Examples:
//
//	matchPattern("/admin/*", "/admin/users")    // true
//	matchPattern("*.pdf", "/docs/report.pdf")   // true
//	matchPattern("/blog/?", "/blog/1")          // true
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}
