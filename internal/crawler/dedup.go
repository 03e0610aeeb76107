package crawler

import (
	"sync"
	"sync/atomic"
)

// DedupSet is the set of URLs visited during one crawl run.
// It is safe for concurrent use.
type DedupSet struct {
	urls sync.Map
	size atomic.Int64
}

// NewDedupSet creates an empty set.
func NewDedupSet() *DedupSet {
	return &DedupSet{}
}

// TryVisit reports whether this call is the first to visit url.
// The test and the insert are one LoadOrStore, so exactly one of any number
// of concurrent callers for the same URL observes true.
func (s *DedupSet) TryVisit(url string) bool {
	if _, loaded := s.urls.LoadOrStore(url, struct{}{}); loaded {
		return false
	}
	s.size.Add(1)
	return true
}

// Visited reports whether url has been visited. For inspection only; use
// TryVisit to claim a URL.
func (s *DedupSet) Visited(url string) bool {
	_, ok := s.urls.Load(url)
	return ok
}

// Len returns the number of visited URLs.
func (s *DedupSet) Len() int {
	return int(s.size.Load())
}
