// Package crawler implements the recursive image crawl.
//
// # Architecture
//
// The Crawler (the orchestrator) starts at a root URL with depth 1. For
// each URL it
//
//  1. returns 0 when the depth exceeds the maximum (no side effect)
//  2. atomically marks the URL visited in a DedupSet, returning 0 for repeats
//  3. fetches the page through the Blocking-I/O Boundary
//  4. splits the page elements into images and hyperlinks
//  5. processes every image concurrently: acquire it, then for each
//     transform ask the CacheGate for admission and apply the transform
//  6. recurses into every hyperlink concurrently at depth+1
//  7. returns the sum of all counts
//
// Per-item failures (unreachable page, broken image, failing transform)
// count as 0 and never abort sibling work. Context cancellation is the only
// error that propagates.
//
// # Concurrency
//
// Fan-out uses one errgroup per call, without a limit, so a parent waiting
// for its children never holds a slot a child needs. Work is bounded by two
// independent semaphores instead:
//
//   - Boundary: slots for blocking network and disk I/O (page fetch, image
//     download, saving results)
//   - compute: slots for CPU-bound transform application
//
// A goroutine parked in network I/O only holds an I/O slot, so transforms
// keep running at full parallelism while pages download.
//
// # Components
//
//   - Crawler: the orchestrator
//   - DedupSet: atomic visited-URL set
//   - CacheGate / MemoryGate: atomic (image, transform) admission
//   - Boundary / RunBlocking: the Blocking-I/O Boundary
//   - HTTPFetcher, FileFetcher, MultiFetcher: PageFetcher implementations
//   - Parser and LinkFilter: HTML element extraction and hyperlink scoping
//   - HostLimiter: per-host politeness delay
package crawler
