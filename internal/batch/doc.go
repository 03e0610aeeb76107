// Package batch crawls several root URLs concurrently.
//
// Each root gets its own crawl (and therefore its own visited-URL set),
// created by a caller-supplied CrawlFunc. Crawlers built by the same
// CrawlFunc may share a cache gate and an image store, so an image reachable
// from two roots is still transformed once.
package batch
