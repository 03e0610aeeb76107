// Package database provides SQLite-based storage for imgcrawl.
//
// This package implements the CrawlDB, which stores:
//   - Crawl runs with their final reports, for the history command
//   - Transform claims: the persistent (image, transform) cache gate
//   - An index of acquired images with size and EXIF metadata
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, and the
// database is a single file in the XDG data directory.
//
// The claim table makes admission a single INSERT OR IGNORE statement on
// the (image_url, transform) primary key. Whichever caller inserts the row
// owns the pair; every other caller, in this run or a later one, sees zero
// affected rows and is turned away.
package database
