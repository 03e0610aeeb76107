// Package model defines the core data structures shared by the crawler,
// the image store, the database and the report writers.
//
// This package contains the following main types:
//   - Page and PageElement: a fetched page and its typed elements
//   - Image: decoded image data identified by its source URL
//   - CrawlStats and CrawlReport: the aggregate result of one crawl run
//
// The models live in their own package so that crawler, imagestore,
// database and report can share them without import cycles.
package model
