// Package main provides the entry point for the imgcrawl CLI.
//
// imgcrawl crawls a website from a root page up to a bounded depth, downloads
// every image it finds once, and runs each image through a pipeline of
// transforms (grayscale, sepia, tint, ...), reporting how many transformed
// images were produced.
//
// Usage:
//
//	imgcrawl crawl <url>
//	imgcrawl crawl --list <file>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
