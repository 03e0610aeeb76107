// Package config provides configuration structures and utilities for imgcrawl.
// It defines the crawl settings, the optional YAML configuration file with
// per-site overrides, and the XDG directories used for the database and the
// image cache.
package config
