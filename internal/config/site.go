package config

import (
	"maps"
	"strings"
	"time"
)

// SiteConfig holds site-specific configuration for a single host.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the crawl depth for this site.
	// If zero, the global depth is used.
	Depth int `yaml:"depth,omitempty"`

	// IgnorePatterns are URL path globs that are never followed.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path globs to follow.
	// If specified, only matching links are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// CrawlSection holds file-level overrides of the crawl defaults.
// Zero values mean "not set".
type CrawlSection struct {
	Depth        int           `yaml:"depth,omitempty"`
	Transforms   []string      `yaml:"transforms,omitempty"`
	Concurrency  int           `yaml:"concurrency,omitempty"`
	IOSlots      int           `yaml:"ioSlots,omitempty"`
	Delay        time.Duration `yaml:"delay,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	SameHostOnly *bool         `yaml:"sameHostOnly,omitempty"`
}

// File represents the structure of the .imgcrawl configuration file.
type File struct {
	// Crawl overrides the built-in crawl defaults.
	Crawl CrawlSection `yaml:"crawl,omitempty"`

	// Sites maps host names (e.g. "example.com") to their configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains site configuration applied to all sites unless
	// overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host, merged with defaults.
// Host names are matched case-insensitively.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		for name, sc := range cf.Sites {
			if strings.EqualFold(name, host) {
				siteConfig, ok = sc, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}
	return result
}

// ApplyFile copies the crawl section of f into c. isSet reports whether a
// CLI flag was given explicitly; explicit flags win over the file.
func (c *Config) ApplyFile(f *File, isSet func(flag string) bool) {
	if f == nil {
		return
	}
	if isSet == nil {
		isSet = func(string) bool { return false }
	}
	c.SiteConfigs = f

	s := f.Crawl
	if s.Depth != 0 && !isSet("depth") {
		c.MaxDepth = s.Depth
	}
	if len(s.Transforms) > 0 && !isSet("transforms") {
		c.Transforms = append([]string(nil), s.Transforms...)
	}
	if s.Concurrency != 0 && !isSet("concurrency") {
		c.Concurrency = s.Concurrency
	}
	if s.IOSlots != 0 && !isSet("io-slots") {
		c.IOSlots = s.IOSlots
	}
	if s.Delay != 0 && !isSet("delay") {
		c.CrawlDelay = s.Delay
	}
	if s.Timeout != 0 && !isSet("timeout") {
		c.Timeout = s.Timeout
	}
	if s.SameHostOnly != nil && !isSet("allow-external") {
		c.SameHostOnly = *s.SameHostOnly
	}
}
