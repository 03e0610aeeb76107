// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - Masking of credentials and signed query parameters inside logged URLs
//   - Text or JSON output with a verbose switch
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Proxy credentials
//   - URL user info passwords and query parameters such as token or signature
//
// Even in verbose mode, sensitive values are masked. Crawled URLs and custom
// request headers end up in logs that are often shared when reporting
// problems.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.FormatText, verbose)
//
//	logger.Debug("image downloaded",
//	    "url", "https://cdn.example.com/a.png?sig=abc", // sig is masked
//	    "cookie", "session=abc123",                     // masked entirely
//	)
//
//	slog.SetDefault(logger)
package log
