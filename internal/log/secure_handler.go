package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// MaskValue replaces every redacted value.
const MaskValue = "***REDACTED***"

// redactedKeys are attribute keys whose values are never logged. Site
// configs put cookies and auth headers into requests, and a proxy address
// may carry credentials.
var redactedKeys = []string{
	"authorization", "proxy-authorization", "cookie", "set-cookie",
	"x-api-key", "x-auth-token", "api_key", "apikey", "api-key",
	"session", "session_id", "sessionid", "sid", "jsessionid",
	"proxy_password", "proxy_auth",
}

// redactedKeywords mark a key as sensitive wherever they appear in it.
// The bare word "key" is not one of them: cache_key and primary_key are
// common and harmless.
var redactedKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private",
}

// redactedQueryParams are query parameters masked inside logged URLs.
// Signed image URLs from CDNs carry them.
var redactedQueryParams = []string{
	"token", "access_token", "auth", "key", "api_key", "apikey",
	"sig", "signature", "password", "session", "sessionid",
	"x-amz-signature", "x-amz-credential", "x-amz-security-token",
}

var (
	jwtPattern        = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`)
	authSchemePattern = regexp.MustCompile(`(?i)^(bearer\s+.+|basic\s+[A-Za-z0-9+/=]+)$`)
	awsKeyPattern     = regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`)
	pemKeyPattern     = regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`)
	longTokenPattern  = regexp.MustCompile(`^[A-Za-z0-9]{32,}$`)
	hexDigestPattern  = regexp.MustCompile(`^[0-9a-f]{32,}$`)
)

// SecureHandler is an slog.Handler that redacts secrets before passing
// records on. Values are masked when their key is sensitive or when they
// look like a credential. URLs keep their shape: only the password and
// sensitive query values are masked.
type SecureHandler struct {
	next slog.Handler
}

// NewSecureHandler wraps next. A nil next wraps the default handler.
func NewSecureHandler(next slog.Handler) *SecureHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	return &SecureHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redact(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

// WithAttrs implements slog.Handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redact(a)
	}
	return &SecureHandler{next: h.next.WithAttrs(clean)}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{next: h.next.WithGroup(name)}
}

// redact returns a with sensitive content masked. Groups are walked.
func redact(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		members := a.Value.Group()
		clean := make([]slog.Attr, len(members))
		for i, m := range members {
			clean[i] = redact(m)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}

	v := a.Value.String()
	if isSensitiveValue(v) {
		return slog.String(a.Key, MaskValue)
	}
	if masked, ok := sanitizeURL(v); ok {
		return slog.String(a.Key, masked)
	}
	return a
}

// isSensitiveKey reports whether values logged under key must be masked.
func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if slices.Contains(redactedKeys, key) {
		return true
	}
	for _, word := range redactedKeywords {
		if strings.Contains(key, word) {
			return true
		}
	}
	return false
}

// isSensitiveValue reports whether value looks like a credential.
// Lowercase hex digests (image cache keys, checksums) are not credentials.
func isSensitiveValue(value string) bool {
	switch {
	case jwtPattern.MatchString(value),
		authSchemePattern.MatchString(value),
		awsKeyPattern.MatchString(value),
		pemKeyPattern.MatchString(value):
		return true
	case longTokenPattern.MatchString(value):
		return !hexDigestPattern.MatchString(value)
	default:
		return false
	}
}

// sanitizeURL masks the password of embedded user info and the values of
// sensitive query parameters. It reports false when value is not an
// absolute URL or nothing had to be masked.
func sanitizeURL(value string) (string, bool) {
	if !strings.Contains(value, "://") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return "", false
	}

	changed := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), MaskValue)
			changed = true
		}
	}

	if u.RawQuery != "" {
		query := u.Query()
		maskedQuery := false
		for param := range query {
			if slices.Contains(redactedQueryParams, strings.ToLower(param)) {
				query.Set(param, MaskValue)
				maskedQuery = true
			}
		}
		if maskedQuery {
			u.RawQuery = query.Encode()
			changed = true
		}
	}

	if !changed {
		return "", false
	}
	return u.String(), true
}

// Format selects the log output encoding.
type Format string

const (
	// FormatText writes logfmt-style key=value lines.
	FormatText Format = "text"
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

// NewLogger creates a redacting logger in the given format. Unknown
// formats fall back to text. The level is Debug when verbose and Warn
// otherwise.
func NewLogger(w io.Writer, format Format, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(verbose)}
	var h slog.Handler
	if strings.EqualFold(string(format), string(FormatJSON)) {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewSecureHandler(h))
}

// NewSecureLogger creates a redacting text logger.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return NewLogger(w, FormatText, verbose)
}

// NewSecureJSONLogger creates a redacting JSON logger.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return NewLogger(w, FormatJSON, verbose)
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
