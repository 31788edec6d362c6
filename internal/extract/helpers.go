package extract

import (
	"regexp"
	"strings"
)

// Helper functions reshape and normalize raw values. They never assign
// domain meaning; interpretation belongs to the mapping engine.

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	nonPhoneRe = regexp.MustCompile(`[^0-9+]`)
)

// NormalizeWhitespace collapses runs of whitespace to single spaces and
// trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// NormalizePhone strips everything but digits and a leading plus.
func NormalizePhone(s string) string {
	s = nonPhoneRe.ReplaceAllString(s, "")
	if len(s) > 1 {
		s = s[:1] + strings.ReplaceAll(s[1:], "+", "")
	}
	return s
}

// NormalizeWebsite lowercases the host part and strips trailing slashes
// and a bare scheme-less prefix.
func NormalizeWebsite(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "/")
	lower := strings.ToLower(s)
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, prefix) {
			rest := s[len(prefix):]
			if i := strings.IndexByte(rest, '/'); i >= 0 {
				return prefix + strings.ToLower(rest[:i]) + rest[i:]
			}
			return prefix + strings.ToLower(rest)
		}
	}
	return s
}
