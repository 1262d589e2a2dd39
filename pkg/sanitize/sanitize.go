// Package sanitize strips token-shaped material from text before it is logged
// or surfaced to callers. Every diagnostic path in this repository routes its
// output through Redact so that no configuration can leak a raw token.
package sanitize

import (
	"net/http"
	"net/url"
	"regexp"
)

// RedactedMarker replaces any substring that looks like credential material.
const RedactedMarker = "[REDACTED]"

var (
	// bearerPattern matches "Bearer <value>" header-style credentials.
	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`)

	// accessTokenPattern matches access_token=<value> query or form fragments.
	accessTokenPattern = regexp.MustCompile(`(?i)\baccess_token=[^&\s"']+`)

	// base64RunPattern matches long base64-ish runs. Real tokens are far longer
	// than 40 characters; ordinary words and identifiers are far shorter.
	base64RunPattern = regexp.MustCompile(`[A-Za-z0-9+/_=-]{40,}`)
)

// sensitiveHeaders are masked wholesale by RedactHeaders.
var sensitiveHeaders = []string{
	"Authorization",
	"Proxy-Authorization",
	"Cookie",
	"Set-Cookie",
}

// Redact replaces token-shaped substrings with RedactedMarker. It is safe to
// call on arbitrary text, including error messages wrapping user input.
func Redact(s string) string {
	s = bearerPattern.ReplaceAllString(s, RedactedMarker)
	s = accessTokenPattern.ReplaceAllString(s, "access_token="+RedactedMarker)
	s = base64RunPattern.ReplaceAllString(s, RedactedMarker)
	return s
}

// Error returns the redacted message of err, or "" for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Redact(err.Error())
}

// RedactURL reduces a URL to scheme and host for safe logging. Query strings
// frequently carry filters and identifiers that should not reach the logs.
func RedactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return RedactedMarker
	}
	return parsed.Scheme + "://" + parsed.Host
}

// RedactHeaders returns a copy of h with credential-bearing headers masked.
// The original headers are not modified. A nil input returns nil.
func RedactHeaders(h http.Header) http.Header {
	if h == nil {
		return nil
	}

	masked := h.Clone()
	for _, key := range sensitiveHeaders {
		if masked.Get(key) != "" {
			masked.Set(key, RedactedMarker)
		}
	}
	return masked
}
