// Package validation provides URL validation and request classification for
// the Dataverse Web API surface. The same discipline is applied at the request
// boundary (every intercepted call) and at the credential boundary (every
// resource URL handed to a credential provider).
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// suspiciousPrefixes are scheme prefixes associated with script execution or
// local file access. Their presence anywhere in a candidate URL is a rejection,
// not just at the start, to catch encoded-redirect tricks.
var suspiciousPrefixes = []string{
	"javascript:",
	"data:",
	"vbscript:",
	"file:",
}

// suspiciousSequences are characters and escapes that have no business in a
// Web API URL and are commonly used for header or markup injection.
var suspiciousSequences = []string{
	"<", ">", "`", "{", "}",
	"\r", "\n", "\x00",
	"%0d", "%0a", "%00", "%0D", "%0A",
}

// dataverseDomainPatterns describe the host shapes of known Dataverse
// deployment regions. Hosts are matched lowercase.
var dataverseDomainPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.crm[0-9]{0,2}\.dynamics\.com$`),
	regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.api\.crm[0-9]{0,2}\.dynamics\.com$`),
	regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.crm\.dynamics\.cn$`),
	regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.crm[0-9]{0,2}\.microsoftdynamics\.us$`),
	regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.crm\.microsoftdynamics\.de$`),
}

// containsSuspiciousPatterns reports the first injection-risk pattern found in
// raw, or "" when the string is clean.
func containsSuspiciousPatterns(raw string) string {
	lowered := strings.ToLower(raw)
	for _, prefix := range suspiciousPrefixes {
		if strings.Contains(lowered, prefix) {
			return prefix
		}
	}
	for _, seq := range suspiciousSequences {
		if strings.Contains(raw, seq) {
			return seq
		}
	}
	return ""
}

// ValidateRequestURL checks that a candidate request URL (relative or
// absolute) is well formed and free of injection-risk patterns. Absolute URLs
// must use the https scheme.
func ValidateRequestURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("request URL cannot be empty")
	}

	if pattern := containsSuspiciousPatterns(raw); pattern != "" {
		return fmt.Errorf("request URL contains suspicious pattern %q", pattern)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("request URL is malformed: %w", err)
	}

	// Relative URLs have no scheme to check; anything with a scheme must be
	// https. http, ws, and friends are rejected outright.
	if parsed.Scheme != "" && parsed.Scheme != "https" {
		return fmt.Errorf("request URL must use https, got scheme %q", parsed.Scheme)
	}

	if parsed.User != nil {
		return fmt.Errorf("request URL must not carry userinfo")
	}

	return nil
}

// ValidateResourceURL checks that a credential resource URL is an absolute
// HTTPS URL whose host matches a known Dataverse deployment shape or one of
// the caller-supplied extra domains. This is the allow-list consulted before
// any credential provider is invoked.
func ValidateResourceURL(raw string, extraDomains []string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("resource URL cannot be empty")
	}

	if pattern := containsSuspiciousPatterns(raw); pattern != "" {
		return fmt.Errorf("resource URL contains suspicious pattern %q", pattern)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("resource URL is malformed: %w", err)
	}

	if parsed.Scheme != "https" {
		return fmt.Errorf("resource URL must use https, got scheme %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("resource URL must include a host: %s", raw)
	}

	if parsed.Fragment != "" {
		return fmt.Errorf("resource URL must not contain fragments (#): %s", raw)
	}

	if !HostAllowed(parsed.Hostname(), extraDomains) {
		return fmt.Errorf("resource URL host %q does not match any allowed Dataverse domain shape", parsed.Hostname())
	}

	return nil
}

// HostAllowed reports whether host matches a known Dataverse deployment
// pattern or one of the extra domains. Comparison is case-insensitive.
func HostAllowed(host string, extraDomains []string) bool {
	lowered := strings.ToLower(host)

	for _, pattern := range dataverseDomainPatterns {
		if pattern.MatchString(lowered) {
			return true
		}
	}
	for _, domain := range extraDomains {
		if lowered == strings.ToLower(strings.TrimSpace(domain)) {
			return true
		}
	}
	return false
}

// ValidateHeaderValue validates that a string is a valid HTTP header value per
// RFC 7230. It checks for CRLF injection and control characters. Every header
// the interceptor attaches passes through this check.
func ValidateHeaderValue(value string) error {
	if value == "" {
		return fmt.Errorf("header value cannot be empty")
	}

	// Length limit to prevent DoS (common HTTP server limit)
	if len(value) > 8192 {
		return fmt.Errorf("header value exceeds maximum length of 8192 bytes")
	}

	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("invalid HTTP header value: contains control characters")
	}

	return nil
}
