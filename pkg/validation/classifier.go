package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultPathPrefix is the fixed URL segment identifying Dataverse Web API
// requests.
const DefaultPathPrefix = "/api/data"

// ErrRewriteValidation is returned when a URL passes the initial check but its
// rewritten absolute form fails re-validation. This is a hard error: a request
// in that state must never be silently forwarded.
var ErrRewriteValidation = errors.New("rewritten URL failed re-validation")

// Classification is the transient per-request decision. It is computed for
// every intercepted call and never persisted.
type Classification struct {
	// IsTargetAPI is true when the request addresses the protected API.
	IsTargetAPI bool

	// RewrittenURL is the fully-qualified URL to use. For non-targeted
	// requests it is the input, unchanged.
	RewrittenURL string
}

// Classifier decides, for a bare URL string with no call-site context, whether
// a request addresses the protected Dataverse API and what absolute URL to
// forward it to. The same decision logic backs the in-process interceptor and
// the dev-server proxy rules.
type Classifier struct {
	baseURL      *url.URL
	pathPrefix   string
	extraDomains []string
}

// NewClassifier builds a Classifier for the given Dataverse base URL.
// pathPrefix defaults to DefaultPathPrefix when empty. extraDomains widens the
// host allow-list for custom deployments.
func NewClassifier(baseURL, pathPrefix string, extraDomains []string) (*Classifier, error) {
	if pathPrefix == "" {
		pathPrefix = DefaultPathPrefix
	}
	pathPrefix = "/" + strings.TrimPrefix(pathPrefix, "/")

	if err := ValidateResourceURL(baseURL, extraDomains); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	// The base is host-only; any path component is discarded so that rewrites
	// are predictable.
	parsed.Path = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""

	return &Classifier{
		baseURL:      parsed,
		pathPrefix:   pathPrefix,
		extraDomains: extraDomains,
	}, nil
}

// PathPrefix returns the normalized path prefix (with leading slash).
func (c *Classifier) PathPrefix() string {
	return c.pathPrefix
}

// BaseURL returns the normalized scheme://host base.
func (c *Classifier) BaseURL() string {
	return c.baseURL.String()
}

// Classify decides whether raw addresses the protected API and returns the
// URL to forward to. Validation failures and rewrite-check failures return an
// error; callers convert those into synthetic 500 responses rather than
// forwarding.
func (c *Classifier) Classify(raw string) (Classification, error) {
	if err := ValidateRequestURL(raw); err != nil {
		return Classification{}, err
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return Classification{}, fmt.Errorf("request URL is malformed: %w", err)
	}

	var rewritten string
	switch {
	case parsed.IsAbs():
		// Strict parse on absolute URLs: the host must be the configured base
		// host (or an allow-listed custom domain) and the path itself must
		// begin with the prefix. A prefix substring elsewhere in the URL (for
		// example inside a query string) does not make a request targeted.
		if !c.hostMatches(parsed.Hostname()) || !c.pathMatches(parsed.Path) {
			return Classification{IsTargetAPI: false, RewrittenURL: raw}, nil
		}
		rewritten = raw
	case c.pathMatches(parsed.Path):
		// Relative prefix match, slash-insensitive: "api/data/..." is treated
		// identically to "/api/data/...".
		rebuilt := *c.baseURL
		rebuilt.Path = "/" + strings.TrimPrefix(parsed.Path, "/")
		rebuilt.RawQuery = parsed.RawQuery
		rewritten = rebuilt.String()
	default:
		// Same-origin paths outside the prefix and external URLs pass through
		// unchanged and unauthenticated.
		return Classification{IsTargetAPI: false, RewrittenURL: raw}, nil
	}

	// Defense in depth: a passing initial check plus a failing final check is
	// a hard error, never a silent pass-through.
	if err := ValidateRequestURL(rewritten); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrRewriteValidation, err)
	}
	final, err := url.Parse(rewritten)
	if err != nil || !final.IsAbs() || !c.hostMatches(final.Hostname()) {
		return Classification{}, ErrRewriteValidation
	}

	return Classification{IsTargetAPI: true, RewrittenURL: rewritten}, nil
}

// hostMatches reports whether host is the configured base host or one of the
// caller-supplied extra domains. Other Dataverse organizations' hosts do not
// match: requests to them pass through unauthenticated.
func (c *Classifier) hostMatches(host string) bool {
	if strings.EqualFold(host, c.baseURL.Hostname()) {
		return true
	}
	for _, domain := range c.extraDomains {
		if strings.EqualFold(host, strings.TrimSpace(domain)) {
			return true
		}
	}
	return false
}

// pathMatches reports whether path begins with the configured prefix,
// ignoring a missing leading slash.
func (c *Classifier) pathMatches(path string) bool {
	normalized := "/" + strings.TrimPrefix(path, "/")
	return strings.HasPrefix(normalized, c.pathPrefix)
}
