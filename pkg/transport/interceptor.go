package transport

import (
	"context"
	"net/http"
	"net/url"

	"github.com/stacklok/dataverse-devauth/pkg/auth"
	"github.com/stacklok/dataverse-devauth/pkg/logger"
	"github.com/stacklok/dataverse-devauth/pkg/sanitize"
	"github.com/stacklok/dataverse-devauth/pkg/validation"
)

// OData protocol markers attached to every authenticated Dataverse request.
const (
	ODataVersion    = "4.0"
	ODataMaxVersion = "4.0"
)

// Interceptor is an http.RoundTripper that classifies each request against
// the protected API, attaches credentials to targeted calls, and forwards
// everything else untouched. It only reads the token cache; ownership of the
// cache stays with the auth package.
type Interceptor struct {
	classifier *validation.Classifier
	cache      *auth.Cache
	resolver   *auth.Resolver // nil for mock-token setups
	mockToken  string
	base       http.RoundTripper
}

// Options configures an Interceptor.
type Options struct {
	// Classifier decides which requests are targeted. Required.
	Classifier *validation.Classifier

	// Cache supplies tokens for targeted requests. Required.
	Cache *auth.Cache

	// Resolver re-resolves on cache miss. Nil for mock-token setups.
	Resolver *auth.Resolver

	// MockToken, when set, short-circuits forwarding: targeted requests get
	// a canned empty-result response instead of touching the network.
	MockToken string

	// Base is the underlying transport for forwarded requests. Defaults to
	// http.DefaultTransport.
	Base http.RoundTripper
}

// NewInterceptor builds an Interceptor from opts.
func NewInterceptor(opts Options) *Interceptor {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return &Interceptor{
		classifier: opts.Classifier,
		cache:      opts.Cache,
		resolver:   opts.Resolver,
		mockToken:  opts.MockToken,
		base:       base,
	}
}

// RoundTrip implements http.RoundTripper. It never returns an error for
// classification, credential, or internal failures; those become synthetic
// responses with the status code carrying the signal.
func (i *Interceptor) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("request interception panicked",
				"url", sanitize.RedactURL(req.URL.String()),
				"panic", sanitize.Redact(safeString(r)),
			)
			resp = internalErrorResponse(req)
			err = nil
		}
	}()

	raw, terr := TargetFromRequest(req).Normalize()
	if terr != nil {
		return internalErrorResponse(req), nil
	}

	cls, cerr := i.classifier.Classify(raw)
	if cerr != nil {
		logger.Warnw("request rejected by URL validation",
			"url", sanitize.RedactURL(raw),
			"error", sanitize.Error(cerr),
		)
		return internalErrorResponse(req), nil
	}

	if !cls.IsTargetAPI {
		return i.base.RoundTrip(req)
	}

	token, ok := i.token(req.Context())
	if !ok {
		logger.Debugw("no valid token for targeted request",
			"url", sanitize.RedactURL(raw),
		)
		return unauthorizedResponse(req), nil
	}

	authed, aerr := i.authenticate(req, cls.RewrittenURL, token)
	if aerr != nil {
		logger.Errorw("failed to attach credentials",
			"url", sanitize.RedactURL(raw),
			"error", sanitize.Error(aerr),
		)
		return internalErrorResponse(req), nil
	}

	// Mock tokens never reach a real upstream: unit tests stay deterministic
	// without network access.
	if i.mockToken != "" && token == i.mockToken {
		return mockResultResponse(req), nil
	}

	return i.base.RoundTrip(authed)
}

// token obtains a token from the cache, falling back to the resolver on a
// miss. A resolver success repopulates the cache. Mock setups fall back to
// the configured mock token instead: mock sessions have no refresher, and
// their determinism must not decay when the cache entry ages out.
func (i *Interceptor) token(ctx context.Context) (string, bool) {
	if token, ok := i.cache.Get(); ok {
		return token, true
	}

	if i.mockToken != "" {
		return i.mockToken, true
	}

	if i.resolver == nil {
		return "", false
	}

	gen := i.cache.Generation()
	token, err := i.resolver.Resolve(ctx)
	if err != nil || token == "" {
		return "", false
	}
	i.cache.SetIfGeneration(token, gen)
	return token, true
}

// authenticate clones the request, rewrites its URL, and attaches the bearer
// and OData headers. Every header value is validated before attachment.
func (i *Interceptor) authenticate(req *http.Request, rewritten, token string) (*http.Request, error) {
	target, err := url.Parse(rewritten)
	if err != nil {
		return nil, err
	}

	authorization := "Bearer " + token
	if err := validation.ValidateHeaderValue(authorization); err != nil {
		return nil, err
	}

	clone := req.Clone(req.Context())
	clone.URL = target
	clone.Host = target.Host
	clone.Header.Set("Authorization", authorization)
	clone.Header.Set("OData-MaxVersion", ODataMaxVersion)
	clone.Header.Set("OData-Version", ODataVersion)
	clone.Header.Set("Accept", "application/json")
	if clone.Header.Get("Content-Type") == "" {
		clone.Header.Set("Content-Type", "application/json")
	}
	return clone, nil
}

// safeString renders a recovered panic value without formatting surprises.
func safeString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if e, ok := v.(error); ok {
		return e.Error()
	}
	return "non-string panic value"
}
