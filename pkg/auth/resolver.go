package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"

	"github.com/stacklok/dataverse-devauth/pkg/logger"
	"github.com/stacklok/dataverse-devauth/pkg/sanitize"
	"github.com/stacklok/dataverse-devauth/pkg/validation"
)

const (
	resolveMaxTries     = 2
	resolveInitialDelay = 500 * time.Millisecond
)

// Resolver resolves bearer tokens for a Dataverse resource via the provider
// chain. Ordinary resolution failure is not an error: Resolve returns an
// empty token and the caller decides how to degrade (typically a 401).
// Only malformed or non-allow-listed input produces an error.
type Resolver struct {
	resourceURL  string
	extraDomains []string
	source       oauth2.TokenSource
}

// NewResolver builds a Resolver over the default provider chain for
// resourceURL: CLI session credential, then managed identity, then the
// client-credentials fallback from the environment.
func NewResolver(ctx context.Context, resourceURL string, extraDomains []string) (*Resolver, error) {
	if err := validation.ValidateResourceURL(resourceURL, extraDomains); err != nil {
		return nil, fmt.Errorf("invalid resource URL: %w", err)
	}

	providers := []NamedTokenSource{
		{Name: "cli", Source: NewCLITokenSource(resourceURL)},
	}

	if mi, err := NewManagedIdentityTokenSource(resourceURL); err == nil {
		providers = append(providers, NamedTokenSource{Name: "managed-identity", Source: mi})
	} else {
		logger.Debugw("managed identity provider unavailable", "error", sanitize.Error(err))
	}

	// The catch-all generic resolver is only added when the environment
	// carries client credentials; otherwise it would fail identically on
	// every attempt.
	if cc, err := NewClientCredentialsSource(ctx, resourceURL); err == nil {
		providers = append(providers, NamedTokenSource{Name: "client-credentials", Source: cc})
	} else {
		logger.Debugw("client-credentials provider unavailable", "error", sanitize.Error(err))
	}

	return &Resolver{
		resourceURL:  resourceURL,
		extraDomains: extraDomains,
		source:       NewChainTokenSource(providers...),
	}, nil
}

// NewResolverWithSource builds a Resolver over an explicit token source.
// Used by tests and by mock-token setups.
func NewResolverWithSource(resourceURL string, extraDomains []string, source oauth2.TokenSource) (*Resolver, error) {
	if err := validation.ValidateResourceURL(resourceURL, extraDomains); err != nil {
		return nil, fmt.Errorf("invalid resource URL: %w", err)
	}
	return &Resolver{
		resourceURL:  resourceURL,
		extraDomains: extraDomains,
		source:       source,
	}, nil
}

// ResourceURL returns the validated resource URL this resolver serves.
func (r *Resolver) ResourceURL() string {
	return r.resourceURL
}

// Resolve attempts to obtain a token for the resource. It retries the chain a
// bounded number of times with exponential backoff, then gives up and returns
// ("", nil): no token, no error. All diagnostics are sanitized.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = resolveInitialDelay

	operation := func() (*oauth2.Token, error) {
		return r.source.Token()
	}

	tok, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(resolveMaxTries),
		backoff.WithNotify(func(err error, duration time.Duration) {
			logger.Debugw("credential resolution retrying",
				"resource", sanitize.RedactURL(r.resourceURL),
				"delay", duration.String(),
				"error", sanitize.Error(err),
			)
		}),
	)
	if err != nil {
		logger.Warnw("credential resolution failed",
			"resource", sanitize.RedactURL(r.resourceURL),
			"error", sanitize.Error(err),
		)
		return "", nil
	}

	return tok.AccessToken, nil
}
