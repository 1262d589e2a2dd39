package auth

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/stacklok/dataverse-devauth/pkg/logger"
	"github.com/stacklok/dataverse-devauth/pkg/sanitize"
)

// NamedTokenSource pairs a token source with a name for diagnostics. The name
// is the only thing logged about a provider; token values never are.
type NamedTokenSource struct {
	Name   string
	Source oauth2.TokenSource
}

// ChainTokenSource tries an explicit ordered list of providers in sequence
// and returns the first plausible token. The order and per-provider failure
// semantics are inspectable: each attempt produces a result or an error, never
// an exception-driven fallback.
type ChainTokenSource struct {
	providers []NamedTokenSource
}

// NewChainTokenSource creates a chain over the given providers, tried in the
// order supplied.
func NewChainTokenSource(providers ...NamedTokenSource) *ChainTokenSource {
	return &ChainTokenSource{providers: providers}
}

// Token tries each provider in order. A provider's token must pass the shape
// check before it is trusted; an implausible token counts as a provider
// failure and the chain moves on.
func (c *ChainTokenSource) Token() (*oauth2.Token, error) {
	var failures []error

	for _, p := range c.providers {
		tok, err := p.Source.Token()
		if err != nil {
			logger.Debugw("credential provider failed",
				"provider", p.Name,
				"error", sanitize.Error(err),
			)
			failures = append(failures, fmt.Errorf("%s: %s", p.Name, sanitize.Error(err)))
			continue
		}

		if err := CheckTokenShape(tok.AccessToken); err != nil {
			logger.Warnw("credential provider returned implausible token",
				"provider", p.Name,
				"error", sanitize.Error(err),
			)
			failures = append(failures, fmt.Errorf("%s: %w", p.Name, err))
			continue
		}

		logger.Debugw("credential resolved", "provider", p.Name)
		return tok, nil
	}

	if len(failures) == 0 {
		return nil, ErrNoToken
	}
	return nil, fmt.Errorf("%w: %w", ErrNoToken, errors.Join(failures...))
}
