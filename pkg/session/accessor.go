package session

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/stacklok/dataverse-devauth/pkg/auth"
	"github.com/stacklok/dataverse-devauth/pkg/environment"
	"github.com/stacklok/dataverse-devauth/pkg/logger"
	"github.com/stacklok/dataverse-devauth/pkg/sanitize"
)

// AccessTokenRequest configures a standalone token resolution, outside any
// full interceptor setup.
type AccessTokenRequest struct {
	// ResourceURL identifies the resource to obtain a token for. Required,
	// HTTPS, allow-listed.
	ResourceURL string

	// AllowedDomains extends the host allow-list, as in Config.
	AllowedDomains []string

	// EnableLogging turns on debug-level diagnostics for this resolution.
	EnableLogging bool
}

// GetAccessToken resolves a bearer token for a resource without installing
// an interceptor. The environment gate still applies. Ordinary resolution
// failure returns ("", nil); only malformed or non-allow-listed input is an
// error.
func GetAccessToken(ctx context.Context, req AccessTokenRequest) (string, error) {
	if err := environment.AssertNonProduction(nil); err != nil {
		return "", err
	}

	if req.EnableLogging {
		viper.Set("debug", true)
		logger.Initialize()
	}

	resolver, err := auth.NewResolver(ctx, req.ResourceURL, req.AllowedDomains)
	if err != nil {
		return "", fmt.Errorf("invalid access token request: %w", err)
	}

	token, err := resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		logger.Debugw("no credential available for resource",
			"resource", sanitize.RedactURL(req.ResourceURL),
		)
	}
	return token, nil
}
