package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/stacklok/dataverse-devauth/pkg/networking"
)

// Environment variables consulted by the client-credentials fallback.
const (
	EnvTenantID     = "DATAVERSE_TENANT_ID"
	EnvClientID     = "DATAVERSE_CLIENT_ID"
	EnvClientSecret = "DATAVERSE_CLIENT_SECRET" // #nosec G101 - variable name, not a credential
)

// clientCredentialsTimeout bounds each token-endpoint call. A hung endpoint
// must surface as a resolution failure, not block the chain.
const clientCredentialsTimeout = 15 * time.Second

// NewClientCredentialsSource builds the catch-all fallback provider from
// client credentials in the environment. It is tried last, after the CLI and
// managed-identity providers, and errors immediately when the environment is
// not configured.
func NewClientCredentialsSource(ctx context.Context, resourceURL string) (oauth2.TokenSource, error) {
	tenantID := strings.TrimSpace(os.Getenv(EnvTenantID))
	clientID := strings.TrimSpace(os.Getenv(EnvClientID))
	clientSecret := strings.TrimSpace(os.Getenv(EnvClientSecret))

	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("client credentials not configured (%s, %s, %s)",
			EnvTenantID, EnvClientID, EnvClientSecret)
	}

	client, err := networking.NewHttpClientBuilder().
		WithTimeout(clientCredentialsTimeout).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create token endpoint client: %w", err)
	}

	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
	return newClientCredentialsSource(ctx, clientID, clientSecret, tokenURL, resourceURL, client), nil
}

// newClientCredentialsSource wires the token source to an explicit HTTP
// client via the oauth2 context hook, so token-endpoint calls inherit the
// client's timeout instead of http.DefaultClient's unbounded one.
func newClientCredentialsSource(
	ctx context.Context,
	clientID, clientSecret, tokenURL, resourceURL string,
	client *http.Client,
) oauth2.TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{strings.TrimSuffix(resourceURL, "/") + "/.default"},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	return cfg.TokenSource(ctx)
}
