package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/stacklok/dataverse-devauth/pkg/networking"
)

const (
	// imdsEndpoint is the instance metadata service token endpoint. IMDS is
	// only reachable from inside a host with an assigned identity.
	imdsEndpoint = "http://169.254.169.254/metadata/identity/oauth2/token"

	imdsAPIVersion = "2018-02-01"

	// imdsTimeout is deliberately short: off-host, the link-local address
	// does not answer, and the chain should move on quickly.
	imdsTimeout = 3 * time.Second

	maxIMDSResponseSize = 1 << 20
)

// ManagedIdentityTokenSource obtains a token from the host's instance
// metadata service. It is the second provider in the chain, serving CI
// agents and cloud-hosted dev boxes that run under an assigned identity.
type ManagedIdentityTokenSource struct {
	resourceURL string
	endpoint    string
	client      *http.Client
}

// NewManagedIdentityTokenSource creates a ManagedIdentityTokenSource for the
// given resource URL.
func NewManagedIdentityTokenSource(resourceURL string) (*ManagedIdentityTokenSource, error) {
	// IMDS lives on a link-local address over plain HTTP, so both the
	// private-IP guard and the HTTPS-only validation are lifted for this one
	// fixed endpoint.
	client, err := networking.NewHttpClientBuilder().
		WithTimeout(imdsTimeout).
		WithPrivateIPs(true).
		WithoutURLValidation().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create IMDS client: %w", err)
	}

	return &ManagedIdentityTokenSource{
		resourceURL: resourceURL,
		endpoint:    imdsEndpoint,
		client:      client,
	}, nil
}

// Token requests a token from the metadata service.
func (s *ManagedIdentityTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), imdsTimeout)
	defer cancel()

	query := url.Values{
		"api-version": {imdsAPIVersion},
		"resource":    {s.resourceURL},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create IMDS request: %w", err)
	}
	req.Header.Set("Metadata", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("managed identity unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("managed identity endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIMDSResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read IMDS response: %w", err)
	}

	accessToken := gjson.GetBytes(body, "access_token").String()
	if accessToken == "" {
		return nil, fmt.Errorf("IMDS response missing access_token")
	}

	var expiry time.Time
	if expiresIn := gjson.GetBytes(body, "expires_in").Int(); expiresIn > 0 {
		expiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}

	return &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
