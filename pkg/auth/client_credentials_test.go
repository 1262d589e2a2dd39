package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCredentialsRequiresEnv(t *testing.T) { //nolint:paralleltest // mutates process env
	t.Setenv(EnvTenantID, "tenant-id")
	t.Setenv(EnvClientID, "client-id")
	t.Setenv(EnvClientSecret, "")

	_, err := NewClientCredentialsSource(context.Background(), "https://org.crm.dynamics.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestClientCredentialsFromEnv(t *testing.T) { //nolint:paralleltest // mutates process env
	t.Setenv(EnvTenantID, "tenant-id")
	t.Setenv(EnvClientID, "client-id")
	t.Setenv(EnvClientSecret, "client-secret")

	src, err := NewClientCredentialsSource(context.Background(), "https://org.crm.dynamics.com")
	require.NoError(t, err)
	assert.NotNil(t, src)
}

func TestClientCredentialsHangingEndpointTimesOut(t *testing.T) {
	t.Parallel()

	// The handler never responds; it holds the connection open until the
	// client gives up. The token source must fail within its client timeout
	// rather than block the provider chain.
	//
	// The handler cannot rely on r.Context() alone to unblock: the request
	// body is never read, so the server never observes the client disconnect
	// and srv.Close would wait forever on the stuck handlers. A cleanup
	// registered after srv.Close (cleanups run last-in-first-out) releases
	// the handlers first.
	unblock := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-unblock:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(unblock) })

	client := &http.Client{Timeout: 100 * time.Millisecond}
	src := newClientCredentialsSource(context.Background(),
		"client-id", "client-secret", srv.URL, "https://org.crm.dynamics.com", client)

	start := time.Now()
	_, err := src.Token()
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
