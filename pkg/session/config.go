// Package session wires the environment gate, credential resolver, token
// cache, and request interceptor into a single setup entry point with a
// disposable handle. Setup is the only way credential material enters the
// process; Close is the only way it leaves.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/dataverse-devauth/pkg/validation"
)

// Refresh interval bounds. Values outside this range are configuration
// errors, rejected at setup.
const (
	MinRefreshInterval = time.Minute
	MaxRefreshInterval = time.Hour

	// DefaultRefreshInterval is used when the caller does not supply one.
	DefaultRefreshInterval = 30 * time.Minute
)

// MinMockTokenLength is the minimum accepted mock token length.
const MinMockTokenLength = 10

// Configuration errors.
var (
	ErrMissingDataverseURL = errors.New("dataverse URL is required")
	ErrRefreshInterval     = fmt.Errorf("token refresh interval must be between %s and %s inclusive", MinRefreshInterval, MaxRefreshInterval)
	ErrMockTokenTooShort   = fmt.Errorf("mock token must be at least %d characters", MinMockTokenLength)
)

// Config is the immutable setup configuration. Validate is called by Setup;
// after Setup succeeds the configuration is never re-read.
type Config struct {
	// DataverseURL is the protected API's base URL. Required, HTTPS, and
	// must match an allow-listed Dataverse domain shape (or appear in
	// AllowedDomains).
	DataverseURL string

	// TokenRefreshInterval is the periodic refresh cadence. Zero selects
	// DefaultRefreshInterval; otherwise it must be within
	// [MinRefreshInterval, MaxRefreshInterval].
	TokenRefreshInterval time.Duration

	// EnableConsoleLogging turns on debug-level diagnostics.
	EnableConsoleLogging bool

	// MockToken, when set, bypasses credential resolution entirely:
	// targeted requests are served canned responses and no refresher runs.
	MockToken string

	// AllowedDomains extends the host allow-list for custom deployments.
	AllowedDomains []string

	// PathPrefix overrides the targeted path prefix. Defaults to
	// validation.DefaultPathPrefix.
	PathPrefix string

	// InstallGlobalTransport additionally swaps http.DefaultTransport for
	// the interceptor, for intercepting unmodified third-party code. The
	// explicit Session.Client is the preferred surface.
	InstallGlobalTransport bool
}

// Validate checks the configuration shape. It does not touch the network or
// any credential source.
func (c *Config) Validate() error {
	if c.DataverseURL == "" {
		return ErrMissingDataverseURL
	}
	if err := validation.ValidateResourceURL(c.DataverseURL, c.AllowedDomains); err != nil {
		return fmt.Errorf("invalid dataverse URL: %w", err)
	}

	if c.TokenRefreshInterval != 0 &&
		(c.TokenRefreshInterval < MinRefreshInterval || c.TokenRefreshInterval > MaxRefreshInterval) {
		return ErrRefreshInterval
	}

	if c.MockToken != "" && len(c.MockToken) < MinMockTokenLength {
		return ErrMockTokenTooShort
	}

	return nil
}

// refreshInterval returns the effective refresh cadence.
func (c *Config) refreshInterval() time.Duration {
	if c.TokenRefreshInterval == 0 {
		return DefaultRefreshInterval
	}
	return c.TokenRefreshInterval
}
