package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		DataverseURL: "https://org.crm.dynamics.com",
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	t.Run("minimal_valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing_url", func(t *testing.T) {
		t.Parallel()
		cfg := Config{}
		assert.ErrorIs(t, cfg.Validate(), ErrMissingDataverseURL)
	})

	t.Run("http_url", func(t *testing.T) {
		t.Parallel()
		cfg := Config{DataverseURL: "http://org.crm.dynamics.com"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("unlisted_domain", func(t *testing.T) {
		t.Parallel()
		cfg := Config{DataverseURL: "https://evil.example.com"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("custom_domain_via_allowed_domains", func(t *testing.T) {
		t.Parallel()
		cfg := Config{
			DataverseURL:   "https://dataverse.internal.example.com",
			AllowedDomains: []string{"dataverse.internal.example.com"},
		}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("short_mock_token", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MockToken = "short"
		assert.ErrorIs(t, cfg.Validate(), ErrMockTokenTooShort)
	})

	t.Run("mock_token_min_length", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MockToken = "0123456789"
		assert.NoError(t, cfg.Validate())
	})
}

func TestRefreshIntervalBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		interval  time.Duration
		expectErr bool
	}{
		{"zero_selects_default", 0, false},
		{"exactly_min", 60_000 * time.Millisecond, false},
		{"one_ms_below_min", 59_999 * time.Millisecond, true},
		{"exactly_max", 3_600_000 * time.Millisecond, false},
		{"one_ms_above_max", 3_600_001 * time.Millisecond, true},
		{"mid_range", 15 * time.Minute, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			cfg.TokenRefreshInterval = tc.interval
			err := cfg.Validate()
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrRefreshInterval)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRefreshIntervalDefault(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	assert.Equal(t, DefaultRefreshInterval, cfg.refreshInterval())

	cfg.TokenRefreshInterval = 5 * time.Minute
	assert.Equal(t, 5*time.Minute, cfg.refreshInterval())
}
