package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLITokenSourceParsesOutput(t *testing.T) {
	t.Parallel()

	src := NewCLITokenSource("https://org.crm.dynamics.com")
	src.runner = func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "az", name)
		assert.Contains(t, args, "get-access-token")
		assert.Contains(t, args, "https://org.crm.dynamics.com")
		return []byte(`{
			"accessToken": "cli-access-token-value",
			"expiresOn": "2026-03-01 13:45:00.000000",
			"tokenType": "Bearer"
		}`), nil
	}

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "cli-access-token-value", tok.AccessToken)
	assert.False(t, tok.Expiry.IsZero())
}

func TestCLITokenSourceCommandFailure(t *testing.T) {
	t.Parallel()

	src := NewCLITokenSource("https://org.crm.dynamics.com")
	src.runner = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("az: command not found")
	}

	_, err := src.Token()
	assert.Error(t, err)
}

func TestCLITokenSourceMissingAccessToken(t *testing.T) {
	t.Parallel()

	src := NewCLITokenSource("https://org.crm.dynamics.com")
	src.runner = func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"tokenType": "Bearer"}`), nil
	}

	_, err := src.Token()
	assert.Error(t, err)
}

func TestParseExpiresOn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantZero bool
	}{
		{"cli_format_with_micros", "2026-03-01 13:45:00.000000", false},
		{"cli_format_plain", "2026-03-01 13:45:00", false},
		{"rfc3339", "2026-03-01T13:45:00Z", false},
		{"empty", "", true},
		{"garbage", "not a timestamp", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := parseExpiresOn(tc.input)
			assert.Equal(t, tc.wantZero, got.IsZero())
			if !tc.wantZero {
				assert.Equal(t, 2026, got.Year())
				assert.Equal(t, time.March, got.Month())
			}
		})
	}
}
