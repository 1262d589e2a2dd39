package transport

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetNormalize(t *testing.T) {
	t.Parallel()

	u, err := url.Parse("https://org.crm.dynamics.com/api/data/v9.1/accounts")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "https://org.crm.dynamics.com/api/data", nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		target   Target
		expected string
	}{
		{"from_string", TargetFromString("/api/data/v9.1/accounts"), "/api/data/v9.1/accounts"},
		{"from_url", TargetFromURL(u), "https://org.crm.dynamics.com/api/data/v9.1/accounts"},
		{"from_request", TargetFromRequest(req), "https://org.crm.dynamics.com/api/data"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			raw, err := tc.target.Normalize()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, raw)
		})
	}
}

func TestTargetNormalizeEmpty(t *testing.T) {
	t.Parallel()

	for _, target := range []Target{
		TargetFromString(""),
		TargetFromURL(nil),
		TargetFromRequest(nil),
	} {
		_, err := target.Normalize()
		assert.ErrorIs(t, err, ErrEmptyTarget)
	}
}
