package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/dataverse-devauth/pkg/validation"
)

func newTestClassifier(t *testing.T) *validation.Classifier {
	t.Helper()
	c, err := validation.NewClassifier("https://org.crm.dynamics.com", "", nil)
	require.NoError(t, err)
	return c
}

func TestNewClassifier(t *testing.T) {
	t.Parallel()

	t.Run("defaults_path_prefix", func(t *testing.T) {
		t.Parallel()
		c, err := validation.NewClassifier("https://org.crm.dynamics.com", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "/api/data", c.PathPrefix())
		assert.Equal(t, "https://org.crm.dynamics.com", c.BaseURL())
	})

	t.Run("normalizes_prefix_slash", func(t *testing.T) {
		t.Parallel()
		c, err := validation.NewClassifier("https://org.crm.dynamics.com", "api/custom", nil)
		require.NoError(t, err)
		assert.Equal(t, "/api/custom", c.PathPrefix())
	})

	t.Run("strips_base_path", func(t *testing.T) {
		t.Parallel()
		c, err := validation.NewClassifier("https://org.crm.dynamics.com/some/path?x=1", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "https://org.crm.dynamics.com", c.BaseURL())
	})

	t.Run("rejects_http_base", func(t *testing.T) {
		t.Parallel()
		_, err := validation.NewClassifier("http://org.crm.dynamics.com", "", nil)
		assert.Error(t, err)
	})

	t.Run("rejects_unlisted_domain", func(t *testing.T) {
		t.Parallel()
		_, err := validation.NewClassifier("https://evil.example.com", "", nil)
		assert.Error(t, err)
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)

	tests := []struct {
		name          string
		input         string
		wantTargeted  bool
		wantRewritten string
	}{
		{
			"relative_prefix_with_query",
			"/api/data/v9.1/accounts?$top=1",
			true,
			"https://org.crm.dynamics.com/api/data/v9.1/accounts?$top=1",
		},
		{
			"relative_prefix_no_leading_slash",
			"api/data/v9.1/accounts",
			true,
			"https://org.crm.dynamics.com/api/data/v9.1/accounts",
		},
		{
			"same_origin_non_prefix",
			"/accounts?$top=1",
			false,
			"/accounts?$top=1",
		},
		{
			"absolute_target",
			"https://org.crm.dynamics.com/api/data/v9.1/contacts",
			true,
			"https://org.crm.dynamics.com/api/data/v9.1/contacts",
		},
		{
			"absolute_target_host_case_insensitive",
			"https://ORG.crm.dynamics.com/api/data/v9.1/contacts",
			true,
			"https://ORG.crm.dynamics.com/api/data/v9.1/contacts",
		},
		{
			"absolute_external_domain",
			"https://example.com/api/data/v9.1/accounts",
			false,
			"https://example.com/api/data/v9.1/accounts",
		},
		{
			"absolute_other_dataverse_org",
			"https://other.crm.dynamics.com/api/data/v9.1/accounts",
			false,
			"https://other.crm.dynamics.com/api/data/v9.1/accounts",
		},
		{
			"absolute_target_host_wrong_path",
			"https://org.crm.dynamics.com/other/path",
			false,
			"https://org.crm.dynamics.com/other/path",
		},
		{
			// The prefix text in a query string alone must not classify the
			// request as targeted.
			"prefix_only_in_query_string",
			"https://org.crm.dynamics.com/search?q=/api/data/v9.1",
			false,
			"https://org.crm.dynamics.com/search?q=/api/data/v9.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result, err := c.Classify(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTargeted, result.IsTargetAPI)
			assert.Equal(t, tc.wantRewritten, result.RewrittenURL)
		})
	}
}

func TestClassifyValidationFailures(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)

	inputs := []string{
		"",
		"/api/data/v9.1/test?param=javascript:alert(1)",
		"http://org.crm.dynamics.com/api/data",
		"/api/data/v9.1/accounts\r\nHost: evil",
	}

	for _, input := range inputs {
		_, err := c.Classify(input)
		assert.Error(t, err, "expected validation error for %q", input)
	}
}

func TestClassifyExtraDomains(t *testing.T) {
	t.Parallel()

	c, err := validation.NewClassifier(
		"https://dataverse.internal.example.com", "",
		[]string{"dataverse.internal.example.com", "alt.internal.example.com"},
	)
	require.NoError(t, err)

	result, err := c.Classify("https://alt.internal.example.com/api/data/v9.1/accounts")
	require.NoError(t, err)
	assert.True(t, result.IsTargetAPI)

	result, err = c.Classify("https://unlisted.internal.example.com/api/data/v9.1/accounts")
	require.NoError(t, err)
	assert.False(t, result.IsTargetAPI)
}
