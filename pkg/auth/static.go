package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// StaticTokenSource implements oauth2.TokenSource for a fixed token value.
// It backs mock-token setups, where tests need deterministic credentials
// without touching any real identity provider.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a StaticTokenSource with the provided value.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// Token returns an oauth2.Token with the static value as the access token.
func (s *StaticTokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{
		AccessToken: s.token,
		TokenType:   "Bearer",
		Expiry:      time.Time{}, // static tokens do not expire
	}, nil
}
