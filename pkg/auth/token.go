// Package auth resolves and caches bearer tokens for the Dataverse Web API.
// Tokens come from an ordered chain of credential providers; a single-slot
// cache holds the most recent token for the lifetime of a session.
package auth

import (
	"errors"
	"fmt"
	"unicode"
)

// MinTokenLength is the minimum plausible length for a bearer token. Shorter
// values are treated as resolution failures, never attached to requests.
const MinTokenLength = 10

// Common errors
var (
	ErrNoToken          = errors.New("no credential provider returned a token")
	ErrImplausibleToken = errors.New("resolved token failed plausibility check")
)

// CheckTokenShape sanity-checks a resolved token before it is trusted. A
// token failing this check is a resolution failure, not a value to attach.
func CheckTokenShape(token string) error {
	if len(token) < MinTokenLength {
		return fmt.Errorf("%w: shorter than %d characters", ErrImplausibleToken, MinTokenLength)
	}
	for _, r := range token {
		if unicode.IsSpace(r) {
			return fmt.Errorf("%w: contains whitespace", ErrImplausibleToken)
		}
	}
	return nil
}
