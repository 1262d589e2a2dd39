// Package transport intercepts outgoing HTTP requests, classifies them
// against the protected Dataverse API, and attaches bearer credentials to
// targeted calls. Classified failures surface as synthetic responses, never
// as errors: callers written against ordinary response handling keep working.
package transport

import (
	"errors"
	"net/http"
	"net/url"
)

// ErrEmptyTarget is returned when a request target carries no URL at all.
var ErrEmptyTarget = errors.New("request target has no URL")

// targetKind discriminates the input shapes a request URL can arrive in.
type targetKind int

const (
	targetString targetKind = iota
	targetURL
	targetRequest
)

// Target is the tagged union over the three shapes callers supply a request
// URL in: a bare string, a parsed *url.URL, or a full *http.Request. One
// constructor exists per shape; Normalize is the single point where they
// collapse into a raw URL string for classification.
type Target struct {
	kind targetKind
	str  string
	url  *url.URL
	req  *http.Request
}

// TargetFromString builds a Target from a raw URL string (relative or
// absolute).
func TargetFromString(raw string) Target {
	return Target{kind: targetString, str: raw}
}

// TargetFromURL builds a Target from a parsed URL.
func TargetFromURL(u *url.URL) Target {
	return Target{kind: targetURL, url: u}
}

// TargetFromRequest builds a Target from a request object.
func TargetFromRequest(r *http.Request) Target {
	return Target{kind: targetRequest, req: r}
}

// Normalize reduces the target to the raw URL string used for
// classification.
func (t Target) Normalize() (string, error) {
	switch t.kind {
	case targetURL:
		if t.url == nil {
			return "", ErrEmptyTarget
		}
		return t.url.String(), nil
	case targetRequest:
		if t.req == nil || t.req.URL == nil {
			return "", ErrEmptyTarget
		}
		return t.req.URL.String(), nil
	default:
		if t.str == "" {
			return "", ErrEmptyTarget
		}
		return t.str, nil
	}
}
