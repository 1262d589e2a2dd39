package auth

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// cliTimeout bounds the CLI invocation. A hung CLI must not hang the
// interceptor; the caller converts a timeout into "no token".
const cliTimeout = 15 * time.Second

// expiresOnLayouts are the timestamp formats the CLI is known to emit.
var expiresOnLayouts = []string{
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// commandRunner abstracts process execution so tests can stub the CLI.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CLITokenSource obtains a token from the local developer's CLI session
// (`az account get-access-token`). It is the first provider in the chain:
// on a developer workstation it reuses the already-established login.
type CLITokenSource struct {
	resourceURL string
	runner      commandRunner
}

// NewCLITokenSource creates a CLITokenSource for the given resource URL.
func NewCLITokenSource(resourceURL string) *CLITokenSource {
	return &CLITokenSource{
		resourceURL: resourceURL,
		runner:      execRunner,
	}
}

// Token invokes the CLI and parses the JSON output.
func (s *CLITokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	out, err := s.runner(ctx, "az",
		"account", "get-access-token",
		"--resource", s.resourceURL,
		"--output", "json",
	)
	if err != nil {
		return nil, fmt.Errorf("cli credential unavailable: %w", err)
	}

	accessToken := gjson.GetBytes(out, "accessToken").String()
	if accessToken == "" {
		return nil, fmt.Errorf("cli credential output missing accessToken")
	}

	return &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		Expiry:      parseExpiresOn(gjson.GetBytes(out, "expiresOn").String()),
	}, nil
}

// parseExpiresOn parses the CLI's expiresOn field, returning the zero time
// when the format is unrecognized (callers fall back to the fixed cache
// lifetime).
func parseExpiresOn(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range expiresOnLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return ts
		}
	}
	return time.Time{}
}
