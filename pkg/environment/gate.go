// Package environment guards credential handling against accidental use in
// production. Every setup path must call AssertNonProduction before touching
// credential material.
package environment

import (
	"fmt"
	"os"
	"strings"
)

// EnvVarName is the process environment variable consulted by the gate. Its
// exact name is a convention shared with the deployment tooling, not owned by
// this package.
const EnvVarName = "APP_ENV"

// productionMarker is the value that denies all operation, compared
// case-insensitively.
const productionMarker = "production"

// Reader abstracts environment variable access for testing.
type Reader interface {
	Getenv(key string) string
}

// OSReader reads from the real process environment.
type OSReader struct{}

// Getenv returns the value of the environment variable.
func (*OSReader) Getenv(key string) string {
	return os.Getenv(key)
}

// AssertNonProduction returns a fatal, clearly-labeled error when the process
// environment indicates a production context. There is no recovery path:
// callers must abort setup entirely.
func AssertNonProduction(r Reader) error {
	if r == nil {
		r = &OSReader{}
	}

	value := strings.TrimSpace(r.Getenv(EnvVarName))
	if strings.EqualFold(value, productionMarker) {
		return fmt.Errorf(
			"SECURITY: dataverse-devauth must not run in a production environment (%s=%q); "+
				"this tool attaches development credentials and is restricted to dev/test use",
			EnvVarName, value,
		)
	}

	return nil
}
