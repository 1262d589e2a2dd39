package transport

import (
	"net/http"
	"sync"

	"github.com/stacklok/dataverse-devauth/pkg/logger"
)

// Global-install adapter. The primary surface is the explicit *http.Client a
// session hands out, but some environments need to intercept third-party code
// that uses http.DefaultTransport unmodified. Install swaps the process-wide
// default transport for the interceptor; Uninstall restores it.
var (
	installMu       sync.Mutex
	installed       bool
	originalDefault http.RoundTripper
)

// Install replaces http.DefaultTransport with the interceptor. A second call
// before Uninstall is a no-op with a warning: stacking interceptors would
// double-wrap every request.
//
// The interceptor's base transport is fixed at construction; an interceptor
// built with a nil Base already forwards to the transport that was the
// default at that time, so no field write happens here and in-flight round
// trips never race the install.
func Install(i *Interceptor) {
	installMu.Lock()
	defer installMu.Unlock()

	if installed {
		logger.Warn("request interceptor already installed; ignoring duplicate install")
		return
	}

	originalDefault = http.DefaultTransport
	http.DefaultTransport = i
	installed = true
	logger.Debug("request interceptor installed on default transport")
}

// Uninstall restores the original default transport. Idempotent.
func Uninstall() {
	installMu.Lock()
	defer installMu.Unlock()

	if !installed {
		return
	}

	http.DefaultTransport = originalDefault
	originalDefault = nil
	installed = false
	logger.Debug("request interceptor removed from default transport")
}

// Installed reports whether the global adapter is active.
func Installed() bool {
	installMu.Lock()
	defer installMu.Unlock()
	return installed
}
