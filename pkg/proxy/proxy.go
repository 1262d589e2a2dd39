// Package proxy runs a local development proxy in front of a Dataverse
// environment. Requests under the protected API prefix are authenticated with
// the session's cached token and forwarded upstream; everything else is
// forwarded to the application dev server, with a small fetch-wrapping
// snippet injected into HTML pages so browser code gets the same treatment.
package proxy

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stacklok/dataverse-devauth/pkg/logger"
	"github.com/stacklok/dataverse-devauth/pkg/networking"
	"github.com/stacklok/dataverse-devauth/pkg/sanitize"
	"github.com/stacklok/dataverse-devauth/pkg/session"
)

//go:embed assets/inject.js
var snippetTemplate []byte

const (
	tokenPath         = "/_devauth/token"
	metricsPath       = "/metrics"
	readHeaderTimeout = 10 * time.Second
)

// Config holds the listen address and the optional application upstream.
type Config struct {
	// Host to bind. Defaults to 127.0.0.1.
	Host string

	// Port to listen on. Required for Start.
	Port int

	// AppURL is the upstream serving the application pages (a front-end dev
	// server). Optional; without it, non-API paths return 404.
	AppURL string
}

// Proxy serves the authenticated API proxy, the token endpoint, the browser
// snippet, and the metrics endpoint from a single listener.
type Proxy struct {
	cfg     Config
	sess    *session.Session
	handler http.Handler
	snippet []byte
	metrics *metrics

	mutex    sync.Mutex
	server   *http.Server
	listener net.Listener
	stopped  bool
}

// New builds a proxy around an established session. The session stays owned
// by the caller; stopping the proxy does not close it.
func New(sess *session.Session, cfg Config) (*Proxy, error) {
	if sess == nil {
		return nil, errors.New("session is required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}

	p := &Proxy{
		cfg:     cfg,
		sess:    sess,
		metrics: newMetrics(),
	}

	prefix := strings.TrimSuffix(sess.Classifier().PathPrefix(), "/")
	p.snippet = bytes.ReplaceAll(snippetTemplate, []byte("__API_PREFIX__"), []byte(prefix))

	apiHandler, err := p.newAPIHandler()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)

	r.Get(tokenPath, p.instrument("token", p.handleToken))
	r.Get(snippetPath, p.instrument("snippet", p.handleSnippet))
	r.Handle(metricsPath, p.metrics.handler())

	// Bare prefix and everything under it both route to the API proxy.
	r.Handle(prefix, apiHandler)
	r.Handle(prefix+"/*", apiHandler)

	if cfg.AppURL != "" {
		appHandler, err := p.newAppHandler(cfg.AppURL)
		if err != nil {
			return nil, err
		}
		r.NotFound(appHandler.ServeHTTP)
	}

	p.handler = r
	return p, nil
}

// Handler exposes the proxy's routing tree for embedding in another server.
func (p *Proxy) Handler() http.Handler {
	return p.handler
}

// newAPIHandler builds the reverse proxy for targeted API calls. The
// session's intercepting transport does the classification, credential
// attachment, and synthetic error responses; the director only points the
// request at the upstream host.
func (p *Proxy) newAPIHandler() (http.Handler, error) {
	base, err := url.Parse(p.sess.Classifier().BaseURL())
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}

	rp := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = base.Scheme
			req.URL.Host = base.Host
			req.Host = base.Host
		},
		Transport:     p.sess.Client().Transport,
		FlushInterval: -1,
		ModifyResponse: func(resp *http.Response) error {
			p.metrics.observe("api", resp.StatusCode)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Errorw("upstream request failed",
				"url", sanitize.RedactURL(r.URL.String()),
				"error", sanitize.Error(err),
			)
			p.metrics.observe("api", http.StatusBadGateway)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return rp, nil
}

// newAppHandler builds the reverse proxy for application pages, injecting the
// browser snippet into HTML responses.
func (p *Proxy) newAppHandler(appURL string) (http.Handler, error) {
	target, err := url.Parse(appURL)
	if err != nil {
		return nil, fmt.Errorf("invalid app URL: %w", err)
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	director := rp.Director
	rp.Director = func(req *http.Request) {
		director(req)
		// Identity encoding keeps HTML responses rewritable.
		req.Header.Set("Accept-Encoding", "identity")
	}
	rp.ModifyResponse = func(resp *http.Response) error {
		p.metrics.observe("app", resp.StatusCode)
		return injectResponse(resp)
	}
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Errorw("app upstream request failed",
			"url", sanitize.RedactURL(r.URL.String()),
			"error", sanitize.Error(err),
		)
		p.metrics.observe("app", http.StatusBadGateway)
		w.WriteHeader(http.StatusBadGateway)
	}
	return rp, nil
}

// handleToken hands the session's current token to same-origin browser code.
func (p *Proxy) handleToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	token, ok := p.sess.Token()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "No token available")
		return
	}
	fmt.Fprint(w, token)
}

func (p *Proxy) handleSnippet(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	if _, err := w.Write(p.snippet); err != nil {
		logger.Debugf("failed to write snippet response: %v", err)
	}
}

// Start listens and serves in the background. It returns once the listener
// is bound; serve errors after that are logged, not returned.
func (p *Proxy) Start(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stopped {
		return errors.New("proxy already stopped")
	}
	if p.server != nil {
		return errors.New("proxy already started")
	}
	if !networking.IsAvailable(p.cfg.Port) {
		return fmt.Errorf("port %d is not available", p.cfg.Port)
	}

	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	p.listener = ln

	p.server = &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              addr,
		Handler:           p.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	server := p.server
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("dev proxy stopped with error: %v", err)
		}
	}()

	logger.Infof("dev proxy listening on %s", addr)
	return nil
}

// Stop shuts down the listener. It is safe to call more than once.
func (p *Proxy) Stop(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stopped || p.server == nil {
		return nil
	}
	p.stopped = true

	if err := p.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dev proxy shutdown failed: %w", err)
	}
	p.server = nil
	logger.Info("dev proxy stopped")
	return nil
}

// instrument records a request counter for a named route.
func (p *Proxy) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		p.metrics.observe(route, sw.status)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestIDMiddleware tags every request with a correlation ID for log
// stitching across the proxy and the upstream.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		logger.Debugw("proxying request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
		)
		next.ServeHTTP(w, r)
	})
}
