package session

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/viper"

	"github.com/stacklok/dataverse-devauth/pkg/auth"
	"github.com/stacklok/dataverse-devauth/pkg/environment"
	"github.com/stacklok/dataverse-devauth/pkg/logger"
	"github.com/stacklok/dataverse-devauth/pkg/sanitize"
	"github.com/stacklok/dataverse-devauth/pkg/transport"
	"github.com/stacklok/dataverse-devauth/pkg/validation"
)

// current guards against duplicate setup. At most one session exists at a
// time; a second Setup before Close returns the existing session with a
// warning instead of stacking interceptors.
var (
	currentMu sync.Mutex
	current   *Session
)

// Session is the disposable handle returned by Setup. It owns the cache, the
// refresher, and (optionally) the globally-installed transport; Close
// releases all three regardless of whether it is invoked explicitly or by the
// process-signal hook.
type Session struct {
	cfg        Config
	cache      *auth.Cache
	refresher  *auth.Refresher
	intercept  *transport.Interceptor
	classifier *validation.Classifier

	signalCh chan os.Signal

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

// Setup validates the environment and configuration, resolves an initial
// token (or installs the mock), and returns the session handle. Order
// matters: the production gate runs before any credential material is
// touched.
func Setup(ctx context.Context, cfg Config) (*Session, error) {
	if err := environment.AssertNonProduction(nil); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid setup configuration: %w", err)
	}

	currentMu.Lock()
	defer currentMu.Unlock()
	if current != nil {
		logger.Warn("setup already completed; ignoring duplicate setup call")
		return current, nil
	}

	if cfg.EnableConsoleLogging {
		viper.Set("debug", true)
		logger.Initialize()
	}

	classifier, err := validation.NewClassifier(cfg.DataverseURL, cfg.PathPrefix, cfg.AllowedDomains)
	if err != nil {
		return nil, fmt.Errorf("invalid setup configuration: %w", err)
	}

	s := &Session{
		cfg:        cfg,
		cache:      auth.NewCache(),
		classifier: classifier,
	}

	var resolver *auth.Resolver
	if cfg.MockToken != "" {
		// Mock setups never touch a real identity provider and are exempt
		// from periodic refresh.
		s.cache.Set(cfg.MockToken)
		logger.Info("session configured with mock token; requests will not reach a real upstream")
	} else {
		resolver, err = auth.NewResolver(ctx, cfg.DataverseURL, cfg.AllowedDomains)
		if err != nil {
			return nil, err
		}

		token, rerr := resolver.Resolve(ctx)
		if rerr != nil {
			return nil, rerr
		}
		if token != "" {
			s.cache.Set(token)
		} else {
			logger.Warn("initial credential resolution produced no token; targeted requests will receive 401 until a provider succeeds")
		}

		s.refresher = auth.NewRefresher(s.cache, resolver, cfg.refreshInterval())
		s.refresher.Start(ctx)
	}

	s.intercept = transport.NewInterceptor(transport.Options{
		Classifier: classifier,
		Cache:      s.cache,
		Resolver:   resolver,
		MockToken:  cfg.MockToken,
	})

	if cfg.InstallGlobalTransport {
		transport.Install(s.intercept)
	}

	s.hookSignals()

	current = s
	logger.Infow("dataverse dev session established",
		"target", sanitize.RedactURL(cfg.DataverseURL),
		"mock", cfg.MockToken != "",
	)
	return s, nil
}

// Client returns an http.Client whose transport intercepts and authenticates
// targeted requests. This is the preferred, explicitly-injected surface.
func (s *Session) Client() *http.Client {
	return &http.Client{Transport: s.intercept}
}

// Classifier exposes the session's request classifier. The dev proxy reuses
// it so that both execution surfaces make identical routing decisions.
func (s *Session) Classifier() *validation.Classifier {
	return s.classifier
}

// Token returns the currently cached token, if any. Read-only: the cache
// stays owned by the session.
func (s *Session) Token() (string, bool) {
	return s.cache.Get()
}

// Close tears the session down: it synchronously stops the refresher,
// overwrites and clears the cache, restores the default transport, and
// removes signal hooks. Idempotent; the signal hook and explicit disposal
// share this one release path.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.refresher != nil {
			s.refresher.Stop()
		}
		s.cache.Clear()

		if s.cfg.InstallGlobalTransport {
			transport.Uninstall()
		}

		if s.signalCh != nil {
			signal.Stop(s.signalCh)
			close(s.signalCh)
		}

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		currentMu.Lock()
		if current == s {
			current = nil
		}
		currentMu.Unlock()

		logger.Info("dataverse dev session closed")
	})
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// hookSignals ties session teardown to process shutdown so that interrupt
// and termination run the same cleanup as explicit disposal.
func (s *Session) hookSignals() {
	s.signalCh = make(chan os.Signal, 1)
	signal.Notify(s.signalCh, os.Interrupt, syscall.SIGTERM)

	ch := s.signalCh
	go func() {
		if _, ok := <-ch; ok {
			logger.Info("shutdown signal received; closing session")
			s.Close()
		}
	}()
}

// Reset closes the active session, if any. It exists for test harnesses that
// need a clean slate between cases.
func Reset() {
	currentMu.Lock()
	s := current
	currentMu.Unlock()

	if s != nil {
		s.Close()
	}
}
