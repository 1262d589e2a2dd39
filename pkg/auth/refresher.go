package auth

import (
	"context"
	"sync"
	"time"

	"github.com/stacklok/dataverse-devauth/pkg/logger"
	"github.com/stacklok/dataverse-devauth/pkg/sanitize"
)

// Refresher re-resolves the credential on a fixed interval and writes the
// result into the cache. Its failures are caught and reported, never
// propagated to unrelated callers. Mock-token setups do not run a refresher.
type Refresher struct {
	cache    *Cache
	resolver *Resolver
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	timer *time.Timer
}

// NewRefresher creates a Refresher writing into cache on the given interval.
func NewRefresher(cache *Cache, resolver *Resolver, interval time.Duration) *Refresher {
	return &Refresher{
		cache:    cache,
		resolver: resolver,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background refresh loop. The loop exits when ctx is
// canceled or Stop is called.
func (r *Refresher) Start(ctx context.Context) {
	r.timer = time.NewTimer(r.interval)
	go r.loop(ctx)
}

// Stop terminates the refresh loop and waits for it to exit, so that no
// in-flight tick can write to the cache after Stop returns.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.doneCh)
	defer r.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-r.timer.C:
			r.tick(ctx)
			r.timer.Reset(r.interval)
		}
	}
}

// tick performs one refresh attempt. The generation captured before the
// resolve guards against a reset racing with a slow provider: a stale result
// is dropped on the floor.
func (r *Refresher) tick(ctx context.Context) {
	gen := r.cache.Generation()

	token, err := r.resolver.Resolve(ctx)
	if err != nil {
		logger.Warnw("token refresh failed", "error", sanitize.Error(err))
		return
	}
	if token == "" {
		logger.Warn("token refresh produced no token; keeping current cache entry")
		return
	}

	if !r.cache.SetIfGeneration(token, gen) {
		logger.Debug("token refresh discarded: cache was reset during resolution")
		return
	}
	logger.Debug("token refreshed")
}

func (r *Refresher) stopTimer() {
	if r.timer != nil && !r.timer.Stop() {
		select {
		case <-r.timer.C:
		default:
		}
	}
}
