package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// sequenceSource returns tokens from a list, one per call, then repeats the
// last entry. Safe for concurrent use.
type sequenceSource struct {
	mu     sync.Mutex
	tokens []string
	calls  int
}

func (s *sequenceSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	if idx >= len(s.tokens) {
		idx = len(s.tokens) - 1
	}
	s.calls++
	return &oauth2.Token{AccessToken: s.tokens[idx], TokenType: "Bearer"}, nil
}

func (s *sequenceSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRefresherUpdatesCache(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	src := &sequenceSource{tokens: []string{"refreshed-token-value"}}
	resolver, err := NewResolverWithSource("https://org.crm.dynamics.com", nil, src)
	require.NoError(t, err)

	refresher := NewRefresher(cache, resolver, 20*time.Millisecond)
	refresher.Start(context.Background())
	defer refresher.Stop()

	assert.Eventually(t, func() bool {
		token, ok := cache.Get()
		return ok && token == "refreshed-token-value"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRefresherStopPreventsFurtherWrites(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	src := &sequenceSource{tokens: []string{"token-one", "token-two"}}
	resolver, err := NewResolverWithSource("https://org.crm.dynamics.com", nil, src)
	require.NoError(t, err)

	refresher := NewRefresher(cache, resolver, 10*time.Millisecond)
	refresher.Start(context.Background())

	assert.Eventually(t, func() bool {
		_, ok := cache.Get()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	refresher.Stop()
	cache.Clear()

	// No tick after Stop may repopulate the cache.
	callsAtStop := src.callCount()
	time.Sleep(50 * time.Millisecond)
	_, ok := cache.Get()
	assert.False(t, ok)
	assert.Equal(t, callsAtStop, src.callCount())
}

func TestRefresherGenerationGuard(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	gen := cache.Generation()

	cache.Clear() // bump generation, as a session reset would

	assert.False(t, cache.SetIfGeneration("stale-resolved-token", gen))
	_, ok := cache.Get()
	assert.False(t, ok)
}
