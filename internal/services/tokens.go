package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultTokenLeeway = 60 * time.Second

// TokenFetcher obtains a fresh app token.
type TokenFetcher func(ctx context.Context) (*oauth2.Token, error)

// TokenCache holds the client-credentials token used for catalog reads.
//
// The cached token is never mutated; a refresh swaps in a new value.
// Each service owns its cache so no token state is shared between processes or tests.
type TokenCache struct {
	mu     sync.RWMutex
	token  *oauth2.Token
	fetch  TokenFetcher
	leeway time.Duration
	now    func() time.Time
}

// NewTokenCache wraps fetch, refreshing once the token is within leeway of expiry.
func NewTokenCache(fetch TokenFetcher, leeway time.Duration) *TokenCache {
	if leeway <= 0 {
		leeway = defaultTokenLeeway
	}
	return &TokenCache{fetch: fetch, leeway: leeway, now: time.Now}
}

// ClientCredentialsFetcher fetches app tokens from the Spotify accounts service.
func ClientCredentialsFetcher(clientID, clientSecret, tokenURL string) TokenFetcher {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return cfg.Token
}

// Token returns a valid access token, refreshing it when needed.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}
	return c.refresh(ctx)
}

// Invalidate drops the cached token, forcing the next call to refresh.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usable(c.token)
}

func (c *TokenCache) usable(tok *oauth2.Token) (string, bool) {
	if tok == nil || tok.AccessToken == "" {
		return "", false
	}
	if !tok.Expiry.IsZero() && tok.Expiry.Sub(c.now()) <= c.leeway {
		return "", false
	}
	return tok.AccessToken, true
}

func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok, ok := c.usable(c.token); ok {
		return tok, nil
	}
	if c.fetch == nil {
		return "", fmt.Errorf("token cache: no fetcher configured")
	}

	tok, err := c.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("token cache: refresh: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", fmt.Errorf("token cache: refresh returned empty token")
	}
	c.token = tok
	return tok.AccessToken, nil
}
