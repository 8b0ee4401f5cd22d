package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TokenSource fetches the current list of bearer tokens from the adjacent
// auth service that owns token issuance; battlescope only rotates and
// retires them.
type TokenSource interface {
	FetchTokens(ctx context.Context) ([]string, error)
}

// TokenPool round-robins bearer tokens for authenticated endpoints, caching
// the token list for 5 minutes and forcing a refresh whenever a token is
// marked failed (401/403).
type TokenPool struct {
	source TokenSource

	mu       sync.Mutex
	tokens   []string
	failed   map[string]bool
	next     int
	fetched  time.Time
	cacheTTL time.Duration
}

func NewTokenPool(source TokenSource) *TokenPool {
	return &TokenPool{
		source:   source,
		failed:   make(map[string]bool),
		cacheTTL: 5 * time.Minute,
	}
}

var ErrNoTokensAvailable = errors.New("identity: no usable bearer tokens in pool")

// Next returns the next usable token, refreshing the pool from the token
// source if the cache is stale or empty.
func (p *TokenPool) Next(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.fetched) > p.cacheTTL || len(p.tokens) == 0 {
		if err := p.refreshLocked(ctx); err != nil {
			return "", err
		}
	}

	for i := 0; i < len(p.tokens); i++ {
		idx := (p.next + i) % len(p.tokens)
		token := p.tokens[idx]
		if !p.failed[token] {
			p.next = idx + 1
			return token, nil
		}
	}

	// Every cached token has failed; force a fresh fetch once before giving up.
	if err := p.refreshLocked(ctx); err != nil {
		return "", err
	}
	for _, token := range p.tokens {
		if !p.failed[token] {
			return token, nil
		}
	}
	return "", ErrNoTokensAvailable
}

// MarkFailed flags a token that drew a 401/403 and forces the next Next call
// to refetch the token list. The refetch clears every flag, so a token the
// source still returns is handed out again.
func (p *TokenPool) MarkFailed(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[token] = true
	p.fetched = time.Time{}
}

func (p *TokenPool) refreshLocked(ctx context.Context) error {
	tokens, err := p.source.FetchTokens(ctx)
	if err != nil {
		return err
	}
	p.tokens = tokens
	p.failed = make(map[string]bool)
	p.fetched = time.Now()
	p.next = 0
	return nil
}
