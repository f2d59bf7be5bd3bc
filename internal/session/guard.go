package session

import (
	"sync"

	"github.com/google/uuid"
)

// Token identifies a single connection attempt. The zero value never
// matches a live attempt.
type Token string

// Guard issues tokens and tracks the current one.
type Guard struct {
	mu      sync.RWMutex
	current Token
}

// Mint issues a fresh token and makes it current, superseding any
// previously issued token.
func (g *Guard) Mint() Token {
	tok := Token(uuid.NewString())

	g.mu.Lock()
	g.current = tok
	g.mu.Unlock()

	return tok
}

// Current returns the current token, or "" if none.
func (g *Guard) Current() Token {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// IsCurrent reports whether tok is still the authoritative attempt.
func (g *Guard) IsCurrent(tok Token) bool {
	if tok == "" {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current == tok
}

// Revoke leaves no token current. Outstanding callbacks become stale.
func (g *Guard) Revoke() {
	g.mu.Lock()
	g.current = ""
	g.mu.Unlock()
}

// Short returns an abbreviated form for log fields.
func (t Token) Short() string {
	if len(t) > 8 {
		return string(t[:8])
	}
	return string(t)
}
