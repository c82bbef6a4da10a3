package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTokenInvalid is returned when a handoff token is unknown, expired, or
// already redeemed.
var ErrTokenInvalid = errors.New("invalid or expired token")

// DefaultHandoffTTL is how long a minted handoff token stays redeemable.
const DefaultHandoffTTL = 30 * time.Second

type handoffEntry struct {
	username  string
	expiresAt time.Time
}

// Handoff issues short-lived single-use tokens that bridge the HTTP login
// session to the realtime connection. A token is consumed on first redeem.
type Handoff struct {
	mu     sync.Mutex
	tokens map[string]handoffEntry
	ttl    time.Duration
	now    func() time.Time
}

// NewHandoff creates a handoff token registry with the given TTL.
func NewHandoff(ttl time.Duration) *Handoff {
	if ttl <= 0 {
		ttl = DefaultHandoffTTL
	}
	return &Handoff{
		tokens: make(map[string]handoffEntry),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mint issues a new token bound to the username.
func (h *Handoff) Mint(username string) (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(b)

	h.mu.Lock()
	h.tokens[token] = handoffEntry{
		username:  username,
		expiresAt: h.now().Add(h.ttl),
	}
	h.mu.Unlock()

	return token, nil
}

// Redeem consumes the token and returns the bound username. A token redeems
// at most once; a second attempt fails even inside the TTL.
func (h *Handoff) Redeem(token string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.tokens[token]
	if !ok {
		return "", ErrTokenInvalid
	}
	delete(h.tokens, token)

	if h.now().After(entry.expiresAt) {
		return "", ErrTokenInvalid
	}
	return entry.username, nil
}

// Run prunes expired tokens until the context is cancelled.
func (h *Handoff) Run(ctx context.Context) {
	ticker := time.NewTicker(h.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.prune()
		}
	}
}

func (h *Handoff) prune() {
	now := h.now()
	h.mu.Lock()
	for token, entry := range h.tokens {
		if now.After(entry.expiresAt) {
			delete(h.tokens, token)
		}
	}
	h.mu.Unlock()
}
