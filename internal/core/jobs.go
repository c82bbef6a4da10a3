package core

import (
	"fmt"
	"time"
)

// scheduleNextClaim picks a random moment in the configured window for the
// next claim event.
func (h *Hub) scheduleNextClaim() {
	minDelay := h.cfg.Economy.ClaimMinDelay
	maxDelay := h.cfg.Economy.ClaimMaxDelay
	delay := minDelay
	if maxDelay > minDelay {
		delay = minDelay + time.Duration(h.rng.Int63n(int64(maxDelay-minDelay)))
	}
	h.nextClaimAt = h.now().Add(delay)
}

// checkClaim expires an unclaimed event and spawns the next one when due.
// Runs on the claim ticker.
func (h *Hub) checkClaim() {
	now := h.now()

	if h.claim != nil && now.After(h.claim.expiresAt) {
		h.claim = nil
		h.broadcastSystemAll("⏰ Nobody claimed the reward in time! Better luck next time.")
	}

	if h.claim == nil && !h.nextClaimAt.IsZero() && now.After(h.nextClaimAt) {
		h.claim = &claimEvent{expiresAt: now.Add(h.cfg.Economy.ClaimLifetime)}
		h.broadcastSystemAll(fmt.Sprintf("🎁 TYPE \"claim\" FOR %d FREE COINS! First person wins!", h.cfg.Economy.ClaimReward))
		h.scheduleNextClaim()
	}
}

// handleClaim resolves a claim attempt. The event is cleared before the
// reward is credited, so of two near-simultaneous claimants exactly one
// wins and the other observes no active claim.
func (h *Hub) handleClaim(c *Client) bool {
	if h.claim == nil {
		return false
	}
	if h.now().After(h.claim.expiresAt) {
		h.claim = nil
		return false
	}

	h.claim = nil

	if _, err := h.coins.Add(h.ctx, c.Username, h.cfg.Economy.ClaimReward); err != nil {
		h.log.Error().Err(err).Str("user", c.Username).Msg("failed to credit claim reward")
		return true
	}
	h.metrics.ClaimWon()
	h.broadcastSystemAll(fmt.Sprintf("🎉 %s claimed the reward and won %d coins!", c.Username, h.cfg.Economy.ClaimReward))
	return true
}
