package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clinkchat/clinkchat-server/internal/store"
)

func (h *Hub) handleGive(c *Client, cmd *slashCommand) {
	if cmd.amount < 1 || cmd.amount > h.cfg.Economy.GiveMax {
		h.sendError(c, ErrCodeValidation, fmt.Sprintf("Amount must be between 1 and %d coins.", h.cfg.Economy.GiveMax))
		return
	}
	if strings.EqualFold(cmd.target, c.Username) {
		h.sendError(c, ErrCodeValidation, "You cannot give coins to yourself.")
		return
	}

	target, err := h.st.GetUserByUsername(h.ctx, cmd.target)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.sendError(c, ErrCodeValidation, fmt.Sprintf("User %q does not exist.", cmd.target))
			return
		}
		h.sendError(c, ErrCodeStore, "Could not transfer coins.")
		return
	}

	if _, _, err := h.coins.Transfer(h.ctx, c.Username, target.Username, cmd.amount); err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			balance, _ := h.coins.Balance(h.ctx, c.Username)
			h.sendError(c, ErrCodeConflict, fmt.Sprintf("You only have %d coins.", balance))
			return
		}
		h.sendError(c, ErrCodeStore, "Could not transfer coins.")
		return
	}

	h.metrics.CoinsMoved(cmd.amount)
	h.broadcastSystem(c.Room, fmt.Sprintf("💸 %s gave %d coins to %s!", c.Username, cmd.amount, target.Username))
}

func (h *Hub) handleDuel(c *Client, cmd *slashCommand) {
	if cmd.amount < 1 || cmd.amount > h.cfg.Economy.DuelMax {
		h.sendError(c, ErrCodeValidation, fmt.Sprintf("Bet must be 1-%d coins.", h.cfg.Economy.DuelMax))
		return
	}
	if strings.EqualFold(cmd.target, c.Username) {
		h.sendError(c, ErrCodeValidation, "You cannot duel yourself.")
		return
	}

	target := h.clientByUsername(cmd.target)
	if target == nil {
		h.sendError(c, ErrCodeValidation, fmt.Sprintf("User %q is not online.", cmd.target))
		return
	}

	balance, err := h.coins.Balance(h.ctx, c.Username)
	if err != nil {
		h.sendError(c, ErrCodeStore, "Could not check balance.")
		return
	}
	if balance < cmd.amount {
		h.sendError(c, ErrCodeConflict, fmt.Sprintf("You only have %d coins.", balance))
		return
	}

	h.duels[strings.ToLower(target.Username)] = &pendingDuel{
		from:      c.Username,
		amount:    cmd.amount,
		room:      c.Room,
		expiresAt: h.now().Add(h.cfg.Economy.DuelTimeout),
	}
	h.broadcastSystem(c.Room, fmt.Sprintf(
		"🎲 %s challenges %s to a coinflip for %d coins! Type /accept or /decline (%ds)",
		c.Username, target.Username, cmd.amount, int(h.cfg.Economy.DuelTimeout.Seconds())))
}

func (h *Hub) handleAccept(c *Client) {
	key := strings.ToLower(c.Username)
	duel, ok := h.duels[key]
	if !ok {
		h.sendSystem(c, "No pending duel.")
		return
	}
	if h.now().After(duel.expiresAt) {
		delete(h.duels, key)
		h.sendSystem(c, "That duel has expired.")
		return
	}
	delete(h.duels, key)

	// Deduct the accepter first, then the challenger. If the challenger
	// went insolvent since the challenge, the accepter is refunded.
	if _, err := h.coins.Deduct(h.ctx, c.Username, duel.amount); err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			h.sendError(c, ErrCodeConflict, "You don't have enough coins.")
			return
		}
		h.sendError(c, ErrCodeStore, "Could not run the duel.")
		return
	}
	if _, err := h.coins.Deduct(h.ctx, duel.from, duel.amount); err != nil {
		if _, refundErr := h.coins.Add(h.ctx, c.Username, duel.amount); refundErr != nil {
			h.log.Error().Err(refundErr).Str("user", c.Username).Msg("failed to refund duel stake")
		}
		if errors.Is(err, store.ErrInsufficientFunds) {
			h.sendError(c, ErrCodeRaceLost, fmt.Sprintf("%s no longer has enough coins.", duel.from))
			return
		}
		h.sendError(c, ErrCodeStore, "Could not run the duel.")
		return
	}

	winner, loser := c.Username, duel.from
	if h.rng.Intn(2) == 0 {
		winner, loser = duel.from, c.Username
	}
	prize := duel.amount * 2
	if _, err := h.coins.Add(h.ctx, winner, prize); err != nil {
		h.log.Error().Err(err).Str("user", winner).Msg("failed to pay duel prize")
	}

	h.metrics.CoinsMoved(duel.amount)
	h.broadcastSystem(c.Room, fmt.Sprintf("🎲 COINFLIP: %s wins %d coins from %s! 🏆", winner, prize, loser))
}

func (h *Hub) handleDecline(c *Client) {
	key := strings.ToLower(c.Username)
	duel, ok := h.duels[key]
	if !ok {
		h.sendSystem(c, "No pending duel.")
		return
	}
	delete(h.duels, key)
	h.broadcastSystem(c.Room, fmt.Sprintf("%s declined the duel from %s.", c.Username, duel.from))
}

// pruneExpiredDuels silently drops challenges nobody answered in time.
func (h *Hub) pruneExpiredDuels() {
	now := h.now()
	for key, duel := range h.duels {
		if now.After(duel.expiresAt) {
			delete(h.duels, key)
		}
	}
}

// handleRob attempts to steal a percentage of the target's balance. Low
// percentages have good odds; the odds fall off sharply as the percentage
// grows. Failure costs the caller double the attempted amount, paid to the
// target.
func (h *Hub) handleRob(c *Client, cmd *slashCommand) {
	if strings.EqualFold(cmd.target, c.Username) {
		h.sendError(c, ErrCodeValidation, "You cannot rob yourself.")
		return
	}

	target, err := h.st.GetUserByUsername(h.ctx, cmd.target)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.sendError(c, ErrCodeValidation, fmt.Sprintf("User %q does not exist.", cmd.target))
			return
		}
		h.sendError(c, ErrCodeStore, "Could not attempt robbery.")
		return
	}

	targetBalance, err := h.coins.Balance(h.ctx, target.Username)
	if err != nil {
		h.sendError(c, ErrCodeStore, "Could not attempt robbery.")
		return
	}
	if targetBalance <= 0 {
		h.sendSystem(c, fmt.Sprintf("%s has no coins to rob.", target.Username))
		return
	}

	robAmount := targetBalance * int64(cmd.percent) / 100
	if robAmount < 1 {
		robAmount = 1
	}

	ratio := float64(cmd.percent) / h.cfg.Economy.RobFalloff
	odds := h.cfg.Economy.RobBaseOdds / (1 + ratio*ratio)

	if h.rng.Float64() < odds {
		if _, _, err := h.coins.Transfer(h.ctx, target.Username, c.Username, robAmount); err != nil {
			if errors.Is(err, store.ErrInsufficientFunds) {
				h.sendError(c, ErrCodeRaceLost, fmt.Sprintf("%s no longer has enough coins.", target.Username))
				return
			}
			h.sendError(c, ErrCodeStore, "Could not attempt robbery.")
			return
		}
		h.metrics.CoinsMoved(robAmount)
		h.broadcastSystem(c.Room, fmt.Sprintf("💰 %s robbed %s of %d coins!", c.Username, target.Username, robAmount))
		return
	}

	penalty := h.cfg.Economy.RobPenaltyFactor * robAmount
	if _, _, err := h.coins.Transfer(h.ctx, c.Username, target.Username, penalty); err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			// The caller can't cover the penalty: abort cleanly, nothing moves.
			h.sendError(c, ErrCodeConflict, fmt.Sprintf(
				"You need %d coins to cover a failed robbery penalty. Robbery aborted.", penalty))
			return
		}
		h.sendError(c, ErrCodeStore, "Could not attempt robbery.")
		return
	}
	h.metrics.CoinsMoved(penalty)
	h.broadcastSystem(c.Room, fmt.Sprintf(
		"🚨 %s tried to rob %s, failed, and paid a %d coin penalty!", c.Username, target.Username, penalty))
}

// handleCoins sets a balance directly. Administrator only.
func (h *Hub) handleCoins(c *Client, cmd *slashCommand) {
	if !strings.EqualFold(c.Username, h.cfg.AdminUser) {
		h.sendError(c, ErrCodeForbidden, "Only the administrator can do that.")
		return
	}
	if cmd.amount < 0 {
		h.sendError(c, ErrCodeValidation, "Amount must be non-negative.")
		return
	}

	target, err := h.st.GetUserByUsername(h.ctx, cmd.target)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.sendError(c, ErrCodeValidation, fmt.Sprintf("User %q does not exist.", cmd.target))
			return
		}
		h.sendError(c, ErrCodeStore, "Could not set balance.")
		return
	}

	if _, err := h.coins.Set(h.ctx, target.Username, cmd.amount); err != nil {
		h.sendError(c, ErrCodeStore, "Could not set balance.")
		return
	}
	h.broadcastSystem(c.Room, fmt.Sprintf("⚙️ %s set %s's balance to %d coins.", c.Username, target.Username, cmd.amount))
}
