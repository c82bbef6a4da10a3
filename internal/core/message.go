package core

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/clinkchat/clinkchat-server/internal/filter"
	"github.com/clinkchat/clinkchat-server/internal/store"
)

var colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// HandleChat is the inbound message pipeline: truncate, rate-limit, dispatch
// the claim keyword and slash commands, then persist and fan out plain chat.
func (h *Hub) HandleChat(c *Client, text, clientID string) {
	if !h.registered(c) {
		return
	}

	raw := strings.TrimSpace(text)
	if raw == "" {
		return
	}
	raw = truncateRunes(raw, h.cfg.Chat.MaxMessageLen)

	now := h.now()
	if now.Before(c.rl.mutedUntil) {
		secs := int(math.Ceil(c.rl.mutedUntil.Sub(now).Seconds()))
		h.sendSystem(c, fmt.Sprintf("You are muted for spamming. Try again in %ds.", secs))
		return
	}
	if now.After(c.rl.windowEnd) {
		c.rl.count = 0
		c.rl.windowEnd = now.Add(h.cfg.Chat.RateLimitWindow)
	}
	c.rl.count++
	if c.rl.count > h.cfg.Chat.RateLimitCount {
		c.rl.mutedUntil = now.Add(h.cfg.Chat.MuteDuration)
		h.sendSystem(c, fmt.Sprintf("You have been muted for %d seconds for sending too many messages.",
			int(h.cfg.Chat.MuteDuration.Seconds())))
		return
	}

	c.LastActivity = now
	h.stopTyping(c)

	if strings.EqualFold(raw, "claim") {
		if !h.handleClaim(c) {
			h.sendSystem(c, "There is no active claim event right now.")
		}
		return
	}

	if strings.HasPrefix(raw, "/") {
		cmd, usage := parseCommand(raw)
		if usage != "" {
			h.sendSystem(c, usage)
			return
		}
		if cmd != nil {
			h.dispatch(c, cmd)
			return
		}
		// Unknown commands fall through as plain chat.
	}

	h.handlePlainChat(c, raw, clientID)
}

func (h *Hub) dispatch(c *Client, cmd *slashCommand) {
	h.metrics.CommandDispatched(cmd.name)

	switch cmd.kind {
	case cmdMe:
		h.handleMe(c, cmd)
	case cmdMsg:
		h.handleMsg(c, cmd)
	case cmdPoll:
		h.handlePoll(c, cmd)
	case cmdCreate:
		h.handleCreate(c, cmd)
	case cmdDeleteRoom:
		h.handleDeleteRoom(c, cmd)
	case cmdJoinRoom:
		h.handleJoinRoom(c, cmd)
	case cmdLeaveRoom:
		h.handleLeaveRoom(c)
	case cmdKick:
		h.handleKick(c, cmd)
	case cmdBan:
		h.handleBan(c, cmd)
	case cmdUnban:
		h.handleUnban(c, cmd)
	case cmdChangepass:
		h.handleChangepass(c, cmd)
	case cmdGive:
		h.handleGive(c, cmd)
	case cmdDuel:
		h.handleDuel(c, cmd)
	case cmdAccept:
		h.handleAccept(c)
	case cmdDecline:
		h.handleDecline(c)
	case cmdRob:
		h.handleRob(c, cmd)
	case cmdCoins:
		h.handleCoins(c, cmd)
	case cmdHelp:
		h.handleHelp(c)
	}
}

// handlePlainChat persists and fans out ordinary chat text. Public rooms
// reject links and get banned words redacted; private rooms pass through
// and trigger an async link preview.
func (h *Hub) handlePlainChat(c *Client, raw, clientID string) {
	room := c.Room

	roomRec, err := h.st.GetRoomByName(h.ctx, room)
	isPrivate := err == nil && roomRec.IsPrivate

	url := filter.ExtractURL(raw)
	text := raw
	if !isPrivate {
		if url != "" {
			h.sendSystem(c, "Links are not allowed in public rooms.")
			return
		}
		text = h.filter.Redact(raw)
	}

	msg := &store.Message{
		Room:      room,
		Sender:    c.Username,
		Type:      store.MessageTypeChat,
		Text:      text,
		ClientID:  clientID,
		CreatedAt: h.now(),
	}
	if err := h.st.SaveMessage(h.ctx, msg); err != nil {
		h.log.Error().Err(err).Msg("failed to save message")
		h.sendError(c, ErrCodeStore, "Could not send message.")
		return
	}
	if err := h.st.IncrementMessages(h.ctx, c.Username); err != nil {
		h.log.Warn().Err(err).Str("user", c.Username).Msg("failed to bump message counter")
	}

	h.metrics.MessageProcessed("chat")
	h.broadcastRoom(room, &Event{Kind: EventChat, Room: room, Message: &ChatMessage{
		ID:        msg.ID,
		Room:      room,
		Sender:    c.Username,
		Color:     c.Color,
		Type:      string(store.MessageTypeChat),
		Text:      text,
		ClientID:  clientID,
		Timestamp: msg.CreatedAt,
	}})
	h.notifyRoomActivity(room)

	if _, err := h.coins.Add(h.ctx, c.Username, h.cfg.Economy.ChatReward); err != nil {
		h.log.Warn().Err(err).Str("user", c.Username).Msg("failed to award chat coin")
	}

	if isPrivate && url != "" && h.previews != nil {
		go h.fetchPreview(room, url)
	}
}

// notifyRoomActivity marks the room as having unread activity for every
// connection currently elsewhere.
func (h *Hub) notifyRoomActivity(room string) {
	ev := &Event{Kind: EventRoomActivity, Room: room}
	for _, c := range h.sessions {
		if c.Room != room {
			c.send(ev)
		}
	}
}

// fetchPreview runs off the hub goroutine; the result is posted back in.
func (h *Hub) fetchPreview(room, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Chat.PreviewTimeout)
	defer cancel()

	p := h.previews.Fetch(ctx, url)
	if p == nil {
		return
	}
	h.Do(func() {
		h.broadcastRoom(room, &Event{Kind: EventLinkPreview, Room: room, Preview: p})
	})
}

func (h *Hub) handleMe(c *Client, cmd *slashCommand) {
	room := c.Room
	msg := &store.Message{
		Room:      room,
		Sender:    c.Username,
		Type:      store.MessageTypeAction,
		Text:      cmd.text,
		CreatedAt: h.now(),
	}
	if err := h.st.SaveMessage(h.ctx, msg); err != nil {
		h.sendError(c, ErrCodeStore, "Could not send message.")
		return
	}

	h.metrics.MessageProcessed("action")
	h.broadcastRoom(room, &Event{Kind: EventChat, Room: room, Message: &ChatMessage{
		ID:        msg.ID,
		Room:      room,
		Sender:    c.Username,
		Color:     c.Color,
		Type:      string(store.MessageTypeAction),
		Text:      cmd.text,
		Timestamp: msg.CreatedAt,
	}})
}

func (h *Hub) handleMsg(c *Client, cmd *slashCommand) {
	target := h.clientByUsername(cmd.target)
	if target == nil {
		h.sendSystem(c, fmt.Sprintf("User %q is not online.", cmd.target))
		return
	}

	msg := &store.Message{
		Sender:    c.Username,
		Recipient: target.Username,
		Type:      store.MessageTypeDM,
		Text:      cmd.text,
		CreatedAt: h.now(),
	}
	if err := h.st.SaveMessage(h.ctx, msg); err != nil {
		h.sendError(c, ErrCodeStore, "Could not send message.")
		return
	}

	h.metrics.MessageProcessed("dm")
	view := &ChatMessage{
		ID:        msg.ID,
		Sender:    c.Username,
		Recipient: target.Username,
		Color:     c.Color,
		Type:      string(store.MessageTypeDM),
		Text:      cmd.text,
		Timestamp: msg.CreatedAt,
	}
	c.send(&Event{Kind: EventDM, Message: view})
	if target != c {
		target.send(&Event{Kind: EventDM, Message: view})
	}
}

func (h *Hub) handleHelp(c *Client) {
	lines := []string{
		"Available commands:",
		"/me action — describe an action",
		"/msg user text — direct message",
		`/poll "Question?" Opt1 Opt2 — start a 5 minute poll`,
		"/create room code — create a private room (code is 1-9 digits)",
		"/deleteroom room — delete a private room you own",
		"/joinroom room — join a private room",
		"/leaveroom — return to the default room",
		"/kick user — kick from your room",
		"/ban user, /unban user — manage room bans",
		"/changepass code — rotate your room's code",
		fmt.Sprintf("/give user amount — gift coins (1-%d)", h.cfg.Economy.GiveMax),
		fmt.Sprintf("/duel user amount — coinflip wager (1-%d)", h.cfg.Economy.DuelMax),
		"/accept, /decline — answer a duel",
		"/rob user percent — attempt a robbery (risky!)",
		`claim — grab an active claim event`,
	}
	if strings.EqualFold(c.Username, h.cfg.AdminUser) {
		lines = append(lines, "/coins user amount — set a balance (admin)")
	}
	h.sendSystem(c, strings.Join(lines, "\n"))
}

// ==== reactions and profile ====

const maxEmojiRunes = 8

// React sets or replaces the client's emoji reaction on a message.
func (h *Hub) React(c *Client, messageID int64, emoji string) {
	if !h.registered(c) {
		return
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len([]rune(emoji)) > maxEmojiRunes {
		h.sendError(c, ErrCodeValidation, "Invalid reaction.")
		return
	}

	if err := h.st.UpsertReaction(h.ctx, messageID, c.Username, emoji); err != nil {
		h.sendError(c, ErrCodeStore, "Could not save reaction.")
		return
	}
	h.broadcastReactionCounts(c, messageID)
}

// Unreact removes the client's reaction from a message.
func (h *Hub) Unreact(c *Client, messageID int64) {
	if !h.registered(c) {
		return
	}
	if err := h.st.RemoveReaction(h.ctx, messageID, c.Username); err != nil {
		h.sendError(c, ErrCodeStore, "Could not remove reaction.")
		return
	}
	h.broadcastReactionCounts(c, messageID)
}

func (h *Hub) broadcastReactionCounts(c *Client, messageID int64) {
	counts, err := h.st.ReactionCounts(h.ctx, messageID)
	if err != nil {
		h.log.Warn().Err(err).Int64("message", messageID).Msg("failed to load reaction counts")
		return
	}
	h.broadcastRoom(c.Room, &Event{Kind: EventReactionUpdate, Room: c.Room, Reaction: &ReactionView{
		MessageID: messageID,
		Counts:    counts,
	}})
}

// ColorUpdate changes the client's display color.
func (h *Hub) ColorUpdate(c *Client, color string) {
	if !h.registered(c) {
		return
	}
	if !colorRe.MatchString(color) {
		h.sendError(c, ErrCodeValidation, "Color must be a #rrggbb hex value.")
		return
	}

	if err := h.st.UpdateColor(h.ctx, c.Username, color); err != nil {
		h.sendError(c, ErrCodeStore, "Could not update color.")
		return
	}
	c.Color = color
	h.broadcastUserList(c.Room)
}
