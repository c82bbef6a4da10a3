package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clinkchat/clinkchat-server/internal/auth"
	"github.com/clinkchat/clinkchat-server/internal/store"
)

// sendRoomsList delivers the room directory to one client.
func (h *Hub) sendRoomsList(c *Client) {
	rooms, err := h.st.ListRooms(h.ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		h.sendError(c, ErrCodeStore, "Could not load rooms.")
		return
	}

	entries := make([]RoomEntry, 0, len(rooms))
	for _, r := range rooms {
		entry := RoomEntry{
			Name:      r.Name,
			IsPrivate: r.IsPrivate,
			IsOwner:   strings.EqualFold(r.Creator, c.Username),
		}
		// Owners can always read their room's code back.
		if entry.IsOwner {
			entry.OwnerCode = r.OwnerCode
		}
		entries = append(entries, entry)
	}
	c.send(&Event{Kind: EventRoomsList, Rooms: entries})
}

func (h *Hub) broadcastRoomsList() {
	for _, c := range h.sessions {
		h.sendRoomsList(c)
	}
}

// sendHistory delivers the room's recent messages plus the client's DMs,
// with sender colors resolved.
func (h *Hub) sendHistory(c *Client, room string) {
	msgs, err := h.st.ListRecent(h.ctx, room, c.Username, h.cfg.Chat.HistoryLimit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to load history")
		return
	}

	senders := make([]string, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.Sender]; !ok {
			seen[m.Sender] = struct{}{}
			senders = append(senders, m.Sender)
		}
	}
	colors, err := h.st.UserColors(h.ctx, senders)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to resolve history colors")
		colors = map[string]string{}
	}

	views := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, ChatMessage{
			ID:        m.ID,
			Room:      m.Room,
			Sender:    m.Sender,
			Recipient: m.Recipient,
			Color:     colors[m.Sender],
			Type:      string(m.Type),
			Text:      m.Text,
			ClientID:  m.ClientID,
			Timestamp: m.CreatedAt,
		})
	}
	c.send(&Event{Kind: EventHistory, Room: room, Messages: views})
}

// sendRoomPolls replays the room's recent polls to one client.
func (h *Hub) sendRoomPolls(c *Client, room string) {
	polls, err := h.st.ListRoomPolls(h.ctx, room, h.cfg.Chat.PollHistoryLimit)
	if err != nil {
		h.log.Warn().Err(err).Str("room", room).Msg("failed to load room polls")
		return
	}
	for _, p := range polls {
		c.send(&Event{Kind: EventPollUpdate, Room: room, Poll: pollView(p)})
	}
}

// placeInRoom registers the client in a room and sends the entry payloads.
func (h *Hub) placeInRoom(c *Client, room string) {
	c.Room = room
	h.memberSet(room).Add(c)
	c.send(&Event{Kind: EventRoomChanged, Room: room})
	h.sendHistory(c, room)
	h.sendRoomPolls(c, room)
	h.broadcastUserList(room)
}

// leaveCurrentRoom drops the client from its room's member and typing sets.
func (h *Hub) leaveCurrentRoom(c *Client) {
	room := c.Room
	if room == "" {
		return
	}
	c.Room = ""
	if set, ok := h.members[room]; ok {
		set.Remove(c)
	}
	if set, ok := h.typing[room]; ok && set.Contains(c.Username) {
		set.Remove(c.Username)
		h.broadcastTyping(room)
	}
	h.broadcastUserList(room)
}

// moveToRoom switches the client with leave/join announcements. The old
// room's member list is always left before the new one is joined.
func (h *Hub) moveToRoom(c *Client, room string) {
	old := c.Room
	h.leaveCurrentRoom(c)
	if old != "" {
		h.broadcastSystem(old, fmt.Sprintf("%s left #%s", c.Username, old))
	}
	h.placeInRoom(c, room)
	h.broadcastSystem(room, fmt.Sprintf("%s joined #%s", c.Username, room))
}

// SwitchRoom runs the join state machine: public rooms admit anyone, private
// rooms require ownership, a grant, or the correct code. A ban blocks entry
// regardless of any grant.
func (h *Hub) SwitchRoom(c *Client, roomName, code string) {
	if !h.registered(c) {
		return
	}
	roomName = strings.ToLower(strings.TrimSpace(roomName))
	if roomName == "" || roomName == c.Room {
		return
	}

	room, err := h.st.GetRoomByName(h.ctx, roomName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.sendError(c, ErrCodeValidation, "Room does not exist.")
			return
		}
		h.sendError(c, ErrCodeStore, "Could not load room.")
		return
	}

	if room.IsPrivate {
		banned, err := h.st.IsBanned(h.ctx, room.Name, c.Username)
		if err != nil {
			h.sendError(c, ErrCodeStore, "Could not check room access.")
			return
		}
		if banned {
			h.sendError(c, ErrCodeForbidden, "You are banned from this room.")
			return
		}

		if !strings.EqualFold(room.Creator, c.Username) {
			granted, err := h.st.HasAccess(h.ctx, c.Username, room.Name)
			if err != nil {
				h.sendError(c, ErrCodeStore, "Could not check room access.")
				return
			}
			if !granted {
				if code == "" {
					c.send(&Event{Kind: EventRoomRequiresCode, Room: room.Name})
					return
				}
				if auth.ComparePassword(room.PasswordHash, code) != nil {
					c.send(&Event{Kind: EventKeypadError, Room: room.Name, Text: "Wrong code."})
					return
				}
				if err := h.st.GrantAccess(h.ctx, c.Username, room.Name); err != nil {
					h.sendError(c, ErrCodeStore, "Could not save room access.")
					return
				}
			}
		}
	}

	h.moveToRoom(c, room.Name)
}

// ==== room commands ====

func (h *Hub) handleCreate(c *Client, cmd *slashCommand) {
	count, err := h.st.CountPrivateRooms(h.ctx, c.Username)
	if err != nil {
		h.sendError(c, ErrCodeStore, "Could not create room.")
		return
	}
	if count >= h.cfg.Economy.MaxPrivateRooms {
		h.sendError(c, ErrCodeConflict, fmt.Sprintf("You can only own %d private rooms.", h.cfg.Economy.MaxPrivateRooms))
		return
	}

	hash, err := auth.HashPassword(cmd.code)
	if err != nil {
		h.sendError(c, ErrCodeStore, "Could not create room.")
		return
	}

	room := &store.Room{
		Name:         cmd.room,
		IsPrivate:    true,
		PasswordHash: hash,
		OwnerCode:    cmd.code,
		Creator:      c.Username,
	}
	if err := h.st.CreateRoom(h.ctx, room); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			h.sendError(c, ErrCodeConflict, fmt.Sprintf("Room name %q is taken.", cmd.room))
			return
		}
		h.sendError(c, ErrCodeStore, "Could not create room.")
		return
	}
	if err := h.st.GrantAccess(h.ctx, c.Username, room.Name); err != nil {
		h.log.Warn().Err(err).Str("room", room.Name).Msg("failed to grant owner access")
	}

	// The code goes to the creator only.
	c.send(&Event{Kind: EventRoomCreated, Room: room.Name, Code: cmd.code})
	h.sendSystem(c, fmt.Sprintf("Room #%s created. Code: %s", room.Name, cmd.code))
	h.broadcastRoomsList()
}

func (h *Hub) handleDeleteRoom(c *Client, cmd *slashCommand) {
	room, err := h.st.GetRoomByName(h.ctx, cmd.room)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.sendError(c, ErrCodeValidation, "Room does not exist.")
			return
		}
		h.sendError(c, ErrCodeStore, "Could not delete room.")
		return
	}
	if !strings.EqualFold(room.Creator, c.Username) {
		h.sendError(c, ErrCodeForbidden, "Only the room owner can do that.")
		return
	}
	if room.Name == h.cfg.DefaultRoom {
		h.sendError(c, ErrCodeValidation, "The default room cannot be deleted.")
		return
	}

	if err := h.st.DeleteRoom(h.ctx, room.Name); err != nil {
		h.sendError(c, ErrCodeStore, "Could not delete room.")
		return
	}

	// Relocate everyone still inside, the owner included.
	for _, member := range h.roomClients(room.Name) {
		h.sendSystem(member, fmt.Sprintf("Room #%s was deleted. You were moved to #%s.", room.Name, h.cfg.DefaultRoom))
		h.moveToRoom(member, h.cfg.DefaultRoom)
	}
	delete(h.members, room.Name)
	delete(h.typing, room.Name)

	h.broadcastRoomsList()
	h.sendSystem(c, fmt.Sprintf("Room #%s deleted.", room.Name))
}

func (h *Hub) handleJoinRoom(c *Client, cmd *slashCommand) {
	// The full state machine decides between direct entry and the
	// code-entry flow.
	h.SwitchRoom(c, cmd.room, "")
}

func (h *Hub) handleLeaveRoom(c *Client) {
	if c.Room == h.cfg.DefaultRoom {
		h.sendSystem(c, fmt.Sprintf("You are already in #%s.", h.cfg.DefaultRoom))
		return
	}
	h.moveToRoom(c, h.cfg.DefaultRoom)
}

// ownedCurrentRoom loads the client's current room and verifies private
// ownership. Emits the denial itself and returns nil when the caller may not
// moderate it.
func (h *Hub) ownedCurrentRoom(c *Client) *store.Room {
	room, err := h.st.GetRoomByName(h.ctx, c.Room)
	if err != nil {
		h.sendError(c, ErrCodeStore, "Could not load room.")
		return nil
	}
	if !room.IsPrivate || !strings.EqualFold(room.Creator, c.Username) {
		h.sendError(c, ErrCodeForbidden, "Only the room owner can do that.")
		return nil
	}
	return room
}

func (h *Hub) handleKick(c *Client, cmd *slashCommand) {
	room := h.ownedCurrentRoom(c)
	if room == nil {
		return
	}

	target := h.clientByUsername(cmd.target)
	if target == nil || target.Room != room.Name {
		h.sendError(c, ErrCodeValidation, fmt.Sprintf("User %q is not in this room.", cmd.target))
		return
	}
	if target == c {
		h.sendError(c, ErrCodeValidation, "You cannot kick yourself.")
		return
	}

	if err := h.st.RevokeAccess(h.ctx, target.Username, room.Name); err != nil {
		h.sendError(c, ErrCodeStore, "Could not kick user.")
		return
	}

	h.sendSystem(target, fmt.Sprintf("You were kicked from #%s.", room.Name))
	h.moveToRoom(target, h.cfg.DefaultRoom)
	h.broadcastSystem(room.Name, fmt.Sprintf("%s was kicked from #%s.", target.Username, room.Name))
}

func (h *Hub) handleBan(c *Client, cmd *slashCommand) {
	room := h.ownedCurrentRoom(c)
	if room == nil {
		return
	}
	if strings.EqualFold(cmd.target, c.Username) {
		h.sendError(c, ErrCodeValidation, "You cannot ban yourself.")
		return
	}

	if err := h.st.AddBan(h.ctx, room.Name, cmd.target, c.Username); err != nil {
		h.sendError(c, ErrCodeStore, "Could not ban user.")
		return
	}

	// Evict the target if currently inside; offline targets are still
	// blocked on their next join attempt.
	if target := h.clientByUsername(cmd.target); target != nil && target.Room == room.Name {
		h.sendSystem(target, fmt.Sprintf("You were banned from #%s.", room.Name))
		h.moveToRoom(target, h.cfg.DefaultRoom)
	}
	h.broadcastSystem(room.Name, fmt.Sprintf("%s was banned from #%s.", cmd.target, room.Name))
}

func (h *Hub) handleUnban(c *Client, cmd *slashCommand) {
	room := h.ownedCurrentRoom(c)
	if room == nil {
		return
	}
	if err := h.st.RemoveBan(h.ctx, room.Name, cmd.target); err != nil {
		h.sendError(c, ErrCodeStore, "Could not unban user.")
		return
	}
	h.sendSystem(c, fmt.Sprintf("%s is no longer banned from #%s.", cmd.target, room.Name))
}

func (h *Hub) handleChangepass(c *Client, cmd *slashCommand) {
	room := h.ownedCurrentRoom(c)
	if room == nil {
		return
	}
	// The rotation needs an explicit confirmation round-trip because it
	// revokes every other member's grant.
	c.send(&Event{
		Kind: EventConfirmChangepass,
		Room: room.Name,
		Code: cmd.code,
		Text: fmt.Sprintf("Changing the code for #%s will revoke everyone's access. Confirm?", room.Name),
	})
}

// ConfirmChangepass completes the code rotation after the client confirmed.
func (h *Hub) ConfirmChangepass(c *Client, roomName, newCode string) {
	if !h.registered(c) {
		return
	}
	if !roomCodeRe.MatchString(newCode) {
		h.sendError(c, ErrCodeValidation, "Room code must be 1-9 digits.")
		return
	}

	room, err := h.st.GetRoomByName(h.ctx, strings.ToLower(roomName))
	if err != nil {
		h.sendError(c, ErrCodeValidation, "Room does not exist.")
		return
	}
	if !room.IsPrivate || !strings.EqualFold(room.Creator, c.Username) {
		h.sendError(c, ErrCodeForbidden, "Only the room owner can do that.")
		return
	}

	hash, err := auth.HashPassword(newCode)
	if err != nil {
		h.sendError(c, ErrCodeStore, "Could not change room code.")
		return
	}
	if err := h.st.UpdateRoomCode(h.ctx, room.Name, hash, newCode); err != nil {
		h.sendError(c, ErrCodeStore, "Could not change room code.")
		return
	}
	if err := h.st.RevokeAllAccess(h.ctx, room.Name, c.Username); err != nil {
		h.sendError(c, ErrCodeStore, "Could not revoke room access.")
		return
	}

	// Everyone but the owner loses access and is moved out.
	for _, member := range h.roomClients(room.Name) {
		if member == c {
			continue
		}
		h.sendSystem(member, fmt.Sprintf("The code for #%s was changed. You were moved to #%s.", room.Name, h.cfg.DefaultRoom))
		h.moveToRoom(member, h.cfg.DefaultRoom)
	}

	c.send(&Event{Kind: EventRoomCodeChanged, Room: room.Name, Code: newCode})
	h.sendSystem(c, fmt.Sprintf("Code for #%s changed to %s.", room.Name, newCode))
}
