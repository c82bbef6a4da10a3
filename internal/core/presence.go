package core

import (
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set"
)

// broadcastUserList pushes the current roster of a room to everyone in it.
func (h *Hub) broadcastUserList(room string) {
	clients := h.roomClients(room)
	if len(clients) == 0 {
		return
	}

	now := h.now()
	users := make([]UserEntry, 0, len(clients))
	for _, c := range clients {
		users = append(users, UserEntry{
			Username: c.Username,
			Color:    c.Color,
			JoinedAt: c.JoinedAt,
			Idle:     now.Sub(c.LastActivity) > h.cfg.Chat.IdleThreshold,
		})
	}

	h.broadcastRoom(room, &Event{Kind: EventUserList, Room: room, Users: users})
}

// broadcastAllUserLists refreshes every occupied room's roster. Runs on the
// idle sweep so idle flags stay current without new events.
func (h *Hub) broadcastAllUserLists() {
	for room, set := range h.members {
		if set.Cardinality() > 0 {
			h.broadcastUserList(room)
		}
	}
}

// ==== typing indicators ====

func (h *Hub) typingSet(room string) mapset.Set {
	set, ok := h.typing[room]
	if !ok {
		set = mapset.NewThreadUnsafeSet()
		h.typing[room] = set
	}
	return set
}

// TypingStart marks the client as typing and schedules the auto-clear
// timer. Repeated keystrokes reset the timer.
func (h *Hub) TypingStart(c *Client) {
	if !h.registered(c) {
		return
	}

	room := c.Room
	h.typingSet(room).Add(c.Username)
	h.broadcastTyping(room)

	if t, ok := h.typingTimers[c.ID]; ok {
		t.Stop()
	}
	h.typingTimers[c.ID] = time.AfterFunc(h.cfg.Chat.TypingTimeout, func() {
		h.Do(func() { h.stopTyping(c) })
	})
}

// TypingStop clears the client's typing state immediately.
func (h *Hub) TypingStop(c *Client) {
	if !h.registered(c) {
		return
	}
	h.stopTyping(c)
}

// stopTyping removes the client from its room's typing set and cancels the
// pending auto-clear.
func (h *Hub) stopTyping(c *Client) {
	h.cancelTypingTimer(c)
	if set, ok := h.typing[c.Room]; ok && set.Contains(c.Username) {
		set.Remove(c.Username)
		h.broadcastTyping(c.Room)
	}
}

func (h *Hub) cancelTypingTimer(c *Client) {
	if t, ok := h.typingTimers[c.ID]; ok {
		t.Stop()
		delete(h.typingTimers, c.ID)
	}
}

// broadcastTyping summarizes zero/one/many typists into one line.
func (h *Hub) broadcastTyping(room string) {
	set, ok := h.typing[room]
	text := ""
	if ok {
		switch set.Cardinality() {
		case 0:
		case 1:
			name := set.ToSlice()[0].(string)
			text = fmt.Sprintf("%s is typing", name)
		default:
			text = "Multiple users are typing"
		}
	}
	h.broadcastRoom(room, &Event{Kind: EventTyping, Room: room, Text: text})
}
