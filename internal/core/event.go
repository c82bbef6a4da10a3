package core

import (
	"time"

	"github.com/clinkchat/clinkchat-server/internal/preview"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventSystem is a system notice, either private or room-wide.
	EventSystem EventKind = iota
	// EventChat carries a chat or action message in a room.
	EventChat
	// EventDM carries a direct message, delivered to both parties.
	EventDM
	// EventHistory delivers recent messages to a client entering a room.
	EventHistory
	// EventRoomsList delivers the room directory.
	EventRoomsList
	// EventUserList delivers the presence roster of a room.
	EventUserList
	// EventTyping delivers the current typing summary line of a room.
	EventTyping
	// EventPollUpdate announces a new poll or a vote change.
	EventPollUpdate
	// EventPollConcluded announces a finished poll with its result line.
	EventPollConcluded
	// EventReactionUpdate delivers fresh reaction counts for a message.
	EventReactionUpdate
	// EventLinkPreview delivers an asynchronously fetched link preview.
	EventLinkPreview
	// EventCoinsUpdate pushes the client's own balance.
	EventCoinsUpdate
	// EventKicked tells the client it is being disconnected.
	EventKicked
	// EventRoomChanged confirms the client's room switch.
	EventRoomChanged
	// EventRoomRequiresCode asks the client for a private-room code.
	EventRoomRequiresCode
	// EventKeypadError reports a wrong private-room code.
	EventKeypadError
	// EventRoomCreated returns the new room and its code to the creator.
	EventRoomCreated
	// EventRoomCodeChanged returns the rotated code to the owner.
	EventRoomCodeChanged
	// EventConfirmChangepass asks the owner to confirm a code rotation.
	EventConfirmChangepass
	// EventRoomActivity marks a room as having unread activity.
	EventRoomActivity
	// EventError notifies the client about a domain error.
	EventError
)

// ChatMessage is the client-facing view of a message.
type ChatMessage struct {
	ID        int64
	Room      string
	Sender    string
	Recipient string
	Color     string
	Type      string
	Text      string
	ClientID  string
	Timestamp time.Time
}

// RoomEntry is one row of the room directory. OwnerCode is set only on
// entries the recipient owns.
type RoomEntry struct {
	Name      string
	IsPrivate bool
	IsOwner   bool
	OwnerCode string
}

// UserEntry is one row of a room's presence roster.
type UserEntry struct {
	Username string
	Color    string
	JoinedAt time.Time
	Idle     bool
}

// PollView is the client-facing view of a poll.
type PollView struct {
	ID        int64
	Room      string
	Question  string
	Options   []string
	Votes     map[string]string
	EndsAt    time.Time
	Concluded bool
}

// ReactionView carries fresh reaction counts for a message.
type ReactionView struct {
	MessageID int64
	Counts    map[string]int
}

// BalanceView pushes a coin balance to its owner.
type BalanceView struct {
	Username string
	Coins    int64
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Room     string
	Text     string
	Code     string // owner code for EventRoomCreated / EventRoomCodeChanged
	Message  *ChatMessage
	Messages []ChatMessage // for EventHistory
	Rooms    []RoomEntry
	Users    []UserEntry
	Poll     *PollView
	Reaction *ReactionView
	Preview  *preview.Preview
	Balance  *BalanceView
	Error    *CoreError
}
