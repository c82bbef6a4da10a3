package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin              = "join"
	InboundTypeSwitchRoom        = "switch_room"
	InboundTypeChatMessage       = "chat_message"
	InboundTypePollVote          = "poll_vote"
	InboundTypeTypingStart       = "typing_start"
	InboundTypeTypingStop        = "typing_stop"
	InboundTypeActivity          = "activity"
	InboundTypeReact             = "react"
	InboundTypeUnreact           = "unreact"
	InboundTypeColorUpdate       = "color_update"
	InboundTypeConfirmChangepass = "confirm_changepass"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventRoomsList         = "rooms_list"
	EventHistory           = "history"
	EventChatMessage       = "chat_message"
	EventSystemMessage     = "system_message"
	EventDM                = "dm"
	EventPollUpdate        = "poll_update"
	EventPollConcluded     = "poll_concluded"
	EventUserList          = "user_list"
	EventTyping            = "typing"
	EventReactionUpdate    = "reaction_update"
	EventLinkPreview       = "link_preview"
	EventCoinsUpdate       = "coins_update"
	EventKicked            = "kicked"
	EventRoomChanged       = "room_changed"
	EventRoomRequiresCode  = "room_requires_code"
	EventKeypadError       = "keypad_error"
	EventRoomCreated       = "room_created"
	EventRoomCodeChanged   = "room_code_changed"
	EventConfirmChangepass = "confirm_changepass"
	EventRoomActivity      = "room_activity"
)

// JoinData redeems a handoff token minted by the HTTP layer.
type JoinData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// SwitchRoomData requests a move to another room. Code is only needed for
// private rooms the user has no grant for.
type SwitchRoomData struct {
	Room string `json:"room"`
	Code string `json:"code,omitempty"`
}

// ChatMessageData is chat input; slash commands and the claim keyword
// arrive through the same field.
type ChatMessageData struct {
	Text     string `json:"text"`
	ClientID string `json:"client_id,omitempty"`
}

// PollVoteData records or replaces the sender's vote.
type PollVoteData struct {
	PollID int64  `json:"poll_id"`
	Option string `json:"option"`
}

// ReactData sets the sender's emoji reaction on a message.
type ReactData struct {
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji,omitempty"`
}

// ColorUpdateData changes the sender's display color.
type ColorUpdateData struct {
	Color string `json:"color"`
}

// ConfirmChangepassData completes the owner's code-rotation round-trip.
type ConfirmChangepassData struct {
	Room    string `json:"room"`
	NewCode string `json:"new_code"`
}

// ==== outbound payloads ====

// RoomInfo is one row of the rooms_list payload. OwnerCode is present
// only on rooms the recipient owns.
type RoomInfo struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	IsOwner   bool   `json:"is_owner"`
	OwnerCode string `json:"owner_code,omitempty"`
}

// RoomsListPayload carries the room directory.
type RoomsListPayload struct {
	Rooms []RoomInfo `json:"rooms"`
}

// MessagePayload is the wire form of a chat message, action, or DM.
type MessagePayload struct {
	ID        int64  `json:"id"`
	Room      string `json:"room,omitempty"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient,omitempty"`
	Color     string `json:"color,omitempty"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	ClientID  string `json:"client_id,omitempty"`
	TS        int64  `json:"ts"`
}

// HistoryPayload replays recent messages on room entry.
type HistoryPayload struct {
	Room     string           `json:"room"`
	Messages []MessagePayload `json:"messages"`
}

// SystemPayload is a system notice, room-wide or private.
type SystemPayload struct {
	Room string `json:"room,omitempty"`
	Text string `json:"text"`
}

// UserInfo is one row of the user_list payload.
type UserInfo struct {
	Username string `json:"username"`
	Color    string `json:"color,omitempty"`
	JoinedAt int64  `json:"joined_at"`
	Idle     bool   `json:"idle"`
}

// UserListPayload carries a room's presence roster.
type UserListPayload struct {
	Room  string     `json:"room"`
	Users []UserInfo `json:"users"`
}

// TypingPayload carries the room's typing summary line; empty Text clears it.
type TypingPayload struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// PollPayload is the wire form of a poll. Result is set only on conclusion.
type PollPayload struct {
	ID        int64             `json:"id"`
	Room      string            `json:"room"`
	Question  string            `json:"question"`
	Options   []string          `json:"options"`
	Votes     map[string]string `json:"votes"`
	EndsAt    int64             `json:"ends_at"`
	Concluded bool              `json:"concluded"`
	Result    string            `json:"result,omitempty"`
}

// ReactionPayload carries fresh reaction counts for a message.
type ReactionPayload struct {
	MessageID int64          `json:"message_id"`
	Counts    map[string]int `json:"counts"`
}

// PreviewPayload is an asynchronously fetched link preview.
type PreviewPayload struct {
	Room        string `json:"room"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

// CoinsPayload pushes the recipient's own balance.
type CoinsPayload struct {
	Username string `json:"username"`
	Coins    int64  `json:"coins"`
}

// KickedPayload tells the client why it is being disconnected.
type KickedPayload struct {
	Reason string `json:"reason"`
}

// RoomPayload names a room for room_changed, room_requires_code, and
// room_activity events.
type RoomPayload struct {
	Room string `json:"room"`
	Text string `json:"text,omitempty"`
}

// RoomCodePayload returns an owner code for room_created and
// room_code_changed, and carries the confirm_changepass prompt.
type RoomCodePayload struct {
	Room string `json:"room"`
	Code string `json:"code"`
	Text string `json:"text,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
