package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("already exists")
	// ErrInsufficientFunds is returned by DeductCoins when the balance is too low.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// User represents a registered identity.
type User struct {
	ID                int64
	Username          string
	PasswordHash      string
	Color             string
	Coins             int64
	MessagesSent      int64
	TimeOnlineSeconds int64
	CreatedAt         time.Time
}

// Room represents a chat room. Private rooms carry a bcrypt hash of their
// numeric code plus the plaintext code for owner-only display.
type Room struct {
	ID           int64
	Name         string
	IsPrivate    bool
	PasswordHash string
	OwnerCode    string
	Creator      string
	CreatedAt    time.Time
}

// MessageType distinguishes the persisted message variants.
type MessageType string

const (
	MessageTypeChat   MessageType = "chat"
	MessageTypeAction MessageType = "action"
	MessageTypeDM     MessageType = "dm"
	MessageTypeSystem MessageType = "system"
	MessageTypePoll   MessageType = "poll"
)

// Message represents a persisted chat message. Room is empty for DMs,
// Recipient is empty for room messages. ClientID is the sender-supplied id
// used to correlate reactions and acks with the broadcast copy.
type Message struct {
	ID        int64
	Room      string
	Sender    string
	Recipient string
	Type      MessageType
	Text      string
	ClientID  string
	CreatedAt time.Time
}

// Poll represents a time-boxed vote in a room. Votes maps a username to the
// option it picked; at most one entry per identity.
type Poll struct {
	ID        int64
	Room      string
	Question  string
	Options   []string
	Votes     map[string]string
	Creator   string
	EndsAt    time.Time
	Concluded bool
	CreatedAt time.Time
}

// Ban represents a persisted room ban. A ban always overrides an access grant.
type Ban struct {
	Room      string
	Username  string
	BannedBy  string
	CreatedAt time.Time
}

// UserStore handles identity persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by username (case-insensitive).
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdateColor sets the user's display color.
	UpdateColor(ctx context.Context, username, color string) error

	// IncrementMessages bumps the user's sent-message counter.
	IncrementMessages(ctx context.Context, username string) error

	// AddTimeOnline adds connected seconds to the user's online counter.
	AddTimeOnline(ctx context.Context, username string, seconds int64) error

	// UserColors returns the display color for each known username.
	UserColors(ctx context.Context, usernames []string) (map[string]string, error)
}

// LedgerStore handles coin balances. DeductCoins is a single conditional
// update so balances can never go negative under concurrent deductions.
type LedgerStore interface {
	// GetCoins returns the user's current balance.
	GetCoins(ctx context.Context, username string) (int64, error)

	// AddCoins credits the user and returns the new balance.
	AddCoins(ctx context.Context, username string, amount int64) (int64, error)

	// DeductCoins debits the user only if balance >= amount, returning the new
	// balance, or ErrInsufficientFunds.
	DeductCoins(ctx context.Context, username string, amount int64) (int64, error)

	// SetCoins overwrites the user's balance and returns it.
	SetCoins(ctx context.Context, username string, amount int64) (int64, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom inserts a new room. Returns ErrDuplicate on a name clash.
	CreateRoom(ctx context.Context, room *Room) error

	// GetRoomByName retrieves a room by name.
	GetRoomByName(ctx context.Context, name string) (*Room, error)

	// ListRooms lists all rooms in creation order.
	ListRooms(ctx context.Context) ([]*Room, error)

	// DeleteRoom removes the room and cascades its grants and bans.
	DeleteRoom(ctx context.Context, name string) error

	// CountPrivateRooms counts private rooms created by the given user.
	CountPrivateRooms(ctx context.Context, creator string) (int, error)

	// UpdateRoomCode rotates the room's code hash and owner-visible code.
	UpdateRoomCode(ctx context.Context, name, passwordHash, ownerCode string) error
}

// AccessStore handles private-room grants and bans.
type AccessStore interface {
	// GrantAccess records that the user may enter the room. Idempotent.
	GrantAccess(ctx context.Context, username, room string) error

	// RevokeAccess removes the user's grant for the room.
	RevokeAccess(ctx context.Context, username, room string) error

	// RevokeAllAccess removes every grant for the room except the named user's.
	RevokeAllAccess(ctx context.Context, room, exceptUser string) error

	// HasAccess reports whether the user holds a grant for the room.
	HasAccess(ctx context.Context, username, room string) (bool, error)

	// AddBan bans the user from the room, revoking any grant.
	AddBan(ctx context.Context, room, username, bannedBy string) error

	// RemoveBan lifts the user's ban for the room.
	RemoveBan(ctx context.Context, room, username string) error

	// IsBanned reports whether the user is banned from the room.
	IsBanned(ctx context.Context, room, username string) (bool, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListRecent returns the most recent messages of a room plus the user's
	// DMs, oldest first.
	ListRecent(ctx context.Context, room, username string, limit int) ([]*Message, error)
}

// PollStore handles poll persistence.
type PollStore interface {
	// CreatePoll persists a poll and fills in its ID.
	CreatePoll(ctx context.Context, poll *Poll) error

	// GetPoll retrieves a poll by ID.
	GetPoll(ctx context.Context, id int64) (*Poll, error)

	// ListRoomPolls returns the most recent polls of a room, oldest first.
	ListRoomPolls(ctx context.Context, room string, limit int) ([]*Poll, error)

	// SetVotes overwrites the votes map of a non-concluded poll.
	SetVotes(ctx context.Context, id int64, votes map[string]string) error

	// ListDuePolls returns non-concluded polls whose expiry has passed.
	ListDuePolls(ctx context.Context, now time.Time) ([]*Poll, error)

	// ConcludePoll flips concluded false->true. Returns false if the poll was
	// already concluded, so the flag transitions at most once.
	ConcludePoll(ctx context.Context, id int64) (bool, error)
}

// ReactionStore handles per-message emoji reactions.
type ReactionStore interface {
	// UpsertReaction sets the user's reaction on a message, replacing any
	// previous one.
	UpsertReaction(ctx context.Context, messageID int64, username, emoji string) error

	// RemoveReaction deletes the user's reaction from a message.
	RemoveReaction(ctx context.Context, messageID int64, username string) error

	// ReactionCounts returns emoji -> count for a message.
	ReactionCounts(ctx context.Context, messageID int64) (map[string]int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	LedgerStore
	RoomStore
	AccessStore
	MessageStore
	PollStore
	ReactionStore

	// Close closes the underlying database connection.
	Close() error
}
