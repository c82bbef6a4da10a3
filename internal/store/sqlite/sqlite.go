package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/clinkchat/clinkchat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	username            TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash       TEXT NOT NULL,
	color               TEXT NOT NULL DEFAULT '#000080',
	coins               INTEGER NOT NULL DEFAULT 0,
	messages_sent       INTEGER NOT NULL DEFAULT 0,
	time_online_seconds INTEGER NOT NULL DEFAULT 0,
	created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL UNIQUE,
	is_private    BOOLEAN NOT NULL DEFAULT 0,
	password_hash TEXT NOT NULL DEFAULT '',
	owner_code    TEXT NOT NULL DEFAULT '',
	creator       TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS private_room_access (
	username   TEXT NOT NULL COLLATE NOCASE,
	room_name  TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (username, room_name)
);

CREATE TABLE IF NOT EXISTS room_bans (
	room_name       TEXT NOT NULL,
	banned_username TEXT NOT NULL COLLATE NOCASE,
	banned_by       TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_name, banned_username)
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room       TEXT NOT NULL DEFAULT '',
	sender     TEXT NOT NULL COLLATE NOCASE,
	recipient  TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
	type       TEXT NOT NULL,
	text       TEXT NOT NULL,
	client_id  TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS polls (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room       TEXT NOT NULL,
	question   TEXT NOT NULL,
	options    TEXT NOT NULL,
	votes      TEXT NOT NULL DEFAULT '{}',
	creator    TEXT NOT NULL,
	ends_at    DATETIME NOT NULL,
	concluded  BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reactions (
	message_id INTEGER NOT NULL,
	username   TEXT NOT NULL COLLATE NOCASE,
	emoji      TEXT NOT NULL,
	PRIMARY KEY (message_id, username)
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room, id);
CREATE INDEX IF NOT EXISTS idx_polls_due ON polls(concluded, ends_at);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureRoom creates a public room if it does not exist. Used at startup for
// the default room.
func (s *SQLiteStore) EnsureRoom(ctx context.Context, name string) error {
	query := `INSERT OR IGNORE INTO rooms (name, is_private) VALUES (?, 0)`
	if _, err := s.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("ensure room: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, username, passwordHash); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByUsername(ctx, username)
}

// GetUserByUsername retrieves a user by username (case-insensitive).
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, color, coins, messages_sent, time_online_seconds, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Color,
		&user.Coins,
		&user.MessagesSent,
		&user.TimeOnlineSeconds,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// UpdateColor sets the user's display color.
func (s *SQLiteStore) UpdateColor(ctx context.Context, username, color string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET color = ? WHERE username = ?`, color, username)
	if err != nil {
		return fmt.Errorf("update color: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// IncrementMessages bumps the user's sent-message counter.
func (s *SQLiteStore) IncrementMessages(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET messages_sent = messages_sent + 1 WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("increment messages: %w", err)
	}
	return nil
}

// AddTimeOnline adds connected seconds to the user's online counter.
func (s *SQLiteStore) AddTimeOnline(ctx context.Context, username string, seconds int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET time_online_seconds = time_online_seconds + ? WHERE username = ?`,
		seconds, username)
	if err != nil {
		return fmt.Errorf("add time online: %w", err)
	}
	return nil
}

// UserColors returns the display color for each known username.
func (s *SQLiteStore) UserColors(ctx context.Context, usernames []string) (map[string]string, error) {
	colors := make(map[string]string, len(usernames))
	if len(usernames) == 0 {
		return colors, nil
	}

	// Build a placeholder list; the IN clause is small (history senders).
	args := make([]interface{}, len(usernames))
	placeholders := ""
	for i, u := range usernames {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = u
	}

	query := `SELECT username, color FROM users WHERE username IN (` + placeholders + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query colors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var username, color string
		if err := rows.Scan(&username, &color); err != nil {
			return nil, fmt.Errorf("scan color: %w", err)
		}
		colors[username] = color
	}

	return colors, rows.Err()
}

// ==== LedgerStore implementation ====

// GetCoins returns the user's current balance.
func (s *SQLiteStore) GetCoins(ctx context.Context, username string) (int64, error) {
	var coins int64
	err := s.db.QueryRowContext(ctx, `SELECT coins FROM users WHERE username = ?`, username).Scan(&coins)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("query coins: %w", err)
	}
	return coins, nil
}

// AddCoins credits the user and returns the new balance.
func (s *SQLiteStore) AddCoins(ctx context.Context, username string, amount int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET coins = coins + ? WHERE username = ?`,
		amount, username)
	if err != nil {
		return 0, fmt.Errorf("add coins: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return 0, store.ErrNotFound
	}
	return s.GetCoins(ctx, username)
}

// DeductCoins debits the user only if balance >= amount. The conditional
// update is a single statement, so balances never go negative even when
// deductions for the same user interleave.
func (s *SQLiteStore) DeductCoins(ctx context.Context, username string, amount int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET coins = coins - ? WHERE username = ? AND coins >= ?`,
		amount, username, amount)
	if err != nil {
		return 0, fmt.Errorf("deduct coins: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := s.GetCoins(ctx, username); errors.Is(err, store.ErrNotFound) {
			return 0, store.ErrNotFound
		}
		return 0, store.ErrInsufficientFunds
	}
	return s.GetCoins(ctx, username)
}

// SetCoins overwrites the user's balance and returns it.
func (s *SQLiteStore) SetCoins(ctx context.Context, username string, amount int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET coins = ? WHERE username = ?`,
		amount, username)
	if err != nil {
		return 0, fmt.Errorf("set coins: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return 0, store.ErrNotFound
	}
	return amount, nil
}

// ==== RoomStore implementation ====

// CreateRoom inserts a new room. Returns ErrDuplicate on a name clash.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) error {
	query := `
		INSERT INTO rooms (name, is_private, password_hash, owner_code, creator)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		room.Name, room.IsPrivate, room.PasswordHash, room.OwnerCode, room.Creator)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	room.ID = id
	return nil
}

// GetRoomByName retrieves a room by name.
func (s *SQLiteStore) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	query := `
		SELECT id, name, is_private, password_hash, owner_code, creator, created_at
		FROM rooms
		WHERE name = ?
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&room.ID,
		&room.Name,
		&room.IsPrivate,
		&room.PasswordHash,
		&room.OwnerCode,
		&room.Creator,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	return &room, nil
}

// ListRooms lists all rooms in creation order.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	query := `
		SELECT id, name, is_private, password_hash, owner_code, creator, created_at
		FROM rooms
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(
			&room.ID,
			&room.Name,
			&room.IsPrivate,
			&room.PasswordHash,
			&room.OwnerCode,
			&room.Creator,
			&room.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}

	return rooms, rows.Err()
}

// DeleteRoom removes the room and cascades its grants and bans.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM private_room_access WHERE room_name = ?`, name); err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM room_bans WHERE room_name = ?`, name); err != nil {
		return fmt.Errorf("delete bans: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CountPrivateRooms counts private rooms created by the given user.
func (s *SQLiteStore) CountPrivateRooms(ctx context.Context, creator string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rooms WHERE creator = ? AND is_private = 1`,
		creator).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count private rooms: %w", err)
	}
	return count, nil
}

// UpdateRoomCode rotates the room's code hash and owner-visible code.
func (s *SQLiteStore) UpdateRoomCode(ctx context.Context, name, passwordHash, ownerCode string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET password_hash = ?, owner_code = ? WHERE name = ? AND is_private = 1`,
		passwordHash, ownerCode, name)
	if err != nil {
		return fmt.Errorf("update room code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== AccessStore implementation ====

// GrantAccess records that the user may enter the room. Idempotent.
func (s *SQLiteStore) GrantAccess(ctx context.Context, username, room string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO private_room_access (username, room_name) VALUES (?, ?)`,
		username, room)
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

// RevokeAccess removes the user's grant for the room.
func (s *SQLiteStore) RevokeAccess(ctx context.Context, username, room string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM private_room_access WHERE username = ? AND room_name = ?`,
		username, room)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return nil
}

// RevokeAllAccess removes every grant for the room except the named user's.
func (s *SQLiteStore) RevokeAllAccess(ctx context.Context, room, exceptUser string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM private_room_access WHERE room_name = ? AND username <> ?`,
		room, exceptUser)
	if err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}
	return nil
}

// HasAccess reports whether the user holds a grant for the room.
func (s *SQLiteStore) HasAccess(ctx context.Context, username, room string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM private_room_access WHERE username = ? AND room_name = ?`,
		username, room).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query grant: %w", err)
	}
	return true, nil
}

// AddBan bans the user from the room, revoking any grant. A ban always
// overrides a grant, so both writes happen in one transaction.
func (s *SQLiteStore) AddBan(ctx context.Context, room, username, bannedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO room_bans (room_name, banned_username, banned_by) VALUES (?, ?, ?)`,
		room, username, bannedBy); err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM private_room_access WHERE username = ? AND room_name = ?`,
		username, room); err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RemoveBan lifts the user's ban for the room.
func (s *SQLiteStore) RemoveBan(ctx context.Context, room, username string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM room_bans WHERE room_name = ? AND banned_username = ?`,
		room, username)
	if err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}
	return nil
}

// IsBanned reports whether the user is banned from the room.
func (s *SQLiteStore) IsBanned(ctx context.Context, room, username string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM room_bans WHERE room_name = ? AND banned_username = ?`,
		room, username).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query ban: %w", err)
	}
	return true, nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in its ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO messages (room, sender, recipient, type, text, client_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.Room, msg.Sender, msg.Recipient, string(msg.Type), msg.Text, msg.ClientID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// ListRecent returns the most recent messages of a room plus the user's DMs,
// oldest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, room, username string, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, room, sender, recipient, type, text, client_id, created_at
		FROM messages
		WHERE room = ? OR (type = 'dm' AND (sender = ? OR recipient = ?))
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, room, username, username, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var msgType string
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.Sender, &msg.Recipient, &msgType, &msg.Text, &msg.ClientID, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Type = store.MessageType(msgType)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// ==== PollStore implementation ====

// CreatePoll persists a poll and fills in its ID.
func (s *SQLiteStore) CreatePoll(ctx context.Context, poll *store.Poll) error {
	options, err := json.Marshal(poll.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	if poll.Votes == nil {
		poll.Votes = make(map[string]string)
	}
	votes, err := json.Marshal(poll.Votes)
	if err != nil {
		return fmt.Errorf("marshal votes: %w", err)
	}

	query := `
		INSERT INTO polls (room, question, options, votes, creator, ends_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		poll.Room, poll.Question, string(options), string(votes), poll.Creator, poll.EndsAt)
	if err != nil {
		return fmt.Errorf("insert poll: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	poll.ID = id
	return nil
}

func scanPoll(scan func(dest ...any) error) (*store.Poll, error) {
	var poll store.Poll
	var options, votes string
	if err := scan(
		&poll.ID,
		&poll.Room,
		&poll.Question,
		&options,
		&votes,
		&poll.Creator,
		&poll.EndsAt,
		&poll.Concluded,
		&poll.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(options), &poll.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	if err := json.Unmarshal([]byte(votes), &poll.Votes); err != nil {
		return nil, fmt.Errorf("unmarshal votes: %w", err)
	}
	return &poll, nil
}

const pollColumns = `id, room, question, options, votes, creator, ends_at, concluded, created_at`

// GetPoll retrieves a poll by ID.
func (s *SQLiteStore) GetPoll(ctx context.Context, id int64) (*store.Poll, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id)
	poll, err := scanPoll(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query poll: %w", err)
	}
	return poll, nil
}

// ListRoomPolls returns the most recent polls of a room, oldest first.
func (s *SQLiteStore) ListRoomPolls(ctx context.Context, room string, limit int) ([]*store.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE room = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query polls: %w", err)
	}
	defer rows.Close()

	var polls []*store.Poll
	for rows.Next() {
		poll, err := scanPoll(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range len(polls) / 2 {
		polls[i], polls[len(polls)-1-i] = polls[len(polls)-1-i], polls[i]
	}

	return polls, nil
}

// SetVotes overwrites the votes map of a non-concluded poll.
func (s *SQLiteStore) SetVotes(ctx context.Context, id int64, votes map[string]string) error {
	data, err := json.Marshal(votes)
	if err != nil {
		return fmt.Errorf("marshal votes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE polls SET votes = ? WHERE id = ? AND concluded = 0`,
		string(data), id)
	if err != nil {
		return fmt.Errorf("update votes: %w", err)
	}
	return nil
}

// ListDuePolls returns non-concluded polls whose expiry has passed.
func (s *SQLiteStore) ListDuePolls(ctx context.Context, now time.Time) ([]*store.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE concluded = 0 AND ends_at <= ?`
	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("query due polls: %w", err)
	}
	defer rows.Close()

	var polls []*store.Poll
	for rows.Next() {
		poll, err := scanPoll(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		polls = append(polls, poll)
	}

	return polls, rows.Err()
}

// ConcludePoll flips concluded false->true. The conditional update makes the
// transition happen at most once even if two sweeps race.
func (s *SQLiteStore) ConcludePoll(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE polls SET concluded = 1 WHERE id = ? AND concluded = 0`, id)
	if err != nil {
		return false, fmt.Errorf("conclude poll: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ==== ReactionStore implementation ====

// UpsertReaction sets the user's reaction on a message, replacing any previous one.
func (s *SQLiteStore) UpsertReaction(ctx context.Context, messageID int64, username, emoji string) error {
	query := `
		INSERT INTO reactions (message_id, username, emoji)
		VALUES (?, ?, ?)
		ON CONFLICT (message_id, username) DO UPDATE SET emoji = excluded.emoji
	`
	if _, err := s.db.ExecContext(ctx, query, messageID, username, emoji); err != nil {
		return fmt.Errorf("upsert reaction: %w", err)
	}
	return nil
}

// RemoveReaction deletes the user's reaction from a message.
func (s *SQLiteStore) RemoveReaction(ctx context.Context, messageID int64, username string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE message_id = ? AND username = ?`,
		messageID, username)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	return nil
}

// ReactionCounts returns emoji -> count for a message.
func (s *SQLiteStore) ReactionCounts(ctx context.Context, messageID int64) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT emoji, COUNT(*) FROM reactions WHERE message_id = ? GROUP BY emoji`,
		messageID)
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var emoji string
		var count int
		if err := rows.Scan(&emoji, &count); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		counts[emoji] = count
	}

	return counts, rows.Err()
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
