package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/polyglotchat/polyglot-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	name       TEXT PRIMARY KEY,
	mode       TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_admins (
	room    TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (room, user_id)
);

CREATE TABLE IF NOT EXISTS room_members (
	room    TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (room, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	msg_id        TEXT PRIMARY KEY,
	room          TEXT NOT NULL,
	author        TEXT NOT NULL,
	original      TEXT NOT NULL,
	source_locale TEXT NOT NULL DEFAULT 'auto',
	reply_msg_id  TEXT,
	reply_author  TEXT,
	reply_message TEXT,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages (room, created_at);

CREATE TABLE IF NOT EXISTS message_translations (
	msg_id TEXT NOT NULL,
	locale TEXT NOT NULL,
	text   TEXT NOT NULL,
	PRIMARY KEY (msg_id, locale)
);

CREATE TABLE IF NOT EXISTS message_reactions (
	msg_id   TEXT NOT NULL,
	emoji    TEXT NOT NULL,
	username TEXT NOT NULL,
	PRIMARY KEY (msg_id, emoji, username)
);
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

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MessageStore implementation ====

// CreateMessage persists a message, idempotent on msg_id.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var replyMsgID, replyAuthor, replyMessage *string
	if msg.ReplyTo != nil {
		replyMsgID = &msg.ReplyTo.MsgID
		replyAuthor = &msg.ReplyTo.Author
		replyMessage = &msg.ReplyTo.Message
	}

	query := `
		INSERT INTO messages (msg_id, room, author, original, source_locale, reply_msg_id, reply_author, reply_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (msg_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.MsgID, msg.Room, msg.Author, msg.Original, msg.SourceLocale,
		replyMsgID, replyAuthor, replyMessage, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return s.FindByMsgID(ctx, msg.Room, msg.MsgID)
}

// MergeTranslations adds locales to a message without clobbering existing ones.
func (s *SQLiteStore) MergeTranslations(ctx context.Context, room, msgID string, partial map[string]string) error {
	if err := s.messageExists(ctx, room, msgID); err != nil {
		return err
	}

	query := `
		INSERT INTO message_translations (msg_id, locale, text)
		VALUES (?, ?, ?)
		ON CONFLICT (msg_id, locale) DO NOTHING
	`
	for locale, text := range partial {
		if text == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, query, msgID, locale, text); err != nil {
			return fmt.Errorf("insert translation %s: %w", locale, err)
		}
	}
	return nil
}

// History returns the last limit messages of a room, oldest first.
func (s *SQLiteStore) History(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	query := `
		SELECT msg_id, room, author, original, source_locale, reply_msg_id, reply_author, reply_message, created_at
		FROM messages
		WHERE room = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var newestFirst []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		newestFirst = append(newestFirst, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	// Reverse to chronological order and attach translations/reactions.
	msgs := make([]*store.Message, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		msg := newestFirst[i]
		if err := s.loadDetails(ctx, msg); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// FindByMsgID looks a single message up by its idempotency key.
func (s *SQLiteStore) FindByMsgID(ctx context.Context, room, msgID string) (*store.Message, error) {
	query := `
		SELECT msg_id, room, author, original, source_locale, reply_msg_id, reply_author, reply_message, created_at
		FROM messages
		WHERE room = ? AND msg_id = ?
	`
	row := s.db.QueryRowContext(ctx, query, room, msgID)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrMessageNotFound
		}
		return nil, err
	}
	if err := s.loadDetails(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ToggleReaction flips username's presence in the emoji's reaction set and
// returns the updated map. The delete-else-insert runs in one transaction.
func (s *SQLiteStore) ToggleReaction(ctx context.Context, room, msgID, emoji, username string) (map[string][]string, error) {
	if err := s.messageExists(ctx, room, msgID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM message_reactions WHERE msg_id = ? AND emoji = ? AND username = ?`,
		msgID, emoji, username,
	)
	if err != nil {
		return nil, fmt.Errorf("delete reaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_reactions (msg_id, emoji, username) VALUES (?, ?, ?)`,
			msgID, emoji, username,
		); err != nil {
			return nil, fmt.Errorf("insert reaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.loadReactions(ctx, msgID)
}

// ==== RoomDirectory implementation ====

// CreateRoom creates a room with the owner as its first admin and member.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name, ownerID string, mode store.RoomMode) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check room: %w", err)
	}
	if exists > 0 {
		return nil, store.ErrRoomExists
	}

	createdAt := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (name, mode, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		name, string(mode), ownerID, createdAt,
	); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO room_admins (room, user_id) VALUES (?, ?)`, name, ownerID,
	); err != nil {
		return nil, fmt.Errorf("insert admin: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO room_members (room, user_id) VALUES (?, ?)`, name, ownerID,
	); err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &store.Room{
		Name:      name,
		Mode:      mode,
		OwnerID:   ownerID,
		AdminIDs:  []string{ownerID},
		MemberIDs: []string{ownerID},
		CreatedAt: createdAt,
	}, nil
}

// GetRoom retrieves a room with its admin and member sets.
func (s *SQLiteStore) GetRoom(ctx context.Context, name string) (*store.Room, error) {
	var room store.Room
	var mode string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, mode, owner_id, created_at FROM rooms WHERE name = ?`, name,
	).Scan(&room.Name, &mode, &room.OwnerID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRoomNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	room.Mode = store.RoomMode(mode)

	room.AdminIDs, err = s.loadUserSet(ctx, `SELECT user_id FROM room_admins WHERE room = ?`, name)
	if err != nil {
		return nil, err
	}
	room.MemberIDs, err = s.loadUserSet(ctx, `SELECT user_id FROM room_members WHERE room = ?`, name)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// UpdateRoomMode switches a room between Global and Native delivery.
func (s *SQLiteStore) UpdateRoomMode(ctx context.Context, name string, mode store.RoomMode) (*store.Room, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE rooms SET mode = ? WHERE name = ?`, string(mode), name)
	if err != nil {
		return nil, fmt.Errorf("update room mode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, store.ErrRoomNotFound
	}
	return s.GetRoom(ctx, name)
}

// AddMember inserts a user into the room's member set if absent.
func (s *SQLiteStore) AddMember(ctx context.Context, room, userID string) error {
	if _, err := s.GetRoom(ctx, room); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO room_members (room, user_id) VALUES (?, ?) ON CONFLICT (room, user_id) DO NOTHING`,
		room, userID,
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// DeleteRoom removes a room and cascades deletion of its messages.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, name, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var ownerID string
	err = tx.QueryRowContext(ctx, `SELECT owner_id FROM rooms WHERE name = ?`, name).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrRoomNotFound
		}
		return fmt.Errorf("query room owner: %w", err)
	}
	if ownerID != userID {
		return store.ErrNotOwner
	}

	steps := []string{
		`DELETE FROM message_translations WHERE msg_id IN (SELECT msg_id FROM messages WHERE room = ?)`,
		`DELETE FROM message_reactions WHERE msg_id IN (SELECT msg_id FROM messages WHERE room = ?)`,
		`DELETE FROM messages WHERE room = ?`,
		`DELETE FROM room_admins WHERE room = ?`,
		`DELETE FROM room_members WHERE room = ?`,
		`DELETE FROM rooms WHERE name = ?`,
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step, name); err != nil {
			return fmt.Errorf("cascade delete: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ==== helpers ====

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var msg store.Message
	var replyMsgID, replyAuthor, replyMessage sql.NullString
	err := row.Scan(
		&msg.MsgID, &msg.Room, &msg.Author, &msg.Original, &msg.SourceLocale,
		&replyMsgID, &replyAuthor, &replyMessage, &msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if replyMsgID.Valid {
		msg.ReplyTo = &store.ReplyRef{
			MsgID:   replyMsgID.String,
			Author:  replyAuthor.String,
			Message: replyMessage.String,
		}
	}
	return &msg, nil
}

func (s *SQLiteStore) messageExists(ctx context.Context, room, msgID string) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE room = ? AND msg_id = ?`, room, msgID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check message: %w", err)
	}
	if count == 0 {
		return store.ErrMessageNotFound
	}
	return nil
}

func (s *SQLiteStore) loadDetails(ctx context.Context, msg *store.Message) error {
	translations, err := s.loadTranslations(ctx, msg.MsgID)
	if err != nil {
		return err
	}
	msg.Translations = translations

	reactions, err := s.loadReactions(ctx, msg.MsgID)
	if err != nil {
		return err
	}
	msg.Reactions = reactions
	return nil
}

func (s *SQLiteStore) loadTranslations(ctx context.Context, msgID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT locale, text FROM message_translations WHERE msg_id = ?`, msgID,
	)
	if err != nil {
		return nil, fmt.Errorf("query translations: %w", err)
	}
	defer rows.Close()

	translations := make(map[string]string)
	for rows.Next() {
		var locale, text string
		if err := rows.Scan(&locale, &text); err != nil {
			return nil, fmt.Errorf("scan translation: %w", err)
		}
		translations[locale] = text
	}
	return translations, rows.Err()
}

func (s *SQLiteStore) loadReactions(ctx context.Context, msgID string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT emoji, username FROM message_reactions WHERE msg_id = ? ORDER BY rowid`, msgID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	reactions := make(map[string][]string)
	for rows.Next() {
		var emoji, username string
		if err := rows.Scan(&emoji, &username); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions[emoji] = append(reactions[emoji], username)
	}
	return reactions, rows.Err()
}

func (s *SQLiteStore) loadUserSet(ctx context.Context, query, room string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, room)
	if err != nil {
		return nil, fmt.Errorf("query user set: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
