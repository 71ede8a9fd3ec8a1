// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polyglotchat/polyglot-server/internal/store"
)

// PostgresStore implements store.Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	name       TEXT PRIMARY KEY,
	mode       TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
	reacted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (msg_id, emoji, username)
);
`

// New connects to the database and applies the schema.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ==== MessageStore implementation ====

func (s *PostgresStore) CreateMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (msg_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		msg.MsgID, msg.Room, msg.Author, msg.Original, msg.SourceLocale,
		replyMsgID, replyAuthor, replyMessage, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	return s.FindByMsgID(ctx, msg.Room, msg.MsgID)
}

func (s *PostgresStore) MergeTranslations(ctx context.Context, room, msgID string, partial map[string]string) error {
	if err := s.messageExists(ctx, room, msgID); err != nil {
		return err
	}

	query := `
		INSERT INTO message_translations (msg_id, locale, text)
		VALUES ($1, $2, $3)
		ON CONFLICT (msg_id, locale) DO NOTHING`
	for locale, text := range partial {
		if text == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, query, msgID, locale, text); err != nil {
			return fmt.Errorf("failed to insert translation %s: %w", locale, err)
		}
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	query := `
		SELECT msg_id, room, author, original, source_locale, reply_msg_id, reply_author, reply_message, created_at
		FROM (
			SELECT * FROM messages WHERE room = $1 ORDER BY created_at DESC LIMIT $2
		) latest
		ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var msgs []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	for _, msg := range msgs {
		if err := s.loadDetails(ctx, msg); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

func (s *PostgresStore) FindByMsgID(ctx context.Context, room, msgID string) (*store.Message, error) {
	query := `
		SELECT msg_id, room, author, original, source_locale, reply_msg_id, reply_author, reply_message, created_at
		FROM messages
		WHERE room = $1 AND msg_id = $2`
	rows, err := s.pool.Query(ctx, query, room, msgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query message: %w", err)
		}
		return nil, store.ErrMessageNotFound
	}
	msg, err := scanMessage(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	if err := s.loadDetails(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *PostgresStore) ToggleReaction(ctx context.Context, room, msgID, emoji, username string) (map[string][]string, error) {
	if err := s.messageExists(ctx, room, msgID); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM message_reactions WHERE msg_id = $1 AND emoji = $2 AND username = $3`,
		msgID, emoji, username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete reaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO message_reactions (msg_id, emoji, username) VALUES ($1, $2, $3)`,
			msgID, emoji, username,
		); err != nil {
			return nil, fmt.Errorf("failed to insert reaction: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit tx: %w", err)
	}

	return s.loadReactions(ctx, msgID)
}

// ==== RoomDirectory implementation ====

func (s *PostgresStore) CreateRoom(ctx context.Context, name, ownerID string, mode store.RoomMode) (*store.Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	createdAt := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`INSERT INTO rooms (name, mode, owner_id, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (name) DO NOTHING`,
		name, string(mode), ownerID, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrRoomExists
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO room_admins (room, user_id) VALUES ($1, $2)`, name, ownerID,
	); err != nil {
		return nil, fmt.Errorf("failed to insert admin: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO room_members (room, user_id) VALUES ($1, $2)`, name, ownerID,
	); err != nil {
		return nil, fmt.Errorf("failed to insert member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit tx: %w", err)
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

func (s *PostgresStore) GetRoom(ctx context.Context, name string) (*store.Room, error) {
	var room store.Room
	var mode string
	err := s.pool.QueryRow(ctx,
		`SELECT name, mode, owner_id, created_at FROM rooms WHERE name = $1`, name,
	).Scan(&room.Name, &mode, &room.OwnerID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to query room: %w", err)
	}
	room.Mode = store.RoomMode(mode)

	room.AdminIDs, err = s.loadUserSet(ctx, `SELECT user_id FROM room_admins WHERE room = $1`, name)
	if err != nil {
		return nil, err
	}
	room.MemberIDs, err = s.loadUserSet(ctx, `SELECT user_id FROM room_members WHERE room = $1`, name)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *PostgresStore) UpdateRoomMode(ctx context.Context, name string, mode store.RoomMode) (*store.Room, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE rooms SET mode = $1 WHERE name = $2`, string(mode), name)
	if err != nil {
		return nil, fmt.Errorf("failed to update room mode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrRoomNotFound
	}
	return s.GetRoom(ctx, name)
}

func (s *PostgresStore) AddMember(ctx context.Context, room, userID string) error {
	if _, err := s.GetRoom(ctx, room); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO room_members (room, user_id) VALUES ($1, $2) ON CONFLICT (room, user_id) DO NOTHING`,
		room, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteRoom(ctx context.Context, name, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var ownerID string
	err = tx.QueryRow(ctx, `SELECT owner_id FROM rooms WHERE name = $1`, name).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrRoomNotFound
		}
		return fmt.Errorf("failed to query room owner: %w", err)
	}
	if ownerID != userID {
		return store.ErrNotOwner
	}

	steps := []string{
		`DELETE FROM message_translations WHERE msg_id IN (SELECT msg_id FROM messages WHERE room = $1)`,
		`DELETE FROM message_reactions WHERE msg_id IN (SELECT msg_id FROM messages WHERE room = $1)`,
		`DELETE FROM messages WHERE room = $1`,
		`DELETE FROM room_admins WHERE room = $1`,
		`DELETE FROM room_members WHERE room = $1`,
		`DELETE FROM rooms WHERE name = $1`,
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step, name); err != nil {
			return fmt.Errorf("failed to cascade delete: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ==== helpers ====

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var msg store.Message
	var replyMsgID, replyAuthor, replyMessage *string
	err := row.Scan(
		&msg.MsgID, &msg.Room, &msg.Author, &msg.Original, &msg.SourceLocale,
		&replyMsgID, &replyAuthor, &replyMessage, &msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	if replyMsgID != nil {
		ref := store.ReplyRef{MsgID: *replyMsgID}
		if replyAuthor != nil {
			ref.Author = *replyAuthor
		}
		if replyMessage != nil {
			ref.Message = *replyMessage
		}
		msg.ReplyTo = &ref
	}
	return &msg, nil
}

func (s *PostgresStore) messageExists(ctx context.Context, room, msgID string) error {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE room = $1 AND msg_id = $2`, room, msgID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check message: %w", err)
	}
	if count == 0 {
		return store.ErrMessageNotFound
	}
	return nil
}

func (s *PostgresStore) loadDetails(ctx context.Context, msg *store.Message) error {
	translations := make(map[string]string)
	rows, err := s.pool.Query(ctx,
		`SELECT locale, text FROM message_translations WHERE msg_id = $1`, msg.MsgID,
	)
	if err != nil {
		return fmt.Errorf("failed to query translations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var locale, text string
		if err := rows.Scan(&locale, &text); err != nil {
			return fmt.Errorf("failed to scan translation: %w", err)
		}
		translations[locale] = text
	}
	if err := rows.Err(); err != nil {
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

func (s *PostgresStore) loadReactions(ctx context.Context, msgID string) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT emoji, username FROM message_reactions WHERE msg_id = $1 ORDER BY reacted_at`, msgID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reactions: %w", err)
	}
	defer rows.Close()

	reactions := make(map[string][]string)
	for rows.Next() {
		var emoji, username string
		if err := rows.Scan(&emoji, &username); err != nil {
			return nil, fmt.Errorf("failed to scan reaction: %w", err)
		}
		reactions[emoji] = append(reactions[emoji], username)
	}
	return reactions, rows.Err()
}

func (s *PostgresStore) loadUserSet(ctx context.Context, query, room string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, room)
	if err != nil {
		return nil, fmt.Errorf("failed to query user set: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
