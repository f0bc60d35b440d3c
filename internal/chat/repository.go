// AngelaMos | 2026
// repository.go

package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/journal-backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, chat *Chat) error
	GetForUser(ctx context.Context, chatID, userID string) (*Chat, error)
	ListByUser(ctx context.Context, userID string, params PageParams) ([]Chat, int, error)
	ListSessions(ctx context.Context, userID string) ([]Session, error)
	Delete(ctx context.Context, chatID, userID string) error
	AppendMessage(ctx context.Context, userID string, msg *Message) error
	ListMessages(ctx context.Context, chatID string, params PageParams) ([]Message, int, error)
	DeleteMessage(ctx context.Context, userID, chatID, messageID string) error
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, chat *Chat) error {
	query := `
		INSERT INTO chats (id, user_id, title)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	if err := r.db.GetContext(ctx, chat, query, chat.ID, chat.UserID, chat.Title); err != nil {
		return fmt.Errorf("create chat: %w", err)
	}

	return nil
}

func (r *repository) GetForUser(
	ctx context.Context,
	chatID, userID string,
) (*Chat, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM chats
		WHERE id = $1 AND user_id = $2`

	var chat Chat
	err := r.db.GetContext(ctx, &chat, query, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get chat: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}

	return &chat, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
	params PageParams,
) ([]Chat, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM chats WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("count chats: %w", err)
	}

	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM chats
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	chats := []Chat{}
	if err := r.db.SelectContext(ctx, &chats, query, userID, params.PageSize, params.Offset()); err != nil {
		return nil, 0, fmt.Errorf("list chats: %w", err)
	}

	return chats, total, nil
}

// Delete removes the chat only when userID owns it; messages cascade.
func (r *repository) Delete(ctx context.Context, chatID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM chats WHERE id = $1 AND user_id = $2`, chatID, userID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete chat: %w", core.ErrNotFound)
	}

	return nil
}

// AppendMessage touches the owning chat and inserts the message in one
// transaction, so a message never lands in a chat userID does not own.
func (r *repository) AppendMessage(
	ctx context.Context,
	userID string,
	msg *Message,
) error {
	err := core.InTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE chats SET updated_at = NOW()
			WHERE id = $1 AND user_id = $2`, msg.ChatID, userID)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return core.ErrNotFound
		}

		query := `
			INSERT INTO messages (id, chat_id, sender_id, sender_kind, content)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING sent_at, created_at`

		return tx.GetContext(ctx, msg, query,
			msg.ID,
			msg.ChatID,
			msg.SenderID,
			msg.SenderKind,
			msg.Content,
		)
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	return nil
}

// ListSessions returns the chats of userID that hold messages, most
// recent activity first.
func (r *repository) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	query := `
		SELECT c.id AS chat_id,
		       c.title,
		       MAX(m.sent_at) AS last_message_at,
		       COUNT(m.id) AS message_count,
		       COALESCE((
		           SELECT f.content
		           FROM messages f
		           WHERE f.chat_id = c.id AND f.sender_kind = 'USER'
		           ORDER BY f.sent_at ASC, f.created_at ASC, f.id ASC
		           LIMIT 1
		       ), '') AS preview
		FROM chats c
		JOIN messages m ON m.chat_id = c.id
		WHERE c.user_id = $1
		GROUP BY c.id
		ORDER BY last_message_at DESC, c.id DESC`

	sessions := []Session{}
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return sessions, nil
}

func (r *repository) ListMessages(
	ctx context.Context,
	chatID string,
	params PageParams,
) ([]Message, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM messages WHERE chat_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, chatID); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	query := `
		SELECT id, chat_id, sender_id, sender_kind, content, sent_at, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY sent_at ASC, created_at ASC, id ASC
		LIMIT $2 OFFSET $3`

	msgs := []Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, chatID, params.PageSize, params.Offset()); err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	return msgs, total, nil
}

// DeleteMessage removes one message, only from a chat userID owns.
func (r *repository) DeleteMessage(
	ctx context.Context,
	userID, chatID, messageID string,
) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM messages m
		USING chats c
		WHERE m.id = $1 AND m.chat_id = $2
		  AND c.id = m.chat_id AND c.user_id = $3`,
		messageID, chatID, userID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete message: %w", core.ErrNotFound)
	}

	return nil
}
