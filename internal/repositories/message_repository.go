package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ahmedit-11/artfolio-chat/internal/models"
)

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	// Append stores an immutable message with a server-assigned timestamp
	// and, in the same transaction, refreshes the conversation's denormalized
	// last message and increments the other participant's unread counter.
	// A reader can never observe the incremented counter without the message.
	Append(ctx context.Context, chatID, senderID, text string) (models.Message, error)
	ListByChat(ctx context.Context, chatID string) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a message and updates the owning conversation atomically.
func (r *MessageRepo) Append(ctx context.Context, chatID, senderID, text string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	msg := models.Message{
		ID:       uuid.NewString(),
		ChatID:   chatID,
		SenderID: senderID,
		Text:     text,
	}
	if err := tx.QueryRowxContext(ctx, `INSERT INTO messages (id, chat_id, sender_id, text)
        VALUES ($1, $2, $3, $4) RETURNING created_at`, msg.ID, chatID, senderID, text).
		Scan(&msg.CreatedAt); err != nil {
		return models.Message{}, err
	}

	res, err := tx.ExecContext(ctx, `UPDATE chats SET
        last_message_text = $2,
        last_message_sender_id = $3,
        last_message_created_at = $4,
        last_message_is_read = FALSE,
        unread_user1 = unread_user1 + CASE WHEN user1_id <> $3 THEN 1 ELSE 0 END,
        unread_user2 = unread_user2 + CASE WHEN user2_id <> $3 THEN 1 ELSE 0 END,
        updated_at = NOW()
        WHERE id = $1`, chatID, text, senderID, msg.CreatedAt)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		return models.Message{}, ErrConversationNotFound
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListByChat returns the full message list ordered by creation time.
func (r *MessageRepo) ListByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, chat_id, sender_id, text, created_at, is_read
        FROM messages WHERE chat_id=$1 ORDER BY created_at ASC, id ASC`, chatID)
	return msgs, err
}
