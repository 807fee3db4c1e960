package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ahmedit-11/artfolio-chat/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	// Ensure upserts the conversation document. Existing denormalized fields
	// (last message, unread counters) are preserved; only presence and the
	// updated timestamp are asserted, so it is safe to call on every
	// "open chat" action.
	Ensure(ctx context.Context, chatID, user1ID, user2ID string) error
	Get(ctx context.Context, chatID string) (models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	// MarkRead zeroes the user's unread counter and flips unread messages
	// sent by the other participant to read. The user's own messages are
	// never touched.
	MarkRead(ctx context.Context, chatID, userID string) error
	// Delete removes messages and typing flags before the conversation
	// document itself, children before parent.
	Delete(ctx context.Context, chatID string) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

type chatRow struct {
	ID                   string         `db:"id"`
	User1ID              string         `db:"user1_id"`
	User2ID              string         `db:"user2_id"`
	LastMessageText      sql.NullString `db:"last_message_text"`
	LastMessageSenderID  sql.NullString `db:"last_message_sender_id"`
	LastMessageCreatedAt sql.NullTime   `db:"last_message_created_at"`
	LastMessageIsRead    bool           `db:"last_message_is_read"`
	UnreadUser1          int            `db:"unread_user1"`
	UnreadUser2          int            `db:"unread_user2"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func (r chatRow) toModel() models.Conversation {
	conv := models.Conversation{
		ID:        r.ID,
		User1ID:   r.User1ID,
		User2ID:   r.User2ID,
		Unread:    map[string]int{r.User1ID: r.UnreadUser1, r.User2ID: r.UnreadUser2},
		UpdatedAt: r.UpdatedAt,
	}
	if r.LastMessageSenderID.Valid {
		lm := models.LastMessage{
			Text:     r.LastMessageText.String,
			SenderID: r.LastMessageSenderID.String,
			IsRead:   r.LastMessageIsRead,
		}
		if r.LastMessageCreatedAt.Valid {
			t := r.LastMessageCreatedAt.Time
			lm.CreatedAt = &t
		}
		conv.LastMessage = &lm
	}
	return conv
}

const chatColumns = `id, user1_id, user2_id, last_message_text, last_message_sender_id,
    last_message_created_at, last_message_is_read, unread_user1, unread_user2, updated_at`

// Ensure upserts the conversation keyed by the derived chat id.
func (r *ConversationRepo) Ensure(ctx context.Context, chatID, user1ID, user2ID string) error {
	if user1ID > user2ID {
		user1ID, user2ID = user2ID, user1ID
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO chats (id, user1_id, user2_id) VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET updated_at = NOW()`, chatID, user1ID, user2ID)
	return err
}

// Get fetches a conversation by chat id.
func (r *ConversationRepo) Get(ctx context.Context, chatID string) (models.Conversation, error) {
	var row chatRow
	err := r.db.GetContext(ctx, &row, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return row.toModel(), nil
}

// ListForUser returns every conversation the user participates in.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var rows []chatRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+chatColumns+` FROM chats
        WHERE user1_id=$1 OR user2_id=$1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	result := make([]models.Conversation, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toModel())
	}
	return result, nil
}

// MarkRead resets the user's unread counter and marks inbound messages read.
func (r *ConversationRepo) MarkRead(ctx context.Context, chatID, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE chats SET
        unread_user1 = CASE WHEN user1_id=$2 THEN 0 ELSE unread_user1 END,
        unread_user2 = CASE WHEN user2_id=$2 THEN 0 ELSE unread_user2 END,
        last_message_is_read = last_message_is_read OR (last_message_sender_id IS NOT NULL AND last_message_sender_id <> $2)
        WHERE id=$1 AND (user1_id=$2 OR user2_id=$2)`, chatID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE messages SET is_read = TRUE
        WHERE chat_id=$1 AND sender_id <> $2 AND is_read = FALSE`, chatID, userID); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes the conversation and everything it owns.
func (r *ConversationRepo) Delete(ctx context.Context, chatID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id=$1`, chatID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM typing WHERE chat_id=$1`, chatID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}

	return tx.Commit()
}
