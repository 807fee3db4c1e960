package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// TypingRepository stores the ephemeral per-user typing flags of a chat.
type TypingRepository interface {
	// Set upserts the flag in place. No history is retained.
	Set(ctx context.Context, chatID, userID string, isTyping bool) error
	// ActiveTypers returns only the users whose flag is currently true.
	ActiveTypers(ctx context.Context, chatID string) ([]string, error)
}

// TypingRepo is a sqlx implementation of TypingRepository.
type TypingRepo struct {
	db *sqlx.DB
}

// NewTypingRepo constructs a TypingRepo.
func NewTypingRepo(db *sqlx.DB) *TypingRepo {
	return &TypingRepo{db: db}
}

// Set upserts the typing flag for (chatID, userID).
func (r *TypingRepo) Set(ctx context.Context, chatID, userID string, isTyping bool) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO typing (chat_id, user_id, is_typing) VALUES ($1, $2, $3)
        ON CONFLICT (chat_id, user_id) DO UPDATE SET is_typing = EXCLUDED.is_typing, updated_at = NOW()`,
		chatID, userID, isTyping)
	return err
}

// ActiveTypers lists users currently typing in the chat.
func (r *TypingRepo) ActiveTypers(ctx context.Context, chatID string) ([]string, error) {
	var users []string
	err := r.db.SelectContext(ctx, &users, `SELECT user_id FROM typing
        WHERE chat_id=$1 AND is_typing ORDER BY user_id`, chatID)
	return users, err
}
