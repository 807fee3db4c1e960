package models

import "time"

// Message is an immutable chat message. CreatedAt is assigned by the storage
// backend, never by a client clock, so ordering stays consistent across
// clients with skewed clocks.
type Message struct {
	ID        string    `db:"id" json:"id"`
	ChatID    string    `db:"chat_id" json:"chat_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	IsRead    bool      `db:"is_read" json:"is_read"`
}

// TypingFlag is the ephemeral per-user typing indicator of a chat. It is
// overwritten in place and carries no history.
type TypingFlag struct {
	ChatID    string    `db:"chat_id" json:"chat_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	IsTyping  bool      `db:"is_typing" json:"is_typing"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Notification describes a new inbound message detected by the aggregator.
type Notification struct {
	ChatID     string     `json:"chat_id"`
	SenderID   string     `json:"sender_id"`
	SenderName string     `json:"sender_name"`
	Text       string     `json:"text"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
}

// ChatEvent is the envelope pushed to websocket clients.
type ChatEvent struct {
	Type          string             `json:"type"`
	Conversations []ConversationView `json:"conversations,omitempty"`
	SelectedChat  string             `json:"selected_chat,omitempty"`
	Messages      []Message          `json:"messages,omitempty"`
	TypingUsers   []string           `json:"typing_users,omitempty"`
	Notification  *Notification      `json:"notification,omitempty"`
}
