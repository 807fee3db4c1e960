package models

import (
	"encoding/json"
	"time"
)

// LastMessage is the denormalized snapshot of the most recent message stored
// on the conversation so a conversation list renders without fetching history.
type LastMessage struct {
	Text      string     `json:"text"`
	SenderID  string     `json:"sender_id"`
	CreatedAt *time.Time `json:"created_at"`
	IsRead    bool       `json:"is_read"`
}

// UnmarshalJSON decodes the timestamp through FlexTime so documents written by
// older clients (unix numbers, server-timestamp objects) still parse.
func (lm *LastMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text      string   `json:"text"`
		SenderID  string   `json:"sender_id"`
		CreatedAt FlexTime `json:"created_at"`
		IsRead    bool     `json:"is_read"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	lm.Text = raw.Text
	lm.SenderID = raw.SenderID
	lm.CreatedAt = raw.CreatedAt.Time()
	lm.IsRead = raw.IsRead
	return nil
}

// Conversation is a 1:1 chat document keyed by the derived chat id.
type Conversation struct {
	ID          string         `json:"id"`
	User1ID     string         `json:"user1_id"`
	User2ID     string         `json:"user2_id"`
	LastMessage *LastMessage   `json:"last_message,omitempty"`
	Unread      map[string]int `json:"unread"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// UnreadFor returns the unread counter for userID, zero when absent.
func (c Conversation) UnreadFor(userID string) int {
	if c.Unread == nil {
		return 0
	}
	return c.Unread[userID]
}

// ConversationView is the display-ready record published to clients: the raw
// conversation merged with the resolved profile of the other participant.
type ConversationView struct {
	ID          string       `json:"id"`
	OtherUser   UserProfile  `json:"other_user"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
