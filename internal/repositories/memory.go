package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahmedit-11/artfolio-chat/internal/models"
)

// MemoryBackend is an in-memory implementation of all three repositories,
// used when no database DSN is configured and as the end-to-end test harness.
// All methods copy on the way in and out so callers never alias internal
// state.
type MemoryBackend struct {
	mu       sync.RWMutex
	convs    map[string]models.Conversation
	messages map[string][]models.Message
	typing   map[string]map[string]models.TypingFlag
	lastTS   time.Time
}

// NewMemoryBackend constructs an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		convs:    make(map[string]models.Conversation),
		messages: make(map[string][]models.Message),
		typing:   make(map[string]map[string]models.TypingFlag),
	}
}

var (
	_ ConversationRepository = (*MemoryBackend)(nil)
	_ MessageRepository      = (*MemoryBackend)(nil)
	_ TypingRepository       = (*MemoryBackend)(nil)
)

// now returns a strictly increasing server timestamp so message order is
// well-defined even for writes within the same clock tick.
func (m *MemoryBackend) now() time.Time {
	t := time.Now().UTC()
	if !t.After(m.lastTS) {
		t = m.lastTS.Add(time.Microsecond)
	}
	m.lastTS = t
	return t
}

func copyConversation(c models.Conversation) models.Conversation {
	out := c
	if c.LastMessage != nil {
		lm := *c.LastMessage
		if c.LastMessage.CreatedAt != nil {
			t := *c.LastMessage.CreatedAt
			lm.CreatedAt = &t
		}
		out.LastMessage = &lm
	}
	out.Unread = make(map[string]int, len(c.Unread))
	for k, v := range c.Unread {
		out.Unread[k] = v
	}
	return out
}

// Ensure upserts the conversation, preserving denormalized fields.
func (m *MemoryBackend) Ensure(ctx context.Context, chatID, user1ID, user2ID string) error {
	if user1ID > user2ID {
		user1ID, user2ID = user2ID, user1ID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[chatID]; ok {
		conv.UpdatedAt = m.now()
		m.convs[chatID] = conv
		return nil
	}
	m.convs[chatID] = models.Conversation{
		ID:        chatID,
		User1ID:   user1ID,
		User2ID:   user2ID,
		Unread:    map[string]int{user1ID: 0, user2ID: 0},
		UpdatedAt: m.now(),
	}
	return nil
}

// Get fetches a conversation by chat id.
func (m *MemoryBackend) Get(ctx context.Context, chatID string) (models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.convs[chatID]
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return copyConversation(conv), nil
}

// ListForUser returns the user's conversations, most recently updated first.
func (m *MemoryBackend) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.Conversation, 0, len(m.convs))
	for _, conv := range m.convs {
		if conv.HasParticipant(userID) {
			result = append(result, copyConversation(conv))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// MarkRead zeroes the user's counter and flips inbound messages to read.
func (m *MemoryBackend) MarkRead(ctx context.Context, chatID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[chatID]
	if !ok || !conv.HasParticipant(userID) {
		return ErrConversationNotFound
	}
	conv = copyConversation(conv)
	conv.Unread[userID] = 0
	if conv.LastMessage != nil && conv.LastMessage.SenderID != userID {
		conv.LastMessage.IsRead = true
	}
	m.convs[chatID] = conv

	msgs := m.messages[chatID]
	for i := range msgs {
		if msgs[i].SenderID != userID {
			msgs[i].IsRead = true
		}
	}
	return nil
}

// Delete removes the conversation, its messages and typing flags.
func (m *MemoryBackend) Delete(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[chatID]; !ok {
		return ErrConversationNotFound
	}
	delete(m.messages, chatID)
	delete(m.typing, chatID)
	delete(m.convs, chatID)
	return nil
}

// Append stores a message and updates the owning conversation atomically.
func (m *MemoryBackend) Append(ctx context.Context, chatID, senderID, text string) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[chatID]
	if !ok {
		return models.Message{}, ErrConversationNotFound
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: m.now(),
	}
	m.messages[chatID] = append(m.messages[chatID], msg)

	conv = copyConversation(conv)
	created := msg.CreatedAt
	conv.LastMessage = &models.LastMessage{
		Text:      text,
		SenderID:  senderID,
		CreatedAt: &created,
	}
	if senderID != conv.User1ID {
		conv.Unread[conv.User1ID]++
	}
	if senderID != conv.User2ID {
		conv.Unread[conv.User2ID]++
	}
	conv.UpdatedAt = created
	m.convs[chatID] = conv
	return msg, nil
}

// ListByChat returns messages ordered by creation time ascending.
func (m *MemoryBackend) ListByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := make([]models.Message, len(m.messages[chatID]))
	copy(msgs, m.messages[chatID])
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// Set upserts the typing flag for (chatID, userID).
func (m *MemoryBackend) Set(ctx context.Context, chatID, userID string, isTyping bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	flags, ok := m.typing[chatID]
	if !ok {
		flags = make(map[string]models.TypingFlag)
		m.typing[chatID] = flags
	}
	flags[userID] = models.TypingFlag{
		ChatID:    chatID,
		UserID:    userID,
		IsTyping:  isTyping,
		UpdatedAt: m.now(),
	}
	return nil
}

// ActiveTypers lists users currently typing in the chat.
func (m *MemoryBackend) ActiveTypers(ctx context.Context, chatID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var users []string
	for userID, flag := range m.typing[chatID] {
		if flag.IsTyping {
			users = append(users, userID)
		}
	}
	sort.Strings(users)
	return users, nil
}
