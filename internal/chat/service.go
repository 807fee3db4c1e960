// Package chat is the data access layer over chat storage and the change
// feed: id derivation, message append, read-state and typing mutation, and
// live snapshot subscriptions. It carries no reconciliation logic; that
// belongs to the session aggregator.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ahmedit-11/artfolio-chat/internal/models"
	"github.com/ahmedit-11/artfolio-chat/internal/repositories"
	"github.com/ahmedit-11/artfolio-chat/internal/stream"
)

var (
	ErrSelfChat       = errors.New("cannot start a chat with yourself")
	ErrEmptyUserID    = errors.New("empty user id")
	ErrEmptyMessage   = errors.New("message text is empty")
	ErrNotParticipant = errors.New("user is not a chat participant")
)

// Service exposes every chat storage operation and publishes a change signal
// for each write, so live subscribers converge on the new state.
type Service struct {
	convs  repositories.ConversationRepository
	msgs   repositories.MessageRepository
	typing repositories.TypingRepository
	broker *stream.Broker
}

// NewService builds a Service.
func NewService(convs repositories.ConversationRepository, msgs repositories.MessageRepository, typing repositories.TypingRepository, broker *stream.Broker) *Service {
	return &Service{convs: convs, msgs: msgs, typing: typing, broker: broker}
}

func topicConversations(userID string) string { return "conversations:" + userID }
func topicMessages(chatID string) string      { return "messages:" + chatID }
func topicTyping(chatID string) string        { return "typing:" + chatID }

// EnsureConversation upserts the conversation between two users and returns
// its derived chat id. Idempotent: concurrent calls from either side converge
// on the same document because the write is an upsert keyed by the derived
// id, not an insert.
func (s *Service) EnsureConversation(ctx context.Context, userA, userB string) (string, error) {
	a := strings.TrimSpace(userA)
	b := strings.TrimSpace(userB)
	if a == "" || b == "" {
		return "", ErrEmptyUserID
	}
	if a == b {
		return "", ErrSelfChat
	}

	chatID := models.NewChatID(a, b)
	if err := s.convs.Ensure(ctx, chatID, a, b); err != nil {
		return "", fmt.Errorf("ensure conversation: %w", err)
	}

	s.broker.Publish(topicConversations(a))
	s.broker.Publish(topicConversations(b))
	return chatID, nil
}

// AppendMessage stores an immutable message and updates the conversation's
// denormalized last message and the recipient's unread counter.
func (s *Service) AppendMessage(ctx context.Context, chatID, senderID, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}
	if !models.IsParticipant(chatID, senderID) {
		return models.Message{}, ErrNotParticipant
	}

	msg, err := s.msgs.Append(ctx, chatID, senderID, text)
	if err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}

	s.broker.Publish(topicMessages(chatID))
	s.publishToParticipants(chatID)
	return msg, nil
}

// Conversation fetches a single conversation document.
func (s *Service) Conversation(ctx context.Context, chatID string) (models.Conversation, error) {
	return s.convs.Get(ctx, chatID)
}

// Conversations fetches the current conversation set for a user.
func (s *Service) Conversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.convs.ListForUser(ctx, userID)
}

// Messages fetches the full ordered message list of a chat.
func (s *Service) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	return s.msgs.ListByChat(ctx, chatID)
}

// MarkRead zeroes the user's unread counter for the chat and flips messages
// from the other participant to read. The user's own messages are untouched.
func (s *Service) MarkRead(ctx context.Context, chatID, userID string) error {
	if !models.IsParticipant(chatID, userID) {
		return ErrNotParticipant
	}
	if err := s.convs.MarkRead(ctx, chatID, userID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	s.broker.Publish(topicMessages(chatID))
	s.publishToParticipants(chatID)
	return nil
}

// SetTyping upserts the ephemeral typing flag for the user in the chat.
func (s *Service) SetTyping(ctx context.Context, chatID, userID string, isTyping bool) error {
	if !models.IsParticipant(chatID, userID) {
		return ErrNotParticipant
	}
	if err := s.typing.Set(ctx, chatID, userID, isTyping); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}

	s.broker.Publish(topicTyping(chatID))
	return nil
}

// DeleteConversation irreversibly removes the conversation, its messages and
// typing flags (children before parent), and signals every affected feed.
func (s *Service) DeleteConversation(ctx context.Context, chatID string) error {
	if err := s.convs.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.broker.Publish(topicMessages(chatID))
	s.broker.Publish(topicTyping(chatID))
	s.publishToParticipants(chatID)
	return nil
}

func (s *Service) publishToParticipants(chatID string) {
	a, b, err := models.SplitChatID(chatID)
	if err != nil {
		log.Printf("cannot signal participants of %q: %v", chatID, err)
		return
	}
	s.broker.Publish(topicConversations(a))
	s.broker.Publish(topicConversations(b))
}

// SubscribeConversations delivers the user's full conversation set on
// subscribe and again after every change. The callback runs on a single
// goroutine, so deliveries never interleave. The returned disposer stops the
// stream; leaking it keeps stale deliveries flowing.
func (s *Service) SubscribeConversations(ctx context.Context, userID string, onChange func([]models.Conversation)) (func(), error) {
	return s.subscribe(ctx, topicConversations(userID), func(ctx context.Context) error {
		list, err := s.convs.ListForUser(ctx, userID)
		if err != nil {
			return err
		}
		onChange(list)
		return nil
	})
}

// SubscribeMessages delivers the chat's full ordered message list on
// subscribe and after every change.
func (s *Service) SubscribeMessages(ctx context.Context, chatID string, onChange func([]models.Message)) (func(), error) {
	return s.subscribe(ctx, topicMessages(chatID), func(ctx context.Context) error {
		msgs, err := s.msgs.ListByChat(ctx, chatID)
		if err != nil {
			return err
		}
		onChange(msgs)
		return nil
	})
}

// SubscribeTyping delivers the set of currently-typing users; entries with a
// false flag are filtered before reaching the consumer.
func (s *Service) SubscribeTyping(ctx context.Context, chatID string, onChange func([]string)) (func(), error) {
	return s.subscribe(ctx, topicTyping(chatID), func(ctx context.Context) error {
		users, err := s.typing.ActiveTypers(ctx, chatID)
		if err != nil {
			return err
		}
		onChange(users)
		return nil
	})
}

// subscribe wires a broker topic to a snapshot fetch. The initial snapshot is
// fetched synchronously so establishment errors surface to the caller;
// delivery happens on the subscription goroutine.
func (s *Service) subscribe(ctx context.Context, topic string, deliver func(context.Context) error) (func(), error) {
	signals, cancel := s.broker.Subscribe(topic)

	// Establishment failure is fatal to the subscription, not retried here.
	if err := deliver(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				if err := deliver(context.Background()); err != nil {
					log.Printf("snapshot delivery failed on %s: %v", topic, err)
				}
			}
		}
	}()

	var once sync.Once
	disposer := func() {
		once.Do(func() {
			cancel()
			close(done)
		})
	}
	return disposer, nil
}
