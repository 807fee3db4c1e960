package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ahmedit-11/artfolio-chat/internal/chat"
	"github.com/ahmedit-11/artfolio-chat/internal/models"
	"github.com/ahmedit-11/artfolio-chat/internal/observability"
)

var ErrNoSelection = errors.New("no conversation selected")

// ProfileResolver resolves user display profiles; it must degrade internally
// and never fail.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, userID string) models.UserProfile
}

// Sink receives the session's published state and notifications, typically a
// websocket hub fanning out to the user's open clients.
type Sink interface {
	StateChanged(userID string, ev models.ChatEvent)
	Notify(userID string, n models.Notification)
}

// Notifier forwards new-message notifications to an external channel (push
// service, event bus). Optional.
type Notifier interface {
	NewMessage(ctx context.Context, recipientID string, n models.Notification)
}

// Session aggregates one user's chat state for the lifetime of the chat
// feature: the sorted conversation list, the selected conversation with its
// message thread and typing set, the profile cache, and the notification
// delta baseline. Constructed at activation, torn down with Close; never a
// singleton.
type Session struct {
	userID   string
	svc      *chat.Service
	profiles ProfileResolver
	sink     Sink
	notifier Notifier

	mu           sync.Mutex
	views        []models.ConversationView
	selected     string
	messages     []models.Message
	typingUsers  []string
	profileCache map[string]models.UserProfile
	baseline     Baseline

	disposeConvs  func()
	disposeMsgs   func()
	disposeTyping func()

	closeOnce sync.Once
}

// NewSession builds a session for the user. Call Start to begin receiving
// snapshots and Close to dispose every subscription.
func NewSession(userID string, svc *chat.Service, profiles ProfileResolver, sink Sink, notifier Notifier) *Session {
	return &Session{
		userID:       userID,
		svc:          svc,
		profiles:     profiles,
		sink:         sink,
		notifier:     notifier,
		profileCache: make(map[string]models.UserProfile),
		baseline:     NewBaseline(),
	}
}

// UserID returns the session owner.
func (s *Session) UserID() string {
	return s.userID
}

// Start subscribes to the user's conversation feed. The first snapshot is
// processed before Start returns and never emits notifications.
func (s *Session) Start(ctx context.Context) error {
	dispose, err := s.svc.SubscribeConversations(ctx, s.userID, s.onConversations)
	if err != nil {
		return fmt.Errorf("start session for %s: %w", s.userID, err)
	}
	s.mu.Lock()
	s.disposeConvs = dispose
	s.mu.Unlock()
	return nil
}

// onConversations processes one raw conversation snapshot. Deliveries arrive
// serialized on the subscription goroutine, so each pass runs to completion
// (profile resolution included) before the next one can touch the baseline.
func (s *Session) onConversations(snapshot []models.Conversation) {
	ctx := context.Background()

	// Resolve profiles missing from the cache before building the list; a
	// per-user failure degrades to a placeholder inside the resolver.
	s.mu.Lock()
	var missing []string
	seen := make(map[string]bool)
	for _, conv := range snapshot {
		other := conv.Other(s.userID)
		if _, ok := s.profileCache[other]; !ok && !seen[other] {
			seen[other] = true
			missing = append(missing, other)
		}
	}
	s.mu.Unlock()

	resolved := make([]models.UserProfile, len(missing))
	var wg sync.WaitGroup
	for i, userID := range missing {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			resolved[i] = s.profiles.ResolveProfile(ctx, userID)
		}(i, userID)
	}
	wg.Wait()

	s.mu.Lock()
	for _, profile := range resolved {
		s.profileCache[profile.ID] = profile
	}
	res := Reconcile(s.baseline, snapshot, s.profileCache, s.userID, s.selected)
	s.baseline = res.Baseline
	s.views = res.Views
	s.mu.Unlock()

	observability.IncSnapshotProcessed()
	s.publishState()

	for _, n := range res.Notifications {
		observability.IncNotification()
		if s.notifier != nil {
			s.notifier.NewMessage(ctx, s.userID, n)
		}
		if s.sink != nil {
			s.sink.Notify(s.userID, n)
		}
	}
}

func (s *Session) onMessages(chatID string) func([]models.Message) {
	return func(msgs []models.Message) {
		s.mu.Lock()
		if s.selected != chatID {
			// Late delivery from a subscription being torn down.
			s.mu.Unlock()
			return
		}
		s.messages = msgs
		s.mu.Unlock()
		s.publishState()
	}
}

func (s *Session) onTyping(chatID string) func([]string) {
	return func(users []string) {
		others := make([]string, 0, len(users))
		for _, u := range users {
			if u != s.userID {
				others = append(others, u)
			}
		}
		s.mu.Lock()
		if s.selected != chatID {
			s.mu.Unlock()
			return
		}
		s.typingUsers = others
		s.mu.Unlock()
		s.publishState()
	}
}

// Select opens a conversation: the local unread count drops to zero
// immediately, the backend read-mark runs as a side effect, and live message
// and typing subscriptions replace any previous ones.
func (s *Session) Select(ctx context.Context, chatID string) error {
	if !models.IsParticipant(chatID, s.userID) {
		return chat.ErrNotParticipant
	}

	s.mu.Lock()
	if s.selected == chatID {
		s.mu.Unlock()
		return nil
	}
	oldMsgs, oldTyping := s.disposeMsgs, s.disposeTyping
	s.disposeMsgs, s.disposeTyping = nil, nil
	s.selected = chatID
	s.messages = nil
	s.typingUsers = nil
	for i := range s.views {
		if s.views[i].ID == chatID {
			s.views[i].UnreadCount = 0
		}
	}
	s.mu.Unlock()

	disposeAll(oldMsgs, oldTyping)
	s.publishState()

	if err := s.svc.MarkRead(ctx, chatID, s.userID); err != nil {
		log.Printf("mark read failed for %s: %v", chatID, err)
	}

	disposeMsgs, err := s.svc.SubscribeMessages(ctx, chatID, s.onMessages(chatID))
	if err != nil {
		return err
	}
	disposeTyping, err := s.svc.SubscribeTyping(ctx, chatID, s.onTyping(chatID))
	if err != nil {
		disposeMsgs()
		return err
	}

	s.mu.Lock()
	if s.selected != chatID {
		// Selection moved on while we were subscribing.
		s.mu.Unlock()
		disposeAll(disposeMsgs, disposeTyping)
		return nil
	}
	s.disposeMsgs = disposeMsgs
	s.disposeTyping = disposeTyping
	s.mu.Unlock()
	return nil
}

// Deselect closes the open conversation, so background notifications resume
// firing for it.
func (s *Session) Deselect() {
	s.mu.Lock()
	oldMsgs, oldTyping := s.disposeMsgs, s.disposeTyping
	s.disposeMsgs, s.disposeTyping = nil, nil
	s.selected = ""
	s.messages = nil
	s.typingUsers = nil
	s.mu.Unlock()

	disposeAll(oldMsgs, oldTyping)
	s.publishState()
}

// Selected returns the currently open chat id, empty when none.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Send appends a message to the selected conversation and optimistically
// patches the local last message so the sender's own view updates before the
// subscription round-trips. The patch is not rolled back on a later failure;
// the next snapshot self-corrects it.
func (s *Session) Send(ctx context.Context, text string) (models.Message, error) {
	s.mu.Lock()
	chatID := s.selected
	s.mu.Unlock()
	if chatID == "" {
		return models.Message{}, ErrNoSelection
	}

	msg, err := s.svc.AppendMessage(ctx, chatID, s.userID, text)
	if err != nil {
		return models.Message{}, err
	}

	s.mu.Lock()
	for i := range s.views {
		if s.views[i].ID == chatID {
			created := msg.CreatedAt
			s.views[i].LastMessage = &models.LastMessage{
				Text:      msg.Text,
				SenderID:  msg.SenderID,
				CreatedAt: &created,
			}
			s.views[i].UpdatedAt = msg.CreatedAt
		}
	}
	s.mu.Unlock()
	s.publishState()
	return msg, nil
}

// StartChat opens (or creates) the conversation with another user and selects
// it. No synthetic list entry is inserted; the authoritative entry arrives
// via the live subscription, so a racing snapshot cannot produce a ghost
// duplicate.
func (s *Session) StartChat(ctx context.Context, otherUserID string) (string, error) {
	if otherUserID == s.userID {
		return "", chat.ErrSelfChat
	}
	chatID := models.NewChatID(s.userID, otherUserID)

	s.mu.Lock()
	exists := false
	for _, v := range s.views {
		if v.ID == chatID {
			exists = true
			break
		}
	}
	_, cached := s.profileCache[otherUserID]
	s.mu.Unlock()

	if !exists {
		if !cached {
			profile := s.profiles.ResolveProfile(ctx, otherUserID)
			s.mu.Lock()
			s.profileCache[otherUserID] = profile
			s.mu.Unlock()
		}
		if _, err := s.svc.EnsureConversation(ctx, s.userID, otherUserID); err != nil {
			return "", err
		}
	}

	if err := s.Select(ctx, chatID); err != nil {
		return "", err
	}
	return chatID, nil
}

// SetTyping publishes the user's typing flag for the open conversation.
func (s *Session) SetTyping(ctx context.Context, isTyping bool) error {
	s.mu.Lock()
	chatID := s.selected
	s.mu.Unlock()
	if chatID == "" {
		return ErrNoSelection
	}
	return s.svc.SetTyping(ctx, chatID, s.userID, isTyping)
}

// Delete removes a conversation irreversibly, deselecting it first when open.
func (s *Session) Delete(ctx context.Context, chatID string) error {
	if !models.IsParticipant(chatID, s.userID) {
		return chat.ErrNotParticipant
	}
	if s.Selected() == chatID {
		s.Deselect()
	}
	return s.svc.DeleteConversation(ctx, chatID)
}

// State returns the current aggregated view.
func (s *Session) State() models.ChatEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ChatEvent{
		Type:          "state",
		Conversations: append([]models.ConversationView(nil), s.views...),
		SelectedChat:  s.selected,
		Messages:      append([]models.Message(nil), s.messages...),
		TypingUsers:   append([]string(nil), s.typingUsers...),
	}
}

// Close disposes every subscription. A leaked subscription is a correctness
// bug: it can resurrect stale typing indicators or duplicate notifications.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		disposers := []func(){s.disposeConvs, s.disposeMsgs, s.disposeTyping}
		s.disposeConvs, s.disposeMsgs, s.disposeTyping = nil, nil, nil
		s.mu.Unlock()
		disposeAll(disposers...)
	})
}

func (s *Session) publishState() {
	if s.sink == nil {
		return
	}
	s.sink.StateChanged(s.userID, s.State())
}

func disposeAll(disposers ...func()) {
	for _, dispose := range disposers {
		if dispose != nil {
			dispose()
		}
	}
}
