package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedit-11/artfolio-chat/internal/models"
	"github.com/ahmedit-11/artfolio-chat/internal/repositories"
	"github.com/ahmedit-11/artfolio-chat/internal/stream"
)

func newTestService() (*Service, *repositories.MemoryBackend) {
	backend := repositories.NewMemoryBackend()
	svc := NewService(backend, backend, backend, stream.NewBroker())
	return svc, backend
}

func TestEnsureConversationIdempotentUnderRace(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// Both users start the chat "simultaneously" from either side.
	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "u1", "u2"
			if i%2 == 1 {
				a, b = b, a
			}
			ids[i], errs[i] = svc.EnsureConversation(ctx, a, b)
		}(i)
	}
	wg.Wait()

	want := models.NewChatID("u1", "u2")
	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, want, ids[i])
	}

	convs, err := svc.Conversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, convs, 1, "racing starts must converge on exactly one conversation")
	assert.Equal(t, want, convs[0].ID)
}

func TestEnsureConversationValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.EnsureConversation(ctx, "u1", "u1")
	assert.ErrorIs(t, err, ErrSelfChat)

	_, err = svc.EnsureConversation(ctx, "", "u2")
	assert.ErrorIs(t, err, ErrEmptyUserID)
}

func TestEnsureConversationPreservesLastMessage(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	chatID, err := svc.EnsureConversation(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, chatID, "u1", "hello")
	require.NoError(t, err)

	// Re-opening the chat must not clobber the denormalized last message.
	again, err := svc.EnsureConversation(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, chatID, again)

	conv, err := svc.Conversation(ctx, chatID)
	require.NoError(t, err)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "hello", conv.LastMessage.Text)
}

func TestFirstMessageCreatesSingleConversation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	chatID, err := svc.EnsureConversation(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.NewChatID("u1", "u2"), chatID)

	msg, err := svc.AppendMessage(ctx, chatID, "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "u1", msg.SenderID)
	assert.False(t, msg.CreatedAt.IsZero(), "timestamp is server-assigned")
	assert.False(t, msg.IsRead)

	msgs, err := svc.Messages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	conv, err := svc.Conversation(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadFor("u2"))
	assert.Equal(t, 0, conv.UnreadFor("u1"))
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "hello", conv.LastMessage.Text)
	assert.Equal(t, "u1", conv.LastMessage.SenderID)
	assert.False(t, conv.LastMessage.IsRead)
}

func TestAppendMessageValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	chatID, err := svc.EnsureConversation(ctx, "u1", "u2")
	require.NoError(t, err)

	_, err = svc.AppendMessage(ctx, chatID, "u1", "   \n ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.AppendMessage(ctx, chatID, "intruder", "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.AppendMessage(ctx, models.NewChatID("u1", "u3"), "u1", "hi")
	assert.ErrorIs(t, err, repositories.ErrConversationNotFound)
}

func TestMarkReadZeroesCounterAndFlipsInboundOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	chatID, err := svc.EnsureConversation(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, chatID, "u1", "hello")
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, chatID, "u2", "hey back")
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, chatID, "u2"))

	conv, err := svc.Conversation(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadFor("u2"))
	assert.Equal(t, 1, conv.UnreadFor("u1"), "the other participant's counter is untouched")

	msgs, err := svc.Messages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		switch m.SenderID {
		case "u1":
			assert.True(t, m.IsRead, "inbound message flips to read")
			assert.Equal(t, "u1", m.SenderID, "ownership is unchanged")
		case "u2":
			assert.False(t, m.IsRead, "a sender's own messages are never unread for them")
		}
	}

	// Counter stays zero until a new inbound message arrives.
	conv, err = svc.Conversation(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadFor("u2"))

	_, err = svc.AppendMessage(ctx, chatID, "u1", "again")
	require.NoError(t, err)
	conv, err = svc.Conversation(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadFor("u2"))
}

func TestDeleteConversationRemovesEverything(t *testing.T) {
	svc, backend := newTestService()
	ctx := context.Background()

	chatID, err := svc.EnsureConversation(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, chatID, "u1", "hello")
	require.NoError(t, err)
	require.NoError(t, svc.SetTyping(ctx, chatID, "u2", true))

	typingSnaps := make(chan []string, 8)
	disposeTyping, err := svc.SubscribeTyping(ctx, chatID, func(users []string) {
		typingSnaps <- users
	})
	require.NoError(t, err)
	defer disposeTyping()
	assert.Equal(t, []string{"u2"}, waitSnapshot(t, typingSnaps))

	require.NoError(t, svc.DeleteConversation(ctx, chatID))

	_, err = svc.Conversation(ctx, chatID)
	assert.ErrorIs(t, err, repositories.ErrConversationNotFound)

	msgs, err := svc.Messages(ctx, chatID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	typers, err := backend.ActiveTypers(ctx, chatID)
	require.NoError(t, err)
	assert.Empty(t, typers, "typing flags must not survive the conversation")
	assert.Empty(t, waitSnapshot(t, typingSnaps), "typing subscribers converge on an empty set")

	for _, user := range []string{"u1", "u2"} {
		convs, err := svc.Conversations(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, convs, "conversation must vanish from %s's list", user)
	}
}

func TestSubscribeConversationsDeliversInitialAndUpdates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	snapshots := make(chan []models.Conversation, 8)
	dispose, err := svc.SubscribeConversations(ctx, "u1", func(list []models.Conversation) {
		snapshots <- list
	})
	require.NoError(t, err)
	defer dispose()

	initial := waitSnapshot(t, snapshots)
	assert.Empty(t, initial)

	chatID, err := svc.EnsureConversation(ctx, "u1", "u2")
	require.NoError(t, err)

	next := waitSnapshot(t, snapshots)
	require.Len(t, next, 1)
	assert.Equal(t, chatID, next[0].ID)
}

func TestSubscribeMessagesAscendingOrder(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	chatID, err := svc.EnsureConversation(ctx, "u1", "u2")
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		_, err = svc.AppendMessage(ctx, chatID, "u1", text)
		require.NoError(t, err)
	}

	snapshots := make(chan []models.Message, 8)
	dispose, err := svc.SubscribeMessages(ctx, chatID, func(msgs []models.Message) {
		snapshots <- msgs
	})
	require.NoError(t, err)
	defer dispose()

	msgs := waitSnapshot(t, snapshots)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Text)
	assert.Equal(t, "two", msgs[1].Text)
	assert.Equal(t, "three", msgs[2].Text)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[2].CreatedAt))
}

func TestSubscribeTypingFiltersInactive(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	chatID, err := svc.EnsureConversation(ctx, "u1", "u2")
	require.NoError(t, err)

	snapshots := make(chan []string, 8)
	dispose, err := svc.SubscribeTyping(ctx, chatID, func(users []string) {
		snapshots <- users
	})
	require.NoError(t, err)
	defer dispose()

	assert.Empty(t, waitSnapshot(t, snapshots))

	require.NoError(t, svc.SetTyping(ctx, chatID, "u2", true))
	assert.Equal(t, []string{"u2"}, waitSnapshot(t, snapshots))

	require.NoError(t, svc.SetTyping(ctx, chatID, "u2", false))
	assert.Empty(t, waitSnapshot(t, snapshots))
}

func TestDisposerStopsDeliveries(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	chatID, err := svc.EnsureConversation(ctx, "u1", "u2")
	require.NoError(t, err)

	snapshots := make(chan []models.Message, 8)
	dispose, err := svc.SubscribeMessages(ctx, chatID, func(msgs []models.Message) {
		snapshots <- msgs
	})
	require.NoError(t, err)
	waitSnapshot(t, snapshots)

	dispose()
	dispose() // idempotent

	_, err = svc.AppendMessage(ctx, chatID, "u1", "after dispose")
	require.NoError(t, err)

	select {
	case <-snapshots:
		t.Fatal("disposed subscription must not deliver")
	case <-time.After(100 * time.Millisecond):
	}
}

func waitSnapshot[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		panic("unreachable")
	}
}
