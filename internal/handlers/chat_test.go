package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahmedit-11/artfolio-chat/internal/chat"
	"github.com/ahmedit-11/artfolio-chat/internal/mocks"
	"github.com/ahmedit-11/artfolio-chat/internal/models"
	"github.com/ahmedit-11/artfolio-chat/internal/session"
	"github.com/ahmedit-11/artfolio-chat/internal/stream"
)

type handlerFixture struct {
	convRepo   *mocks.ConversationRepositoryMock
	msgRepo    *mocks.MessageRepositoryMock
	typingRepo *mocks.TypingRepositoryMock
	profiles   *mocks.ProfileResolverMock
	router     *gin.Engine
}

func setupChatRouter(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		convRepo:   new(mocks.ConversationRepositoryMock),
		msgRepo:    new(mocks.MessageRepositoryMock),
		typingRepo: new(mocks.TypingRepositoryMock),
		profiles:   new(mocks.ProfileResolverMock),
	}

	svc := chat.NewService(f.convRepo, f.msgRepo, f.typingRepo, stream.NewBroker())
	manager := session.NewManager(svc, f.profiles, nil, nil)
	handler := NewChatHandler(svc, manager)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "user-1")
		c.Next()
	})
	r.GET("/chat/conversations", handler.ListConversations)
	r.POST("/chat/conversations/start", handler.StartChat)
	r.GET("/chat/conversations/:chat_id/messages", handler.GetMessages)
	r.POST("/chat/conversations/:chat_id/messages", handler.PostMessage)
	r.POST("/chat/conversations/:chat_id/read", handler.MarkRead)
	r.POST("/chat/conversations/:chat_id/typing", handler.SetTyping)
	r.DELETE("/chat/conversations/:chat_id", handler.DeleteConversation)
	f.router = r
	return f
}

func TestListConversationsSuccess(t *testing.T) {
	f := setupChatRouter(t)

	f.convRepo.On("ListForUser", mock.Anything, "user-1").Return([]models.Conversation{
		{ID: "user-1_user-2", User1ID: "user-1", User2ID: "user-2", Unread: map[string]int{"user-1": 2}},
	}, nil)
	f.profiles.On("ResolveProfile", mock.Anything, "user-2").Return(models.UserProfile{ID: "user-2", Name: "Bob"})

	req := httptest.NewRequest(http.MethodGet, "/chat/conversations", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.ConversationView `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, "Bob", resp.Conversations[0].OtherUser.Name)
	assert.Equal(t, 2, resp.Conversations[0].UnreadCount)

	f.convRepo.AssertExpectations(t)
	f.profiles.AssertExpectations(t)
}

func TestListConversationsRepoError(t *testing.T) {
	f := setupChatRouter(t)

	f.convRepo.On("ListForUser", mock.Anything, "user-1").Return(([]models.Conversation)(nil), assert.AnError)

	req := httptest.NewRequest(http.MethodGet, "/chat/conversations", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	f.convRepo.AssertExpectations(t)
}

func TestStartChatSuccess(t *testing.T) {
	f := setupChatRouter(t)

	f.convRepo.On("ListForUser", mock.Anything, "user-1").Return([]models.Conversation{}, nil)
	f.profiles.On("ResolveProfile", mock.Anything, "user-2").Return(models.UserProfile{ID: "user-2", Name: "Bob"})
	f.convRepo.On("Ensure", mock.Anything, "user-1_user-2", "user-1", "user-2").Return(nil)
	f.convRepo.On("MarkRead", mock.Anything, "user-1_user-2", "user-1").Return(nil)
	f.msgRepo.On("ListByChat", mock.Anything, "user-1_user-2").Return([]models.Message{}, nil)
	f.typingRepo.On("ActiveTypers", mock.Anything, "user-1_user-2").Return([]string{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat/conversations/start", bytes.NewBufferString(`{"user_id":"user-2"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "user-1_user-2", resp["chat_id"])
	f.convRepo.AssertExpectations(t)
}

func TestStartChatWithSelf(t *testing.T) {
	f := setupChatRouter(t)

	f.convRepo.On("ListForUser", mock.Anything, "user-1").Return([]models.Conversation{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat/conversations/start", bytes.NewBufferString(`{"user_id":"user-1"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartChatMissingBody(t *testing.T) {
	f := setupChatRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/chat/conversations/start", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesSuccess(t *testing.T) {
	f := setupChatRouter(t)

	f.msgRepo.On("ListByChat", mock.Anything, "user-1_user-2").Return([]models.Message{
		{ID: "m1", ChatID: "user-1_user-2", SenderID: "user-2", Text: "hi"},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/chat/conversations/user-1_user-2/messages", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	f.msgRepo.AssertExpectations(t)
}

func TestGetMessagesNotParticipant(t *testing.T) {
	f := setupChatRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/chat/conversations/user-2_user-3/messages", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	f.msgRepo.AssertNotCalled(t, "ListByChat", mock.Anything, mock.Anything)
}

func TestPostMessageSuccess(t *testing.T) {
	f := setupChatRouter(t)

	f.msgRepo.On("Append", mock.Anything, "user-1_user-2", "user-1", "hello").
		Return(models.Message{ID: "m1", ChatID: "user-1_user-2", SenderID: "user-1", Text: "hello"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat/conversations/user-1_user-2/messages", bytes.NewBufferString(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	f.msgRepo.AssertExpectations(t)
}

func TestPostMessageBlankText(t *testing.T) {
	f := setupChatRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/chat/conversations/user-1_user-2/messages", bytes.NewBufferString(`{"text":"   "}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	f.msgRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageNotParticipant(t *testing.T) {
	f := setupChatRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/chat/conversations/user-2_user-3/messages", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMarkReadSuccess(t *testing.T) {
	f := setupChatRouter(t)

	f.convRepo.On("MarkRead", mock.Anything, "user-1_user-2", "user-1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat/conversations/user-1_user-2/read", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	f.convRepo.AssertExpectations(t)
}

func TestSetTypingSuccess(t *testing.T) {
	f := setupChatRouter(t)

	f.typingRepo.On("Set", mock.Anything, "user-1_user-2", "user-1", true).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat/conversations/user-1_user-2/typing", bytes.NewBufferString(`{"is_typing":true}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	f.typingRepo.AssertExpectations(t)
}

func TestDeleteConversationSuccess(t *testing.T) {
	f := setupChatRouter(t)

	f.convRepo.On("Delete", mock.Anything, "user-1_user-2").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chat/conversations/user-1_user-2", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	f.convRepo.AssertExpectations(t)
}

func TestDeleteConversationNotParticipant(t *testing.T) {
	f := setupChatRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/chat/conversations/user-2_user-3", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	f.convRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
