package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ahmedit-11/artfolio-chat/internal/models"
	"github.com/ahmedit-11/artfolio-chat/internal/repositories"
	"github.com/ahmedit-11/artfolio-chat/internal/session"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) Ensure(ctx context.Context, chatID, user1ID, user2ID string) error {
	args := m.Called(ctx, chatID, user1ID, user2ID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, chatID string) (models.Conversation, error) {
	args := m.Called(ctx, chatID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) MarkRead(ctx context.Context, chatID, userID string) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) Delete(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, chatID, senderID, text string) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type TypingRepositoryMock struct {
	mock.Mock
}

func (m *TypingRepositoryMock) Set(ctx context.Context, chatID, userID string, isTyping bool) error {
	args := m.Called(ctx, chatID, userID, isTyping)
	return args.Error(0)
}

func (m *TypingRepositoryMock) ActiveTypers(ctx context.Context, chatID string) ([]string, error) {
	args := m.Called(ctx, chatID)
	var users []string
	if val := args.Get(0); val != nil {
		users = val.([]string)
	}
	return users, args.Error(1)
}

type ProfileResolverMock struct {
	mock.Mock
}

func (m *ProfileResolverMock) ResolveProfile(ctx context.Context, userID string) models.UserProfile {
	args := m.Called(ctx, userID)
	var profile models.UserProfile
	if val := args.Get(0); val != nil {
		profile = val.(models.UserProfile)
	}
	return profile
}

type TokenValidatorMock struct {
	mock.Mock
}

func (m *TokenValidatorMock) ValidateToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.TypingRepository = (*TypingRepositoryMock)(nil)
var _ session.ProfileResolver = (*ProfileResolverMock)(nil)
var _ interface {
	ValidateToken(context.Context, string) (string, error)
} = (*TokenValidatorMock)(nil)
