package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"support-chat-service/internal/models"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) GetOrCreateRoom(ctx context.Context, roomID string) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) AddParticipant(ctx context.Context, roomID string, accountID string) error {
	args := m.Called(ctx, roomID, accountID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) Participants(ctx context.Context, roomID string) ([]string, error) {
	args := m.Called(ctx, roomID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *RoomRepositoryMock) IsParticipant(ctx context.Context, roomID string, accountID string) (bool, error) {
	args := m.Called(ctx, roomID, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) DeleteRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, roomID string, msg models.Message) (bool, error) {
	args := m.Called(ctx, roomID, msg)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) History(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, roomID string, messageID string) (models.Message, error) {
	args := m.Called(ctx, roomID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDeletedFor(ctx context.Context, roomID string, messageID string, accountIDs []string) error {
	args := m.Called(ctx, roomID, messageID, accountIDs)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Clear(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) Authenticate(ctx context.Context, token string) (models.Account, error) {
	args := m.Called(ctx, token)
	var account models.Account
	if val := args.Get(0); val != nil {
		account = val.(models.Account)
	}
	return account, args.Error(1)
}

func (m *DirectoryMock) IsParticipantAuthorized(ctx context.Context, accountID string) (bool, error) {
	args := m.Called(ctx, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *DirectoryMock) ResolveFileReference(ctx context.Context, uploadToken string) (models.FileRef, error) {
	args := m.Called(ctx, uploadToken)
	var file models.FileRef
	if val := args.Get(0); val != nil {
		file = val.(models.FileRef)
	}
	return file, args.Error(1)
}
