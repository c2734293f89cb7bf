package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockAnonChatRepository struct {
	mock.Mock
}

func (m *MockAnonChatRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockAnonChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockAnonChatRepository) GetRoom(ctx context.Context, roomId string) (Room, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockAnonChatRepository) ListRooms(ctx context.Context) ([]Room, error) {
	args := m.Called(ctx)
	if rooms, ok := args.Get(0).([]Room); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockAnonChatRepository) ListParticipants(ctx context.Context, roomId string) ([]Participant, error) {
	args := m.Called(ctx, roomId)
	if participants, ok := args.Get(0).([]Participant); ok {
		return participants, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockAnonChatRepository) CountParticipants(ctx context.Context, roomId string) (int, error) {
	args := m.Called(ctx, roomId)
	return args.Int(0), args.Error(1)
}
func (m *MockAnonChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockAnonChatRepository) GetMessages(ctx context.Context, roomId string, before int64, limit int) ([]Message, error) {
	args := m.Called(ctx, roomId, before, limit)
	if messages, ok := args.Get(0).([]Message); ok {
		return messages, args.Error(1)
	}
	return nil, args.Error(1)
}

// RunInTransaction runs fn against the Tx given as the first return value,
// if any, and then returns the configured error. A non-nil error from fn
// wins.
func (m *MockAnonChatRepository) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(Tx); ok {
		if err := fn(tx); err != nil {
			return err
		}
	}
	return args.Error(1)
}

type MockTx struct {
	mock.Mock
}

func (m *MockTx) GetRoom(ctx context.Context, roomId string) (Room, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockTx) SetBannedUsers(ctx context.Context, roomId string, banned []string) error {
	args := m.Called(ctx, roomId, banned)
	return args.Error(0)
}
func (m *MockTx) GetParticipant(ctx context.Context, roomId, userId string) (Participant, error) {
	args := m.Called(ctx, roomId, userId)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockTx) CreateParticipant(ctx context.Context, params CreateParticipantParams) (Participant, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Participant), args.Error(1)
}
