package database

import "context"

const (
	// maxTxAttempts bounds how many times a transaction body is run
	// before a conflict is reported to the caller.
	maxTxAttempts = 5

	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

type AnonChatRepository interface {
	Ping(ctx context.Context) error
	CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error)
	GetRoom(ctx context.Context, roomId string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	ListParticipants(ctx context.Context, roomId string) ([]Participant, error)
	CountParticipants(ctx context.Context, roomId string) (int, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessages(ctx context.Context, roomId string, before int64, limit int) ([]Message, error)
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of the store available inside RunInTransaction. Reads
// made through it are validated when the transaction commits; if another
// writer changed them first the whole body is run again.
type Tx interface {
	GetRoom(ctx context.Context, roomId string) (Room, error)
	SetBannedUsers(ctx context.Context, roomId string, banned []string) error
	GetParticipant(ctx context.Context, roomId, userId string) (Participant, error)
	CreateParticipant(ctx context.Context, params CreateParticipantParams) (Participant, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultMessageLimit
	}
	if limit > maxMessageLimit {
		return maxMessageLimit
	}
	return limit
}
