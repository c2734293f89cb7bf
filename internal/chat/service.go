// Package chat is the application facade over room directory, identity
// allocation, moderation and occupancy. Handlers and the live hub talk to
// a *Service and never to the components directly.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/npezzotti/go-anonchat/internal/database"
	"github.com/npezzotti/go-anonchat/internal/identity"
	"github.com/npezzotti/go-anonchat/internal/nickname"
	"github.com/npezzotti/go-anonchat/internal/rooms"
	"github.com/npezzotti/go-anonchat/internal/stats"
)

const maxMessageLength = 1000

// Notifier receives events that connected clients need to see.
type Notifier interface {
	RoomMessage(msg database.Message)
	UserBanned(roomId, userId string)
}

type nopNotifier struct{}

func (nopNotifier) RoomMessage(database.Message) {}
func (nopNotifier) UserBanned(string, string)    {}

type JoinResult struct {
	Nickname string        `json:"nickname"`
	Room     database.Room `json:"room"`
}

type Service struct {
	log       *log.Logger
	db        database.AnonChatRepository
	directory *rooms.Directory
	moderator *rooms.Moderator
	occupancy *rooms.Occupancy
	cache     *identity.Cache
	allocator *identity.Allocator
	stats     stats.StatsProvider
	notifier  Notifier
}

func NewService(logger *log.Logger, db database.AnonChatRepository, pool *nickname.Pool, su stats.StatsProvider) *Service {
	cache := identity.NewCache()
	su.RegisterMetric(stats.MessagesSent)

	return &Service{
		log:       logger,
		db:        db,
		directory: rooms.NewDirectory(logger, db),
		moderator: rooms.NewModerator(logger, db),
		occupancy: rooms.NewOccupancy(db),
		cache:     cache,
		allocator: identity.NewAllocator(logger, db, db, pool, cache, su),
		stats:     su,
		notifier:  nopNotifier{},
	}
}

// SetNotifier must be called before the service handles requests.
func (s *Service) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

// ResetIdentityCache drops every memoized nickname. Assigned nicknames
// are unaffected and are read back from the store on the next lookup.
func (s *Service) ResetIdentityCache() {
	s.cache.Clear()
}

func (s *Service) CreateAnonymousRoom(ctx context.Context, params rooms.CreateRoomParams) (database.Room, error) {
	return s.directory.CreateRoom(ctx, params)
}

func (s *Service) GetAnonymousRooms(ctx context.Context) ([]database.Room, error) {
	return s.directory.ListRooms(ctx)
}

func (s *Service) GetRoomsByCategory(ctx context.Context, category string) ([]database.Room, error) {
	return s.directory.RoomsByCategory(ctx, category)
}

// GetRoomDetails returns nil without an error when the room does not exist.
func (s *Service) GetRoomDetails(ctx context.Context, roomId string) (*database.Room, error) {
	room, err := s.directory.GetRoom(ctx, roomId)
	if errors.Is(err, rooms.ErrRoomNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &room, nil
}

func (s *Service) GetParticipantCount(ctx context.Context, roomId string) (int, error) {
	return s.occupancy.ParticipantCount(ctx, roomId)
}

func (s *Service) GetOrAssignNickname(ctx context.Context, roomId, userId string) string {
	return s.allocator.GetOrAssignNickname(ctx, roomId, userId)
}

func (s *Service) BanUserFromRoom(ctx context.Context, roomId, userIdToBan, requestingUserId string) error {
	if err := s.moderator.Ban(ctx, roomId, userIdToBan, requestingUserId); err != nil {
		return err
	}

	s.notifier.UserBanned(roomId, userIdToBan)
	return nil
}

func (s *Service) UnbanUserFromRoom(ctx context.Context, roomId, userIdToUnban, requestingUserId string) error {
	return s.moderator.Unban(ctx, roomId, userIdToUnban, requestingUserId)
}

func (s *Service) IsUserBanned(ctx context.Context, roomId, userId string) (bool, error) {
	return s.moderator.IsBanned(ctx, roomId, userId)
}

// Join admits userId to the room and returns their nickname. Banned users
// are rejected. Users without a participant record are rejected once the
// room is at capacity; returning participants are always let back in.
//
// The capacity check and the allocation are not one transaction, so
// concurrent first joins can overshoot MaxParticipants by the number of
// racing callers.
func (s *Service) Join(ctx context.Context, roomId, userId string) (JoinResult, error) {
	if userId == "" {
		return JoinResult{}, rooms.ErrMissingUserId
	}

	room, err := s.directory.GetRoom(ctx, roomId)
	if err != nil {
		return JoinResult{}, err
	}

	banned, err := s.moderator.IsBanned(ctx, roomId, userId)
	if err != nil {
		return JoinResult{}, err
	}
	if banned {
		return JoinResult{}, ErrBanned
	}

	if err := s.checkCapacity(ctx, room, userId); err != nil {
		return JoinResult{}, err
	}

	return JoinResult{
		Nickname: s.allocator.GetOrAssignNickname(ctx, roomId, userId),
		Room:     room,
	}, nil
}

// Nickname is GetOrAssignNickname behind the capacity gate: a user with no
// participant record gets ErrRoomFull instead of a new nickname once the
// room is full.
func (s *Service) Nickname(ctx context.Context, roomId, userId string) (string, error) {
	if userId == "" {
		return "", rooms.ErrMissingUserId
	}

	room, err := s.directory.GetRoom(ctx, roomId)
	if err != nil {
		return "", err
	}

	if err := s.checkCapacity(ctx, room, userId); err != nil {
		return "", err
	}

	return s.allocator.GetOrAssignNickname(ctx, roomId, userId), nil
}

// checkCapacity returns ErrRoomFull when the room has reached its
// participant limit and userId is not already one of them.
func (s *Service) checkCapacity(ctx context.Context, room database.Room, userId string) error {
	count, err := s.occupancy.ParticipantCount(ctx, room.Id)
	if err != nil {
		return err
	}
	if count < room.MaxParticipants {
		return nil
	}

	member, err := s.isParticipant(ctx, room.Id, userId)
	if err != nil {
		return err
	}
	if !member {
		return ErrRoomFull
	}

	return nil
}

func (s *Service) isParticipant(ctx context.Context, roomId, userId string) (bool, error) {
	if _, ok := s.cache.Get(roomId, userId); ok {
		return true, nil
	}

	participants, err := s.directory.ListParticipants(ctx, roomId)
	if err != nil {
		return false, err
	}

	for _, p := range participants {
		if p.UserId == userId {
			return true, nil
		}
	}

	return false, nil
}

// SendMessage stores a message under the sender's nickname and hands it
// to the notifier. The ban gate is checked against the current ban list
// on every call, and a first message into a full room is ErrRoomFull.
func (s *Service) SendMessage(ctx context.Context, roomId, userId, content string) (database.Message, error) {
	if userId == "" {
		return database.Message{}, rooms.ErrMissingUserId
	}

	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > maxMessageLength {
		return database.Message{}, fmt.Errorf("%w: content must be 1-%d characters", ErrInvalidMessage, maxMessageLength)
	}

	room, err := s.directory.GetRoom(ctx, roomId)
	if err != nil {
		return database.Message{}, err
	}

	banned, err := s.moderator.IsBanned(ctx, roomId, userId)
	if err != nil {
		return database.Message{}, err
	}
	if banned {
		return database.Message{}, ErrBanned
	}

	if err := s.checkCapacity(ctx, room, userId); err != nil {
		return database.Message{}, err
	}

	msg, err := s.db.CreateMessage(ctx, database.CreateMessageParams{
		RoomId:   roomId,
		UserId:   userId,
		Nickname: s.allocator.GetOrAssignNickname(ctx, roomId, userId),
		Content:  content,
	})
	if errors.Is(err, database.ErrNotFound) {
		return database.Message{}, rooms.ErrRoomNotFound
	}
	if err != nil {
		return database.Message{}, fmt.Errorf("create message: %w", err)
	}

	s.stats.Incr(stats.MessagesSent)
	s.notifier.RoomMessage(msg)

	return msg, nil
}

// Messages returns up to limit messages older than the message id before,
// newest first. A before of zero starts from the latest message.
func (s *Service) Messages(ctx context.Context, roomId string, before int64, limit int) ([]database.Message, error) {
	if _, err := s.directory.GetRoom(ctx, roomId); err != nil {
		return nil, err
	}

	messages, err := s.db.GetMessages(ctx, roomId, before, limit)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}

	return messages, nil
}
