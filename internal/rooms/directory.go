// Package rooms owns anonymous room entities: creation and lookup, the
// creator-only ban list and participant counts.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/npezzotti/go-anonchat/internal/database"
	"github.com/teris-io/shortid"
)

const (
	DefaultCategory        = "general"
	DefaultMaxParticipants = 50
	// AllCategories matches every room in RoomsByCategory.
	AllCategories = "all"

	maxTitleLength = 100
)

type CreateRoomParams struct {
	Title           string
	CreatorId       string
	Category        string
	MaxParticipants int
}

type Directory struct {
	log   *log.Logger
	db    database.AnonChatRepository
	newId func() (string, error)
}

func NewDirectory(logger *log.Logger, db database.AnonChatRepository) *Directory {
	return &Directory{
		log:   logger,
		db:    db,
		newId: shortid.Generate,
	}
}

// CreateRoom stores a new room with an empty ban list. Category and
// MaxParticipants fall back to their defaults when zero.
func (d *Directory) CreateRoom(ctx context.Context, params CreateRoomParams) (database.Room, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return database.Room{}, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidRoom, maxTitleLength)
	}
	if params.CreatorId == "" {
		return database.Room{}, ErrMissingUserId
	}
	if params.MaxParticipants < 0 {
		return database.Room{}, fmt.Errorf("%w: max participants must be positive", ErrInvalidRoom)
	}

	category := strings.TrimSpace(params.Category)
	if category == "" {
		category = DefaultCategory
	}

	maxParticipants := params.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = DefaultMaxParticipants
	}

	id, err := d.newId()
	if err != nil {
		return database.Room{}, fmt.Errorf("generate room id: %w", err)
	}

	room, err := d.db.CreateRoom(ctx, database.CreateRoomParams{
		Id:              id,
		Title:           title,
		CreatorId:       params.CreatorId,
		Category:        category,
		MaxParticipants: maxParticipants,
	})
	if err != nil {
		return database.Room{}, fmt.Errorf("create room: %w", err)
	}

	d.log.Printf("created room %q (%s) for %q", room.Id, room.Category, room.CreatorId)
	return room, nil
}

// ListRooms returns every room, newest first.
func (d *Directory) ListRooms(ctx context.Context) ([]database.Room, error) {
	rooms, err := d.db.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

func (d *Directory) RoomsByCategory(ctx context.Context, category string) ([]database.Room, error) {
	rooms, err := d.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	if category == "" || category == AllCategories {
		return rooms, nil
	}

	filtered := make([]database.Room, 0, len(rooms))
	for _, room := range rooms {
		if room.Category == category {
			filtered = append(filtered, room)
		}
	}

	return filtered, nil
}

func (d *Directory) GetRoom(ctx context.Context, roomId string) (database.Room, error) {
	room, err := d.db.GetRoom(ctx, roomId)
	if errors.Is(err, database.ErrNotFound) {
		return database.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return database.Room{}, fmt.Errorf("get room: %w", err)
	}

	return room, nil
}

func (d *Directory) ListParticipants(ctx context.Context, roomId string) ([]database.Participant, error) {
	participants, err := d.db.ListParticipants(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}
