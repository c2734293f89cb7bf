package rooms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/npezzotti/go-anonchat/internal/database"
)

type Moderator struct {
	log *log.Logger
	db  database.AnonChatRepository
}

func NewModerator(logger *log.Logger, db database.AnonChatRepository) *Moderator {
	return &Moderator{log: logger, db: db}
}

// Ban adds userId to the room's ban list. Only the room creator may ban,
// and the creator cannot ban themselves. Banning a banned user is a no-op.
func (m *Moderator) Ban(ctx context.Context, roomId, userId, requestingUserId string) error {
	err := m.updateBans(ctx, roomId, userId, requestingUserId, func(room database.Room) ([]string, bool, error) {
		if userId == room.CreatorId {
			return nil, false, ErrCannotBanCreator
		}
		if slices.Contains(room.BannedUsers, userId) {
			return room.BannedUsers, false, nil
		}
		return append(slices.Clone(room.BannedUsers), userId), true, nil
	})
	if err != nil {
		return err
	}

	m.log.Printf("user %q banned from room %q by %q", userId, roomId, requestingUserId)
	return nil
}

// Unban removes userId from the room's ban list under the same
// authorization rule as Ban. Unbanning a user who is not banned is a no-op.
func (m *Moderator) Unban(ctx context.Context, roomId, userId, requestingUserId string) error {
	err := m.updateBans(ctx, roomId, userId, requestingUserId, func(room database.Room) ([]string, bool, error) {
		if !slices.Contains(room.BannedUsers, userId) {
			return room.BannedUsers, false, nil
		}
		return slices.DeleteFunc(slices.Clone(room.BannedUsers), func(id string) bool {
			return id == userId
		}), true, nil
	})
	if err != nil {
		return err
	}

	m.log.Printf("user %q unbanned from room %q by %q", userId, roomId, requestingUserId)
	return nil
}

// updateBans loads the room, checks the requester against the creator and
// writes the new ban list in one transaction, so the ownership check and
// the write see the same version of the room.
func (m *Moderator) updateBans(ctx context.Context, roomId, userId, requestingUserId string, update func(database.Room) ([]string, bool, error)) error {
	if userId == "" || requestingUserId == "" {
		return ErrMissingUserId
	}

	err := m.db.RunInTransaction(ctx, func(tx database.Tx) error {
		room, err := tx.GetRoom(ctx, roomId)
		if errors.Is(err, database.ErrNotFound) {
			return ErrRoomNotFound
		}
		if err != nil {
			return fmt.Errorf("get room: %w", err)
		}

		if room.CreatorId != requestingUserId {
			return ErrForbidden
		}

		banned, changed, err := update(room)
		if err != nil || !changed {
			return err
		}

		return tx.SetBannedUsers(ctx, roomId, banned)
	})
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrCannotBanCreator) {
			return err
		}
		return fmt.Errorf("update bans: %w", err)
	}

	return nil
}

// IsBanned reports whether userId is on the room's ban list. A missing
// room is reported as not banned; store failures are returned.
func (m *Moderator) IsBanned(ctx context.Context, roomId, userId string) (bool, error) {
	room, err := m.db.GetRoom(ctx, roomId)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get room: %w", err)
	}

	return slices.Contains(room.BannedUsers, userId), nil
}
