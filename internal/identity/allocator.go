// Package identity assigns every participant of an anonymous room a
// nickname from the pool, exactly once per (room, user) pair.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/npezzotti/go-anonchat/internal/database"
	"github.com/npezzotti/go-anonchat/internal/nickname"
	"github.com/npezzotti/go-anonchat/internal/stats"
)

// FallbackNickname is shown for a user whose nickname could not be
// assigned. It is not persisted and may be shared by several users.
const FallbackNickname = "Anonymous User"

var ErrPoolExhausted = errors.New("no nicknames left in room")

type ParticipantLister interface {
	ListParticipants(ctx context.Context, roomId string) ([]database.Participant, error)
}

type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(tx database.Tx) error) error
}

type Allocator struct {
	log          *log.Logger
	participants ParticipantLister
	store        Transactor
	pool         *nickname.Pool
	cache        *Cache
	stats        stats.StatsProvider
}

func NewAllocator(logger *log.Logger, participants ParticipantLister, store Transactor, pool *nickname.Pool, cache *Cache, su stats.StatsProvider) *Allocator {
	su.RegisterMetric(stats.NicknamesAssigned)
	su.RegisterMetric(stats.NicknameFallbacks)

	return &Allocator{
		log:          logger,
		participants: participants,
		store:        store,
		pool:         pool,
		cache:        cache,
		stats:        su,
	}
}

// GetOrAssignNickname returns the user's nickname in the room, assigning
// one if needed. Failures are logged and answered with FallbackNickname
// so that chat stays usable.
func (a *Allocator) GetOrAssignNickname(ctx context.Context, roomId, userId string) string {
	name, err := a.Assign(ctx, roomId, userId)
	if err != nil {
		a.log.Printf("assign nickname for user %q in room %q: %v", userId, roomId, err)
		a.stats.Incr(stats.NicknameFallbacks)
		return FallbackNickname
	}

	return name
}

// Assign is GetOrAssignNickname without the fallback.
//
// The set of nicknames in use is read before the transaction. Inside it
// only the caller's own record is re-read: if a concurrent call for the
// same pair committed first, its nickname is returned instead of writing
// a second record. Two different users picking the same free name from
// one snapshot is caught by the store's unique nickname constraint and
// surfaces as database.ErrNicknameTaken.
func (a *Allocator) Assign(ctx context.Context, roomId, userId string) (string, error) {
	if name, ok := a.cache.Get(roomId, userId); ok {
		return name, nil
	}

	participants, err := a.participants.ListParticipants(ctx, roomId)
	if err != nil {
		return "", fmt.Errorf("list participants: %w", err)
	}

	used := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		used[p.Nickname] = struct{}{}
	}

	var (
		assigned string
		created  bool
	)
	err = a.store.RunInTransaction(ctx, func(tx database.Tx) error {
		created = false

		p, err := tx.GetParticipant(ctx, roomId, userId)
		if err == nil {
			assigned = p.Nickname
			return nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("get participant: %w", err)
		}

		name, ok := a.pool.FirstFree(func(n string) bool {
			_, taken := used[n]
			return taken
		})
		if !ok {
			return ErrPoolExhausted
		}

		p, err = tx.CreateParticipant(ctx, database.CreateParticipantParams{
			RoomId:   roomId,
			UserId:   userId,
			Nickname: name,
		})
		if err != nil {
			return fmt.Errorf("create participant: %w", err)
		}

		assigned = p.Nickname
		created = true
		return nil
	})
	if err != nil {
		return "", err
	}

	if created {
		a.stats.Incr(stats.NicknamesAssigned)
	}
	a.cache.Set(roomId, userId, assigned)

	return assigned, nil
}
