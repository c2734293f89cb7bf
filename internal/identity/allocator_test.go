package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/npezzotti/go-anonchat/internal/database"
	"github.com/npezzotti/go-anonchat/internal/nickname"
	"github.com/npezzotti/go-anonchat/internal/stats"
	"github.com/npezzotti/go-anonchat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// countingLister wraps a ParticipantLister and counts store reads.
type countingLister struct {
	ParticipantLister
	calls atomic.Int32
}

func (l *countingLister) ListParticipants(ctx context.Context, roomId string) ([]database.Participant, error) {
	l.calls.Add(1)
	return l.ParticipantLister.ListParticipants(ctx, roomId)
}

// staticLister always answers with the same, possibly stale, snapshot.
type staticLister struct {
	participants []database.Participant
	err          error
}

func (l staticLister) ListParticipants(context.Context, string) ([]database.Participant, error) {
	return l.participants, l.err
}

func newMemRoom(t *testing.T, repo *database.MemAnonChatRepository, id string) {
	t.Helper()
	_, err := repo.CreateRoom(context.Background(), database.CreateRoomParams{
		Id:              id,
		Title:           "test",
		CreatorId:       "creator",
		Category:        "general",
		MaxParticipants: 50,
	})
	require.NoError(t, err)
}

func newTestAllocator(t *testing.T, lister ParticipantLister, store Transactor, pool *nickname.Pool) *Allocator {
	return NewAllocator(testutil.TestLogger(t), lister, store, pool, NewCache(), testutil.TestStats(t))
}

func TestNewAllocatorRegistersMetrics(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", stats.NicknamesAssigned).Once()
	su.On("RegisterMetric", stats.NicknameFallbacks).Once()

	repo := database.NewMemAnonChatRepository()
	a := NewAllocator(testutil.TestLogger(t), repo, repo, nickname.DefaultPool(), NewCache(), su)
	assert.NotNil(t, a)
}

func TestGetOrAssignNicknameIsIdempotent(t *testing.T) {
	repo := database.NewMemAnonChatRepository()
	newMemRoom(t, repo, "r1")
	lister := &countingLister{ParticipantLister: repo}
	a := newTestAllocator(t, lister, repo, nickname.DefaultPool())
	ctx := context.Background()

	first := a.GetOrAssignNickname(ctx, "r1", "u1")
	second := a.GetOrAssignNickname(ctx, "r1", "u1")

	assert.Equal(t, "Red Apple", first, "expected the first name in pool order")
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), lister.calls.Load(), "expected the second call to be served from the cache")

	participants, err := repo.ListParticipants(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, first, participants[0].Nickname)
}

func TestGetOrAssignNicknameSurvivesCacheLoss(t *testing.T) {
	repo := database.NewMemAnonChatRepository()
	newMemRoom(t, repo, "r1")
	ctx := context.Background()

	a := newTestAllocator(t, repo, repo, nickname.DefaultPool())
	first := a.GetOrAssignNickname(ctx, "r1", "u1")
	a.GetOrAssignNickname(ctx, "r1", "u2")

	a.cache.Clear()
	assert.Equal(t, first, a.GetOrAssignNickname(ctx, "r1", "u1"), "expected the persisted nickname after a cache reset")

	// a second allocator instance shares no cache but sees the same records
	other := newTestAllocator(t, repo, repo, nickname.DefaultPool())
	assert.Equal(t, first, other.GetOrAssignNickname(ctx, "r1", "u1"))

	count, err := repo.CountParticipants(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGetOrAssignNicknameDistinctUsers(t *testing.T) {
	repo := database.NewMemAnonChatRepository()
	newMemRoom(t, repo, "r1")
	newMemRoom(t, repo, "r2")
	a := newTestAllocator(t, repo, repo, nickname.DefaultPool())
	ctx := context.Background()

	seen := make(map[string]string)
	for i := 0; i < 100; i++ {
		user := fmt.Sprintf("u%d", i)
		name := a.GetOrAssignNickname(ctx, "r1", user)
		require.NotEqual(t, FallbackNickname, name)
		if other, dup := seen[name]; dup {
			t.Fatalf("nickname %q given to both %q and %q", name, other, user)
		}
		seen[name] = user
	}

	names := nickname.DefaultPool().Names()
	assert.Equal(t, names[0], a.GetOrAssignNickname(ctx, "r1", "u0"))
	assert.Equal(t, names[1], a.GetOrAssignNickname(ctx, "r1", "u1"))

	// rooms have independent nickname spaces
	assert.Equal(t, names[0], a.GetOrAssignNickname(ctx, "r2", "u99"))
}

func TestGetOrAssignNicknamePoolExhausted(t *testing.T) {
	repo := database.NewMemAnonChatRepository()
	newMemRoom(t, repo, "r1")
	pool := nickname.NewPool([]string{"Red", "Blue"}, []string{"Fox"})
	ctx := context.Background()

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Twice()
	su.On("Incr", stats.NicknamesAssigned).Twice()
	su.On("Incr", stats.NicknameFallbacks).Once()

	a := NewAllocator(testutil.TestLogger(t), repo, repo, pool, NewCache(), su)

	assert.Equal(t, "Red Fox", a.GetOrAssignNickname(ctx, "r1", "u1"))
	assert.Equal(t, "Blue Fox", a.GetOrAssignNickname(ctx, "r1", "u2"))

	_, err := a.Assign(ctx, "r1", "u3")
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, FallbackNickname, a.GetOrAssignNickname(ctx, "r1", "u3"))

	// existing participants keep resolving after exhaustion
	assert.Equal(t, "Red Fox", a.GetOrAssignNickname(ctx, "r1", "u1"))

	count, err := repo.CountParticipants(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "expected no record for the exhausted allocation")
	_, cached := a.cache.Get("r1", "u3")
	assert.False(t, cached, "expected the fallback not to be cached")
}

func TestAssignRechecksOwnRecordInsideTransaction(t *testing.T) {
	repo := database.NewMemAnonChatRepository()
	newMemRoom(t, repo, "r1")
	ctx := context.Background()

	// u1 already holds a nickname, but the snapshot taken before the
	// transaction does not show it yet.
	seed := newTestAllocator(t, repo, repo, nickname.DefaultPool())
	existing := seed.GetOrAssignNickname(ctx, "r1", "u1")

	a := newTestAllocator(t, staticLister{}, repo, nickname.DefaultPool())
	got, err := a.Assign(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.Equal(t, existing, got)

	count, err := repo.CountParticipants(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "expected no second record for the same user")
}

func TestAssignStaleSnapshotNeverDuplicates(t *testing.T) {
	repo := database.NewMemAnonChatRepository()
	newMemRoom(t, repo, "r1")
	ctx := context.Background()

	seed := newTestAllocator(t, repo, repo, nickname.DefaultPool())
	taken := seed.GetOrAssignNickname(ctx, "r1", "u1")

	// u2 computes its free name from a snapshot that misses u1
	a := newTestAllocator(t, staticLister{}, repo, nickname.DefaultPool())
	_, err := a.Assign(ctx, "r1", "u2")
	assert.ErrorIs(t, err, database.ErrNicknameTaken)
	assert.Equal(t, FallbackNickname, a.GetOrAssignNickname(ctx, "r1", "u2"))

	// with a fresh snapshot the next attempt succeeds
	fresh := newTestAllocator(t, repo, repo, nickname.DefaultPool())
	name := fresh.GetOrAssignNickname(ctx, "r1", "u2")
	assert.NotEqual(t, FallbackNickname, name)
	assert.NotEqual(t, taken, name)
}

func TestGetOrAssignNicknameStoreErrors(t *testing.T) {
	ctx := context.Background()
	errDb := errors.New("db unavailable")

	t.Run("participant read fails", func(t *testing.T) {
		store := &database.MockAnonChatRepository{}
		defer store.AssertExpectations(t)

		a := newTestAllocator(t, staticLister{err: errDb}, store, nickname.DefaultPool())
		_, err := a.Assign(ctx, "r1", "u1")
		assert.ErrorIs(t, err, errDb)
		assert.Equal(t, FallbackNickname, a.GetOrAssignNickname(ctx, "r1", "u1"))
	})

	t.Run("transaction fails", func(t *testing.T) {
		store := &database.MockAnonChatRepository{}
		defer store.AssertExpectations(t)
		store.On("RunInTransaction", mock.Anything).Return(nil, database.ErrConflict).Once()

		a := newTestAllocator(t, staticLister{}, store, nickname.DefaultPool())
		assert.Equal(t, FallbackNickname, a.GetOrAssignNickname(ctx, "r1", "u1"))
		assert.Zero(t, a.cache.Len())
	})

	t.Run("participant lookup fails inside transaction", func(t *testing.T) {
		tx := &database.MockTx{}
		defer tx.AssertExpectations(t)
		tx.On("GetParticipant", mock.Anything, "r1", "u1").Return(database.Participant{}, errDb).Once()

		store := &database.MockAnonChatRepository{}
		defer store.AssertExpectations(t)
		store.On("RunInTransaction", mock.Anything).Return(tx, nil).Once()

		a := newTestAllocator(t, staticLister{}, store, nickname.DefaultPool())
		_, err := a.Assign(ctx, "r1", "u1")
		assert.ErrorIs(t, err, errDb)
	})

	t.Run("write fails inside transaction", func(t *testing.T) {
		tx := &database.MockTx{}
		defer tx.AssertExpectations(t)
		tx.On("GetParticipant", mock.Anything, "r1", "u1").Return(database.Participant{}, database.ErrNotFound).Once()
		tx.On("CreateParticipant", mock.Anything, database.CreateParticipantParams{
			RoomId:   "r1",
			UserId:   "u1",
			Nickname: "Red Banana",
		}).Return(database.Participant{}, errDb).Once()

		store := &database.MockAnonChatRepository{}
		defer store.AssertExpectations(t)
		store.On("RunInTransaction", mock.Anything).Return(tx, nil).Once()

		lister := staticLister{participants: []database.Participant{{RoomId: "r1", UserId: "u0", Nickname: "Red Apple"}}}
		a := newTestAllocator(t, lister, store, nickname.DefaultPool())
		_, err := a.Assign(ctx, "r1", "u1")
		assert.ErrorIs(t, err, errDb)
	})

	t.Run("missing room", func(t *testing.T) {
		repo := database.NewMemAnonChatRepository()
		a := newTestAllocator(t, repo, repo, nickname.DefaultPool())

		_, err := a.Assign(ctx, "nope", "u1")
		assert.ErrorIs(t, err, database.ErrNotFound)
		assert.Equal(t, FallbackNickname, a.GetOrAssignNickname(ctx, "nope", "u1"))
	})
}

func TestGetOrAssignNicknameConcurrentSameUser(t *testing.T) {
	repo := database.NewMemAnonChatRepository()
	newMemRoom(t, repo, "r1")
	a := newTestAllocator(t, repo, repo, nickname.DefaultPool())
	ctx := context.Background()

	const callers = 25
	results := make([]string, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.GetOrAssignNickname(ctx, "r1", "u1")
		}(i)
	}
	wg.Wait()

	participants, err := repo.ListParticipants(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, participants, 1, "expected exactly one participant record")

	for i, name := range results {
		if name == FallbackNickname {
			continue
		}
		assert.Equal(t, participants[0].Nickname, name, "caller %d got a different nickname", i)
	}
	assert.Equal(t, participants[0].Nickname, a.GetOrAssignNickname(ctx, "r1", "u1"))
}

func TestGetOrAssignNicknameConcurrentDistinctUsers(t *testing.T) {
	repo := database.NewMemAnonChatRepository()
	newMemRoom(t, repo, "r1")
	a := newTestAllocator(t, repo, repo, nickname.DefaultPool())
	ctx := context.Background()

	const users = 30
	results := make([]string, users)

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.GetOrAssignNickname(ctx, "r1", fmt.Sprintf("u%d", i))
		}(i)
	}
	wg.Wait()

	// simultaneous first joins may fall back, but never share a nickname
	seen := make(map[string]int)
	for i, name := range results {
		if name == FallbackNickname {
			continue
		}
		if j, dup := seen[name]; dup {
			t.Fatalf("nickname %q returned to u%d and u%d", name, j, i)
		}
		seen[name] = i
	}

	// serialized retries settle every user on a distinct nickname
	final := make(map[string]struct{})
	for i := 0; i < users; i++ {
		name := a.GetOrAssignNickname(ctx, "r1", fmt.Sprintf("u%d", i))
		require.NotEqual(t, FallbackNickname, name)
		final[name] = struct{}{}
	}
	assert.Len(t, final, users)

	participants, err := repo.ListParticipants(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, participants, users)
}
