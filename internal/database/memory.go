package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemAnonChatRepository is an in-process store with the same optimistic
// transaction semantics as the Postgres repository: every document carries
// a version, transactions record the versions they read, and a commit is
// rejected with ErrConflict if any of them moved in the meantime.
type MemAnonChatRepository struct {
	mu            sync.Mutex
	now           func() time.Time
	seq           uint64
	versions      map[string]uint64
	rooms         map[string]*memRoom
	participants  map[string]map[string]*memParticipant
	messages      map[string][]Message
	nextMessageId int64

	log *log.Logger

	// beforeCommit, when set, runs after a transaction body and before
	// its commit is validated.
	beforeCommit func()
}

type memRoom struct {
	room Room
	seq  uint64
}

type memParticipant struct {
	participant Participant
	seq         uint64
}

func NewMemAnonChatRepository() *MemAnonChatRepository {
	return &MemAnonChatRepository{
		now:          func() time.Time { return time.Now().UTC() },
		versions:     make(map[string]uint64),
		rooms:        make(map[string]*memRoom),
		participants: make(map[string]map[string]*memParticipant),
		messages:     make(map[string][]Message),
	}
}

// SetLogger sets the logger transaction retries are reported to.
func (m *MemAnonChatRepository) SetLogger(logger *log.Logger) {
	m.log = logger
}

func roomKey(roomId string) string {
	return "rooms/" + roomId
}

func participantKey(roomId, userId string) string {
	return "rooms/" + roomId + "/participants/" + userId
}

func copyRoom(r Room) Room {
	r.BannedUsers = slices.Clone(r.BannedUsers)
	if r.BannedUsers == nil {
		r.BannedUsers = []string{}
	}
	return r
}

// bump must be called with mu held.
func (m *MemAnonChatRepository) bump(key string) {
	m.seq++
	m.versions[key] = m.seq
}

func (m *MemAnonChatRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemAnonChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[params.Id]; ok {
		return Room{}, fmt.Errorf("%w: room %q already exists", ErrConflict, params.Id)
	}

	room := Room{
		Id:              params.Id,
		Title:           params.Title,
		CreatorId:       params.CreatorId,
		Category:        params.Category,
		MaxParticipants: params.MaxParticipants,
		BannedUsers:     []string{},
		CreatedAt:       m.now(),
	}

	m.bump(roomKey(room.Id))
	m.rooms[room.Id] = &memRoom{room: room, seq: m.seq}

	return copyRoom(room), nil
}

func (m *MemAnonChatRepository) GetRoom(ctx context.Context, roomId string) (Room, error) {
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomId]
	if !ok {
		return Room{}, ErrNotFound
	}

	return copyRoom(r.room), nil
}

func (m *MemAnonChatRepository) ListRooms(ctx context.Context) ([]Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	entries := make([]memRoom, 0, len(m.rooms))
	for _, r := range m.rooms {
		entries = append(entries, memRoom{room: copyRoom(r.room), seq: r.seq})
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].room.CreatedAt.Equal(entries[j].room.CreatedAt) {
			return entries[i].room.CreatedAt.After(entries[j].room.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})

	rooms := make([]Room, 0, len(entries))
	for _, e := range entries {
		rooms = append(rooms, e.room)
	}

	return rooms, nil
}

func (m *MemAnonChatRepository) ListParticipants(ctx context.Context, roomId string) ([]Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	entries := make([]memParticipant, 0, len(m.participants[roomId]))
	for _, p := range m.participants[roomId] {
		entries = append(entries, *p)
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	participants := make([]Participant, 0, len(entries))
	for _, e := range entries {
		participants = append(participants, e.participant)
	}

	return participants, nil
}

func (m *MemAnonChatRepository) CountParticipants(ctx context.Context, roomId string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.participants[roomId]), nil
}

func (m *MemAnonChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[params.RoomId]; !ok {
		return Message{}, ErrNotFound
	}

	m.nextMessageId++
	msg := Message{
		Id:        m.nextMessageId,
		RoomId:    params.RoomId,
		UserId:    params.UserId,
		Nickname:  params.Nickname,
		Content:   params.Content,
		CreatedAt: m.now(),
	}
	m.messages[params.RoomId] = append(m.messages[params.RoomId], msg)

	return msg, nil
}

func (m *MemAnonChatRepository) GetMessages(ctx context.Context, roomId string, before int64, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit = normalizeLimit(limit)

	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.messages[roomId]
	messages := make([]Message, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(messages) < limit; i-- {
		if before > 0 && all[i].Id >= before {
			continue
		}
		messages = append(messages, all[i])
	}

	return messages, nil
}

func (m *MemAnonChatRepository) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memTx{
			repo:      m,
			reads:     make(map[string]uint64),
			bans:      make(map[string][]string),
			joinIndex: make(map[string]int),
		}

		if err = fn(tx); err == nil {
			if m.beforeCommit != nil {
				m.beforeCommit()
			}
			err = tx.commit()
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}

		if m.log != nil {
			m.log.Printf("transaction conflict (attempt %d/%d): %v", attempt, maxTxAttempts, err)
		}
	}

	return err
}

type memTx struct {
	repo      *MemAnonChatRepository
	reads     map[string]uint64
	bans      map[string][]string
	joins     []Participant
	joinIndex map[string]int
}

// observe records the version of key the first time the transaction reads
// it. Must be called with repo.mu held.
func (t *memTx) observe(key string) {
	if _, ok := t.reads[key]; !ok {
		t.reads[key] = t.repo.versions[key]
	}
}

func (t *memTx) GetRoom(ctx context.Context, roomId string) (Room, error) {
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}

	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	t.observe(roomKey(roomId))
	r, ok := t.repo.rooms[roomId]
	if !ok {
		return Room{}, ErrNotFound
	}

	room := copyRoom(r.room)
	if banned, ok := t.bans[roomId]; ok {
		room.BannedUsers = slices.Clone(banned)
	}

	return room, nil
}

func (t *memTx) SetBannedUsers(ctx context.Context, roomId string, banned []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.repo.mu.Lock()
	_, ok := t.repo.rooms[roomId]
	t.repo.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	t.bans[roomId] = slices.Clone(banned)
	if t.bans[roomId] == nil {
		t.bans[roomId] = []string{}
	}

	return nil
}

func (t *memTx) GetParticipant(ctx context.Context, roomId, userId string) (Participant, error) {
	if err := ctx.Err(); err != nil {
		return Participant{}, err
	}

	key := participantKey(roomId, userId)
	if i, ok := t.joinIndex[key]; ok {
		return t.joins[i], nil
	}

	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	t.observe(key)
	p, ok := t.repo.participants[roomId][userId]
	if !ok {
		return Participant{}, ErrNotFound
	}

	return p.participant, nil
}

func (t *memTx) CreateParticipant(ctx context.Context, params CreateParticipantParams) (Participant, error) {
	if err := ctx.Err(); err != nil {
		return Participant{}, err
	}

	key := participantKey(params.RoomId, params.UserId)
	if _, ok := t.joinIndex[key]; ok {
		return Participant{}, fmt.Errorf("%w: participant %q already written", ErrConflict, params.UserId)
	}

	t.repo.mu.Lock()
	_, ok := t.repo.rooms[params.RoomId]
	now := t.repo.now()
	t.repo.mu.Unlock()
	if !ok {
		return Participant{}, ErrNotFound
	}

	p := Participant{
		RoomId:     params.RoomId,
		UserId:     params.UserId,
		Nickname:   params.Nickname,
		AssignedAt: now,
	}
	t.joinIndex[key] = len(t.joins)
	t.joins = append(t.joins, p)

	return p, nil
}

func (t *memTx) commit() error {
	m := t.repo
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, version := range t.reads {
		if m.versions[key] != version {
			return ErrConflict
		}
	}

	for roomId := range t.bans {
		if _, ok := m.rooms[roomId]; !ok {
			return ErrNotFound
		}
	}

	taken := make(map[string]map[string]struct{})
	for _, p := range t.joins {
		if _, ok := m.rooms[p.RoomId]; !ok {
			return ErrNotFound
		}
		if _, ok := m.participants[p.RoomId][p.UserId]; ok {
			return ErrConflict
		}

		if _, ok := taken[p.RoomId]; !ok {
			taken[p.RoomId] = make(map[string]struct{})
			for _, existing := range m.participants[p.RoomId] {
				taken[p.RoomId][existing.participant.Nickname] = struct{}{}
			}
		}
		if _, ok := taken[p.RoomId][p.Nickname]; ok {
			return fmt.Errorf("%w: %q in room %q", ErrNicknameTaken, p.Nickname, p.RoomId)
		}
		taken[p.RoomId][p.Nickname] = struct{}{}
	}

	for roomId, banned := range t.bans {
		m.rooms[roomId].room.BannedUsers = banned
		m.bump(roomKey(roomId))
	}

	for _, p := range t.joins {
		if m.participants[p.RoomId] == nil {
			m.participants[p.RoomId] = make(map[string]*memParticipant)
		}
		m.bump(participantKey(p.RoomId, p.UserId))
		m.participants[p.RoomId][p.UserId] = &memParticipant{participant: p, seq: m.seq}
	}

	return nil
}
