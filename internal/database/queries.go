package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const roomColumns = "id, title, creator_id, category, max_participants, banned_users, created_at"

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (Room, error) {
	var room Room
	err := row.Scan(
		&room.Id,
		&room.Title,
		&room.CreatorId,
		&room.Category,
		&room.MaxParticipants,
		pq.Array(&room.BannedUsers),
		&room.CreatedAt,
	)
	if room.BannedUsers == nil {
		room.BannedUsers = []string{}
	}

	return room, err
}

func getRoom(ctx context.Context, q querier, roomId string) (Room, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE id = $1",
		roomId,
	)

	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, mapPgError(err)
	}

	return room, nil
}

func (db *PgAnonChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO rooms (id, title, creator_id, category, max_participants, banned_users, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, '{}', now()) RETURNING "+roomColumns,
		params.Id,
		params.Title,
		params.CreatorId,
		params.Category,
		params.MaxParticipants,
	)

	room, err := scanRoom(row)
	if err != nil {
		return Room{}, mapPgError(err)
	}

	return room, nil
}

func (db *PgAnonChatRepository) GetRoom(ctx context.Context, roomId string) (Room, error) {
	return getRoom(ctx, db.conn, roomId)
}

func (db *PgAnonChatRepository) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+roomColumns+" FROM rooms ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return rooms, nil
}

func (db *PgAnonChatRepository) ListParticipants(ctx context.Context, roomId string) ([]Participant, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT room_id, user_id, nickname, assigned_at FROM participants "+
			"WHERE room_id = $1 ORDER BY assigned_at ASC",
		roomId,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.RoomId, &p.UserId, &p.Nickname, &p.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return participants, nil
}

func (db *PgAnonChatRepository) CountParticipants(ctx context.Context, roomId string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT count(*) FROM participants WHERE room_id = $1",
		roomId,
	).Scan(&count)

	return count, err
}

func (db *PgAnonChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (room_id, user_id, nickname, content, created_at) "+
			"VALUES ($1, $2, $3, $4, now()) RETURNING id, room_id, user_id, nickname, content, created_at",
		params.RoomId,
		params.UserId,
		params.Nickname,
		params.Content,
	)

	var msg Message
	err := row.Scan(&msg.Id, &msg.RoomId, &msg.UserId, &msg.Nickname, &msg.Content, &msg.CreatedAt)
	if err != nil {
		return Message{}, mapPgError(err)
	}

	return msg, nil
}

func (db *PgAnonChatRepository) GetMessages(ctx context.Context, roomId string, before int64, limit int) ([]Message, error) {
	var upper int64 = 1<<63 - 1
	if before > 0 {
		upper = before
	}

	limit = normalizeLimit(limit)

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, room_id, user_id, nickname, content, created_at FROM messages "+
			"WHERE room_id = $1 AND id < $2 ORDER BY id DESC LIMIT $3",
		roomId,
		upper,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Id, &msg.RoomId, &msg.UserId, &msg.Nickname, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
