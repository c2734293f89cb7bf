package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
)

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"

	nicknameConstraint = "participants_room_nickname_key"
)

type PgAnonChatRepository struct {
	conn *sql.DB
	log  *log.Logger
}

func NewPgAnonChatRepository(dsn string, logger *log.Logger) (*PgAnonChatRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgAnonChatRepository{conn: db, log: logger}, nil
}

func (db *PgAnonChatRepository) Migrate() error {
	return Migrate(db.conn)
}

func (db *PgAnonChatRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *PgAnonChatRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// RunInTransaction runs fn in a SERIALIZABLE transaction. Postgres aborts
// one side of a read/write race with a serialization failure, which is
// the optimistic conflict the body is re-run on.
func (db *PgAnonChatRepository) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = db.runTx(ctx, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}

		if db.log != nil {
			db.log.Printf("transaction conflict (attempt %d/%d): %v", attempt, maxTxAttempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}

	return err
}

func (db *PgAnonChatRepository) runTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	sqlTx, err := db.conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapPgError(err)
	}
	defer func() {
		if err != nil {
			sqlTx.Rollback()
		}
	}()

	if err = fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return mapPgError(err)
	}

	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetRoom(ctx context.Context, roomId string) (Room, error) {
	return getRoom(ctx, t.tx, roomId)
}

func (t *pgTx) SetBannedUsers(ctx context.Context, roomId string, banned []string) error {
	if banned == nil {
		banned = []string{}
	}

	res, err := t.tx.ExecContext(ctx,
		"UPDATE rooms SET banned_users = $2 WHERE id = $1",
		roomId,
		pq.Array(banned),
	)
	if err != nil {
		return mapPgError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func (t *pgTx) GetParticipant(ctx context.Context, roomId, userId string) (Participant, error) {
	row := t.tx.QueryRowContext(ctx,
		"SELECT room_id, user_id, nickname, assigned_at FROM participants "+
			"WHERE room_id = $1 AND user_id = $2",
		roomId,
		userId,
	)

	var p Participant
	err := row.Scan(&p.RoomId, &p.UserId, &p.Nickname, &p.AssignedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Participant{}, ErrNotFound
	}

	return p, mapPgError(err)
}

func (t *pgTx) CreateParticipant(ctx context.Context, params CreateParticipantParams) (Participant, error) {
	row := t.tx.QueryRowContext(ctx,
		"INSERT INTO participants (room_id, user_id, nickname, assigned_at) "+
			"VALUES ($1, $2, $3, now()) RETURNING room_id, user_id, nickname, assigned_at",
		params.RoomId,
		params.UserId,
		params.Nickname,
	)

	var p Participant
	if err := row.Scan(&p.RoomId, &p.UserId, &p.Nickname, &p.AssignedAt); err != nil {
		return Participant{}, mapPgError(err)
	}

	return p, nil
}

// mapPgError translates driver errors into the store's sentinel errors.
// A primary key race on participants means another transaction created
// the same record first, so it is retried like a serialization failure.
func mapPgError(err error) error {
	var pqErr *pq.Error
	if err == nil || !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case pqSerializationFailure, pqDeadlockDetected:
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
	case pqUniqueViolation:
		if pqErr.Constraint == nicknameConstraint {
			return fmt.Errorf("%w: %s", ErrNicknameTaken, pqErr.Message)
		}
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
	case pqForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Message)
	}

	return err
}
