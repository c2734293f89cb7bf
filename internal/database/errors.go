package database

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports that a concurrent writer invalidated a
	// transaction. RunInTransaction retries on it before giving up.
	ErrConflict = errors.New("transaction conflict")
	// ErrNicknameTaken is returned when a participant would share a
	// nickname with another participant of the same room.
	ErrNicknameTaken = errors.New("nickname already assigned in room")
)
