package chat

import "errors"

var (
	ErrBanned         = errors.New("user is banned from room")
	ErrRoomFull       = errors.New("room is full")
	ErrInvalidMessage = errors.New("invalid message")
)
