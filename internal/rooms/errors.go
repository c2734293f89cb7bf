package rooms

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrForbidden        = errors.New("only the room creator can moderate the room")
	ErrCannotBanCreator = errors.New("the room creator cannot be banned")
	ErrInvalidRoom      = errors.New("invalid room")
	ErrMissingUserId    = errors.New("user id is required")
)
