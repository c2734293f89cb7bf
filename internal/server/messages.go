package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/go-anonchat/internal/chat"
	"github.com/npezzotti/go-anonchat/internal/database"
	"github.com/npezzotti/go-anonchat/internal/rooms"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Publish *Publish `json:"publish,omitempty"`
	client  *Client  `json:"-"`
}

type Publish struct {
	Content string `json:"content"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response         `json:"response,omitempty"`
	Message      *database.Message `json:"message,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	SkipClient   *Client           `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Notification struct {
	Banned *Banned `json:"banned,omitempty"`
}

type Banned struct {
	RoomId string `json:"room_id"`
	UserId string `json:"user_id"`
}

type Welcome struct {
	RoomId   string `json:"room_id"`
	Nickname string `json:"nickname"`
}

func newResponse(id, code int, errMsg string, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        errMsg,
			Data:         data,
		},
	}
}

func NoErrOK(id int, data any) *ServerMessage {
	return newResponse(id, http.StatusOK, "", data)
}

func NoErrAccepted(id int) *ServerMessage {
	return newResponse(id, http.StatusAccepted, "", nil)
}

func ErrRoomNotFound(id int) *ServerMessage {
	return newResponse(id, http.StatusNotFound, "room not found", nil)
}

func ErrBanned(id int) *ServerMessage {
	return newResponse(id, http.StatusForbidden, "banned from room", nil)
}

func ErrInternalError(id int) *ServerMessage {
	return newResponse(id, http.StatusInternalServerError, "internal server error", nil)
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return newResponse(id, http.StatusServiceUnavailable, "service unavailable", nil)
}

func ErrTooManyRequests(id int) *ServerMessage {
	return newResponse(id, http.StatusTooManyRequests, "too many messages", nil)
}

func ErrInvalidMessage(id int) *ServerMessage {
	return newResponse(id, http.StatusBadRequest, "invalid message format", nil)
}

func ErrInvalidContent(id int) *ServerMessage {
	return newResponse(id, http.StatusBadRequest, "message content must be 1-1000 characters", nil)
}

// errorResponse maps a publish failure to the response frame sent back
// to the author.
func errorResponse(id int, err error) *ServerMessage {
	switch {
	case errors.Is(err, chat.ErrBanned):
		return ErrBanned(id)
	case errors.Is(err, chat.ErrInvalidMessage):
		return ErrInvalidContent(id)
	case errors.Is(err, rooms.ErrRoomNotFound):
		return ErrRoomNotFound(id)
	default:
		return ErrInternalError(id)
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
