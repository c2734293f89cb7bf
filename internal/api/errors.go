package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-anonchat/internal/chat"
	"github.com/npezzotti/go-anonchat/internal/rooms"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(statusCode int) *ApiError {
	return &ApiError{
		StatusCode: statusCode,
		Message:    lower(http.StatusText(statusCode)),
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest)
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound)
}

func NewInternalServerError(err error) *ApiError {
	apiErr := newApiError(http.StatusInternalServerError)
	apiErr.Err = err
	return apiErr
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden)
}

func NewConflictError() *ApiError {
	return newApiError(http.StatusConflict)
}

// domainError translates an error returned by the chat service. Client
// errors carry the domain message; anything unrecognized is a 500.
func domainError(err error) *ApiError {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, rooms.ErrRoomNotFound):
		apiErr = NewNotFoundError()
	case errors.Is(err, rooms.ErrForbidden), errors.Is(err, chat.ErrBanned):
		apiErr = NewForbiddenError()
	case errors.Is(err, chat.ErrRoomFull):
		apiErr = NewConflictError()
	case errors.Is(err, rooms.ErrInvalidRoom),
		errors.Is(err, rooms.ErrCannotBanCreator),
		errors.Is(err, rooms.ErrMissingUserId),
		errors.Is(err, chat.ErrInvalidMessage):
		apiErr = NewBadRequestError()
	default:
		return NewInternalServerError(err)
	}

	apiErr.Message = err.Error()
	return apiErr
}
