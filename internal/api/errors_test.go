package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/npezzotti/go-anonchat/internal/chat"
	"github.com/npezzotti/go-anonchat/internal/rooms"
	"github.com/stretchr/testify/assert"
)

func Test_domainError(t *testing.T) {
	tcs := []struct {
		name       string
		err        error
		statusCode int
	}{
		{"room not found", fmt.Errorf("get room: %w", rooms.ErrRoomNotFound), http.StatusNotFound},
		{"forbidden", rooms.ErrForbidden, http.StatusForbidden},
		{"banned", chat.ErrBanned, http.StatusForbidden},
		{"room full", chat.ErrRoomFull, http.StatusConflict},
		{"invalid room", rooms.ErrInvalidRoom, http.StatusBadRequest},
		{"ban creator", rooms.ErrCannotBanCreator, http.StatusBadRequest},
		{"missing user id", rooms.ErrMissingUserId, http.StatusBadRequest},
		{"invalid message", chat.ErrInvalidMessage, http.StatusBadRequest},
		{"api error", NewUnauthorizedError(), http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := domainError(tc.err)
			assert.Equal(t, tc.statusCode, apiErr.StatusCode)
			assert.NotEmpty(t, apiErr.Message)
		})
	}

	t.Run("client errors carry the domain message", func(t *testing.T) {
		apiErr := domainError(fmt.Errorf("ban: %w", rooms.ErrCannotBanCreator))
		assert.Contains(t, apiErr.Message, rooms.ErrCannotBanCreator.Error())
	})
}
