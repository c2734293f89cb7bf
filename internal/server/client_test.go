package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/npezzotti/go-anonchat/internal/chat"
	"github.com/npezzotti/go-anonchat/internal/database"
	"github.com/npezzotti/go-anonchat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, userId, roomId string) *Client {
	t.Helper()
	return &Client{
		log:     testutil.TestLogger(t),
		userId:  userId,
		roomId:  roomId,
		send:    make(chan *ServerMessage, 16),
		limiter: rate.NewLimiter(rate.Limit(publishRate), publishBurst),
		stop:    make(chan struct{}),
		evicted: make(chan struct{}),
	}
}

type fakePublisher struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (p *fakePublisher) SendMessage(ctx context.Context, roomId, userId, content string) (database.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, roomId+"/"+userId+"/"+content)
	if p.err != nil {
		return database.Message{}, p.err
	}
	return database.Message{RoomId: roomId, UserId: userId, Content: content}, nil
}

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{}
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func Test_stopClient(t *testing.T) {
	c := newTestClient(t, "u1", "r1")

	c.stopClient()
	c.stopClient()

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}
}

func Test_evict(t *testing.T) {
	c := newTestClient(t, "u1", "r1")

	c.evict()
	c.evict()

	select {
	case <-c.evicted:
	default:
		t.Error("expected evicted channel to be closed")
	}
}

func Test_publish(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		p := &fakePublisher{}
		c := newTestClient(t, "u1", "r1")
		c.publisher = p

		c.publish(&ClientMessage{BaseMessage: BaseMessage{Id: 4}, Publish: &Publish{Content: "hi"}})

		require.Len(t, c.send, 1)
		resp := <-c.send
		assert.Equal(t, 4, resp.Id)
		assert.Equal(t, http.StatusAccepted, resp.Response.ResponseCode)
		assert.Equal(t, []string{"r1/u1/hi"}, p.calls)
	})

	t.Run("rejected", func(t *testing.T) {
		for _, tc := range []struct {
			err          error
			expectedCode int
		}{
			{err: chat.ErrBanned, expectedCode: http.StatusForbidden},
			{err: chat.ErrInvalidMessage, expectedCode: http.StatusBadRequest},
			{err: errors.New("db error"), expectedCode: http.StatusInternalServerError},
		} {
			c := newTestClient(t, "u1", "r1")
			c.publisher = &fakePublisher{err: tc.err}

			c.publish(&ClientMessage{BaseMessage: BaseMessage{Id: 5}, Publish: &Publish{Content: "hi"}})

			require.Len(t, c.send, 1)
			resp := <-c.send
			assert.Equal(t, 5, resp.Id)
			assert.Equal(t, tc.expectedCode, resp.Response.ResponseCode)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		p := &fakePublisher{}
		c := newTestClient(t, "u1", "r1")
		c.send = make(chan *ServerMessage, publishBurst+1)
		c.publisher = p

		for i := 0; i <= publishBurst; i++ {
			c.publish(&ClientMessage{BaseMessage: BaseMessage{Id: i + 1}, Publish: &Publish{Content: "spam"}})
		}

		assert.Len(t, p.calls, publishBurst, "expected the burst to be let through and no more")

		var last *ServerMessage
		for len(c.send) > 0 {
			last = <-c.send
		}
		require.NotNil(t, last)
		assert.Equal(t, http.StatusTooManyRequests, last.Response.ResponseCode)
	})
}
