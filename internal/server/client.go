package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-anonchat/internal/database"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	publishTimeout = 5 * time.Second

	// publishRate and publishBurst bound how fast one connection may post.
	publishRate  = 5
	publishBurst = 10
)

// Publisher persists a message on behalf of a connected user.
type Publisher interface {
	SendMessage(ctx context.Context, roomId, userId, content string) (database.Message, error)
}

type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	publisher  Publisher
	log        *log.Logger
	userId     string
	roomId     string
	nickname   string
	send       chan *ServerMessage
	limiter    *rate.Limiter
	stop       chan struct{}
	stopOnce   sync.Once
	evicted    chan struct{}
	evictOnce  sync.Once
}

func NewClient(conn *websocket.Conn, cs *ChatServer, publisher Publisher, l *log.Logger, userId, roomId, nickname string) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		publisher:  publisher,
		log:        l,
		userId:     userId,
		roomId:     roomId,
		nickname:   nickname,
		send:       make(chan *ServerMessage, 256),
		limiter:    rate.NewLimiter(rate.Limit(publishRate), publishBurst),
		stop:       make(chan struct{}),
		evicted:    make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			if !c.writeServerMessage(msg) {
				return
			}
		case <-c.evicted:
			c.flush()
			c.sendClose(websocket.ClosePolicyViolation, "banned")
			return
		case <-c.stop:
			c.sendClose(websocket.CloseGoingAway, "server shutting down")
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure, websocket.ClosePolicyViolation) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(0))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()

		switch {
		case msg.Publish != nil:
			c.publish(&msg)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

// publish stores the message through the publisher. The room broadcast
// is driven by the publisher's notifier, so the author only gets an
// acknowledgement here.
func (c *Client) publish(msg *ClientMessage) {
	if !c.limiter.Allow() {
		c.queueMessage(ErrTooManyRequests(msg.Id))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if _, err := c.publisher.SendMessage(ctx, c.roomId, c.userId, msg.Publish.Content); err != nil {
		resp := errorResponse(msg.Id, err)
		if resp.Response.ResponseCode >= 500 {
			c.log.Printf("send message from %q in room %q: %v", c.userId, c.roomId, err)
		}
		c.queueMessage(resp)
		return
	}

	c.queueMessage(NoErrAccepted(msg.Id))
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send buffer full for %q, dropping message", c.userId)
		return false
	}

	return true
}

// flush writes whatever is already queued without waiting for more.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if !c.writeServerMessage(msg) {
				return
			}
		default:
			return
		}
	}
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) writeServerMessage(msg *ServerMessage) bool {
	bytes, err := serializeMessage(msg)
	if err != nil {
		c.log.Println("failed to serialize message:", err)
		return true
	}

	return c.sendMessage(websocket.TextMessage, bytes)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) sendClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) && !errors.Is(err, net.ErrClosed) {
		c.log.Printf("write close: %s", err)
	}
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// evict makes the writer flush pending frames and close the connection.
func (c *Client) evict() {
	c.evictOnce.Do(func() { close(c.evicted) })
}

func (c *Client) cleanup() {
	c.chatServer.deRegister(c)
	c.stopClient()
}
