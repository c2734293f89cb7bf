package server

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/npezzotti/go-anonchat/internal/database"
	"github.com/npezzotti/go-anonchat/internal/stats"
)

var ErrServerClosed = errors.New("chat server closed")

type banReq struct {
	roomId string
	userId string
}

// ChatServer fans room messages out to live connections and evicts banned
// users. All room state is owned by the Run goroutine.
type ChatServer struct {
	log            *log.Logger
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	rooms          map[string]*Room
	registerChan   chan *Client
	deRegisterChan chan *Client
	broadcastChan  chan database.Message
	banChan        chan banReq
	stop           chan struct{}
	stopOnce       sync.Once
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, su stats.StatsProvider) *ChatServer {
	su.RegisterMetric(stats.ActiveConnections)

	return &ChatServer{
		log:            logger,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		broadcastChan:  make(chan database.Message, 256),
		banChan:        make(chan banReq, 64),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (cs *ChatServer) Run() {
	for {
		select {
		case c := <-cs.registerChan:
			cs.addClient(c)
		case c := <-cs.deRegisterChan:
			cs.removeClient(c)
		case msg := <-cs.broadcastChan:
			if r, ok := cs.rooms[msg.RoomId]; ok {
				r.broadcast(&ServerMessage{
					BaseMessage: BaseMessage{Timestamp: Now()},
					Message:     &msg,
				})
			}
		case req := <-cs.banChan:
			cs.evictUser(req.roomId, req.userId)
		case <-cs.stop:
			cs.log.Println("shutting down chat server")
			for c := range cs.clients {
				c.stopClient()
			}

			close(cs.done)
			return
		}
	}
}

// Register attaches c to its room. It fails once the server is shut down.
func (cs *ChatServer) Register(c *Client) error {
	select {
	case cs.registerChan <- c:
		return nil
	case <-cs.done:
		return ErrServerClosed
	}
}

func (cs *ChatServer) deRegister(c *Client) {
	select {
	case cs.deRegisterChan <- c:
	case <-cs.done:
	}
}

// RoomMessage queues msg for every connection in its room.
func (cs *ChatServer) RoomMessage(msg database.Message) {
	select {
	case cs.broadcastChan <- msg:
	case <-cs.done:
	}
}

// UserBanned disconnects every connection of userId in the room after
// sending it a banned notification.
func (cs *ChatServer) UserBanned(roomId, userId string) {
	select {
	case cs.banChan <- banReq{roomId: roomId, userId: userId}:
	case <-cs.done:
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.log.Printf("adding connection from %q to room %q", c.userId, c.roomId)
	cs.clients[c] = struct{}{}

	r, ok := cs.rooms[c.roomId]
	if !ok {
		r = newRoom(c.roomId, cs.log)
		cs.rooms[c.roomId] = r
	}
	r.addClient(c)

	cs.stats.Incr(stats.ActiveConnections)
	c.queueMessage(NoErrOK(0, Welcome{RoomId: c.roomId, Nickname: c.nickname}))
}

func (cs *ChatServer) removeClient(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	cs.log.Printf("removing connection from %q in room %q", c.userId, c.roomId)
	delete(cs.clients, c)
	cs.stats.Decr(stats.ActiveConnections)

	if r, ok := cs.rooms[c.roomId]; ok {
		r.removeClient(c)
		cs.unloadRoomIfEmpty(r)
	}
}

func (cs *ChatServer) evictUser(roomId, userId string) {
	r, ok := cs.rooms[roomId]
	if !ok {
		return
	}

	for _, c := range r.removeAllClientsForUser(userId) {
		c.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Notification: &Notification{
				Banned: &Banned{RoomId: roomId, UserId: userId},
			},
		})
		c.evict()
	}

	cs.unloadRoomIfEmpty(r)
}

func (cs *ChatServer) unloadRoomIfEmpty(r *Room) {
	if r.isEmpty() {
		cs.log.Printf("unloading room %q", r.id)
		delete(cs.rooms, r.id)
	}
}

// Shutdown closes every connection and stops the run loop.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")
	cs.stopOnce.Do(func() { close(cs.stop) })

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
