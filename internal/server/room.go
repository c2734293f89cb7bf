package server

import (
	"log"
)

// Room tracks the live connections of one chat room. It is owned by the
// ChatServer run loop and must not be touched from other goroutines.
type Room struct {
	id      string
	clients map[*Client]struct{}
	userMap map[string]map[*Client]struct{}
	log     *log.Logger
}

func newRoom(id string, logger *log.Logger) *Room {
	return &Room{
		id:      id,
		clients: make(map[*Client]struct{}),
		userMap: make(map[string]map[*Client]struct{}),
		log:     logger,
	}
}

func (r *Room) addClient(c *Client) {
	r.clients[c] = struct{}{}
	if r.userMap[c.userId] == nil {
		r.userMap[c.userId] = make(map[*Client]struct{})
	}
	r.userMap[c.userId][c] = struct{}{}
}

// removeClient reports whether c was in the room.
func (r *Room) removeClient(c *Client) bool {
	if _, ok := r.clients[c]; !ok {
		return false
	}

	delete(r.clients, c)
	if userClients, ok := r.userMap[c.userId]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(r.userMap, c.userId)
		}
	}

	return true
}

// removeAllClientsForUser detaches every connection of userId and returns
// them.
func (r *Room) removeAllClientsForUser(userId string) []*Client {
	userClients := r.userMap[userId]
	removed := make([]*Client, 0, len(userClients))
	for c := range userClients {
		delete(r.clients, c)
		removed = append(removed, c)
	}
	delete(r.userMap, userId)

	if len(removed) > 0 {
		r.log.Printf("removed %d connection(s) of user %q from room %q", len(removed), userId, r.id)
	}
	return removed
}

func (r *Room) isEmpty() bool {
	return len(r.clients) == 0
}

func (r *Room) broadcast(msg *ServerMessage) {
	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}
