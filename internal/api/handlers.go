package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-anonchat/internal/rooms"
	"github.com/npezzotti/go-anonchat/internal/server"
)

type CreateRoomRequest struct {
	Title           string `json:"title"`
	Category        string `json:"category"`
	MaxParticipants int    `json:"max_participants"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type NicknameResponse struct {
	RoomId   string `json:"room_id"`
	Nickname string `json:"nickname"`
}

type ParticipantCountResponse struct {
	RoomId string `json:"room_id"`
	Count  int    `json:"count"`
}

type BanStatusResponse struct {
	RoomId string `json:"room_id"`
	UserId string `json:"user_id"`
	Banned bool   `json:"banned"`
}

func (s *AnonChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *AnonChatApp) writeError(w http.ResponseWriter, err error) {
	errResp := domainError(err)
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Printf("internal error: %v", err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

// requestUserId writes a 401 and reports false when the request carries
// no identity.
func (s *AnonChatApp) requestUserId(w http.ResponseWriter, r *http.Request) (string, bool) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
	}
	return userId, ok
}

func (s *AnonChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Printf("health check: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *AnonChatApp) createRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUserId(w, r)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.svc.CreateAnonymousRoom(r.Context(), rooms.CreateRoomParams{
		Title:           req.Title,
		CreatorId:       userId,
		Category:        req.Category,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, room)
}

func (s *AnonChatApp) listRooms(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.GetRoomsByCategory(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, list)
}

func (s *AnonChatApp) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.svc.GetRoomDetails(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if room == nil {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, room)
}

func (s *AnonChatApp) participantCount(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("id")
	count, err := s.svc.GetParticipantCount(r.Context(), roomId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, ParticipantCountResponse{RoomId: roomId, Count: count})
}

func (s *AnonChatApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUserId(w, r)
	if !ok {
		return
	}

	res, err := s.svc.Join(r.Context(), r.PathValue("id"), userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, res)
}

func (s *AnonChatApp) nickname(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUserId(w, r)
	if !ok {
		return
	}

	roomId := r.PathValue("id")
	nickname, err := s.svc.Nickname(r.Context(), roomId, userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, NicknameResponse{
		RoomId:   roomId,
		Nickname: nickname,
	})
}

func (s *AnonChatApp) getBan(w http.ResponseWriter, r *http.Request) {
	roomId, userId := r.PathValue("id"), r.PathValue("userId")
	banned, err := s.svc.IsUserBanned(r.Context(), roomId, userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, BanStatusResponse{RoomId: roomId, UserId: userId, Banned: banned})
}

func (s *AnonChatApp) banUser(w http.ResponseWriter, r *http.Request) {
	requestingUserId, ok := s.requestUserId(w, r)
	if !ok {
		return
	}

	if err := s.svc.BanUserFromRoom(r.Context(), r.PathValue("id"), r.PathValue("userId"), requestingUserId); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *AnonChatApp) unbanUser(w http.ResponseWriter, r *http.Request) {
	requestingUserId, ok := s.requestUserId(w, r)
	if !ok {
		return
	}

	if err := s.svc.UnbanUserFromRoom(r.Context(), r.PathValue("id"), r.PathValue("userId"), requestingUserId); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *AnonChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	var (
		before int64
		limit  int
		err    error
	)

	query := r.URL.Query()
	if v := query.Get("before"); v != "" {
		before, err = strconv.ParseInt(v, 10, 64)
		if err != nil || before < 0 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}
	if v := query.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	messages, err := s.svc.Messages(r.Context(), r.PathValue("id"), before, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *AnonChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUserId(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.svc.SendMessage(r.Context(), r.PathValue("id"), userId, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *AnonChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUserId(w, r)
	if !ok {
		return
	}

	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	joined, err := s.svc.Join(r.Context(), roomId, userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	if s.beforeRegister != nil {
		s.beforeRegister(roomId, userId)
	}

	client := server.NewClient(conn, s.cs, s.svc, s.log, userId, roomId, joined.Nickname)
	if err := s.cs.Register(client); err != nil {
		s.log.Println("register client:", err)
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()

	// A ban committed after Join was announced before the client was in
	// its room. Bans from here on reach it through the hub.
	banned, err := s.svc.IsUserBanned(r.Context(), roomId, userId)
	if err != nil {
		s.log.Printf("ban check for %q in room %q: %v", userId, roomId, err)
		return
	}
	if banned {
		s.cs.UserBanned(roomId, userId)
	}
}
