package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-anonchat/internal/chat"
	"github.com/npezzotti/go-anonchat/internal/config"
	"github.com/npezzotti/go-anonchat/internal/database"
	"github.com/npezzotti/go-anonchat/internal/server"
)

type AnonChatApp struct {
	log            *log.Logger
	svc            *chat.Service
	db             database.AnonChatRepository
	mux            *http.Server
	cs             *server.ChatServer
	signingKey     []byte
	allowedOrigins []string

	// beforeRegister, when set, runs between a websocket upgrade and the
	// client's registration with the hub.
	beforeRegister func(roomId, userId string)
}

func NewAnonChatApp(mux *http.ServeMux, logger *log.Logger, svc *chat.Service, cs *server.ChatServer, db database.AnonChatRepository, cfg *config.Config) *AnonChatApp {
	s := &AnonChatApp{
		log:            logger,
		svc:            svc,
		db:             db,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.listRooms))
	mux.Handle("GET /api/rooms/{id}", s.authMiddleware(s.getRoom))
	mux.Handle("GET /api/rooms/{id}/participants/count", s.authMiddleware(s.participantCount))
	mux.Handle("POST /api/rooms/{id}/join", s.authMiddleware(s.joinRoom))
	mux.Handle("GET /api/rooms/{id}/nickname", s.authMiddleware(s.nickname))
	mux.Handle("GET /api/rooms/{id}/bans/{userId}", s.authMiddleware(s.getBan))
	mux.Handle("PUT /api/rooms/{id}/bans/{userId}", s.authMiddleware(s.banUser))
	mux.Handle("DELETE /api/rooms/{id}/bans/{userId}", s.authMiddleware(s.unbanUser))
	mux.Handle("GET /api/rooms/{id}/messages", s.authMiddleware(s.getMessages))
	mux.Handle("POST /api/rooms/{id}/messages", s.authMiddleware(s.sendMessage))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *AnonChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *AnonChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
