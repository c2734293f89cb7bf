package api

import (
	"net/http"
	"testing"

	"github.com/npezzotti/go-anonchat/internal/chat"
	"github.com/npezzotti/go-anonchat/internal/config"
	"github.com/npezzotti/go-anonchat/internal/database"
	"github.com/npezzotti/go-anonchat/internal/server"
	"github.com/npezzotti/go-anonchat/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewAnonChatApp(t *testing.T) {
	mux := http.NewServeMux()
	logger := testutil.TestLogger(t)
	cs := &server.ChatServer{}
	svc := &chat.Service{}
	db := &database.MockAnonChatRepository{}
	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		SigningKey:     []byte("secret"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewAnonChatApp(mux, logger, svc, cs, db, cfg)

	assert.NotNil(t, app, "expected app to be initialized")
	assert.NotNil(t, app.mux, "expected mux to be initialized")
	assert.Equal(t, logger, app.log, "expected logger to be set")
	assert.Equal(t, db, app.db, "expected db to be set")
	assert.Equal(t, cs, app.cs, "expected chat server to be set")
	assert.Equal(t, svc, app.svc, "expected chat service to be set")
	assert.Equal(t, cfg.SigningKey, app.signingKey, "expected signing key to be set")
	assert.Equal(t, cfg.AllowedOrigins, app.allowedOrigins, "expected allowed origins to be set")
	assert.Equal(t, cfg.ServerAddr, app.mux.Addr, "expected server address to match config")
}
