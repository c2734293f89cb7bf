package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-anonchat/internal/api"
	"github.com/npezzotti/go-anonchat/internal/chat"
	"github.com/npezzotti/go-anonchat/internal/config"
	"github.com/npezzotti/go-anonchat/internal/database"
	"github.com/npezzotti/go-anonchat/internal/nickname"
	"github.com/npezzotti/go-anonchat/internal/server"
	"github.com/npezzotti/go-anonchat/internal/stats"
)

func main() {
	logger := log.New(os.Stderr, "[anonchat] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Fatal("load .env: ", err)
	}

	cfg, err := parseFlags(os.Args[1:], os.Getenv)
	if err != nil {
		logger.Fatal("config: ", err)
	}

	db, closeDb, err := openRepository(cfg, logger)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := closeDb(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	svc := chat.NewService(logger, db, nickname.DefaultPool(), statsUpdater)
	chatServer := server.NewChatServer(logger, statsUpdater)
	svc.SetNotifier(chatServer)

	srv := api.NewAnonChatApp(mux, logger, svc, chatServer, db, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}

// openRepository returns the configured store and its close function.
// Postgres schemas are migrated before use.
func openRepository(cfg *config.Config, logger *log.Logger) (database.AnonChatRepository, func() error, error) {
	if cfg.Store == config.StoreMemory {
		logger.Println("using in-memory store, data will not survive a restart")
		mem := database.NewMemAnonChatRepository()
		mem.SetLogger(logger)
		return mem, func() error { return nil }, nil
	}

	pg, err := database.NewPgAnonChatRepository(cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, nil, err
	}

	if err := pg.Migrate(); err != nil {
		pg.Close()
		return nil, nil, err
	}

	return pg, pg.Close, nil
}
