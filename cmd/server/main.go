package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonchat/backend/internal/api"
	"github.com/anonchat/backend/internal/archive"
	"github.com/anonchat/backend/internal/config"
	"github.com/anonchat/backend/internal/db"
	"github.com/anonchat/backend/internal/gateway"
	"github.com/anonchat/backend/internal/identity"
	"github.com/anonchat/backend/internal/invite"
	"github.com/anonchat/backend/internal/janitor"
	"github.com/anonchat/backend/internal/ratelimit"
	"github.com/anonchat/backend/internal/session"
	"github.com/anonchat/backend/internal/store"
)

func main() {
	log.Println("[Server] Starting anonchat server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Server] Failed to load configuration: %v", err)
	}

	database, err := db.New(cfg.DatabaseURL, cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("[Server] Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("[Server] Failed to run migrations: %v", err)
	}

	// Core services
	roomStore := store.NewRoomStore(database.Postgres, cfg.MaxRoomMembers)
	gw := gateway.New(cfg.WSEventsPerSecond, cfg.WSEventBurst)
	core := session.New(roomStore, gw, session.Config{
		TypingTimeout:  cfg.TypingTimeout,
		PresenceWindow: cfg.PresenceWindow,
	}, identity.Username)
	gw.SetHandler(core)

	// Supporting services
	invites := invite.NewService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	archiver, err := archive.NewService(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
	if err != nil {
		log.Printf("[WARN] Failed to initialize archive service: %v (archival disabled)", err)
		archiver, _ = archive.NewService("", "", "", "", false)
	}
	limiter := ratelimit.NewLimiter(database.Redis, cfg.HTTPRateLimit, cfg.HTTPRateWindow)

	jan := janitor.New(core, roomStore, archiver, janitor.Config{
		SweepInterval:    cfg.SweepInterval,
		CleanupInterval:  cfg.CleanupInterval,
		RoomIdleTTL:      cfg.RoomIdleTTL,
		MessageRetention: cfg.MessageRetention,
	})

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go jan.Run(janitorCtx)

	server := api.NewServer(database, roomStore, gw, invites, jan, limiter,
		cfg.CORSOrigin, cfg.PresenceWindow)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[Server] HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] Shutting down server...")
	stopJanitor()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("[Server] Server forced to shutdown: %v", err)
	}

	log.Println("[Server] Server exited gracefully")
}
