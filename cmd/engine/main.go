package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"concord/engine/internal/agentauth"
	"concord/engine/internal/app"
	"concord/engine/internal/config"
	"concord/engine/internal/notify"
	"concord/engine/internal/search"
	"concord/engine/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	agents := agentauth.NewService(dataStore)

	pgfts := search.NewPgFTS(db)
	var searchService *search.Service
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		searchService = search.NewService(meiliClient, pgfts, meiliClient)
	} else {
		searchService = search.NewService(nil, pgfts, nil)
	}

	var guard notify.Guard
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for notification delivery guard")
		redisGuard, err := notify.NewRedisGuard(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisGuard.Close()
		guard = redisGuard
	} else {
		log.Printf("Using in-process notification delivery guard")
		guard = notify.NewMemoryGuard()
	}

	var stream *notify.Stream
	if strings.TrimSpace(cfg.NATSURL) != "" {
		stream, err = notify.ConnectStream(cfg.NATSURL)
		if err != nil {
			log.Printf("WARNING: nats connection failed, push stream disabled: %v", err)
			stream = nil
		} else {
			defer stream.Close()
		}
	}

	service := app.New(cfg, dataStore, agents, guard, stream, searchService)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Concord engine listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
