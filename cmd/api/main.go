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

	"scriptlab/api/internal/app"
	"scriptlab/api/internal/archive"
	"scriptlab/api/internal/config"
	"scriptlab/api/internal/feedback"
	"scriptlab/api/internal/session"
)

func main() {
	cfg := config.Load()

	var advisor feedback.Client
	if strings.TrimSpace(cfg.FeedbackURL) != "" {
		advisor = feedback.NewHTTPClient(cfg.FeedbackURL, cfg.FeedbackToken, cfg.FeedbackTimeout)
	} else {
		log.Printf("No feedback endpoint configured, using canned advisory replies")
		advisor = feedback.Mock{}
	}

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for session persistence")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		service = app.NewWithSessionStore(cfg, advisor, redisStore)
	} else {
		log.Printf("Sessions are held in process memory only")
		service = app.New(cfg, advisor)
	}

	if strings.TrimSpace(cfg.ArchiveDir) != "" {
		if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
			log.Fatalf("failed to create archive dir: %v", err)
		}
		service.WithArchive(archive.New(cfg.ArchiveDir))
		log.Printf("Archiving saves to git repositories under %s", cfg.ArchiveDir)
	}

	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				service.Sweep()
			case <-sweepDone:
				return
			}
		}
	}()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("ScriptLab API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	close(sweepDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
