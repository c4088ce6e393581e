package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hikmah-systems/isnad/internal/config"
	"github.com/hikmah-systems/isnad/internal/feed"
	"github.com/hikmah-systems/isnad/internal/server"
	"github.com/hikmah-systems/isnad/internal/storage"
	"github.com/hikmah-systems/isnad/internal/trust"
)

func main() {
	cfg, err := config.Load(os.Getenv("ISNAD_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	db, err := storage.NewDB(cfg.DataDir + "/isnad.db")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	hub := feed.NewHub()
	svc := trust.NewService(db,
		trust.WithPublisher(hub),
		trust.WithRetentionDays(cfg.RetentionDays),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := server.New(svc, hub, cfg.AdminSecret, cfg.RateLimitPerMinute)
	defer srv.Close()
	srv.StartWorkers(ctx, time.Duration(cfg.MaintenanceHours)*time.Hour)

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: srv}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	fmt.Printf("isnad running on %s\n", cfg.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
