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

	"github.com/mhollis/chorecoin/internal/database"
	"github.com/mhollis/chorecoin/internal/logging"
	"github.com/mhollis/chorecoin/internal/notify"
	"github.com/mhollis/chorecoin/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("CHORECOIN_LOG_LEVEL"))

	port := os.Getenv("CHORECOIN_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("CHORECOIN_DB_PATH")
	if dbPath == "" {
		dbPath = "chorecoin.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	sweepInterval := time.Hour
	if v := os.Getenv("CHORECOIN_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid CHORECOIN_SWEEP_INTERVAL: %v", err)
		}
		sweepInterval = d
	}

	cfg := server.Config{
		Push: notify.Config{
			VAPIDPublicKey:  os.Getenv("CHORECOIN_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("CHORECOIN_VAPID_PRIVATE_KEY"),
		},
		SweepInterval: sweepInterval,
	}
	if cfg.Push.VAPIDPublicKey == "" {
		logger.Warn("VAPID keys not set, push notifications disabled")
	}

	srv := server.New(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Sweeper().Start(ctx)
	defer srv.Sweeper().Stop()

	// Expired sessions pile up otherwise.
	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("session cleanup", "deleted", n)
				}
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Chorecoin running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
