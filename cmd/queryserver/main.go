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

	"github.com/wellsight/plunger-monitor/internal/query"
	"github.com/wellsight/plunger-monitor/internal/store"
	"github.com/wellsight/plunger-monitor/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Query Service...")

	// Connect to the event store
	eventStore, err := store.Open(cfg.Store.Driver, cfg.Store.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to event store: %v", err)
	}
	defer eventStore.Close()
	fmt.Printf("Connected to event store (%s)\n", cfg.Store.Driver)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Query.Port),
		Handler: query.NewServer(eventStore),
	}

	go func() {
		fmt.Printf("\n✓ Query Service listening on port %d\n", cfg.Query.Port)
		fmt.Println("✓ Press Ctrl+C to stop")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
