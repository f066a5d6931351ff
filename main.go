package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/room4-2/voicerelay/config"
	"github.com/room4-2/voicerelay/prompt"
	"github.com/room4-2/voicerelay/server"
	"github.com/room4-2/voicerelay/session"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load static catalog data for prompt rendering
	catalog, err := prompt.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	// Create session registry
	sessionManager, err := session.NewManager(cfg)
	if err != nil {
		log.Fatalf("Failed to create session manager: %v", err)
	}

	// Start cleanup routine
	ctx, cancel := context.WithCancel(context.Background())
	go sessionManager.StartCleanupRoutine(ctx)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	srv := server.NewServer(cfg, sessionManager, catalog)

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}
