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

	"github.com/cityling/cityling-server/internal/adapter/upstream"
	"github.com/cityling/cityling-server/internal/config"
	"github.com/cityling/cityling-server/internal/policy"
	store "github.com/cityling/cityling-server/internal/repository"
	"github.com/cityling/cityling-server/internal/router"
	"github.com/cityling/cityling-server/internal/service"
	transport "github.com/cityling/cityling-server/internal/transport/http"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting chat gateway...")
	log.Printf("HTTP Port: %d", cfg.Port)
	log.Printf("Store: %s (%s)", cfg.StoreEngine, cfg.DataFile)
	log.Printf("Upstream: %s", cfg.LLMBaseURL)

	// Initialize store
	db, err := store.NewByEngine(cfg.StoreEngine, cfg.DataFile)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize router
	rt := router.New(router.Config{
		BaseURL:          cfg.LLMBaseURL,
		APIKey:           cfg.LLMAPIKey,
		Tenant:           cfg.Tenant,
		VisionGPTType:    cfg.VisionGPTType,
		TextGPTType:      cfg.TextGPTType,
		CompanionModel:   cfg.CompanionModel,
		GenericTimeout:   cfg.LLMTimeout,
		CompanionTimeout: cfg.CompanionChatTimeout,
	})

	// Initialize upstream client
	upstreamClient := upstream.NewChatClient()

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service
	svc := service.New(db, rt, upstreamClient, policyEngine, cfg.Tenant)

	// Create HTTP server
	server := transport.NewServer(svc)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Gateway started on port %d", cfg.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gateway...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Gateway stopped")
}
