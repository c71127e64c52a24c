package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mhrivnak/vcompute/pkg/api"
	"github.com/mhrivnak/vcompute/pkg/app"
	"github.com/mhrivnak/vcompute/pkg/auth"
	"github.com/mhrivnak/vcompute/pkg/config"
	"github.com/mhrivnak/vcompute/pkg/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Open the control-plane session and build the services on it
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), cfg.VCloud.RequestTimeout)
	services, err := app.New(startupCtx, cfg, logger, registry)
	cancelStartup()
	if err != nil {
		log.Fatalf("Failed to connect to the control plane: %v", err)
	}

	// Initialize authentication services
	if cfg.Auth.AdminPasswordHash == "" {
		log.Println("WARNING: auth.admin_password_hash is not set; logins will be refused")
	}
	if err := auth.ValidateSecret(cfg.Auth.JWTSecret); err != nil {
		log.Fatalf("Invalid auth.jwt_secret: %v", err)
	}
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	authSvc := auth.NewService(cfg.Auth.AdminUser, cfg.Auth.AdminPasswordHash, jwtManager, logger)

	// Initialize API server
	server := api.NewServer(cfg, authSvc, services.Compute, services.Networks, registry, logger)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received")

	// Give the server 30 seconds to finish current requests
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
