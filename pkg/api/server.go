package api

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhrivnak/vcompute/pkg/api/handlers"
	"github.com/mhrivnak/vcompute/pkg/auth"
	"github.com/mhrivnak/vcompute/pkg/config"
)

// ComputeBackend is everything the API serves from the compute service
type ComputeBackend interface {
	handlers.ComputeService
	handlers.PowerService
	handlers.ProductCatalog
	IsSubscribed(ctx context.Context) (bool, error)
}

// NetworkBackend is everything the API serves from the network service
type NetworkBackend interface {
	handlers.NetworkService
	IsSubscribed(ctx context.Context) (bool, error)
}

// Server represents the API server
type Server struct {
	config     *config.Config
	authSvc    *auth.Service
	compute    ComputeBackend
	networks   NetworkBackend
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a new API server instance
func NewServer(cfg *config.Config, authSvc *auth.Service, computeSvc ComputeBackend, networkSvc NetworkBackend, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	server := &Server{
		config:   cfg,
		authSvc:  authSvc,
		compute:  computeSvc,
		networks: networkSvc,
		gatherer: gatherer,
		logger:   logger,
	}

	// Configure gin mode based on log level
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = gin.New()

	// Global middleware
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.requestLogger())
	s.router.Use(s.errorHandlerMiddleware())
	s.router.Use(s.corsMiddleware())

	s.router.NoRoute(func(c *gin.Context) {
		SendError(c, NewAPIError(http.StatusNotFound, "Not Found", "No such endpoint"))
	})

	// Health endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readinessHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	vmHandlers := handlers.NewVMHandlers(s.compute, s.logger)
	powerHandlers := handlers.NewPowerManagementHandler(s.compute, s.logger)
	productHandlers := handlers.NewProductHandlers(s.compute, s.logger)
	networkHandlers := handlers.NewNetworkHandlers(s.networks, s.logger)
	sessionHandlers := handlers.NewSessionHandlers(s.authSvc, s.logger)

	launchTimeout := timeoutMiddleware(s.config.Orchestrator.LaunchTimeout)
	terminateTimeout := timeoutMiddleware(s.config.Orchestrator.TerminateTimeout)

	v1 := s.router.Group("/api/v1")
	{
		// Public endpoints (no authentication required)
		v1.GET("/health", s.healthHandler)
		v1.GET("/version", s.versionHandler)
		v1.POST("/sessions", sessionHandlers.CreateSession)

		// Protected endpoints (authentication required)
		protected := v1.Group("/")
		protected.Use(auth.JWTMiddleware(s.authSvc))
		{
			protected.GET("/user/profile", s.userProfileHandler)

			protected.GET("/vms", vmHandlers.ListVMs)
			protected.POST("/vms", launchTimeout, vmHandlers.LaunchVMs)
			protected.GET("/vms/:id", vmHandlers.GetVM)
			protected.DELETE("/vms/:id", terminateTimeout, vmHandlers.TerminateVM)
			protected.POST("/vms/:id/clone", launchTimeout, vmHandlers.CloneVM)
			protected.POST("/vms/:id/actions/boot", powerHandlers.Boot)
			protected.POST("/vms/:id/actions/pause", powerHandlers.Pause)
			protected.POST("/vms/:id/actions/reboot", powerHandlers.Reboot)
			protected.GET("/vms/:id/interfaces", networkHandlers.ListInterfaces)

			protected.GET("/vapps/:id/vms", vmHandlers.ListVAppVMs)
			protected.DELETE("/vapps/:id", terminateTimeout, vmHandlers.TerminateVApp)

			protected.GET("/products", productHandlers.ListProducts)
			protected.GET("/products/:id", productHandlers.GetProduct)

			protected.GET("/networks", networkHandlers.ListNetworks)
			protected.POST("/networks", networkHandlers.CreateNetwork)
			protected.GET("/networks/:id", networkHandlers.GetNetwork)
			protected.DELETE("/networks/:id", networkHandlers.DeleteNetwork)
		}
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	address := fmt.Sprintf(":%d", s.config.API.Port)
	log.Printf("Starting API server on %s", address)

	// Launches and terminations block until the control plane settles, so
	// the write timeout stays off and the per-route timeouts apply instead.
	s.httpServer = &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if s.config.API.TLSCert != "" && s.config.API.TLSKey != "" {
		// Verify TLS certificate and key files exist and are readable
		if _, err := os.Stat(s.config.API.TLSCert); err != nil {
			log.Printf("TLS certificate file not found or unreadable: %v", err)
			return fmt.Errorf("TLS certificate file error: %w", err)
		}
		if _, err := os.Stat(s.config.API.TLSKey); err != nil {
			log.Printf("TLS key file not found or unreadable: %v", err)
			return fmt.Errorf("TLS key file error: %w", err)
		}

		log.Println("Starting HTTPS server")
		return s.httpServer.ListenAndServeTLS(s.config.API.TLSCert, s.config.API.TLSKey)
	}

	log.Println("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Println("Shutting down API server...")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the gin router (useful for testing)
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
