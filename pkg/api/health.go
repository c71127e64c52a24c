package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mhrivnak/vcompute/pkg/auth"
)

// Version is stamped at build time with -ldflags "-X ...api.Version=..."
var Version = "dev"

// readinessTimeout bounds the control-plane probe of the readiness check
const readinessTimeout = 5 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Ready     bool              `json:"ready"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// VersionResponse represents the version information response
type VersionResponse struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// healthHandler reports that the process is serving
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   Version,
	})
}

// readinessHandler probes the control plane through the compute and network services
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	services := map[string]string{}
	allReady := true
	check := func(name string, probe func(context.Context) (bool, error)) {
		ok, err := probe(ctx)
		switch {
		case err != nil:
			s.logger.Warn("Readiness probe failed", "service", name, "error", err)
			services[name] = "not ready"
			allReady = false
		case !ok:
			services[name] = "not subscribed"
			allReady = false
		default:
			services[name] = "ready"
		}
	}
	check("compute", s.compute.IsSubscribed)
	check("network", s.networks.IsSubscribed)

	if s.authSvc != nil {
		services["auth"] = "ready"
	} else {
		services["auth"] = "not ready"
		allReady = false
	}

	response := ReadinessResponse{
		Ready:     allReady,
		Timestamp: time.Now(),
		Services:  services,
	}
	if !allReady {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// versionHandler returns build information
func (s *Server) versionHandler(c *gin.Context) {
	SendSuccess(c, http.StatusOK, VersionResponse{
		Version:   Version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	})
}

// userProfileHandler returns the authenticated operator
func (s *Server) userProfileHandler(c *gin.Context) {
	SendSuccess(c, http.StatusOK, gin.H{"username": c.GetString(auth.UserContextKey)})
}
