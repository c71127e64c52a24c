package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PowerService changes the power state of a VM
type PowerService interface {
	Boot(ctx context.Context, vmID string) error
	Pause(ctx context.Context, vmID string) error
	Reboot(ctx context.Context, vmID string) error
}

// PowerManagementHandler handles VM power actions
type PowerManagementHandler struct {
	svc    PowerService
	logger *slog.Logger
}

// NewPowerManagementHandler creates a new power management handler
func NewPowerManagementHandler(svc PowerService, logger *slog.Logger) *PowerManagementHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PowerManagementHandler{svc: svc, logger: logger}
}

// PowerActionResponse acknowledges a power action
type PowerActionResponse struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// Boot handles POST /api/v1/vms/:id/actions/boot
func (h *PowerManagementHandler) Boot(c *gin.Context) {
	h.run(c, "boot", h.svc.Boot)
}

// Pause handles POST /api/v1/vms/:id/actions/pause
func (h *PowerManagementHandler) Pause(c *gin.Context) {
	h.run(c, "pause", h.svc.Pause)
}

// Reboot handles POST /api/v1/vms/:id/actions/reboot. The reboot is
// requested and not awaited, so the response is 202.
func (h *PowerManagementHandler) Reboot(c *gin.Context) {
	vmID, ok := resourceParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Reboot(c.Request.Context(), vmID); err != nil {
		respondError(c, h.logger, "Failed to reboot VM", err, "vmID", vmID)
		return
	}
	c.JSON(http.StatusAccepted, PowerActionResponse{ID: vmID, Action: "reboot"})
}

func (h *PowerManagementHandler) run(c *gin.Context, action string, fn func(context.Context, string) error) {
	vmID, ok := resourceParam(c, "id")
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), vmID); err != nil {
		respondError(c, h.logger, "Failed to "+action+" VM", err, "vmID", vmID)
		return
	}
	h.logger.Info("VM power action completed", "vmID", vmID, "action", action)
	c.JSON(http.StatusOK, PowerActionResponse{ID: vmID, Action: action})
}
