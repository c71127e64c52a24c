package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhrivnak/vcompute/pkg/api/types"
	"github.com/mhrivnak/vcompute/pkg/network"
)

// NetworkService is the part of the network service the handlers use
type NetworkService interface {
	GetVLAN(ctx context.Context, id string) (*network.VLAN, error)
	ListVLANs(ctx context.Context) ([]network.VLAN, error)
	ListNetworkInterfaces(ctx context.Context, vmID string) ([]network.NetworkInterface, error)
	CreateVLAN(ctx context.Context, vlan network.VLAN) (*network.VLAN, error)
	RemoveVLAN(ctx context.Context, id string) error
}

// NetworkHandlers serves the organization networks
type NetworkHandlers struct {
	svc    NetworkService
	logger *slog.Logger
}

// NewNetworkHandlers creates network handlers
func NewNetworkHandlers(svc NetworkService, logger *slog.Logger) *NetworkHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &NetworkHandlers{svc: svc, logger: logger}
}

// ListNetworks handles GET /api/v1/networks
func (h *NetworkHandlers) ListNetworks(c *gin.Context) {
	vlans, err := h.svc.ListVLANs(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to list networks", err)
		return
	}

	page, pageSize := parsePaginationParams(c)
	c.JSON(http.StatusOK, types.Paginate(vlans, page, pageSize))
}

// GetNetwork handles GET /api/v1/networks/:id
func (h *NetworkHandlers) GetNetwork(c *gin.Context) {
	id, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	vlan, err := h.svc.GetVLAN(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Failed to get network", err, "networkID", id)
		return
	}

	c.JSON(http.StatusOK, vlan)
}

// CreateNetwork handles POST /api/v1/networks
func (h *NetworkHandlers) CreateNetwork(c *gin.Context) {
	var vlan network.VLAN
	if err := c.ShouldBindJSON(&vlan); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	created, err := h.svc.CreateVLAN(c.Request.Context(), vlan)
	if err != nil {
		respondError(c, h.logger, "Failed to create network", err, "name", vlan.Name)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// DeleteNetwork handles DELETE /api/v1/networks/:id
func (h *NetworkHandlers) DeleteNetwork(c *gin.Context) {
	id, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.RemoveVLAN(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "Failed to remove network", err, "networkID", id)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListInterfaces handles GET /api/v1/vms/:id/interfaces
func (h *NetworkHandlers) ListInterfaces(c *gin.Context) {
	vmID, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	nics, err := h.svc.ListNetworkInterfaces(c.Request.Context(), vmID)
	if err != nil {
		respondError(c, h.logger, "Failed to list network interfaces", err, "vmID", vmID)
		return
	}

	c.JSON(http.StatusOK, gin.H{"values": nics})
}
