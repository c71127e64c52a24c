package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mhrivnak/vcompute/pkg/api/types"
	"github.com/mhrivnak/vcompute/pkg/compute"
	"github.com/mhrivnak/vcompute/pkg/products"
)

// ComputeService is the part of the compute service the VM handlers use
type ComputeService interface {
	GetVirtualMachine(ctx context.Context, vmID string) (*compute.VirtualMachine, error)
	GetVirtualMachines(ctx context.Context, vappID string) ([]compute.VirtualMachine, error)
	ListVirtualMachines(ctx context.Context) ([]compute.VirtualMachine, error)
	Launch(ctx context.Context, req compute.LaunchRequest) ([]compute.VirtualMachine, error)
	Clone(ctx context.Context, req compute.CloneRequest) ([]compute.VirtualMachine, error)
	Terminate(ctx context.Context, vmID string) error
	TerminateVApp(ctx context.Context, vappID string) error
	GetProduct(id string) (products.Product, bool)
}

// VMHandlers serves the virtual machine collection
type VMHandlers struct {
	svc    ComputeService
	logger *slog.Logger
}

// NewVMHandlers creates VM handlers backed by the compute service
func NewVMHandlers(svc ComputeService, logger *slog.Logger) *VMHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &VMHandlers{svc: svc, logger: logger}
}

// LaunchVMRequest represents the request body for launching VMs from a template
type LaunchVMRequest struct {
	TemplateID  string               `json:"templateId" binding:"required"`
	ProductID   string               `json:"productId" binding:"required"`
	VDCID       string               `json:"vdcId" binding:"required"`
	Name        string               `json:"name" binding:"required"`
	NetworkID   string               `json:"networkId"`
	Allocations []compute.Allocation `json:"allocations"`
}

// CloneVMRequest represents the request body for cloning the vApp of a VM
type CloneVMRequest struct {
	VDCID       string `json:"vdcId" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	PowerOn     bool   `json:"powerOn"`
}

// ListVMs handles GET /api/v1/vms
func (h *VMHandlers) ListVMs(c *gin.Context) {
	page, pageSize := parsePaginationParams(c)

	vms, err := h.svc.ListVirtualMachines(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to list virtual machines", err)
		return
	}

	c.JSON(http.StatusOK, types.Paginate(vms, page, pageSize))
}

// GetVM handles GET /api/v1/vms/:id
func (h *VMHandlers) GetVM(c *gin.Context) {
	vmID, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	vm, err := h.svc.GetVirtualMachine(c.Request.Context(), vmID)
	if err != nil {
		respondError(c, h.logger, "Failed to get virtual machine", err, "vmID", vmID)
		return
	}

	c.JSON(http.StatusOK, vm)
}

// LaunchVMs handles POST /api/v1/vms
func (h *VMHandlers) LaunchVMs(c *gin.Context) {
	var req LaunchVMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	product, ok := h.svc.GetProduct(req.ProductID)
	if !ok {
		badRequest(c, "Unknown product", fmt.Sprintf("product %q is not offered", req.ProductID))
		return
	}

	vms, err := h.svc.Launch(c.Request.Context(), compute.LaunchRequest{
		TemplateID:  req.TemplateID,
		Product:     product,
		VDCID:       req.VDCID,
		Name:        req.Name,
		NetworkID:   req.NetworkID,
		Allocations: req.Allocations,
	})
	if err != nil {
		respondError(c, h.logger, "Failed to launch virtual machines", err,
			"templateID", req.TemplateID, "name", req.Name)
		return
	}

	h.logger.Info("Launched virtual machines", "templateID", req.TemplateID, "name", req.Name, "count", len(vms))
	c.JSON(http.StatusCreated, types.NewPage(vms, 1, max(len(vms), 1), int64(len(vms))))
}

// CloneVM handles POST /api/v1/vms/:id/clone
func (h *VMHandlers) CloneVM(c *gin.Context) {
	vmID, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	var req CloneVMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	vms, err := h.svc.Clone(c.Request.Context(), compute.CloneRequest{
		SourceID:    vmID,
		VDCID:       req.VDCID,
		Name:        req.Name,
		Description: req.Description,
		PowerOn:     req.PowerOn,
	})
	if err != nil {
		respondError(c, h.logger, "Failed to clone virtual machine", err, "vmID", vmID)
		return
	}

	c.JSON(http.StatusCreated, types.NewPage(vms, 1, max(len(vms), 1), int64(len(vms))))
}

// TerminateVM handles DELETE /api/v1/vms/:id
func (h *VMHandlers) TerminateVM(c *gin.Context) {
	vmID, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Terminate(c.Request.Context(), vmID); err != nil {
		respondError(c, h.logger, "Failed to terminate virtual machine", err, "vmID", vmID)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListVAppVMs handles GET /api/v1/vapps/:id/vms
func (h *VMHandlers) ListVAppVMs(c *gin.Context) {
	vappID, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	vms, err := h.svc.GetVirtualMachines(c.Request.Context(), vappID)
	if err != nil {
		respondError(c, h.logger, "Failed to list vApp virtual machines", err, "vappID", vappID)
		return
	}

	page, pageSize := parsePaginationParams(c)
	c.JSON(http.StatusOK, types.Paginate(vms, page, pageSize))
}

// TerminateVApp handles DELETE /api/v1/vapps/:id
func (h *VMHandlers) TerminateVApp(c *gin.Context) {
	vappID, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.TerminateVApp(c.Request.Context(), vappID); err != nil {
		respondError(c, h.logger, "Failed to terminate vApp", err, "vappID", vappID)
		return
	}

	c.Status(http.StatusNoContent)
}

func resourceParam(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if !validResourceID(id) {
		badRequest(c, "Invalid resource id", fmt.Sprintf("%q is not a valid identifier", id))
		return "", false
	}
	return id, true
}

// parsePaginationParams extracts and validates pagination parameters from the request
func parsePaginationParams(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 25

	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if pageSizeStr := c.Query("pageSize"); pageSizeStr != "" {
		if ps, err := strconv.Atoi(pageSizeStr); err == nil && ps > 0 {
			pageSize = min(ps, 128)
		}
	}

	return page, pageSize
}
