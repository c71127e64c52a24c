package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mhrivnak/vcompute/pkg/compute"
	"github.com/mhrivnak/vcompute/pkg/products"
)

// ProductCatalog lists the VM sizes on offer
type ProductCatalog interface {
	GetProduct(id string) (products.Product, bool)
	ListProducts(arch compute.Architecture) []products.Product
}

// ProductHandlers serves the product catalog
type ProductHandlers struct {
	catalog ProductCatalog
	logger  *slog.Logger
}

// NewProductHandlers creates product handlers
func NewProductHandlers(catalog ProductCatalog, logger *slog.Logger) *ProductHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductHandlers{catalog: catalog, logger: logger}
}

// ListProducts handles GET /api/v1/products
func (h *ProductHandlers) ListProducts(c *gin.Context) {
	arch := compute.ArchitectureI64
	switch strings.ToUpper(c.Query("architecture")) {
	case "", string(compute.ArchitectureI64):
	case string(compute.ArchitectureI32):
		arch = compute.ArchitectureI32
	default:
		badRequest(c, "Invalid architecture", "architecture must be I32 or I64")
		return
	}

	c.JSON(http.StatusOK, gin.H{"values": h.catalog.ListProducts(arch)})
}

// GetProduct handles GET /api/v1/products/:id
func (h *ProductHandlers) GetProduct(c *gin.Context) {
	id := c.Param("id")
	product, ok := h.catalog.GetProduct(id)
	if !ok {
		c.JSON(http.StatusNotFound, NewAPIError(http.StatusNotFound, "Not Found", "Product not found"))
		return
	}
	c.JSON(http.StatusOK, product)
}
