// Package products enumerates the virtual machine sizes offered by the
// control plane.
package products

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultDiskGB is the nominal disk size reported for every product
const DefaultDiskGB = 4

var (
	ramSizesMB = []int{512, 1024, 1536, 2048, 4096, 8192, 12288, 16384}
	cpuCounts  = []int{1, 2, 4, 8}
)

// Product is a VM sizing option
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CPUCount    int    `json:"cpuCount"`
	RAMMB       int    `json:"ramMB"`
	DiskGB      int    `json:"diskGB"`
}

// ProductID returns the catalog key for a RAM and CPU combination
func ProductID(ramMB, cpus int) string {
	return fmt.Sprintf("%d:%d", ramMB, cpus)
}

func newProduct(ramMB, cpus int) Product {
	label := fmt.Sprintf("%d CPU, %dM RAM", cpus, ramMB)
	return Product{
		ID:          ProductID(ramMB, cpus),
		Name:        label,
		Description: label,
		CPUCount:    cpus,
		RAMMB:       ramMB,
		DiskGB:      DefaultDiskGB,
	}
}

// adHocProduct describes hardware outside the catalog, labelled by its id
func adHocProduct(ramMB, cpus int) Product {
	p := newProduct(ramMB, cpus)
	p.Name = p.ID
	p.Description = p.ID
	return p
}

// Catalog is an immutable set of products keyed by "<ram>:<cpu>"
type Catalog struct {
	byID    map[string]Product
	ordered []Product
}

// NewCatalog builds the cross product of the supported RAM sizes and CPU counts.
func NewCatalog() *Catalog {
	c := &Catalog{byID: make(map[string]Product, len(ramSizesMB)*len(cpuCounts))}
	for _, ram := range ramSizesMB {
		for _, cpus := range cpuCounts {
			p := newProduct(ram, cpus)
			c.byID[p.ID] = p
			c.ordered = append(c.ordered, p)
		}
	}
	sort.SliceStable(c.ordered, func(i, j int) bool {
		if c.ordered[i].RAMMB != c.ordered[j].RAMMB {
			return c.ordered[i].RAMMB < c.ordered[j].RAMMB
		}
		return c.ordered[i].CPUCount < c.ordered[j].CPUCount
	})
	return c
}

// Get looks up a product by id.
func (c *Catalog) Get(id string) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// List returns every product ordered by RAM then CPU count. The slice is a copy.
func (c *Catalog) List() []Product {
	out := make([]Product, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// ForHardware returns the catalog product matching an observed RAM and CPU
// combination, or an ad-hoc product describing it when the catalog has none.
func (c *Catalog) ForHardware(ramMB, cpus int) Product {
	if p, ok := c.byID[ProductID(ramMB, cpus)]; ok {
		return p
	}
	return adHocProduct(ramMB, cpus)
}

var defaultCatalog = sync.OnceValue(NewCatalog)

// Default returns a process-wide catalog built on first use.
func Default() *Catalog {
	return defaultCatalog()
}
