package products

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	catalog := NewCatalog()

	t.Run("size", func(t *testing.T) {
		assert.Equal(t, 32, catalog.Len())
		assert.Len(t, catalog.List(), 32)
	})

	t.Run("lookup", func(t *testing.T) {
		p, ok := catalog.Get("1024:2")
		require.True(t, ok)
		assert.Equal(t, 1024, p.RAMMB)
		assert.Equal(t, 2, p.CPUCount)
		assert.Equal(t, DefaultDiskGB, p.DiskGB)
		assert.Equal(t, "2 CPU, 1024M RAM", p.Name)
		assert.Equal(t, p.Name, p.Description)

		_, ok = catalog.Get("999:999")
		assert.False(t, ok)
	})

	t.Run("ordering", func(t *testing.T) {
		list := catalog.List()
		assert.Equal(t, "512:1", list[0].ID)
		assert.Equal(t, "512:8", list[3].ID)
		assert.Equal(t, "16384:8", list[len(list)-1].ID)
	})

	t.Run("list is a copy", func(t *testing.T) {
		list := catalog.List()
		list[0].CPUCount = 99
		p, _ := catalog.Get("512:1")
		assert.Equal(t, 1, p.CPUCount)
		assert.Equal(t, 1, catalog.List()[0].CPUCount)
	})

	t.Run("unique ids", func(t *testing.T) {
		seen := map[string]bool{}
		for _, p := range catalog.List() {
			assert.False(t, seen[p.ID], p.ID)
			seen[p.ID] = true
		}
	})
}

func TestForHardware(t *testing.T) {
	catalog := NewCatalog()

	p := catalog.ForHardware(2048, 4)
	assert.Equal(t, "2048:4", p.ID)

	adhoc := catalog.ForHardware(3000, 3)
	assert.Equal(t, Product{ID: "3000:3", Name: "3000:3", Description: "3000:3", CPUCount: 3, RAMMB: 3000, DiskGB: 4}, adhoc)
	_, ok := catalog.Get("3000:3")
	assert.False(t, ok, "ad-hoc products must not be added to the catalog")
}

func TestDefaultIsBuiltOnce(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]*Catalog, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Default()
		}(i)
	}
	wg.Wait()

	for _, c := range results {
		assert.Same(t, results[0], c)
	}
	assert.Equal(t, 32, Default().Len())
}
