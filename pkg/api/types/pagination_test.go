package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPage(t *testing.T) {
	page := NewPage([]string{"a", "b"}, 2, 2, 5)
	assert.Equal(t, int64(5), page.ResultTotal)
	assert.Equal(t, 3, page.PageCount)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, []string{"a", "b"}, page.Values)

	t.Run("normalizes invalid parameters", func(t *testing.T) {
		page := NewPage[string](nil, 0, 0, -1)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 1, page.PageSize)
		assert.Equal(t, int64(0), page.ResultTotal)
		assert.Equal(t, 0, page.PageCount)
		assert.NotNil(t, page.Values)
	})
}

func TestPaginate(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name     string
		page     int
		pageSize int
		want     []int
		count    int
	}{
		{"first page", 1, 2, []int{1, 2}, 3},
		{"last partial page", 3, 2, []int{5}, 3},
		{"past the end", 4, 2, []int{}, 3},
		{"single page", 1, 25, []int{1, 2, 3, 4, 5}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Paginate(all, tt.page, tt.pageSize)
			assert.Equal(t, tt.want, page.Values)
			assert.Equal(t, tt.count, page.PageCount)
			assert.Equal(t, int64(5), page.ResultTotal)
		})
	}
}
