package types

// Page represents a paginated list response
type Page[T any] struct {
	ResultTotal int64 `json:"resultTotal"`
	PageCount   int   `json:"pageCount"`
	Page        int   `json:"page"`
	PageSize    int   `json:"pageSize"`
	Values      []T   `json:"values"`
}

// NewPage creates a new paginated response
func NewPage[T any](values []T, page, pageSize int, totalCount int64) *Page[T] {
	// Normalize parameters to prevent division-by-zero
	if pageSize <= 0 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}
	if totalCount < 0 {
		totalCount = 0
	}
	if values == nil {
		values = []T{}
	}

	var pageCount int
	if totalCount > 0 {
		pageCount = int((totalCount + int64(pageSize) - 1) / int64(pageSize)) // Ceiling division
	}

	return &Page[T]{
		ResultTotal: totalCount,
		PageCount:   pageCount,
		Page:        page,
		PageSize:    pageSize,
		Values:      values,
	}
}

// Paginate cuts one page out of a fully listed collection. The control
// plane has no server side paging for the queries we issue, so lists are
// paged after the fact.
func Paginate[T any](all []T, page, pageSize int) *Page[T] {
	if pageSize <= 0 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return NewPage(all[start:end], page, pageSize, int64(len(all)))
}
