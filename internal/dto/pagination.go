package dto

import "math"

// ListQuery carries the paging parameters shared by list endpoints. Offset and
// Limit take precedence over Page and PageSize when Limit is set.
type ListQuery struct {
	Page           int  `query:"page"`
	PageSize       int  `query:"page_size"`
	Offset         int  `query:"offset"`
	Limit          int  `query:"limit"`
	IncludeDeleted bool `query:"include_deleted"`
}

// Window resolves the query into an offset and limit.
func (q ListQuery) Window() (int, int) {
	if q.Limit > 0 {
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		return offset, q.Limit
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	return (page - 1) * pageSize, pageSize
}

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Offset     int   `json:"offset"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta derives page counters from an offset window.
func NewPaginationMeta(offset, limit int, total int64) PaginationMeta {
	if limit <= 0 {
		limit = 20
	}
	meta := PaginationMeta{
		Page:       offset/limit + 1,
		PageSize:   limit,
		Offset:     offset,
		TotalItems: total,
	}
	meta.TotalPages = int(math.Ceil(float64(total) / float64(limit)))
	return meta
}

// ListResponse wraps one page of items.
type ListResponse[T any] struct {
	Items      []T            `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewListResponse builds a page, never returning a nil item slice.
func NewListResponse[T any](items []T, offset, limit int, total int64) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Pagination: NewPaginationMeta(offset, limit, total)}
}

// MapList converts the items of a page while keeping its pagination.
func MapList[T, U any](page ListResponse[T], convert func(T) U) ListResponse[U] {
	items := make([]U, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, convert(item))
	}
	return ListResponse[U]{Items: items, Pagination: page.Pagination}
}
