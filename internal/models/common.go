// Package models defines the domain models for the compliance service.
package models

// Pagination holds pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

// DefaultPagination returns default pagination settings.
func DefaultPagination() Pagination {
	return Pagination{
		Page:     1,
		PageSize: 25,
	}
}

// AllPages is used by callers that need an entire collection, such as
// summaries and exports.
func AllPages() Pagination {
	return Pagination{Page: 1, PageSize: -1}
}

// Offset calculates the SQL offset for the current page.
func (p Pagination) Offset() int {
	if p.PageSize < 0 {
		return 0
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the page size as limit. A negative page size means no limit.
func (p Pagination) Limit() int {
	if p.PageSize < 0 {
		return -1
	}
	if p.PageSize < 1 {
		return 25
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// TotalPages calculates the total number of pages.
func (p Pagination) TotalPages(total int) int {
	if p.PageSize <= 0 {
		return 1
	}
	pages := total / p.PageSize
	if total%p.PageSize > 0 {
		pages++
	}
	if pages < 1 {
		return 1
	}
	return pages
}
