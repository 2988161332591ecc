package repositories

// ListParams carries pagination, search, and filter options for list queries.
type ListParams struct {
	Page   int
	Limit  int
	Search string
	Filter string
}

// Normalize applies the default page and limit when they are unset.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	return p
}

// Offset returns the record offset for the normalized page.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
}

// NewPagination computes the page window for a total record count.
func NewPagination(params ListParams, total int64) Pagination {
	pages := int(total) / params.Limit
	if int(total)%params.Limit != 0 {
		pages++
	}
	return Pagination{Current: params.Page, Pages: pages, Total: total}
}
