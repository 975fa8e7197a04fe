// AngelaMos | 2026
// pagination.go

package query

// PageMeta is the pagination block attached to every list response.
type PageMeta struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalCount  int  `json:"total_count"`
	Limit       int  `json:"limit"`
	HasNextPage bool `json:"has_next_page"`
	HasPrevPage bool `json:"has_prev_page"`
	NextPage    *int `json:"next_page"`
	PrevPage    *int `json:"prev_page"`
}

// ComputePagination is pure: callers must pass positive page and limit and a
// non-negative total count.
func ComputePagination(page, limit, totalCount int) PageMeta {
	totalPages := 0
	if totalCount > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}

	meta := PageMeta{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  totalCount,
		Limit:       limit,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}

	if meta.HasNextPage {
		next := page + 1
		meta.NextPage = &next
	}

	if meta.HasPrevPage {
		prev := page - 1
		meta.PrevPage = &prev
	}

	return meta
}
