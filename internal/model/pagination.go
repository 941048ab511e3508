package model

// Pagination describes one page of search results.
type Pagination struct {
	Page         int  `json:"page"`
	PageSize     int  `json:"page_size"`
	TotalPages   int  `json:"total_pages"`
	TotalResults int  `json:"total_results"`
	HasMore      bool `json:"has_more"`
}

// CalculatePagination derives pagination metadata from a provider-reported
// total. maxPages is the provider-imposed page ceiling (0 = no cap); very
// large totals are capped there. A zero total yields zero pages and a result
// count landing exactly on a page boundary never reports HasMore.
func CalculatePagination(total, page, pageSize, maxPages int) Pagination {
	p := Pagination{
		Page:         page,
		PageSize:     pageSize,
		TotalResults: total,
	}
	if total <= 0 || pageSize <= 0 {
		return p
	}

	p.TotalPages = (total + pageSize - 1) / pageSize
	if maxPages > 0 && p.TotalPages > maxPages {
		p.TotalPages = maxPages
	}
	p.HasMore = page < p.TotalPages
	return p
}
