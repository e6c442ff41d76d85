package wallet

// Pager computes 1-based pagination windows over a known total count. Pages
// beyond the last one are unreachable through Next/Prev.
type Pager struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

func NewPager(page, pageSize, totalCount int) Pager {
	if pageSize < 1 {
		pageSize = 20
	}
	if totalCount < 0 {
		totalCount = 0
	}
	p := Pager{Page: page, PageSize: pageSize, TotalCount: totalCount}
	p.Page = clampPage(page, p.TotalPages())
	return p
}

func (p Pager) TotalPages() int {
	if p.TotalCount == 0 {
		return 1
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}

func (p Pager) HasNext() bool { return p.Page < p.TotalPages() }
func (p Pager) HasPrev() bool { return p.Page > 1 }

// Next returns the following page, saturating at the last page.
func (p Pager) Next() Pager {
	p.Page = clampPage(p.Page+1, p.TotalPages())
	return p
}

// Prev returns the preceding page, saturating at the first page.
func (p Pager) Prev() Pager {
	p.Page = clampPage(p.Page-1, p.TotalPages())
	return p
}

// Window reports the zero-based half-open item range covered by this page.
func (p Pager) Window() (start, end int) {
	start = (p.Page - 1) * p.PageSize
	end = start + p.PageSize
	if end > p.TotalCount {
		end = p.TotalCount
	}
	if start > p.TotalCount {
		start = p.TotalCount
	}
	return start, end
}

func clampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
