// Package pagination provides the pure page-window arithmetic used by the
// URL and history list views.
package pagination

// DefaultPageSize matches the list panels' fixed page size.
const DefaultPageSize = 4

// Page is one clamped window over a list of items. Start and End are
// half-open slice bounds into the full list.
type Page struct {
	TotalItems int `json:"total_items"`
	PageSize   int `json:"page_size"`
	Current    int `json:"current"`
	TotalPages int `json:"total_pages"`
	Start      int `json:"start"`
	End        int `json:"end"`
}

// Paginate maps (totalItems, pageSize, current) to a clamped page window.
// TotalPages is ceil(totalItems/pageSize) with a minimum of 1, so an empty
// list still has one (empty) page. A current page beyond the last page is
// clamped down to it; zero or negative pages clamp up to 1.
func Paginate(totalItems, pageSize, current int) Page {
	if pageSize < 1 {
		pageSize = 1
	}
	if totalItems < 0 {
		totalItems = 0
	}

	totalPages := (totalItems + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if current > totalPages {
		current = totalPages
	}
	if current < 1 {
		current = 1
	}

	start := (current - 1) * pageSize
	end := start + pageSize
	if start > totalItems {
		start = totalItems
	}
	if end > totalItems {
		end = totalItems
	}

	return Page{
		TotalItems: totalItems,
		PageSize:   pageSize,
		Current:    current,
		TotalPages: totalPages,
		Start:      start,
		End:        end,
	}
}

// Pager carries a list view's paging state, including the on/off toggle.
// The zero value is not useful; use NewPager.
type Pager struct {
	pageSize int
	current  int
	enabled  bool
}

// NewPager returns an enabled pager on page 1.
func NewPager(pageSize int) *Pager {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Pager{pageSize: pageSize, current: 1, enabled: true}
}

// Enabled reports whether pagination is on.
func (p *Pager) Enabled() bool { return p.enabled }

// Toggle flips pagination on or off. Re-enabling resets to page 1.
func (p *Pager) Toggle() {
	p.enabled = !p.enabled
	if p.enabled {
		p.current = 1
	}
}

// SetPage moves to the given page; the next Window call clamps it.
func (p *Pager) SetPage(n int) { p.current = n }

// Window computes the visible window for totalItems. When pagination is
// disabled all items are shown unsliced. The pager's current page is
// updated to the clamped value, so deletions pull the view back onto the
// last remaining page.
func (p *Pager) Window(totalItems int) Page {
	if !p.enabled {
		return Page{
			TotalItems: totalItems,
			PageSize:   totalItems,
			Current:    1,
			TotalPages: 1,
			Start:      0,
			End:        totalItems,
		}
	}
	page := Paginate(totalItems, p.pageSize, p.current)
	p.current = page.Current
	return page
}
