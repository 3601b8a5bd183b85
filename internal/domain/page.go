package domain

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageRequest selects a window of a user's bookmarks, newest first.
type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest clamps page and limit to sane values.
func NewPageRequest(page, limit int) PageRequest {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return PageRequest{Page: page, Limit: limit}
}

// Offset is the zero-based index of the first item of the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Window returns the [start, end) bounds of the page inside a list of n items.
func (p PageRequest) Window(n int) (int, int) {
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Page is one window of bookmarks plus the totals needed to page through the rest.
type Page struct {
	Bookmarks  []*Bookmark `json:"bookmarks"`
	Pagination Pagination  `json:"pagination"`
}

func NewPage(items []*Bookmark, req PageRequest, total int) *Page {
	if items == nil {
		items = []*Bookmark{}
	}
	return &Page{
		Bookmarks: items,
		Pagination: Pagination{
			Page:  req.Page,
			Limit: req.Limit,
			Total: total,
			Pages: (total + req.Limit - 1) / req.Limit,
		},
	}
}
