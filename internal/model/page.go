package model

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of an append-ordered collection.  Page is 1-based.
type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Normalize clamps the page the same way the HTTP layer does.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Bounds returns the [start, end) slice indexes of this page over n items.
func (p Page) Bounds(n int) (int, int) {
	p = p.Normalize()
	if n <= 0 || p.Page-1 > n/p.PageSize {
		return n, n
	}
	start := (p.Page - 1) * p.PageSize
	if start > n {
		start = n
	}
	end := start + p.PageSize
	if end > n {
		end = n
	}
	return start, end
}

// Paginate returns the page of items along with the total count.
func Paginate[T any](items []T, p Page) ([]T, int) {
	start, end := p.Bounds(len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, len(items)
}
