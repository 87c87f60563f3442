package search

import "math"

// PageInfo is the pagination block of a listing response.
type PageInfo struct {
	TotalCount  int64 `json:"totalCount"`
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
	// PageSize is the page size applied after capping; 0 when unpaginated.
	PageSize int `json:"pageSize,omitempty"`
}

// Paginate derives page metadata. A non-positive pageSize means everything
// was returned on a single page.
func Paginate(total int64, page, pageSize int) PageInfo {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		return PageInfo{TotalCount: total, CurrentPage: 1, TotalPages: 1}
	}
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return PageInfo{
		TotalCount:  total,
		CurrentPage: page,
		TotalPages:  pages,
		HasNext:     page < pages,
		HasPrev:     page > 1,
		PageSize:    pageSize,
	}
}

type PriceRangeStats struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// Analytics accompanies text searches and is computed over the full filtered
// set, text condition included.
type Analytics struct {
	ResultCountsByCategory map[string]int64 `json:"resultCountsByCategory"`
	PriceRangeStats        PriceRangeStats  `json:"priceRangeStats"`
}

// Accumulator builds Analytics from matches loaded in memory.
type Accumulator struct {
	counts map[string]int64
	n      int
	sum    float64
	min    float64
	max    float64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{counts: map[string]int64{}, min: math.Inf(1), max: math.Inf(-1)}
}

func (a *Accumulator) Add(category string, price float64) {
	a.counts[category]++
	a.n++
	a.sum += price
	a.min = math.Min(a.min, price)
	a.max = math.Max(a.max, price)
}

func (a *Accumulator) Result() Analytics {
	out := Analytics{ResultCountsByCategory: a.counts}
	if a.n > 0 {
		out.PriceRangeStats = PriceRangeStats{Min: a.min, Max: a.max, Average: a.sum / float64(a.n)}
	}
	return out
}
