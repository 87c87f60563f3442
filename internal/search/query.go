// Package search turns listing query parameters into catalog filters and
// derives the pagination, analytics and suggestion shapes returned with them.
package search

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Catalog document fields the engine filters and sorts on.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldSellerName  = "sellerName"
	FieldPrice       = "price"
	FieldCreatedAt   = "createdAt"
)

const (
	// AllCategories is the sentinel category meaning "no category filter".
	AllCategories = "all"
	MaxPageSize   = 100
)

type Direction int

const (
	Descending Direction = -1
	Ascending  Direction = 1
)

var sortFields = map[string]string{
	"createdAt": FieldCreatedAt,
	"price":     FieldPrice,
	"title":     FieldTitle,
}

// Query is a normalized catalog search. A zero PageSize returns every match.
type Query struct {
	Text          string
	Category      string
	MinPrice      *float64
	MaxPrice      *float64
	SortField     string
	SortDirection Direction
	Page          int
	PageSize      int
}

// Parse reads the listing parameters (search, category, minPrice, maxPrice,
// sortBy, sortOrder, page, limit). Malformed numbers are treated as absent.
func Parse(get func(key string) string) Query {
	q := Query{
		Text:          strings.TrimSpace(get("search")),
		SortField:     FieldCreatedAt,
		SortDirection: Descending,
		Page:          1,
	}

	if cat := strings.TrimSpace(get("category")); cat != "" && !strings.EqualFold(cat, AllCategories) {
		q.Category = cat
	}
	q.MinPrice = parsePrice(get("minPrice"))
	q.MaxPrice = parsePrice(get("maxPrice"))

	if f, ok := sortFields[strings.TrimSpace(get("sortBy"))]; ok {
		q.SortField = f
	}
	if strings.EqualFold(strings.TrimSpace(get("sortOrder")), "asc") {
		q.SortDirection = Ascending
	}

	if p, err := strconv.Atoi(get("page")); err == nil && p > 1 {
		q.Page = p
	}
	if l, err := strconv.Atoi(get("limit")); err == nil && l > 0 {
		q.PageSize = min(l, MaxPageSize)
	}
	return q
}

func parsePrice(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Values renders q back into listing parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Text != "" {
		v.Set("search", q.Text)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.MinPrice != nil {
		v.Set("minPrice", strconv.FormatFloat(*q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice != nil {
		v.Set("maxPrice", strconv.FormatFloat(*q.MaxPrice, 'f', -1, 64))
	}
	if q.SortField != "" {
		v.Set("sortBy", q.SortField)
	}
	if q.SortDirection == Ascending {
		v.Set("sortOrder", "asc")
	} else {
		v.Set("sortOrder", "desc")
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("limit", strconv.Itoa(q.PageSize))
	}
	return v
}

// HasText reports whether a free-text condition applies.
func (q Query) HasText() bool { return q.Text != "" }

// Offset is the number of matches skipped before the current page.
func (q Query) Offset() int64 {
	if q.PageSize <= 0 || q.Page <= 1 {
		return 0
	}
	return int64(q.Page-1) * int64(q.PageSize)
}

// Filter builds the catalog filter document.
func (q Query) Filter() bson.M {
	f := bson.M{}
	if q.HasText() {
		rx := TextPattern(q.Text)
		f["$or"] = bson.A{
			bson.M{FieldTitle: rx},
			bson.M{FieldDescription: rx},
			bson.M{FieldCategory: rx},
			bson.M{FieldSellerName: rx},
		}
	}
	if q.Category != "" {
		f[FieldCategory] = q.Category
	}
	price := bson.M{}
	if q.MinPrice != nil {
		price["$gte"] = *q.MinPrice
	}
	if q.MaxPrice != nil {
		price["$lte"] = *q.MaxPrice
	}
	if len(price) > 0 {
		f[FieldPrice] = price
	}
	return f
}

// Sort is the sort document; _id breaks ties so pages are stable.
func (q Query) Sort() bson.D {
	field := q.SortField
	if field == "" {
		field = FieldCreatedAt
	}
	dir := q.SortDirection
	if dir == 0 {
		dir = Descending
	}
	return bson.D{{Key: field, Value: int(dir)}, {Key: "_id", Value: int(dir)}}
}

// TextPattern is a case-insensitive substring match on the literal text.
func TextPattern(text string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
}

// MatchText applies the free-text condition to already-loaded field values.
func (q Query) MatchText(values ...string) bool {
	if !q.HasText() {
		return true
	}
	needle := strings.ToLower(q.Text)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func (q Query) MatchCategory(category string) bool {
	return q.Category == "" || q.Category == category
}

func (q Query) MatchPrice(price float64) bool {
	if q.MinPrice != nil && price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && price > *q.MaxPrice {
		return false
	}
	return true
}
