package product

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wichananm65/secondhand-market/internal/search"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("product not found")
	ErrInvalidID = errors.New("invalid product id")
)

// Page is one page of a catalog query together with the total match count.
type Page struct {
	Items []Product
	Total int64
}

type Repository interface {
	Search(ctx context.Context, q search.Query) (Page, error)
	// Analytics is computed over every match of q, ignoring pagination.
	Analytics(ctx context.Context, q search.Query) (search.Analytics, error)
	Suggest(ctx context.Context, text string, limit int) (search.Suggestions, error)
	GetByID(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id string) error
	CountByCategory(ctx context.Context, category string) (int64, error)
	// RenameCategory relabels every product of one category and reports how
	// many were changed.
	RenameCategory(ctx context.Context, from, to string) (int64, error)
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// InMemoryRepository is a simple in-memory implementation useful for tests and
// local runs without a database.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage []Product
	now     func() time.Time
}

func NewInMemoryRepository(seed []Product) *InMemoryRepository {
	r := &InMemoryRepository{
		storage: make([]Product, 0, len(seed)),
		now:     time.Now,
	}
	for _, p := range seed {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		p.Normalize()
		r.storage = append(r.storage, p)
	}
	return r
}

func (r *InMemoryRepository) matches(q search.Query) []Product {
	out := make([]Product, 0)
	for _, p := range r.storage {
		if q.MatchText(p.Title, p.Description, p.Category, p.SellerName) &&
			q.MatchCategory(p.Category) &&
			q.MatchPrice(p.Price) {
			out = append(out, p)
		}
	}
	return out
}

func (r *InMemoryRepository) Search(_ context.Context, q search.Query) (Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := r.matches(q)
	sortProducts(found, q)
	page := Page{Items: found, Total: int64(len(found))}
	if q.PageSize > 0 {
		start := min(int(q.Offset()), len(found))
		end := min(start+q.PageSize, len(found))
		page.Items = found[start:end]
	}
	return page, nil
}

func sortProducts(items []Product, q search.Query) {
	dir := 1
	if q.SortDirection == search.Descending || q.SortDirection == 0 {
		dir = -1
	}
	slices.SortStableFunc(items, func(a, b Product) int {
		var c int
		switch q.SortField {
		case search.FieldPrice:
			c = cmp.Compare(a.Price, b.Price)
		case search.FieldTitle:
			c = strings.Compare(a.Title, b.Title)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = strings.Compare(a.ID.Hex(), b.ID.Hex())
		}
		return c * dir
	})
}

func (r *InMemoryRepository) Analytics(_ context.Context, q search.Query) (search.Analytics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc := search.NewAccumulator()
	for _, p := range r.matches(q) {
		acc.Add(p.Category, p.Price)
	}
	return acc.Result(), nil
}

func (r *InMemoryRepository) Suggest(_ context.Context, text string, limit int) (search.Suggestions, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(text))
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), needle) }

	newest := make([]Product, len(r.storage))
	copy(newest, r.storage)
	sortProducts(newest, search.Query{SortField: search.FieldCreatedAt, SortDirection: search.Descending})

	out := search.EmptySuggestions()
	seen := map[string]bool{}
	titles := make([]string, 0)
	for _, p := range newest {
		if len(out.Products) < limit && (contains(p.Title) || contains(p.Description)) {
			out.Products = append(out.Products, search.Suggestion{ID: p.ID.Hex(), Title: p.Title, Category: p.Category, Price: p.Price})
		}
		if !seen[p.Category] && len(out.Categories) < search.MaxSuggestCategories && contains(p.Category) {
			seen[p.Category] = true
			out.Categories = append(out.Categories, p.Category)
		}
		if len(titles) < search.MaxKeywordTitles && contains(p.Title) {
			titles = append(titles, p.Title)
		}
	}
	out.Keywords = search.Keywords(titles, search.MaxSuggestKeywords)
	return out, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (Product, error) {
	oid, err := parseID(id)
	if err != nil {
		return Product{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.storage {
		if p.ID == oid {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (r *InMemoryRepository) Create(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	p.Normalize()
	r.storage = append(r.storage, p)
	return p, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.storage {
		if r.storage[i].ID == oid {
			r.storage = append(r.storage[:i], r.storage[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *InMemoryRepository) CountByCategory(_ context.Context, category string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, p := range r.storage {
		if p.Category == category {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) RenameCategory(_ context.Context, from, to string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.storage {
		if r.storage[i].Category == from {
			r.storage[i].Category = to
			n++
		}
	}
	return n, nil
}
