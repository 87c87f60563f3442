package cart

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrLineNotFound     = errors.New("product is not in the cart")
	ErrConcurrentUpdate = errors.New("cart was modified concurrently, retry")
)

// Repository stores the server-resident cart of each user. Every mutation
// returns the resulting lines.
type Repository interface {
	Get(ctx context.Context, userID string) ([]Line, error)
	// Add creates line or increments the quantity of an existing line,
	// keeping the snapshot taken when it was first added.
	Add(ctx context.Context, userID string, line Line) ([]Line, error)
	// SetQuantity replaces a line's quantity; below 1 removes the line.
	SetQuantity(ctx context.Context, userID, productID string, qty int) ([]Line, error)
	Remove(ctx context.Context, userID, productID string) ([]Line, error)
	Clear(ctx context.Context, userID string) error
	Merge(ctx context.Context, userID string, local []Line, policy MergePolicy) ([]Line, error)
}

// applyAdd, applySet and applyRemove are the mutations shared by every
// Repository implementation.
func applyAdd(m map[string]Line, line Line) {
	if existing, ok := m[line.ProductID]; ok {
		existing.Quantity = min(existing.Quantity+line.Quantity, MaxQuantity)
		m[line.ProductID] = existing
		return
	}
	m[line.ProductID] = line
}

func applySet(m map[string]Line, productID string, qty int) error {
	existing, ok := m[productID]
	if !ok {
		return ErrLineNotFound
	}
	if qty < 1 {
		delete(m, productID)
		return nil
	}
	existing.Quantity = qty
	m[productID] = existing
	return nil
}

func applyRemove(m map[string]Line, productID string) error {
	if _, ok := m[productID]; !ok {
		return ErrLineNotFound
	}
	delete(m, productID)
	return nil
}

// InMemoryRepository is used for tests and when no redis is configured.
type InMemoryRepository struct {
	mu    sync.Mutex
	carts map[string]map[string]Line
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{carts: make(map[string]map[string]Line)}
}

func (r *InMemoryRepository) update(userID string, fn func(map[string]Line) error) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.carts[userID]
	next := make(map[string]Line, len(current))
	for k, v := range current {
		next[k] = v
	}
	if err := fn(next); err != nil {
		return nil, err
	}
	r.carts[userID] = next
	return linesOf(next), nil
}

func (r *InMemoryRepository) Get(_ context.Context, userID string) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return linesOf(r.carts[userID]), nil
}

func (r *InMemoryRepository) Add(_ context.Context, userID string, line Line) ([]Line, error) {
	return r.update(userID, func(m map[string]Line) error {
		applyAdd(m, line)
		return nil
	})
}

func (r *InMemoryRepository) SetQuantity(_ context.Context, userID, productID string, qty int) ([]Line, error) {
	return r.update(userID, func(m map[string]Line) error { return applySet(m, productID, qty) })
}

func (r *InMemoryRepository) Remove(_ context.Context, userID, productID string) ([]Line, error) {
	return r.update(userID, func(m map[string]Line) error { return applyRemove(m, productID) })
}

func (r *InMemoryRepository) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}

func (r *InMemoryRepository) Merge(_ context.Context, userID string, local []Line, policy MergePolicy) ([]Line, error) {
	return r.update(userID, func(m map[string]Line) error {
		merged := MergeLines(linesOf(m), local, policy)
		clear(m)
		for _, l := range merged {
			m[l.ProductID] = l
		}
		return nil
	})
}
