package category

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("category not found")
	ErrInvalidID = errors.New("invalid category id")
	// ErrDuplicate is returned when a name or slug is already taken.
	ErrDuplicate = errors.New("category already exists")
)

// Repository provides access to category documents.
type Repository interface {
	// List returns categories sorted by name.
	List(ctx context.Context, activeOnly bool) ([]Category, error)
	GetByID(ctx context.Context, id string) (Category, error)
	GetBySlug(ctx context.Context, slug string) (Category, error)
	// NameTaken reports whether another category (not excludeID) has name,
	// compared case-insensitively.
	NameTaken(ctx context.Context, name string, excludeID primitive.ObjectID) (bool, error)
	Create(ctx context.Context, c Category) (Category, error)
	Update(ctx context.Context, c Category) (Category, error)
	SetProductCount(ctx context.Context, id primitive.ObjectID, n int64) error
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

type InMemoryRepository struct {
	mu      sync.RWMutex
	storage []Category
}

func NewInMemoryRepository(seed []Category) *InMemoryRepository {
	r := &InMemoryRepository{storage: make([]Category, 0, len(seed))}
	for _, c := range seed {
		if c.ID.IsZero() {
			c.ID = primitive.NewObjectID()
		}
		if c.Slug == "" {
			c.Slug = Slugify(c.Name)
		}
		r.storage = append(r.storage, c)
	}
	return r
}

func (r *InMemoryRepository) List(_ context.Context, activeOnly bool) ([]Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Category, 0, len(r.storage))
	for _, c := range r.storage {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Category) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (Category, error) {
	oid, err := parseID(id)
	if err != nil {
		return Category{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.storage {
		if c.ID == oid {
			return c, nil
		}
	}
	return Category{}, ErrNotFound
}

func (r *InMemoryRepository) GetBySlug(_ context.Context, slug string) (Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.storage {
		if c.Slug == slug {
			return c, nil
		}
	}
	return Category{}, ErrNotFound
}

func (r *InMemoryRepository) NameTaken(_ context.Context, name string, excludeID primitive.ObjectID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nameTakenLocked(name, excludeID), nil
}

func (r *InMemoryRepository) nameTakenLocked(name string, excludeID primitive.ObjectID) bool {
	for _, c := range r.storage {
		if c.ID != excludeID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (r *InMemoryRepository) slugTakenLocked(slug string, excludeID primitive.ObjectID) bool {
	for _, c := range r.storage {
		if c.ID != excludeID && c.Slug == slug {
			return true
		}
	}
	return false
}

func (r *InMemoryRepository) Create(_ context.Context, c Category) (Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTakenLocked(c.Name, primitive.NilObjectID) || r.slugTakenLocked(c.Slug, primitive.NilObjectID) {
		return Category{}, ErrDuplicate
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.storage = append(r.storage, c)
	return c, nil
}

func (r *InMemoryRepository) Update(_ context.Context, c Category) (Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.storage {
		if r.storage[i].ID != c.ID {
			continue
		}
		if r.nameTakenLocked(c.Name, c.ID) || r.slugTakenLocked(c.Slug, c.ID) {
			return Category{}, ErrDuplicate
		}
		c.CreatedAt = r.storage[i].CreatedAt
		c.UpdatedAt = time.Now().UTC()
		r.storage[i] = c
		return c, nil
	}
	return Category{}, ErrNotFound
}

func (r *InMemoryRepository) SetProductCount(_ context.Context, id primitive.ObjectID, n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.storage {
		if r.storage[i].ID == id {
			r.storage[i].ProductCount = n
			return nil
		}
	}
	return ErrNotFound
}
